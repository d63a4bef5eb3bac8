// Package filesystem provides interfaces and constants required for filesystem implementations.
// All interesting implementations are in subpackages, e.g. github.com/diskfs/go-sfs/filesystem/sfs
package filesystem

import (
	"os"
)

// FileSystem is a reference to a single mounted filesystem on an image
type FileSystem interface {
	// Type return the type of filesystem
	Type() Type
	// Mkdir make a single directory; the parent must already exist
	Mkdir(pathname string) error
	// CreateFile create an empty regular file; the parent must already exist
	CreateFile(pathname string) error
	// WriteFile replace the contents of an existing file, returning the number of bytes stored
	WriteFile(pathname string, data []byte) (int, error)
	// ReadFile read the full contents of a file
	ReadFile(pathname string) ([]byte, error)
	// Remove a regular file
	Remove(pathname string) error
	// RemoveDir remove an empty directory
	RemoveDir(pathname string) error
	// RemoveAll remove a directory and everything below it
	RemoveAll(pathname string) error
	// Move an object into a different directory, keeping its name
	Move(pathname, directory string) error
	// ReadDir read the contents of a directory; an empty path means the current directory
	ReadDir(pathname string) ([]os.FileInfo, error)
	// Stat return information about a single object
	Stat(pathname string) (os.FileInfo, error)
	// Chdir change the current directory of the session
	Chdir(pathname string) error
	// Getwd return the path of the current directory
	Getwd() string
	// Usage return the block and inode accounting of the filesystem
	Usage() Usage
	// Check verify the consistency of the in-memory tables, returning every problem found
	Check() []error
	// Label get the label for the filesystem, or "" if none
	Label() string
	// Close flush all tables and release the filesystem
	Close() error
}

// Type represents the type of filesystem
type Type int

const (
	// TypeSFS is a simple flat-namespace filesystem
	TypeSFS Type = iota
)

func (t Type) String() string {
	switch t {
	case TypeSFS:
		return "sfs"
	default:
		return "unknown"
	}
}

// Usage describes how much of a filesystem is in use
type Usage struct {
	BlockSize   uint32
	TotalBlocks uint32
	FreeBlocks  uint32
	TotalInodes uint32
	FreeInodes  uint32
}

// UsedBlocks returns the number of allocated blocks
func (u Usage) UsedBlocks() uint32 {
	return u.TotalBlocks - u.FreeBlocks
}

// UsedInodes returns the number of allocated inodes
func (u Usage) UsedInodes() uint32 {
	return u.TotalInodes - u.FreeInodes
}

package sfs

import (
	"os"
	"time"
)

// FileInfo describes a file or directory. It implements os.FileInfo.
type FileInfo struct {
	name      string
	number    uint32
	directory bool
	size      int64
	blocks    []uint32
}

func (fs *FileSystem) fileInfo(name string, in *inode) FileInfo {
	fi := FileInfo{
		name:      name,
		number:    in.number,
		directory: in.directory,
		blocks:    append([]uint32(nil), in.blocks...),
	}
	if !in.directory {
		fi.size = int64(in.size)
	}
	return fi
}

func (fi FileInfo) Name() string {
	return fi.name
}

// Size in bytes; always 0 for a directory
func (fi FileInfo) Size() int64 {
	return fi.size
}

func (fi FileInfo) Mode() os.FileMode {
	if fi.directory {
		return os.ModeDir | 0o755
	}
	return 0o644
}

// ModTime is always the zero time; the filesystem keeps no timestamps
func (fi FileInfo) ModTime() time.Time {
	return time.Time{}
}

func (fi FileInfo) IsDir() bool {
	return fi.directory
}

// Sys returns the inode number
func (fi FileInfo) Sys() interface{} {
	return fi.number
}

// Inode returns the index of the inode backing the object
func (fi FileInfo) Inode() uint32 {
	return fi.number
}

// Blocks returns the data blocks the object occupies, in order
func (fi FileInfo) Blocks() []uint32 {
	return fi.blocks
}

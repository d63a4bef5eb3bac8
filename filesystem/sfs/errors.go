package sfs

import (
	"errors"
	"io/fs"
)

// kindError is an error kind that also matches a broader parent kind with errors.Is
type kindError struct {
	msg    string
	parent error
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.parent }

func newKind(msg string, parent error) error {
	return &kindError{msg: msg, parent: parent}
}

var (
	ErrNotFound       = newKind("no such file or directory", fs.ErrNotExist)
	ErrParentNotFound = newKind("parent directory not found", ErrNotFound)
	ErrSourceNotFound = newKind("source not found", ErrNotFound)
	ErrTargetNotFound = newKind("target directory not found", ErrNotFound)
	ErrAlreadyExists  = newKind("file already exists", fs.ErrExist)
	ErrNameCollision  = newKind("an entry with the same name exists in the target directory", fs.ErrExist)

	ErrNotADirectory      = errors.New("not a directory")
	ErrIsADirectory       = errors.New("is a directory")
	ErrNameTooLong        = errors.New("file name too long")
	ErrInvalidName        = errors.New("invalid file name")
	ErrOutOfInodes        = errors.New("no free inodes")
	ErrOutOfSpace         = errors.New("no free blocks")
	ErrFileTooLarge       = errors.New("file too large")
	ErrNotEmpty           = errors.New("directory not empty")
	ErrIsRoot             = errors.New("operation not permitted on the root directory")
	ErrIsCurrentDirectory = errors.New("cannot remove the current directory")
	ErrMoveIntoDescendant = errors.New("cannot move a directory into itself")
	ErrNotMounted         = newKind("filesystem is not mounted", fs.ErrClosed)
	ErrInvalidImage       = errors.New("image does not contain a valid filesystem")
)

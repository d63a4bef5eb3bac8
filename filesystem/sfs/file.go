package sfs

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

func pathError(op, p string, err error) error {
	return &os.PathError{Op: op, Path: p, Err: err}
}

// CreateFile creates an empty regular file. It consumes one inode and one data block.
func (fs *FileSystem) CreateFile(p string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	_, err := fs.create("create", p, false)
	return err
}

// create adds a new file or directory named by p under its existing parent directory
func (fs *FileSystem) create(op, p string, directory bool) (*inode, error) {
	if !fs.mounted {
		return nil, pathError(op, p, ErrNotMounted)
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
		if p == "" {
			p = "/"
		}
	}
	parentPath, name := splitParent(p)
	parent := fs.resolve(parentPath)
	if !parent.found {
		return nil, pathError(op, p, ErrParentNotFound)
	}
	if !fs.inodes[parent.inode].directory {
		return nil, pathError(op, p, fmt.Errorf("parent %s: %w", parentPath, ErrNotADirectory))
	}
	if err := fs.validateName(name); err != nil {
		return nil, pathError(op, p, err)
	}
	if _, exists := fs.entries.lookup(parent.inode, name); exists {
		return nil, pathError(op, p, ErrAlreadyExists)
	}
	// check both pools up front so a failure leaves nothing half allocated
	if fs.superblock.freeInodes == 0 {
		return nil, pathError(op, p, ErrOutOfInodes)
	}
	if fs.superblock.freeBlocks == 0 {
		return nil, pathError(op, p, ErrOutOfSpace)
	}

	in, err := fs.allocateInode(parent.inode, directory)
	if err != nil {
		return nil, pathError(op, p, err)
	}
	block, err := fs.allocateBlock()
	if err != nil {
		return nil, pathError(op, p, err)
	}
	in.blocks = []uint32{block}
	if _, err := fs.entries.attach(in.number, parent.inode, name); err != nil {
		return nil, pathError(op, p, err)
	}
	if err := fs.flush(regionAll); err != nil {
		return nil, pathError(op, p, err)
	}
	fs.log.WithFields(logrus.Fields{
		"op":    op,
		"path":  p,
		"inode": in.number,
		"block": block,
	}).Debug("created")
	return in, nil
}

// WriteFile replaces the contents of the regular file at p with data.
//
// The file grows or shrinks to the number of blocks data needs. If the block pool runs
// dry while growing, the prefix that fits is stored and the byte count is returned along
// with an error wrapping ErrOutOfSpace.
func (fs *FileSystem) WriteFile(p string, data []byte) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	const op = "write"
	if !fs.mounted {
		return 0, pathError(op, p, ErrNotMounted)
	}
	in, err := fs.lookupFile(op, p)
	if err != nil {
		return 0, err
	}

	bs := int(fs.params.BlockSize)
	need := (len(data) + bs - 1) / bs
	if need == 0 {
		need = 1
	}
	if need > int(fs.params.MaxFileBlocks) {
		return 0, pathError(op, p, fmt.Errorf("%w: %d bytes need %d blocks, maximum is %d", ErrFileTooLarge, len(data), need, fs.params.MaxFileBlocks))
	}

	touched := regionInodes
	var outOfSpace bool
	for len(in.blocks) < need {
		block, err := fs.allocateBlock()
		if errors.Is(err, ErrOutOfSpace) {
			outOfSpace = true
			break
		}
		if err != nil {
			return 0, pathError(op, p, err)
		}
		in.blocks = append(in.blocks, block)
		touched |= regionSuperblock
	}
	for len(in.blocks) > need {
		last := in.blocks[len(in.blocks)-1]
		if err := fs.zeroBlock(last); err != nil {
			return 0, pathError(op, p, err)
		}
		if err := fs.freeBlock(last); err != nil {
			return 0, pathError(op, p, err)
		}
		in.blocks = in.blocks[:len(in.blocks)-1]
		touched |= regionSuperblock
	}

	n := min(len(data), len(in.blocks)*bs)
	for i, block := range in.blocks {
		start := min(i*bs, n)
		end := min(start+bs, n)
		if err := fs.writeBlock(block, data[start:end]); err != nil {
			return 0, pathError(op, p, err)
		}
	}
	in.size = uint64(n)
	if err := fs.flush(touched); err != nil {
		return 0, pathError(op, p, err)
	}

	log := fs.log.WithFields(logrus.Fields{
		"op":     op,
		"path":   p,
		"inode":  in.number,
		"bytes":  n,
		"blocks": len(in.blocks),
	})
	if outOfSpace {
		log.Warn("write truncated")
		return n, pathError(op, p, fmt.Errorf("%w: stored %d of %d bytes", ErrOutOfSpace, n, len(data)))
	}
	log.Debug("wrote")
	return n, nil
}

// ReadFile returns the full contents of the regular file at p
func (fs *FileSystem) ReadFile(p string) ([]byte, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	const op = "read"
	if !fs.mounted {
		return nil, pathError(op, p, ErrNotMounted)
	}
	in, err := fs.lookupFile(op, p)
	if err != nil {
		return nil, err
	}
	b := make([]byte, 0, in.size)
	remaining := in.size
	for _, block := range in.blocks {
		if remaining == 0 {
			break
		}
		data, err := fs.readBlock(block)
		if err != nil {
			return nil, pathError(op, p, err)
		}
		take := min(remaining, uint64(len(data)))
		b = append(b, data[:take]...)
		remaining -= take
	}
	if remaining > 0 {
		return nil, pathError(op, p, fmt.Errorf("inode %d records %d bytes but its blocks hold %d", in.number, in.size, len(b)))
	}
	return b, nil
}

// Remove deletes the regular file at p, zero filling its blocks on the image
func (fs *FileSystem) Remove(p string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	const op = "remove"
	if !fs.mounted {
		return pathError(op, p, ErrNotMounted)
	}
	in, err := fs.lookupFile(op, p)
	if err != nil {
		return err
	}
	number := in.number
	if err := fs.release(in); err != nil {
		return pathError(op, p, err)
	}
	if err := fs.flush(regionAll); err != nil {
		return pathError(op, p, err)
	}
	fs.log.WithFields(logrus.Fields{"op": op, "path": p, "inode": number}).Debug("removed")
	return nil
}

// lookupFile resolves p and requires it to be a regular file
func (fs *FileSystem) lookupFile(op, p string) (*inode, error) {
	r := fs.resolve(p)
	if !r.found {
		return nil, pathError(op, p, ErrNotFound)
	}
	in := fs.inodes[r.inode]
	if in.directory {
		return nil, pathError(op, p, ErrIsADirectory)
	}
	return in, nil
}

// release frees everything an inode owns: the data of a file is zero filled first,
// the reserved block of a directory is only returned to the pool. The caller flushes.
func (fs *FileSystem) release(in *inode) error {
	for _, block := range in.blocks {
		if !in.directory {
			if err := fs.zeroBlock(block); err != nil {
				return err
			}
		}
		if err := fs.freeBlock(block); err != nil {
			return err
		}
	}
	in.blocks = nil
	if err := fs.entries.detach(in.number, in.parent); err != nil {
		return err
	}
	return fs.freeInode(in.number)
}

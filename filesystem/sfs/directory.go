package sfs

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// Mkdir creates a single directory under an existing parent. A directory consumes one
// inode and one reserved block; its members are found through their parent links.
func (fs *FileSystem) Mkdir(p string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	_, err := fs.create("mkdir", p, true)
	return err
}

// ReadDir lists the directory at p in directory table order. An empty p lists the
// current directory.
func (fs *FileSystem) ReadDir(p string) ([]os.FileInfo, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	const op = "readdir"
	if !fs.mounted {
		return nil, pathError(op, p, ErrNotMounted)
	}
	number := fs.cwd
	if p != "" {
		r := fs.resolve(p)
		if !r.found {
			return nil, pathError(op, p, ErrNotFound)
		}
		number = r.inode
	}
	if !fs.inodes[number].directory {
		return nil, pathError(op, p, ErrNotADirectory)
	}
	slots := fs.entries.children(number)
	infos := make([]os.FileInfo, 0, len(slots))
	for _, slot := range slots {
		de := fs.entries.entries[slot]
		infos = append(infos, fs.fileInfo(de.filename, fs.inodes[de.inode]))
	}
	return infos, nil
}

// Stat returns information about the object at p
func (fs *FileSystem) Stat(p string) (os.FileInfo, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	const op = "stat"
	if !fs.mounted {
		return nil, pathError(op, p, ErrNotMounted)
	}
	r := fs.resolve(p)
	if !r.found {
		return nil, pathError(op, p, ErrNotFound)
	}
	return fs.fileInfo(fs.nameOf(r.inode), fs.inodes[r.inode]), nil
}

// lookupRemovableDir resolves p and applies the guards shared by RemoveDir and RemoveAll
func (fs *FileSystem) lookupRemovableDir(op, p string) (*inode, error) {
	r := fs.resolve(p)
	switch {
	case !r.found:
		return nil, pathError(op, p, ErrNotFound)
	case r.inode == rootInode:
		return nil, pathError(op, p, ErrIsRoot)
	case !fs.inodes[r.inode].directory:
		return nil, pathError(op, p, ErrNotADirectory)
	case r.inode == fs.cwd:
		return nil, pathError(op, p, ErrIsCurrentDirectory)
	}
	return fs.inodes[r.inode], nil
}

// RemoveDir removes the empty directory at p
func (fs *FileSystem) RemoveDir(p string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	const op = "rmdir"
	if !fs.mounted {
		return pathError(op, p, ErrNotMounted)
	}
	dir, err := fs.lookupRemovableDir(op, p)
	if err != nil {
		return err
	}
	if len(fs.entries.children(dir.number)) > 0 {
		return pathError(op, p, ErrNotEmpty)
	}
	number := dir.number
	if err := fs.release(dir); err != nil {
		return pathError(op, p, err)
	}
	if err := fs.flush(regionAll); err != nil {
		return pathError(op, p, err)
	}
	fs.log.WithFields(logrus.Fields{"op": op, "path": p, "inode": number}).Debug("removed directory")
	return nil
}

// RemoveAll removes the directory at p and everything below it. If the current directory
// is inside the removed tree, the session moves to the parent of p.
func (fs *FileSystem) RemoveAll(p string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	const op = "rm"
	if !fs.mounted {
		return pathError(op, p, ErrNotMounted)
	}
	dir, err := fs.lookupRemovableDir(op, p)
	if err != nil {
		return err
	}

	// collect the subtree parents first, then release it back to front so every
	// child goes before its directory
	var (
		order []uint32
		stack = []uint32{dir.number}
	)
	for len(stack) > 0 {
		number := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		order = append(order, number)
		for _, slot := range fs.entries.children(number) {
			stack = append(stack, fs.entries.entries[slot].inode)
		}
	}

	cwdInside := fs.isAncestor(dir.number, fs.cwd)
	parent := dir.parent
	for i := len(order) - 1; i >= 0; i-- {
		if err := fs.release(fs.inodes[order[i]]); err != nil {
			// tables are flushed as far as they got so the image matches memory
			_ = fs.flush(regionAll)
			return pathError(op, p, fmt.Errorf("removing inode %d: %w", order[i], err))
		}
	}
	if cwdInside {
		fs.cwd, fs.cwdPath = parent, fs.pathOf(parent)
	}
	if err := fs.flush(regionAll); err != nil {
		return pathError(op, p, err)
	}
	fs.log.WithFields(logrus.Fields{
		"op":      op,
		"path":    p,
		"inode":   order[0],
		"removed": len(order),
	}).Debug("removed tree")
	return nil
}

// Move reattaches the object at p under the directory dir, keeping its name
func (fs *FileSystem) Move(p, dir string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	const op = "move"
	if !fs.mounted {
		return pathError(op, p, ErrNotMounted)
	}
	src := fs.resolve(p)
	if !src.found {
		return pathError(op, p, ErrSourceNotFound)
	}
	if src.inode == rootInode {
		return pathError(op, p, ErrIsRoot)
	}
	dst := fs.resolve(dir)
	if !dst.found {
		return pathError(op, dir, ErrTargetNotFound)
	}
	if !fs.inodes[dst.inode].directory {
		return pathError(op, dir, ErrNotADirectory)
	}
	in := fs.inodes[src.inode]
	if in.directory && fs.isAncestor(in.number, dst.inode) {
		return pathError(op, p, fmt.Errorf("%w: %s is inside %s", ErrMoveIntoDescendant, dir, p))
	}
	name := fs.nameOf(in.number)
	if _, exists := fs.entries.lookup(dst.inode, name); exists {
		return pathError(op, p, fmt.Errorf("%w: %s in %s", ErrNameCollision, name, dir))
	}

	if err := fs.entries.detach(in.number, in.parent); err != nil {
		return pathError(op, p, err)
	}
	if _, err := fs.entries.attach(in.number, dst.inode, name); err != nil {
		return pathError(op, p, err)
	}
	in.parent = dst.inode
	fs.cwdPath = fs.pathOf(fs.cwd)
	if err := fs.flush(regionInodes | regionDirectory); err != nil {
		return pathError(op, p, err)
	}
	fs.log.WithFields(logrus.Fields{
		"op":     op,
		"path":   p,
		"inode":  in.number,
		"target": dst.inode,
	}).Debug("moved")
	return nil
}

// Chdir changes the current directory of the session
func (fs *FileSystem) Chdir(p string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	const op = "chdir"
	if !fs.mounted {
		return pathError(op, p, ErrNotMounted)
	}
	r := fs.resolve(p)
	if !r.found {
		return pathError(op, p, ErrNotFound)
	}
	if !fs.inodes[r.inode].directory {
		return pathError(op, p, ErrNotADirectory)
	}
	fs.cwd, fs.cwdPath = r.inode, fs.pathOf(r.inode)
	return nil
}

// Getwd returns the absolute path of the current directory
func (fs *FileSystem) Getwd() string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.cwdPath
}

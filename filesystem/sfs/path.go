package sfs

import (
	"fmt"
	"os"
	"strings"

	"github.com/elliotwutingfeng/asciiset"
)

// forbiddenNameChars are the bytes that may not appear in a file name
var forbiddenNameChars = func() asciiset.ASCIISet {
	chars := "/\x7f"
	for c := byte(0); c < 0x20; c++ {
		chars += string(rune(c))
	}
	set, ok := asciiset.MakeASCIISet(chars)
	if !ok {
		panic("non-ASCII byte in forbidden file name characters")
	}
	return set
}()

// resolution is the outcome of walking a path
type resolution struct {
	inode  uint32
	parent uint32
	name   string
	found  bool
}

// resolve walks p one component at a time, starting at root for absolute paths and at
// the current directory otherwise. When a component is missing, the walk stops with
// found=false, name set to that component and parent set to where the walk got to.
func (fs *FileSystem) resolve(p string) resolution {
	if p == "/" {
		return resolution{inode: rootInode, parent: noInode, name: "/", found: true}
	}
	current := fs.cwd
	if strings.HasPrefix(p, "/") {
		current = rootInode
	}
	r := resolution{inode: current, parent: fs.inodes[current].parent, found: true}
	if current == rootInode {
		r.name = "/"
	} else if slot, ok := fs.entries.entryFor(current); ok {
		r.name = fs.entries.entries[slot].filename
	}

	for _, token := range strings.Split(p, "/") {
		switch token {
		case "", ".":
			continue
		case "..":
			if current != rootInode {
				current = fs.inodes[current].parent
			}
			r.inode, r.parent = current, fs.inodes[current].parent
			r.name = fs.nameOf(current)
			continue
		}
		slot, ok := fs.entries.lookup(current, token)
		if !ok {
			return resolution{inode: noInode, parent: current, name: token}
		}
		r.parent = current
		current = fs.entries.entries[slot].inode
		r.inode, r.name = current, token
	}
	if strings.HasSuffix(p, "/") {
		r.name = ""
	}
	return r
}

// Resolve returns the inode p names, the inode of its parent and its final component.
// noInode is returned as the parent of root.
func (fs *FileSystem) Resolve(p string) (number, parent uint32, name string, err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if !fs.mounted {
		return noInode, noInode, "", &os.PathError{Op: "resolve", Path: p, Err: ErrNotMounted}
	}
	r := fs.resolve(p)
	if !r.found {
		return noInode, r.parent, r.name, &os.PathError{Op: "resolve", Path: p, Err: ErrNotFound}
	}
	return r.inode, r.parent, r.name, nil
}

func (fs *FileSystem) nameOf(number uint32) string {
	if number == rootInode {
		return "/"
	}
	if slot, ok := fs.entries.entryFor(number); ok {
		return fs.entries.entries[slot].filename
	}
	return ""
}

// pathOf builds the absolute path of a directory by following parent links up to root
func (fs *FileSystem) pathOf(number uint32) string {
	if number == rootInode {
		return "/"
	}
	var parts []string
	for n, hops := number, 0; n != rootInode && hops < len(fs.inodes); n, hops = fs.inodes[n].parent, hops+1 {
		parts = append(parts, fs.nameOf(n))
	}
	var b strings.Builder
	for i := len(parts) - 1; i >= 0; i-- {
		b.WriteString("/")
		b.WriteString(parts[i])
	}
	return b.String()
}

// isAncestor reports whether ancestor lies on the parent chain of number, number itself included
func (fs *FileSystem) isAncestor(ancestor, number uint32) bool {
	for hops := 0; hops <= len(fs.inodes); hops++ {
		if number == ancestor {
			return true
		}
		if number == rootInode || number == noInode {
			return false
		}
		number = fs.inodes[number].parent
	}
	return false
}

// splitParent splits p into the path of its parent directory and its final component
func splitParent(p string) (string, string) {
	i := strings.LastIndex(p, "/")
	switch {
	case i < 0:
		return ".", p
	case i == 0:
		return "/", p[1:]
	default:
		return p[:i], p[i+1:]
	}
}

func (fs *FileSystem) validateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return ErrInvalidName
	case len(name) > int(fs.params.MaxNameLength):
		return fmt.Errorf("%w: %d bytes, maximum is %d", ErrNameTooLong, len(name), fs.params.MaxNameLength)
	}
	for i := 0; i < len(name); i++ {
		if forbiddenNameChars.Contains(name[i]) {
			return fmt.Errorf("%w: byte %#x not allowed", ErrInvalidName, name[i])
		}
	}
	return nil
}

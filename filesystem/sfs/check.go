package sfs

import (
	"fmt"
)

// Problem is a single inconsistency found by Check
type Problem struct {
	// Inode the problem concerns, noInode when it concerns the superblock
	Inode uint32
	Msg   string
}

func (p *Problem) Error() string {
	if p.Inode == noInode {
		return p.Msg
	}
	return fmt.Sprintf("inode %d: %s", p.Inode, p.Msg)
}

// Check verifies that the superblock, inode table and directory table agree with each
// other and returns every inconsistency found. A consistent filesystem returns nil.
func (fs *FileSystem) Check() []error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if !fs.mounted {
		return []error{ErrNotMounted}
	}
	return fs.check()
}

func (fs *FileSystem) check() []error {
	var problems []error
	report := func(number uint32, format string, args ...interface{}) {
		problems = append(problems, &Problem{Inode: number, Msg: fmt.Sprintf(format, args...)})
	}
	sb := fs.superblock

	root := fs.inodes[rootInode]
	if !root.used || !root.directory {
		report(rootInode, "root is not a used directory")
	}
	if root.parent != noInode {
		report(rootInode, "root has parent %d", root.parent)
	}
	if slot, ok := fs.entries.entryFor(rootInode); !ok || fs.entries.entries[slot].filename != "/" {
		report(rootInode, "root has no entry named /")
	}

	// entries
	entryCount := map[uint32]int{}
	for slot, de := range fs.entries.entries {
		if de.free() {
			continue
		}
		if de.inode >= uint32(len(fs.inodes)) {
			report(noInode, "entry %d (%q) targets inode %d beyond the table", slot, de.filename, de.inode)
			continue
		}
		if !fs.inodes[de.inode].used {
			report(de.inode, "entry %d (%q) targets an unused inode", slot, de.filename)
		}
		entryCount[de.inode]++
	}

	// inodes, their parents and their blocks
	owner := map[uint32]uint32{}
	var used, referenced uint32
	for _, in := range fs.inodes {
		if !in.used {
			continue
		}
		used++
		if in.number != rootInode {
			if c := entryCount[in.number]; c != 1 {
				report(in.number, "has %d directory entries, expected 1", c)
			}
			switch {
			case in.parent >= uint32(len(fs.inodes)):
				report(in.number, "parent %d beyond the table", in.parent)
			case !fs.inodes[in.parent].used || !fs.inodes[in.parent].directory:
				report(in.number, "parent %d is not a used directory", in.parent)
			case !fs.reachesRoot(in.number):
				report(in.number, "parent chain does not reach root")
			}
		}
		if !in.directory && in.size > uint64(len(in.blocks))*uint64(sb.blockSize) {
			report(in.number, "size %d exceeds its %d blocks", in.size, len(in.blocks))
		}
		for _, block := range in.blocks {
			referenced++
			if block >= sb.totalBlocks {
				report(in.number, "block %d beyond the data region", block)
				continue
			}
			if other, dup := owner[block]; dup {
				report(in.number, "block %d also owned by inode %d", block, other)
			}
			owner[block] = in.number
			if set, _ := sb.blockBitmap.IsSet(int(block)); !set {
				report(in.number, "block %d is not marked used in the bitmap", block)
			}
		}
	}

	// sibling names
	for parent, slots := range fs.entries.byParent {
		seen := map[string]bool{}
		for _, slot := range slots {
			name := fs.entries.entries[slot].filename
			if seen[name] {
				report(parent, "more than one child named %q", name)
			}
			seen[name] = true
		}
	}

	// superblock accounting
	if free := sb.totalInodes - used; sb.freeInodes != free {
		report(noInode, "superblock records %d free inodes, table has %d", sb.freeInodes, free)
	}
	if free := uint32(sb.blockBitmap.CountFree()); sb.freeBlocks != free {
		report(noInode, "superblock records %d free blocks, bitmap has %d", sb.freeBlocks, free)
	}
	for block := 0; block < int(sb.totalBlocks); block++ {
		if set, _ := sb.blockBitmap.IsSet(block); set {
			if _, ok := owner[uint32(block)]; !ok {
				report(noInode, "block %d is marked used but owned by no inode", block)
			}
		}
	}
	if referenced+sb.freeBlocks != sb.totalBlocks {
		report(noInode, "%d free blocks and %d referenced blocks do not add up to %d", sb.freeBlocks, referenced, sb.totalBlocks)
	}
	return problems
}

// reachesRoot reports whether following parent links from number ends at root without a cycle
func (fs *FileSystem) reachesRoot(number uint32) bool {
	for hops := 0; hops < len(fs.inodes); hops++ {
		if number == rootInode {
			return true
		}
		if number >= uint32(len(fs.inodes)) || !fs.inodes[number].used {
			return false
		}
		number = fs.inodes[number].parent
	}
	return false
}

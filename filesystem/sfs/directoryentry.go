package sfs

import (
	"encoding/binary"
	"fmt"
	"slices"
)

const dirEntryHeaderLength int = 0x6

// directoryEntry binds a display name to an inode. Which directory an entry belongs
// to is not stored here: it is the parent of the target inode.
type directoryEntry struct {
	inode    uint32
	filename string
}

func (de *directoryEntry) free() bool {
	return de.inode == noInode
}

func directoryEntrySize(maxNameLength uint32) int {
	return dirEntryHeaderLength + int(maxNameLength)
}

// directoryEntryFromBytes create a directory entry struct from bytes
func directoryEntryFromBytes(b []byte, maxNameLength uint32) (*directoryEntry, error) {
	if len(b) != directoryEntrySize(maxNameLength) {
		return nil, fmt.Errorf("directory entry data was %d bytes instead of expected %d", len(b), directoryEntrySize(maxNameLength))
	}
	de := directoryEntry{}
	var (
		offset  int
		nameLen uint16
		err     error
	)
	if offset, err = toUint32(b, 0x0, &de.inode); err != nil {
		return nil, fmt.Errorf("failed to deserialize inode: %w", err)
	}
	if offset, err = toUint16(b, offset, &nameLen); err != nil {
		return nil, fmt.Errorf("failed to deserialize file name length: %w", err)
	}
	if de.free() {
		return &de, nil
	}
	if uint32(nameLen) > maxNameLength {
		return nil, fmt.Errorf("file name length %d exceeds maximum %d", nameLen, maxNameLength)
	}
	de.filename = string(b[offset : offset+int(nameLen)])
	return &de, nil
}

// toBytes returns a directory entry ready to be written to disk
func (de *directoryEntry) toBytes(maxNameLength uint32) []byte {
	b := make([]byte, directoryEntrySize(maxNameLength))
	binary.LittleEndian.PutUint32(b[0x0:0x4], de.inode)
	if de.free() {
		return b
	}
	binary.LittleEndian.PutUint16(b[0x4:0x6], uint16(len(de.filename)))
	copy(b[dirEntryHeaderLength:], de.filename)
	return b
}

// directoryTable is the flat namespace: a fixed arena of entry slots plus an index
// of which slots belong to which directory, kept current on every attach and detach
type directoryTable struct {
	entries  []directoryEntry
	byParent map[uint32][]int
	byInode  map[uint32]int
}

func newDirectoryTable(capacity uint32) *directoryTable {
	t := &directoryTable{
		entries:  make([]directoryEntry, capacity),
		byParent: map[uint32][]int{},
		byInode:  map[uint32]int{},
	}
	for i := range t.entries {
		t.entries[i].inode = noInode
	}
	return t
}

// reindex rebuilds the derived maps from the entry slots. parentOf reports the
// parent of a live inode, or false if the inode is not in use.
func (t *directoryTable) reindex(parentOf func(uint32) (uint32, bool)) {
	t.byParent = map[uint32][]int{}
	t.byInode = map[uint32]int{}
	for slot, de := range t.entries {
		if de.free() {
			continue
		}
		parent, ok := parentOf(de.inode)
		if !ok {
			continue
		}
		if _, seen := t.byInode[de.inode]; !seen {
			t.byInode[de.inode] = slot
		}
		if de.inode == rootInode {
			continue
		}
		t.byParent[parent] = append(t.byParent[parent], slot)
	}
}

// children returns the slots of the entries under parent, in table order
func (t *directoryTable) children(parent uint32) []int {
	return t.byParent[parent]
}

// lookup finds the entry slot named name under parent. First match in table order wins.
func (t *directoryTable) lookup(parent uint32, name string) (int, bool) {
	for _, slot := range t.byParent[parent] {
		if t.entries[slot].filename == name {
			return slot, true
		}
	}
	return -1, false
}

// entryFor returns the entry slot that names an inode
func (t *directoryTable) entryFor(number uint32) (int, bool) {
	slot, ok := t.byInode[number]
	return slot, ok
}

// attach takes the lowest free slot for an entry naming number under parent
func (t *directoryTable) attach(number, parent uint32, name string) (int, error) {
	slot := slices.IndexFunc(t.entries, func(de directoryEntry) bool { return de.free() })
	if slot < 0 {
		return -1, fmt.Errorf("directory table is full: %w", ErrOutOfInodes)
	}
	t.entries[slot] = directoryEntry{inode: number, filename: name}
	t.byInode[number] = slot
	if number != rootInode {
		siblings := t.byParent[parent]
		i, _ := slices.BinarySearch(siblings, slot)
		t.byParent[parent] = slices.Insert(siblings, i, slot)
	}
	return slot, nil
}

// detach frees the slot naming number, which currently lives under parent
func (t *directoryTable) detach(number, parent uint32) error {
	slot, ok := t.byInode[number]
	if !ok {
		return fmt.Errorf("no directory entry for inode %d", number)
	}
	t.entries[slot] = directoryEntry{inode: noInode}
	delete(t.byInode, number)
	siblings := t.byParent[parent]
	if i, found := slices.BinarySearch(siblings, slot); found {
		siblings = slices.Delete(siblings, i, i+1)
	}
	if len(siblings) == 0 {
		delete(t.byParent, parent)
	} else {
		t.byParent[parent] = siblings
	}
	return nil
}

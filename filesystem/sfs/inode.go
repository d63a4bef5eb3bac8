package sfs

import (
	"encoding/binary"
	"fmt"
)

const (
	inodeHeaderSize int = 20
	rootInode       uint32 = 0
	// noInode marks "no parent" in an inode and a free slot in a directory entry
	noInode uint32 = 0xffffffff
)

// inode is one slot of the inode table. The slot index is its permanent identity.
// Names are not stored here; they live in the directory entry that targets the inode.
type inode struct {
	number    uint32
	used      bool
	directory bool
	parent    uint32
	size      uint64
	blocks    []uint32
}

func inodeSize(maxFileBlocks uint32) int {
	return inodeHeaderSize + 4*int(maxFileBlocks)
}

func (i *inode) equal(a *inode) bool {
	if (i == nil && a != nil) || (a == nil && i != nil) {
		return false
	}
	if i == nil && a == nil {
		return true
	}
	if len(i.blocks) != len(a.blocks) {
		return false
	}
	for j := range i.blocks {
		if i.blocks[j] != a.blocks[j] {
			return false
		}
	}
	return i.number == a.number && i.used == a.used && i.directory == a.directory &&
		i.parent == a.parent && i.size == a.size
}

// inodeFromBytes create an inode struct from bytes
func inodeFromBytes(b []byte, number, maxFileBlocks uint32) (*inode, error) {
	if len(b) != inodeSize(maxFileBlocks) {
		return nil, fmt.Errorf("inode data was %d bytes instead of expected %d", len(b), inodeSize(maxFileBlocks))
	}
	i := inode{number: number}
	var (
		offset     int
		blockCount uint32
		err        error
	)
	if offset, err = toBool(b, 0x0, &i.used); err != nil {
		return nil, err
	}
	if _, err = toBool(b, offset, &i.directory); err != nil {
		return nil, err
	}
	if offset, err = toUint32(b, 0x4, &i.parent); err != nil {
		return nil, err
	}
	if offset, err = toUint64(b, offset, &i.size); err != nil {
		return nil, err
	}
	if offset, err = toUint32(b, offset, &blockCount); err != nil {
		return nil, err
	}
	if blockCount > maxFileBlocks {
		return nil, fmt.Errorf("inode %d lists %d blocks, more than the maximum %d", number, blockCount, maxFileBlocks)
	}
	if blockCount > 0 {
		i.blocks = make([]uint32, blockCount)
	}
	for j := range i.blocks {
		if offset, err = toUint32(b, offset, &i.blocks[j]); err != nil {
			return nil, err
		}
	}
	return &i, nil
}

// toBytes returns an inode ready to be written to disk
func (i *inode) toBytes(maxFileBlocks uint32) []byte {
	b := make([]byte, inodeSize(maxFileBlocks))
	b[0x0] = fromBool(i.used)
	b[0x1] = fromBool(i.directory)
	binary.LittleEndian.PutUint32(b[0x4:0x8], i.parent)
	binary.LittleEndian.PutUint64(b[0x8:0x10], i.size)
	binary.LittleEndian.PutUint32(b[0x10:0x14], uint32(len(i.blocks)))
	for j, block := range i.blocks {
		start := inodeHeaderSize + 4*j
		binary.LittleEndian.PutUint32(b[start:start+4], block)
	}
	return b
}

// allocateInode take the lowest unused inode slot for a new object under parent
func (fs *FileSystem) allocateInode(parent uint32, directory bool) (*inode, error) {
	for _, in := range fs.inodes {
		if in.used {
			continue
		}
		in.used = true
		in.directory = directory
		in.parent = parent
		in.size = 0
		in.blocks = nil
		fs.superblock.freeInodes--
		return in, nil
	}
	return nil, ErrOutOfInodes
}

// freeInode zero an inode slot and return it to the free pool. Blocks must already be released.
func (fs *FileSystem) freeInode(number uint32) error {
	if number == rootInode {
		return fmt.Errorf("refusing to free the root inode: %w", ErrIsRoot)
	}
	if number >= uint32(len(fs.inodes)) {
		return fmt.Errorf("inode %d does not exist", number)
	}
	in := fs.inodes[number]
	if !in.used {
		return fmt.Errorf("inode %d is not in use", number)
	}
	*in = inode{number: number}
	fs.superblock.freeInodes++
	return nil
}

// allocateBlock take the lowest free block from the bitmap
func (fs *FileSystem) allocateBlock() (uint32, error) {
	bm := fs.superblock.blockBitmap
	location := bm.FirstFree(0)
	if location < 0 {
		return 0, ErrOutOfSpace
	}
	if err := bm.Set(location); err != nil {
		return 0, fmt.Errorf("could not set block bitmap: %w", err)
	}
	fs.superblock.freeBlocks--
	return uint32(location), nil
}

// freeBlock return a block to the bitmap
func (fs *FileSystem) freeBlock(block uint32) error {
	bm := fs.superblock.blockBitmap
	set, err := bm.IsSet(int(block))
	if err != nil {
		return fmt.Errorf("could not read block bitmap for block %d: %w", block, err)
	}
	if !set {
		return fmt.Errorf("block %d is already free", block)
	}
	if err = bm.Clear(int(block)); err != nil {
		return fmt.Errorf("could not clear block bitmap for block %d: %w", block, err)
	}
	fs.superblock.freeBlocks++
	return nil
}

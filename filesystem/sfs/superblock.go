package sfs

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/diskfs/go-sfs/util"
	"github.com/google/uuid"
)

const (
	superblockHeaderSize int = 0x50
	maxLabelLength       int = 32
)

// magic identifies an image formatted by this package
var magic = [4]byte{'S', 'F', 'S', '1'}

// superblock is the singleton record at the start of the image: capacities,
// free-space accounting and the block bitmap
type superblock struct {
	blockSize     uint32
	totalBlocks   uint32
	freeBlocks    uint32
	totalInodes   uint32
	freeInodes    uint32
	maxFileBlocks uint32
	maxNameLength uint32
	uuid          uuid.UUID
	volumeLabel   string
	blockBitmap   *util.Bitmap
}

func superblockSize(totalBlocks uint32) int {
	return superblockHeaderSize + util.BitmapBytes(int(totalBlocks))
}

func (sb *superblock) equal(o *superblock) bool {
	if (sb == nil && o != nil) || (o == nil && sb != nil) {
		return false
	}
	if sb == nil && o == nil {
		return true
	}
	return sb.blockSize == o.blockSize &&
		sb.totalBlocks == o.totalBlocks &&
		sb.freeBlocks == o.freeBlocks &&
		sb.totalInodes == o.totalInodes &&
		sb.freeInodes == o.freeInodes &&
		sb.maxFileBlocks == o.maxFileBlocks &&
		sb.maxNameLength == o.maxNameLength &&
		sb.uuid == o.uuid &&
		sb.volumeLabel == o.volumeLabel &&
		bytes.Equal(sb.blockBitmap.ToBytes(), o.blockBitmap.ToBytes())
}

// superblockFromBytes create a superblock struct from bytes
func superblockFromBytes(b []byte) (*superblock, error) {
	if len(b) < superblockHeaderSize {
		return nil, fmt.Errorf("cannot read superblock from %d bytes instead of at least %d", len(b), superblockHeaderSize)
	}
	if !bytes.Equal(b[0x0:0x4], magic[:]) {
		return nil, fmt.Errorf("bad superblock magic %x", b[0x0:0x4])
	}
	sb := superblock{}
	var (
		offset = 0x4
		err    error
	)
	for _, field := range []*uint32{
		&sb.blockSize,
		&sb.totalBlocks,
		&sb.freeBlocks,
		&sb.totalInodes,
		&sb.freeInodes,
		&sb.maxFileBlocks,
		&sb.maxNameLength,
	} {
		if offset, err = toUint32(b, offset, field); err != nil {
			return nil, fmt.Errorf("failed to deserialize superblock: %w", err)
		}
	}
	if sb.uuid, err = uuid.FromBytes(b[0x20:0x30]); err != nil {
		return nil, fmt.Errorf("unable to read volume UUID: %w", err)
	}
	sb.volumeLabel = strings.TrimRight(string(b[0x30:0x30+maxLabelLength]), "\x00")

	if size := superblockSize(sb.totalBlocks); len(b) < size {
		return nil, fmt.Errorf("superblock for %d blocks needs %d bytes, received %d", sb.totalBlocks, size, len(b))
	}
	sb.blockBitmap = util.BitmapWithBytes(b[superblockHeaderSize:superblockSize(sb.totalBlocks)], int(sb.totalBlocks))

	if sb.freeBlocks > sb.totalBlocks {
		return nil, fmt.Errorf("free blocks %d exceed total blocks %d", sb.freeBlocks, sb.totalBlocks)
	}
	if sb.freeInodes > sb.totalInodes {
		return nil, fmt.Errorf("free inodes %d exceed total inodes %d", sb.freeInodes, sb.totalInodes)
	}
	return &sb, nil
}

// toBytes returns a superblock ready to be written to disk
func (sb *superblock) toBytes() ([]byte, error) {
	if len(sb.volumeLabel) > maxLabelLength {
		return nil, fmt.Errorf("volume label %q longer than %d bytes", sb.volumeLabel, maxLabelLength)
	}
	b := make([]byte, superblockSize(sb.totalBlocks))

	copy(b[0x0:0x4], magic[:])
	binary.LittleEndian.PutUint32(b[0x4:0x8], sb.blockSize)
	binary.LittleEndian.PutUint32(b[0x8:0xc], sb.totalBlocks)
	binary.LittleEndian.PutUint32(b[0xc:0x10], sb.freeBlocks)
	binary.LittleEndian.PutUint32(b[0x10:0x14], sb.totalInodes)
	binary.LittleEndian.PutUint32(b[0x14:0x18], sb.freeInodes)
	binary.LittleEndian.PutUint32(b[0x18:0x1c], sb.maxFileBlocks)
	binary.LittleEndian.PutUint32(b[0x1c:0x20], sb.maxNameLength)
	copy(b[0x20:0x30], sb.uuid[:])
	copy(b[0x30:0x30+maxLabelLength], sb.volumeLabel)
	copy(b[superblockHeaderSize:], sb.blockBitmap.ToBytes())

	return b, nil
}

package sfs

import (
	"fmt"

	"github.com/diskfs/go-sfs/util"
)

// region marks which of the metadata tables a mutation touched
type region uint8

const (
	regionSuperblock region = 1 << iota
	regionInodes
	regionDirectory

	regionAll = regionSuperblock | regionInodes | regionDirectory
)

// flush serializes the touched tables and writes them to the image as one contiguous
// write spanning the first to the last touched region. Regions in between are
// rewritten from memory as well, so they are never stale.
func (fs *FileSystem) flush(touched region) error {
	if touched == 0 {
		return nil
	}
	var first, last region
	for _, r := range []region{regionSuperblock, regionInodes, regionDirectory} {
		if touched&r == 0 {
			continue
		}
		if first == 0 {
			first = r
		}
		last = r
	}

	var (
		b      []byte
		offset int64
	)
	switch first {
	case regionSuperblock:
		offset = 0
	case regionInodes:
		offset = fs.layout.inodeTableStart
	default:
		offset = fs.layout.directoryStart
	}
	if first <= regionSuperblock && last >= regionSuperblock {
		sb, err := fs.superblock.toBytes()
		if err != nil {
			return fmt.Errorf("could not serialize superblock: %w", err)
		}
		b = append(b, sb...)
	}
	if first <= regionInodes && last >= regionInodes {
		for _, in := range fs.inodes {
			b = append(b, in.toBytes(fs.params.MaxFileBlocks)...)
		}
	}
	if last >= regionDirectory {
		for i := range fs.entries.entries {
			b = append(b, fs.entries.entries[i].toBytes(fs.params.MaxNameLength)...)
		}
	}

	written, err := fs.file.WriteAt(b, fs.start+offset)
	if err != nil {
		return fmt.Errorf("unable to write metadata to image: %w", err)
	}
	if written != len(b) {
		return fmt.Errorf("wrote %d bytes of metadata instead of expected %d", written, len(b))
	}
	if s, ok := fs.file.(util.Syncer); ok {
		if err := s.Sync(); err != nil {
			return fmt.Errorf("unable to sync image: %w", err)
		}
	}
	return nil
}

func (fs *FileSystem) blockOffset(block uint32) int64 {
	return fs.start + fs.layout.dataStart + int64(block)*int64(fs.params.BlockSize)
}

func (fs *FileSystem) readBlock(block uint32) ([]byte, error) {
	b := make([]byte, fs.params.BlockSize)
	if err := readFull(fs.file, b, fs.blockOffset(block)); err != nil {
		return nil, fmt.Errorf("could not read block %d: %w", block, err)
	}
	return b, nil
}

// writeBlock writes data at the start of block, zero filling the rest of it
func (fs *FileSystem) writeBlock(block uint32, data []byte) error {
	if len(data) > int(fs.params.BlockSize) {
		return fmt.Errorf("cannot write %d bytes to a block of %d", len(data), fs.params.BlockSize)
	}
	b := make([]byte, fs.params.BlockSize)
	copy(b, data)
	written, err := fs.file.WriteAt(b, fs.blockOffset(block))
	if err != nil {
		return fmt.Errorf("unable to write block %d: %w", block, err)
	}
	if written != len(b) {
		return fmt.Errorf("wrote %d bytes to block %d instead of expected %d", written, block, len(b))
	}
	return nil
}

func (fs *FileSystem) zeroBlock(block uint32) error {
	return fs.writeBlock(block, nil)
}

// zeroData clears the whole data region, which also extends the image to its full size
func (fs *FileSystem) zeroData() error {
	const chunkBlocks = 64
	chunk := make([]byte, int64(fs.params.BlockSize)*chunkBlocks)
	for block := uint32(0); block < fs.params.TotalBlocks; block += chunkBlocks {
		b := chunk
		if remaining := fs.params.TotalBlocks - block; remaining < chunkBlocks {
			b = chunk[:int64(remaining)*int64(fs.params.BlockSize)]
		}
		if _, err := fs.file.WriteAt(b, fs.blockOffset(block)); err != nil {
			return fmt.Errorf("unable to clear data region at block %d: %w", block, err)
		}
	}
	return nil
}

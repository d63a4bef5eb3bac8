// Package snapshot exports an image to a single compressed stream and restores it.
//
// A snapshot is a fixed header followed by the compressed image:
//
//	0x00 magic        "SFSSNAP\x00"
//	0x08 compression  u16
//	0x0a reserved     u16
//	0x0c crc32        u32, crc32c, of the uncompressed image
//	0x10 size         u64, uncompressed
//	0x18 volume uuid  [16]byte
package snapshot

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/diskfs/go-sfs/compress"
	"github.com/google/uuid"
)

const headerSize = 0x28

var (
	magic      = []byte("SFSSNAP\x00")
	castagnoli = crc32.MakeTable(crc32.Castagnoli)
)

// ErrCorrupt is returned when a snapshot does not decode to the image it describes
var ErrCorrupt = errors.New("snapshot is corrupt")

// Header describes a snapshot
type Header struct {
	Compression compress.Type
	Checksum    uint32
	Size        uint64
	UUID        uuid.UUID
}

func headerFromBytes(b []byte) (*Header, error) {
	if len(b) != headerSize {
		return nil, fmt.Errorf("snapshot header was %d bytes instead of expected %d", len(b), headerSize)
	}
	if !bytes.Equal(b[0x0:0x8], magic) {
		return nil, fmt.Errorf("%w: bad magic %x", ErrCorrupt, b[0x0:0x8])
	}
	h := &Header{
		Compression: compress.Type(binary.LittleEndian.Uint16(b[0x8:0xa])),
		Checksum:    binary.LittleEndian.Uint32(b[0xc:0x10]),
		Size:        binary.LittleEndian.Uint64(b[0x10:0x18]),
	}
	var err error
	if h.UUID, err = uuid.FromBytes(b[0x18:0x28]); err != nil {
		return nil, fmt.Errorf("unable to read volume UUID: %w", err)
	}
	return h, nil
}

func (h *Header) toBytes() []byte {
	b := make([]byte, headerSize)
	copy(b[0x0:0x8], magic)
	binary.LittleEndian.PutUint16(b[0x8:0xa], uint16(h.Compression))
	binary.LittleEndian.PutUint32(b[0xc:0x10], h.Checksum)
	binary.LittleEndian.PutUint64(b[0x10:0x18], h.Size)
	copy(b[0x18:0x28], h.UUID[:])
	return b
}

// Write reads size bytes of the image from r and writes them to w as a snapshot compressed with c
func Write(w io.Writer, r io.ReaderAt, size int64, id uuid.UUID, c compress.Compressor) (*Header, error) {
	image := make([]byte, size)
	if n, err := r.ReadAt(image, 0); n != len(image) {
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("could not read image: read %d of %d bytes: %w", n, size, err)
	}
	packed, err := c.Compress(image)
	if err != nil {
		return nil, fmt.Errorf("could not compress image with %s: %w", c.Type(), err)
	}
	h := &Header{
		Compression: c.Type(),
		Checksum:    crc32.Checksum(image, castagnoli),
		Size:        uint64(size),
		UUID:        id,
	}
	if _, err := w.Write(h.toBytes()); err != nil {
		return nil, fmt.Errorf("could not write snapshot header: %w", err)
	}
	if _, err := w.Write(packed); err != nil {
		return nil, fmt.Errorf("could not write snapshot data: %w", err)
	}
	return h, nil
}

// Read decodes a snapshot and returns its header and the uncompressed image
func Read(r io.Reader) (*Header, []byte, error) {
	b := make([]byte, headerSize)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, nil, fmt.Errorf("could not read snapshot header: %w", err)
	}
	h, err := headerFromBytes(b)
	if err != nil {
		return nil, nil, err
	}
	c, err := compress.New(h.Compression)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	packed, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("could not read snapshot data: %w", err)
	}
	image, err := c.Decompress(packed)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if uint64(len(image)) != h.Size {
		return nil, nil, fmt.Errorf("%w: image is %d bytes, header records %d", ErrCorrupt, len(image), h.Size)
	}
	if sum := crc32.Checksum(image, castagnoli); sum != h.Checksum {
		return nil, nil, fmt.Errorf("%w: checksum %08x does not match recorded %08x", ErrCorrupt, sum, h.Checksum)
	}
	return h, image, nil
}

// Restore decodes a snapshot from r and writes the image to w at offset 0
func Restore(r io.Reader, w io.WriterAt) (*Header, error) {
	h, image, err := Read(r)
	if err != nil {
		return nil, err
	}
	n, err := w.WriteAt(image, 0)
	if err != nil {
		return nil, fmt.Errorf("could not write image: %w", err)
	}
	if n != len(image) {
		return nil, fmt.Errorf("wrote %d bytes of image instead of %d", n, len(image))
	}
	return h, nil
}

package sfs

import (
	"encoding/binary"
	"fmt"
	"io"
)

func toUint64(b []byte, start int, to *uint64) (int, error) {
	if len(b) < start+8 {
		return 0, fmt.Errorf("%w: expected at least %d bytes, received: %d", io.ErrUnexpectedEOF, start+8, len(b))
	}
	*to = binary.LittleEndian.Uint64(b[start:])
	return start + 8, nil
}

func toUint32(b []byte, start int, to *uint32) (int, error) {
	if len(b) < start+4 {
		return 0, fmt.Errorf("%w: expected at least %d bytes, received: %d", io.ErrUnexpectedEOF, start+4, len(b))
	}
	*to = binary.LittleEndian.Uint32(b[start:])
	return start + 4, nil
}

func toUint16(b []byte, start int, to *uint16) (int, error) {
	if len(b) < start+2 {
		return 0, fmt.Errorf("%w: expected at least %d bytes, received: %d", io.ErrUnexpectedEOF, start+2, len(b))
	}
	*to = binary.LittleEndian.Uint16(b[start:])
	return start + 2, nil
}

func toBool(b []byte, start int, to *bool) (int, error) {
	if len(b) <= start {
		return 0, fmt.Errorf("%w: expected at least %d bytes, received: %d", io.ErrUnexpectedEOF, start+1, len(b))
	}
	*to = b[start] != 0
	return start + 1, nil
}

func fromBool(v bool) byte {
	if v {
		return 1
	}
	return 0
}

// readFull reads exactly len(b) bytes at offset, treating a short read as an error
func readFull(r io.ReaderAt, b []byte, offset int64) error {
	n, err := r.ReadAt(b, offset)
	if n == len(b) {
		return nil
	}
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	return fmt.Errorf("read %d bytes instead of %d at offset %d: %w", n, len(b), offset, err)
}

package util

import "fmt"

// Bitmap is a structure holding a bitmap of fixed length, one bit per tracked unit.
// Bits are packed LSB-first, i.e. location 0 is the lowest bit of byte 0.
type Bitmap struct {
	bits []byte
	size int
}

// Contiguous a position and count of contiguous bits, either free or set
type Contiguous struct {
	Position int
	Count    int
}

// NewBitmap creates a new bitmap able to track size locations, all clear
func NewBitmap(size int) *Bitmap {
	return &Bitmap{
		bits: make([]byte, BitmapBytes(size)),
		size: size,
	}
}

// BitmapWithBytes creates a bitmap tracking size locations backed by a copy of b.
// If b is shorter than required, the missing bytes are treated as clear.
func BitmapWithBytes(b []byte, size int) *Bitmap {
	bm := NewBitmap(size)
	bm.FromBytes(b)
	return bm
}

// BitmapBytes returns how many bytes are needed to track size locations
func BitmapBytes(size int) int {
	return (size + 7) / 8
}

// ToBytes returns a copy of the raw bitmap bytes
func (bm *Bitmap) ToBytes() []byte {
	b := make([]byte, len(bm.bits))
	copy(b, bm.bits)
	return b
}

// FromBytes overwrite the existing map with the contents of a bytes slice.
func (bm *Bitmap) FromBytes(b []byte) {
	n := copy(bm.bits, b)
	for i := n; i < len(bm.bits); i++ {
		bm.bits[i] = 0
	}
}

// Len returns the number of locations tracked by the bitmap
func (bm *Bitmap) Len() int {
	return bm.size
}

func (bm *Bitmap) check(location int) error {
	if location < 0 || location >= bm.size {
		return fmt.Errorf("location %d is not in %d size bitmap", location, bm.size)
	}
	return nil
}

// IsSet check if a specific bit location is set
func (bm *Bitmap) IsSet(location int) (bool, error) {
	if err := bm.check(location); err != nil {
		return false, err
	}
	return bm.bits[location/8]&(1<<(location%8)) != 0, nil
}

// Clear a specific bit location
func (bm *Bitmap) Clear(location int) error {
	if err := bm.check(location); err != nil {
		return err
	}
	bm.bits[location/8] &^= 1 << (location % 8)
	return nil
}

// Set a specific bit location
func (bm *Bitmap) Set(location int) error {
	if err := bm.check(location); err != nil {
		return err
	}
	bm.bits[location/8] |= 1 << (location % 8)
	return nil
}

// FirstFree returns the first free bit in the bitmap at or after start.
// Returns -1 if none found.
func (bm *Bitmap) FirstFree(start int) int {
	if start < 0 {
		start = 0
	}
	for i := start; i < bm.size; i++ {
		// skip whole bytes that are fully used
		if i%8 == 0 && bm.bits[i/8] == 0xff && i+8 <= bm.size {
			i += 7
			continue
		}
		if bm.bits[i/8]&(1<<(i%8)) == 0 {
			return i
		}
	}
	return -1
}

// CountFree returns the number of clear bits
func (bm *Bitmap) CountFree() int {
	var count int
	for i := 0; i < bm.size; i++ {
		if bm.bits[i/8]&(1<<(i%8)) == 0 {
			count++
		}
	}
	return count
}

// FreeList returns a slicelist of contiguous free locations by location.
// It is sorted by location.
func (bm *Bitmap) FreeList() []Contiguous {
	var list []Contiguous
	var current *Contiguous
	for i := 0; i < bm.size; i++ {
		if bm.bits[i/8]&(1<<(i%8)) != 0 {
			current = nil
			continue
		}
		if current == nil {
			list = append(list, Contiguous{Position: i})
			current = &list[len(list)-1]
		}
		current.Count++
	}
	return list
}

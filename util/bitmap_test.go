package util

import (
	"testing"

	"github.com/go-test/deep"
)

func TestBitmapSetClear(t *testing.T) {
	bm := NewBitmap(20)
	if err := bm.Set(0); err != nil {
		t.Fatal(err)
	}
	if err := bm.Set(9); err != nil {
		t.Fatal(err)
	}
	if diff := deep.Equal(bm.ToBytes(), []byte{0x01, 0x02, 0x00}); diff != nil {
		t.Errorf("ToBytes() = %v", diff)
	}
	if set, _ := bm.IsSet(9); !set {
		t.Errorf("expected bit 9 to be set")
	}
	if err := bm.Clear(9); err != nil {
		t.Fatal(err)
	}
	if set, _ := bm.IsSet(9); set {
		t.Errorf("expected bit 9 to be clear")
	}
	if err := bm.Set(20); err == nil {
		t.Errorf("expected error setting location beyond the bitmap")
	}
	if _, err := bm.IsSet(-1); err == nil {
		t.Errorf("expected error for negative location")
	}
}

func TestBitmapFirstFree(t *testing.T) {
	tests := []struct {
		name  string
		size  int
		bytes []byte
		start int
		want  int
	}{
		{"empty", 16, []byte{0x00, 0x00}, 0, 0},
		{"first byte full", 16, []byte{0xff, 0x00}, 0, 8},
		{"gap", 16, []byte{0xfb, 0xff}, 0, 2},
		{"start past gap", 16, []byte{0xfb, 0x7f}, 3, 15},
		{"full", 16, []byte{0xff, 0xff}, 0, -1},
		{"partial trailing byte full", 10, []byte{0xff, 0x03}, 0, -1},
		{"partial trailing byte", 10, []byte{0xff, 0x01}, 0, 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bm := BitmapWithBytes(tt.bytes, tt.size)
			if got := bm.FirstFree(tt.start); got != tt.want {
				t.Errorf("FirstFree(%d) = %d, want %d", tt.start, got, tt.want)
			}
		})
	}
}

func TestBitmapFreeList(t *testing.T) {
	bm := BitmapWithBytes([]byte{0x0f, 0xf0}, 16)
	expected := []Contiguous{{Position: 4, Count: 8}}
	if diff := deep.Equal(bm.FreeList(), expected); diff != nil {
		t.Errorf("FreeList() = %v", diff)
	}
	if free := bm.CountFree(); free != 8 {
		t.Errorf("CountFree() = %d, want 8", free)
	}
}

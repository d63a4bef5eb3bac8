package snapshot

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/diskfs/go-sfs/compress"
	"github.com/diskfs/go-sfs/filesystem/sfs"
	"github.com/go-test/deep"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

func testImage(t *testing.T) (*os.File, *sfs.Params) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	p := &sfs.Params{BlockSize: 512, TotalBlocks: 16, TotalInodes: 8, MaxFileBlocks: 4, MaxNameLength: 16, Logger: logger}
	f, err := os.Create(filepath.Join(t.TempDir(), "source.img"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = f.Close() })
	fs, err := sfs.Create(f, 0, p)
	if err != nil {
		t.Fatal(err)
	}
	if err := fs.CreateFile("/notes"); err != nil {
		t.Fatal(err)
	}
	if _, err := fs.WriteFile("/notes", []byte("snapshotted")); err != nil {
		t.Fatal(err)
	}
	if err := fs.Close(); err != nil {
		t.Fatal(err)
	}
	return f, p
}

func TestHeaderBytes(t *testing.T) {
	h := &Header{Compression: compress.TypeZstd, Checksum: 0xdeadbeef, Size: 1 << 20, UUID: uuid.MustParse("a3c1a452-45e2-4c3f-8b3f-0b9b8d1b4f11")}
	out, err := headerFromBytes(h.toBytes())
	if err != nil {
		t.Fatal(err)
	}
	if diff := deep.Equal(out, h); diff != nil {
		t.Errorf("headerFromBytes() = %v", diff)
	}
	b := h.toBytes()
	b[0] = 'X'
	if _, err := headerFromBytes(b); !errors.Is(err, ErrCorrupt) {
		t.Errorf("headerFromBytes() with bad magic = %v, expected ErrCorrupt", err)
	}
}

func TestSnapshotRestore(t *testing.T) {
	src, p := testImage(t)
	size := sfs.ImageSize(p)
	for _, typ := range []compress.Type{compress.TypeNone, compress.TypeGzip, compress.TypeZstd, compress.TypeLz4, compress.TypeXz, compress.TypeLzma} {
		t.Run(typ.String(), func(t *testing.T) {
			c, err := compress.New(typ)
			if err != nil {
				t.Fatal(err)
			}
			id := uuid.New()
			var buf bytes.Buffer
			if _, err := Write(&buf, src, size, id, c); err != nil {
				t.Fatalf("Write() = %v", err)
			}

			dst, err := os.Create(filepath.Join(t.TempDir(), "restored.img"))
			if err != nil {
				t.Fatal(err)
			}
			defer dst.Close()
			h, err := Restore(&buf, dst)
			if err != nil {
				t.Fatalf("Restore() = %v", err)
			}
			if h.UUID != id || h.Compression != typ || h.Size != uint64(size) {
				t.Errorf("Restore() header = %+v", h)
			}
			fs, err := sfs.Read(dst, 0, p)
			if err != nil {
				t.Fatalf("restored image does not mount: %v", err)
			}
			b, err := fs.ReadFile("/notes")
			if err != nil {
				t.Fatal(err)
			}
			if string(b) != "snapshotted" {
				t.Errorf("restored file holds %q", b)
			}
		})
	}
}

func TestReadCorrupt(t *testing.T) {
	src, p := testImage(t)
	c, _ := compress.New(compress.TypeGzip)
	var buf bytes.Buffer
	if _, err := Write(&buf, src, sfs.ImageSize(p), uuid.New(), c); err != nil {
		t.Fatal(err)
	}
	valid := buf.Bytes()

	tests := []struct {
		name   string
		mangle func(b []byte) []byte
	}{
		{"checksum", func(b []byte) []byte { b[0xc] ^= 0xff; return b }},
		{"size", func(b []byte) []byte { b[0x10]++; return b }},
		{"compression", func(b []byte) []byte { b[0x8] = 42; return b }},
		{"payload", func(b []byte) []byte { return b[:len(b)-8] }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := tt.mangle(append([]byte(nil), valid...))
			if _, _, err := Read(bytes.NewReader(b)); !errors.Is(err, ErrCorrupt) {
				t.Errorf("Read() = %v, expected ErrCorrupt", err)
			}
		})
	}
}

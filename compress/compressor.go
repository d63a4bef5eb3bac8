// Package compress provides the block compressors used for image snapshots
package compress

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Type identifies a compression algorithm. The values are stored in snapshot headers.
type Type uint16

const (
	TypeNone Type = iota
	TypeGzip
	TypeZstd
	TypeLz4
	TypeXz
	TypeLzma
)

var typeNames = map[Type]string{
	TypeNone: "none",
	TypeGzip: "gzip",
	TypeZstd: "zstd",
	TypeLz4:  "lz4",
	TypeXz:   "xz",
	TypeLzma: "lzma",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint16(t))
}

// ParseType returns the Type with the given name
func ParseType(s string) (Type, error) {
	for t, name := range typeNames {
		if strings.EqualFold(s, name) {
			return t, nil
		}
	}
	return TypeNone, fmt.Errorf("unknown compression %q", s)
}

// Compressor compresses and decompresses whole buffers
type Compressor interface {
	Compress(in []byte) ([]byte, error)
	Decompress(in []byte) ([]byte, error)
	Type() Type
}

// New returns a compressor for t with default settings
func New(t Type) (Compressor, error) {
	switch t {
	case TypeNone:
		return &CompressorNone{}, nil
	case TypeGzip:
		return &CompressorGzip{Level: gzip.DefaultCompression}, nil
	case TypeZstd:
		return &CompressorZstd{}, nil
	case TypeLz4:
		return &CompressorLz4{}, nil
	case TypeXz:
		return &CompressorXz{}, nil
	case TypeLzma:
		return &CompressorLzma{}, nil
	default:
		return nil, fmt.Errorf("unsupported compression %s", t)
	}
}

// CompressorNone stores data as is
type CompressorNone struct{}

func (c *CompressorNone) Compress(in []byte) ([]byte, error) {
	return append([]byte(nil), in...), nil
}
func (c *CompressorNone) Decompress(in []byte) ([]byte, error) {
	return append([]byte(nil), in...), nil
}
func (c *CompressorNone) Type() Type { return TypeNone }

// CompressorGzip is a gzip compressor
type CompressorGzip struct {
	Level int
}

func (c *CompressorGzip) Compress(in []byte) ([]byte, error) {
	var b bytes.Buffer
	gz, err := gzip.NewWriterLevel(&b, c.Level)
	if err != nil {
		return nil, fmt.Errorf("error creating gzip compressor: %w", err)
	}
	if _, err := gz.Write(in); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}
func (c *CompressorGzip) Decompress(in []byte) ([]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(in))
	if err != nil {
		return nil, fmt.Errorf("error creating gzip decompressor: %w", err)
	}
	p, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("error decompressing: %w", err)
	}
	return p, nil
}
func (c *CompressorGzip) Type() Type { return TypeGzip }

// CompressorZstd is a zstandard compressor
type CompressorZstd struct{}

func (c *CompressorZstd) Compress(in []byte) ([]byte, error) {
	z, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("error creating zstd compressor: %w", err)
	}
	defer z.Close()
	return z.EncodeAll(in, nil), nil
}
func (c *CompressorZstd) Decompress(in []byte) ([]byte, error) {
	z, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("error creating zstd decompressor: %w", err)
	}
	defer z.Close()
	p, err := z.DecodeAll(in, nil)
	if err != nil {
		return nil, fmt.Errorf("error decompressing: %w", err)
	}
	return p, nil
}
func (c *CompressorZstd) Type() Type { return TypeZstd }

// CompressorLz4 is an lz4 frame compressor
type CompressorLz4 struct{}

func (c *CompressorLz4) Compress(in []byte) ([]byte, error) {
	var b bytes.Buffer
	lz := lz4.NewWriter(&b)
	if _, err := lz.Write(in); err != nil {
		return nil, err
	}
	if err := lz.Close(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}
func (c *CompressorLz4) Decompress(in []byte) ([]byte, error) {
	p, err := io.ReadAll(lz4.NewReader(bytes.NewReader(in)))
	if err != nil {
		return nil, fmt.Errorf("error decompressing: %w", err)
	}
	return p, nil
}
func (c *CompressorLz4) Type() Type { return TypeLz4 }

// CompressorXz is an xz compressor
type CompressorXz struct{}

func (c *CompressorXz) Type() Type { return TypeXz }

// CompressorLzma is a legacy lzma compressor
type CompressorLzma struct{}

func (c *CompressorLzma) Type() Type { return TypeLzma }

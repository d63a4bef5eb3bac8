//go:build !arm && !386

package compress

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"
)

func (c *CompressorLzma) Compress(in []byte) ([]byte, error) {
	var b bytes.Buffer
	lz, err := lzma.NewWriter(&b)
	if err != nil {
		return nil, fmt.Errorf("error creating lzma compressor: %w", err)
	}
	if _, err := lz.Write(in); err != nil {
		return nil, err
	}
	if err := lz.Close(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}
func (c *CompressorLzma) Decompress(in []byte) ([]byte, error) {
	lz, err := lzma.NewReader(bytes.NewReader(in))
	if err != nil {
		return nil, fmt.Errorf("error creating lzma decompressor: %w", err)
	}
	p, err := io.ReadAll(lz)
	if err != nil {
		return nil, fmt.Errorf("error decompressing: %w", err)
	}
	return p, nil
}

func (c *CompressorXz) Compress(in []byte) ([]byte, error) {
	var b bytes.Buffer
	xzWriter, err := xz.NewWriterConfig(&b, xz.WriterConfig{
		Workers: 2,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating xz compressor: %w", err)
	}
	if _, err = xzWriter.Write(in); err != nil {
		return nil, err
	}
	if err = xzWriter.Close(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}
func (c *CompressorXz) Decompress(in []byte) ([]byte, error) {
	xzReader, err := xz.NewReader(bytes.NewReader(in))
	if err != nil {
		return nil, fmt.Errorf("error creating xz decompressor: %w", err)
	}
	p, err := io.ReadAll(xzReader)
	if err != nil {
		return nil, fmt.Errorf("error decompressing: %w", err)
	}
	return p, nil
}

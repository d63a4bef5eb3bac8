//go:build arm || 386

package compress

// lzma and xz do not compile for 32bit systems

import (
	"errors"
)

var errNot64Bit = errors.New("not supported on 32 bit systems")

func (c *CompressorLzma) Compress(in []byte) ([]byte, error)   { return nil, errNot64Bit }
func (c *CompressorLzma) Decompress(in []byte) ([]byte, error) { return nil, errNot64Bit }
func (c *CompressorXz) Compress(in []byte) ([]byte, error)     { return nil, errNot64Bit }
func (c *CompressorXz) Decompress(in []byte) ([]byte, error)   { return nil, errNot64Bit }

package compress

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors.
var (
	// ErrShortBuffer is returned when the decoded output does not fit in dst.
	ErrShortBuffer = errors.New("compress: output buffer too small")

	// ErrCorrupt is returned when compressed input cannot be decoded.
	ErrCorrupt = errors.New("compress: corrupt input")

	// ErrIncompressible is returned by Compress when the output would not be
	// smaller than the input. Callers store such data uncompressed.
	ErrIncompressible = errors.New("compress: incompressible input")
)

// Decompressor decodes a compressed block.
//
// len(dst) is the expected decoded length. Decompress writes into dst and
// returns the number of bytes produced. Implementations must be safe for
// concurrent use.
type Decompressor interface {
	Decompress(dst, src []byte) (int, error)
}

// DecompressorFunc adapts a function to the Decompressor interface.
type DecompressorFunc func(dst, src []byte) (int, error)

// Decompress calls f(dst, src).
func (f DecompressorFunc) Decompress(dst, src []byte) (int, error) {
	return f(dst, src)
}

// Compressor encodes a block. Implementations must be safe for concurrent use.
type Compressor interface {
	Compress(src []byte) ([]byte, error)
}

// Codec is a named Compressor and Decompressor pair.
type Codec interface {
	Compressor
	Decompressor
	Name() string
}

// ByName returns the codec registered under name.
// "none" and "" return a nil Codec and no error.
func ByName(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return nil, nil
	case "zstd":
		return NewZstd(), nil
	case "lz4":
		return NewLZ4(), nil
	case "s2":
		return NewS2(), nil
	default:
		return nil, fmt.Errorf("compress: unknown codec %q", name)
	}
}

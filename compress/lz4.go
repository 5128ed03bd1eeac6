package compress

import (
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// LZ4 is a raw LZ4 block codec (no frame header).
type LZ4 struct{}

// NewLZ4 creates an LZ4 block codec.
func NewLZ4() *LZ4 {
	return &LZ4{}
}

// Name returns "lz4".
func (*LZ4) Name() string {
	return "lz4"
}

// Decompress decodes the LZ4 block src into dst.
//
// A raw LZ4 block carries no decoded length, so a destination that is too
// small cannot be told apart from corrupt input; both fail with ErrCorrupt.
func (*LZ4) Decompress(dst, src []byte) (int, error) {
	n, err := lz4.UncompressBlock(src, dst)
	if err != nil {
		return 0, fmt.Errorf("%w: lz4: %v", ErrCorrupt, err)
	}
	return n, nil
}

// Compress encodes src as a single LZ4 block.
func (*LZ4) Compress(src []byte) ([]byte, error) {
	dst := make([]byte, lz4.CompressBlockBound(len(src)))
	n, err := lz4.CompressBlock(src, dst, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4: %w", err)
	}
	if n == 0 || n >= len(src) {
		return nil, ErrIncompressible
	}
	return dst[:n], nil
}

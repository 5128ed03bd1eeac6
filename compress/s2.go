package compress

import (
	"fmt"

	"github.com/klauspost/compress/s2"
)

// S2 is an S2 block codec.
type S2 struct{}

// NewS2 creates an S2 block codec.
func NewS2() *S2 {
	return &S2{}
}

// Name returns "s2".
func (*S2) Name() string {
	return "s2"
}

// Decompress decodes the S2 block src into dst.
func (*S2) Decompress(dst, src []byte) (int, error) {
	n, err := s2.DecodedLen(src)
	if err != nil {
		return 0, fmt.Errorf("%w: s2: %v", ErrCorrupt, err)
	}
	if n > len(dst) {
		return 0, fmt.Errorf("%w: s2 block decodes to %d bytes, have %d", ErrShortBuffer, n, len(dst))
	}
	out, err := s2.Decode(dst, src)
	if err != nil {
		return 0, fmt.Errorf("%w: s2: %v", ErrCorrupt, err)
	}
	return len(out), nil
}

// Compress encodes src as a single S2 block.
func (*S2) Compress(src []byte) ([]byte, error) {
	out := s2.Encode(nil, src)
	if len(out) >= len(src) {
		return nil, ErrIncompressible
	}
	return out, nil
}

package compress

import (
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// DefaultMaxDecoderMemory is the default maximum decoder memory (256MB).
const DefaultMaxDecoderMemory = 256 << 20

// Zstd is a zstd codec.
//
// A single decoder and encoder are created lazily and shared; both are used
// through their stateless DecodeAll/EncodeAll entry points, which are safe for
// concurrent use.
type Zstd struct {
	maxDecoderMemory   uint64
	decoderConcurrency int
	decoderLowmem      bool
	level              zstd.EncoderLevel

	decOnce sync.Once
	dec     *zstd.Decoder
	decErr  error

	encOnce sync.Once
	enc     *zstd.Encoder
	encErr  error
}

// ZstdOption configures a Zstd codec.
type ZstdOption func(*Zstd)

// WithMaxDecoderMemory limits the memory used by the decoder.
// Set limit to 0 to disable the limit.
func WithMaxDecoderMemory(limit uint64) ZstdOption {
	return func(z *Zstd) {
		z.maxDecoderMemory = limit
	}
}

// WithDecoderConcurrency sets how many blocks may be decoded at once (default: 1).
// Values < 0 are treated as 0 (use GOMAXPROCS).
func WithDecoderConcurrency(n int) ZstdOption {
	return func(z *Zstd) {
		if n < 0 {
			n = 0
		}
		z.decoderConcurrency = n
	}
}

// WithDecoderLowmem sets whether the decoder should use low-memory mode (default: false).
func WithDecoderLowmem(enabled bool) ZstdOption {
	return func(z *Zstd) {
		z.decoderLowmem = enabled
	}
}

// WithEncoderLevel sets the compression level used by Compress.
func WithEncoderLevel(level zstd.EncoderLevel) ZstdOption {
	return func(z *Zstd) {
		z.level = level
	}
}

// NewZstd creates a zstd codec.
func NewZstd(opts ...ZstdOption) *Zstd {
	z := &Zstd{
		maxDecoderMemory:   DefaultMaxDecoderMemory,
		decoderConcurrency: 1,
		level:              zstd.SpeedDefault,
	}
	for _, opt := range opts {
		opt(z)
	}
	return z
}

// Name returns "zstd".
func (z *Zstd) Name() string {
	return "zstd"
}

// Decompress decodes src into dst. Output longer than len(dst) fails with
// ErrShortBuffer.
func (z *Zstd) Decompress(dst, src []byte) (int, error) {
	dec, err := z.decoder()
	if err != nil {
		return 0, err
	}
	out, err := dec.DecodeAll(src, dst[:0:len(dst)])
	if err != nil {
		if errors.Is(err, zstd.ErrDecoderSizeExceeded) {
			return 0, fmt.Errorf("%w: %v", ErrShortBuffer, err)
		}
		return 0, fmt.Errorf("%w: zstd: %v", ErrCorrupt, err)
	}
	return len(out), nil
}

// Compress encodes src as a single zstd frame.
func (z *Zstd) Compress(src []byte) ([]byte, error) {
	enc, err := z.encoder()
	if err != nil {
		return nil, err
	}
	out := enc.EncodeAll(src, make([]byte, 0, len(src)))
	if len(out) >= len(src) {
		return nil, ErrIncompressible
	}
	return out, nil
}

// decoder returns the shared decoder, creating it on first use.
func (z *Zstd) decoder() (*zstd.Decoder, error) {
	z.decOnce.Do(func() {
		opts := []zstd.DOption{
			zstd.WithDecoderConcurrency(z.decoderConcurrency),
			zstd.WithDecoderLowmem(z.decoderLowmem),
			zstd.WithDecodeAllCapLimit(true),
		}
		if z.maxDecoderMemory != 0 {
			opts = append(opts, zstd.WithDecoderMaxMemory(z.maxDecoderMemory))
		}
		z.dec, z.decErr = zstd.NewReader(nil, opts...)
		if z.decErr != nil {
			z.decErr = fmt.Errorf("create zstd decoder: %w", z.decErr)
		}
	})
	return z.dec, z.decErr
}

// encoder returns the shared encoder, creating it on first use.
func (z *Zstd) encoder() (*zstd.Encoder, error) {
	z.encOnce.Do(func() {
		z.enc, z.encErr = zstd.NewWriter(nil,
			zstd.WithEncoderConcurrency(1),
			zstd.WithLowerEncoderMem(true),
			zstd.WithEncoderLevel(z.level),
		)
		if z.encErr != nil {
			z.encErr = fmt.Errorf("create zstd encoder: %w", z.encErr)
		}
	})
	return z.enc, z.encErr
}

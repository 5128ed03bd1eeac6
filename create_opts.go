package resarc

import (
	"log/slog"

	"github.com/meigma/resarc/compress"
	"github.com/meigma/resarc/internal/write"
)

// ChangeDetection controls how strictly file changes are detected during creation.
type ChangeDetection uint8

const (
	ChangeDetectionNone ChangeDetection = iota
	ChangeDetectionStrict
)

// SkipCompressionFunc returns true when a payload should be stored uncompressed.
// It receives the entry name and uncompressed size, is called once per entry,
// and should be inexpensive.
type SkipCompressionFunc = write.SkipFunc

// DefaultSkipCompression returns a SkipCompressionFunc that skips payloads
// smaller than minSize and names with already-compressed extensions
// (images, audio, video and archive formats).
func DefaultSkipCompression(minSize int64) SkipCompressionFunc {
	return write.DefaultSkip(minSize)
}

// DefaultMaxFiles is the entry limit used when CreateWithMaxFiles is not set.
const DefaultMaxFiles = 200_000

// createConfig holds configuration for Writer and Create.
type createConfig struct {
	codec           compress.Compressor
	userdata        uint64
	namePrefix      string
	changeDetection ChangeDetection
	skipCompression []SkipCompressionFunc
	maxFiles        int
	logger          *slog.Logger
}

func newCreateConfig(opts []CreateOption) createConfig {
	cfg := createConfig{codec: compress.NewZstd()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.maxFiles == 0 {
		cfg.maxFiles = DefaultMaxFiles
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}
	return cfg
}

// CreateOption configures archive creation.
type CreateOption func(*createConfig)

// CreateWithCodec sets the compressor used for payloads. The default is
// zstd. A nil codec stores every payload uncompressed.
//
// Readers must be configured with a matching Decompressor (WithDecompressor).
func CreateWithCodec(c compress.Compressor) CreateOption {
	return func(cfg *createConfig) {
		cfg.codec = c
	}
}

// CreateWithSkipCompression adds predicates that decide to store a payload
// uncompressed. If any predicate returns true, compression is skipped.
func CreateWithSkipCompression(fns ...SkipCompressionFunc) CreateOption {
	return func(cfg *createConfig) {
		cfg.skipCompression = append(cfg.skipCompression, fns...)
	}
}

// CreateWithUserdata sets the opaque userdata value stored in the header.
func CreateWithUserdata(v uint64) CreateOption {
	return func(cfg *createConfig) {
		cfg.userdata = v
	}
}

// CreateWithNamePrefix prepends prefix to every entry name added by Create.
// Use "/" to produce the rooted names game runtimes usually look up.
func CreateWithNamePrefix(prefix string) CreateOption {
	return func(cfg *createConfig) {
		cfg.namePrefix = prefix
	}
}

// CreateWithMaxFiles limits the number of entries in the archive.
// Zero uses DefaultMaxFiles. Negative means no limit.
func CreateWithMaxFiles(n int) CreateOption {
	return func(cfg *createConfig) {
		cfg.maxFiles = n
	}
}

// CreateWithChangeDetection controls whether Create verifies files did not
// change while they were being read. The zero value disables the extra
// stat calls.
func CreateWithChangeDetection(cd ChangeDetection) CreateOption {
	return func(cfg *createConfig) {
		cfg.changeDetection = cd
	}
}

// CreateWithLogger sets the logger for creation progress.
// If not set, logging is disabled.
func CreateWithLogger(logger *slog.Logger) CreateOption {
	return func(cfg *createConfig) {
		cfg.logger = logger
	}
}

package resarc

import (
	"log/slog"

	"github.com/meigma/resarc/compress"
)

const (
	// DefaultMaxEntrySize is the default per-entry size limit (256MB).
	DefaultMaxEntrySize = 256 << 20

	// DefaultMaxMetadataSize is the default limit on the entry table plus
	// string pool copied into memory by Load (64MB).
	DefaultMaxMetadataSize = 64 << 20
)

// Option configures an Archive.
type Option func(*Archive)

// WithDecompressor sets the codec used for compressed entries.
// The default is a zstd decoder from package compress.
func WithDecompressor(d compress.Decompressor) Option {
	return func(a *Archive) {
		a.dec = d
	}
}

// WithMaxEntrySize limits the buffers the archive allocates for an entry:
// the output of ReadFile and the staging copy Read makes of a compressed
// payload. Allocations over the limit fail with ErrMem. Read into a caller
// buffer allocates nothing for uncompressed entries, or for any entry of a
// wrapped archive, and is not limited. Set limit to 0 to disable the limit.
func WithMaxEntrySize(limit uint64) Option {
	return func(a *Archive) {
		a.maxEntrySize = limit
	}
}

// WithMaxMetadataSize limits the metadata copy made by Load and Open.
// Archives with a larger entry table plus string pool fail with ErrMem.
// Set limit to 0 to disable the limit. Wrap never copies and ignores it.
func WithMaxMetadataSize(limit uint64) Option {
	return func(a *Archive) {
		a.maxMetadataSize = limit
	}
}

// WithLogger sets the logger for archive lifecycle events.
// Lookups and reads never log. If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Archive) {
		a.logger = logger
	}
}

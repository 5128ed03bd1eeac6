package resarc

import (
	"errors"

	"github.com/meigma/resarc/compress"
	"github.com/meigma/resarc/internal/format"
)

// Sentinel errors re-exported from internal/format.
var (
	// ErrVersionMismatch is returned when the archive version differs from
	// FormatVersion. It is fatal for the archive: nothing else is parsed.
	ErrVersionMismatch = format.ErrVersionMismatch

	// ErrInvalidFormat is returned when archive metadata is malformed or
	// points outside the archive.
	ErrInvalidFormat = format.ErrInvalidFormat
)

// Sentinel errors specific to the resarc package.
var (
	// ErrNotFound is returned when no entry has the requested name.
	ErrNotFound = errors.New("resarc: entry not found")

	// ErrIO is returned when the backing medium cannot be opened or read.
	ErrIO = errors.New("resarc: i/o error")

	// ErrMem is returned when a buffer would exceed the configured size limits.
	ErrMem = errors.New("resarc: allocation limit exceeded")

	// ErrOutbufferTooSmall is returned when the output buffer passed to Read
	// is smaller than the entry's uncompressed size.
	ErrOutbufferTooSmall = errors.New("resarc: output buffer too small")

	// ErrDecompression is returned when a payload fails to decompress.
	ErrDecompression = errors.New("resarc: decompression failed")

	// ErrInvalidEntry is returned when an EntryInfo did not come from the
	// archive it is used with.
	ErrInvalidEntry = errors.New("resarc: entry does not belong to archive")

	// ErrClosed is returned when an archive is used after Close.
	ErrClosed = errors.New("resarc: archive closed")

	// ErrInvalidName is returned when an entry name is empty or contains NUL.
	ErrInvalidName = errors.New("resarc: invalid entry name")

	// ErrDuplicateEntry is returned when two entries share a name.
	ErrDuplicateEntry = errors.New("resarc: duplicate entry")

	// ErrSizeOverflow is returned when offsets or sizes do not fit the format.
	ErrSizeOverflow = errors.New("resarc: size overflow")

	// ErrTooManyFiles is returned when the file count exceeds the configured limit.
	ErrTooManyFiles = errors.New("resarc: too many files")
)

// Result is a numeric status code. The values are stable and match the
// codes used by the engine runtime that consumes these archives.
type Result int

const (
	ResultOK                Result = 0
	ResultNotFound          Result = 1
	ResultVersionMismatch   Result = -1
	ResultIOError           Result = -2
	ResultMemError          Result = -3
	ResultOutbufferTooSmall Result = -4
	ResultUnknown           Result = -1000
)

// String returns the name of the result code.
func (r Result) String() string {
	switch r {
	case ResultOK:
		return "ok"
	case ResultNotFound:
		return "not found"
	case ResultVersionMismatch:
		return "version mismatch"
	case ResultIOError:
		return "io error"
	case ResultMemError:
		return "mem error"
	case ResultOutbufferTooSmall:
		return "outbuffer too small"
	default:
		return "unknown"
	}
}

// Code maps err to the most specific Result. A nil error is ResultOK and
// anything unclassified is ResultUnknown.
func Code(err error) Result {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, ErrVersionMismatch):
		return ResultVersionMismatch
	case errors.Is(err, ErrNotFound):
		return ResultNotFound
	case errors.Is(err, ErrOutbufferTooSmall), errors.Is(err, compress.ErrShortBuffer):
		return ResultOutbufferTooSmall
	case errors.Is(err, ErrMem):
		return ResultMemError
	case errors.Is(err, ErrIO), errors.Is(err, ErrClosed):
		return ResultIOError
	default:
		return ResultUnknown
	}
}

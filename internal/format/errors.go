package format

import "errors"

// Sentinel errors for format decoding.
var (
	// ErrVersionMismatch is returned when the header version differs from Version.
	ErrVersionMismatch = errors.New("resarc: version mismatch")

	// ErrInvalidFormat is returned when archive metadata is malformed or out of bounds.
	ErrInvalidFormat = errors.New("resarc: invalid format")
)

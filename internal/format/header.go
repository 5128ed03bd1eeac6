package format

import (
	"encoding/binary"
	"fmt"
)

const (
	// Version is the only archive version this package understands.
	// There is no minor or patch numbering; any other value is rejected.
	Version uint32 = 4

	// HeaderSize is the encoded size of Header in bytes.
	HeaderSize = 32

	// RecordSize is the encoded size of Record in bytes.
	RecordSize = 16

	// Uncompressed is the CompressedSize sentinel for entries stored as-is.
	Uncompressed uint32 = 0xFFFFFFFF
)

// Header is the fixed archive header found at offset 0.
type Header struct {
	Version          uint32
	Pad              uint32
	Userdata         uint64
	StringPoolOffset uint32
	StringPoolSize   uint32
	EntryCount       uint32
	EntryOffset      uint32
}

// Range is a byte range [Off, Off+Len) relative to the start of the archive.
type Range struct {
	Off uint64
	Len uint64
}

// End returns the first offset past the range.
func (r Range) End() uint64 {
	return r.Off + r.Len
}

// ParseHeader decodes the header at the start of b.
//
// The version is checked before anything else: a foreign version fails with
// ErrVersionMismatch even when the remaining fields are garbage.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: header needs %d bytes, have %d", ErrInvalidFormat, HeaderSize, len(b))
	}
	h := Header{Version: binary.BigEndian.Uint32(b[0:4])}
	if h.Version != Version {
		return Header{}, fmt.Errorf("%w: archive version %d, reader version %d", ErrVersionMismatch, h.Version, Version)
	}
	h.Pad = binary.BigEndian.Uint32(b[4:8])
	h.Userdata = binary.BigEndian.Uint64(b[8:16])
	h.StringPoolOffset = binary.BigEndian.Uint32(b[16:20])
	h.StringPoolSize = binary.BigEndian.Uint32(b[20:24])
	h.EntryCount = binary.BigEndian.Uint32(b[24:28])
	h.EntryOffset = binary.BigEndian.Uint32(b[28:32])
	return h, nil
}

// TableRange returns the byte range holding the entry records.
func (h Header) TableRange() Range {
	return Range{Off: uint64(h.EntryOffset), Len: uint64(h.EntryCount) * RecordSize}
}

// PoolRange returns the byte range holding the string pool.
func (h Header) PoolRange() Range {
	return Range{Off: uint64(h.StringPoolOffset), Len: uint64(h.StringPoolSize)}
}

// Append encodes h onto dst. Pad is always written as zero.
func (h Header) Append(dst []byte) []byte {
	dst = binary.BigEndian.AppendUint32(dst, h.Version)
	dst = binary.BigEndian.AppendUint32(dst, 0)
	dst = binary.BigEndian.AppendUint64(dst, h.Userdata)
	dst = binary.BigEndian.AppendUint32(dst, h.StringPoolOffset)
	dst = binary.BigEndian.AppendUint32(dst, h.StringPoolSize)
	dst = binary.BigEndian.AppendUint32(dst, h.EntryCount)
	return binary.BigEndian.AppendUint32(dst, h.EntryOffset)
}

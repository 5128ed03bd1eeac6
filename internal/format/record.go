package format

import "encoding/binary"

// Record is one entry of the entry table.
type Record struct {
	// NameOffset is the absolute offset of the entry name inside the string pool.
	NameOffset uint32

	// ResourceOffset is the absolute offset of the stored payload.
	ResourceOffset uint32

	// ResourceSize is the uncompressed payload size.
	ResourceSize uint32

	// CompressedSize is the stored payload size, or Uncompressed.
	CompressedSize uint32
}

// Compressed reports whether the payload must be decompressed.
func (r Record) Compressed() bool {
	return r.CompressedSize != Uncompressed
}

// StoredSize returns the number of payload bytes held in the archive.
func (r Record) StoredSize() uint32 {
	if r.Compressed() {
		return r.CompressedSize
	}
	return r.ResourceSize
}

// StoredRange returns the byte range of the stored payload.
func (r Record) StoredRange() Range {
	return Range{Off: uint64(r.ResourceOffset), Len: uint64(r.StoredSize())}
}

// decodeRecord reads a record from the first RecordSize bytes of b.
func decodeRecord(b []byte) Record {
	_ = b[RecordSize-1]
	return Record{
		NameOffset:     binary.BigEndian.Uint32(b[0:4]),
		ResourceOffset: binary.BigEndian.Uint32(b[4:8]),
		ResourceSize:   binary.BigEndian.Uint32(b[8:12]),
		CompressedSize: binary.BigEndian.Uint32(b[12:16]),
	}
}

// Append encodes r onto dst.
func (r Record) Append(dst []byte) []byte {
	dst = binary.BigEndian.AppendUint32(dst, r.NameOffset)
	dst = binary.BigEndian.AppendUint32(dst, r.ResourceOffset)
	dst = binary.BigEndian.AppendUint32(dst, r.ResourceSize)
	return binary.BigEndian.AppendUint32(dst, r.CompressedSize)
}

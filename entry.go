package resarc

import "github.com/meigma/resarc/internal/format"

// entryFlagCompressed marks entries whose payload must be decompressed.
const entryFlagCompressed uint32 = 1 << 0

// EntryInfo describes an entry found in an Archive.
//
// The unexported locator ties the value to the archive that produced it;
// pass it unchanged to that archive's Read. It is valid only while the
// archive is open.
type EntryInfo struct {
	// Name is the entry name as stored in the archive.
	Name string

	// Size is the uncompressed size. Read needs a buffer at least this large.
	Size uint32

	// CompressedSize is the stored size, or Uncompressed for entries stored as-is.
	CompressedSize uint32

	index   int
	offset  uint32
	flags   uint32
	archive *Archive
}

// Compressed reports whether the entry is stored compressed.
func (e EntryInfo) Compressed() bool {
	return e.flags&entryFlagCompressed != 0
}

// StoredSize returns the number of bytes the entry occupies in the archive.
func (e EntryInfo) StoredSize() uint32 {
	if e.Compressed() {
		return e.CompressedSize
	}
	return e.Size
}

func newEntryInfo(a *Archive, i int, name []byte, rec format.Record) EntryInfo {
	info := EntryInfo{
		Name:           string(name),
		Size:           rec.ResourceSize,
		CompressedSize: rec.CompressedSize,
		index:          i,
		offset:         rec.ResourceOffset,
		archive:        a,
	}
	if rec.Compressed() {
		info.flags |= entryFlagCompressed
	}
	return info
}

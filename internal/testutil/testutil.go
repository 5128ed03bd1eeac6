// Package testutil builds raw archives and byte sources for tests.
package testutil

import (
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/meigma/resarc/internal/format"
)

// Entry is an entry to encode with Build.
type Entry struct {
	Name string

	// Data is the stored payload.
	Data []byte

	// Size is the uncompressed size. Zero means len(Data).
	Size uint32

	// Compressed marks Data as compressed; CompressedSize is then len(Data).
	Compressed bool
}

// Build encodes entries in the given order, without sorting or validation,
// so tests can produce archives the writer would refuse.
func Build(tb testing.TB, userdata uint64, entries ...Entry) []byte {
	tb.Helper()

	var pool, table, payload []byte
	tableOff := uint32(format.HeaderSize)
	for _, e := range entries {
		tableOff += uint32(len(e.Name)) + 1
	}
	dataOff := tableOff + uint32(len(entries))*format.RecordSize

	nameOff := uint32(format.HeaderSize)
	for _, e := range entries {
		rec := format.Record{
			NameOffset:     nameOff,
			ResourceOffset: dataOff + uint32(len(payload)),
			ResourceSize:   e.Size,
			CompressedSize: format.Uncompressed,
		}
		if rec.ResourceSize == 0 {
			rec.ResourceSize = uint32(len(e.Data))
		}
		if e.Compressed {
			rec.CompressedSize = uint32(len(e.Data))
		}
		table = rec.Append(table)
		pool = append(append(pool, e.Name...), 0)
		payload = append(payload, e.Data...)
		nameOff += uint32(len(e.Name)) + 1
	}

	h := format.Header{
		Version:          format.Version,
		Userdata:         userdata,
		StringPoolOffset: format.HeaderSize,
		StringPoolSize:   uint32(len(pool)),
		EntryCount:       uint32(len(entries)),
		EntryOffset:      tableOff,
	}
	out := h.Append(nil)
	out = append(out, pool...)
	out = append(out, table...)
	return append(out, payload...)
}

// SetVersion overwrites the header version of an encoded archive.
func SetVersion(buf []byte, v uint32) {
	binary.BigEndian.PutUint32(buf[0:4], v)
}

// SetUint32 overwrites the big-endian word at off.
func SetUint32(buf []byte, off int, v uint32) {
	binary.BigEndian.PutUint32(buf[off:off+4], v)
}

// WriteFile writes data to a new file in a temp directory and returns its path.
func WriteFile(tb testing.TB, data []byte) string {
	tb.Helper()
	path := filepath.Join(tb.TempDir(), "test.arc")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		tb.Fatalf("write archive: %v", err)
	}
	return path
}

// WriteTree creates files (slash-separated relative paths) below a new temp
// directory and returns the directory.
func WriteTree(tb testing.TB, files map[string][]byte) string {
	tb.Helper()
	dir := tb.TempDir()
	for name, data := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			tb.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, data, 0o600); err != nil {
			tb.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

// Source is an in-memory byte source that counts reads.
type Source struct {
	data  []byte
	id    string
	reads atomic.Int64

	// Err, when set, is returned by every ReadAt.
	Err error
}

// NewSource returns a Source over data with the given SourceID.
func NewSource(data []byte, id string) *Source {
	return &Source{data: data, id: id}
}

// ReadAt implements io.ReaderAt semantics over the backing slice.
func (s *Source) ReadAt(p []byte, off int64) (int, error) {
	s.reads.Add(1)
	if s.Err != nil {
		return 0, s.Err
	}
	if off >= int64(len(s.data)) {
		return 0, io.EOF
	}
	n := copy(p, s.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Size returns the length of the backing data.
func (s *Source) Size() int64 {
	return int64(len(s.data))
}

// SourceID returns the identifier given to NewSource.
func (s *Source) SourceID() string {
	return s.id
}

// Reads returns the number of ReadAt calls so far.
func (s *Source) Reads() int64 {
	return s.reads.Load()
}

package resarc

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/opencontainers/go-digest"

	"github.com/meigma/resarc/compress"
	"github.com/meigma/resarc/internal/format"
	"github.com/meigma/resarc/internal/sizing"
)

const (
	// FormatVersion is the only archive version this package reads.
	FormatVersion = format.Version

	// HeaderSize is the size of the fixed archive header in bytes.
	HeaderSize = format.HeaderSize

	// Uncompressed is the CompressedSize value of entries stored as-is.
	Uncompressed = format.Uncompressed
)

// Archive provides lookup and random access to the entries of an archive.
//
// An Archive is created by Wrap (over caller memory) or by Load, LoadMapped
// or Open (over a ByteSource, with the metadata copied into private memory).
// Once created it is immutable: Find and Read are safe for concurrent use.
// Close must not be called while reads are in flight.
type Archive struct {
	src     ByteSource
	owned   bool // metadata copied; Close releases it and the source
	header  format.Header
	rawHead [format.HeaderSize]byte
	idx     atomic.Pointer[format.Index]

	dec             compress.Decompressor
	maxEntrySize    uint64
	maxMetadataSize uint64
	logger          *slog.Logger

	digestOnce sync.Once
	digest     digest.Digest

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// log returns the logger, falling back to a discard logger if nil.
func (a *Archive) log() *slog.Logger {
	if a.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return a.logger
}

func newArchive(src ByteSource, opts []Option) *Archive {
	a := &Archive{
		src:             src,
		maxEntrySize:    DefaultMaxEntrySize,
		maxMetadataSize: DefaultMaxMetadataSize,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.dec == nil {
		a.dec = compress.NewZstd()
	}
	return a
}

// Wrap parses an archive held in memory.
//
// The header and entry table are read in place; nothing is copied and buf
// must stay valid and unmodified for as long as the Archive is used. Close
// is optional for wrapped archives.
//
// Wrap fails with ErrVersionMismatch for a foreign version and with
// ErrInvalidFormat if buf is too short for the header or the regions it
// describes.
func Wrap(buf []byte, opts ...Option) (*Archive, error) {
	h, err := format.ParseHeader(buf)
	if err != nil {
		return nil, err
	}
	table, err := region(buf, h.TableRange(), "entry table")
	if err != nil {
		return nil, err
	}
	pool, err := region(buf, h.PoolRange(), "string pool")
	if err != nil {
		return nil, err
	}
	idx, err := format.NewIndex(h, table, pool)
	if err != nil {
		return nil, err
	}

	a := newArchive(NewMemorySource(buf), opts)
	a.header = h
	copy(a.rawHead[:], buf)
	a.idx.Store(idx)
	return a, nil
}

// region returns buf[r.Off:r.End()] or ErrInvalidFormat.
func region(buf []byte, r format.Range, what string) ([]byte, error) {
	if r.End() > uint64(len(buf)) {
		return nil, fmt.Errorf("%w: %s [%d, %d) outside archive of %d bytes", ErrInvalidFormat, what, r.Off, r.End(), len(buf))
	}
	return buf[r.Off:r.End():r.End()], nil
}

// Load opens the archive file at path.
//
// Only the header, entry table and string pool are read; entry payloads are
// fetched from the file on demand by Read. The returned Archive owns the open
// file and must be closed.
//
// Load fails with ErrIO if the file cannot be opened or is truncated inside
// its metadata, ErrVersionMismatch for a foreign version, and ErrMem if the
// metadata exceeds the configured limit.
func Load(path string, opts ...Option) (*Archive, error) {
	f, err := os.Open(path) //nolint:gosec // User-provided path is intentional
	if err != nil {
		return nil, fmt.Errorf("%w: open archive: %w", ErrIO, err)
	}
	src, err := newFileSource(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	a, err := Open(src, opts...)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return a, nil
}

// LoadMapped is like Load but serves reads from a read-only memory mapping
// of the file instead of positioned file reads.
func LoadMapped(path string, opts ...Option) (*Archive, error) {
	src, err := newMappedSource(path)
	if err != nil {
		return nil, fmt.Errorf("%w: map archive: %w", ErrIO, err)
	}
	a, err := Open(src, opts...)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return a, nil
}

// Open parses the archive stored in src, copying its metadata into memory.
//
// On success the Archive takes ownership of src: Close closes it if it
// implements io.Closer. On failure src is left open.
func Open(src ByteSource, opts ...Option) (*Archive, error) {
	a := newArchive(src, opts)

	if err := readFull(src, a.rawHead[:], 0); err != nil {
		return nil, fmt.Errorf("%w: read header: %w", ErrIO, err)
	}
	h, err := format.ParseHeader(a.rawHead[:])
	if err != nil {
		return nil, err
	}
	a.header = h

	tr, pr := h.TableRange(), h.PoolRange()
	size := src.Size()
	for _, r := range []format.Range{tr, pr} {
		if size < 0 || r.End() > uint64(size) {
			return nil, fmt.Errorf("%w: metadata [%d, %d) beyond end of archive (%d bytes): %w",
				ErrIO, r.Off, r.End(), size, io.ErrUnexpectedEOF)
		}
	}
	total := tr.Len + pr.Len
	if !sizing.Within(total, a.maxMetadataSize) {
		return nil, fmt.Errorf("%w: metadata is %d bytes, limit %d", ErrMem, total, a.maxMetadataSize)
	}
	n, err := sizing.ToInt(total, ErrMem)
	if err != nil {
		return nil, err
	}

	meta := make([]byte, n)
	table, pool := meta[:tr.Len:tr.Len], meta[tr.Len:]
	if err := readFull(src, table, int64(tr.Off)); err != nil {
		return nil, fmt.Errorf("%w: read entry table: %w", ErrIO, err)
	}
	if err := readFull(src, pool, int64(pr.Off)); err != nil {
		return nil, fmt.Errorf("%w: read string pool: %w", ErrIO, err)
	}
	idx, err := format.NewIndex(h, table, pool)
	if err != nil {
		return nil, err
	}
	a.idx.Store(idx)
	a.owned = true

	a.log().Debug("archive loaded",
		"entries", h.EntryCount,
		"metadata_bytes", total,
		"size", size,
	)
	return a, nil
}

// readFull reads exactly len(p) bytes at off.
func readFull(src io.ReaderAt, p []byte, off int64) error {
	n, err := src.ReadAt(p, off)
	if n == len(p) {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return fmt.Errorf("short read (%d of %d bytes): %w", n, len(p), io.ErrUnexpectedEOF)
	}
	return err
}

// index returns the entry index, or nil once a loaded archive is closed.
func (a *Archive) index() *format.Index {
	return a.idx.Load()
}

// Find looks up the entry with the given name.
//
// name must already be in canonical form; Find compares bytes and performs
// no normalization. Lookup is a binary search over the sorted entry table.
// Find returns ErrNotFound when no entry matches exactly.
func (a *Archive) Find(name string) (EntryInfo, error) {
	idx := a.index()
	if idx == nil {
		return EntryInfo{}, ErrClosed
	}
	i, ok := idx.Search(name)
	if !ok {
		return EntryInfo{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return newEntryInfo(a, i, idx.Name(i), idx.Record(i)), nil
}

// Read reads the uncompressed content of info into out.
//
// out must be at least info.Size bytes; only out[:info.Size] is written.
// Uncompressed entries are read directly into out. Compressed entries are
// read into a per-call staging buffer and decompressed into out; when that
// buffer must be allocated, its size is bounded by WithMaxEntrySize.
//
// A payload extending past the end of a loaded archive is a truncated file
// and fails with ErrIO; for a wrapped buffer it fails with ErrInvalidFormat.
//
// On failure the contents of out are unspecified.
func (a *Archive) Read(info EntryInfo, out []byte) error {
	if info.archive != a {
		return ErrInvalidEntry
	}
	if a.closed.Load() {
		return ErrClosed
	}
	if uint64(len(out)) < uint64(info.Size) {
		return fmt.Errorf("%w: %s needs %d bytes, buffer has %d", ErrOutbufferTooSmall, info.Name, info.Size, len(out))
	}
	rng := format.Range{Off: uint64(info.offset), Len: uint64(info.StoredSize())}
	if size := a.src.Size(); size < 0 || rng.End() > uint64(size) {
		if a.owned {
			return fmt.Errorf("%w: %s payload [%d, %d) beyond end of archive (%d bytes): %w",
				ErrIO, info.Name, rng.Off, rng.End(), size, io.ErrUnexpectedEOF)
		}
		return fmt.Errorf("%w: %s payload [%d, %d) outside archive of %d bytes", ErrInvalidFormat, info.Name, rng.Off, rng.End(), size)
	}

	dst := out[:info.Size]
	if !info.Compressed() {
		if err := readFull(a.src, dst, int64(rng.Off)); err != nil {
			return fmt.Errorf("%w: read %s: %w", ErrIO, info.Name, err)
		}
		return nil
	}

	staging, err := a.stage(info.Name, rng)
	if err != nil {
		return err
	}
	n, err := a.dec.Decompress(dst, staging)
	if err != nil {
		if errors.Is(err, compress.ErrShortBuffer) {
			return fmt.Errorf("%w: %s: %w", ErrOutbufferTooSmall, info.Name, err)
		}
		return fmt.Errorf("%w: %s: %w", ErrDecompression, info.Name, err)
	}
	if n != len(dst) {
		return fmt.Errorf("%w: %s decoded to %d bytes, want %d", ErrDecompression, info.Name, n, len(dst))
	}
	return nil
}

// stage returns the stored bytes of rng, sliced in place when the source
// allows it and copied into a fresh buffer otherwise. Only the copy is
// subject to the entry size limit.
func (a *Archive) stage(name string, rng format.Range) ([]byte, error) {
	if s, ok := a.src.(slicer); ok {
		b, err := s.Slice(int64(rng.Off), int64(rng.Len))
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", ErrIO, name, err)
		}
		return b, nil
	}
	if !sizing.Within(rng.Len, a.maxEntrySize) {
		return nil, fmt.Errorf("%w: %s stores %d bytes, staging limit %d", ErrMem, name, rng.Len, a.maxEntrySize)
	}
	buf := make([]byte, rng.Len)
	if err := readFull(a.src, buf, int64(rng.Off)); err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrIO, name, err)
	}
	return buf, nil
}

// ReadFile returns the uncompressed content of the named entry.
func (a *Archive) ReadFile(name string) ([]byte, error) {
	info, err := a.Find(name)
	if err != nil {
		return nil, err
	}
	if !sizing.Within(uint64(info.Size), a.maxEntrySize) {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit %d", ErrMem, name, info.Size, a.maxEntrySize)
	}
	out := make([]byte, info.Size)
	if err := a.Read(info, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Entries returns an iterator over all entries in name order.
func (a *Archive) Entries() iter.Seq[EntryInfo] {
	return a.EntriesWithPrefix("")
}

// EntriesWithPrefix returns an iterator over entries whose name starts with
// prefix, in name order.
func (a *Archive) EntriesWithPrefix(prefix string) iter.Seq[EntryInfo] {
	return func(yield func(EntryInfo) bool) {
		idx := a.index()
		if idx == nil {
			return
		}
		for i := idx.LowerBound(prefix); i < idx.Len(); i++ {
			name := idx.Name(i)
			if !strings.HasPrefix(string(name), prefix) {
				return
			}
			if !yield(newEntryInfo(a, i, name, idx.Record(i))) {
				return
			}
		}
	}
}

// Len returns the number of entries in the archive.
func (a *Archive) Len() int {
	return int(a.header.EntryCount)
}

// EntryCount returns the number of entries recorded in the header.
func (a *Archive) EntryCount() uint32 {
	return a.header.EntryCount
}

// Version returns the header version, which always equals FormatVersion.
func (a *Archive) Version() uint32 {
	return a.header.Version
}

// Userdata returns the opaque userdata value stored in the header.
func (a *Archive) Userdata() uint64 {
	return a.header.Userdata
}

// Source returns the ByteSource entries are read from.
func (a *Archive) Source() ByteSource {
	return a.src
}

// Digest returns the sha256 digest of the header, entry table and string
// pool. Two archives with the same digest have identical indexes.
//
// Digest returns the empty digest once a loaded archive is closed.
func (a *Archive) Digest() digest.Digest {
	idx := a.index()
	if idx == nil {
		return ""
	}
	a.digestOnce.Do(func() {
		d := digest.Canonical.Digester()
		h := d.Hash()
		table, pool := idx.Raw()
		_, _ = h.Write(a.rawHead[:]) //nolint:errcheck // hash writes never fail
		_, _ = h.Write(table)        //nolint:errcheck // hash writes never fail
		_, _ = h.Write(pool)         //nolint:errcheck // hash writes never fail
		a.digest = d.Digest()
	})
	return a.digest
}

// Close releases a loaded archive: the metadata copy is dropped and the
// source is closed if it implements io.Closer. Subsequent Find and Read
// calls fail with ErrClosed.
//
// Close on a wrapped archive does nothing, since the caller owns the
// memory. Close is idempotent.
func (a *Archive) Close() error {
	if !a.owned {
		return nil
	}
	a.closeOnce.Do(func() {
		a.closed.Store(true)
		a.idx.Store(nil)
		if c, ok := a.src.(io.Closer); ok {
			a.closeErr = c.Close()
		}
		a.log().Debug("archive closed", "entries", a.header.EntryCount)
	})
	return a.closeErr
}

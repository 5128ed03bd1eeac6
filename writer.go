package resarc

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"strings"

	"github.com/meigma/resarc/compress"
	"github.com/meigma/resarc/internal/format"
	"github.com/meigma/resarc/internal/write"
)

// Writer builds an archive in memory.
//
// Entries may be added in any order; WriteTo sorts them by name. Payloads are
// compressed as they are added, so a Writer holds the stored form of every
// entry until it is written. A Writer is not safe for concurrent use.
type Writer struct {
	cfg     createConfig
	entries []pendingEntry
	names   map[string]struct{}
	stored  uint64
}

type pendingEntry struct {
	name           string
	size           uint32
	compressedSize uint32
	data           []byte
}

// NewWriter returns an empty Writer configured by opts.
func NewWriter(opts ...CreateOption) *Writer {
	return &Writer{
		cfg:   newCreateConfig(opts),
		names: make(map[string]struct{}),
	}
}

// Len returns the number of entries added so far.
func (w *Writer) Len() int {
	return len(w.entries)
}

// Add adds an entry. data is compressed or copied before Add returns.
//
// The name is stored verbatim: it must be non-empty, must not contain NUL,
// and must not repeat a name already added. Readers look names up with an
// exact byte comparison.
func (w *Writer) Add(name string, data []byte) error {
	if name == "" || strings.IndexByte(name, 0) >= 0 {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if _, dup := w.names[name]; dup {
		return fmt.Errorf("%w: %q", ErrDuplicateEntry, name)
	}
	if w.cfg.maxFiles > 0 && len(w.entries) >= w.cfg.maxFiles {
		return fmt.Errorf("%w: limit %d", ErrTooManyFiles, w.cfg.maxFiles)
	}
	// Uncompressed is reserved as the sentinel, so sizes must stay below it.
	if uint64(len(data)) >= uint64(format.Uncompressed) {
		return fmt.Errorf("%w: %s is %d bytes", ErrSizeOverflow, name, len(data))
	}

	e := pendingEntry{
		name:           name,
		size:           uint32(len(data)), //nolint:gosec // checked above
		compressedSize: format.Uncompressed,
	}
	stored, compressed, err := w.encode(name, data)
	if err != nil {
		return fmt.Errorf("compress %s: %w", name, err)
	}
	if compressed {
		e.compressedSize = uint32(len(stored)) //nolint:gosec // smaller than data
	}
	e.data = stored

	w.entries = append(w.entries, e)
	w.names[name] = struct{}{}
	w.stored += uint64(len(stored))
	return nil
}

// encode returns the stored form of data and whether it is compressed.
func (w *Writer) encode(name string, data []byte) ([]byte, bool, error) {
	if w.cfg.codec == nil || write.ShouldSkip(name, int64(len(data)), w.cfg.skipCompression) {
		return bytes.Clone(data), false, nil
	}
	out, err := w.cfg.codec.Compress(data)
	if errors.Is(err, compress.ErrIncompressible) {
		return bytes.Clone(data), false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if len(out) >= len(data) {
		return bytes.Clone(data), false, nil
	}
	return out, true, nil
}

// layout computes the header and entry records for the sorted entries.
func (w *Writer) layout() (format.Header, []byte, []byte, error) {
	slices.SortFunc(w.entries, func(a, b pendingEntry) int {
		return strings.Compare(a.name, b.name)
	})

	var poolSize uint64
	for _, e := range w.entries {
		poolSize += uint64(len(e.name)) + 1
	}
	poolOff := uint64(format.HeaderSize)
	tableOff := poolOff + poolSize
	dataOff := tableOff + uint64(len(w.entries))*format.RecordSize
	if dataOff+w.stored > math.MaxUint32 {
		return format.Header{}, nil, nil, fmt.Errorf("%w: archive would be %d bytes", ErrSizeOverflow, dataOff+w.stored)
	}

	h := format.Header{
		Version:          format.Version,
		Userdata:         w.cfg.userdata,
		StringPoolOffset: uint32(poolOff),
		StringPoolSize:   uint32(poolSize),
		EntryCount:       uint32(len(w.entries)), //nolint:gosec // bounded by dataOff
		EntryOffset:      uint32(tableOff),
	}

	pool := make([]byte, 0, poolSize)
	table := make([]byte, 0, len(w.entries)*format.RecordSize)
	nameOff, payloadOff := poolOff, dataOff
	for _, e := range w.entries {
		rec := format.Record{
			NameOffset:     uint32(nameOff),
			ResourceOffset: uint32(payloadOff),
			ResourceSize:   e.size,
			CompressedSize: e.compressedSize,
		}
		table = rec.Append(table)
		pool = append(pool, e.name...)
		pool = append(pool, 0)
		nameOff += uint64(len(e.name)) + 1
		payloadOff += uint64(len(e.data))
	}
	return h, table, pool, nil
}

// WriteTo writes the archive to dst: header, string pool, entry table, then
// payloads in name order.
func (w *Writer) WriteTo(dst io.Writer) (int64, error) {
	h, table, pool, err := w.layout()
	if err != nil {
		return 0, err
	}

	cw := &countingWriter{w: dst}
	bw := bufio.NewWriterSize(cw, 64<<10)
	var head [format.HeaderSize]byte
	chunks := [][]byte{h.Append(head[:0]), pool, table}
	for _, e := range w.entries {
		chunks = append(chunks, e.data)
	}
	for _, c := range chunks {
		if _, err := bw.Write(c); err != nil {
			return cw.n, err
		}
	}
	if err := bw.Flush(); err != nil {
		return cw.n, err
	}

	w.cfg.logger.Debug("archive written",
		"entries", h.EntryCount,
		"bytes", cw.n,
	)
	return cw.n, nil
}

// Bytes returns the encoded archive.
func (w *Writer) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

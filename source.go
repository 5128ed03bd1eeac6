package resarc

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/opencontainers/go-digest"
	"golang.org/x/exp/mmap"
)

// ByteSource provides random access to archive bytes.
//
// ReadAt must be a positioned read with no shared cursor so that concurrent
// calls at different offsets never interfere. Implementations exist for
// memory buffers, local files (*os.File), memory-mapped files, HTTP range
// requests (package http) and block caches (package cache).
// SourceID must return a stable identifier for the underlying content.
type ByteSource interface {
	io.ReaderAt
	Size() int64
	SourceID() string
}

// slicer is implemented by sources that can expose stored bytes without copying.
type slicer interface {
	Slice(off, n int64) ([]byte, error)
}

// memorySource serves reads from a caller-owned buffer.
type memorySource struct {
	data []byte

	idOnce sync.Once
	id     string
}

// NewMemorySource returns a ByteSource over data. The buffer is not copied
// and must not be modified while the source is in use.
func NewMemorySource(data []byte) ByteSource {
	return &memorySource{data: data}
}

// ReadAt implements io.ReaderAt.
func (m *memorySource) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("read at %d: negative offset", off)
	}
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Slice returns data[off:off+n] without copying.
func (m *memorySource) Slice(off, n int64) ([]byte, error) {
	if off < 0 || n < 0 || off > int64(len(m.data)) || n > int64(len(m.data))-off {
		return nil, io.ErrUnexpectedEOF
	}
	return m.data[off : off+n : off+n], nil
}

// Size returns the buffer length.
func (m *memorySource) Size() int64 {
	return int64(len(m.data))
}

// SourceID returns the content digest of the buffer, computed on first use.
func (m *memorySource) SourceID() string {
	m.idOnce.Do(func() {
		m.id = "mem:" + digest.FromBytes(m.data).String()
	})
	return m.id
}

// fileSource wraps *os.File to implement ByteSource.
// os.File has ReadAt but not Size, so we cache the size at construction.
type fileSource struct {
	file     *os.File
	size     int64
	sourceID string
}

// newFileSource creates a fileSource from an open file.
func newFileSource(f *os.File) (*fileSource, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat archive file: %w", err)
	}
	return &fileSource{file: f, size: info.Size(), sourceID: fileSourceID(f.Name(), info)}, nil
}

// ReadAt implements io.ReaderAt using pread.
func (fs *fileSource) ReadAt(p []byte, off int64) (int, error) {
	return fs.file.ReadAt(p, off)
}

// Size returns the size of the file when it was opened.
func (fs *fileSource) Size() int64 {
	return fs.size
}

// SourceID returns an identifier derived from path, size and mtime.
func (fs *fileSource) SourceID() string {
	return fs.sourceID
}

// Close closes the file.
func (fs *fileSource) Close() error {
	return fs.file.Close()
}

// mappedSource serves reads from a read-only memory mapping.
type mappedSource struct {
	r        *mmap.ReaderAt
	sourceID string
}

func newMappedSource(path string) (*mappedSource, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	r, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	return &mappedSource{r: r, sourceID: fileSourceID(path, info)}, nil
}

// ReadAt implements io.ReaderAt.
func (ms *mappedSource) ReadAt(p []byte, off int64) (int, error) {
	return ms.r.ReadAt(p, off)
}

// Size returns the length of the mapping.
func (ms *mappedSource) Size() int64 {
	return int64(ms.r.Len())
}

// SourceID returns an identifier derived from path, size and mtime.
func (ms *mappedSource) SourceID() string {
	return ms.sourceID
}

// Close unmaps the file.
func (ms *mappedSource) Close() error {
	return ms.r.Close()
}

func fileSourceID(path string, info os.FileInfo) string {
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	return fmt.Sprintf("file:%s:%d:%d", absPath, info.Size(), info.ModTime().UnixNano())
}

// Interface compliance.
var (
	_ ByteSource = (*memorySource)(nil)
	_ ByteSource = (*fileSource)(nil)
	_ ByteSource = (*mappedSource)(nil)
	_ io.Closer  = (*fileSource)(nil)
	_ io.Closer  = (*mappedSource)(nil)
	_ slicer     = (*memorySource)(nil)
)

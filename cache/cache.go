package cache

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// ByteSource provides random access to data for block caching.
type ByteSource interface {
	io.ReaderAt

	// Size returns the total size of the data source in bytes.
	Size() int64

	// SourceID returns a unique identifier for this data source.
	// The ID is part of the cache key, so it must be stable across calls
	// and unique across different sources.
	SourceID() string
}

const (
	// DefaultBlockSize is the default block size.
	DefaultBlockSize int64 = 64 << 10

	// DefaultMaxBytes is the default memory budget for cached blocks.
	DefaultMaxBytes int64 = 64 << 20

	// DefaultMaxBlocksPerRead caps cached blocks per ReadAt; larger reads
	// go straight to the source.
	DefaultMaxBlocksPerRead = 16
)

type blockKey struct {
	source    string
	blockSize int64
	index     int64
}

// Stats reports cache effectiveness counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Bypassed  int64
	Evictions int64
	Blocks    int
	Bytes     int64
}

// BlockCache is an in-memory LRU of source blocks. It is safe for concurrent
// use and may be shared by any number of wrapped sources.
type BlockCache struct {
	blocks     *lru.Cache[blockKey, []byte]
	fetchGroup singleflight.Group
	blockSize  int64
	maxPerRead int
	maxBytes   int64
	logger     *slog.Logger
	bytes      atomic.Int64
	hits       atomic.Int64
	misses     atomic.Int64
	bypassed   atomic.Int64
	evictions  atomic.Int64
}

// Option configures a BlockCache.
type Option func(*BlockCache)

// WithBlockSize sets the block size in bytes.
func WithBlockSize(n int64) Option {
	return func(c *BlockCache) {
		c.blockSize = n
	}
}

// WithMaxBytes sets the memory budget. The cache holds at most
// maxBytes/blockSize blocks.
func WithMaxBytes(n int64) Option {
	return func(c *BlockCache) {
		c.maxBytes = n
	}
}

// WithMaxBlocksPerRead bypasses caching when a ReadAt spans more than n
// blocks. Values <= 0 disable the limit.
func WithMaxBlocksPerRead(n int) Option {
	return func(c *BlockCache) {
		c.maxPerRead = n
	}
}

// WithLogger sets the logger for cache lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(c *BlockCache) {
		c.logger = logger
	}
}

// New creates a BlockCache.
func New(opts ...Option) (*BlockCache, error) {
	c := &BlockCache{
		blockSize:  DefaultBlockSize,
		maxBytes:   DefaultMaxBytes,
		maxPerRead: DefaultMaxBlocksPerRead,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	if c.blockSize <= 0 || c.blockSize > math.MaxInt32 {
		return nil, fmt.Errorf("block cache: block size %d out of range", c.blockSize)
	}
	if c.maxBytes < c.blockSize {
		return nil, fmt.Errorf("block cache: max bytes %d smaller than one block", c.maxBytes)
	}

	blocks, err := lru.NewWithEvict(int(c.maxBytes/c.blockSize), func(_ blockKey, data []byte) {
		c.bytes.Add(-int64(len(data)))
		c.evictions.Add(1)
	})
	if err != nil {
		return nil, fmt.Errorf("block cache: %w", err)
	}
	c.blocks = blocks
	return c, nil
}

// Wrap returns a ByteSource that serves reads of src through the cache.
func (c *BlockCache) Wrap(src ByteSource) (ByteSource, error) {
	if src == nil {
		return nil, errors.New("block cache: source is nil")
	}
	id := src.SourceID()
	if id == "" {
		return nil, errors.New("block cache: source id is empty")
	}
	c.logger.Debug("block cache wrap",
		"source", id,
		"size", src.Size(),
		"block_size", c.blockSize,
	)
	return &cachedSource{src: src, cache: c, sourceID: id}, nil
}

// Stats returns a snapshot of the cache counters.
func (c *BlockCache) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Bypassed:  c.bypassed.Load(),
		Evictions: c.evictions.Load(),
		Blocks:    c.blocks.Len(),
		Bytes:     c.bytes.Load(),
	}
}

// SizeBytes returns the number of bytes currently cached.
func (c *BlockCache) SizeBytes() int64 {
	return c.bytes.Load()
}

// Purge drops every cached block.
func (c *BlockCache) Purge() {
	c.blocks.Purge()
}

// block returns the cached block or fetches it, deduplicating concurrent
// fetches of the same key.
func (c *BlockCache) block(key blockKey, blockLen int64, fetch func() ([]byte, error)) ([]byte, error) {
	if data, ok := c.blocks.Get(key); ok && int64(len(data)) == blockLen {
		c.hits.Add(1)
		return data, nil
	}

	flightKey := key.source + "\x00" + strconv.FormatInt(key.blockSize, 10) + "\x00" + strconv.FormatInt(key.index, 10)
	result, err, _ := c.fetchGroup.Do(flightKey, func() (any, error) {
		if data, ok := c.blocks.Peek(key); ok && int64(len(data)) == blockLen {
			return data, nil
		}
		c.misses.Add(1)
		data, err := fetch()
		if err != nil {
			return nil, err
		}
		if int64(len(data)) != blockLen {
			return nil, io.ErrUnexpectedEOF
		}
		if prev, ok := c.blocks.Peek(key); ok {
			c.bytes.Add(-int64(len(prev)))
		}
		c.blocks.Add(key, data)
		c.bytes.Add(int64(len(data)))
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil //nolint:errcheck // type assertion always succeeds when err is nil
}

// cachedSource wraps a ByteSource with block-level caching.
type cachedSource struct {
	src      ByteSource
	cache    *BlockCache
	sourceID string
}

func (s *cachedSource) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if off < 0 {
		return 0, fmt.Errorf("read at %d: negative offset", off)
	}
	size := s.src.Size()
	if off >= size {
		return 0, io.EOF
	}

	expected := min(int64(len(p)), size-off)
	bs := s.cache.blockSize
	startBlock := off / bs
	endBlock := (off + expected - 1) / bs

	if limit := s.cache.maxPerRead; limit > 0 && endBlock-startBlock+1 > int64(limit) {
		s.cache.bypassed.Add(1)
		return s.src.ReadAt(p, off)
	}

	var n int64
	for idx := startBlock; idx <= endBlock; idx++ {
		blockStart := idx * bs
		blockEnd := min(blockStart+bs, size)
		blockLen := blockEnd - blockStart

		key := blockKey{source: s.sourceID, blockSize: bs, index: idx}
		data, err := s.cache.block(key, blockLen, func() ([]byte, error) {
			return s.fetch(blockStart, blockLen)
		})
		if err != nil {
			return int(n), err
		}

		copyStart := max(off, blockStart)
		copyEnd := min(off+expected, blockEnd)
		n += int64(copy(p[copyStart-off:copyEnd-off], data[copyStart-blockStart:copyEnd-blockStart]))
	}

	if expected < int64(len(p)) {
		return int(n), io.EOF
	}
	return int(n), nil
}

func (s *cachedSource) Size() int64 {
	return s.src.Size()
}

func (s *cachedSource) SourceID() string {
	return s.sourceID
}

// Close closes the wrapped source if it is an io.Closer. Cached blocks stay
// in the shared cache.
func (s *cachedSource) Close() error {
	if c, ok := s.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (s *cachedSource) fetch(off, length int64) ([]byte, error) {
	buf := make([]byte, length)
	n, err := s.src.ReadAt(buf, off)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if int64(n) != length {
		return nil, io.ErrUnexpectedEOF
	}
	return buf, nil
}

// Package cache provides an in-memory LRU block cache for archive byte sources.
//
// A BlockCache splits reads into fixed-size blocks keyed by the source's
// SourceID and keeps the most recently used blocks in memory. It is meant for
// sources where each ReadAt is expensive, such as HTTP range requests:
// opening an archive and reading neighbouring small entries then costs a
// handful of round trips instead of one per read.
//
// Concurrent misses for the same block are collapsed into a single fetch.
package cache

// Package compress provides the block codecs used for archive payloads.
//
// An archive does not record which codec compressed its entries; reader and
// writer must agree on one. Zstd is the default. LZ4 block format is provided
// for archives produced by tooling that packs LZ4, and S2 for fast
// decompression at a lower ratio.
//
// Decompression is whole-block: the caller knows the uncompressed size from
// the entry table and passes a destination of exactly that length.
package compress

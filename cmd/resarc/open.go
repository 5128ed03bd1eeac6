package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/meigma/resarc"
	"github.com/meigma/resarc/cache"
	"github.com/meigma/resarc/compress"
	archttp "github.com/meigma/resarc/http"
)

// readFlags are the flags shared by commands that open an archive.
type readFlags struct {
	verbose   bool
	mmap      bool
	codec     string
	blockSize int64
	cacheSize int64
}

func (rf *readFlags) register(fs *flag.FlagSet) {
	fs.BoolVar(&rf.mmap, "mmap", false, "memory-map local archives instead of using positioned reads")
	fs.StringVar(&rf.codec, "codec", "zstd", "decompressor for compressed entries (zstd, lz4, s2)")
	fs.Int64Var(&rf.blockSize, "block-size", cache.DefaultBlockSize, "block size for remote archives")
	fs.Int64Var(&rf.cacheSize, "cache-size", cache.DefaultMaxBytes, "memory budget for remote archive blocks")
}

// openArchive opens target as a local path or an http(s) URL.
func (rf *readFlags) openArchive(ctx context.Context, e *env, target string) (*resarc.Archive, error) {
	codec, err := compress.ByName(rf.codec)
	if err != nil {
		return nil, err
	}
	opts := []resarc.Option{resarc.WithLogger(e.logger)}
	if codec != nil {
		opts = append(opts, resarc.WithDecompressor(codec))
	}

	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		if rf.mmap {
			return resarc.LoadMapped(target, opts...)
		}
		return resarc.Load(target, opts...)
	}

	src, err := archttp.NewSource(ctx, target, archttp.WithPinnedContent(), archttp.WithLogger(e.logger))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", resarc.ErrIO, err)
	}
	bc, err := cache.New(
		cache.WithBlockSize(rf.blockSize),
		cache.WithMaxBytes(rf.cacheSize),
		cache.WithLogger(e.logger),
	)
	if err != nil {
		return nil, err
	}
	cached, err := bc.Wrap(src)
	if err != nil {
		return nil, err
	}
	return resarc.Open(cached, opts...)
}

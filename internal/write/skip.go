// Package write holds helpers shared by the archive writer: compression skip
// predicates and the directory walk used by Create.
package write

import (
	"path"
	"strings"
)

// SkipFunc reports whether the named payload should be stored uncompressed.
// It is called once per entry and should be inexpensive.
type SkipFunc func(name string, size int64) bool

// DefaultSkip returns a SkipFunc that skips payloads smaller than minSize
// and names with extensions whose content is already compressed.
func DefaultSkip(minSize int64) SkipFunc {
	return func(name string, size int64) bool {
		if minSize > 0 && size < minSize {
			return true
		}
		_, ok := compressedExts[strings.ToLower(path.Ext(name))]
		return ok
	}
}

// ShouldSkip reports whether any predicate matches.
func ShouldSkip(name string, size int64, predicates []SkipFunc) bool {
	for _, fn := range predicates {
		if fn != nil && fn(name, size) {
			return true
		}
	}
	return false
}

var compressedExts = map[string]struct{}{
	".7z":    {},
	".aac":   {},
	".astc":  {},
	".avif":  {},
	".basis": {},
	".br":    {},
	".bz2":   {},
	".gif":   {},
	".gz":    {},
	".jpeg":  {},
	".jpg":   {},
	".ktx2":  {},
	".lz4":   {},
	".mp3":   {},
	".mp4":   {},
	".ogg":   {},
	".opus":  {},
	".png":   {},
	".webm":  {},
	".webp":  {},
	".woff2": {},
	".xz":    {},
	".zip":   {},
	".zst":   {},
}

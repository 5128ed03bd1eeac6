// Package sizing provides overflow-checked size conversions for archive offsets.
package sizing

import "math"

// ToInt converts a uint64 to int, returning overflowErr if it doesn't fit.
func ToInt(size uint64, overflowErr error) (int, error) {
	if size > uint64(math.MaxInt) {
		return 0, overflowErr
	}
	return int(size), nil
}

// Within reports whether n is allowed under limit. A zero limit disables the check.
func Within(n, limit uint64) bool {
	return limit == 0 || n <= limit
}

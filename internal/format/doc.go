// Package format implements the on-disk layout of resource archives.
//
// An archive starts with a fixed 32-byte header, followed (at offsets the
// header records) by a table of fixed 16-byte entry records and a string pool
// of NUL-terminated entry names. All integers are big-endian. Entry records
// are sorted by the byte-wise order of the names they point to, which makes
// lookup a binary search over the table.
//
// The package owns no storage: it decodes headers and records from byte
// slices supplied by the caller and hands out views that alias them.
package format

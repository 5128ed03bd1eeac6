package format

import (
	"bytes"
	"fmt"
	"sort"
)

// Index provides lookups over a decoded header, entry table and string pool.
//
// Index does not copy its inputs. Records are decoded on demand from the raw
// table bytes and names are returned as views into the pool, so both slices
// must stay alive and unmodified for the lifetime of the Index.
type Index struct {
	header Header
	table  []byte
	pool   []byte
}

// NewIndex validates table and pool against h and returns an Index over them.
//
// table must hold exactly EntryCount records and pool exactly StringPoolSize
// bytes. Every record must name a NUL-terminated string that lies entirely
// inside the pool. Sort order is not checked; it is the producer's job.
func NewIndex(h Header, table, pool []byte) (*Index, error) {
	if want := h.TableRange().Len; uint64(len(table)) != want {
		return nil, fmt.Errorf("%w: entry table is %d bytes, want %d", ErrInvalidFormat, len(table), want)
	}
	if want := h.PoolRange().Len; uint64(len(pool)) != want {
		return nil, fmt.Errorf("%w: string pool is %d bytes, want %d", ErrInvalidFormat, len(pool), want)
	}
	idx := &Index{header: h, table: table, pool: pool}
	for i := range idx.Len() {
		rec := idx.Record(i)
		if _, err := idx.nameAt(rec.NameOffset); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
	}
	return idx, nil
}

// Header returns the header the index was built from.
func (idx *Index) Header() Header {
	return idx.header
}

// Raw returns the entry table and string pool bytes the index aliases.
func (idx *Index) Raw() (table, pool []byte) {
	return idx.table, idx.pool
}

// Len returns the number of entries.
func (idx *Index) Len() int {
	return int(idx.header.EntryCount)
}

// Record decodes the i-th entry record. It panics if i is out of range.
func (idx *Index) Record(i int) Record {
	off := i * RecordSize
	return decodeRecord(idx.table[off : off+RecordSize])
}

// Name returns the name of the i-th entry as a view into the pool.
func (idx *Index) Name(i int) []byte {
	return idx.NameAt(idx.Record(i).NameOffset)
}

// NameAt returns the NUL-terminated name starting at the absolute offset
// nameOffset, without the terminator. The result aliases the pool and has
// its capacity clipped so appends cannot clobber it. Offsets that were not
// validated by NewIndex yield nil.
func (idx *Index) NameAt(nameOffset uint32) []byte {
	name, err := idx.nameAt(nameOffset)
	if err != nil {
		return nil
	}
	return name
}

func (idx *Index) nameAt(nameOffset uint32) ([]byte, error) {
	base := idx.header.StringPoolOffset
	if nameOffset < base || uint64(nameOffset-base) >= uint64(len(idx.pool)) {
		return nil, fmt.Errorf("%w: name offset %d outside string pool [%d, %d)",
			ErrInvalidFormat, nameOffset, base, idx.header.PoolRange().End())
	}
	rel := int(nameOffset - base)
	n := bytes.IndexByte(idx.pool[rel:], 0)
	if n < 0 {
		return nil, fmt.Errorf("%w: name at offset %d is not terminated inside the string pool", ErrInvalidFormat, nameOffset)
	}
	return idx.pool[rel : rel+n : rel+n], nil
}

// Search returns the position of name in the entry table.
// It is a binary search and relies on the table being sorted.
func (idx *Index) Search(name string) (int, bool) {
	i := idx.LowerBound(name)
	if i < idx.Len() && string(idx.Name(i)) == name {
		return i, true
	}
	return i, false
}

// LowerBound returns the first position whose name is not less than key.
func (idx *Index) LowerBound(key string) int {
	return sort.Search(idx.Len(), func(i int) bool {
		return string(idx.Name(i)) >= key
	})
}

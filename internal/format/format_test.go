package format

import (
	"encoding/binary"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// layout builds the metadata of an archive whose pool starts right after the
// header and whose table follows the pool. names must already be sorted.
func layout(t *testing.T, names ...string) (Header, []byte, []byte) {
	t.Helper()

	var pool []byte
	offsets := make([]uint32, len(names))
	for i, name := range names {
		offsets[i] = uint32(HeaderSize + len(pool))
		pool = append(pool, name...)
		pool = append(pool, 0)
	}
	h := Header{
		Version:          Version,
		StringPoolOffset: HeaderSize,
		StringPoolSize:   uint32(len(pool)),
		EntryCount:       uint32(len(names)),
		EntryOffset:      uint32(HeaderSize + len(pool)),
	}
	var table []byte
	for i := range names {
		table = Record{
			NameOffset:     offsets[i],
			ResourceOffset: uint32(1000 + i*10),
			ResourceSize:   uint32(i + 1),
			CompressedSize: Uncompressed,
		}.Append(table)
	}
	return h, table, pool
}

func TestParseHeader(t *testing.T) {
	t.Parallel()

	want := Header{
		Version:          Version,
		Userdata:         0x0102030405060708,
		StringPoolOffset: 32,
		StringPoolSize:   17,
		EntryCount:       3,
		EntryOffset:      49,
	}
	buf := want.Append(nil)
	require.Len(t, buf, HeaderSize)

	// Big-endian on the wire.
	assert.Equal(t, []byte{0, 0, 0, 4}, buf[0:4])
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, buf[8:16])

	got, err := ParseHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestParseHeader_IgnoresPad(t *testing.T) {
	t.Parallel()

	buf := Header{Version: Version}.Append(nil)
	binary.BigEndian.PutUint32(buf[4:8], 0xdeadbeef)

	got, err := ParseHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xdeadbeef), got.Pad)

	// Pad is always zero on write.
	assert.Equal(t, []byte{0, 0, 0, 0}, got.Append(nil)[4:8])
}

func TestParseHeader_Errors(t *testing.T) {
	t.Parallel()

	garbage := make([]byte, HeaderSize)
	for i := range garbage {
		garbage[i] = 0xff
	}

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{name: "empty", data: nil, wantErr: ErrInvalidFormat},
		{name: "short", data: Header{Version: Version}.Append(nil)[:HeaderSize-1], wantErr: ErrInvalidFormat},
		{name: "older version", data: Header{Version: Version - 1}.Append(nil), wantErr: ErrVersionMismatch},
		{name: "newer version", data: Header{Version: Version + 1}.Append(nil), wantErr: ErrVersionMismatch},
		{name: "foreign version with garbage fields", data: garbage, wantErr: ErrVersionMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseHeader(tt.data)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestHeaderRanges(t *testing.T) {
	t.Parallel()

	h := Header{StringPoolOffset: 0xFFFFFFFF, StringPoolSize: 0xFFFFFFFF, EntryCount: 0xFFFFFFFF, EntryOffset: 0xFFFFFFFF}
	assert.Equal(t, uint64(0xFFFFFFFF)*2, h.PoolRange().End())
	assert.Equal(t, uint64(0xFFFFFFFF)*RecordSize, h.TableRange().Len)
}

func TestRecord(t *testing.T) {
	t.Parallel()

	plain := Record{ResourceOffset: 10, ResourceSize: 5, CompressedSize: Uncompressed}
	assert.False(t, plain.Compressed())
	assert.Equal(t, uint32(5), plain.StoredSize())
	assert.Equal(t, Range{Off: 10, Len: 5}, plain.StoredRange())

	packed := Record{ResourceOffset: 20, ResourceSize: 10, CompressedSize: 3}
	assert.True(t, packed.Compressed())
	assert.Equal(t, uint32(3), packed.StoredSize())

	buf := packed.Append(nil)
	require.Len(t, buf, RecordSize)
	assert.Equal(t, packed, decodeRecord(buf))
}

func TestNewIndex(t *testing.T) {
	t.Parallel()

	h, table, pool := layout(t, "a.txt", "b.bin", "dir/c")
	idx, err := NewIndex(h, table, pool)
	require.NoError(t, err)

	assert.Equal(t, 3, idx.Len())
	assert.Equal(t, "a.txt", string(idx.Name(0)))
	assert.Equal(t, "dir/c", string(idx.Name(2)))
	assert.Equal(t, uint32(1010), idx.Record(1).ResourceOffset)

	name := idx.Name(0)
	assert.Equal(t, len(name), cap(name), "name view must not expose the rest of the pool")
}

func TestNewIndex_Empty(t *testing.T) {
	t.Parallel()

	h, table, pool := layout(t)
	idx, err := NewIndex(h, table, pool)
	require.NoError(t, err)
	assert.Equal(t, 0, idx.Len())

	_, ok := idx.Search("anything")
	assert.False(t, ok)
}

func TestNewIndex_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(h *Header, table, pool []byte) ([]byte, []byte)
	}{
		{
			name: "table too short",
			mutate: func(_ *Header, table, pool []byte) ([]byte, []byte) {
				return table[:len(table)-1], pool
			},
		},
		{
			name: "pool too short",
			mutate: func(_ *Header, table, pool []byte) ([]byte, []byte) {
				return table, pool[:len(pool)-1]
			},
		},
		{
			name: "name before pool",
			mutate: func(_ *Header, table, pool []byte) ([]byte, []byte) {
				binary.BigEndian.PutUint32(table[0:4], HeaderSize-1)
				return table, pool
			},
		},
		{
			name: "name past pool",
			mutate: func(h *Header, table, pool []byte) ([]byte, []byte) {
				binary.BigEndian.PutUint32(table[0:4], uint32(h.PoolRange().End()))
				return table, pool
			},
		},
		{
			name: "unterminated name",
			mutate: func(_ *Header, table, pool []byte) ([]byte, []byte) {
				pool[len(pool)-1] = 'x'
				return table, pool
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h, table, pool := layout(t, "a", "b")
			table, pool = tt.mutate(&h, table, pool)
			_, err := NewIndex(h, table, pool)
			require.ErrorIs(t, err, ErrInvalidFormat)
		})
	}
}

func TestIndexSearch(t *testing.T) {
	t.Parallel()

	// Byte-wise order: '/' < upper case < lower case.
	names := []string{"/a", "/a/b", "/ab", "/b.txt", "/c/d/e", "B", "Z", "z"}
	require.True(t, sort.StringsAreSorted(names))
	h, table, pool := layout(t, names...)
	idx, err := NewIndex(h, table, pool)
	require.NoError(t, err)

	for i, name := range names {
		got, ok := idx.Search(name)
		require.True(t, ok, name)
		assert.Equal(t, i, got, name)
	}

	for _, missing := range []string{"", "/", "/a/", "/a/b/c", "/b", "/b.tx", "b.txt", ".txt", "zz", "\xff"} {
		_, ok := idx.Search(missing)
		assert.False(t, ok, missing)
	}
}

func TestIndexLowerBound(t *testing.T) {
	t.Parallel()

	h, table, pool := layout(t, "a", "dir/x", "dir/y", "e")
	idx, err := NewIndex(h, table, pool)
	require.NoError(t, err)

	assert.Equal(t, 0, idx.LowerBound(""))
	assert.Equal(t, 1, idx.LowerBound("dir/"))
	assert.Equal(t, 3, idx.LowerBound("dir0"))
	assert.Equal(t, 4, idx.LowerBound("f"))
}

func TestNameAt_Unvalidated(t *testing.T) {
	t.Parallel()

	h, table, pool := layout(t, "a")
	idx, err := NewIndex(h, table, pool)
	require.NoError(t, err)
	assert.Nil(t, idx.NameAt(0))
	assert.Equal(t, "a", string(idx.NameAt(HeaderSize)))
}

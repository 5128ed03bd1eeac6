package compress

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func codecs() []Codec {
	return []Codec{NewZstd(), NewLZ4(), NewS2()}
}

func TestCodecRoundTrip(t *testing.T) {
	t.Parallel()

	content := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog. "), 64)
	for _, c := range codecs() {
		t.Run(c.Name(), func(t *testing.T) {
			t.Parallel()

			packed, err := c.Compress(content)
			require.NoError(t, err)
			assert.Less(t, len(packed), len(content))

			dst := make([]byte, len(content))
			n, err := c.Decompress(dst, packed)
			require.NoError(t, err)
			assert.Equal(t, len(content), n)
			assert.Equal(t, content, dst)
		})
	}
}

func TestCodecShortBuffer(t *testing.T) {
	t.Parallel()

	content := bytes.Repeat([]byte{'a'}, 4096)
	// LZ4 blocks carry no decoded length; see TestLZ4ShortBufferIsCorrupt.
	for _, c := range []Codec{NewZstd(), NewS2()} {
		t.Run(c.Name(), func(t *testing.T) {
			t.Parallel()

			packed, err := c.Compress(content)
			require.NoError(t, err)

			_, err = c.Decompress(make([]byte, len(content)-1), packed)
			require.ErrorIs(t, err, ErrShortBuffer)
		})
	}
}

func TestLZ4ShortBufferIsCorrupt(t *testing.T) {
	t.Parallel()

	c := NewLZ4()
	content := bytes.Repeat([]byte{'a'}, 4096)
	packed, err := c.Compress(content)
	require.NoError(t, err)

	_, err = c.Decompress(make([]byte, len(content)-1), packed)
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestCodecCorruptInput(t *testing.T) {
	t.Parallel()

	garbage := []byte{0xff, 0xfe, 0xfd, 0xfc, 0xfb, 0xfa, 0xf9, 0xf8, 0xf7}
	for _, c := range codecs() {
		t.Run(c.Name(), func(t *testing.T) {
			t.Parallel()

			_, err := c.Decompress(make([]byte, 16), garbage)
			require.Error(t, err)
		})
	}
}

func TestCodecIncompressible(t *testing.T) {
	t.Parallel()

	for _, c := range codecs() {
		t.Run(c.Name(), func(t *testing.T) {
			t.Parallel()

			_, err := c.Compress([]byte("abc"))
			require.ErrorIs(t, err, ErrIncompressible)
		})
	}
}

func TestZstdConcurrentDecompress(t *testing.T) {
	t.Parallel()

	z := NewZstd(WithDecoderConcurrency(2), WithDecoderLowmem(true))
	inputs := make([][]byte, 8)
	packed := make([][]byte, len(inputs))
	for i := range inputs {
		inputs[i] = bytes.Repeat([]byte{byte('a' + i)}, 1000+i*100)
		var err error
		packed[i], err = z.Compress(inputs[i])
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(inputs))
	outs := make([][]byte, len(inputs))
	for i := range inputs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outs[i] = make([]byte, len(inputs[i]))
			_, errs[i] = z.Decompress(outs[i], packed[i])
		}()
	}
	wg.Wait()

	for i := range inputs {
		require.NoError(t, errs[i])
		assert.Equal(t, inputs[i], outs[i])
	}
}

func TestByName(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"zstd", "lz4", "s2", "ZSTD"} {
		c, err := ByName(name)
		require.NoError(t, err)
		require.NotNil(t, c)
	}

	c, err := ByName("none")
	require.NoError(t, err)
	assert.Nil(t, c)

	_, err = ByName("brotli")
	require.Error(t, err)
}

func TestDecompressorFunc(t *testing.T) {
	t.Parallel()

	var d Decompressor = DecompressorFunc(func(dst, src []byte) (int, error) {
		return copy(dst, src), nil
	})
	dst := make([]byte, 3)
	n, err := d.Decompress(dst, []byte("xyz"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "xyz", string(dst))
}

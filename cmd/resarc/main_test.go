package main

import (
	"bytes"
	"context"
	"flag"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/resarc"
	"github.com/meigma/resarc/internal/testutil"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), err
}

func packFixture(t *testing.T, codec string) (string, map[string][]byte) {
	t.Helper()
	files := map[string][]byte{
		"main/main.collectionc": bytes.Repeat([]byte("collection\n"), 300),
		"main/logo.png":         {0x89, 'P', 'N', 'G'},
		"game.projectc":         []byte("[project]\n"),
	}
	dir := testutil.WriteTree(t, files)
	out := filepath.Join(t.TempDir(), "game.arc")
	_, err := runCLI(t, "pack", "-codec", codec, "-prefix", "/", "-userdata", "9", "-o", out, dir)
	require.NoError(t, err)
	return out, files
}

func TestPackListCat(t *testing.T) {
	t.Parallel()

	for _, codec := range []string{"zstd", "lz4", "s2", "none"} {
		t.Run(codec, func(t *testing.T) {
			t.Parallel()
			arc, files := packFixture(t, codec)

			out, err := runCLI(t, "ls", "-codec", codec, arc)
			require.NoError(t, err)
			assert.Equal(t, "/game.projectc\n/main/logo.png\n/main/main.collectionc\n", out)

			out, err = runCLI(t, "ls", "-prefix", "/main/", "-mmap", arc)
			require.NoError(t, err)
			assert.Equal(t, "/main/logo.png\n/main/main.collectionc\n", out)

			for name, want := range files {
				args := []string{"cat", arc, "/" + name}
				if codec != "none" {
					args = []string{"cat", "-codec", codec, arc, "/" + name}
				}
				out, err = runCLI(t, args...)
				require.NoError(t, err, name)
				assert.Equal(t, string(want), out)
			}
		})
	}
}

func TestCat_NotFound(t *testing.T) {
	t.Parallel()

	arc, _ := packFixture(t, "zstd")
	_, err := runCLI(t, "cat", arc, "/missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "code 1")
}

func TestExtract(t *testing.T) {
	t.Parallel()

	arc, files := packFixture(t, "zstd")
	dest := t.TempDir()
	_, err := runCLI(t, "extract", "-C", dest, "-j", "2", arc)
	require.NoError(t, err)

	for name, want := range files {
		got, err := os.ReadFile(filepath.Join(dest, filepath.FromSlash(name)))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	only := t.TempDir()
	_, err = runCLI(t, "extract", "-C", only, arc, "/game.projectc")
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(only, "main"))
	assert.True(t, os.IsNotExist(err))
}

func TestExtract_PathCollision(t *testing.T) {
	t.Parallel()

	w := resarc.NewWriter()
	require.NoError(t, w.Add("/a", []byte("rooted")))
	require.NoError(t, w.Add("a", []byte("bare")))
	buf, err := w.Bytes()
	require.NoError(t, err)
	arc := testutil.WriteFile(t, buf)

	dest := t.TempDir()
	_, err = runCLI(t, "extract", "-C", dest, arc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "both extract to")
	_, err = os.Stat(filepath.Join(dest, "a"))
	assert.True(t, os.IsNotExist(err))

	// Naming one entry twice is not a collision.
	_, err = runCLI(t, "extract", "-C", dest, arc, "/a", "/a")
	require.NoError(t, err)
	got, err := os.ReadFile(filepath.Join(dest, "a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("rooted"), got)
}

func TestInfo(t *testing.T) {
	t.Parallel()

	arc, _ := packFixture(t, "zstd")
	out, err := runCLI(t, "info", arc)
	require.NoError(t, err)
	assert.Contains(t, out, "version:  4")
	assert.Contains(t, out, "userdata: 0x9")
	assert.Contains(t, out, "entries:  3")
	assert.Contains(t, out, "digest:   sha256:")
}

func TestRemoteArchive(t *testing.T) {
	t.Parallel()

	arc, files := packFixture(t, "zstd")
	server := httptest.NewServer(http.FileServer(http.Dir(filepath.Dir(arc))))
	t.Cleanup(server.Close)
	url := server.URL + "/" + filepath.Base(arc)

	out, err := runCLI(t, "cat", "-block-size", "256", url, "/main/main.collectionc")
	require.NoError(t, err)
	assert.Equal(t, string(files["main/main.collectionc"]), out)

	out, err = runCLI(t, "ls", url)
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(out, "\n"))
}

func TestUsage(t *testing.T) {
	t.Parallel()

	_, err := runCLI(t)
	require.ErrorIs(t, err, flag.ErrHelp)

	_, err = runCLI(t, "bogus")
	require.ErrorContains(t, err, "unknown command")

	_, err = runCLI(t, "pack", "somedir")
	require.Error(t, err)

	_, err = runCLI(t, "ls", "-codec", "brotli", "x.arc")
	require.ErrorContains(t, err, "unknown codec")
}

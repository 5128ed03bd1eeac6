package http_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/resarc"
	archttp "github.com/meigma/resarc/http"
)

func serve(t *testing.T, data []byte) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var requests atomic.Int64
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		requests.Add(1)
		w.Header().Set("ETag", `"v1"`)
		nethttp.ServeContent(w, r, "game.arc", time.Time{}, bytes.NewReader(data))
	}))
	t.Cleanup(server.Close)
	return server, &requests
}

func TestSource_ReadAt(t *testing.T) {
	t.Parallel()

	data := []byte("hello world")
	server, _ := serve(t, data)

	src, err := archttp.NewSource(context.Background(), server.URL, archttp.WithPinnedContent())
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), src.Size())
	assert.Contains(t, src.SourceID(), `etag:"v1"`)

	tests := []struct {
		name    string
		bufSize int
		offset  int64
		wantN   int
		wantErr error
		want    string
	}{
		{"read from middle", 5, 6, 5, nil, "world"},
		{"read past end returns EOF", 10, int64(len(data) - 3), 3, io.EOF, "rld"},
		{"read at end", 4, int64(len(data)), 0, io.EOF, ""},
		{"empty buffer", 0, 3, 0, nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			buf := make([]byte, tt.bufSize)
			n, err := src.ReadAt(buf, tt.offset)
			assert.ErrorIs(t, err, tt.wantErr)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantN, n)
			assert.Equal(t, tt.want, string(buf[:n]))
		})
	}

	_, err = src.ReadAt(make([]byte, 1), -1)
	assert.Error(t, err)
}

func TestSource_ServesArchive(t *testing.T) {
	t.Parallel()

	files := map[string][]byte{
		"/a.txt":    []byte("alpha"),
		"/big.bin":  bytes.Repeat([]byte("compress me "), 500),
		"/dir/c.go": []byte("package c\n"),
	}
	w := resarc.NewWriter()
	for name, data := range files {
		require.NoError(t, w.Add(name, data))
	}
	buf, err := w.Bytes()
	require.NoError(t, err)

	server, requests := serve(t, buf)
	src, err := archttp.NewSource(context.Background(), server.URL)
	require.NoError(t, err)

	a, err := resarc.Open(src)
	require.NoError(t, err)
	defer a.Close()

	before := requests.Load()
	for name, want := range files {
		got, err := a.ReadFile(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, before+int64(len(files)), requests.Load(), "one request per entry")
}

func TestNewSource_RangeUnsupported(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		_, _ = w.Write([]byte("no ranges here"))
	}))
	t.Cleanup(server.Close)

	_, err := archttp.NewSource(context.Background(), server.URL)
	require.ErrorIs(t, err, archttp.ErrRangeUnsupported)
}

func TestNewSource_Status(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(nethttp.NotFoundHandler())
	t.Cleanup(server.Close)

	_, err := archttp.NewSource(context.Background(), server.URL)
	var statusErr *archttp.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, nethttp.StatusNotFound, statusErr.Code)
}

func TestNewSource_EmptyContent(t *testing.T) {
	t.Parallel()

	server, _ := serve(t, nil)
	src, err := archttp.NewSource(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Zero(t, src.Size())
}

func TestNewSource_Canceled(t *testing.T) {
	t.Parallel()

	server, _ := serve(t, []byte("data"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := archttp.NewSource(ctx, server.URL)
	require.ErrorIs(t, err, context.Canceled)
}

func TestSource_PinnedContentChanged(t *testing.T) {
	t.Parallel()

	var version atomic.Int64
	version.Store(1)
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("ETag", fmt.Sprintf(`"v%d"`, version.Load()))
		nethttp.ServeContent(w, r, "x", time.Time{}, bytes.NewReader([]byte("0123456789")))
	}))
	t.Cleanup(server.Close)

	src, err := archttp.NewSource(context.Background(), server.URL, archttp.WithPinnedContent())
	require.NoError(t, err)

	p := make([]byte, 3)
	_, err = src.ReadAt(p, 2)
	require.NoError(t, err)

	version.Store(2)
	_, err = src.ReadAt(p, 2)
	require.ErrorIs(t, err, archttp.ErrChanged)
}

func TestSource_Headers(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Header.Get("Authorization") != "Bearer token" {
			w.WriteHeader(nethttp.StatusUnauthorized)
			return
		}
		nethttp.ServeContent(w, r, "x", time.Time{}, bytes.NewReader([]byte("secret")))
	}))
	t.Cleanup(server.Close)

	_, err := archttp.NewSource(context.Background(), server.URL)
	var statusErr *archttp.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, nethttp.StatusUnauthorized, statusErr.Code)

	src, err := archttp.NewSource(context.Background(), server.URL,
		archttp.WithHeader("Authorization", "Bearer token"),
		archttp.WithSourceID("custom"),
		archttp.WithClient(server.Client()),
	)
	require.NoError(t, err)
	assert.Equal(t, "custom", src.SourceID())
	assert.Equal(t, int64(6), src.Size())
}

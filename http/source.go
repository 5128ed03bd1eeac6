// Package http serves archives over HTTP range requests.
//
// A Source queries the remote once for its size and validators, then turns
// every ReadAt into a single "Range: bytes=a-b" GET. Wrap it in a block cache
// (package cache) to avoid one round trip per entry read:
//
//	src, err := http.NewSource(ctx, "https://cdn.example.com/game.arc")
//	if err != nil {
//	    return err
//	}
//	a, err := resarc.Open(cache.New().Wrap(src))
package http //nolint:revive // intentional naming for domain clarity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	nethttp "net/http"
	"strconv"
	"strings"
)

// Sentinel errors.
var (
	// ErrRangeUnsupported is returned when the server ignores Range headers.
	ErrRangeUnsupported = errors.New("http: range requests not supported")

	// ErrChanged is returned when pinned validators no longer match the remote.
	ErrChanged = errors.New("http: remote content changed")
)

// StatusError reports an unexpected HTTP response status.
type StatusError struct {
	Op     string
	Status string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http: %s failed: %s", e.Op, e.Status)
}

// Source implements random access reads via HTTP range requests.
// It satisfies resarc.ByteSource and is safe for concurrent use.
type Source struct {
	url          string
	client       *nethttp.Client
	headers      nethttp.Header
	logger       *slog.Logger
	size         int64
	etag         string
	lastModified string
	sourceID     string
	pin          bool
}

// Option configures a Source.
type Option func(*Source)

// WithClient sets the HTTP client used for requests.
func WithClient(client *nethttp.Client) Option {
	return func(s *Source) {
		s.client = client
	}
}

// WithHeader sets a header on every request, e.g. authorization.
func WithHeader(key, value string) Option {
	return func(s *Source) {
		if s.headers == nil {
			s.headers = make(nethttp.Header)
		}
		s.headers.Set(key, value)
	}
}

// WithSourceID overrides the identifier used as the block cache key.
func WithSourceID(id string) Option {
	return func(s *Source) {
		s.sourceID = id
	}
}

// WithPinnedContent makes every range request conditional on the ETag or
// Last-Modified value seen by NewSource. Reads then fail with ErrChanged
// instead of mixing bytes from two versions of the archive.
func WithPinnedContent() Option {
	return func(s *Source) {
		s.pin = true
	}
}

// WithLogger sets the logger for the initial size lookup.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Source) {
		s.logger = logger
	}
}

// NewSource creates a Source for url. It issues a one-byte range request to
// learn the content size and to confirm range support.
func NewSource(ctx context.Context, url string, opts ...Option) (*Source, error) {
	s := &Source{url: url}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = nethttp.DefaultClient
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}

	if err := s.stat(ctx); err != nil {
		return nil, err
	}
	if s.sourceID == "" {
		s.sourceID = s.defaultSourceID()
	}
	s.logger.Debug("http source ready",
		"url", s.url,
		"size", s.size,
		"etag", s.etag,
	)
	return s, nil
}

// Size returns the total size of the remote content.
func (s *Source) Size() int64 {
	return s.size
}

// SourceID returns a stable identifier for the remote content.
func (s *Source) SourceID() string {
	return s.sourceID
}

// ReadAt reads len(p) bytes at off with one range request. It implements
// io.ReaderAt: reads crossing the end of the content return the available
// bytes and io.EOF.
func (s *Source) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if off < 0 {
		return 0, fmt.Errorf("read at %d: negative offset", off)
	}
	if off >= s.size {
		return 0, io.EOF
	}

	want := int64(len(p))
	if want > s.size-off {
		want = s.size - off
	}

	resp, err := s.get(context.Background(), off, off+want-1, s.pin)
	if err != nil {
		return 0, err
	}
	defer drain(resp)

	switch resp.StatusCode {
	case nethttp.StatusPartialContent:
	case nethttp.StatusRequestedRangeNotSatisfiable:
		return 0, io.EOF
	case nethttp.StatusPreconditionFailed:
		return 0, fmt.Errorf("%w: %s", ErrChanged, s.url)
	case nethttp.StatusOK:
		return 0, ErrRangeUnsupported
	default:
		return 0, &StatusError{Op: "range request", Status: resp.Status, Code: resp.StatusCode}
	}

	n, err := io.ReadFull(resp.Body, p[:want])
	if err != nil {
		return n, err
	}
	if want < int64(len(p)) {
		return n, io.EOF
	}
	return n, nil
}

// stat fetches the first byte to learn the size and validators.
func (s *Source) stat(ctx context.Context) error {
	resp, err := s.get(ctx, 0, 0, false)
	if err != nil {
		return err
	}
	defer drain(resp)

	switch resp.StatusCode {
	case nethttp.StatusPartialContent:
	case nethttp.StatusOK:
		return ErrRangeUnsupported
	case nethttp.StatusRequestedRangeNotSatisfiable:
		// Empty content; servers report "bytes */0".
	default:
		return &StatusError{Op: "initial range request", Status: resp.Status, Code: resp.StatusCode}
	}

	crange := resp.Header.Get("Content-Range")
	if crange == "" {
		return errors.New("http: initial range response missing Content-Range")
	}
	size, err := parseContentRange(crange)
	if err != nil {
		return err
	}
	s.size = size
	s.etag = resp.Header.Get("ETag")
	s.lastModified = resp.Header.Get("Last-Modified")
	return nil
}

// get issues a ranged GET for [off, end].
func (s *Source) get(ctx context.Context, off, end int64, conditional bool) (*nethttp.Response, error) {
	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodGet, s.url, nethttp.NoBody)
	if err != nil {
		return nil, err
	}
	for key, values := range s.headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	// Range offsets refer to the stored bytes, not a transfer encoding.
	req.Header.Set("Accept-Encoding", "identity")
	req.Header.Set("Range", "bytes="+strconv.FormatInt(off, 10)+"-"+strconv.FormatInt(end, 10))
	if conditional {
		switch {
		case s.etag != "":
			req.Header.Set("If-Match", s.etag)
		case s.lastModified != "":
			req.Header.Set("If-Unmodified-Since", s.lastModified)
		}
	}
	return s.client.Do(req)
}

func (s *Source) defaultSourceID() string {
	switch {
	case s.etag != "":
		return fmt.Sprintf("url:%s|etag:%s", s.url, s.etag)
	case s.lastModified != "":
		return fmt.Sprintf("url:%s|mod:%s|size:%d", s.url, s.lastModified, s.size)
	default:
		return fmt.Sprintf("url:%s|size:%d", s.url, s.size)
	}
}

// drain discards the rest of the body so the connection can be reused.
func drain(resp *nethttp.Response) {
	_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck // best-effort drain for connection reuse
	_ = resp.Body.Close()
}

// parseContentRange returns the complete length from "bytes a-b/size" or
// "bytes */size".
func parseContentRange(value string) (int64, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(value), "bytes ")
	if !ok {
		return 0, fmt.Errorf("http: invalid Content-Range %q", value)
	}
	_, total, ok := strings.Cut(rest, "/")
	if !ok || total == "*" {
		return 0, fmt.Errorf("http: invalid Content-Range %q", value)
	}
	size, err := strconv.ParseInt(total, 10, 64)
	if err != nil || size < 0 {
		return 0, fmt.Errorf("http: invalid Content-Range %q", value)
	}
	return size, nil
}

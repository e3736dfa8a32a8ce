package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultFetchTimeout = 10 * time.Second
	defaultProbeTimeout = 5 * time.Second
	defaultMaxBytes     = 20 << 20
)

var (
	ErrFetchStatus   = errors.New("assets: unexpected response status")
	ErrFetchEmpty    = errors.New("assets: empty response body")
	ErrFetchTooLarge = errors.New("assets: response exceeds size limit")
)

// Fetcher retrieves remote bytes.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, string, error)
	HeadContentType(ctx context.Context, url string) (string, error)
}

// FetcherConfig bounds the HTTP fetcher.
type FetcherConfig struct {
	FetchTimeout time.Duration
	ProbeTimeout time.Duration
	MaxBytes     int64
	Client       *http.Client
}

// HTTPFetcher implements Fetcher over net/http with per-call timeouts and a size cap.
type HTTPFetcher struct {
	client       *http.Client
	fetchTimeout time.Duration
	probeTimeout time.Duration
	maxBytes     int64
}

var _ Fetcher = (*HTTPFetcher)(nil)

func NewHTTPFetcher(cfg FetcherConfig) *HTTPFetcher {
	f := &HTTPFetcher{
		client:       cfg.Client,
		fetchTimeout: cfg.FetchTimeout,
		probeTimeout: cfg.ProbeTimeout,
		maxBytes:     cfg.MaxBytes,
	}
	if f.client == nil {
		f.client = &http.Client{}
	}
	if f.fetchTimeout <= 0 {
		f.fetchTimeout = defaultFetchTimeout
	}
	if f.probeTimeout <= 0 {
		f.probeTimeout = defaultProbeTimeout
	}
	if f.maxBytes <= 0 {
		f.maxBytes = defaultMaxBytes
	}
	return f
}

// Fetch downloads url and returns the body with its declared content type.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.fetchTimeout)
	defer cancel()

	resp, err := f.do(ctx, http.MethodGet, url)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	// Read one byte past the cap so oversized bodies are detected.
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", url, err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, "", fmt.Errorf("%w: %s", ErrFetchTooLarge, url)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: %s", ErrFetchEmpty, url)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// HeadContentType issues a HEAD request and returns the Content-Type header.
func (f *HTTPFetcher) HeadContentType(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.probeTimeout)
	defer cancel()

	resp, err := f.do(ctx, http.MethodHead, url)
	if err != nil {
		return "", err
	}
	resp.Body.Close()
	return resp.Header.Get("Content-Type"), nil
}

func (f *HTTPFetcher) do(ctx context.Context, method, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s %s: %d", ErrFetchStatus, method, url, resp.StatusCode)
	}
	return resp, nil
}

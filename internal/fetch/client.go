// Package fetch provides the rate-limited HTTP client shared by all source
// adapters. It enforces a minimum inter-request interval per source, applies
// overridable default headers, and converts non-2xx responses into coded
// fetch errors carrying the upstream status.
//
// No retry happens at this layer. Retry and fallback policy (API first,
// HTML scrape second) belongs to the adapters.
package fetch

import (
	"bytes"
	"context"
	"encoding/json/v2"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/yomihub/yomihub-server/internal/errors"
	"github.com/yomihub/yomihub-server/internal/ratelimit"
)

const (
	// defaultTimeout bounds a single provider request. Deliberately shorter
	// than the aggregation orchestrator's global ceiling so one dead source
	// cannot consume the whole budget.
	defaultTimeout = 15 * time.Second

	// maxBodySize caps response bodies to protect against runaway payloads.
	maxBodySize = 20 * 1024 * 1024

	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	defaultAccept    = "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8"
	defaultLanguage  = "en-US,en;q=0.5"
)

// Options tune a single request. Zero value means GET with defaults.
type Options struct {
	Method  string            // default GET
	Headers map[string]string // merged over the defaults; per-call wins
	Body    []byte            // request body for POST-style API calls
	Timeout time.Duration     // per-call override of the client timeout
}

// Response is a fully-read HTTP response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Client is the shared rate-limited fetcher. Safe for concurrent use; the
// per-source wait is cooperative, so a slow source never blocks requests
// for other sources.
type Client struct {
	http    *http.Client
	limiter *ratelimit.KeyedLimiter
	logger  *slog.Logger
}

// NewClient creates a fetcher. limiter holds the per-source minimum
// intervals; a nil logger discards debug output.
func NewClient(limiter *ratelimit.KeyedLimiter, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		http:    &http.Client{Timeout: defaultTimeout},
		limiter: limiter,
		logger:  logger,
	}
}

// Fetch performs one request against a source, waiting out the source's
// minimum interval first. Non-2xx responses return a fetch error carrying
// the HTTP status; the response body is fully read and the connection
// released in every case.
func (c *Client) Fetch(ctx context.Context, source, url string, opts *Options) (*Response, error) {
	if opts == nil {
		opts = &Options{}
	}

	if err := c.limiter.Wait(ctx, source); err != nil {
		return nil, errors.Wrap(err, errors.CodeFetch, "rate limit wait")
	}

	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if len(opts.Body) > 0 {
		body = bytes.NewReader(opts.Body)
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeFetch, "create request")
	}

	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept", defaultAccept)
	req.Header.Set("Accept-Language", defaultLanguage)
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	c.logger.Debug("fetch", "source", source, "method", method, "url", url)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeFetch, "request %s", url)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeFetch, "read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.FetchStatus(resp.StatusCode, url)
	}

	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// JSON fetches a URL and decodes the JSON response body into dest.
func (c *Client) JSON(ctx context.Context, source, url string, dest any, opts *Options) error {
	if opts == nil {
		opts = &Options{}
	}
	if opts.Headers == nil {
		opts.Headers = map[string]string{}
	}
	if _, ok := opts.Headers["Accept"]; !ok {
		opts.Headers["Accept"] = "application/json"
	}

	resp, err := c.Fetch(ctx, source, url, opts)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body, dest); err != nil {
		return errors.Wrapf(err, errors.CodeParse, "decode JSON from %s", url)
	}
	return nil
}

// HTML fetches a URL and returns the response body as a string.
func (c *Client) HTML(ctx context.Context, source, url string, opts *Options) (string, error) {
	resp, err := c.Fetch(ctx, source, url, opts)
	if err != nil {
		return "", err
	}
	return string(resp.Body), nil
}

// Range fetches a byte window [start, end] (inclusive) of a resource using
// an HTTP Range request. Used by adapters that slice binary index files
// without downloading them whole.
func (c *Client) Range(ctx context.Context, source, url string, start, end int64, headers map[string]string) ([]byte, error) {
	opts := &Options{Headers: map[string]string{
		"Range": fmt.Sprintf("bytes=%d-%d", start, end),
	}}
	for k, v := range headers {
		opts.Headers[k] = v
	}

	resp, err := c.Fetch(ctx, source, url, opts)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// StatusOf extracts the upstream HTTP status from a fetch error, or 0 when
// the error carries none (transport failure, cancellation).
func StatusOf(err error) int {
	var domainErr *errors.Error
	if !errors.As(err, &domainErr) {
		return 0
	}
	details, ok := domainErr.Details.(map[string]any)
	if !ok {
		return 0
	}
	status, _ := details["status"].(int)
	return status
}

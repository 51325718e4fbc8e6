// Package jina provides a client for the Jina AI reader API.
package jina

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the Jina AI Reader operations.
type Client interface {
	// Read fetches a URL via Jina AI Reader and returns its LLM-friendly text.
	Read(ctx context.Context, targetURL string, opts ReadOptions) (string, error)
}

// ReadOptions maps onto the reader's request headers.
type ReadOptions struct {
	// Timeout is how long the reader waits for network idle on the target page.
	Timeout time.Duration
	// GeneratedAlt asks the reader to caption images lacking alt text.
	GeneratedAlt bool
	// NoCache bypasses the reader's page cache.
	NoCache bool
	// CacheTolerance accepts cached copies up to this age.
	CacheTolerance time.Duration
	// Streaming requests an event stream, which yields more complete
	// content on script-heavy pages. The stream is drained before returning.
	Streaming bool
}

// StatusError is returned for a non-2xx reader response.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("jina: unexpected status %s: %s", e.Status, e.Body)
}

// Option configures the Jina client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a new Jina AI Reader client. The reader works without a
// key at a lower rate limit, so apiKey may be empty.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://r.jina.ai",
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Read(ctx context.Context, targetURL string, opts ReadOptions) (string, error) {
	reqURL := fmt.Sprintf("%s/%s", c.baseURL, url.PathEscape(targetURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", eris.Wrap(err, "jina: create request")
	}

	if opts.Streaming {
		req.Header.Set("Accept", "text/event-stream")
	} else {
		req.Header.Set("Accept", "text/plain")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if opts.GeneratedAlt {
		req.Header.Set("X-With-Generated-Alt", "true")
	}
	if opts.Timeout > 0 {
		req.Header.Set("X-Timeout", strconv.Itoa(int(opts.Timeout.Seconds())))
	}
	if opts.NoCache {
		req.Header.Set("X-No-Cache", "true")
	}
	if opts.CacheTolerance > 0 {
		req.Header.Set("X-Cache-Tolerance", strconv.Itoa(int(opts.CacheTolerance.Seconds())))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "jina: request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &StatusError{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(body)}
	}

	if opts.Streaming {
		return drain(resp.Body)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "jina: read response body")
	}
	return string(body), nil
}

// drain reads a streamed body chunk by chunk and concatenates it.
func drain(r io.Reader) (string, error) {
	var content []byte
	buf := make([]byte, 32*1024)
	for {
		n, err := r.Read(buf)
		content = append(content, buf[:n]...)
		if err == io.EOF {
			return string(content), nil
		}
		if err != nil {
			return "", eris.Wrap(err, "jina: read stream")
		}
	}
}

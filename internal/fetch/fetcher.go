// Package fetch turns a URL into LLM-friendly text using an external
// content-extraction service.
package fetch

import (
	"context"
	"time"

	"github.com/sells-group/client-enricher/internal/model"
)

// Options controls a single fetch.
type Options struct {
	// Timeout bounds how long the extraction service may wait on the page.
	Timeout time.Duration
	// IncludeImageCaptions asks for generated captions on embedded images.
	IncludeImageCaptions bool
	// BypassCache forces a fresh render instead of a cached copy.
	BypassCache bool
	// CacheTolerance accepts cached copies up to this age.
	CacheTolerance time.Duration
	// Streaming requests an incremental response, drained before returning.
	Streaming bool
}

// DefaultOptions returns the settings the pipeline scrapes with.
func DefaultOptions() Options {
	return Options{
		Timeout:              30 * time.Second,
		IncludeImageCaptions: true,
		CacheTolerance:       time.Hour,
		Streaming:            true,
	}
}

// Fetcher retrieves a readable-text rendering of a URL. Every error it
// returns is a *model.FetchError.
type Fetcher interface {
	Fetch(ctx context.Context, url string, opts Options) (string, error)
	Name() string
}

// requestGrace is added on top of Options.Timeout for the whole round trip,
// since the service's own wait happens inside our request.
const requestGrace = 15 * time.Second

func withFetchDeadline(ctx context.Context, opts Options) (context.Context, context.CancelFunc) {
	if opts.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, opts.Timeout+requestGrace)
}

func fetchErr(url string, err error) error {
	if _, ok := err.(*model.FetchError); ok {
		return err
	}
	return &model.FetchError{URL: url, Cause: err}
}

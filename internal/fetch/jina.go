package fetch

import (
	"context"

	"github.com/sells-group/client-enricher/pkg/jina"
)

// JinaFetcher fetches pages through the Jina AI reader.
type JinaFetcher struct {
	client jina.Client
}

// NewJinaFetcher creates a JinaFetcher backed by the given client.
func NewJinaFetcher(client jina.Client) *JinaFetcher {
	return &JinaFetcher{client: client}
}

// Name implements Fetcher.
func (f *JinaFetcher) Name() string { return "jina" }

// Fetch implements Fetcher.
func (f *JinaFetcher) Fetch(ctx context.Context, url string, opts Options) (string, error) {
	ctx, cancel := withFetchDeadline(ctx, opts)
	defer cancel()

	readOpts := jina.ReadOptions{
		Timeout:      opts.Timeout,
		GeneratedAlt: opts.IncludeImageCaptions,
		NoCache:      opts.BypassCache,
		Streaming:    opts.Streaming,
	}
	if !opts.BypassCache {
		readOpts.CacheTolerance = opts.CacheTolerance
	}

	content, err := f.client.Read(ctx, url, readOpts)
	if err != nil {
		return "", fetchErr(url, err)
	}
	return content, nil
}

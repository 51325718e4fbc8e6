package fetch

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/client-enricher/internal/model"
	"github.com/sells-group/client-enricher/pkg/firecrawl"
)

// FirecrawlFetcher fetches pages through the Firecrawl scrape API. It needs
// an API key; without one every fetch fails with a ConfigurationError cause.
type FirecrawlFetcher struct {
	client firecrawl.Client
	apiKey string
}

// NewFirecrawlFetcher creates a FirecrawlFetcher.
func NewFirecrawlFetcher(client firecrawl.Client, apiKey string) *FirecrawlFetcher {
	return &FirecrawlFetcher{client: client, apiKey: apiKey}
}

// Name implements Fetcher.
func (f *FirecrawlFetcher) Name() string { return "firecrawl" }

// Fetch implements Fetcher.
func (f *FirecrawlFetcher) Fetch(ctx context.Context, url string, opts Options) (string, error) {
	if f.apiKey == "" {
		return "", fetchErr(url, &model.ConfigurationError{Provider: "firecrawl", Setting: "firecrawl.key"})
	}

	ctx, cancel := withFetchDeadline(ctx, opts)
	defer cancel()

	req := firecrawl.ScrapeRequest{
		URL:             url,
		Formats:         []string{"markdown"},
		OnlyMainContent: true,
		Timeout:         int(opts.Timeout.Milliseconds()),
	}
	if opts.BypassCache {
		zero := 0
		req.MaxAge = &zero
	} else if opts.CacheTolerance > 0 {
		maxAge := int(opts.CacheTolerance.Milliseconds())
		req.MaxAge = &maxAge
	}

	resp, err := f.client.Scrape(ctx, req)
	if err != nil {
		return "", fetchErr(url, err)
	}
	if !resp.Success {
		return "", fetchErr(url, eris.Errorf("firecrawl: scrape reported failure: %s", resp.Error))
	}
	if code := resp.Data.Metadata.StatusCode; code >= 400 {
		return "", fetchErr(url, eris.Errorf("firecrawl: target responded %d", code))
	}
	return resp.Data.Markdown, nil
}

package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sells-group/client-enricher/internal/model"
	"github.com/sells-group/client-enricher/pkg/tavily"
)

// maxSourceBytes caps the UTF-8 length of each source's text so that raw
// page content from many results cannot crowd the rest of the prompt out of
// the model's context.
const maxSourceBytes = 8000

// TavilyOptions configures the advanced search request.
type TavilyOptions struct {
	SearchDepth       string
	MaxResults        int
	IncludeRawContent bool
	IncludeImages     bool
}

// Tavily is the advanced contextual search provider. Results are rendered
// as markdown with numbered "Source N" sections.
type Tavily struct {
	client tavily.Client
	apiKey string
	opts   TavilyOptions
}

// NewTavily creates an advanced search provider.
func NewTavily(client tavily.Client, apiKey string, opts TavilyOptions) *Tavily {
	if opts.SearchDepth == "" {
		opts.SearchDepth = tavily.DepthAdvanced
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 5
	}
	return &Tavily{client: client, apiKey: apiKey, opts: opts}
}

// Name implements Provider.
func (t *Tavily) Name() string { return "tavily" }

// Search implements Provider.
func (t *Tavily) Search(ctx context.Context, query string) (string, error) {
	if t.apiKey == "" {
		return "", &model.ConfigurationError{Provider: "tavily", Setting: "tavily.key"}
	}

	resp, err := t.client.Search(ctx, tavily.SearchRequest{
		Query:             query,
		SearchDepth:       t.opts.SearchDepth,
		MaxResults:        t.opts.MaxResults,
		IncludeAnswer:     true,
		IncludeRawContent: t.opts.IncludeRawContent,
		IncludeImages:     t.opts.IncludeImages,
	})
	if err != nil {
		var apiErr *tavily.APIError
		status := ""
		if errors.As(err, &apiErr) {
			status = apiErr.Status
		}
		return "", providerErr(t.Name(), query, err, status)
	}

	return FormatMarkdown(resp, t.opts.IncludeRawContent), nil
}

// FormatMarkdown renders a Tavily response as the answer text followed by
// one "### Source N" section per result. Raw page content is preferred
// over the snippet when preferRaw is set; results with no text are skipped
// but keep their number.
func FormatMarkdown(resp *tavily.SearchResponse, preferRaw bool) string {
	if resp == nil {
		return ""
	}

	var b strings.Builder
	if answer := strings.TrimSpace(resp.Answer); answer != "" {
		b.WriteString(answer)
		b.WriteString("\n\n")
	}

	for i, r := range resp.Results {
		text := r.Content
		if preferRaw && strings.TrimSpace(r.RawContent) != "" {
			text = r.RawContent
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		text = truncate(text, maxSourceBytes)

		fmt.Fprintf(&b, "### Source %d\n", i+1)
		if r.URL != "" {
			fmt.Fprintf(&b, "URL: %s\n", r.URL)
		}
		b.WriteString(text)
		b.WriteString("\n\n")
	}

	return strings.TrimSpace(b.String())
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

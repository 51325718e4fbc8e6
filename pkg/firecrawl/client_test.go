package firecrawl

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient("fc-test", WithBaseURL(srv.URL))
}

func TestScrape(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/scrape", r.URL.Path)
		assert.Equal(t, "Bearer fc-test", r.Header.Get("Authorization"))

		var raw map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		assert.Equal(t, "https://acme.example/about", raw["url"])
		assert.Equal(t, []any{"markdown"}, raw["formats"])
		assert.Equal(t, true, raw["onlyMainContent"])
		assert.Equal(t, 0.0, raw["maxAge"], "zero max age must be sent")
		assert.Equal(t, 30000.0, raw["timeout"])

		_, _ = w.Write([]byte(`{
			"success": true,
			"data": {
				"markdown": "# Acme Co\n\nWidgets since 2015.",
				"metadata": {"title": "About Acme", "sourceURL": "https://acme.example/about", "statusCode": 200}
			}
		}`))
	})

	zero := 0
	resp, err := c.Scrape(context.Background(), ScrapeRequest{
		URL:             "https://acme.example/about",
		Formats:         []string{"markdown"},
		OnlyMainContent: true,
		Timeout:         30000,
		MaxAge:          &zero,
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "# Acme Co\n\nWidgets since 2015.", resp.Data.Markdown)
	assert.Equal(t, PageMetadata{Title: "About Acme", SourceURL: "https://acme.example/about", StatusCode: 200}, resp.Data.Metadata)
}

func TestScrape_OmitsUnsetMaxAge(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		assert.NotContains(t, raw, "maxAge")
		_, _ = w.Write([]byte(`{"success": false, "error": "page blocked"}`))
	})

	resp, err := c.Scrape(context.Background(), ScrapeRequest{URL: "https://acme.example"})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "page blocked", resp.Error)
}

func TestScrape_Errors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantMsg    string
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":"rate limited"}`, 429, `firecrawl: HTTP 429: {"error":"rate limited"}`},
		{"payment required", http.StatusPaymentRequired, `{"error":"insufficient credits"}`, 402, "insufficient credits"},
		{"malformed body", http.StatusOK, `{not json`, 0, "firecrawl: decode scrape response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := c.Scrape(context.Background(), ScrapeRequest{URL: "https://acme.example"})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
			if tt.wantStatus != 0 {
				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, tt.wantStatus, apiErr.StatusCode)
			}
		})
	}
}

func TestScrape_ContextCancelled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not reach the server")
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Scrape(ctx, ScrapeRequest{URL: "https://acme.example"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "firecrawl: scrape https://acme.example")
}

package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"

	"github.com/sells-group/client-enricher/internal/model"
	"github.com/sells-group/client-enricher/pkg/serper"
)

// Serper is the basic keyword search provider. It returns the API response
// as compact JSON text.
type Serper struct {
	client     serper.Client
	apiKey     string
	num        int
	searchType string
	name       string
}

// NewSerper creates a general web search provider.
func NewSerper(client serper.Client, apiKey string, num int) *Serper {
	return &Serper{client: client, apiKey: apiKey, num: num, name: "serper"}
}

// NewSerperNews creates a provider restricted to news results.
func NewSerperNews(client serper.Client, apiKey string, num int) *Serper {
	return &Serper{client: client, apiKey: apiKey, num: num, searchType: serper.TypeNews, name: "serper_news"}
}

// Name implements Provider.
func (s *Serper) Name() string { return s.name }

// Search implements Provider.
func (s *Serper) Search(ctx context.Context, query string) (string, error) {
	if s.apiKey == "" {
		return "", &model.ConfigurationError{Provider: "serper", Setting: "serper.key"}
	}

	resp, err := s.client.Search(ctx, serper.SearchRequest{
		Q:    query,
		Num:  s.num,
		Type: s.searchType,
	})
	if err != nil {
		var apiErr *serper.APIError
		status := ""
		if errors.As(err, &apiErr) {
			status = apiErr.Status
		}
		return "", providerErr(s.name, query, err, status)
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, resp.Raw); err != nil {
		return string(resp.Raw), nil
	}
	return buf.String(), nil
}

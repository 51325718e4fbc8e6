// Package search adapts web search backends to a single text-returning
// capability used by the enrichment pipeline.
package search

import (
	"context"
	"errors"

	"github.com/sells-group/client-enricher/internal/model"
)

// Provider runs a query and returns its results as text for a language model.
type Provider interface {
	Search(ctx context.Context, query string) (string, error)
	Name() string
}

// providerErr converts a vendor failure into a SearchProviderError, keeping
// the HTTP status text when the vendor reported one.
func providerErr(provider, query string, err error, status string) error {
	var cfgErr *model.ConfigurationError
	if errors.As(err, &cfgErr) {
		return cfgErr
	}
	return &model.SearchProviderError{Provider: provider, Query: query, Status: status, Cause: err}
}

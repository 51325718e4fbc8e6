package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sells-group/client-enricher/internal/model"
	"github.com/sells-group/client-enricher/pkg/perplexity"
)

const perplexitySystemPrompt = "You are a company research assistant. Answer with specific, factual, recent information and name your sources."

// Perplexity is an alternative advanced provider backed by sonar search
// completions. The answer is followed by its numbered citations.
type Perplexity struct {
	client perplexity.Client
	apiKey string
}

// NewPerplexity creates a Perplexity-backed provider.
func NewPerplexity(client perplexity.Client, apiKey string) *Perplexity {
	return &Perplexity{client: client, apiKey: apiKey}
}

// Name implements Provider.
func (p *Perplexity) Name() string { return "perplexity" }

// Search implements Provider.
func (p *Perplexity) Search(ctx context.Context, query string) (string, error) {
	if p.apiKey == "" {
		return "", &model.ConfigurationError{Provider: "perplexity", Setting: "perplexity.key"}
	}

	temp := 0.0
	resp, err := p.client.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
		Messages: []perplexity.Message{
			{Role: "system", Content: perplexitySystemPrompt},
			{Role: "user", Content: query},
		},
		Temperature: &temp,
	})
	if err != nil {
		var apiErr *perplexity.APIError
		status := ""
		if errors.As(err, &apiErr) {
			status = apiErr.Status
		}
		return "", providerErr(p.Name(), query, err, status)
	}

	var b strings.Builder
	b.WriteString(strings.TrimSpace(resp.Text()))
	for i, c := range resp.Citations {
		fmt.Fprintf(&b, "\n\n### Source %d\n%s", i+1, c)
	}
	return strings.TrimSpace(b.String()), nil
}

package llm

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/client-enricher/internal/model"
	"github.com/sells-group/client-enricher/pkg/anthropic"
)

const defaultAnthropicMaxTokens = 4096

// AnthropicModel generates with the Anthropic Messages API.
type AnthropicModel struct {
	client   anthropic.Client
	apiKey   string
	settings Settings
}

// NewAnthropicModel creates an Anthropic backend.
func NewAnthropicModel(client anthropic.Client, apiKey string, settings Settings) *AnthropicModel {
	if settings.MaxTokens <= 0 {
		settings.MaxTokens = defaultAnthropicMaxTokens
	}
	return &AnthropicModel{client: client, apiKey: apiKey, settings: settings}
}

// Name implements Model.
func (m *AnthropicModel) Name() string { return "anthropic" }

// Generate implements Model.
func (m *AnthropicModel) Generate(ctx context.Context, p Prompt) (*Response, error) {
	if m.apiKey == "" {
		return nil, &model.ConfigurationError{Provider: "anthropic", Setting: "anthropic.key"}
	}

	temp := m.settings.Temperature
	req := anthropic.MessageRequest{
		Model:       m.settings.Model,
		MaxTokens:   int64(m.settings.MaxTokens),
		System:      p.System,
		Messages:    []anthropic.Message{{Role: "user", Content: p.User}},
		Temperature: &temp,
	}

	resp, err := m.client.CreateMessage(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "anthropic: create message")
	}
	resp.Usage.LogCost(m.settings.Model, p.Phase)

	out := &Response{Parts: make([]Part, 0, len(resp.Content))}
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			out.Parts = append(out.Parts, Part{Type: PartText, Text: block.Text})
		case "thinking":
			out.Parts = append(out.Parts, Part{Type: PartThought, Text: block.Text})
		default:
			out.Parts = append(out.Parts, Part{Type: PartOther})
		}
	}
	return out, nil
}

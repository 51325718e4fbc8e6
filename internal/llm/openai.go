package llm

import (
	"context"
	"math"

	"github.com/rotisserie/eris"
	openai "github.com/sashabaranov/go-openai"

	"github.com/sells-group/client-enricher/internal/model"
)

// OpenAIModel generates with the OpenAI chat completions API.
type OpenAIModel struct {
	client   *openai.Client
	apiKey   string
	settings Settings
}

// NewOpenAIModel creates an OpenAI backend. baseURL may be empty.
func NewOpenAIModel(apiKey, baseURL string, settings Settings) *OpenAIModel {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if settings.Model == "" {
		settings.Model = openai.GPT4oMini
	}
	return &OpenAIModel{
		client:   openai.NewClientWithConfig(cfg),
		apiKey:   apiKey,
		settings: settings,
	}
}

// Name implements Model.
func (m *OpenAIModel) Name() string { return "openai" }

// Generate implements Model.
func (m *OpenAIModel) Generate(ctx context.Context, p Prompt) (*Response, error) {
	if m.apiKey == "" {
		return nil, &model.ConfigurationError{Provider: "openai", Setting: "openai.key"}
	}

	req := openai.ChatCompletionRequest{
		Model: m.settings.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.System},
			{Role: openai.ChatMessageRoleUser, Content: p.User},
		},
		Temperature: openAITemperature(m.settings.Temperature),
	}
	if m.settings.MaxTokens > 0 {
		req.MaxTokens = m.settings.MaxTokens
	}

	resp, err := m.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "openai: create chat completion")
	}
	if len(resp.Choices) == 0 {
		return nil, eris.New("openai: no choices in response")
	}

	msg := resp.Choices[0].Message
	out := &Response{}
	if msg.Content != "" {
		out.Parts = append(out.Parts, Part{Type: PartText, Text: msg.Content})
	}
	for _, mp := range msg.MultiContent {
		if mp.Type == openai.ChatMessagePartTypeText {
			out.Parts = append(out.Parts, Part{Type: PartText, Text: mp.Text})
			continue
		}
		out.Parts = append(out.Parts, Part{Type: PartOther})
	}
	return out, nil
}

// openAITemperature maps 0 to the smallest non-zero float32, since the
// client omits a zero temperature and the API then samples at 1.
func openAITemperature(t float64) float32 {
	if t <= 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(t)
}

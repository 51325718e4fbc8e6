package llm

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"google.golang.org/genai"

	"github.com/sells-group/client-enricher/internal/model"
)

// GeminiModel generates with the Gemini API. The genai client is built on
// first use so a missing key only fails when the backend is invoked.
type GeminiModel struct {
	apiKey   string
	baseURL  string
	settings Settings

	mu     sync.Mutex
	client *genai.Client
}

// NewGeminiModel creates a Gemini backend. baseURL may be empty.
func NewGeminiModel(apiKey, baseURL string, settings Settings) *GeminiModel {
	if settings.Model == "" {
		settings.Model = "gemini-2.5-flash"
	}
	return &GeminiModel{apiKey: apiKey, baseURL: baseURL, settings: settings}
}

// Name implements Model.
func (m *GeminiModel) Name() string { return "gemini" }

func (m *GeminiModel) getClient(ctx context.Context) (*genai.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client != nil {
		return m.client, nil
	}

	cc := &genai.ClientConfig{
		APIKey:  m.apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if m.baseURL != "" {
		cc.HTTPOptions.BaseURL = m.baseURL
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: create client")
	}
	m.client = client
	return client, nil
}

// Generate implements Model.
func (m *GeminiModel) Generate(ctx context.Context, p Prompt) (*Response, error) {
	if m.apiKey == "" {
		return nil, &model.ConfigurationError{Provider: "gemini", Setting: "gemini.key"}
	}

	client, err := m.getClient(ctx)
	if err != nil {
		return nil, err
	}

	temp := float32(m.settings.Temperature)
	cfg := &genai.GenerateContentConfig{
		Temperature:    &temp,
		CandidateCount: 1,
	}
	if m.settings.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(m.settings.MaxTokens)
	}
	if p.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(p.System, genai.RoleUser)
	}

	resp, err := client.Models.GenerateContent(ctx, m.settings.Model, genai.Text(p.User), cfg)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: generate content")
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return nil, eris.New("gemini: no candidates in response")
	}

	out := &Response{}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil {
			continue
		}
		switch {
		case part.Thought:
			out.Parts = append(out.Parts, Part{Type: PartThought, Text: part.Text})
		case part.Text != "":
			out.Parts = append(out.Parts, Part{Type: PartText, Text: part.Text})
		default:
			out.Parts = append(out.Parts, Part{Type: PartOther})
		}
	}
	return out, nil
}

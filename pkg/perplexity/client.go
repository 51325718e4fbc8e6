// Package perplexity calls the Perplexity sonar chat API, which answers with
// web-grounded text and the URLs it cited.
package perplexity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// Client runs one grounded chat completion.
type Client interface {
	ChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error)
}

// ChatCompletionRequest is the body of POST /chat/completions. An empty
// Model falls back to the client's model.
type ChatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
	// One of "day", "week", "month", "year".
	SearchRecencyFilter string `json:"search_recency_filter,omitempty"`
}

// Message is a chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionResponse is the reply. Citations lists the source URLs in
// the order the answer references them.
type ChatCompletionResponse struct {
	ID        string   `json:"id"`
	Choices   []Choice `json:"choices"`
	Citations []string `json:"citations"`
	Usage     Usage    `json:"usage"`
}

// Choice is one candidate answer.
type Choice struct {
	Index   int     `json:"index"`
	Message Message `json:"message"`
}

// Usage is the token count billed for the call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Text is the first answer's content.
func (r *ChatCompletionResponse) Text() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// APIError carries a non-200 reply.
type APIError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("perplexity: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL points the client at another host.
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.endpoint = u + "/chat/completions" }
}

// WithModel sets the model used when a request names none.
func WithModel(m string) Option {
	return func(c *httpClient) { c.model = m }
}

type httpClient struct {
	apiKey   string
	endpoint string
	model    string
	http     *http.Client
}

// NewClient creates a client that defaults to sonar-pro.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:   apiKey,
		endpoint: "https://api.perplexity.ai/chat/completions",
		model:    "sonar-pro",
		http:     &http.Client{Timeout: 60 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) ChatCompletion(ctx context.Context, cr ChatCompletionRequest) (*ChatCompletionResponse, error) {
	if cr.Model == "" {
		cr.Model = c.model
	}
	payload, err := json.Marshal(cr)
	if err != nil {
		return nil, eris.Wrap(err, "perplexity: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "perplexity: create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "perplexity: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "perplexity: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(raw)}
	}

	out := new(ChatCompletionResponse)
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, eris.Wrap(err, "perplexity: unmarshal response")
	}
	return out, nil
}

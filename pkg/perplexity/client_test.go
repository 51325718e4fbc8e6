package perplexity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const okBody = `{"id":"1","choices":[{"index":0,"message":{"role":"assistant","content":"ok"}}],"usage":{}}`

// captureServer records the decoded request body and replies with body.
func captureServer(t *testing.T, status int, body string, got *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		if got != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(got))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func research(content string) ChatCompletionRequest {
	return ChatCompletionRequest{Messages: []Message{
		{Role: "system", Content: "You research companies."},
		{Role: "user", Content: content},
	}}
}

func TestChatCompletion_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{
			"id": "cmpl-123",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "Acme Co makes widgets."}}],
			"citations": ["https://acme.example/about", "https://news.example/acme"],
			"usage": {"prompt_tokens": 40, "completion_tokens": 12}
		}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	resp, err := client.ChatCompletion(context.Background(), research("Acme Co competitors"))

	require.NoError(t, err)
	assert.Equal(t, "cmpl-123", resp.ID)
	assert.Equal(t, "Acme Co makes widgets.", resp.Text())
	assert.Equal(t, []string{"https://acme.example/about", "https://news.example/acme"}, resp.Citations)
	assert.Equal(t, 12, resp.Usage.CompletionTokens)
}

func TestChatCompletion_Errors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantErr    string
		wantStatus int
	}{
		{"rate limit", http.StatusTooManyRequests, `{"error":"rate limit exceeded"}`, "rate limit exceeded", http.StatusTooManyRequests},
		{"bad key", http.StatusForbidden, `{"error":"invalid api key"}`, "403", http.StatusForbidden},
		{"server error", http.StatusInternalServerError, `{"error":"internal"}`, "unexpected status 500", http.StatusInternalServerError},
		{"malformed body", http.StatusOK, `{invalid json`, "unmarshal response", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := captureServer(t, tt.status, tt.body, nil)

			resp, err := NewClient("test-key", WithBaseURL(srv.URL)).ChatCompletion(context.Background(), research("Acme Co"))

			require.Error(t, err)
			assert.Nil(t, resp)
			assert.Contains(t, err.Error(), tt.wantErr)
			var apiErr *APIError
			if tt.wantStatus == 0 {
				assert.False(t, errors.As(err, &apiErr))
				return
			}
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.wantStatus, apiErr.StatusCode)
		})
	}
}

func TestChatCompletion_ModelSelection(t *testing.T) {
	tests := []struct {
		name      string
		opts      []Option
		requested string
		want      string
	}{
		{name: "default", want: "sonar-pro"},
		{name: "client option", opts: []Option{WithModel("sonar")}, want: "sonar"},
		{name: "request overrides", opts: []Option{WithModel("sonar")}, requested: "sonar-reasoning", want: "sonar-reasoning"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got map[string]any
			srv := captureServer(t, http.StatusOK, okBody, &got)

			req := research("Acme Co")
			req.Model = tt.requested
			_, err := NewClient("test-key", append(tt.opts, WithBaseURL(srv.URL))...).ChatCompletion(context.Background(), req)

			require.NoError(t, err)
			assert.Equal(t, tt.want, got["model"])
		})
	}
}

func TestChatCompletion_OptionalParameters(t *testing.T) {
	var got map[string]any
	srv := captureServer(t, http.StatusOK, okBody, &got)

	zero := 0.0
	maxTokens := 500
	req := research("Acme Co")
	req.Temperature = &zero
	req.MaxTokens = &maxTokens
	req.SearchRecencyFilter = "year"

	_, err := NewClient("test-key", WithBaseURL(srv.URL)).ChatCompletion(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got["temperature"], "a zero temperature is still sent")
	assert.Equal(t, 500.0, got["max_tokens"])
	assert.Equal(t, "year", got["search_recency_filter"])

	got = nil
	_, err = NewClient("test-key", WithBaseURL(srv.URL)).ChatCompletion(context.Background(), research("Acme Co"))
	require.NoError(t, err)
	assert.NotContains(t, got, "temperature")
	assert.NotContains(t, got, "max_tokens")
}

func TestChatCompletion_ContextCancelled(t *testing.T) {
	srv := captureServer(t, http.StatusOK, okBody, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClient("test-key", WithBaseURL(srv.URL)).ChatCompletion(ctx, research("Acme Co"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "send request")
}

func TestResponseText_Empty(t *testing.T) {
	t.Parallel()
	var nilResp *ChatCompletionResponse
	assert.Empty(t, nilResp.Text())
	assert.Empty(t, (&ChatCompletionResponse{}).Text())
}

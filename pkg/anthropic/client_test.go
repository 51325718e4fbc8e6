package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient("test-key", option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
}

func TestCreateMessage(t *testing.T) {
	var body map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "/messages")
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_acme",
			"type": "message",
			"role": "assistant",
			"model": "claude-haiku-4-5-20251001",
			"stop_reason": "end_turn",
			"content": [
				{"type": "thinking", "thinking": "Acme sells widgets", "signature": "sig"},
				{"type": "text", "text": "Acme Co is a widget maker."}
			],
			"usage": {"input_tokens": 120, "output_tokens": 30}
		}`))
	})

	temp := 0.0
	resp, err := client.CreateMessage(context.Background(), MessageRequest{
		Model:       "claude-haiku-4-5-20251001",
		MaxTokens:   1024,
		System:      "You analyse companies.",
		Messages:    []Message{{Role: "user", Content: "Describe Acme Co"}},
		Temperature: &temp,
	})
	require.NoError(t, err)

	assert.Equal(t, "claude-haiku-4-5-20251001", body["model"])
	assert.Equal(t, 1024.0, body["max_tokens"])
	assert.Equal(t, 0.0, body["temperature"])
	system, ok := body["system"].([]any)
	require.True(t, ok)
	require.Len(t, system, 1)
	assert.Equal(t, "You analyse companies.", system[0].(map[string]any)["text"])

	assert.Equal(t, "msg_acme", resp.ID)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, []ContentBlock{
		{Type: "thinking", Text: "Acme sells widgets"},
		{Type: "text", Text: "Acme Co is a widget maker."},
	}, resp.Content)
	assert.Equal(t, TokenUsage{InputTokens: 120, OutputTokens: 30}, resp.Usage)
}

func TestCreateMessage_OmitsEmptySystemAndTemperature(t *testing.T) {
	var body map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"m","type":"message","role":"assistant","model":"x","content":[],"usage":{}}`))
	})

	_, err := client.CreateMessage(context.Background(), MessageRequest{
		Model:     "claude-haiku-4-5-20251001",
		MaxTokens: 64,
		Messages:  []Message{{Role: "user", Content: "Acme?"}},
	})
	require.NoError(t, err)
	assert.NotContains(t, body, "system")
	assert.NotContains(t, body, "temperature")
}

func TestCreateMessage_Error(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad model"}}`))
	})

	_, err := client.CreateMessage(context.Background(), MessageRequest{
		Model:     "nope",
		MaxTokens: 16,
		Messages:  []Message{{Role: "user", Content: "Acme?"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic: create message")
}

func TestConvert_Empty(t *testing.T) {
	resp := convert(&sdk.Message{ID: "msg_empty", StopReason: "max_tokens"})
	assert.Empty(t, resp.Content)
	assert.Equal(t, "max_tokens", resp.StopReason)
}

func TestEstimateCost(t *testing.T) {
	usage := TokenUsage{InputTokens: 1_000_000, OutputTokens: 200_000}
	assert.InDelta(t, 2.00, usage.EstimateCost("claude-haiku-4-5-20251001"), 0.001)
	assert.InDelta(t, 6.00, usage.EstimateCost("claude-sonnet-4-5-20250929"), 0.001)
	assert.Zero(t, usage.EstimateCost("claude-unknown"))
}

// Package llm runs the two-phase language-model synthesis: a free-form
// analysis of gathered sources followed by strict JSON extraction.
package llm

import (
	"context"
	"strings"
)

// Part types reported by the backends.
const (
	PartText    = "text"
	PartThought = "thought"
	PartOther   = "other"
)

// Prompt is a single-turn request to a model.
type Prompt struct {
	// Phase names the synthesis step ("analyze", "extract") for logs and
	// cost attribution.
	Phase  string
	System string
	User   string
}

// Part is one piece of a model reply. Single-text replies have exactly one
// part of type "text".
type Part struct {
	Type string
	Text string
}

// Response is a model reply.
type Response struct {
	Parts []Part
}

// Text returns the first non-empty text part, or "".
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	for _, p := range r.Parts {
		if p.Type == PartText && strings.TrimSpace(p.Text) != "" {
			return p.Text
		}
	}
	return ""
}

// Model is a chat model backend.
type Model interface {
	Generate(ctx context.Context, p Prompt) (*Response, error)
	Name() string
}

// Settings are the sampling parameters shared by all backends.
type Settings struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

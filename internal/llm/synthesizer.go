package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/client-enricher/internal/model"
)

// Synthesis phases.
const (
	PhaseAnalyze = "analyze"
	PhaseExtract = "extract"
)

// Synthesizer runs both synthesis phases against one model.
type Synthesizer struct {
	model Model
}

// NewSynthesizer creates a Synthesizer.
func NewSynthesizer(m Model) *Synthesizer {
	return &Synthesizer{model: m}
}

// Analyze produces free-form analysis text from the gathered sources.
func (s *Synthesizer) Analyze(ctx context.Context, src Sources) (string, error) {
	resp, err := s.model.Generate(ctx, Prompt{
		Phase:  PhaseAnalyze,
		System: analysisSystemPrompt(src),
		User:   analysisUserMessage,
	})
	if err != nil {
		return "", s.invocationErr(PhaseAnalyze, err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", s.invocationErr(PhaseAnalyze, eris.New("llm: empty analysis response"))
	}
	return text, nil
}

// Extract converts analysis text into EnrichedData. A reply that does not
// decode is logged with its raw text and returned as a
// *model.MalformedOutputError.
func (s *Synthesizer) Extract(ctx context.Context, analysis string) (*model.EnrichedData, error) {
	resp, err := s.model.Generate(ctx, Prompt{
		Phase:  PhaseExtract,
		System: extractionSystemPrompt,
		User:   analysis,
	})
	if err != nil {
		return nil, s.invocationErr(PhaseExtract, err)
	}

	data, err := DecodeEnrichedData(resp)
	if err != nil {
		var malformed *model.MalformedOutputError
		if errors.As(err, &malformed) {
			zap.L().Warn("llm: malformed extraction output",
				zap.String("provider", s.model.Name()),
				zap.String("reason", malformed.Reason),
				zap.String("raw", malformed.Raw),
			)
		}
		return nil, err
	}
	return data, nil
}

func (s *Synthesizer) invocationErr(phase string, err error) error {
	var cfgErr *model.ConfigurationError
	if errors.As(err, &cfgErr) {
		return cfgErr
	}
	return &model.ModelInvocationError{Provider: s.model.Name(), Phase: phase, Cause: err}
}

package enrich

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/client-enricher/internal/cancel"
	"github.com/sells-group/client-enricher/internal/fetch"
	"github.com/sells-group/client-enricher/internal/llm"
	"github.com/sells-group/client-enricher/internal/model"
	"github.com/sells-group/client-enricher/internal/search"
)

// RunOptions controls a single pipeline run.
type RunOptions struct {
	// ForceUpdate bypasses the content extraction cache.
	ForceUpdate bool
}

// Runner runs the pipeline for one client.
type Runner interface {
	Run(ctx context.Context, client model.ClientInput, opts RunOptions) (*model.EnrichedData, error)
}

// Deps are the collaborators a Pipeline is built from. News may be nil to
// skip the news search.
type Deps struct {
	Fetcher      fetch.Fetcher
	FetchOptions fetch.Options
	Basic        search.Provider
	News         search.Provider
	Deep         search.Provider
	Model        llm.Model
	Cancels      cancel.Registry
}

// Pipeline turns a ClientInput into EnrichedData through five ordered stages.
type Pipeline struct {
	fetcher   fetch.Fetcher
	fetchOpts fetch.Options
	basic     search.Provider
	news      search.Provider
	deep      search.Provider
	synth     *llm.Synthesizer
	cancels   cancel.Registry
}

var _ Runner = (*Pipeline)(nil)

// NewPipeline creates a Pipeline.
func NewPipeline(d Deps) *Pipeline {
	return &Pipeline{
		fetcher:   d.Fetcher,
		fetchOpts: d.FetchOptions,
		basic:     d.Basic,
		news:      d.News,
		deep:      d.Deep,
		synth:     llm.NewSynthesizer(d.Model),
		cancels:   d.Cancels,
	}
}

// Stages returns the ordered stage list for a run.
func (p *Pipeline) Stages(opts RunOptions) []Stage {
	fetchOpts := p.fetchOpts
	if opts.ForceUpdate {
		fetchOpts.BypassCache = true
	}
	return []Stage{
		scrapeStage(p.fetcher, fetchOpts),
		searchStage(p.basic, p.news),
		deepSearchStage(p.deep),
		analyzeStage(p.synth),
		extractStage(p.synth),
	}
}

// Run executes every stage for client. It returns a *model.CancelledError
// when a cancellation is observed at a checkpoint and a *model.StageError
// for any stage failure; no partial profile is returned on error.
func (p *Pipeline) Run(ctx context.Context, client model.ClientInput, opts RunOptions) (*model.EnrichedData, error) {
	log := loggerFrom(ctx)
	log.Info("enrich: pipeline starting", zap.Bool("force_update", opts.ForceUpdate))

	final, err := RunStages(ctx, p.cancels, model.NewEnrichmentContext(client), p.Stages(opts))
	if err != nil {
		return nil, err
	}
	if final.EnrichedData == nil {
		return nil, eris.Errorf("enrich: pipeline for client %s produced no data", client.ID)
	}

	log.Info("enrich: pipeline complete", zap.Strings("fields", final.EnrichedData.Keys()))
	return final.EnrichedData, nil
}

package enrich

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/client-enricher/internal/fetch"
	"github.com/sells-group/client-enricher/internal/llm"
	"github.com/sells-group/client-enricher/internal/model"
	"github.com/sells-group/client-enricher/internal/search"
)

func scrapeStage(f fetch.Fetcher, opts fetch.Options) Stage {
	return Stage{Name: StageScrape, Run: func(ctx context.Context, ec model.EnrichmentContext) (model.EnrichmentContext, error) {
		content, err := f.Fetch(ctx, ec.Client.Website, opts)
		if err != nil {
			return ec, err
		}
		loggerFrom(ctx).Debug("enrich: scraped website",
			zap.String("fetcher", f.Name()),
			zap.Int("chars", len(content)),
		)
		return ec.WithScrapedContent(content), nil
	}}
}

// searchStage runs the basic search and, when news is non-nil, the news
// search concurrently. Both must finish before the stage returns.
func searchStage(basic, news search.Provider) Stage {
	return Stage{Name: StageSearch, Run: func(ctx context.Context, ec model.EnrichmentContext) (model.EnrichmentContext, error) {
		var basicResults, newsResults string

		g, gCtx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return runSearch(gCtx, basic, BasicQuery(ec.Client.Name), &basicResults)
		})
		if news != nil {
			g.Go(func() error {
				return runSearch(gCtx, news, NewsQuery(ec.Client.Name), &newsResults)
			})
		}
		if err := g.Wait(); err != nil {
			return ec, err
		}

		return ec.WithSearchResults(basicResults, newsResults), nil
	}}
}

// runSearch converts a provider panic into an error, since a panic on an
// errgroup goroutine cannot be recovered by the caller.
func runSearch(ctx context.Context, p search.Provider, query string, out *string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("enrich: %s search panicked: %v", p.Name(), r)
		}
	}()
	*out, err = p.Search(ctx, query)
	return err
}

func deepSearchStage(deep search.Provider) Stage {
	return Stage{Name: StageDeepSearch, Run: func(ctx context.Context, ec model.EnrichmentContext) (model.EnrichmentContext, error) {
		results, err := deep.Search(ctx, DeepQuery(ec.Client.Name))
		if err != nil {
			return ec, err
		}
		return ec.WithDeepSearchResults(results), nil
	}}
}

func analyzeStage(s *llm.Synthesizer) Stage {
	return Stage{Name: StageAnalyze, Run: func(ctx context.Context, ec model.EnrichmentContext) (model.EnrichmentContext, error) {
		text, err := s.Analyze(ctx, llm.Sources{
			Scraped:     ec.ScrapedContent,
			BasicSearch: ec.BasicSearchResults,
			News:        ec.NewsResults,
			DeepSearch:  ec.DeepSearchResults,
		})
		if err != nil {
			return ec, err
		}
		return ec.WithAnalysisText(text), nil
	}}
}

func extractStage(s *llm.Synthesizer) Stage {
	return Stage{Name: StageExtract, Run: func(ctx context.Context, ec model.EnrichmentContext) (model.EnrichmentContext, error) {
		data, err := s.Extract(ctx, ec.AnalysisText)
		if err != nil {
			return ec, err
		}
		return ec.WithEnrichedData(data), nil
	}}
}

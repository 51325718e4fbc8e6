// Package enrich runs the staged enrichment pipeline and drives its session
// lifecycle.
package enrich

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/client-enricher/internal/cancel"
	"github.com/sells-group/client-enricher/internal/metrics"
	"github.com/sells-group/client-enricher/internal/model"
)

// Stage names in execution order.
const (
	StageScrape     = "scrape"
	StageSearch     = "search"
	StageDeepSearch = "deep_search"
	StageAnalyze    = "analyze"
	StageExtract    = "extract"
)

// StageFunc consumes the accumulated context and returns it with one more
// field populated.
type StageFunc func(ctx context.Context, ec model.EnrichmentContext) (model.EnrichmentContext, error)

// Stage is one named step of the pipeline.
type Stage struct {
	Name string
	Run  StageFunc
}

// RunStages executes stages in order. Before each stage it checks ctx and the
// cancellation registry; an observed cancellation stops the run with a
// *model.CancelledError naming the stage that did not run. Stage failures are
// returned as *model.StageError.
func RunStages(ctx context.Context, reg cancel.Registry, ec model.EnrichmentContext, stages []Stage) (model.EnrichmentContext, error) {
	log := loggerFrom(ctx)
	clientID := ec.Client.ID

	for _, st := range stages {
		if err := ctx.Err(); err != nil {
			metrics.Cancellations.WithLabelValues(st.Name).Inc()
			return ec, &model.CancelledError{ClientID: clientID, Stage: st.Name, Reason: err.Error()}
		}

		cancelled, err := reg.IsCancelled(ctx, clientID)
		if err != nil {
			metrics.StageFailures.WithLabelValues(st.Name, "internal").Inc()
			return ec, &model.StageError{Stage: st.Name, Cause: eris.Wrap(err, "enrich: check cancellation")}
		}
		if cancelled {
			metrics.Cancellations.WithLabelValues(st.Name).Inc()
			log.Info("enrich: cancellation observed", zap.String("stage", st.Name))
			return ec, &model.CancelledError{ClientID: clientID, Stage: st.Name, Reason: "cancellation requested"}
		}

		log.Debug("enrich: stage starting", zap.String("stage", st.Name))
		start := time.Now()
		next, err := st.Run(ctx, ec)
		elapsed := time.Since(start)
		metrics.StageDuration.WithLabelValues(st.Name).Observe(elapsed.Seconds())

		if err != nil {
			if model.IsCancelled(err) {
				return ec, err
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				metrics.Cancellations.WithLabelValues(st.Name).Inc()
				return ec, &model.CancelledError{ClientID: clientID, Stage: st.Name, Reason: ctxErr.Error()}
			}
			kind := model.ErrorKind(err)
			metrics.StageFailures.WithLabelValues(st.Name, kind).Inc()
			log.Error("enrich: stage failed",
				zap.String("stage", st.Name),
				zap.String("kind", kind),
				zap.Int64("duration_ms", elapsed.Milliseconds()),
				zap.Error(err),
			)
			return ec, &model.StageError{Stage: st.Name, Cause: err}
		}

		log.Info("enrich: stage complete",
			zap.String("stage", st.Name),
			zap.Int64("duration_ms", elapsed.Milliseconds()),
		)
		ec = next
	}

	return ec, nil
}

package enrich

import (
	"context"
	"errors"
	"maps"
	"strconv"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/client-enricher/internal/cancel"
	"github.com/sells-group/client-enricher/internal/metrics"
	"github.com/sells-group/client-enricher/internal/model"
	"github.com/sells-group/client-enricher/internal/session"
)

// finaliseTimeout bounds the bookkeeping done after a run ends.
const finaliseTimeout = 10 * time.Second

// Service drives enrichment runs: it opens a session, runs the pipeline and
// guarantees the session reaches a terminal state with the cancellation
// flag cleared, whatever the outcome.
type Service struct {
	runner  Runner
	tracker *session.Tracker
	cancels cancel.Registry

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

// NewService creates a Service.
func NewService(runner Runner, tracker *session.Tracker, reg cancel.Registry) *Service {
	ctx, stop := context.WithCancel(context.Background())
	return &Service{
		runner:  runner,
		tracker: tracker,
		cancels: reg,
		baseCtx: ctx,
		stop:    stop,
	}
}

// Start validates the client, opens a session and runs the pipeline in the
// background. Rejections (validation, *model.AlreadyInProgressError) are
// returned synchronously. The run outlives ctx.
func (s *Service) Start(ctx context.Context, client model.ClientInput, force bool) (*model.Session, error) {
	sess, err := s.begin(ctx, client, force)
	if err != nil {
		return nil, err
	}

	snapshot := *sess
	snapshot.Metadata = maps.Clone(sess.Metadata)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_, _ = s.execute(s.baseCtx, client, sess)
	}()
	return &snapshot, nil
}

// Enrich runs the pipeline synchronously and returns its result along with
// the finished session.
func (s *Service) Enrich(ctx context.Context, client model.ClientInput, force bool) (*model.EnrichedData, *model.Session, error) {
	sess, err := s.begin(ctx, client, force)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.execute(ctx, client, sess)
	return data, sess, err
}

// Cancel requests cancellation of the client's active run. The request
// takes effect at the run's next stage checkpoint. It reports false, and
// sets nothing, when the client has no pending or running session. A flag
// that outlives its run is reset when the next run begins.
func (s *Service) Cancel(ctx context.Context, clientID string) (bool, error) {
	active, err := s.hasActiveRun(ctx, clientID)
	if err != nil {
		return false, err
	}
	if !active {
		zap.L().Info("enrich: cancel ignored, no active run", zap.String("client_id", clientID))
		return false, nil
	}
	if err := s.cancels.Set(ctx, clientID, true); err != nil {
		return false, eris.Wrapf(err, "enrich: request cancellation for %s", clientID)
	}
	zap.L().Info("enrich: cancellation requested", zap.String("client_id", clientID))
	return true, nil
}

// Wait blocks until every background run has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Shutdown cancels the context background runs execute under, so each stops
// at its next checkpoint as cancelled, then waits for them or for ctx.
func (s *Service) Shutdown(ctx context.Context) error {
	s.stop()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "enrich: shutdown")
	}
}

func (s *Service) begin(ctx context.Context, client model.ClientInput, force bool) (*model.Session, error) {
	if err := client.Validate(); err != nil {
		return nil, err
	}
	sess, err := s.tracker.Begin(ctx, client, force)
	if err != nil {
		var inProgress *model.AlreadyInProgressError
		if errors.As(err, &inProgress) {
			metrics.RunsRejected.Inc()
		}
		return nil, err
	}

	// A flag left by a request aimed at an earlier run must not cancel this one.
	if err := s.cancels.Clear(ctx, client.ID); err != nil {
		err = eris.Wrapf(err, "enrich: reset cancellation flag for %s", client.ID)
		if failErr := s.tracker.Fail(context.WithoutCancel(ctx), sess, err); failErr != nil {
			zap.L().Error("enrich: record failed begin", zap.String("session_id", sess.ID), zap.Error(failErr))
		}
		return nil, err
	}
	return sess, nil
}

func (s *Service) hasActiveRun(ctx context.Context, clientID string) (bool, error) {
	if _, ok := s.tracker.Active(clientID); ok {
		return true, nil
	}
	// Another process sharing the store and registry may own the run.
	elsewhere, err := s.tracker.ActiveElsewhere(ctx, clientID)
	if err != nil {
		return false, eris.Wrapf(err, "enrich: look up sessions for %s", clientID)
	}
	return elsewhere, nil
}

// execute runs the pipeline for an opened session. The deferred finaliser
// runs on every exit path, panics included.
func (s *Service) execute(ctx context.Context, client model.ClientInput, sess *model.Session) (data *model.EnrichedData, err error) {
	log := zap.L().With(
		zap.String("client_id", client.ID),
		zap.String("client", client.Name),
		zap.String("session_id", sess.ID),
	)
	ctx = WithLogger(ctx, log)

	metrics.RunsStarted.WithLabelValues(strconv.FormatBool(sess.ForceUpdate)).Inc()
	metrics.ActiveRuns.Inc()
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			data = nil
			err = eris.Errorf("enrich: panic during run: %v", r)
			log.Error("enrich: run panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
		s.finalise(ctx, log, sess, data, err, start)
	}()

	if err := s.tracker.Start(ctx, sess); err != nil {
		return nil, err
	}
	return s.runner.Run(ctx, client, RunOptions{ForceUpdate: sess.ForceUpdate})
}

func (s *Service) finalise(ctx context.Context, log *zap.Logger, sess *model.Session, data *model.EnrichedData, runErr error, start time.Time) {
	ctx, cancelFn := context.WithTimeout(context.WithoutCancel(ctx), finaliseTimeout)
	defer cancelFn()

	var trackErr error
	switch {
	case runErr == nil:
		trackErr = s.tracker.Complete(ctx, sess, data)
	case model.IsCancelled(runErr):
		trackErr = s.tracker.Cancel(ctx, sess, runErr)
	default:
		trackErr = s.tracker.Fail(ctx, sess, runErr)
	}
	if trackErr != nil {
		log.Error("enrich: record session outcome", zap.Error(trackErr))
	}

	if err := s.cancels.Clear(ctx, sess.ClientID); err != nil {
		log.Error("enrich: clear cancellation flag", zap.Error(err))
	}

	elapsed := time.Since(start)
	status := string(sess.Status)
	metrics.ActiveRuns.Dec()
	metrics.RunsFinished.WithLabelValues(status).Inc()
	metrics.RunDuration.WithLabelValues(status).Observe(elapsed.Seconds())

	fields := []zap.Field{
		zap.String("status", status),
		zap.Int64("duration_ms", elapsed.Milliseconds()),
	}
	if runErr != nil {
		fields = append(fields, zap.String("kind", model.ErrorKind(runErr)), zap.Error(runErr))
	}
	log.Info("enrich: run finished", fields...)
}

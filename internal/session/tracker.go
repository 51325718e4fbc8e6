// Package session tracks the lifecycle of enrichment runs and enforces at
// most one active run per client.
package session

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/client-enricher/internal/model"
	"github.com/sells-group/client-enricher/internal/store"
)

// DefaultStaleAfter is how long a pending or running session owned by
// another process blocks new runs before it is treated as abandoned.
const DefaultStaleAfter = time.Hour

// metaOwner is the session metadata key naming the process that runs it.
const metaOwner = "owner"

// Tracker owns the per-client session slots and persists every transition.
// Slots held by this process live in memory; sessions opened by other
// processes sharing the store are seen through it.
type Tracker struct {
	store      store.Store
	owner      string
	staleAfter time.Duration
	now        func() time.Time

	mu     sync.Mutex
	active map[string]*model.Session
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithOwner names this process in the sessions it opens. Processes sharing a
// store must use distinct owners. Defaults to the hostname.
func WithOwner(owner string) Option {
	return func(t *Tracker) {
		if owner != "" {
			t.owner = owner
		}
	}
}

// WithStaleAfter sets how old another process's active session must be
// before it no longer blocks new runs and may be recovered.
func WithStaleAfter(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.staleAfter = d
		}
	}
}

// NewTracker creates a Tracker over st.
func NewTracker(st store.Store, opts ...Option) *Tracker {
	host, _ := os.Hostname()
	if host == "" {
		host = "localhost"
	}
	t := &Tracker{
		store:      st,
		owner:      host,
		staleAfter: DefaultStaleAfter,
		now:        func() time.Time { return time.Now().UTC() },
		active:     make(map[string]*model.Session),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Owner returns the name this Tracker records on its sessions.
func (t *Tracker) Owner() string { return t.owner }

// Active returns the session occupying the client's slot, if any.
func (t *Tracker) Active(clientID string) (*model.Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.active[clientID]
	if !ok {
		return nil, false
	}
	cp := *s
	return &cp, true
}

// Begin creates a pending session for the client. It fails with
// *model.AlreadyInProgressError when the client already has a pending or
// running session, here or in another process sharing the store, unless
// force is set. Forcing does not stop the earlier run; it only hands the
// slot to the new session.
//
// Two processes beginning the same client at the same instant can both
// pass the store check; the slot map only serialises runs within one
// process.
func (t *Tracker) Begin(ctx context.Context, client model.ClientInput, force bool) (*model.Session, error) {
	now := t.now()
	sess := &model.Session{
		ID:          uuid.New().String(),
		ClientID:    client.ID,
		Status:      model.SessionStatusPending,
		ForceUpdate: force,
		StartedAt:   now,
		Metadata: map[string]any{
			"force_update": force,
			"client_name":  client.Name,
			metaOwner:      t.owner,
		},
	}

	t.mu.Lock()
	if prev, ok := t.active[client.ID]; ok {
		if !force {
			t.mu.Unlock()
			return nil, &model.AlreadyInProgressError{ClientID: client.ID, SessionID: prev.ID, Status: prev.Status}
		}
		sess.Metadata["superseded_session"] = prev.ID
		zap.L().Warn("session: forced run while another is active",
			zap.String("client_id", client.ID),
			zap.String("previous_session_id", prev.ID),
			zap.String("session_id", sess.ID),
		)
	}
	slot := *sess
	t.active[client.ID] = &slot
	t.mu.Unlock()

	remote, err := t.remoteActive(ctx, client.ID)
	if err != nil {
		t.release(sess)
		return nil, eris.Wrap(err, "session: begin")
	}
	if remote != nil {
		if !force {
			t.release(sess)
			return nil, &model.AlreadyInProgressError{ClientID: client.ID, SessionID: remote.ID, Status: remote.Status}
		}
		sess.Metadata["superseded_session"] = remote.ID
	}

	err = t.store.SaveClient(ctx, model.ClientRecord{
		ID:       client.ID,
		Name:     client.Name,
		Website:  client.Website,
		Industry: client.Industry,
		Status:   model.ClientStatusPendingEnrichment,
	})
	if err == nil {
		err = t.store.CreateSession(ctx, sess)
	}
	if err != nil {
		t.release(sess)
		return nil, eris.Wrap(err, "session: begin")
	}

	t.appendLog(ctx, sess, "", map[string]any{"event": "requested"})
	cp := *sess
	return &cp, nil
}

// Start moves a pending session to running.
func (t *Tracker) Start(ctx context.Context, sess *model.Session) error {
	return t.transition(ctx, sess, model.SessionStatusRunning, nil, nil, nil)
}

// Complete records a successful run and stores its profile on the client.
func (t *Tracker) Complete(ctx context.Context, sess *model.Session, data *model.EnrichedData) error {
	return t.transition(ctx, sess, model.SessionStatusCompleted, data, nil, nil)
}

// Fail records a failed run.
func (t *Tracker) Fail(ctx context.Context, sess *model.Session, cause error) error {
	if cause == nil {
		cause = eris.New("unknown failure")
	}
	meta := map[string]any{"error_kind": model.ErrorKind(cause)}
	if stage := stageOf(cause); stage != "" {
		meta["stage"] = stage
	}
	return t.transition(ctx, sess, model.SessionStatusFailed, nil, cause, meta)
}

// Cancel records a run that observed a cancellation request.
func (t *Tracker) Cancel(ctx context.Context, sess *model.Session, cause error) error {
	meta := map[string]any{}
	if stage := stageOf(cause); stage != "" {
		meta["stage"] = stage
	}
	if cause == nil {
		cause = &model.CancelledError{ClientID: sess.ClientID, Reason: "cancelled"}
	}
	return t.transition(ctx, sess, model.SessionStatusCancelled, nil, cause, meta)
}

// ActiveElsewhere reports whether a live pending or running session for
// the client exists in the store without being held by this Tracker.
func (t *Tracker) ActiveElsewhere(ctx context.Context, clientID string) (bool, error) {
	remote, err := t.remoteActive(ctx, clientID)
	return remote != nil, err
}

// RecoverOrphans fails sessions left pending or running by an earlier run of
// this process, identified by owner, and any other process's session older
// than the stale threshold. Runs are in-process only, so such sessions can
// never finish. Live sessions of other processes are left alone.
func (t *Tracker) RecoverOrphans(ctx context.Context) (int, error) {
	var n int
	for _, status := range []model.SessionStatus{model.SessionStatusPending, model.SessionStatusRunning} {
		sessions, err := t.store.ListSessions(ctx, store.SessionFilter{Status: status, Limit: 1000})
		if err != nil {
			return n, eris.Wrap(err, "session: list orphans")
		}
		for i := range sessions {
			sess := &sessions[i]
			if t.holds(sess) {
				continue
			}
			if owner := ownerOf(sess); owner != "" && owner != t.owner && !t.stale(sess) {
				continue
			}
			if err := t.finish(ctx, sess, model.SessionStatusFailed, nil, eris.New("interrupted by process restart"), map[string]any{"event": "recovered"}); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}

func legal(from, to model.SessionStatus) bool {
	switch to {
	case model.SessionStatusRunning:
		return from == model.SessionStatusPending
	case model.SessionStatusCompleted:
		return from == model.SessionStatusRunning
	case model.SessionStatusFailed, model.SessionStatusCancelled:
		return from.IsActive()
	}
	return false
}

func (t *Tracker) transition(ctx context.Context, sess *model.Session, to model.SessionStatus, data *model.EnrichedData, cause error, meta map[string]any) error {
	if !legal(sess.Status, to) {
		return eris.Errorf("session: illegal transition %s -> %s for session %s", sess.Status, to, sess.ID)
	}
	return t.finish(ctx, sess, to, data, cause, meta)
}

func (t *Tracker) finish(ctx context.Context, sess *model.Session, to model.SessionStatus, data *model.EnrichedData, cause error, meta map[string]any) error {
	sess.Status = to
	if cause != nil {
		sess.Error = cause.Error()
	}
	if to.IsTerminal() {
		now := t.now()
		sess.CompletedAt = &now
		sess.EnrichedData = data
		if sess.Metadata == nil {
			sess.Metadata = map[string]any{}
		}
		sess.Metadata["duration_ms"] = now.Sub(sess.StartedAt).Milliseconds()
		for _, k := range []string{"stage", "error_kind"} {
			if v, ok := meta[k]; ok {
				sess.Metadata[k] = v
			}
		}
		t.release(sess)
	} else {
		t.mu.Lock()
		if cur, ok := t.active[sess.ClientID]; ok && cur.ID == sess.ID {
			cur.Status = to
		}
		t.mu.Unlock()
	}

	var errs []error
	if err := t.store.UpdateSession(ctx, sess); err != nil {
		errs = append(errs, err)
	}
	if err := t.store.UpdateClientStatus(ctx, sess.ClientID, to.ClientStatus(), data); err != nil {
		errs = append(errs, err)
	}
	t.appendLog(ctx, sess, sess.Error, meta)

	if err := errors.Join(errs...); err != nil {
		return eris.Wrapf(err, "session: record %s for session %s", to, sess.ID)
	}
	return nil
}

// remoteActive returns the newest live pending or running session for the
// client that this Tracker does not hold.
func (t *Tracker) remoteActive(ctx context.Context, clientID string) (*model.Session, error) {
	for _, status := range []model.SessionStatus{model.SessionStatusRunning, model.SessionStatusPending} {
		sessions, err := t.store.ListSessions(ctx, store.SessionFilter{ClientID: clientID, Status: status})
		if err != nil {
			return nil, err
		}
		for i := range sessions {
			if !t.holds(&sessions[i]) && !t.stale(&sessions[i]) {
				return &sessions[i], nil
			}
		}
	}
	return nil, nil
}

// holds reports whether sess occupies a slot in this Tracker.
func (t *Tracker) holds(sess *model.Session) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	cur, ok := t.active[sess.ClientID]
	return ok && cur.ID == sess.ID
}

func (t *Tracker) stale(sess *model.Session) bool {
	return t.now().Sub(sess.StartedAt) > t.staleAfter
}

func ownerOf(sess *model.Session) string {
	owner, _ := sess.Metadata[metaOwner].(string)
	return owner
}

// release frees the client's slot if sess still holds it.
func (t *Tracker) release(sess *model.Session) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.active[sess.ClientID]; ok && cur.ID == sess.ID {
		delete(t.active, sess.ClientID)
	}
}

func (t *Tracker) appendLog(ctx context.Context, sess *model.Session, errMsg string, meta map[string]any) {
	md := map[string]any{
		"at":           t.now().Format(time.RFC3339Nano),
		"force_update": sess.ForceUpdate,
	}
	for k, v := range meta {
		md[k] = v
	}
	err := t.store.AppendLog(ctx, &model.EnrichmentLog{
		ClientID:  sess.ClientID,
		SessionID: sess.ID,
		Status:    sess.Status,
		Error:     errMsg,
		Metadata:  md,
	})
	if err != nil {
		zap.L().Error("session: append log failed",
			zap.String("session_id", sess.ID),
			zap.String("status", string(sess.Status)),
			zap.Error(err),
		)
	}
}

func stageOf(err error) string {
	var cancelled *model.CancelledError
	if errors.As(err, &cancelled) {
		return cancelled.Stage
	}
	var stageErr *model.StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage
	}
	return ""
}

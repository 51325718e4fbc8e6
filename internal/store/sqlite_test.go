package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/client-enricher/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func acmeRecord() model.ClientRecord {
	return model.ClientRecord{
		ID:       "c1",
		Name:     "Acme Co",
		Website:  "https://acme.example",
		Industry: "tech",
	}
}

func TestSQLite_MigrateIdempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.Migrate(context.Background()))
}

func TestSQLite_SaveAndGetClient(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveClient(ctx, acmeRecord()))

	got, err := st.GetClient(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Acme Co", got.Name)
	assert.Equal(t, "https://acme.example", got.Website)
	assert.Equal(t, model.ClientStatusPendingEnrichment, got.Status)
	assert.Nil(t, got.EnrichedData)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestSQLite_SaveClientUpserts(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveClient(ctx, acmeRecord()))
	require.NoError(t, st.UpdateClientStatus(ctx, "c1", model.ClientStatusEnriched, &model.EnrichedData{Founded: "2015"}))

	rec := acmeRecord()
	rec.Name = "Acme Corporation"
	rec.Status = model.ClientStatusPendingEnrichment
	require.NoError(t, st.SaveClient(ctx, rec))

	got, err := st.GetClient(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Acme Corporation", got.Name)
	require.NotNil(t, got.EnrichedData, "upsert keeps the previous profile")
	assert.Equal(t, "2015", got.EnrichedData.Founded)
}

func TestSQLite_UpdateClientStatus(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	require.NoError(t, st.SaveClient(ctx, acmeRecord()))

	data := &model.EnrichedData{
		EmployeeCount: "50-100",
		SocialMedia:   &model.SocialMedia{LinkedIn: "https://linkedin.com/company/acme"},
		Competitors:   []string{"Globex"},
	}
	require.NoError(t, st.UpdateClientStatus(ctx, "c1", model.ClientStatusEnriched, data))

	got, err := st.GetClient(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, model.ClientStatusEnriched, got.Status)
	assert.Equal(t, data, got.EnrichedData)

	// A status-only update leaves the stored profile alone.
	require.NoError(t, st.UpdateClientStatus(ctx, "c1", model.ClientStatusFailed, nil))
	got, err = st.GetClient(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, model.ClientStatusFailed, got.Status)
	assert.Equal(t, data, got.EnrichedData)
}

func TestSQLite_ClientNotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.GetClient(ctx, "missing")
	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "client", nf.Entity)

	err = st.UpdateClientStatus(ctx, "missing", model.ClientStatusEnriched, nil)
	require.True(t, errors.As(err, &nf))
}

func TestSQLite_ListClients(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	for _, rec := range []model.ClientRecord{
		{ID: "c1", Name: "Acme Co", Industry: "tech"},
		{ID: "c2", Name: "Globex", Industry: "tech"},
		{ID: "c3", Name: "Initech", Industry: "finance"},
	} {
		require.NoError(t, st.SaveClient(ctx, rec))
	}
	require.NoError(t, st.UpdateClientStatus(ctx, "c2", model.ClientStatusEnriched, &model.EnrichedData{Founded: "1989"}))

	ids := func(recs []model.ClientRecord) []string {
		out := make([]string, 0, len(recs))
		for _, r := range recs {
			out = append(out, r.ID)
		}
		return out
	}

	all, err := st.ListClients(ctx, ClientFilter{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"c1", "c2", "c3"}, ids(all))

	tech, err := st.ListClients(ctx, ClientFilter{Industry: "tech"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"c1", "c2"}, ids(tech))

	enriched, err := st.ListClients(ctx, ClientFilter{Status: model.ClientStatusEnriched, Industry: "tech"})
	require.NoError(t, err)
	require.Len(t, enriched, 1)
	assert.Equal(t, "c2", enriched[0].ID)
	require.NotNil(t, enriched[0].EnrichedData)
	assert.Equal(t, "1989", enriched[0].EnrichedData.Founded)

	page, err := st.ListClients(ctx, ClientFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page, 2)
	rest, err := st.ListClients(ctx, ClientFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.NotContains(t, ids(page), rest[0].ID)

	none, err := st.ListClients(ctx, ClientFilter{Industry: "retail"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLite_SessionLifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	sess := &model.Session{
		ClientID:    "c1",
		Status:      model.SessionStatusPending,
		ForceUpdate: true,
		Metadata:    map[string]any{"source": "api"},
	}
	require.NoError(t, st.CreateSession(ctx, sess))
	require.NotEmpty(t, sess.ID)
	assert.False(t, sess.StartedAt.IsZero())

	got, err := st.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusPending, got.Status)
	assert.True(t, got.ForceUpdate)
	assert.Nil(t, got.CompletedAt)
	assert.Equal(t, "api", got.Metadata["source"])

	done := time.Now().UTC()
	sess.Status = model.SessionStatusCompleted
	sess.CompletedAt = &done
	sess.EnrichedData = &model.EnrichedData{Founded: "2015"}
	require.NoError(t, st.UpdateSession(ctx, sess))

	got, err = st.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
	assert.WithinDuration(t, done, *got.CompletedAt, time.Second)
	assert.Equal(t, "2015", got.EnrichedData.Founded)
}

func TestSQLite_SessionNotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.GetSession(ctx, "nope")
	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))

	err = st.UpdateSession(ctx, &model.Session{ID: "nope", Status: model.SessionStatusFailed})
	require.True(t, errors.As(err, &nf))
}

func TestSQLite_ListSessions(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i, tc := range []struct {
		client string
		status model.SessionStatus
	}{
		{"c1", model.SessionStatusFailed},
		{"c1", model.SessionStatusCompleted},
		{"c2", model.SessionStatusRunning},
	} {
		require.NoError(t, st.CreateSession(ctx, &model.Session{
			ClientID:  tc.client,
			Status:    tc.status,
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	all, err := st.ListSessions(ctx, SessionFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c2", all[0].ClientID, "newest first")

	c1, err := st.ListSessions(ctx, SessionFilter{ClientID: "c1"})
	require.NoError(t, err)
	require.Len(t, c1, 2)
	assert.Equal(t, model.SessionStatusCompleted, c1[0].Status)

	running, err := st.ListSessions(ctx, SessionFilter{Status: model.SessionStatusRunning})
	require.NoError(t, err)
	require.Len(t, running, 1)

	page, err := st.ListSessions(ctx, SessionFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, model.SessionStatusCompleted, page[0].Status)
}

func TestSQLite_Logs(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	first := &model.EnrichmentLog{ClientID: "c1", SessionID: "s1", Status: model.SessionStatusPending, CreatedAt: time.Now().UTC().Add(-time.Minute)}
	second := &model.EnrichmentLog{ClientID: "c1", SessionID: "s1", Status: model.SessionStatusFailed, Error: "boom", Metadata: map[string]any{"stage": "scrape"}}
	other := &model.EnrichmentLog{ClientID: "c2", SessionID: "s2", Status: model.SessionStatusPending}
	for _, l := range []*model.EnrichmentLog{first, second, other} {
		require.NoError(t, st.AppendLog(ctx, l))
		assert.NotEmpty(t, l.ID)
	}

	logs, err := st.ListLogs(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, model.SessionStatusFailed, logs[0].Status)
	assert.Equal(t, "boom", logs[0].Error)
	assert.Equal(t, "scrape", logs[0].Metadata["stage"])
	assert.Equal(t, model.SessionStatusPending, logs[1].Status)
}

func TestNotFoundError(t *testing.T) {
	err := &NotFoundError{Entity: "session", ID: "abc"}
	assert.Equal(t, "session not found: abc", err.Error())
}

func TestListLimit(t *testing.T) {
	assert.Equal(t, defaultListLimit, listLimit(0))
	assert.Equal(t, defaultListLimit, listLimit(-5))
	assert.Equal(t, 7, listLimit(7))
}

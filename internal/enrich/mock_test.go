package enrich

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/client-enricher/internal/cancel"
	"github.com/sells-group/client-enricher/internal/fetch"
	"github.com/sells-group/client-enricher/internal/llm"
	"github.com/sells-group/client-enricher/internal/model"
	"github.com/sells-group/client-enricher/internal/session"
	"github.com/sells-group/client-enricher/internal/store"
)

// --- Fetcher Mock ---

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) Fetch(ctx context.Context, url string, opts fetch.Options) (string, error) {
	args := m.Called(ctx, url, opts)
	return args.String(0), args.Error(1)
}

func (m *mockFetcher) Name() string { return "mock_fetcher" }

// --- Search Provider Mock ---

type mockProvider struct {
	mock.Mock
	name string
}

func (m *mockProvider) Search(ctx context.Context, query string) (string, error) {
	args := m.Called(ctx, query)
	return args.String(0), args.Error(1)
}

func (m *mockProvider) Name() string { return m.name }

// --- Model Mock ---

type mockModel struct {
	mock.Mock
}

func (m *mockModel) Generate(ctx context.Context, p llm.Prompt) (*llm.Response, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*llm.Response), args.Error(1)
}

func (m *mockModel) Name() string { return "mock_model" }

func phase(name string) any {
	return mock.MatchedBy(func(p llm.Prompt) bool { return p.Phase == name })
}

func textResponse(s string) *llm.Response {
	return &llm.Response{Parts: []llm.Part{{Type: llm.PartText, Text: s}}}
}

// --- Harness ---

var acme = model.ClientInput{ID: "c1", Name: "Acme Co", Website: "https://acme.example", Industry: "tech"}

const acmeExtraction = "```json\n{\"employeeCount\": \"50-100\", \"founded\": \"2015\"}\n```"

type harness struct {
	fetcher *mockFetcher
	basic   *mockProvider
	news    *mockProvider
	deep    *mockProvider
	model   *mockModel
	reg     *cancel.Memory
	store   *store.SQLiteStore
	tracker *session.Tracker
	svc     *Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	h := &harness{
		fetcher: &mockFetcher{},
		basic:   &mockProvider{name: "basic"},
		news:    &mockProvider{name: "news"},
		deep:    &mockProvider{name: "deep"},
		model:   &mockModel{},
		reg:     cancel.NewMemory(),
		store:   st,
		tracker: session.NewTracker(st),
	}
	h.svc = NewService(h.pipeline(), h.tracker, h.reg)
	return h
}

func (h *harness) pipeline() *Pipeline {
	return NewPipeline(Deps{
		Fetcher:      h.fetcher,
		FetchOptions: fetch.DefaultOptions(),
		Basic:        h.basic,
		News:         h.news,
		Deep:         h.deep,
		Model:        h.model,
		Cancels:      h.reg,
	})
}

// calls holds one registered expectation per external call of a run.
type calls struct {
	fetch, basic, news, deep, analyze, extract *mock.Call
}

// expectRun registers a successful call for every stage of an Acme run.
func (h *harness) expectRun() calls {
	return calls{
		fetch:   h.fetcher.On("Fetch", mock.Anything, acme.Website, mock.Anything).Return("# Acme Co\nWe make widgets.", nil),
		basic:   h.basic.On("Search", mock.Anything, BasicQuery(acme.Name)).Return("basic results", nil),
		news:    h.news.On("Search", mock.Anything, NewsQuery(acme.Name)).Return("news results", nil),
		deep:    h.deep.On("Search", mock.Anything, DeepQuery(acme.Name)).Return("deep results", nil),
		analyze: h.model.On("Generate", mock.Anything, phase(llm.PhaseAnalyze)).Return(textResponse("Acme analysis"), nil),
		extract: h.model.On("Generate", mock.Anything, phase(llm.PhaseExtract)).Return(textResponse(acmeExtraction), nil),
	}
}

func (h *harness) flagSet(t *testing.T, clientID string) bool {
	t.Helper()
	set, err := h.reg.IsCancelled(context.Background(), clientID)
	require.NoError(t, err)
	return set
}

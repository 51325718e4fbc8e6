package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/client-enricher/internal/cancel"
	"github.com/sells-group/client-enricher/internal/config"
	"github.com/sells-group/client-enricher/internal/enrich"
	"github.com/sells-group/client-enricher/internal/fetch"
	"github.com/sells-group/client-enricher/internal/llm"
	"github.com/sells-group/client-enricher/internal/search"
	"github.com/sells-group/client-enricher/internal/session"
	"github.com/sells-group/client-enricher/internal/store"
	anthropicpkg "github.com/sells-group/client-enricher/pkg/anthropic"
	"github.com/sells-group/client-enricher/pkg/firecrawl"
	"github.com/sells-group/client-enricher/pkg/jina"
	"github.com/sells-group/client-enricher/pkg/perplexity"
	"github.com/sells-group/client-enricher/pkg/serper"
	"github.com/sells-group/client-enricher/pkg/tavily"
)

// appEnv holds the store, the cancellation registry and the enrichment
// service needed by the serve and enrich commands.
type appEnv struct {
	Store   store.Store
	Cancels cancel.Registry
	Tracker *session.Tracker
	Service *enrich.Service
	redis   *redis.Client
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.redis != nil {
		_ = e.redis.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initApp opens and migrates the store, builds every provider from cfg and
// wires the enrichment service. Callers should defer env.Close().
func initApp(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	env := &appEnv{Store: st}

	env.Cancels, env.redis, err = buildCancels(ctx, cfg)
	if err != nil {
		env.Close()
		return nil, err
	}

	model, err := buildModel(cfg)
	if err != nil {
		env.Close()
		return nil, err
	}

	basic, news, deep, err := buildSearch(cfg)
	if err != nil {
		env.Close()
		return nil, err
	}

	pipeline := enrich.NewPipeline(enrich.Deps{
		Fetcher:      buildFetcher(cfg),
		FetchOptions: fetchOptions(cfg),
		Basic:        basic,
		News:         news,
		Deep:         deep,
		Model:        model,
		Cancels:      env.Cancels,
	})

	env.Tracker = session.NewTracker(st,
		session.WithOwner(instanceID(cfg, mode)),
		session.WithStaleAfter(time.Duration(cfg.Session.StaleAfterSecs)*time.Second),
	)
	env.Service = enrich.NewService(pipeline, env.Tracker, env.Cancels)

	zap.L().Info("enrichment service ready",
		zap.String("store", cfg.Store.Driver),
		zap.String("cancel_backend", cfg.Cancel.Backend),
		zap.String("instance", env.Tracker.Owner()),
		zap.String("llm", model.Name()),
		zap.String("deep_search", deep.Name()),
		zap.Bool("news", news != nil),
	)
	return env, nil
}

// instanceID names this process on its sessions. A one-shot CLI run gets
// its own name so a server sharing the store never recovers it as its own
// orphan.
func instanceID(c *config.Config, mode string) string {
	id := c.Session.InstanceID
	if id == "" {
		id, _ = os.Hostname()
	}
	if mode != "serve" {
		id = fmt.Sprintf("%s/%s-%d", id, mode, os.Getpid())
	}
	return id
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "enricher.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// buildFetcher returns Jina alone, or Jina with a Firecrawl fallback when a
// Firecrawl key is configured.
func buildFetcher(c *config.Config) fetch.Fetcher {
	jinaFetcher := fetch.NewJinaFetcher(jina.NewClient(c.Jina.Key, jina.WithBaseURL(c.Jina.BaseURL)))
	if c.Firecrawl.Key == "" {
		return jinaFetcher
	}
	fc := firecrawl.NewClient(c.Firecrawl.Key, firecrawl.WithBaseURL(c.Firecrawl.BaseURL))
	return fetch.NewChain(jinaFetcher, fetch.NewFirecrawlFetcher(fc, c.Firecrawl.Key))
}

func fetchOptions(c *config.Config) fetch.Options {
	opts := fetch.DefaultOptions()
	opts.Timeout = time.Duration(c.Jina.TimeoutSecs) * time.Second
	opts.IncludeImageCaptions = c.Jina.GeneratedAlt
	opts.Streaming = c.Jina.Streaming
	opts.CacheTolerance = time.Duration(c.Jina.CacheToleranceSecs) * time.Second
	return opts
}

// buildSearch returns the basic, news and deep providers. news is nil when
// the news search is disabled.
func buildSearch(c *config.Config) (basic, news, deep search.Provider, err error) {
	sc := serper.NewClient(c.Serper.Key, serper.WithBaseURL(c.Serper.BaseURL))
	basic = search.NewSerper(sc, c.Serper.Key, c.Serper.Num)
	if c.Search.NewsEnabled {
		news = search.NewSerperNews(sc, c.Serper.Key, c.Serper.Num)
	}

	switch c.Search.DeepProvider {
	case "tavily":
		tc := tavily.NewClient(c.Tavily.Key, tavily.WithBaseURL(c.Tavily.BaseURL))
		deep = search.NewTavily(tc, c.Tavily.Key, search.TavilyOptions{
			SearchDepth:       c.Tavily.SearchDepth,
			MaxResults:        c.Tavily.MaxResults,
			IncludeRawContent: c.Tavily.IncludeRawContent,
			IncludeImages:     c.Tavily.IncludeImages,
		})
	case "perplexity":
		pc := perplexity.NewClient(c.Perplexity.Key,
			perplexity.WithBaseURL(c.Perplexity.BaseURL),
			perplexity.WithModel(c.Perplexity.Model),
		)
		deep = search.NewPerplexity(pc, c.Perplexity.Key)
	default:
		return nil, nil, nil, eris.Errorf("unsupported deep search provider: %s", c.Search.DeepProvider)
	}
	return basic, news, deep, nil
}

func buildModel(c *config.Config) (llm.Model, error) {
	settings := llm.Settings{
		Temperature: c.LLM.Temperature,
		MaxTokens:   c.LLM.MaxTokens,
	}
	switch c.LLM.Provider {
	case "openai":
		settings.Model = c.OpenAI.Model
		return llm.NewOpenAIModel(c.OpenAI.Key, c.OpenAI.BaseURL, settings), nil
	case "anthropic":
		settings.Model = c.Anthropic.Model
		return llm.NewAnthropicModel(anthropicpkg.NewClient(c.Anthropic.Key), c.Anthropic.Key, settings), nil
	case "gemini":
		settings.Model = c.Gemini.Model
		return llm.NewGeminiModel(c.Gemini.Key, c.Gemini.BaseURL, settings), nil
	default:
		return nil, eris.Errorf("unsupported llm provider: %s", c.LLM.Provider)
	}
}

// buildCancels returns the configured registry. The Redis client, when one
// is opened, is returned so the caller can close it.
func buildCancels(ctx context.Context, c *config.Config) (cancel.Registry, *redis.Client, error) {
	switch c.Cancel.Backend {
	case "memory":
		return cancel.NewMemory(), nil, nil
	case "redis":
		rc := redis.NewClient(&redis.Options{
			Addr:     c.Redis.Addr,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
		})
		if err := rc.Ping(ctx).Err(); err != nil {
			_ = rc.Close()
			return nil, nil, eris.Wrapf(err, "connect redis at %s", c.Redis.Addr)
		}
		ttl := time.Duration(c.Redis.TTLSecs) * time.Second
		return cancel.NewRedis(rc, c.Redis.KeyPrefix, ttl), rc, nil
	default:
		return nil, nil, eris.Errorf("unsupported cancel backend: %s", c.Cancel.Backend)
	}
}

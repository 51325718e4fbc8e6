package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "enricher.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "memory", cfg.Cancel.Backend)
	assert.Equal(t, "enrich:cancel", cfg.Redis.KeyPrefix)
	assert.Equal(t, 3600, cfg.Redis.TTLSecs)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Empty(t, cfg.Session.InstanceID)
	assert.Equal(t, 3600, cfg.Session.StaleAfterSecs)
	assert.Equal(t, "https://r.jina.ai", cfg.Jina.BaseURL)
	assert.Equal(t, 30, cfg.Jina.TimeoutSecs)
	assert.True(t, cfg.Jina.GeneratedAlt)
	assert.True(t, cfg.Jina.Streaming)
	assert.Equal(t, 3600, cfg.Jina.CacheToleranceSecs)
	assert.Equal(t, "https://google.serper.dev", cfg.Serper.BaseURL)
	assert.Equal(t, 5, cfg.Serper.Num)
	assert.Equal(t, "advanced", cfg.Tavily.SearchDepth)
	assert.Equal(t, 5, cfg.Tavily.MaxResults)
	assert.True(t, cfg.Tavily.IncludeRawContent)
	assert.Equal(t, "sonar-pro", cfg.Perplexity.Model)
	assert.Equal(t, "tavily", cfg.Search.DeepProvider)
	assert.True(t, cfg.Search.NewsEnabled)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.InDelta(t, 0.0, cfg.LLM.Temperature, 0.0001)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.Model)
	assert.Empty(t, cfg.OpenAI.Key)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/enrich
log:
  level: debug
  format: console
server:
  port: 9090
llm:
  provider: gemini
search:
  news_enabled: false
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/enrich", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.False(t, cfg.Search.NewsEnabled)
	// Defaults still apply for unset values
	assert.Equal(t, 30, cfg.Jina.TimeoutSecs)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("ENRICH_STORE_DRIVER", "postgres")
	t.Setenv("ENRICH_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("ENRICH_SERVER_PORT", "3000")
	t.Setenv("ENRICH_SERPER_KEY", "serper-key")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "serper-key", cfg.Serper.Key)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unterminated"), 0644))

	_, err := Load()
	assert.Error(t, err)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "enricher.db"
	cfg.Cancel.Backend = "memory"
	cfg.LLM.Provider = "openai"
	cfg.Search.DeepProvider = "tavily"
	cfg.Server.Port = 8080
	return cfg
}

func TestValidate_Defaults(t *testing.T) {
	t.Parallel()
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("serve"))
	assert.NoError(t, cfg.Validate("enrich"))
	assert.NoError(t, cfg.Validate("migrate"))
}

func TestValidate_MissingKeysAreNotStartupErrors(t *testing.T) {
	t.Parallel()
	cfg := validDefaults()
	cfg.OpenAI.Key = ""
	cfg.Serper.Key = ""
	assert.NoError(t, cfg.Validate("enrich"))
}

func TestValidate_UnsupportedValues(t *testing.T) {
	t.Parallel()
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"
	cfg.LLM.Provider = "cohere"
	cfg.Cancel.Backend = "etcd"
	cfg.Search.DeepProvider = "bing"

	err := cfg.Validate("enrich")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `store.driver "mysql"`)
	assert.Contains(t, err.Error(), `llm.provider "cohere"`)
	assert.Contains(t, err.Error(), `cancel.backend "etcd"`)
	assert.Contains(t, err.Error(), `search.deep_provider "bing"`)
}

func TestValidate_MigrateOnlyChecksStore(t *testing.T) {
	t.Parallel()
	cfg := validDefaults()
	cfg.LLM.Provider = ""
	assert.NoError(t, cfg.Validate("migrate"))

	cfg.Store.DatabaseURL = ""
	err := cfg.Validate("migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestValidate_RedisBackendNeedsAddr(t *testing.T) {
	t.Parallel()
	cfg := validDefaults()
	cfg.Cancel.Backend = "redis"
	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis.addr")

	cfg.Redis.Addr = "localhost:6379"
	assert.NoError(t, cfg.Validate("serve"))
}

func TestValidateServe_InvalidPort(t *testing.T) {
	t.Parallel()
	cfg := validDefaults()
	cfg.Server.Port = 0
	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")

	// Port only matters for serve.
	assert.NoError(t, cfg.Validate("enrich"))
}

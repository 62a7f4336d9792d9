package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, int32(10), cfg.Store.MaxConns)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 120*time.Second, cfg.Server.RequestTimeout())
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.Anthropic.Model)
	assert.Equal(t, 8, cfg.Anthropic.MaxIterations)
	assert.Equal(t, "gemini-embedding-001", cfg.Embedding.Model)
	assert.Equal(t, 2000, cfg.Embedding.Dimension)
	assert.Equal(t, 5, cfg.Embedding.BatchSize)
	assert.InDelta(t, 0.4, cfg.Search.Threshold, 0.001)
	assert.Equal(t, 4, cfg.Search.TopK)
	assert.Equal(t, 30, cfg.Quote.ValidityDays)
	assert.Equal(t, "Asia/Bangkok", cfg.Quote.Timezone)
	assert.Equal(t, 6, cfg.Quote.SuffixLen)
	assert.Equal(t, 20, cfg.Transcript.Window)
	assert.Equal(t, "THB", cfg.Payment.Currency)
	assert.False(t, cfg.Agent.AllowPaymentUpdates)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
  database_url: file:zeus.db
log:
  level: debug
  format: console
server:
  port: 9090
search:
  threshold: 0.5
  top_k: 5
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "file:zeus.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.InDelta(t, 0.5, cfg.Search.Threshold, 0.001)
	assert.Equal(t, 5, cfg.Search.TopK)
	// Defaults still apply for unset values
	assert.Equal(t, 30, cfg.Quote.ValidityDays)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("ZEUS_STORE_DRIVER", "postgres")
	t.Setenv("ZEUS_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("ZEUS_SERVER_PORT", "3000")
	t.Setenv("ZEUS_ANTHROPIC_KEY", "sk-ant-test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "sk-ant-test", cfg.Anthropic.Key)
}

func TestLoadFile_NamedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zeus-staging.yaml")
	yaml := `
store:
  driver: sqlite
  database_url: /var/lib/zeus/zeus.db
agent:
  allow_payment_updates: true
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "/var/lib/zeus/zeus.db", cfg.Store.DatabaseURL)
	assert.True(t, cfg.Agent.AllowPaymentUpdates)
	assert.Equal(t, 20, cfg.Transcript.Window)
}

func TestLoadFile_MissingNamedFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestQuoteLocation(t *testing.T) {
	loc := QuoteConfig{Timezone: "Asia/Bangkok"}.Location()
	assert.Equal(t, "Asia/Bangkok", loc.String())

	assert.Equal(t, time.UTC, QuoteConfig{}.Location())
	assert.Equal(t, time.UTC, QuoteConfig{Timezone: "Mars/Olympus"}.Location())
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
	cfg.Store.Driver = "postgres"
	cfg.Anthropic.MaxIterations = 8
	cfg.Embedding.Dimension = 2000
	cfg.Search.Threshold = 0.4
	cfg.Search.TopK = 4
	cfg.Quote.ValidityDays = 30
	cfg.Transcript.Window = 20
	cfg.Server.Port = 8000
	return cfg
}

func TestValidateServe_AllPresent(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DatabaseURL = "postgres://localhost/zeus"
	cfg.Anthropic.Key = "sk-ant-key"
	cfg.Embedding.Key = "gemini-key"

	assert.NoError(t, cfg.Validate("serve"))
	assert.NoError(t, cfg.Validate("chat"))
}

func TestValidateServe_MissingFields(t *testing.T) {
	cfg := validDefaults()

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
	assert.Contains(t, err.Error(), "anthropic.key is required")
	assert.Contains(t, err.Error(), "embedding.key is required")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DatabaseURL = "postgres://localhost/zeus"
	cfg.Anthropic.Key = "k"
	cfg.Embedding.Key = "k"
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateSearchBounds(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DatabaseURL = "postgres://localhost/zeus"
	cfg.Anthropic.Key = "k"
	cfg.Embedding.Key = "k"

	cfg.Search.Threshold = 1.5
	err := cfg.Validate("chat")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "search.threshold")

	cfg.Search.Threshold = 0.4
	cfg.Search.TopK = 0
	err = cfg.Validate("chat")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "search.top_k")
}

func TestValidateIngest_OnlyNeedsEmbedding(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DatabaseURL = "postgres://localhost/zeus"
	cfg.Embedding.Key = "gemini-key"

	assert.NoError(t, cfg.Validate("ingest"))
}

func TestValidateStore_BadDriver(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"
	cfg.Store.DatabaseURL = "x"

	err := cfg.Validate("store")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

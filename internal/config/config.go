package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Embedding  EmbeddingConfig  `yaml:"embedding" mapstructure:"embedding"`
	Search     SearchConfig     `yaml:"search" mapstructure:"search"`
	Quote      QuoteConfig      `yaml:"quote" mapstructure:"quote"`
	Payment    PaymentConfig    `yaml:"payment" mapstructure:"payment"`
	Transcript TranscriptConfig `yaml:"transcript" mapstructure:"transcript"`
	Redis      RedisConfig      `yaml:"redis" mapstructure:"redis"`
	Agent      AgentConfig      `yaml:"agent" mapstructure:"agent"`
	Pricing    PricingConfig    `yaml:"pricing" mapstructure:"pricing"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key           string  `yaml:"key" mapstructure:"key"`
	Model         string  `yaml:"model" mapstructure:"model"`
	MaxTokens     int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature   float64 `yaml:"temperature" mapstructure:"temperature"`
	MaxIterations int     `yaml:"max_iterations" mapstructure:"max_iterations"`
}

// EmbeddingConfig holds the embedding provider settings. Dimension is the
// fixed width of the policy_documents.embedding column.
type EmbeddingConfig struct {
	Key               string  `yaml:"key" mapstructure:"key"`
	BaseURL           string  `yaml:"base_url" mapstructure:"base_url"`
	Model             string  `yaml:"model" mapstructure:"model"`
	Dimension         int     `yaml:"dimension" mapstructure:"dimension"`
	BatchSize         int     `yaml:"batch_size" mapstructure:"batch_size"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// SearchConfig configures semantic policy search.
type SearchConfig struct {
	Threshold float64 `yaml:"threshold" mapstructure:"threshold"`
	TopK      int     `yaml:"top_k" mapstructure:"top_k"`
}

// QuoteConfig configures quotation and order numbering and validity.
type QuoteConfig struct {
	ValidityDays      int    `yaml:"validity_days" mapstructure:"validity_days"`
	Timezone          string `yaml:"timezone" mapstructure:"timezone"`
	SuffixLen         int    `yaml:"suffix_len" mapstructure:"suffix_len"`
	MaxNumberAttempts int    `yaml:"max_number_attempts" mapstructure:"max_number_attempts"`
}

// PaymentConfig holds the accounts quoted in payment instructions.
type PaymentConfig struct {
	BankName    string `yaml:"bank_name" mapstructure:"bank_name"`
	BankAccount string `yaml:"bank_account" mapstructure:"bank_account"`
	AccountName string `yaml:"account_name" mapstructure:"account_name"`
	PromptPayID string `yaml:"promptpay_id" mapstructure:"promptpay_id"`
	Currency    string `yaml:"currency" mapstructure:"currency"`
}

// TranscriptConfig configures chat history replay.
type TranscriptConfig struct {
	Window int `yaml:"window" mapstructure:"window"`
}

// RedisConfig configures the optional Redis session lock. When Addr is
// empty an in-process lock is used.
type RedisConfig struct {
	Addr        string `yaml:"addr" mapstructure:"addr"`
	Password    string `yaml:"password" mapstructure:"password"`
	DB          int    `yaml:"db" mapstructure:"db"`
	LockTTLSecs int    `yaml:"lock_ttl_secs" mapstructure:"lock_ttl_secs"`
	Prefix      string `yaml:"prefix" mapstructure:"prefix"`
}

// AgentConfig configures which operations the assistant may invoke.
type AgentConfig struct {
	AllowPaymentUpdates bool `yaml:"allow_payment_updates" mapstructure:"allow_payment_updates"`
}

// PricingConfig holds per-model token pricing used for cost attribution.
type PricingConfig struct {
	Anthropic map[string]ModelPricing `yaml:"anthropic" mapstructure:"anthropic"`
}

// ModelPricing holds per-model token pricing (USD per million tokens).
type ModelPricing struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port               int      `yaml:"port" mapstructure:"port"`
	RequestTimeoutSecs int      `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
	AllowedOrigins     []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// RequestTimeout returns the per-request timeout as a duration.
func (s ServerConfig) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutSecs) * time.Second
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from ./config.yaml (optional) and environment.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile reads configuration from path and environment. An empty path
// looks for an optional config.yaml in the working directory; a named file
// must exist.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("ZEUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 2048)
	v.SetDefault("anthropic.temperature", 0.2)
	v.SetDefault("anthropic.max_iterations", 8)
	v.SetDefault("embedding.key", "")
	v.SetDefault("embedding.base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("embedding.model", "gemini-embedding-001")
	v.SetDefault("embedding.dimension", 2000)
	v.SetDefault("embedding.batch_size", 5)
	v.SetDefault("embedding.requests_per_second", 1.0)
	v.SetDefault("embedding.timeout_secs", 30)
	v.SetDefault("search.threshold", 0.4)
	v.SetDefault("search.top_k", 4)
	v.SetDefault("quote.validity_days", 30)
	v.SetDefault("quote.timezone", "Asia/Bangkok")
	v.SetDefault("quote.suffix_len", 6)
	v.SetDefault("quote.max_number_attempts", 5)
	v.SetDefault("payment.bank_name", "Bangkok Bank")
	v.SetDefault("payment.bank_account", "123-456-7890")
	v.SetDefault("payment.account_name", "Zeus Insurance Co., Ltd.")
	v.SetDefault("payment.promptpay_id", "0123456789")
	v.SetDefault("payment.currency", "THB")
	v.SetDefault("transcript.window", 20)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.lock_ttl_secs", 120)
	v.SetDefault("redis.prefix", "zeus:")
	v.SetDefault("agent.allow_payment_updates", false)
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.request_timeout_secs", 120)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Location resolves the quote timezone, falling back to UTC.
func (q QuoteConfig) Location() *time.Location {
	if q.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(q.Timezone)
	if err != nil {
		zap.L().Warn("unknown quote timezone, using UTC", zap.String("timezone", q.Timezone), zap.Error(err))
		return time.UTC
	}
	return loc
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

package main

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/zeus-insurance/zeus-agent/internal/agent"
	"github.com/zeus-insurance/zeus-agent/internal/catalog"
	"github.com/zeus-insurance/zeus-agent/internal/cost"
	"github.com/zeus-insurance/zeus-agent/internal/quote"
	"github.com/zeus-insurance/zeus-agent/internal/retrieval"
	"github.com/zeus-insurance/zeus-agent/internal/store"
	"github.com/zeus-insurance/zeus-agent/internal/transcript"
	"github.com/zeus-insurance/zeus-agent/pkg/anthropic"
	"github.com/zeus-insurance/zeus-agent/pkg/embedding"
)

// llmTimeout bounds a single Messages API attempt.
const llmTimeout = 90 * time.Second

// appEnv holds the wired components used by serve and chat.
type appEnv struct {
	Store   store.Store
	Quotes  *quote.Service
	History *transcript.History
	Agent   *agent.Agent
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

// initStore opens the configured store.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "zeus.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, cfg.Embedding.Dimension, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore validates the store settings, opens the store and migrates it.
func openStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
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
	return st, nil
}

func initEmbedding() embedding.Client {
	return embedding.NewClient(cfg.Embedding.Key,
		embedding.WithBaseURL(cfg.Embedding.BaseURL),
		embedding.WithModel(cfg.Embedding.Model),
		embedding.WithDimension(cfg.Embedding.Dimension),
		embedding.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Embedding.TimeoutSecs) * time.Second}),
	)
}

func initQuotes(st store.Store) *quote.Service {
	return quote.NewService(st, cfg.Quote, cfg.Payment)
}

// initLocker returns a Redis-backed session lock when redis.addr is set and
// an in-process one otherwise.
func initLocker(ctx context.Context) (transcript.Locker, *redis.Client, error) {
	if cfg.Redis.Addr == "" {
		return transcript.NewLocalLocker(), nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, eris.Wrap(err, "redis ping")
	}
	ttl := time.Duration(cfg.Redis.LockTTLSecs) * time.Second
	zap.L().Info("using redis session lock", zap.String("addr", cfg.Redis.Addr), zap.Duration("ttl", ttl))
	return transcript.NewRedisLocker(client, cfg.Redis.Prefix, ttl), client, nil
}

// initEnv wires the store, clients and assistant for the given config mode.
// Callers should defer env.Close().
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}
	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	env := &appEnv{Store: st}

	locker, rdb, err := initLocker(ctx)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.redis = rdb

	loc := cfg.Quote.Location()
	env.Quotes = initQuotes(st)
	env.History = transcript.NewHistory(st, cfg.Transcript.Window)

	searcher := retrieval.NewSearcher(initEmbedding(), st, retrieval.Options{
		Threshold: cfg.Search.Threshold,
		TopK:      cfg.Search.TopK,
		Dimension: cfg.Embedding.Dimension,
	})
	dispatcher := agent.NewDispatcher(catalog.NewResolver(st), searcher, env.Quotes, loc)

	env.Agent = agent.New(
		anthropic.NewClient(cfg.Anthropic.Key, llmTimeout),
		dispatcher,
		env.History,
		locker,
		cost.NewCalculator(cfg.Pricing),
		agent.Config{
			Model:               cfg.Anthropic.Model,
			MaxTokens:           cfg.Anthropic.MaxTokens,
			Temperature:         cfg.Anthropic.Temperature,
			MaxIterations:       cfg.Anthropic.MaxIterations,
			AllowPaymentUpdates: cfg.Agent.AllowPaymentUpdates,
			Location:            loc,
		},
	)
	return env, nil
}

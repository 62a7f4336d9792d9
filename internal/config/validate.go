package config

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Validate checks that the settings needed by the given mode are present.
// Modes: "store" (database only), "serve" and "chat" (database, LLM and
// embeddings), "ingest" (database and embeddings).
func (c *Config) Validate(mode string) error {
	var errs []string

	needStore := false
	needLLM := false
	needEmbedding := false

	switch mode {
	case "store":
		needStore = true
	case "serve", "chat":
		needStore, needLLM, needEmbedding = true, true, true
	case "ingest":
		needStore, needEmbedding = true, true
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if needStore {
		switch c.Store.Driver {
		case "postgres", "sqlite":
		default:
			errs = append(errs, "store.driver must be postgres or sqlite")
		}
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	}
	if needLLM {
		if c.Anthropic.Key == "" {
			errs = append(errs, "anthropic.key is required")
		}
		if c.Anthropic.MaxIterations < 1 {
			errs = append(errs, "anthropic.max_iterations must be >= 1")
		}
	}
	if needEmbedding {
		if c.Embedding.Key == "" {
			errs = append(errs, "embedding.key is required")
		}
		if c.Embedding.Dimension <= 0 {
			errs = append(errs, "embedding.dimension must be > 0")
		}
	}
	if mode == "serve" && c.Server.Port <= 0 {
		errs = append(errs, "server.port must be > 0")
	}
	if needLLM {
		if c.Search.Threshold < 0 || c.Search.Threshold > 1 {
			errs = append(errs, "search.threshold must be between 0 and 1")
		}
		if c.Search.TopK < 1 {
			errs = append(errs, "search.top_k must be >= 1")
		}
		if c.Quote.ValidityDays < 1 {
			errs = append(errs, "quote.validity_days must be >= 1")
		}
		if c.Transcript.Window < 1 {
			errs = append(errs, "transcript.window must be >= 1")
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

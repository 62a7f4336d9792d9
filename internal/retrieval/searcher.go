// Package retrieval implements semantic search over policy documents.
package retrieval

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/zeus-insurance/zeus-agent/internal/apperr"
	"github.com/zeus-insurance/zeus-agent/internal/model"
	"github.com/zeus-insurance/zeus-agent/internal/store"
)

// Embedder turns query text into a vector in the document embedding space.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Query is a semantic search request. Zero TopK or Threshold use the
// searcher defaults.
type Query struct {
	Text      string        `json:"query"`
	Section   model.Section `json:"section,omitempty"`
	TopK      int           `json:"top_k,omitempty"`
	Threshold float64       `json:"threshold,omitempty"`
}

// Result holds ranked matches, most similar first. An empty Matches slice
// means the search ran and nothing cleared the threshold.
type Result struct {
	Query   string                `json:"query"`
	Section model.Section         `json:"section,omitempty"`
	Matches []model.DocumentMatch `json:"matches"`
}

// Found reports whether any document cleared the threshold.
func (r *Result) Found() bool { return len(r.Matches) > 0 }

// Options configures a Searcher.
type Options struct {
	Threshold float64
	TopK      int
	Dimension int // width of stored embeddings
}

// Searcher embeds queries and ranks documents by cosine similarity.
type Searcher struct {
	embedder Embedder
	store    store.Store
	opts     Options
}

// NewSearcher creates a Searcher.
func NewSearcher(embedder Embedder, st store.Store, opts Options) *Searcher {
	if opts.TopK <= 0 {
		opts.TopK = 4
	}
	if opts.Threshold <= 0 {
		opts.Threshold = 0.4
	}
	return &Searcher{embedder: embedder, store: st, opts: opts}
}

// Search embeds q.Text once and returns the documents above the threshold.
// Embedding or store failures are upstream errors.
func (s *Searcher) Search(ctx context.Context, q Query) (*Result, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return nil, apperr.Validation("query text is required")
	}
	if q.Section != "" && !q.Section.Valid() {
		return nil, apperr.Validation("unknown section %q, expected one of %v", q.Section, model.Sections)
	}
	topK := q.TopK
	if topK <= 0 {
		topK = s.opts.TopK
	}
	threshold := q.Threshold
	if threshold <= 0 {
		threshold = s.opts.Threshold
	}

	vec, err := s.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, apperr.Upstream(eris.Wrap(err, "retrieval: embed query"), "embedding service unavailable")
	}
	if len(vec) == 0 {
		return nil, apperr.Upstream(eris.New("retrieval: empty embedding"), "embedding service returned no vector")
	}
	vec = FitDimension(vec, s.opts.Dimension)

	matches, err := s.store.MatchDocuments(ctx, store.DocumentQuery{
		Embedding: vec,
		Threshold: threshold,
		Limit:     topK,
		Section:   q.Section,
	})
	if err != nil {
		return nil, apperr.Upstream(eris.Wrap(err, "retrieval: match documents"), "document search failed")
	}
	if matches == nil {
		matches = []model.DocumentMatch{}
	}

	zap.L().Info("retrieval: search",
		zap.Int("query_chars", utf8.RuneCountInString(text)),
		zap.String("section", string(q.Section)),
		zap.Float64("threshold", threshold),
		zap.Int("top_k", topK),
		zap.Int("hits", len(matches)),
	)
	return &Result{Query: text, Section: q.Section, Matches: matches}, nil
}

// FitDimension truncates or zero-pads vec to dim entries. dim <= 0 returns
// vec unchanged.
//
// This is lossy: a truncated vector is not a faithful point in the original
// space, and cosine scores computed on it can rank documents differently
// from full-width vectors. Prefer requesting the right output width from
// the embedding provider so this never triggers.
func FitDimension(vec []float32, dim int) []float32 {
	if dim <= 0 || len(vec) == dim {
		return vec
	}
	zap.L().Warn("retrieval: embedding width mismatch, fitting vector",
		zap.Int("got", len(vec)),
		zap.Int("want", dim),
	)
	if len(vec) > dim {
		return vec[:dim:dim]
	}
	out := make([]float32, dim)
	copy(out, vec)
	return out
}

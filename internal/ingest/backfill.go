// Package ingest fills in embeddings for policy documents stored without one.
package ingest

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/zeus-insurance/zeus-agent/internal/apperr"
	"github.com/zeus-insurance/zeus-agent/internal/model"
	"github.com/zeus-insurance/zeus-agent/internal/retrieval"
	"github.com/zeus-insurance/zeus-agent/internal/store"
)

// DocumentEmbedder embeds document texts, one vector per text.
type DocumentEmbedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// Options configures a Backfiller.
type Options struct {
	BatchSize         int
	RequestsPerSecond float64
	Dimension         int // width of stored embeddings
	Limit             int // max documents per run, 0 for all
}

// Result counts what a run did.
type Result struct {
	Pending  int `json:"pending"`
	Embedded int `json:"embedded"`
	Failed   int `json:"failed"`
	Batches  int `json:"batches"`
}

// Backfiller embeds unembedded documents in throttled batches.
type Backfiller struct {
	store    store.Store
	embedder DocumentEmbedder
	limiter  *rate.Limiter
	opts     Options
}

// NewBackfiller creates a Backfiller. Zero options default to batches of 5
// at one request per second.
func NewBackfiller(st store.Store, embedder DocumentEmbedder, opts Options) *Backfiller {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 5
	}
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	return &Backfiller{
		store:    st,
		embedder: embedder,
		limiter:  rate.NewLimiter(rate.Limit(rps), 1),
		opts:     opts,
	}
}

// Run embeds every document that has no embedding yet. A failed batch is
// logged and skipped so its rows are picked up by the next run. Run fails
// only when the document list cannot be read, when nothing could be
// embedded at all, or when ctx ends.
func (b *Backfiller) Run(ctx context.Context) (*Result, error) {
	docs, err := b.store.ListUnembeddedDocuments(ctx, b.opts.Limit)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: list unembedded documents")
	}
	res := &Result{Pending: len(docs)}
	log := zap.L().With(zap.Int("pending", len(docs)), zap.Int("batch_size", b.opts.BatchSize))
	log.Info("ingest: backfill started")

	for start := 0; start < len(docs); start += b.opts.BatchSize {
		if err := b.limiter.Wait(ctx); err != nil {
			return res, eris.Wrap(err, "ingest: wait for rate limit")
		}
		batch := docs[start:min(start+b.opts.BatchSize, len(docs))]
		res.Batches++

		n, err := b.embedBatch(ctx, batch)
		res.Embedded += n
		if err != nil {
			if ctx.Err() != nil {
				return res, eris.Wrap(ctx.Err(), "ingest: backfill cancelled")
			}
			res.Failed += len(batch) - n
			log.Warn("ingest: batch failed",
				zap.Int("batch", res.Batches),
				zap.Int64("first_id", batch[0].ID),
				zap.Error(err),
			)
		}
	}

	log.Info("ingest: backfill finished",
		zap.Int("embedded", res.Embedded),
		zap.Int("failed", res.Failed),
		zap.Int("batches", res.Batches),
	)
	if res.Embedded == 0 && res.Failed > 0 {
		return res, apperr.Upstream(eris.New("ingest: every batch failed"), "embedding service unavailable")
	}
	return res, nil
}

// embedBatch embeds and stores one batch, returning how many rows were
// written before any error.
func (b *Backfiller) embedBatch(ctx context.Context, batch []model.PolicyDocument) (int, error) {
	texts := make([]string, len(batch))
	for i, d := range batch {
		texts[i] = d.Content
	}
	vecs, err := b.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return 0, eris.Wrap(err, "ingest: embed documents")
	}
	if len(vecs) != len(batch) {
		return 0, eris.Errorf("ingest: got %d vectors for %d documents", len(vecs), len(batch))
	}

	for i, d := range batch {
		if len(vecs[i]) == 0 {
			return i, eris.Errorf("ingest: empty vector for document %d", d.ID)
		}
		vec := retrieval.FitDimension(vecs[i], b.opts.Dimension)
		if err := b.store.SetDocumentEmbedding(ctx, d.ID, vec); err != nil {
			return i, eris.Wrapf(err, "ingest: store embedding %d", d.ID)
		}
	}
	return len(batch), nil
}

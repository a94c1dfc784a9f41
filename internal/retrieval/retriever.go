// Package retrieval finds the chunks of the current index snapshot most similar to a query.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/indexer"
	"github.com/hyperjump/kotae/internal/models"
)

// Retriever embeds queries and searches a Snapshot.
type Retriever struct {
	embedder embedding.Embedder
	logger   *zap.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithLogger sets a logger for retrieval timings.
func WithLogger(l *zap.Logger) Option {
	return func(r *Retriever) { r.logger = l }
}

// NewRetriever creates a retriever. embedder must be the one the snapshots are built with.
func NewRetriever(embedder embedding.Embedder, opts ...Option) *Retriever {
	r := &Retriever{embedder: embedder, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve returns up to k chunks of snap with similarity at least minSimilarity, highest
// first. A snapshot whose index does not match its corpus, or was built by another embedder,
// is ErrIndexStale. No chunk above the cut-off is an empty result, not an error.
func (r *Retriever) Retrieve(ctx context.Context, snap *indexer.Snapshot, query string, k int, minSimilarity float64) (*models.RetrievalResult, error) {
	if snap == nil {
		return nil, fmt.Errorf("%w: no index has been built", models.ErrIndexStale)
	}
	if snap.Stale() {
		return nil, fmt.Errorf("%w: index does not match corpus %s", models.ErrIndexStale, snap.Fingerprint)
	}
	if id := r.embedder.ID(); snap.Index.EmbedderID() != id {
		return nil, fmt.Errorf("%w: index built by %s, querying with %s", models.ErrIndexStale, snap.Index.EmbedderID(), id)
	}

	res := &models.RetrievalResult{Query: query, Fingerprint: snap.Fingerprint}
	query = strings.TrimSpace(query)
	if query == "" || k <= 0 || snap.Index.Size() == 0 {
		return res, nil
	}

	start := time.Now()
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if !errors.Is(err, models.ErrEmbeddingUnavailable) {
			err = fmt.Errorf("%w: %w", models.ErrEmbeddingUnavailable, err)
		}
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := snap.Index.Search(vec, k)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrIndexStale, err)
	}

	res.Considered = len(hits)
	if len(hits) > 0 {
		res.TopSimilarity = hits[0].Score
	}
	for _, hit := range hits {
		if hit.Score < minSimilarity {
			break
		}
		ch, ok := snap.Chunk(hit.ID)
		if !ok {
			return nil, fmt.Errorf("%w: chunk %s missing from snapshot", models.ErrIndexStale, hit.ID)
		}
		doc, _ := snap.Document(ch.DocumentID)
		res.Chunks = append(res.Chunks, models.ScoredChunk{
			Chunk:         ch,
			DocumentTitle: doc.Title,
			SourcePath:    doc.SourcePath,
			Similarity:    hit.Score,
		})
	}
	r.logger.Debug("retrieval",
		zap.Int("considered", res.Considered),
		zap.Int("kept", len(res.Chunks)),
		zap.Float64("top_similarity", res.TopSimilarity),
		zap.Duration("duration", time.Since(start)),
	)
	return res, nil
}

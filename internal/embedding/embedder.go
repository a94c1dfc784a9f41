// Package embedding provides text embedding providers and caching.
package embedding

import "context"

// Embedder produces vector embeddings for text.
//
// ID identifies the provider, model and dimensionality; an index built by one embedder
// must not be queried with vectors from another.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	ID() string
	Close() error
}

// embedEach implements EmbedBatch for providers without a batch endpoint.
func embedEach(ctx context.Context, e Embedder, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = emb
	}
	return out, nil
}

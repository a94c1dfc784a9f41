package embedding

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/hyperjump/kotae/internal/keyword"
	"github.com/hyperjump/kotae/pkg/utils"
)

// HashEmbedder is an offline, deterministic embedder. It hashes the analyzed terms of a text
// and their adjacent pairs into a fixed number of signed buckets, so texts sharing vocabulary
// get similar vectors. Term presence is counted once per text.
type HashEmbedder struct {
	dimensions int
	analyzer   *keyword.Analyzer
}

// NewHashEmbedder returns a hashing embedder of the given dimension.
func NewHashEmbedder(dimensions int, analyzer *keyword.Analyzer) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &HashEmbedder{dimensions: dimensions, analyzer: analyzer}
}

// Embed returns the L2-normalized hashed term vector of text.
func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dimensions)
	terms := e.analyzer.Terms(text)
	seen := make(map[string]bool, 2*len(terms))
	add := func(feature string, weight float32) {
		if seen[feature] {
			return
		}
		seen[feature] = true
		h := fnv.New64a()
		_, _ = h.Write([]byte(feature))
		sum := h.Sum64()
		i := int(sum % uint64(e.dimensions))
		if sum&(1<<63) != 0 {
			weight = -weight
		}
		vec[i] += weight
	}
	for i, t := range terms {
		add(t, 1)
		if i > 0 {
			add(terms[i-1]+" "+t, 0.5)
		}
	}
	utils.NormalizeL2(vec)
	return vec, nil
}

// EmbedBatch calls Embed for each text.
func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, e, texts)
}

// Dimensions returns the embedding dimension.
func (e *HashEmbedder) Dimensions() int {
	return e.dimensions
}

// ID identifies the hashing scheme and dimension.
func (e *HashEmbedder) ID() string {
	return fmt.Sprintf("hash-v1-%d", e.dimensions)
}

// Close is a no-op for HashEmbedder.
func (e *HashEmbedder) Close() error {
	return nil
}

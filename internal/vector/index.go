// Package vector provides an immutable in-memory vector index with cosine similarity search.
package vector

import (
	"fmt"
	"sort"
)

// Result is a single vector search hit (ID is the chunk ID).
type Result struct {
	ID    string
	Score float64 // cosine similarity in [-1, 1]
}

// Index is a brute-force cosine index over chunk vectors. It is immutable once built and is
// tagged with the corpus fingerprint and embedder identity that produced it.
type Index struct {
	fingerprint string
	embedderID  string
	dimensions  int
	ids         []string
	vectors     [][]float32
	positions   map[string]int
}

// Build creates an index from parallel id and vector slices. Vectors are copied.
func Build(fingerprint, embedderID string, dimensions int, ids []string, vectors [][]float32) (*Index, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	if len(ids) != len(vectors) {
		return nil, fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}
	idx := &Index{
		fingerprint: fingerprint,
		embedderID:  embedderID,
		dimensions:  dimensions,
		ids:         make([]string, len(ids)),
		vectors:     make([][]float32, len(vectors)),
		positions:   make(map[string]int, len(ids)),
	}
	for i, id := range ids {
		if _, dup := idx.positions[id]; dup {
			return nil, fmt.Errorf("duplicate id %q", id)
		}
		idx.positions[id] = i
		if len(vectors[i]) != dimensions {
			return nil, fmt.Errorf("vector dimension mismatch for %q: got %d, expected %d", id, len(vectors[i]), dimensions)
		}
		vec := make([]float32, dimensions)
		copy(vec, vectors[i])
		idx.ids[i] = id
		idx.vectors[i] = vec
	}
	return idx, nil
}

// Search returns the k ids with the highest cosine similarity to query, ties broken by id
// ascending. Fewer than k results are returned when the index is smaller; k <= 0 returns none.
func (x *Index) Search(query []float32, k int) ([]Result, error) {
	if len(query) != x.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), x.dimensions)
	}
	if k <= 0 || len(x.ids) == 0 {
		return nil, nil
	}
	scores := make([]Result, len(x.ids))
	for i, vec := range x.vectors {
		scores[i] = Result{ID: x.ids[i], Score: Cosine(query, vec)}
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].ID < scores[j].ID
	})
	if k > len(scores) {
		k = len(scores)
	}
	return scores[:k], nil
}

// Fingerprint returns the corpus fingerprint the index was built from.
func (x *Index) Fingerprint() string { return x.fingerprint }

// EmbedderID returns the identity of the embedder that produced the vectors.
func (x *Index) EmbedderID() string { return x.embedderID }

// Dimensions returns the vector dimension.
func (x *Index) Dimensions() int { return x.dimensions }

// Size returns the number of vectors in the index.
func (x *Index) Size() int { return len(x.ids) }

// Contains reports whether id is indexed.
func (x *Index) Contains(id string) bool {
	_, ok := x.positions[id]
	return ok
}

package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/indexer"
	"github.com/hyperjump/kotae/internal/keyword"
	"github.com/hyperjump/kotae/internal/models"
)

var faq = []models.Document{
	{ID: "faq_0", Title: "What is a deductible?", SourcePath: "faq.csv",
		Content: "Q: What is a deductible?\nA: A deductible is the amount you pay for covered services before your insurance plan starts to pay."},
	{ID: "faq_1", Title: "Is a root canal covered?", SourcePath: "faq.csv",
		Content: "Q: Is a root canal covered by my dental plan?\nA: Root canal treatment is covered at 80% after the dental deductible."},
	{ID: "faq_2", Title: "What does Medicare Part B cover?", SourcePath: "faq.csv",
		Content: "Q: What does Medicare Part B cover?\nA: Medicare Part B covers outpatient care, doctor visits and preventive services."},
}

func buildSnapshot(t *testing.T, e embedding.Embedder, docs []models.Document) *indexer.Snapshot {
	t.Helper()
	c, err := indexer.NewChunker(40, 5)
	require.NoError(t, err)
	idx := indexer.NewIndexer(c, e)
	_, err = idx.Build(context.Background(), docs)
	require.NoError(t, err)
	return idx.Current()
}

type failingEmbedder struct{ embedding.Embedder }

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("dial tcp: connection refused")
}

func TestRetrieve_RanksRelevantChunkFirst(t *testing.T) {
	e := embedding.NewHashEmbedder(384, keyword.MustAnalyzer())
	snap := buildSnapshot(t, e, faq)
	r := NewRetriever(e)

	res, err := r.Retrieve(context.Background(), snap, "Is a root canal covered?", 5, 0)
	require.NoError(t, err)
	require.NotEmpty(t, res.Chunks)
	assert.Equal(t, "faq_1", res.Chunks[0].Chunk.DocumentID)
	assert.Equal(t, "Is a root canal covered?", res.Chunks[0].DocumentTitle)
	assert.Equal(t, "faq.csv", res.Chunks[0].SourcePath)
	assert.Equal(t, snap.Fingerprint, res.Fingerprint)
	assert.Equal(t, res.Chunks[0].Similarity, res.TopSimilarity)
	assert.LessOrEqual(t, len(res.Chunks), 5)

	seen := map[string]bool{}
	for i, sc := range res.Chunks {
		assert.False(t, seen[sc.Chunk.ID], "duplicate chunk %s", sc.Chunk.ID)
		seen[sc.Chunk.ID] = true
		if i > 0 {
			assert.LessOrEqual(t, sc.Similarity, res.Chunks[i-1].Similarity)
		}
	}
}

func TestRetrieve_Cutoffs(t *testing.T) {
	e := embedding.NewHashEmbedder(384, keyword.MustAnalyzer())
	snap := buildSnapshot(t, e, faq)
	r := NewRetriever(e)
	ctx := context.Background()

	res, err := r.Retrieve(ctx, snap, "What is a deductible?", 1, 0)
	require.NoError(t, err)
	assert.Len(t, res.Chunks, 1)
	assert.Equal(t, 1, res.Considered)

	// everything below the cut-off: empty result, raw top score still reported
	res, err = r.Retrieve(ctx, snap, "What is a deductible?", 5, 1.01)
	require.NoError(t, err)
	assert.True(t, res.Empty())
	assert.Greater(t, res.TopSimilarity, 0.0)
	assert.Equal(t, 3, res.Considered)

	res, err = r.Retrieve(ctx, snap, "deductible", 0, 0)
	require.NoError(t, err)
	assert.True(t, res.Empty())

	res, err = r.Retrieve(ctx, snap, "   ", 5, 0)
	require.NoError(t, err)
	assert.True(t, res.Empty())
}

func TestRetrieve_EmptyCorpus(t *testing.T) {
	e := embedding.NewHashEmbedder(64, keyword.MustAnalyzer())
	snap := buildSnapshot(t, e, nil)
	res, err := NewRetriever(e).Retrieve(context.Background(), snap, "What is a deductible?", 5, 0)
	require.NoError(t, err)
	assert.True(t, res.Empty())
	assert.Equal(t, 0, res.Considered)
}

func TestRetrieve_Stale(t *testing.T) {
	ctx := context.Background()
	a := keyword.MustAnalyzer()
	built := embedding.NewHashEmbedder(64, a)
	snap := buildSnapshot(t, built, faq)

	_, err := NewRetriever(built).Retrieve(ctx, nil, "deductible", 5, 0)
	assert.ErrorIs(t, err, models.ErrIndexStale)

	other := embedding.NewHashEmbedder(128, a)
	_, err = NewRetriever(other).Retrieve(ctx, snap, "deductible", 5, 0)
	assert.ErrorIs(t, err, models.ErrIndexStale)

	mismatched := *snap
	mismatched.Fingerprint = "something-else"
	_, err = NewRetriever(built).Retrieve(ctx, &mismatched, "deductible", 5, 0)
	assert.ErrorIs(t, err, models.ErrIndexStale)
}

func TestRetrieve_EmbeddingFailure(t *testing.T) {
	e := embedding.NewHashEmbedder(64, keyword.MustAnalyzer())
	snap := buildSnapshot(t, e, faq)
	_, err := NewRetriever(failingEmbedder{e}).Retrieve(context.Background(), snap, "deductible", 5, 0)
	assert.ErrorIs(t, err, models.ErrEmbeddingUnavailable)
}

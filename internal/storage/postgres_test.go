package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/kotae/internal/models"
)

// Set KOTAE_TEST_POSTGRES_DSN to run against a live server.
func TestPostgresStorage(t *testing.T) {
	dsn := os.Getenv("KOTAE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("KOTAE_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	store, err := NewPostgresStorage(ctx, dsn)
	require.NoError(t, err)
	defer store.Close()

	docs, chunks := sampleCorpus()
	require.NoError(t, store.ReplaceCorpus(ctx, "pgfp", docs, chunks))

	fp, err := store.CorpusFingerprint(ctx)
	require.NoError(t, err)
	assert.Equal(t, "pgfp", fp)

	got, err := store.GetDocument(ctx, "faq_1")
	require.NoError(t, err)
	assert.Equal(t, docs[1].Content, got.Content)

	cs, err := store.GetChunksByDocumentID(ctx, "faq_1")
	require.NoError(t, err)
	assert.Len(t, cs, 2)

	runID := "pg-" + time.Now().Format("150405.000000")
	require.NoError(t, store.SaveHarnessRun(ctx, &models.HarnessReport{
		RunID: runID, StartedAt: time.Now(), FinishedAt: time.Now(), Passed: 3,
	}))
	report, err := store.GetHarnessRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Passed)
}

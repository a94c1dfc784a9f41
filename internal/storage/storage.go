// Package storage defines the persistence interface for the corpus catalog and harness runs.
package storage

import (
	"context"
	"fmt"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/models"
)

// Storage persists the catalog of the live corpus and the history of harness runs.
// The catalog mirrors the current index snapshot; it is never read on the query path.
type Storage interface {
	// Corpus catalog
	ReplaceCorpus(ctx context.Context, fingerprint string, docs []models.Document, chunks []models.Chunk) error
	CorpusFingerprint(ctx context.Context) (string, error)
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	ListDocuments(ctx context.Context, offset, limit int) ([]models.DocumentSummary, error)
	GetChunksByDocumentID(ctx context.Context, docID string) ([]models.Chunk, error)

	// Harness runs
	SaveHarnessRun(ctx context.Context, report *models.HarnessReport) error
	ListHarnessRuns(ctx context.Context, limit int) ([]models.HarnessRunSummary, error)
	GetHarnessRun(ctx context.Context, id string) (*models.HarnessReport, error)

	// Stats
	CountDocuments(ctx context.Context) (int64, error)
	CountChunks(ctx context.Context) (int64, error)

	Close() error
}

// Open returns the storage backend selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return NewSQLiteStorage(cfg.DatabasePath)
	case "postgres":
		return NewPostgresStorage(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("%w: unknown storage driver %q", models.ErrInvalidConfig, cfg.Driver)
	}
}

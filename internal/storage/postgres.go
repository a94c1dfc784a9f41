package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hyperjump/kotae/internal/models"
)

// PostgresStorage implements Storage on a PostgreSQL connection pool.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage connects to connStr, pings the server and creates the schema.
func NewPostgresStorage(ctx context.Context, connStr string) (*PostgresStorage, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	s := &PostgresStorage{pool: pool}
	if err := s.initialize(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *PostgresStorage) initialize(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS corpus_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			title TEXT,
			content TEXT NOT NULL,
			source_path TEXT,
			metadata JSONB,
			chunk_count INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS document_chunks (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			content TEXT NOT NULL,
			length INTEGER NOT NULL,
			start_word INTEGER NOT NULL,
			end_word INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_chunks_document_position ON document_chunks (document_id, position);

		CREATE TABLE IF NOT EXISTS harness_runs (
			id TEXT PRIMARY KEY,
			started_at TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ NOT NULL,
			passed INTEGER NOT NULL,
			failed INTEGER NOT NULL,
			report JSONB NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_harness_runs_started_at ON harness_runs (started_at);
	`)
	return err
}

// ReplaceCorpus swaps the whole catalog in one transaction.
func (s *PostgresStorage) ReplaceCorpus(ctx context.Context, fingerprint string, docs []models.Document, chunks []models.Chunk) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM document_chunks`); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM documents`); err != nil {
		return err
	}

	counts := chunkCounts(chunks)
	batch := &pgx.Batch{}
	for _, doc := range docs {
		metadataJSON, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		batch.Queue(`INSERT INTO documents (id, title, content, source_path, metadata, chunk_count)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			doc.ID, doc.Title, doc.Content, doc.SourcePath, string(metadataJSON), counts[doc.ID])
	}
	for _, ch := range chunks {
		batch.Queue(`INSERT INTO document_chunks (id, document_id, position, content, length, start_word, end_word)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			ch.ID, ch.DocumentID, ch.Position, ch.Content, ch.Length, ch.StartWord, ch.EndWord)
	}
	batch.Queue(`INSERT INTO corpus_meta (key, value) VALUES ('fingerprint', $1)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, fingerprint)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to write corpus: %w", err)
	}
	return tx.Commit(ctx)
}

// CorpusFingerprint returns the fingerprint recorded by the last ReplaceCorpus, or "" if none.
func (s *PostgresStorage) CorpusFingerprint(ctx context.Context) (string, error) {
	var fp string
	err := s.pool.QueryRow(ctx, `SELECT value FROM corpus_meta WHERE key = 'fingerprint'`).Scan(&fp)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return fp, err
}

// GetDocument returns a document by ID.
func (s *PostgresStorage) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	var metadataJSON string
	err := s.pool.QueryRow(ctx,
		`SELECT id, title, content, source_path, COALESCE(metadata::text, '') FROM documents WHERE id = $1`, id,
	).Scan(&doc.ID, &doc.Title, &doc.Content, &doc.SourcePath, &metadataJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: document %s", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if err := unmarshalMetadata(metadataJSON, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListDocuments returns document summaries ordered by id.
func (s *PostgresStorage) ListDocuments(ctx context.Context, offset, limit int) ([]models.DocumentSummary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, title, source_path, chunk_count FROM documents ORDER BY id LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.DocumentSummary
	for rows.Next() {
		var d models.DocumentSummary
		if err := rows.Scan(&d.ID, &d.Title, &d.SourcePath, &d.ChunkCount); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// GetChunksByDocumentID returns all chunks for a document ordered by position.
func (s *PostgresStorage) GetChunksByDocumentID(ctx context.Context, docID string) ([]models.Chunk, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, document_id, position, content, length, start_word, end_word
		 FROM document_chunks WHERE document_id = $1 ORDER BY position`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []models.Chunk
	for rows.Next() {
		var ch models.Chunk
		if err := rows.Scan(&ch.ID, &ch.DocumentID, &ch.Position, &ch.Content, &ch.Length,
			&ch.StartWord, &ch.EndWord); err != nil {
			return nil, err
		}
		chunks = append(chunks, ch)
	}
	return chunks, rows.Err()
}

// SaveHarnessRun stores a harness report.
func (s *PostgresStorage) SaveHarnessRun(ctx context.Context, report *models.HarnessReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO harness_runs (id, started_at, finished_at, passed, failed, report)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		report.RunID, report.StartedAt, report.FinishedAt, report.Passed, report.Failed, string(data))
	return err
}

// ListHarnessRuns returns the most recent runs first.
func (s *PostgresStorage) ListHarnessRuns(ctx context.Context, limit int) ([]models.HarnessRunSummary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, started_at, finished_at, passed, failed
		 FROM harness_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.HarnessRunSummary
	for rows.Next() {
		var r models.HarnessRunSummary
		if err := rows.Scan(&r.RunID, &r.StartedAt, &r.FinishedAt, &r.Passed, &r.Failed); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetHarnessRun returns the full report of a run.
func (s *PostgresStorage) GetHarnessRun(ctx context.Context, id string) (*models.HarnessReport, error) {
	var data string
	err := s.pool.QueryRow(ctx, `SELECT report::text FROM harness_runs WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: harness run %s", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	var report models.HarnessReport
	if err := json.Unmarshal([]byte(data), &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return &report, nil
}

// CountDocuments returns the total number of documents.
func (s *PostgresStorage) CountDocuments(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

// CountChunks returns the total number of chunks.
func (s *PostgresStorage) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM document_chunks`).Scan(&count)
	return count, err
}

// Close releases the pool.
func (s *PostgresStorage) Close() error {
	s.pool.Close()
	return nil
}

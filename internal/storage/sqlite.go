package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kotae/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS corpus_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		title TEXT,
		content TEXT NOT NULL,
		source_path TEXT,
		metadata TEXT,
		chunk_count INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS document_chunks (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		content TEXT NOT NULL,
		length INTEGER NOT NULL,
		start_word INTEGER NOT NULL,
		end_word INTEGER NOT NULL,
		FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_document_position ON document_chunks(document_id, position);

	CREATE TABLE IF NOT EXISTS harness_runs (
		id TEXT PRIMARY KEY,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NOT NULL,
		passed INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		report TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_harness_runs_started_at ON harness_runs(started_at);
	`
	_, err := db.Exec(schema)
	return err
}

// ReplaceCorpus swaps the whole catalog for docs and chunks in one transaction and records
// the fingerprint they were built from.
func (s *SQLiteStorage) ReplaceCorpus(ctx context.Context, fingerprint string, docs []models.Document, chunks []models.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_chunks`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents`); err != nil {
		return err
	}

	counts := chunkCounts(chunks)
	docStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO documents (id, title, content, source_path, metadata, chunk_count)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer docStmt.Close()
	for _, doc := range docs {
		metadataJSON, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		if _, err := docStmt.ExecContext(ctx, doc.ID, doc.Title, doc.Content, doc.SourcePath,
			string(metadataJSON), counts[doc.ID]); err != nil {
			return fmt.Errorf("insert document %s: %w", doc.ID, err)
		}
	}

	chunkStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO document_chunks (id, document_id, position, content, length, start_word, end_word)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer chunkStmt.Close()
	for _, ch := range chunks {
		if _, err := chunkStmt.ExecContext(ctx, ch.ID, ch.DocumentID, ch.Position, ch.Content,
			ch.Length, ch.StartWord, ch.EndWord); err != nil {
			return fmt.Errorf("insert chunk %s: %w", ch.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO corpus_meta (key, value) VALUES ('fingerprint', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, fingerprint); err != nil {
		return err
	}
	return tx.Commit()
}

// CorpusFingerprint returns the fingerprint recorded by the last ReplaceCorpus, or "" if none.
func (s *SQLiteStorage) CorpusFingerprint(ctx context.Context) (string, error) {
	var fp string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM corpus_meta WHERE key = 'fingerprint'`).Scan(&fp)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return fp, err
}

// GetDocument returns a document by ID.
func (s *SQLiteStorage) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	var metadataJSON string

	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, content, source_path, metadata FROM documents WHERE id = ?`, id,
	).Scan(&doc.ID, &doc.Title, &doc.Content, &doc.SourcePath, &metadataJSON)

	if errors.Is(err, sql.ErrNoRows) {
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

// ListDocuments returns document summaries ordered by id with offset and limit.
func (s *SQLiteStorage) ListDocuments(ctx context.Context, offset, limit int) ([]models.DocumentSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, source_path, chunk_count FROM documents ORDER BY id LIMIT ? OFFSET ?`,
		limit, offset,
	)
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
func (s *SQLiteStorage) GetChunksByDocumentID(ctx context.Context, docID string) ([]models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, position, content, length, start_word, end_word
		 FROM document_chunks WHERE document_id = ? ORDER BY position`,
		docID,
	)
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

// SaveHarnessRun stores a harness report keyed by its run id.
func (s *SQLiteStorage) SaveHarnessRun(ctx context.Context, report *models.HarnessReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO harness_runs (id, started_at, finished_at, passed, failed, report)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		report.RunID, report.StartedAt.UTC(), report.FinishedAt.UTC(), report.Passed, report.Failed, string(data),
	)
	return err
}

// ListHarnessRuns returns the most recent runs first.
func (s *SQLiteStorage) ListHarnessRuns(ctx context.Context, limit int) ([]models.HarnessRunSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, passed, failed
		 FROM harness_runs ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.HarnessRunSummary
	for rows.Next() {
		var r models.HarnessRunSummary
		var started, finished time.Time
		if err := rows.Scan(&r.RunID, &started, &finished, &r.Passed, &r.Failed); err != nil {
			return nil, err
		}
		r.StartedAt, r.FinishedAt = started, finished
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetHarnessRun returns the full report of a run.
func (s *SQLiteStorage) GetHarnessRun(ctx context.Context, id string) (*models.HarnessReport, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT report FROM harness_runs WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
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
func (s *SQLiteStorage) CountDocuments(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

// CountChunks returns the total number of chunks.
func (s *SQLiteStorage) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM document_chunks`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func chunkCounts(chunks []models.Chunk) map[string]int {
	counts := make(map[string]int)
	for _, ch := range chunks {
		counts[ch.DocumentID]++
	}
	return counts
}

func unmarshalMetadata(raw string, doc *models.Document) error {
	if raw == "" || raw == "null" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), &doc.Metadata); err != nil {
		return fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return nil
}

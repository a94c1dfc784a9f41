// Package models defines core data structures for documents, chunks, answers and harness results.
package models

// Document is a normalized source record: one FAQ question/answer pair or one freeform policy file.
// Documents are immutable once loaded and are replaced wholesale on reload.
type Document struct {
	ID         string            `json:"id" db:"id"`
	Title      string            `json:"title" db:"title"`
	Content    string            `json:"content" db:"content"`
	SourcePath string            `json:"source_path" db:"source_path"`
	Metadata   map[string]string `json:"metadata,omitempty" db:"metadata"`
}

// Chunk is a retrieval-sized passage of a Document. Chunks are derived deterministically
// from their parent and never mutated.
type Chunk struct {
	ID         string `json:"id" db:"id"`
	DocumentID string `json:"document_id" db:"document_id"`
	Position   int    `json:"position" db:"position"`
	Content    string `json:"content" db:"content"`
	Length     int    `json:"length" db:"length"`
	StartWord  int    `json:"start_word" db:"start_word"`
	EndWord    int    `json:"end_word" db:"end_word"`
}

// DocumentSummary is the catalog view of a Document returned by listings.
type DocumentSummary struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	SourcePath string `json:"source_path"`
	ChunkCount int    `json:"chunk_count"`
}

// Package indexer chunks documents and maintains the process-wide vector index snapshot.
package indexer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/hyperjump/kotae/internal/models"
)

// Chunker splits text into overlapping word-based chunks.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap (in words). Overlap must be
// in [0, size).
func NewChunker(chunkSize, chunkOverlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", models.ErrInvalidConfig, chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("%w: chunk overlap %d must be in [0, %d)", models.ErrInvalidConfig, chunkOverlap, chunkSize)
	}
	return &Chunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}, nil
}

// Size returns the chunk size in words.
func (c *Chunker) Size() int { return c.chunkSize }

// Overlap returns the overlap in words.
func (c *Chunker) Overlap() int { return c.chunkOverlap }

// Chunk splits a document into chunks covering every word. Consecutive chunks share exactly
// the trailing overlap words of the previous chunk. Text shorter than the chunk size yields one
// chunk; empty text yields none. Ids are derived from the document id, position and text.
func (c *Chunker) Chunk(docID, text string) []models.Chunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	step := c.chunkSize - c.chunkOverlap
	var chunks []models.Chunk
	for start := 0; ; start += step {
		end := min(start+c.chunkSize, len(words))
		content := strings.Join(words[start:end], " ")
		pos := len(chunks)
		chunks = append(chunks, models.Chunk{
			ID:         ChunkID(docID, pos, content),
			DocumentID: docID,
			Position:   pos,
			Content:    content,
			Length:     len(content),
			StartWord:  start,
			EndWord:    end,
		})
		if end == len(words) {
			break
		}
	}
	return chunks
}

// ChunkID returns "<docID>_<first 12 hex chars of sha256(docID|position|text)>".
func ChunkID(docID string, position int, text string) string {
	h := sha256.New()
	h.Write([]byte(docID))
	h.Write([]byte{'|'})
	h.Write([]byte(strconv.Itoa(position)))
	h.Write([]byte{'|'})
	h.Write([]byte(text))
	return docID + "_" + hex.EncodeToString(h.Sum(nil))[:12]
}

// Fingerprint hashes the ordered chunk ids and texts of a corpus. Any content change, or a
// change of chunking parameters, changes the fingerprint.
func Fingerprint(chunks []models.Chunk) string {
	h := sha256.New()
	for _, ch := range chunks {
		h.Write([]byte(ch.ID))
		h.Write([]byte{0})
		h.Write([]byte(ch.Content))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

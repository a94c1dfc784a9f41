package indexer

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/kotae/internal/models"
)

func words(n int) string {
	w := make([]string, n)
	for i := range w {
		w[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(w, " ")
}

func TestNewChunker_Invalid(t *testing.T) {
	tests := []struct {
		name          string
		size, overlap int
	}{
		{"zero size", 0, 0},
		{"negative overlap", 10, -1},
		{"overlap equals size", 10, 10},
		{"overlap above size", 10, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewChunker(tt.size, tt.overlap)
			assert.ErrorIs(t, err, models.ErrInvalidConfig)
		})
	}
}

func TestChunker_CoverageAndOverlap(t *testing.T) {
	tests := []struct {
		name          string
		size, overlap int
		n             int
		wantChunks    int
	}{
		{"shorter than size", 10, 2, 7, 1},
		{"exact size", 5, 1, 5, 1},
		{"two chunks", 5, 1, 9, 2},
		{"no overlap", 4, 0, 10, 3},
		{"large overlap", 4, 3, 8, 5},
		{"defaults", 500, 50, 1200, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewChunker(tt.size, tt.overlap)
			require.NoError(t, err)
			text := words(tt.n)
			chunks := c.Chunk("doc", text)
			require.Len(t, chunks, tt.wantChunks)

			all := strings.Fields(text)
			assert.Equal(t, 0, chunks[0].StartWord)
			assert.Equal(t, tt.n, chunks[len(chunks)-1].EndWord)
			for i, ch := range chunks {
				assert.Equal(t, i, ch.Position)
				assert.Equal(t, "doc", ch.DocumentID)
				assert.Equal(t, strings.Join(all[ch.StartWord:ch.EndWord], " "), ch.Content)
				assert.Equal(t, len(ch.Content), ch.Length)
				assert.LessOrEqual(t, ch.EndWord-ch.StartWord, tt.size)
				if i > 0 {
					// consecutive chunks share exactly the overlap words
					assert.Equal(t, chunks[i-1].EndWord-tt.overlap, ch.StartWord)
				}
			}
		})
	}
}

func TestChunker_Empty(t *testing.T) {
	c, err := NewChunker(5, 1)
	require.NoError(t, err)
	assert.Nil(t, c.Chunk("d", "   \n\t  "))
}

func TestChunkID_Deterministic(t *testing.T) {
	a := ChunkID("faq_1", 0, "root canal")
	assert.Equal(t, a, ChunkID("faq_1", 0, "root canal"))
	assert.NotEqual(t, a, ChunkID("faq_1", 1, "root canal"))
	assert.NotEqual(t, a, ChunkID("faq_2", 0, "root canal"))
	assert.True(t, strings.HasPrefix(a, "faq_1_"))
	assert.Len(t, a, len("faq_1_")+12)
}

func TestFingerprint(t *testing.T) {
	c, _ := NewChunker(3, 1)
	a := c.Chunk("d", "one two three four")
	b := c.Chunk("d", "one two three four")
	assert.Equal(t, Fingerprint(a), Fingerprint(b))
	assert.NotEqual(t, Fingerprint(a), Fingerprint(c.Chunk("d", "one two three five")))

	c2, _ := NewChunker(3, 0)
	assert.NotEqual(t, Fingerprint(a), Fingerprint(c2.Chunk("d", "one two three four")))
	assert.NotEmpty(t, Fingerprint(nil))
}

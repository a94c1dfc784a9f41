package indexer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/vector"
)

// Snapshot is the immutable unit swapped by the Indexer: documents, their chunks and the
// vector index built from exactly those chunks.
type Snapshot struct {
	Fingerprint string
	Documents   []models.Document
	Chunks      []models.Chunk
	Index       *vector.Index
	BuiltAt     time.Time

	docs   map[string]int
	chunks map[string]int
}

func newSnapshot(fingerprint string, docs []models.Document, chunks []models.Chunk, idx *vector.Index) *Snapshot {
	s := &Snapshot{
		Fingerprint: fingerprint,
		Documents:   docs,
		Chunks:      chunks,
		Index:       idx,
		BuiltAt:     time.Now(),
		docs:        make(map[string]int, len(docs)),
		chunks:      make(map[string]int, len(chunks)),
	}
	for i, d := range docs {
		s.docs[d.ID] = i
	}
	for i, c := range chunks {
		s.chunks[c.ID] = i
	}
	return s
}

// Document returns the document with the given id.
func (s *Snapshot) Document(id string) (models.Document, bool) {
	i, ok := s.docs[id]
	if !ok {
		return models.Document{}, false
	}
	return s.Documents[i], true
}

// Chunk returns the chunk with the given id.
func (s *Snapshot) Chunk(id string) (models.Chunk, bool) {
	i, ok := s.chunks[id]
	if !ok {
		return models.Chunk{}, false
	}
	return s.Chunks[i], true
}

// Stale reports whether the index was built from a different corpus than the snapshot holds.
func (s *Snapshot) Stale() bool {
	if s.Index == nil || s.Index.Fingerprint() != s.Fingerprint || s.Index.Size() != len(s.Chunks) {
		return true
	}
	for _, c := range s.Chunks {
		if !s.Index.Contains(c.ID) {
			return true
		}
	}
	return false
}

// BuildSource says where the vectors of a snapshot came from.
type BuildSource string

const (
	SourceReused   BuildSource = "reused"
	SourceCache    BuildSource = "cache"
	SourceEmbedded BuildSource = "embedded"
)

// BuildResult describes one Build call.
type BuildResult struct {
	Rebuilt     bool
	Source      BuildSource
	Fingerprint string
	Documents   int
	Chunks      int
	Duration    time.Duration
}

// Indexer chunks and embeds a corpus and holds the current Snapshot for the process.
type Indexer struct {
	chunker   *Chunker
	embedder  embedding.Embedder
	storage   storage.Storage
	cachePath string
	logger    *zap.Logger

	mu      sync.Mutex // serializes builds
	current atomic.Pointer[Snapshot]
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for build events.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithCachePath persists built vector indices to path and reuses them across restarts.
func WithCachePath(path string) IndexerOption {
	return func(idx *Indexer) { idx.cachePath = path }
}

// WithStorage mirrors every new snapshot into the catalog store.
func WithStorage(s storage.Storage) IndexerOption {
	return func(idx *Indexer) { idx.storage = s }
}

// NewIndexer creates an indexer. No snapshot exists until the first Build.
func NewIndexer(chunker *Chunker, embedder embedding.Embedder, opts ...IndexerOption) *Indexer {
	idx := &Indexer{
		chunker:  chunker,
		embedder: embedder,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Current returns the live snapshot, or nil before the first successful Build.
func (idx *Indexer) Current() *Snapshot {
	return idx.current.Load()
}

// Build chunks docs, and swaps in a new snapshot unless the current one already covers the
// same corpus with the same embedder. On embedding failure the previous snapshot stays
// current and the error wraps models.ErrEmbeddingUnavailable.
func (idx *Indexer) Build(ctx context.Context, docs []models.Document) (BuildResult, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	start := time.Now()

	docs = slices.Clone(docs)
	slices.SortFunc(docs, func(a, b models.Document) int { return strings.Compare(a.ID, b.ID) })
	for i := 1; i < len(docs); i++ {
		if docs[i].ID == docs[i-1].ID {
			return BuildResult{}, fmt.Errorf("%w: duplicate document id %s", models.ErrSourceInvalid, docs[i].ID)
		}
	}

	var chunks []models.Chunk
	for _, d := range docs {
		chunks = append(chunks, idx.chunker.Chunk(d.ID, d.Content)...)
	}
	fp := Fingerprint(chunks)
	res := BuildResult{Fingerprint: fp, Documents: len(docs), Chunks: len(chunks)}

	if cur := idx.current.Load(); cur != nil && cur.Fingerprint == fp && cur.Index.EmbedderID() == idx.embedder.ID() {
		res.Source = SourceReused
		res.Duration = time.Since(start)
		idx.logger.Debug("index reused", zap.String("fingerprint", short(fp)))
		return res, nil
	}

	index, source, err := idx.buildIndex(ctx, fp, chunks)
	if err != nil {
		return BuildResult{}, err
	}

	snap := newSnapshot(fp, docs, chunks, index)
	idx.current.Store(snap)
	res.Rebuilt = true
	res.Source = source
	res.Duration = time.Since(start)

	if idx.storage != nil {
		if err := idx.storage.ReplaceCorpus(ctx, fp, docs, chunks); err != nil {
			idx.logger.Warn("catalog update failed", zap.Error(err))
		}
	}
	idx.logger.Info("index built",
		zap.String("fingerprint", short(fp)),
		zap.String("source", string(source)),
		zap.Int("documents", len(docs)),
		zap.Int("chunks", len(chunks)),
		zap.Int("chunk_size", idx.chunker.Size()),
		zap.Int("chunk_overlap", idx.chunker.Overlap()),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

func (idx *Indexer) buildIndex(ctx context.Context, fp string, chunks []models.Chunk) (*vector.Index, BuildSource, error) {
	embedderID := idx.embedder.ID()
	dims := idx.embedder.Dimensions()

	if cached := idx.loadCache(fp, embedderID, dims, len(chunks)); cached != nil {
		return cached, SourceCache, nil
	}

	ids := make([]string, len(chunks))
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		ids[i] = ch.ID
		texts[i] = ch.Content
	}
	var vectors [][]float32
	if len(texts) > 0 {
		var err error
		vectors, err = idx.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, "", err
			}
			if !errors.Is(err, models.ErrEmbeddingUnavailable) {
				err = fmt.Errorf("%w: %w", models.ErrEmbeddingUnavailable, err)
			}
			return nil, "", fmt.Errorf("failed to embed %d chunks: %w", len(texts), err)
		}
	}
	index, err := vector.Build(fp, embedderID, dims, ids, vectors)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", models.ErrEmbeddingUnavailable, err)
	}

	if idx.cachePath != "" {
		if err := index.Save(idx.cachePath); err != nil {
			idx.logger.Warn("index cache write failed", zap.String("path", idx.cachePath), zap.Error(err))
		}
	}
	return index, SourceEmbedded, nil
}

func (idx *Indexer) loadCache(fp, embedderID string, dims, size int) *vector.Index {
	if idx.cachePath == "" {
		return nil
	}
	cached, err := vector.Load(idx.cachePath)
	if err != nil {
		if !errors.Is(err, vector.ErrNoIndexFile) {
			idx.logger.Warn("index cache unreadable", zap.String("path", idx.cachePath), zap.Error(err))
		}
		return nil
	}
	if cached.Fingerprint() != fp || cached.EmbedderID() != embedderID ||
		cached.Dimensions() != dims || cached.Size() != size {
		idx.logger.Debug("index cache does not match corpus", zap.String("path", idx.cachePath))
		return nil
	}
	return cached
}

func short(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}

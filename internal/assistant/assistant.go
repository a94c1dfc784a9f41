// Package assistant wires the corpus, index, guardrail, answerer and harness into the two
// entry points of the engine: answering a query and running the accuracy harness.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/answer"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/corpus"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/generation"
	"github.com/hyperjump/kotae/internal/guardrail"
	"github.com/hyperjump/kotae/internal/harness"
	"github.com/hyperjump/kotae/internal/indexer"
	"github.com/hyperjump/kotae/internal/keyword"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/retrieval"
	"github.com/hyperjump/kotae/internal/storage"
)

// Assistant owns the process-scoped index and answers queries against it.
type Assistant struct {
	cfg       *config.Config
	logger    *zap.Logger
	analyzer  *keyword.Analyzer
	loader    *corpus.Loader
	embedder  embedding.Embedder
	indexer   *indexer.Indexer
	retriever *retrieval.Retriever
	guardrail *guardrail.Guardrail
	answerer  *answer.Answerer
	harness   *harness.Harness
	storage   storage.Storage

	embedderOverride  embedding.Embedder
	generatorOverride generation.Generator
	ownsStorage       bool

	reloadMu sync.Mutex
	catalog  atomic.Pointer[keyword.Catalog]
}

// Option configures an Assistant.
type Option func(*Assistant)

// WithLogger sets the logger passed to every component.
func WithLogger(l *zap.Logger) Option {
	return func(a *Assistant) { a.logger = l }
}

// WithStorage uses s instead of opening the configured store. The caller keeps ownership.
func WithStorage(s storage.Storage) Option {
	return func(a *Assistant) { a.storage = s }
}

// WithEmbedder uses e instead of the configured embedding provider.
func WithEmbedder(e embedding.Embedder) Option {
	return func(a *Assistant) { a.embedderOverride = e }
}

// WithGenerator uses g instead of the configured generation provider.
func WithGenerator(g generation.Generator) Option {
	return func(a *Assistant) { a.generatorOverride = g }
}

// New builds every component from cfg. Nothing is loaded or embedded until Start.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Assistant, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &Assistant{cfg: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(a)
	}

	analyzer, err := keyword.NewAnalyzer()
	if err != nil {
		return nil, err
	}
	a.analyzer = analyzer

	a.embedder = a.embedderOverride
	if a.embedder == nil {
		if a.embedder, err = embedding.New(cfg.Embedding, analyzer); err != nil {
			return nil, err
		}
	}
	gen := a.generatorOverride
	if gen == nil {
		if gen, err = generation.New(cfg.Generation, analyzer); err != nil {
			_ = a.embedder.Close()
			return nil, err
		}
	}
	chunker, err := indexer.NewChunker(cfg.Chunking.Size, cfg.Chunking.OverlapWords())
	if err != nil {
		_ = a.embedder.Close()
		return nil, err
	}
	if a.guardrail, err = guardrail.New(cfg.Guardrail, analyzer, guardrail.WithLogger(a.logger)); err != nil {
		_ = a.embedder.Close()
		return nil, err
	}
	if a.storage == nil {
		if a.storage, err = storage.Open(ctx, cfg.Storage); err != nil {
			_ = a.embedder.Close()
			return nil, err
		}
		a.ownsStorage = true
	}

	a.loader = corpus.NewLoader(cfg.Corpus, corpus.WithLogger(a.logger))
	a.indexer = indexer.NewIndexer(chunker, a.embedder,
		indexer.WithLogger(a.logger),
		indexer.WithCachePath(cfg.Storage.IndexCachePath),
		indexer.WithStorage(a.storage),
	)
	a.retriever = retrieval.NewRetriever(a.embedder, retrieval.WithLogger(a.logger))
	a.answerer = answer.NewAnswerer(gen, analyzer,
		answer.WithLogger(a.logger),
		answer.WithMinSupport(cfg.Answer.MinSupport),
	)
	a.harness = harness.New(a, analyzer, cfg.Harness, harness.WithLogger(a.logger))
	return a, nil
}

// Start loads the corpus and builds the first index. Every error is fatal: an unreadable or
// malformed corpus, an invalid configuration, or an embedding provider that cannot embed it.
func (a *Assistant) Start(ctx context.Context) error {
	_, err := a.reload(ctx)
	return err
}

// Reload re-reads the corpus and rebuilds the index if its content changed. On failure the
// previous snapshot keeps serving and the error is logged and returned.
func (a *Assistant) Reload(ctx context.Context) (indexer.BuildResult, error) {
	res, err := a.reload(ctx)
	if err != nil {
		a.logger.Warn("reload failed, keeping previous index", zap.Error(err))
	}
	return res, err
}

func (a *Assistant) reload(ctx context.Context) (indexer.BuildResult, error) {
	a.reloadMu.Lock()
	defer a.reloadMu.Unlock()

	docs, err := a.loader.Load(ctx)
	if err != nil {
		return indexer.BuildResult{}, err
	}
	res, err := a.indexer.Build(ctx, docs)
	if err != nil {
		return indexer.BuildResult{}, err
	}
	if res.Rebuilt || a.catalog.Load() == nil {
		cat, err := keyword.NewCatalog(a.indexer.Current().Documents)
		if err != nil {
			a.logger.Warn("document catalog not rebuilt", zap.Error(err))
			return res, nil
		}
		if old := a.catalog.Swap(cat); old != nil {
			_ = old.Close()
		}
	}
	return res, nil
}

// Ask runs query through the guardrail, retrieval and answering. It always returns a finished
// turn: provider failures become provider_unavailable refusals.
func (a *Assistant) Ask(ctx context.Context, query string) *models.Turn {
	turn := models.NewTurn(query)
	query = strings.TrimSpace(query)

	verdict := a.guardrail.Classify(query, nil)
	_ = turn.Classify(verdict)
	if !verdict.InScope {
		_ = turn.Finish(answer.Refuse(models.ReasonOutOfScope))
		a.logTurn(turn)
		return turn
	}

	rr, err := a.retriever.Retrieve(ctx, a.indexer.Current(), query, a.cfg.Retrieval.TopK, a.cfg.Retrieval.MinSimilarity)
	if err != nil {
		a.providerFailure(turn, "retrieval", err)
		return turn
	}
	turn.Retrieval = rr

	verdict = a.guardrail.Classify(query, rr)
	_ = turn.Classify(verdict)
	ans, err := a.answerer.Answer(ctx, query, rr, verdict.InScope)
	if err != nil {
		a.providerFailure(turn, "generation", err)
		return turn
	}
	_ = turn.Finish(ans)
	a.logTurn(turn)
	return turn
}

// AnswerQuery returns the final answer for query.
func (a *Assistant) AnswerQuery(ctx context.Context, query string) models.Answer {
	return a.Ask(ctx, query).Answer
}

// RunAccuracyHarness runs the configured battery and returns its results in order.
func (a *Assistant) RunAccuracyHarness(ctx context.Context) []models.TestResult {
	return a.harness.Run(ctx)
}

// RunHarnessReport runs the battery and stores the report. A storage failure is returned
// together with the report.
func (a *Assistant) RunHarnessReport(ctx context.Context) (*models.HarnessReport, error) {
	report := a.harness.Report(ctx)
	if err := a.storage.SaveHarnessRun(ctx, report); err != nil {
		return report, fmt.Errorf("failed to save harness run: %w", err)
	}
	return report, nil
}

// HarnessRuns lists stored harness runs, newest first.
func (a *Assistant) HarnessRuns(ctx context.Context, limit int) ([]models.HarnessRunSummary, error) {
	return a.storage.ListHarnessRuns(ctx, limit)
}

// HarnessRun returns a stored report; unknown ids are models.ErrNotFound.
func (a *Assistant) HarnessRun(ctx context.Context, id string) (*models.HarnessReport, error) {
	return a.storage.GetHarnessRun(ctx, id)
}

// Documents lists the catalog of the live corpus.
func (a *Assistant) Documents(ctx context.Context, offset, limit int) ([]models.DocumentSummary, error) {
	return a.storage.ListDocuments(ctx, offset, limit)
}

// Document returns a document of the live corpus; unknown ids are models.ErrNotFound.
func (a *Assistant) Document(ctx context.Context, id string) (*models.Document, error) {
	return a.storage.GetDocument(ctx, id)
}

// SearchDocuments runs a keyword search over document titles and bodies for browsing. It has
// no part in answering.
func (a *Assistant) SearchDocuments(query string, limit int) ([]models.DocumentSummary, error) {
	var (
		hits []keyword.CatalogHit
		err  error
	)
	// a reload may close the catalog between Load and Search; retry on the replacement
	for range 3 {
		cat := a.catalog.Load()
		if cat == nil {
			return nil, fmt.Errorf("%w: no corpus loaded", models.ErrIndexStale)
		}
		hits, err = cat.Search(query, limit, true)
		if !errors.Is(err, keyword.ErrCatalogClosed) {
			break
		}
	}
	if err != nil {
		return nil, err
	}
	snap := a.indexer.Current()
	if snap == nil {
		return nil, fmt.Errorf("%w: no corpus loaded", models.ErrIndexStale)
	}
	counts := make(map[string]int, len(snap.Documents))
	for _, c := range snap.Chunks {
		counts[c.DocumentID]++
	}
	out := make([]models.DocumentSummary, 0, len(hits))
	for _, h := range hits {
		doc, ok := snap.Document(h.ID)
		if !ok {
			continue
		}
		out = append(out, models.DocumentSummary{
			ID:         doc.ID,
			Title:      doc.Title,
			SourcePath: doc.SourcePath,
			ChunkCount: counts[doc.ID],
		})
	}
	return out, nil
}

// WatchPaths returns the corpus locations a watcher should observe.
func (a *Assistant) WatchPaths() (faqPath, docsDir string) {
	return a.loader.Paths()
}

// Config returns the configuration the assistant was built with.
func (a *Assistant) Config() *config.Config {
	return a.cfg
}

// Close releases the embedder, the document catalog and any storage opened by New.
func (a *Assistant) Close() error {
	var errs []error
	if cat := a.catalog.Swap(nil); cat != nil {
		errs = append(errs, cat.Close())
	}
	errs = append(errs, a.embedder.Close())
	if a.ownsStorage {
		errs = append(errs, a.storage.Close())
	}
	return errors.Join(errs...)
}

func (a *Assistant) providerFailure(turn *models.Turn, stage string, err error) {
	ans := answer.Refuse(models.ReasonProviderUnavailable)
	if kind := failureKind(err); kind != "" {
		ans.Text += " (" + kind + ")"
	}
	_ = turn.Finish(ans)
	a.logger.Warn("provider failure",
		zap.String("stage", stage),
		zap.String("query", turn.Query),
		zap.Error(err))
}

func failureKind(err error) string {
	switch {
	case errors.Is(err, models.ErrUnauthorized):
		return "provider rejected credentials"
	case errors.Is(err, models.ErrRateLimited):
		return "provider rate limited"
	case errors.Is(err, models.ErrUnreachable):
		return "provider unreachable"
	case errors.Is(err, models.ErrIndexStale):
		return "index not ready"
	case errors.Is(err, context.DeadlineExceeded):
		return "timed out"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return ""
	}
}

func (a *Assistant) logTurn(turn *models.Turn) {
	fields := []zap.Field{
		zap.String("query", turn.Query),
		zap.String("stage", turn.Stage.String()),
		zap.Bool("in_scope", turn.Verdict.InScope),
		zap.String("scope_reason", turn.Verdict.Reason),
	}
	if turn.Answer.Refusal {
		a.logger.Info("query refused", append(fields, zap.String("reason", string(turn.Answer.Reason)))...)
		return
	}
	a.logger.Info("query answered", append(fields, zap.Strings("cited", turn.Answer.CitedDocumentIDs()))...)
}

// Status describes the live index and where its data lives.
type Status struct {
	Documents      int64     `json:"documents"`
	Chunks         int64     `json:"chunks"`
	Fingerprint    string    `json:"fingerprint"`
	BuiltAt        time.Time `json:"built_at"`
	IndexSize      int       `json:"index_size"`
	Embedder       string    `json:"embedder"`
	Dimensions     int       `json:"dimensions"`
	Generator      string    `json:"generator"`
	StorageDriver  string    `json:"storage_driver"`
	DiskUsageBytes int64     `json:"disk_usage_bytes"`
	ChunkSize      int       `json:"chunk_size"`
	ChunkOverlap   int       `json:"chunk_overlap"`
	TopK           int       `json:"top_k"`
}

// Status reports catalog counts, the live snapshot and the on-disk footprint.
func (a *Assistant) Status(ctx context.Context) (*Status, error) {
	docs, err := a.storage.CountDocuments(ctx)
	if err != nil {
		return nil, err
	}
	chunks, err := a.storage.CountChunks(ctx)
	if err != nil {
		return nil, err
	}
	st := &Status{
		Documents:     docs,
		Chunks:        chunks,
		Embedder:      a.embedder.ID(),
		Dimensions:    a.embedder.Dimensions(),
		Generator:     a.answerer.Generator().Name(),
		StorageDriver: a.cfg.Storage.Driver,
		ChunkSize:     a.cfg.Chunking.Size,
		ChunkOverlap:  a.cfg.Chunking.OverlapWords(),
		TopK:          a.cfg.Retrieval.TopK,
	}
	if snap := a.indexer.Current(); snap != nil {
		st.Fingerprint = snap.Fingerprint
		st.BuiltAt = snap.BuiltAt
		st.IndexSize = snap.Index.Size()
	}
	paths := []string{a.cfg.Storage.IndexCachePath}
	if a.cfg.Storage.Driver != "postgres" {
		paths = append(paths, a.cfg.Storage.DatabasePath)
	}
	if n, err := storage.DiskUsageBytes(paths...); err == nil {
		st.DiskUsageBytes = n
	} else {
		a.logger.Debug("disk usage unavailable", zap.Error(err))
	}
	return st, nil
}

// Package corpus loads the FAQ table or policy document directory into normalized Documents.
package corpus

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/models"
)

// Loader reads the corpus from its pre-declared location.
type Loader struct {
	faqPath    string
	docsDir    string
	extensions []string
	extractor  *extract.Extractor
	logger     *zap.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLogger sets a logger for skipped files and load summaries.
func WithLogger(l *zap.Logger) LoaderOption {
	return func(ld *Loader) { ld.logger = l }
}

// NewLoader creates a loader for cfg. Extensions default to everything the extractor supports.
func NewLoader(cfg config.CorpusConfig, opts ...LoaderOption) *Loader {
	ld := &Loader{
		faqPath:   cfg.FAQPath,
		docsDir:   cfg.DocsDir,
		extractor: extract.NewExtractor(),
		logger:    zap.NewNop(),
	}
	for _, ext := range cfg.Extensions {
		ld.extensions = append(ld.extensions, strings.ToLower(ext))
	}
	if len(ld.extensions) == 0 {
		ld.extensions = ld.extractor.Extensions()
	}
	for _, opt := range opts {
		opt(ld)
	}
	return ld
}

// Paths returns the FAQ table path and documents directory the loader reads from.
func (ld *Loader) Paths() (faqPath, docsDir string) {
	return ld.faqPath, ld.docsDir
}

// Load returns the corpus sorted by document id. The FAQ table wins when it exists; otherwise
// the documents directory is read. Neither existing is ErrSourceUnavailable. A location with no
// records yields an empty, valid corpus.
func (ld *Loader) Load(ctx context.Context) ([]models.Document, error) {
	var (
		docs []models.Document
		err  error
	)
	switch {
	case isFile(ld.faqPath):
		docs, err = ld.loadFAQ(ld.faqPath)
	case isDir(ld.docsDir):
		docs, err = ld.loadDir(ctx, ld.docsDir)
	default:
		return nil, fmt.Errorf("%w: neither FAQ table %q nor documents directory %q exists",
			models.ErrSourceUnavailable, ld.faqPath, ld.docsDir)
	}
	if err != nil {
		return nil, err
	}
	slices.SortFunc(docs, func(a, b models.Document) int { return strings.Compare(a.ID, b.ID) })
	for i := 1; i < len(docs); i++ {
		if docs[i].ID == docs[i-1].ID {
			return nil, fmt.Errorf("%w: duplicate document id %s (%s, %s)", models.ErrSourceInvalid,
				docs[i].ID, docs[i-1].SourcePath, docs[i].SourcePath)
		}
	}
	ld.logger.Info("corpus loaded", zap.Int("documents", len(docs)))
	return docs, nil
}

// loadFAQ turns each data row into "Q: <question>\nA: <answer>" with id faq_<row>, where row
// is the 0-based data row. Fully blank rows are skipped without renumbering.
func (ld *Loader) loadFAQ(path string) ([]models.Document, error) {
	header, rows, err := readTable(path)
	if err != nil {
		return nil, err
	}
	qCol := findColumn(header, "question")
	aCol := findColumn(header, "answer")
	if qCol < 0 || aCol < 0 {
		return nil, fmt.Errorf("%w: %s must have question and answer columns, found %v",
			models.ErrSourceInvalid, path, header)
	}

	source := filepath.Base(path)
	var docs []models.Document
	for i, row := range rows {
		q := Normalize(cell(row, qCol))
		a := Normalize(cell(row, aCol))
		if q == "" && a == "" {
			continue
		}
		docs = append(docs, models.Document{
			ID:         "faq_" + strconv.Itoa(i),
			Title:      q,
			Content:    "Q: " + q + "\nA: " + a,
			SourcePath: source,
			Metadata:   map[string]string{"row": strconv.Itoa(i)},
		})
	}
	ld.logger.Debug("faq table read", zap.String("path", path), zap.Int("rows", len(rows)), zap.Int("documents", len(docs)))
	return docs, nil
}

// loadDir extracts every regular file with an allowed extension directly under dir into one
// Document with id doc_<stem>.
func (ld *Loader) loadDir(ctx context.Context, dir string) ([]models.Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrSourceUnavailable, err)
	}
	var docs []models.Document
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if !extensionAllowed(ext, ld.extensions) || !ld.extractor.Supported(ext) {
			ld.logger.Debug("corpus skipping file", zap.String("name", entry.Name()))
			continue
		}
		path := filepath.Join(dir, entry.Name())
		text, err := ld.extractor.Extract(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", models.ErrSourceInvalid, path, err)
		}
		body := Normalize(text.Body)
		if body == "" {
			return nil, fmt.Errorf("%w: %s has no text", models.ErrSourceInvalid, path)
		}
		stem := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		title := Normalize(text.Title)
		if title == "" {
			title = stem
		}
		docs = append(docs, models.Document{
			ID:         "doc_" + stem,
			Title:      title,
			Content:    body,
			SourcePath: entry.Name(),
			Metadata:   map[string]string{"format": strings.TrimPrefix(ext, ".")},
		})
	}
	return docs, nil
}

func extensionAllowed(ext string, allowed []string) bool {
	return ext != "" && slices.Contains(allowed, strings.ToLower(ext))
}

func isFile(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func isDir(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

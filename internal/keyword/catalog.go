package keyword

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/hyperjump/kotae/internal/models"
)

// ErrCatalogClosed is returned by Search after Close.
var ErrCatalogClosed = errors.New("catalog closed")

// CatalogHit is a single catalog search hit.
type CatalogHit struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// Catalog is an in-memory Bleve index over document titles and bodies. It backs document
// browsing; answers never depend on it.
type Catalog struct {
	mu     sync.RWMutex // held for reading by searches, for writing by Close
	closed bool
	index  bleve.Index
}

// NewCatalog builds an in-memory catalog of docs.
func NewCatalog(docs []models.Document) (*Catalog, error) {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = en.AnalyzerName
	docMapping.AddFieldMappingsAt("title", textField)
	docMapping.AddFieldMappingsAt("content", textField)
	im.AddDocumentMapping("document", docMapping)
	im.DefaultType = "document"
	im.DefaultMapping = docMapping

	index, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog index: %w", err)
	}
	batch := index.NewBatch()
	for _, d := range docs {
		if err := batch.Index(d.ID, map[string]interface{}{
			"title":   d.Title,
			"content": d.Content,
		}); err != nil {
			_ = index.Close()
			return nil, fmt.Errorf("failed to index %s: %w", d.ID, err)
		}
	}
	if err := index.Batch(batch); err != nil {
		_ = index.Close()
		return nil, fmt.Errorf("failed to build catalog: %w", err)
	}
	return &Catalog{index: index}, nil
}

// Search runs a match query over title and content. When fuzzy is true each query word
// also matches terms within edit distance 1.
func (c *Catalog) Search(query string, limit int, fuzzy bool) ([]CatalogHit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}
	var q blevequery.Query = bleve.NewMatchQuery(query)
	if fuzzy {
		words := strings.Fields(strings.ToLower(query))
		alternatives := []blevequery.Query{q}
		for _, w := range words {
			if len(w) < 4 {
				continue
			}
			fq := bleve.NewFuzzyQuery(w)
			fq.SetFuzziness(1)
			alternatives = append(alternatives, fq)
		}
		q = bleve.NewDisjunctionQuery(alternatives...)
	}
	req := bleve.NewSearchRequest(q)
	req.Size = limit

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrCatalogClosed
	}
	res, err := c.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("catalog search failed: %w", err)
	}
	out := make([]CatalogHit, len(res.Hits))
	for i, hit := range res.Hits {
		out[i] = CatalogHit{ID: hit.ID, Score: hit.Score}
	}
	return out, nil
}

// Size returns the number of indexed documents.
func (c *Catalog) Size() (uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return 0, ErrCatalogClosed
	}
	return c.index.DocCount()
}

// Close waits for running searches and releases the index. Closing twice is a no-op.
func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.index.Close()
}

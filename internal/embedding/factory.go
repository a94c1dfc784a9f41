package embedding

import (
	"fmt"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/keyword"
	"github.com/hyperjump/kotae/internal/models"
)

// New builds the configured provider wrapped in an LRU cache.
func New(cfg config.EmbeddingConfig, analyzer *keyword.Analyzer) (Embedder, error) {
	var (
		e   Embedder
		err error
	)
	switch cfg.Provider {
	case "", "hash":
		e = NewHashEmbedder(cfg.Dimensions, analyzer)
	case "ollama":
		e, err = NewOllamaEmbedder(cfg.BaseURL, cfg.Model, cfg.Dimensions)
	case "openai":
		e, err = NewOpenAIEmbedder(cfg.BaseURL, cfg.APIKey(), cfg.Model, cfg.Dimensions, WithBatchSize(cfg.BatchSize))
	case "onnx":
		e, err = NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", models.ErrInvalidConfig, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return NewCachedEmbedder(e, cfg.CacheSize), nil
}

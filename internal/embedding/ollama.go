package embedding

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/provider"
	"github.com/ollama/ollama/api"
	"github.com/ollama/ollama/envconfig"
)

// OllamaEmbedder generates embeddings using the Ollama API.
type OllamaEmbedder struct {
	client     *api.Client
	model      string
	dimensions int
}

// NewOllamaEmbedder creates an Ollama embedder. An empty host uses OLLAMA_HOST or the default.
func NewOllamaEmbedder(host, model string, dimensions int) (*OllamaEmbedder, error) {
	base := envconfig.Host()
	if host != "" {
		u, err := url.Parse(host)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid ollama host %q: %v", models.ErrInvalidConfig, host, err)
		}
		base = u
	}
	if model == "" {
		return nil, fmt.Errorf("%w: ollama embedding model is required", models.ErrInvalidConfig)
	}
	return &OllamaEmbedder{
		client:     api.NewClient(base, http.DefaultClient),
		model:      model,
		dimensions: dimensions,
	}, nil
}

// Embed requests one embedding. A response of unexpected dimension is an error.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Embeddings(ctx, &api.EmbeddingRequest{
		Model:   e.model,
		Prompt:  text,
		Options: map[string]any{},
	})
	if err != nil {
		return nil, provider.Fail(models.ErrEmbeddingUnavailable, fmt.Errorf("ollama embeddings: %w", err))
	}
	if len(resp.Embedding) != e.dimensions {
		return nil, fmt.Errorf("%w: ollama returned %d dimensions, expected %d",
			models.ErrEmbeddingUnavailable, len(resp.Embedding), e.dimensions)
	}
	out := make([]float32, len(resp.Embedding))
	for i, v := range resp.Embedding {
		out[i] = float32(v)
	}
	return out, nil
}

// EmbedBatch calls Embed for each text.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, e, texts)
}

// Dimensions returns the embedding dimension.
func (e *OllamaEmbedder) Dimensions() int {
	return e.dimensions
}

// ID identifies the model and dimension.
func (e *OllamaEmbedder) ID() string {
	return fmt.Sprintf("ollama-%s-%d", e.model, e.dimensions)
}

// Close is a no-op; the HTTP client is shared.
func (e *OllamaEmbedder) Close() error {
	return nil
}

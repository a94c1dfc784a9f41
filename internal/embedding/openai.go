package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/provider"
)

// DefaultBatchSize is the number of inputs sent per /embeddings request.
const DefaultBatchSize = 100

// OpenAIEmbedder generates embeddings with an OpenAI-compatible /embeddings endpoint.
type OpenAIEmbedder struct {
	client     *provider.OpenAIClient
	model      string
	dimensions int
	batchSize  int
}

// OpenAIOption configures an OpenAIEmbedder.
type OpenAIOption func(*OpenAIEmbedder)

// WithBatchSize sets how many inputs go into one request. Values below 1 keep the default.
func WithBatchSize(n int) OpenAIOption {
	return func(e *OpenAIEmbedder) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// NewOpenAIEmbedder creates an OpenAI embedder. The API key is required.
func NewOpenAIEmbedder(baseURL, apiKey, model string, dimensions int, opts ...OpenAIOption) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: openai API key is required", models.ErrInvalidConfig)
	}
	if model == "" {
		model = "text-embedding-3-small"
	}
	e := &OpenAIEmbedder{
		client:     provider.NewOpenAIClient(baseURL, apiKey, 60*time.Second),
		model:      model,
		dimensions: dimensions,
		batchSize:  DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Embed generates a vector embedding for the given text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch sends texts in requests of at most batchSize inputs and returns the vectors in
// input order.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		vecs, err := e.embedRequest(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (e *OpenAIEmbedder) embedRequest(ctx context.Context, texts []string) ([][]float32, error) {
	req := embeddingRequest{Model: e.model, Input: texts, Dimensions: e.dimensions}
	var resp embeddingResponse
	if err := e.client.PostJSON(ctx, "/embeddings", req, &resp); err != nil {
		return nil, provider.Fail(models.ErrEmbeddingUnavailable, fmt.Errorf("openai embeddings: %w", err))
	}
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("%w: openai returned index %d for %d inputs", models.ErrEmbeddingUnavailable, d.Index, len(texts))
		}
		if len(d.Embedding) != e.dimensions {
			return nil, fmt.Errorf("%w: openai returned %d dimensions, expected %d",
				models.ErrEmbeddingUnavailable, len(d.Embedding), e.dimensions)
		}
		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}
		out[d.Index] = vec
	}
	for i, v := range out {
		if v == nil {
			return nil, fmt.Errorf("%w: openai returned no embedding for input %d", models.ErrEmbeddingUnavailable, i)
		}
	}
	return out, nil
}

// Dimensions returns the embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

// ID identifies the model and dimension.
func (e *OpenAIEmbedder) ID() string {
	return fmt.Sprintf("openai-%s-%d", e.model, e.dimensions)
}

// Close is a no-op for OpenAIEmbedder.
func (e *OpenAIEmbedder) Close() error {
	return nil
}

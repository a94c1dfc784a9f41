//go:build !cgo
// +build !cgo

package embedding

import (
	"context"
	"fmt"

	"github.com/hyperjump/kotae/internal/models"
)

// ONNXEmbedder is unavailable without CGO (see onnx.go for the real implementation).
type ONNXEmbedder struct{}

// NewONNXEmbedder always fails when built without CGO.
func NewONNXEmbedder(_ string, _, _ int) (*ONNXEmbedder, error) {
	return nil, fmt.Errorf("%w: ONNX embedder requires CGO; build with CGO_ENABLED=1 and onnxruntime", models.ErrEmbeddingUnavailable)
}

func (e *ONNXEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, models.ErrEmbeddingUnavailable
}

func (e *ONNXEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, models.ErrEmbeddingUnavailable
}

func (e *ONNXEmbedder) Dimensions() int { return 0 }
func (e *ONNXEmbedder) ID() string      { return "onnx-unavailable" }
func (e *ONNXEmbedder) Close() error    { return nil }

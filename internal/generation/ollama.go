package generation

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
	"github.com/ollama/ollama/envconfig"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/provider"
)

// Ollama generates answers with a local ollama model.
type Ollama struct {
	client      *api.Client
	model       string
	temperature float64
	maxTokens   int
}

// NewOllama creates an ollama generator. An empty host uses OLLAMA_HOST or the default.
func NewOllama(host, model string, temperature float64, maxTokens int) (*Ollama, error) {
	base := envconfig.Host()
	if host != "" {
		u, err := url.Parse(host)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid ollama host %q: %v", models.ErrInvalidConfig, host, err)
		}
		base = u
	}
	if model == "" {
		return nil, fmt.Errorf("%w: ollama generation model is required", models.ErrInvalidConfig)
	}
	return &Ollama{
		client:      api.NewClient(base, http.DefaultClient),
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
	}, nil
}

// Generate streams the completion into one string.
func (o *Ollama) Generate(ctx context.Context, p Prompt) (string, error) {
	req := api.GenerateRequest{
		Model:  o.model,
		System: p.System,
		Prompt: p.User,
		Options: map[string]interface{}{
			"temperature": o.temperature,
			"num_predict": o.maxTokens,
		},
	}
	var b strings.Builder
	err := o.client.Generate(ctx, &req, func(resp api.GenerateResponse) error {
		_, err := b.WriteString(resp.Response)
		return err
	})
	if err != nil {
		return "", provider.Fail(models.ErrGenerationUnavailable, fmt.Errorf("ollama generate: %w", err))
	}
	return b.String(), nil
}

// Name identifies the provider and model.
func (o *Ollama) Name() string {
	return "ollama-" + o.model
}

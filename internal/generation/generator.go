// Package generation provides the answer text providers: an offline extractive generator and
// ollama and OpenAI-compatible language models.
package generation

import (
	"context"
	"fmt"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/keyword"
	"github.com/hyperjump/kotae/internal/models"
)

// DeclinePhrase is what a generator answers when the passages do not contain the answer.
const DeclinePhrase = "I don't have that information in the provided documents."

// Passage is one retrieved chunk handed to a generator.
type Passage struct {
	DocumentID string
	Title      string
	Text       string
}

// Prompt is a rendered generation request. Language models read System and User; the
// extractive generator works from Question and Passages directly.
type Prompt struct {
	System   string
	User     string
	Question string
	Passages []Passage
}

// Generator turns a Prompt into answer text that cites passages as [doc: <id>].
type Generator interface {
	Generate(ctx context.Context, p Prompt) (string, error)
	Name() string
}

// New builds the configured generator.
func New(cfg config.GenerationConfig, analyzer *keyword.Analyzer) (Generator, error) {
	switch cfg.Provider {
	case "", "extractive":
		return NewExtractive(analyzer), nil
	case "ollama":
		return NewOllama(cfg.BaseURL, cfg.Model, cfg.Temperature, cfg.MaxTokens)
	case "openai":
		return NewOpenAI(cfg.BaseURL, cfg.APIKey(), cfg.Model, cfg.Temperature, cfg.MaxTokens)
	default:
		return nil, fmt.Errorf("%w: unknown generation provider %q", models.ErrInvalidConfig, cfg.Provider)
	}
}

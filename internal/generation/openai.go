package generation

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/provider"
)

// OpenAI generates answers with an OpenAI-compatible /chat/completions endpoint.
type OpenAI struct {
	client      *provider.OpenAIClient
	model       string
	temperature float64
	maxTokens   int
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// NewOpenAI creates an OpenAI generator. The API key is required.
func NewOpenAI(baseURL, apiKey, model string, temperature float64, maxTokens int) (*OpenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: openai API key is required", models.ErrInvalidConfig)
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAI{
		client:      provider.NewOpenAIClient(baseURL, apiKey, 120*time.Second),
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
	}, nil
}

// Generate sends the system and user messages and returns the first choice.
func (o *OpenAI) Generate(ctx context.Context, p Prompt) (string, error) {
	req := chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: p.System},
			{Role: "user", Content: p.User},
		},
		Temperature: o.temperature,
		MaxTokens:   o.maxTokens,
	}
	var resp chatResponse
	if err := o.client.PostJSON(ctx, "/chat/completions", req, &resp); err != nil {
		return "", provider.Fail(models.ErrGenerationUnavailable, fmt.Errorf("openai chat: %w", err))
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: openai returned no choices", models.ErrGenerationUnavailable)
	}
	return resp.Choices[0].Message.Content, nil
}

// Name identifies the provider and model.
func (o *OpenAI) Name() string {
	return "openai-" + o.model
}

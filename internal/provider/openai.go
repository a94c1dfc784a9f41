package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultOpenAIBaseURL is used when no base URL is configured.
const DefaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIClient posts JSON to an OpenAI-compatible API.
type OpenAIClient struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

// NewOpenAIClient returns a client for baseURL; an empty baseURL selects the public API.
func NewOpenAIClient(baseURL, apiKey string, timeout time.Duration) *OpenAIClient {
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

type apiErrorBody struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// PostJSON sends body to path and decodes the response into out. Non-2xx responses return
// a *StatusError carrying the API's error message.
func (c *OpenAIClient) PostJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(data))
		var eb apiErrorBody
		if json.Unmarshal(data, &eb) == nil && eb.Error != nil {
			msg = eb.Error.Message
		}
		return &StatusError{StatusCode: resp.StatusCode, Message: msg}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Package provider holds what the embedding and generation adapters share: failure
// classification and an OpenAI-compatible JSON client.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/ollama/ollama/api"
)

// StatusError is a non-2xx response from an HTTP provider.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("status %d", e.StatusCode)
	}
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
}

// KindForStatus maps an HTTP status code to a failure kind.
func KindForStatus(code int) error {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return models.ErrUnauthorized
	case http.StatusTooManyRequests:
		return models.ErrRateLimited
	default:
		return models.ErrUnreachable
	}
}

// Kind classifies err as unauthorized, rate-limited or unreachable. Transport errors and
// anything unrecognised count as unreachable.
func Kind(err error) error {
	var se *StatusError
	if errors.As(err, &se) {
		return KindForStatus(se.StatusCode)
	}
	var ose api.StatusError
	if errors.As(err, &ose) {
		return KindForStatus(ose.StatusCode)
	}
	return models.ErrUnreachable
}

// Fail wraps a provider error with the service sentinel and its failure kind so callers can
// match either. Context cancellation and deadline errors are wrapped with the service sentinel
// only, without a failure kind.
func Fail(service error, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", service, err)
	}
	if errors.Is(err, service) {
		return err
	}
	return fmt.Errorf("%w: %w: %w", service, Kind(err), err)
}

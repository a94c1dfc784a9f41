package models

import "errors"

// Domain errors. Callers match them with errors.Is; wrapping layers add context with %w.
var (
	// ErrSourceUnavailable indicates the configured corpus location cannot be read.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrSourceInvalid indicates a corpus record is malformed (missing columns, empty text).
	ErrSourceInvalid = errors.New("source invalid")

	// ErrEmbeddingUnavailable indicates the embedding provider failed or is not configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrGenerationUnavailable indicates the generation provider failed or is not configured.
	ErrGenerationUnavailable = errors.New("generation service unavailable")

	// ErrInvalidConfig indicates a configuration value violates a constraint.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrGroundingViolation indicates a generated answer cites or states something outside
	// the retrieved passages. It never leaves the answer package; answers are downgraded instead.
	ErrGroundingViolation = errors.New("grounding violation")

	// ErrIndexStale indicates the vector index does not belong to the current corpus.
	ErrIndexStale = errors.New("index fingerprint does not match corpus")

	// ErrNotFound indicates a requested document or harness run does not exist.
	ErrNotFound = errors.New("not found")

	// Provider failure kinds. They are joined with ErrEmbeddingUnavailable or
	// ErrGenerationUnavailable so both can be matched.

	// ErrUnauthorized indicates the provider rejected the credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates the provider rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")

	// ErrUnreachable indicates the provider could not be reached or failed server-side.
	ErrUnreachable = errors.New("unreachable")
)

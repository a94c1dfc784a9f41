package models

import (
	"fmt"
	"strings"
)

// RefusalReason tells why an answer was refused.
type RefusalReason string

const (
	// ReasonNone marks a normal, grounded answer.
	ReasonNone RefusalReason = ""
	// ReasonOutOfScope is returned when the guardrail rejected the query.
	ReasonOutOfScope RefusalReason = "out_of_scope"
	// ReasonInsufficientGrounding is returned when retrieval found nothing usable or the
	// model declined.
	ReasonInsufficientGrounding RefusalReason = "insufficient_grounding"
	// ReasonGroundingViolation is returned when a generated answer failed verification.
	ReasonGroundingViolation RefusalReason = "grounding_violation"
	// ReasonProviderUnavailable is returned when embedding or generation failed.
	ReasonProviderUnavailable RefusalReason = "provider_unavailable"
)

// Citation references a source document that supports an answer.
type Citation struct {
	DocumentID string   `json:"document_id"`
	Title      string   `json:"title"`
	SourcePath string   `json:"source_path"`
	ChunkIDs   []string `json:"chunk_ids,omitempty"`
}

// Answer is either a grounded answer with at least one citation or a refusal with none.
type Answer struct {
	Text        string        `json:"text"`
	Citations   []Citation    `json:"citations"`
	InScope     bool          `json:"in_scope"`
	Refusal     bool          `json:"refusal"`
	Reason      RefusalReason `json:"reason,omitempty"`
	ScopeReason string        `json:"scope_reason,omitempty"`
}

// CitedDocumentIDs returns the cited document ids in citation order.
func (a *Answer) CitedDocumentIDs() []string {
	ids := make([]string, 0, len(a.Citations))
	for _, c := range a.Citations {
		ids = append(ids, c.DocumentID)
	}
	return ids
}

// Check reports whether a refusal carries no citations and an answer carries at least one.
func (a *Answer) Check() error {
	if a.Refusal && len(a.Citations) > 0 {
		return fmt.Errorf("refusal carries %d citations", len(a.Citations))
	}
	if !a.Refusal && len(a.Citations) == 0 {
		return fmt.Errorf("answer has no citations")
	}
	if a.Refusal && a.Reason == ReasonNone {
		return fmt.Errorf("refusal has no reason")
	}
	return nil
}

// AnswerRequest is the body of an answer request.
type AnswerRequest struct {
	Query string `json:"query"`
}

// Validate trims the query and rejects empty input.
func (r *AnswerRequest) Validate() error {
	r.Query = strings.TrimSpace(r.Query)
	if r.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if len(r.Query) > 2000 {
		return fmt.Errorf("query too long: %d characters (max 2000)", len(r.Query))
	}
	return nil
}

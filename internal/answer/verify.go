package answer

import (
	"fmt"
	"strings"

	"github.com/hyperjump/kotae/internal/keyword"
	"github.com/hyperjump/kotae/internal/models"
)

// Verify returns ans unchanged when it is a refusal or passes Check, and the
// grounding_violation refusal otherwise.
func Verify(ans models.Answer, rr *models.RetrievalResult, analyzer *keyword.Analyzer, minSupport float64) models.Answer {
	if err := Check(ans, rr, analyzer, minSupport); err != nil {
		refusal := Refuse(models.ReasonGroundingViolation)
		refusal.InScope = ans.InScope
		refusal.ScopeReason = ans.ScopeReason
		return refusal
	}
	return ans
}

// Check reports why a non-refusal answer is not grounded in rr. Every citation must name a
// retrieved document, the cited chunks must contain at least minSupport of the answer's terms,
// and every number in the answer must appear in them. Violations wrap
// models.ErrGroundingViolation.
func Check(ans models.Answer, rr *models.RetrievalResult, analyzer *keyword.Analyzer, minSupport float64) error {
	if ans.Refusal {
		return nil
	}
	if len(ans.Citations) == 0 {
		return fmt.Errorf("%w: answer cites no document", models.ErrGroundingViolation)
	}

	var sources []string
	for _, c := range ans.Citations {
		if !rr.HasDocument(c.DocumentID) {
			return fmt.Errorf("%w: cited document %s was not retrieved", models.ErrGroundingViolation, c.DocumentID)
		}
		for _, sc := range rr.ChunksFor(c.DocumentID) {
			sources = append(sources, sc.Chunk.Content)
		}
	}

	if support := analyzer.Support(ans.Text, sources...); support < minSupport {
		return fmt.Errorf("%w: term support %.2f below %.2f", models.ErrGroundingViolation, support, minSupport)
	}
	if missing := keyword.UnsupportedNumbers(ans.Text, sources...); len(missing) > 0 {
		return fmt.Errorf("%w: numbers not in cited chunks: %s", models.ErrGroundingViolation, strings.Join(missing, ", "))
	}
	return nil
}

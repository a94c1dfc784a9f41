// Package answer composes grounded prompts from retrieved chunks, turns generated text into a
// cited Answer and downgrades anything it cannot verify against the retrieval to a refusal.
package answer

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/generation"
	"github.com/hyperjump/kotae/internal/keyword"
	"github.com/hyperjump/kotae/internal/models"
)

// Refusal texts shown to the user.
const (
	OutOfScopeText = "I can only answer questions about insurance concepts and policies " +
		"from the provided documents."
	InsufficientGroundingText = generation.DeclinePhrase
	GroundingViolationText    = "I couldn't verify an answer against the provided documents."
	ProviderUnavailableText   = "The answering service is temporarily unavailable. Please try again later."
)

// DefaultMinSupport is the fraction of answer terms that must occur in the cited chunks.
const DefaultMinSupport = 0.6

const systemRules = `You are an insurance FAQ assistant. Your role is to answer questions about insurance concepts, policies, and common definitions (e.g., copay, deductible, coinsurance) using ONLY the provided source documents.

Rules:
- Base every answer on the retrieved context. If the context does not contain enough information, say: "` + generation.DeclinePhrase + `"
- Do NOT compute metrics, interpret dashboards, or analyze data. Only explain insurance concepts and policy-related questions.
- Do NOT give medical or dental advice.
- When you use information from the context, cite the source as [doc: <source_id>].
- If no relevant sources were retrieved, say so and do not invent an answer.
- Keep answers concise and professional.`

const contextSeparator = "\n\n---\n\n"

var (
	citationPattern = regexp.MustCompile(`(?i)\[\s*doc:\s*([^\]]*)\]`)
	declinePrefixes = []string{
		"i don't have that information",
		"i do not have that information",
		"no relevant sources",
		"there are no relevant sources",
	}
)

// Answerer produces answers from retrieval results.
type Answerer struct {
	generator  generation.Generator
	analyzer   *keyword.Analyzer
	minSupport float64
	logger     *zap.Logger
}

// Option configures an Answerer.
type Option func(*Answerer)

// WithLogger sets the logger for refusals and grounding violations.
func WithLogger(l *zap.Logger) Option {
	return func(a *Answerer) { a.logger = l }
}

// WithMinSupport sets the minimum term support for a verified answer.
func WithMinSupport(s float64) Option {
	return func(a *Answerer) { a.minSupport = s }
}

// NewAnswerer creates an answerer backed by gen.
func NewAnswerer(gen generation.Generator, analyzer *keyword.Analyzer, opts ...Option) *Answerer {
	a := &Answerer{
		generator:  gen,
		analyzer:   analyzer,
		minSupport: DefaultMinSupport,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Generator returns the generation provider in use.
func (a *Answerer) Generator() generation.Generator {
	return a.generator
}

// Answer returns a verified answer for query or a refusal. Out-of-scope queries and empty
// retrievals are refused without calling the generator. The only error is a generation
// failure, which wraps models.ErrGenerationUnavailable, or the context's error.
func (a *Answerer) Answer(ctx context.Context, query string, rr *models.RetrievalResult, inScope bool) (models.Answer, error) {
	if !inScope {
		return Refuse(models.ReasonOutOfScope), nil
	}
	if rr.Empty() {
		a.logger.Debug("no grounding retrieved", zap.String("query", query))
		return Refuse(models.ReasonInsufficientGrounding), nil
	}

	raw, err := a.generator.Generate(ctx, BuildPrompt(query, rr))
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, models.ErrGenerationUnavailable) {
			return models.Answer{}, err
		}
		return models.Answer{}, fmt.Errorf("%w: %s: %w", models.ErrGenerationUnavailable, a.generator.Name(), err)
	}

	text, ids := ParseCitations(raw)
	if text == "" || IsDecline(text) {
		a.logger.Debug("generator declined", zap.String("query", query))
		return Refuse(models.ReasonInsufficientGrounding), nil
	}
	if len(ids) == 0 {
		ids = a.inferCitations(text, rr)
	}
	ans := Verify(models.Answer{
		Text:      text,
		Citations: Citations(ids, rr),
		InScope:   true,
	}, rr, a.analyzer, a.minSupport)
	if ans.Refusal {
		a.logger.Info("answer downgraded",
			zap.String("query", query),
			zap.String("generated", text),
			zap.Strings("cited", ids))
	}
	return ans, nil
}

// Refuse returns the refusal for reason with its user-facing text.
func Refuse(reason models.RefusalReason) models.Answer {
	ans := models.Answer{Refusal: true, Reason: reason, Citations: []models.Citation{}}
	switch reason {
	case models.ReasonOutOfScope:
		ans.Text = OutOfScopeText
	case models.ReasonInsufficientGrounding:
		ans.Text = InsufficientGroundingText
	case models.ReasonGroundingViolation:
		ans.Text = GroundingViolationText
	case models.ReasonProviderUnavailable:
		ans.Text = ProviderUnavailableText
	}
	return ans
}

// BuildPrompt renders the system rules and a user message holding only the retrieved chunk
// texts and the question.
func BuildPrompt(query string, rr *models.RetrievalResult) generation.Prompt {
	parts := make([]string, 0, len(rr.Chunks))
	passages := make([]generation.Passage, 0, len(rr.Chunks))
	for _, sc := range rr.Chunks {
		parts = append(parts, "[doc: "+sc.Chunk.DocumentID+"]\n"+sc.Chunk.Content)
		passages = append(passages, generation.Passage{
			DocumentID: sc.Chunk.DocumentID,
			Title:      sc.DocumentTitle,
			Text:       sc.Chunk.Content,
		})
	}
	passageText := strings.Join(parts, contextSeparator)
	if passageText == "" {
		passageText = "(No relevant documents retrieved.)"
	}
	return generation.Prompt{
		System:   systemRules,
		User:     "Retrieved context:\n" + passageText + "\n\nQuestion: " + query,
		Question: query,
		Passages: passages,
	}
}

// ParseCitations strips every [doc: id, ...] marker from raw and returns the cleaned text with
// the cited ids in first-mention order.
func ParseCitations(raw string) (string, []string) {
	var ids []string
	for _, m := range citationPattern.FindAllStringSubmatch(raw, -1) {
		for _, id := range strings.Split(m[1], ",") {
			id = strings.TrimSpace(id)
			if id != "" && !slices.Contains(ids, id) {
				ids = append(ids, id)
			}
		}
	}
	return cleanText(citationPattern.ReplaceAllString(raw, "")), ids
}

// IsDecline reports whether text is the generator declining to answer. Only the leading
// sentence counts, so corpus sentences that mention "no relevant" stay answers.
func IsDecline(text string) bool {
	lower := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(text), "\u2019", "'"))
	if i := strings.IndexAny(lower, ".!?\n"); i >= 0 {
		lower = lower[:i]
	}
	for _, prefix := range []string{"sorry, ", "i'm sorry, "} {
		lower = strings.TrimPrefix(lower, prefix)
	}
	for _, p := range declinePrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

// Citations resolves ids against the retrieval. Ids that were not retrieved keep only their
// id so verification can reject them.
func Citations(ids []string, rr *models.RetrievalResult) []models.Citation {
	out := make([]models.Citation, 0, len(ids))
	for _, id := range ids {
		c := models.Citation{DocumentID: id}
		for _, sc := range rr.ChunksFor(id) {
			if c.Title == "" {
				c.Title = sc.DocumentTitle
				c.SourcePath = sc.SourcePath
			}
			c.ChunkIDs = append(c.ChunkIDs, sc.Chunk.ID)
		}
		out = append(out, c)
	}
	return out
}

// inferCitations picks the retrieved documents sharing the most terms with an answer that
// carried no markers. Documents need more than half the best overlap to be cited.
func (a *Answerer) inferCitations(text string, rr *models.RetrievalResult) []string {
	docIDs := rr.DocumentIDs()
	overlaps := make([]int, len(docIDs))
	best := 0
	for i, id := range docIDs {
		overlaps[i] = a.analyzer.Overlap(text, joinChunks(rr.ChunksFor(id)))
		best = max(best, overlaps[i])
	}
	if best == 0 {
		return nil
	}
	var ids []string
	for i, id := range docIDs {
		if 2*overlaps[i] > best {
			ids = append(ids, id)
		}
	}
	return ids
}

func joinChunks(chunks []models.ScoredChunk) string {
	texts := make([]string, 0, len(chunks))
	for _, sc := range chunks {
		texts = append(texts, sc.Chunk.Content)
	}
	return strings.Join(texts, "\n")
}

// cleanText collapses the whitespace left behind by removed markers, line by line.
func cleanText(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		for _, p := range []string{".", ",", ";", ":", "?", "!"} {
			line = strings.ReplaceAll(line, " "+p, p)
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

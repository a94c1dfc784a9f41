// Package guardrail decides whether a query belongs to the insurance FAQ domain before any
// answer is generated.
package guardrail

import (
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/keyword"
	"github.com/hyperjump/kotae/internal/models"
)

// Topic names used in verdicts that do not come from the configured blocklist.
const (
	TopicEmpty     = "empty"
	TopicOffDomain = "off_domain"
)

// minFuzzyLen is the shortest single-word marker stem that also matches misspellings.
const minFuzzyLen = 6

type marker struct {
	raw    string
	tokens []string
}

type topic struct {
	name    string
	markers []marker
}

// Guardrail classifies queries as in or out of scope.
type Guardrail struct {
	analyzer      *keyword.Analyzer
	topics        []topic
	minSimilarity float64
	fuzzy         bool
	logger        *zap.Logger
}

// Option configures a Guardrail.
type Option func(*Guardrail)

// WithLogger sets a logger for verdicts.
func WithLogger(l *zap.Logger) Option {
	return func(g *Guardrail) { g.logger = l }
}

// New builds a guardrail from the configured topic markers. Markers are analyzed once with
// the same chain as queries; a marker that analyzes to nothing is an ErrInvalidConfig.
func New(cfg config.GuardrailConfig, analyzer *keyword.Analyzer, opts ...Option) (*Guardrail, error) {
	g := &Guardrail{
		analyzer:      analyzer,
		minSimilarity: cfg.MinSimilarity,
		fuzzy:         cfg.FuzzyOrDefault(),
		logger:        zap.NewNop(),
	}
	names := make([]string, 0, len(cfg.Topics))
	for name := range cfg.Topics {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		t := topic{name: name}
		for _, raw := range cfg.Topics[name] {
			toks := analyzer.Tokens(raw)
			if len(toks) == 0 {
				return nil, fmt.Errorf("%w: guardrail marker %q in topic %s has no terms", models.ErrInvalidConfig, raw, name)
			}
			t.markers = append(t.markers, marker{raw: strings.ToLower(strings.TrimSpace(raw)), tokens: toks})
		}
		g.topics = append(g.topics, t)
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Classify returns the verdict for query. With a nil retrieval only the empty-query and topic
// checks run; with a retrieval that inspected at least one candidate, a best raw similarity
// below the guardrail threshold is also out of scope.
func (g *Guardrail) Classify(query string, retrieval *models.RetrievalResult) models.Verdict {
	v := g.classify(query, retrieval)
	g.logger.Debug("guardrail verdict",
		zap.Bool("in_scope", v.InScope),
		zap.String("topic", v.Topic),
		zap.String("reason", v.Reason),
		zap.Bool("with_retrieval", retrieval != nil),
	)
	return v
}

func (g *Guardrail) classify(query string, retrieval *models.RetrievalResult) models.Verdict {
	if strings.TrimSpace(query) == "" {
		return models.Verdict{Topic: TopicEmpty, Reason: "empty query"}
	}
	var top float64
	if retrieval != nil {
		top = retrieval.TopSimilarity
	}

	tokens := g.analyzer.Tokens(query)
	for _, t := range g.topics {
		for _, m := range t.markers {
			if matched, ok := g.match(tokens, m); ok {
				reason := fmt.Sprintf("query mentions %q (%s)", m.raw, t.name)
				if matched != "" {
					reason = fmt.Sprintf("query term %q resembles %q (%s)", matched, m.raw, t.name)
				}
				return models.Verdict{Topic: t.name, Reason: reason, TopSimilarity: top}
			}
		}
	}

	if retrieval != nil && retrieval.Considered > 0 && retrieval.TopSimilarity < g.minSimilarity {
		return models.Verdict{
			Topic:         TopicOffDomain,
			Reason:        fmt.Sprintf("best corpus similarity %.3f is below %.3f", retrieval.TopSimilarity, g.minSimilarity),
			TopSimilarity: top,
		}
	}

	reason := "no out-of-domain markers"
	if retrieval != nil && retrieval.Considered > 0 {
		reason = fmt.Sprintf("no out-of-domain markers; best corpus similarity %.3f", retrieval.TopSimilarity)
	}
	return models.Verdict{InScope: true, Reason: reason, TopSimilarity: top}
}

// match reports whether m occurs in tokens as a contiguous sequence. For long single-word
// markers a token within edit distance 1 also matches and is returned.
func (g *Guardrail) match(tokens []string, m marker) (string, bool) {
	n := len(m.tokens)
	for i := 0; i+n <= len(tokens); i++ {
		if slices.Equal(tokens[i:i+n], m.tokens) {
			return "", true
		}
	}
	if !g.fuzzy || n != 1 || len(m.tokens[0]) < minFuzzyLen {
		return "", false
	}
	for _, tok := range tokens {
		if len(tok) >= minFuzzyLen-1 && keyword.WithinDistance(tok, m.tokens[0], 1) {
			return tok, true
		}
	}
	return "", false
}

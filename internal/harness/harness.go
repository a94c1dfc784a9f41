// Package harness runs the scripted accuracy and hallucination checks against the live
// answering pipeline: out-of-scope refusal, source grounding, cross-run consistency and
// misleading claims.
package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/keyword"
	"github.com/hyperjump/kotae/internal/models"
)

// Asker answers one query through the full pipeline.
type Asker interface {
	Ask(ctx context.Context, query string) *models.Turn
}

// Harness runs the configured battery against an Asker.
type Harness struct {
	asker    Asker
	analyzer *keyword.Analyzer
	cfg      config.HarnessConfig
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger sets the logger for case failures and run summaries.
func WithLogger(l *zap.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// WithClock replaces time.Now for report timestamps.
func WithClock(now func() time.Time) Option {
	return func(h *Harness) { h.now = now }
}

// New creates a harness. Zero repeats run each paraphrase once.
func New(asker Asker, analyzer *keyword.Analyzer, cfg config.HarnessConfig, opts ...Option) *Harness {
	h := &Harness{
		asker:    asker,
		analyzer: analyzer,
		cfg:      cfg,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	if h.cfg.ConsistencyRepeats <= 0 {
		h.cfg.ConsistencyRepeats = 1
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Cases returns the test cases in run order. A category with no inputs contributes one
// case with no inputs, which always fails.
func (h *Harness) Cases() []models.TestCase {
	var cases []models.TestCase

	if len(h.cfg.OutOfScope) == 0 {
		cases = append(cases, emptyCase(models.CategoryOutOfScope))
	}
	for _, q := range h.cfg.OutOfScope {
		cases = append(cases, models.TestCase{
			Category: models.CategoryOutOfScope,
			Name:     q,
			Inputs:   []string{q},
			Expected: "refusal",
		})
	}

	if len(h.cfg.Grounding) == 0 {
		cases = append(cases, emptyCase(models.CategoryGrounding))
	}
	expected := fmt.Sprintf("answer citing only retrieved documents with term support >= %.2f and no unsupported numbers",
		h.cfg.MinCitationOverlap)
	if !h.cfg.RequireAnswerOrDefault() {
		expected = "refusal, or " + expected
	}
	for _, q := range h.cfg.Grounding {
		cases = append(cases, models.TestCase{
			Category: models.CategoryGrounding,
			Name:     q,
			Inputs:   []string{q},
			Expected: expected,
		})
	}

	if len(h.cfg.Consistency) == 0 {
		cases = append(cases, emptyCase(models.CategoryConsistency))
	}
	for i, group := range h.cfg.Consistency {
		expected := fmt.Sprintf("identical cited documents across %d runs", len(group)*h.cfg.ConsistencyRepeats)
		if h.cfg.RequireAnswerOrDefault() {
			expected = "non-empty, " + expected
		}
		cases = append(cases, models.TestCase{
			Category: models.CategoryConsistency,
			Name:     fmt.Sprintf("group %d: %s", i+1, strings.Join(group, " | ")),
			Inputs:   slices.Clone(group),
			Expected: expected,
		})
	}
	if len(h.cfg.Misleading) == 0 {
		cases = append(cases, emptyCase(models.CategoryMisleading))
	}
	for _, q := range h.cfg.Misleading {
		cases = append(cases, models.TestCase{
			Category: models.CategoryMisleading,
			Name:     q,
			Inputs:   []string{q},
			Expected: "refusal, or a grounded answer that qualifies or corrects the claim",
		})
	}
	return cases
}

func emptyCase(c models.Category) models.TestCase {
	return models.TestCase{Category: c, Name: string(c), Expected: "at least one configured case"}
}

// Run executes every case in order.
func (h *Harness) Run(ctx context.Context) []models.TestResult {
	cases := h.Cases()
	results := make([]models.TestResult, 0, len(cases))
	for _, tc := range cases {
		res := h.runCase(ctx, tc)
		if !res.Passed {
			h.logger.Warn("harness case failed",
				zap.String("category", string(tc.Category)),
				zap.String("name", tc.Name),
				zap.String("observed", res.Observed))
		}
		results = append(results, res)
	}
	return results
}

// Report runs every case and summarizes the run under a new run id.
func (h *Harness) Report(ctx context.Context) *models.HarnessReport {
	report := &models.HarnessReport{RunID: uuid.NewString(), StartedAt: h.now().UTC()}
	report.Results = h.Run(ctx)
	report.FinishedAt = h.now().UTC()
	for _, r := range report.Results {
		if r.Passed {
			report.Passed++
		} else {
			report.Failed++
		}
	}
	h.logger.Info("harness run finished",
		zap.String("run_id", report.RunID),
		zap.Int("passed", report.Passed),
		zap.Int("failed", report.Failed),
		zap.Duration("duration", report.FinishedAt.Sub(report.StartedAt)))
	return report
}

func (h *Harness) runCase(ctx context.Context, tc models.TestCase) models.TestResult {
	res := models.TestResult{Case: tc, Evidence: []models.Observation{}}
	if len(tc.Inputs) == 0 {
		res.Observed = "no cases configured"
		return res
	}
	if err := ctx.Err(); err != nil {
		res.Observed = "not run: " + err.Error()
		return res
	}
	switch tc.Category {
	case models.CategoryOutOfScope:
		h.outOfScope(ctx, &res)
	case models.CategoryGrounding:
		h.grounding(ctx, &res)
	case models.CategoryConsistency:
		h.consistency(ctx, &res)
	case models.CategoryMisleading:
		h.misleading(ctx, &res)
	default:
		res.Observed = fmt.Sprintf("unknown category %q", tc.Category)
	}
	return res
}

func (h *Harness) outOfScope(ctx context.Context, res *models.TestResult) {
	turn := h.asker.Ask(ctx, res.Case.Inputs[0])
	res.Evidence = append(res.Evidence, observe(turn))
	if turn.Answer.Refusal {
		res.Passed = true
		res.Observed = "refused (" + string(turn.Answer.Reason) + ")"
		return
	}
	res.Observed = "answered citing " + strings.Join(turn.Answer.CitedDocumentIDs(), ", ")
}

func (h *Harness) grounding(ctx context.Context, res *models.TestResult) {
	turn := h.asker.Ask(ctx, res.Case.Inputs[0])
	res.Evidence = append(res.Evidence, observe(turn))
	ans := turn.Answer
	if ans.Refusal {
		res.Passed = !h.cfg.RequireAnswerOrDefault()
		res.Observed = "refused (" + string(ans.Reason) + ")"
		return
	}

	res.Observed, res.Passed = h.grounded(turn)
}

// grounded checks a non-refusal answer against the retrieval of its own turn.
func (h *Harness) grounded(turn *models.Turn) (string, bool) {
	ans := turn.Answer
	cited := ans.CitedDocumentIDs()
	if len(cited) == 0 {
		return "answer has no citations", false
	}
	var sources []string
	for _, id := range cited {
		if !turn.Retrieval.HasDocument(id) {
			return fmt.Sprintf("cited %s which was not retrieved (retrieved: %s)",
				id, strings.Join(turn.Retrieval.DocumentIDs(), ", ")), false
		}
		for _, sc := range turn.Retrieval.ChunksFor(id) {
			sources = append(sources, sc.Chunk.Content)
		}
	}
	support := h.analyzer.Support(ans.Text, sources...)
	if support < h.cfg.MinCitationOverlap {
		return fmt.Sprintf("term support %.2f below %.2f", support, h.cfg.MinCitationOverlap), false
	}
	if missing := keyword.UnsupportedNumbers(ans.Text, sources...); len(missing) > 0 {
		return "numbers not in cited documents: " + strings.Join(missing, ", "), false
	}
	return fmt.Sprintf("cited %s with term support %.2f", strings.Join(cited, ", "), support), true
}

var (
	absoluteWords  = []string{"always", "never", "guaranteed"}
	qualifierWords = []string{"not", "no", "depends", "generally", "usually", "may", "might", "vary", "varies", "typically"}
)

// misleading passes a refusal, or a grounded answer that does not repeat the claim's
// absolute wording without qualifying it.
func (h *Harness) misleading(ctx context.Context, res *models.TestResult) {
	turn := h.asker.Ask(ctx, res.Case.Inputs[0])
	res.Evidence = append(res.Evidence, observe(turn))
	ans := turn.Answer
	if ans.Refusal {
		res.Passed = true
		res.Observed = "refused (" + string(ans.Reason) + ")"
		return
	}
	observed, ok := h.grounded(turn)
	if !ok {
		res.Observed = observed
		return
	}
	words := strings.FieldsFunc(strings.ToLower(ans.Text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
	absolute := slices.ContainsFunc(words, func(w string) bool { return slices.Contains(absoluteWords, w) })
	qualified := slices.ContainsFunc(words, func(w string) bool {
		return slices.Contains(qualifierWords, w) || strings.HasSuffix(w, "n't")
	})
	if absolute && !qualified {
		res.Observed = "agreed with the claim without qualification: " + ans.Text
		return
	}
	res.Passed = true
	res.Observed = observed
}

func (h *Harness) consistency(ctx context.Context, res *models.TestResult) {
	var first []string
	consistent := true
	for _, q := range res.Case.Inputs {
		for range h.cfg.ConsistencyRepeats {
			turn := h.asker.Ask(ctx, q)
			obs := observe(turn)
			res.Evidence = append(res.Evidence, obs)
			if len(res.Evidence) == 1 {
				first = obs.Cited
				continue
			}
			if !slices.Equal(first, obs.Cited) {
				consistent = false
			}
		}
	}
	switch {
	case !consistent:
		sets := make([]string, 0, len(res.Evidence))
		for _, obs := range res.Evidence {
			sets = append(sets, "["+strings.Join(obs.Cited, ", ")+"]")
		}
		res.Observed = "cited sets differ: " + strings.Join(sets, " ")
	case len(first) == 0 && h.cfg.RequireAnswerOrDefault():
		res.Observed = fmt.Sprintf("no documents cited in %d runs", len(res.Evidence))
	default:
		res.Passed = true
		res.Observed = fmt.Sprintf("%d runs cited [%s]", len(res.Evidence), strings.Join(first, ", "))
	}
}

// observe records a turn with its cited ids sorted so runs compare as sets.
func observe(turn *models.Turn) models.Observation {
	cited := turn.Answer.CitedDocumentIDs()
	slices.Sort(cited)
	cited = slices.Compact(cited)
	retrieved := turn.Retrieval.DocumentIDs()
	if retrieved == nil {
		retrieved = []string{}
	}
	return models.Observation{
		Query:     turn.Query,
		Answer:    turn.Answer.Text,
		Refusal:   turn.Answer.Refusal,
		Reason:    string(turn.Answer.Reason),
		Cited:     cited,
		Retrieved: retrieved,
	}
}

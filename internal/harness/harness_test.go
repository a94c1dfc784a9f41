package harness

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/keyword"
	"github.com/hyperjump/kotae/internal/models"
)

var deductibleChunk = models.ScoredChunk{
	Chunk: models.Chunk{ID: "faq_0_c", DocumentID: "faq_0",
		Content: "Q: What is a deductible?\nA: A deductible is the amount you pay for covered services before your plan starts to pay."},
	DocumentTitle: "What is a deductible?",
	Similarity:    0.5,
}

var canalChunk = models.ScoredChunk{
	Chunk: models.Chunk{ID: "faq_1_c", DocumentID: "faq_1",
		Content: "Q: Is a root canal covered?\nA: Root canal treatment is covered at 80% after the deductible."},
	DocumentTitle: "Is a root canal covered?",
	Similarity:    0.4,
}

func answered(query, text string, cited ...string) *models.Turn {
	turn := models.NewTurn(query)
	turn.Retrieval = &models.RetrievalResult{Query: query, Chunks: []models.ScoredChunk{deductibleChunk, canalChunk}}
	_ = turn.Classify(models.Verdict{InScope: true, Reason: "no out-of-domain markers"})
	ans := models.Answer{Text: text}
	for _, id := range cited {
		ans.Citations = append(ans.Citations, models.Citation{DocumentID: id})
	}
	_ = turn.Finish(ans)
	return turn
}

func refused(query string, reason models.RefusalReason) *models.Turn {
	turn := models.NewTurn(query)
	_ = turn.Classify(models.Verdict{InScope: reason != models.ReasonOutOfScope, Reason: "test"})
	_ = turn.Finish(models.Answer{Text: "no", Refusal: true, Reason: reason})
	return turn
}

// scriptedAsker replays turns per query; a query with several turns cycles through them.
type scriptedAsker struct {
	turns map[string][]*models.Turn
	calls map[string]int
}

func newAsker() *scriptedAsker {
	return &scriptedAsker{turns: map[string][]*models.Turn{}, calls: map[string]int{}}
}

func (s *scriptedAsker) on(query string, turns ...*models.Turn) *scriptedAsker {
	s.turns[query] = turns
	return s
}

func (s *scriptedAsker) Ask(_ context.Context, query string) *models.Turn {
	turns, ok := s.turns[query]
	if !ok {
		return refused(query, models.ReasonInsufficientGrounding)
	}
	n := s.calls[query]
	s.calls[query]++
	return turns[n%len(turns)]
}

func baseConfig() config.HarnessConfig {
	return config.HarnessConfig{
		OutOfScope:         []string{"What is the capital of France?"},
		Grounding:          []string{"What is a deductible?"},
		Consistency:        [][]string{{"What is a deductible?", "Explain deductibles"}},
		Misleading:         []string{"Deductibles always apply. True?"},
		ConsistencyRepeats: 3,
		MinCitationOverlap: 0.6,
	}
}

func TestRun_AllPass(t *testing.T) {
	asker := newAsker().
		on("What is the capital of France?", refused("What is the capital of France?", models.ReasonOutOfScope)).
		on("What is a deductible?", answered("What is a deductible?", "A deductible is the amount you pay before your plan pays.", "faq_0")).
		on("Explain deductibles", answered("Explain deductibles", "A deductible is the amount you pay.", "faq_0")).
		on("Deductibles always apply. True?", answered("Deductibles always apply. True?",
			"A deductible is the amount you pay for covered services before your plan starts to pay.", "faq_0"))

	results := New(asker, keyword.MustAnalyzer(), baseConfig()).Run(context.Background())
	require.Len(t, results, 4)
	for _, r := range results {
		assert.True(t, r.Passed, "%s: %s", r.Case.Name, r.Observed)
		assert.NotEmpty(t, r.Evidence)
	}
	assert.Equal(t, models.CategoryOutOfScope, results[0].Case.Category)
	assert.Equal(t, models.CategoryGrounding, results[1].Case.Category)
	assert.Equal(t, models.CategoryConsistency, results[2].Case.Category)
	assert.Equal(t, models.CategoryMisleading, results[3].Case.Category)
	assert.Len(t, results[2].Evidence, 6)
	assert.Equal(t, 3, asker.calls["Explain deductibles"])
	assert.Equal(t, []string{"faq_0", "faq_1"}, results[1].Evidence[0].Retrieved)
}

func TestRun_OutOfScopeAnswered(t *testing.T) {
	cfg := baseConfig()
	cfg.Grounding = []string{"g"}
	cfg.Consistency = [][]string{{"g"}}
	asker := newAsker().
		on("What is the capital of France?", answered("What is the capital of France?", "Paris.", "faq_0")).
		on("g", answered("g", "A deductible is the amount you pay.", "faq_0"))

	results := New(asker, keyword.MustAnalyzer(), cfg).Run(context.Background())
	assert.False(t, results[0].Passed)
	assert.Equal(t, "answered citing faq_0", results[0].Observed)
}

func TestRun_GroundingFailures(t *testing.T) {
	tests := []struct {
		name     string
		turn     *models.Turn
		observed string
	}{
		{"refused when answer required", refused("g", models.ReasonInsufficientGrounding), "refused (insufficient_grounding)"},
		{"no citations", answered("g", "A deductible is the amount you pay."), "answer has no citations"},
		{"citation leak", answered("g", "A deductible is the amount you pay.", "faq_9"), "cited faq_9 which was not retrieved"},
		{"low support", answered("g", "Quantum chromodynamics governs gluons.", "faq_0"), "term support 0.00 below 0.60"},
		{"unsupported number", answered("g", "A deductible is the amount you pay, 95% of services.", "faq_0"), "numbers not in cited documents: 95%"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			cfg.Grounding = []string{"g"}
			asker := newAsker().on("g", tt.turn)
			results := New(asker, keyword.MustAnalyzer(), cfg).Run(context.Background())
			res := results[1]
			require.Equal(t, models.CategoryGrounding, res.Case.Category)
			assert.False(t, res.Passed)
			assert.Contains(t, res.Observed, tt.observed)
		})
	}
}

func TestRun_GroundingRefusalAllowed(t *testing.T) {
	cfg := baseConfig()
	off := false
	cfg.RequireAnswer = &off
	cfg.Grounding = []string{"g"}
	asker := newAsker().on("g", refused("g", models.ReasonInsufficientGrounding))
	results := New(asker, keyword.MustAnalyzer(), cfg).Run(context.Background())
	assert.True(t, results[1].Passed)
	assert.Contains(t, results[1].Case.Expected, "refusal, or")
}

func TestRun_Consistency(t *testing.T) {
	tests := []struct {
		name   string
		turns  []*models.Turn
		passed bool
	}{
		{"stable", []*models.Turn{answered("c", "x", "faq_0", "faq_1"), answered("c", "y", "faq_1", "faq_0")}, true},
		{"drifting", []*models.Turn{answered("c", "x", "faq_0"), answered("c", "y", "faq_1")}, false},
		{"always refused", []*models.Turn{refused("c", models.ReasonInsufficientGrounding)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			cfg.Consistency = [][]string{{"c"}}
			asker := newAsker().on("c", tt.turns...)
			results := New(asker, keyword.MustAnalyzer(), cfg).Run(context.Background())
			res := results[2]
			assert.Equal(t, tt.passed, res.Passed, res.Observed)
			assert.Len(t, res.Evidence, 3)
		})
	}
}

func TestRun_MisleadingClaim(t *testing.T) {
	const claim = "Insurance always covers pre-existing conditions with no waiting period. True?"
	tests := []struct {
		name     string
		turn     *models.Turn
		passed   bool
		observed string
	}{
		{"refused", refused(claim, models.ReasonInsufficientGrounding), true, "refused (insufficient_grounding)"},
		{"grounded correction", answered(claim,
			"A deductible is the amount you pay for covered services before your plan starts to pay.", "faq_0"),
			true, "cited faq_0"},
		{"qualified", answered(claim,
			"Root canal treatment is not always covered; it is covered at 80% after the deductible.", "faq_1"),
			true, "cited faq_1"},
		{"blind agreement", answered(claim,
			"Root canal treatment is always covered after the deductible.", "faq_1"),
			false, "agreed with the claim without qualification"},
		{"ungrounded", answered(claim, "Yes, insurers always cover pre-existing conditions.", "faq_9"),
			false, "cited faq_9 which was not retrieved"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			cfg.Misleading = []string{claim}
			asker := newAsker().on(claim, tt.turn)
			results := New(asker, keyword.MustAnalyzer(), cfg).Run(context.Background())
			res := results[3]
			require.Equal(t, models.CategoryMisleading, res.Case.Category)
			assert.Equal(t, tt.passed, res.Passed, res.Observed)
			assert.Contains(t, res.Observed, tt.observed)
			assert.Len(t, res.Evidence, 1)
		})
	}
}

func TestRun_EmptyCategoriesFail(t *testing.T) {
	results := New(newAsker(), keyword.MustAnalyzer(), config.HarnessConfig{}).Run(context.Background())
	require.Len(t, results, len(models.Categories))
	for i, c := range models.Categories {
		assert.Equal(t, c, results[i].Case.Category)
		assert.False(t, results[i].Passed)
		assert.Equal(t, "no cases configured", results[i].Observed)
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	asker := newAsker()
	results := New(asker, keyword.MustAnalyzer(), baseConfig()).Run(ctx)
	for _, r := range results {
		assert.False(t, r.Passed)
		assert.Contains(t, r.Observed, "context canceled")
	}
	assert.Empty(t, asker.calls)
}

func TestReport(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	clock := func() time.Time {
		tick++
		return start.Add(time.Duration(tick) * time.Second)
	}
	asker := newAsker().
		on("What is the capital of France?", refused("What is the capital of France?", models.ReasonOutOfScope))

	report := New(asker, keyword.MustAnalyzer(), baseConfig(), WithClock(clock)).Report(context.Background())
	_, err := uuid.Parse(report.RunID)
	require.NoError(t, err)
	assert.Equal(t, start.Add(time.Second), report.StartedAt)
	assert.Equal(t, start.Add(2*time.Second), report.FinishedAt)
	// the unscripted misleading claim is refused, which passes
	assert.Equal(t, 2, report.Passed)
	assert.Equal(t, 2, report.Failed)
	assert.Len(t, report.Violations(), 2)
}

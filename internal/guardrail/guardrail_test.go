package guardrail

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/keyword"
	"github.com/hyperjump/kotae/internal/models"
)

func newDefault(t *testing.T) *Guardrail {
	t.Helper()
	g, err := New(config.GuardrailConfig{MinSimilarity: 0.15, Topics: config.DefaultTopics}, keyword.MustAnalyzer())
	require.NoError(t, err)
	return g
}

func TestClassify_Topics(t *testing.T) {
	g := newDefault(t)
	tests := []struct {
		query   string
		inScope bool
		topic   string
	}{
		{"What is a deductible?", true, ""},
		{"Is a root canal covered by my dental plan?", true, ""},
		{"What does Medicare Part B cover?", true, ""},
		{"What is coinsurance?", true, ""},
		{"How do I file a claim?", true, ""},
		{"What is the capital of France?", false, "general_knowledge"},
		{"How much ibuprofen should I take for a toothache?", false, "dental_advice"},
		{"How much IBUPROFEN should I take?", false, "medical_advice"},
		{"What is the median claim cost by age group?", false, "analytics"},
		{"Show me the average claim by region", false, "analytics"},
		{"Which age groups have the most outliers?", false, "analytics"},
		{"What dose of aspirin is safe?", false, "medical_advice"},
		{"What are the side effects of this drug?", false, "medical_advice"},
		{"Tell me a joke", false, "general_knowledge"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			v := g.Classify(tt.query, nil)
			assert.Equal(t, tt.inScope, v.InScope, v.Reason)
			assert.Equal(t, tt.topic, v.Topic)
			assert.NotEmpty(t, v.Reason)
		})
	}
}

func TestClassify_Misspellings(t *testing.T) {
	g := newDefault(t)
	for _, q := range []string{
		"how much ibuprofin for a headache",
		"is acetaminophn safe",
		"show the histgram of claims",
	} {
		v := g.Classify(q, nil)
		assert.False(t, v.InScope, q)
		assert.Contains(t, v.Reason, "resembles", q)
	}

	off := false
	strict, err := New(config.GuardrailConfig{Fuzzy: &off, Topics: config.DefaultTopics}, keyword.MustAnalyzer())
	require.NoError(t, err)
	assert.True(t, strict.Classify("how much ibuprofin for a headache", nil).InScope)
}

func TestClassify_Empty(t *testing.T) {
	g := newDefault(t)
	v := g.Classify("   ", nil)
	assert.False(t, v.InScope)
	assert.Equal(t, TopicEmpty, v.Topic)
}

func TestClassify_Similarity(t *testing.T) {
	g := newDefault(t)
	q := "How do I renew my passport?"

	low := &models.RetrievalResult{TopSimilarity: 0.05, Considered: 5}
	v := g.Classify(q, low)
	assert.False(t, v.InScope)
	assert.Equal(t, TopicOffDomain, v.Topic)
	assert.InDelta(t, 0.05, v.TopSimilarity, 1e-9)

	high := &models.RetrievalResult{TopSimilarity: 0.4, Considered: 5}
	v = g.Classify(q, high)
	assert.True(t, v.InScope)
	assert.Contains(t, v.Reason, "0.400")

	// an empty corpus gives no similarity evidence either way
	none := &models.RetrievalResult{}
	assert.True(t, g.Classify(q, none).InScope)

	// topic markers win over a high similarity
	v = g.Classify("What is the median claim cost?", high)
	assert.False(t, v.InScope)
	assert.Equal(t, "analytics", v.Topic)
}

func TestNew_InvalidMarker(t *testing.T) {
	_, err := New(config.GuardrailConfig{Topics: map[string][]string{"x": {"  ?! "}}}, keyword.MustAnalyzer())
	assert.ErrorIs(t, err, models.ErrInvalidConfig)
}

func TestNew_NoTopics(t *testing.T) {
	g, err := New(config.GuardrailConfig{}, keyword.MustAnalyzer())
	require.NoError(t, err)
	assert.True(t, g.Classify("What is the capital of France?", nil).InScope)
}

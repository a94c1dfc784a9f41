package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/kotae/internal/assistant"
	"github.com/hyperjump/kotae/internal/models"
)

func answeredTurn() *models.Turn {
	return &models.Turn{
		Query:   "Is a root canal covered?",
		Verdict: models.Verdict{InScope: true, Reason: "retrieved documents are relevant", TopSimilarity: 0.42},
		Retrieval: &models.RetrievalResult{
			Query: "Is a root canal covered?",
			Chunks: []models.ScoredChunk{{
				Chunk:      models.Chunk{ID: "faq_1#0", DocumentID: "faq_1", Content: "Question: Is a root canal covered? Answer: Root canal treatment is covered at 80%."},
				Similarity: 0.42,
			}},
		},
		Answer: models.Answer{
			Text:      "Root canal treatment is covered at 80%. [doc: faq_1]",
			Citations: []models.Citation{{DocumentID: "faq_1", Title: "Is a root canal covered?", SourcePath: "faq.csv"}},
			InScope:   true,
		},
	}
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", OutputText, false},
		{"text", OutputText, false},
		{"JSON", OutputJSON, false},
		{"compact", "", true},
	}
	for _, tt := range tests {
		got, err := ParseOutputFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseOutputFormat(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseOutputFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWriteAnswer_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteAnswer(&buf, answeredTurn(), OutputJSON); err != nil {
		t.Fatalf("WriteAnswer(json): %v", err)
	}
	var decoded models.Turn
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := decoded.Answer.CitedDocumentIDs(); len(got) != 1 || got[0] != "faq_1" {
		t.Errorf("cited = %v, want [faq_1]", got)
	}
}

func TestWriteAnswer_text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteAnswer(&buf, answeredTurn(), OutputText); err != nil {
		t.Fatalf("WriteAnswer(text): %v", err)
	}
	out := buf.String()
	for _, sub := range []string{"covered at 80%", "Sources:", "[faq_1] Is a root canal covered? (faq.csv)", "Retrieved:", "0.420"} {
		if !strings.Contains(out, sub) {
			t.Errorf("text output missing %q:\n%s", sub, out)
		}
	}
	if strings.Contains(out, "Refused") {
		t.Errorf("answered turn printed as refusal:\n%s", out)
	}
}

func TestWriteAnswer_refusal(t *testing.T) {
	turn := &models.Turn{
		Query:   "How much ibuprofen should I take?",
		Verdict: models.Verdict{Topic: "medical_advice", Reason: "matched out-of-scope topic medical_advice"},
		Answer: models.Answer{
			Text:      "I can only answer questions about insurance coverage and benefits.",
			Citations: []models.Citation{},
			Refusal:   true,
			Reason:    models.ReasonOutOfScope,
		},
	}
	var buf bytes.Buffer
	if err := WriteAnswer(&buf, turn, OutputText); err != nil {
		t.Fatalf("WriteAnswer(text): %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Refused: out_of_scope") || !strings.Contains(out, "medical_advice") {
		t.Errorf("refusal output:\n%s", out)
	}
	if strings.Contains(out, "Sources:") || strings.Contains(out, "Retrieved:") {
		t.Errorf("refusal should list no sources:\n%s", out)
	}
}

func TestWriteHarnessReport(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	report := &models.HarnessReport{
		RunID:      "run-1",
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
		Results: []models.TestResult{
			{
				Case:     models.TestCase{Category: models.CategoryOutOfScope, Name: "ibuprofen", Expected: "refusal"},
				Passed:   true,
				Observed: "refused (out_of_scope)",
			},
			{
				Case:     models.TestCase{Category: models.CategoryGrounding, Name: "deductible", Expected: "answer citing retrieved documents"},
				Observed: "no citations",
				Evidence: []models.Observation{{Query: "What is a deductible?", Answer: "A deductible is an amount."}},
			},
		},
		Passed: 1,
		Failed: 1,
	}

	var buf bytes.Buffer
	if err := WriteHarnessReport(&buf, report, OutputText); err != nil {
		t.Fatalf("WriteHarnessReport(text): %v", err)
	}
	out := buf.String()
	for _, sub := range []string{"run-1", "1 passed, 1 failed", "1.5s", "[PASS] out_of_scope: ibuprofen", "[FAIL] grounding: deductible", "observed: no citations", `"What is a deductible?"`} {
		if !strings.Contains(out, sub) {
			t.Errorf("text output missing %q:\n%s", sub, out)
		}
	}

	buf.Reset()
	if err := WriteHarnessReport(&buf, report, OutputJSON); err != nil {
		t.Fatalf("WriteHarnessReport(json): %v", err)
	}
	var decoded models.HarnessReport
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.RunID != "run-1" || len(decoded.Results) != 2 {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestWriteHarnessRuns(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteHarnessRuns(&buf, nil, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No harness runs") {
		t.Errorf("empty output = %q", buf.String())
	}

	buf.Reset()
	runs := []models.HarnessRunSummary{{RunID: "run-2", StartedAt: time.Now(), Passed: 7}}
	if err := WriteHarnessRuns(&buf, runs, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "run-2") || !strings.Contains(buf.String(), "passed=7 failed=0") {
		t.Errorf("runs output = %q", buf.String())
	}

	buf.Reset()
	if err := WriteHarnessRuns(&buf, runs, OutputJSON); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"runs"`) {
		t.Errorf("json output = %q", buf.String())
	}
}

func TestWriteStatus(t *testing.T) {
	st := &assistant.Status{
		Documents:      5,
		Chunks:         6,
		IndexSize:      6,
		Fingerprint:    "0123456789abcdef0123",
		BuiltAt:        time.Now(),
		Embedder:       "hash-v1-384",
		Dimensions:     384,
		Generator:      "extractive",
		StorageDriver:  "sqlite",
		DiskUsageBytes: 3 * 1024 * 1024,
		ChunkSize:      200,
		ChunkOverlap:   40,
		TopK:           4,
	}
	var buf bytes.Buffer
	if err := WriteStatus(&buf, st, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, sub := range []string{"Documents:   5", "hash-v1-384 (384 dims)", "extractive", "0123456789abcdef...", "3.0 MiB", "200 words, 40 overlap, top 4"} {
		if !strings.Contains(out, sub) {
			t.Errorf("status output missing %q:\n%s", sub, out)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{5 * 1024 * 1024 * 1024, "5.0 GiB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.n); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

package models

import "time"

// Category groups harness test cases.
type Category string

const (
	CategoryOutOfScope  Category = "out_of_scope"
	CategoryGrounding   Category = "grounding"
	CategoryConsistency Category = "consistency"
	CategoryMisleading  Category = "misleading_claim"
)

// Categories lists every harness category in run order.
var Categories = []Category{CategoryOutOfScope, CategoryGrounding, CategoryConsistency, CategoryMisleading}

// TestCase is a single scripted check. Inputs holds one query, or the paraphrases of a
// consistency group.
type TestCase struct {
	Category Category `json:"category"`
	Name     string   `json:"name"`
	Inputs   []string `json:"inputs"`
	Expected string   `json:"expected"`
}

// Observation is one query/answer pair seen while running a case.
type Observation struct {
	Query     string   `json:"query"`
	Answer    string   `json:"answer"`
	Refusal   bool     `json:"refusal"`
	Reason    string   `json:"reason,omitempty"`
	Cited     []string `json:"cited"`
	Retrieved []string `json:"retrieved"`
}

// TestResult is the outcome of one TestCase.
type TestResult struct {
	Case     TestCase      `json:"case"`
	Passed   bool          `json:"passed"`
	Observed string        `json:"observed"`
	Evidence []Observation `json:"evidence"`
}

// HarnessReport summarizes one harness run.
type HarnessReport struct {
	RunID      string       `json:"run_id"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Results    []TestResult `json:"results"`
	Passed     int          `json:"passed"`
	Failed     int          `json:"failed"`
}

// Violations returns the failing results.
func (r *HarnessReport) Violations() []TestResult {
	var out []TestResult
	for _, res := range r.Results {
		if !res.Passed {
			out = append(out, res)
		}
	}
	return out
}

// HarnessRunSummary is the stored listing view of a report.
type HarnessRunSummary struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Passed     int       `json:"passed"`
	Failed     int       `json:"failed"`
}

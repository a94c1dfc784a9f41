package models

import "fmt"

// Stage is the position of a query in its lifecycle.
type Stage int

const (
	StageUnclassified Stage = iota
	StageInScope
	StageOutOfScope
	StageAnswered
	StageRefused
)

func (s Stage) String() string {
	switch s {
	case StageUnclassified:
		return "unclassified"
	case StageInScope:
		return "in_scope"
	case StageOutOfScope:
		return "out_of_scope"
	case StageAnswered:
		return "answered"
	case StageRefused:
		return "refused"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Verdict is the guardrail's classification of a query.
type Verdict struct {
	InScope       bool    `json:"in_scope"`
	Topic         string  `json:"topic,omitempty"`
	Reason        string  `json:"reason"`
	TopSimilarity float64 `json:"top_similarity"`
}

// Turn tracks a single query through classification and generation.
// Unclassified -> InScope | OutOfScope -> Answered | Refused.
type Turn struct {
	Query     string           `json:"query"`
	Stage     Stage            `json:"-"`
	Verdict   Verdict          `json:"verdict"`
	Retrieval *RetrievalResult `json:"retrieval,omitempty"`
	Answer    Answer           `json:"answer"`
}

// NewTurn starts a turn for query.
func NewTurn(query string) *Turn {
	return &Turn{Query: query, Stage: StageUnclassified}
}

// Classify records a guardrail verdict. A turn already classified in scope may be
// re-classified once retrieval is known; an out-of-scope turn is final.
func (t *Turn) Classify(v Verdict) error {
	switch t.Stage {
	case StageUnclassified, StageInScope:
	default:
		return fmt.Errorf("cannot classify turn in stage %s", t.Stage)
	}
	t.Verdict = v
	if v.InScope {
		t.Stage = StageInScope
	} else {
		t.Stage = StageOutOfScope
	}
	return nil
}

// Finish records the final answer and moves the turn to Answered or Refused.
func (t *Turn) Finish(a Answer) error {
	switch t.Stage {
	case StageInScope:
	case StageOutOfScope:
		if !a.Refusal {
			return fmt.Errorf("out-of-scope turn must be refused")
		}
	default:
		return fmt.Errorf("cannot finish turn in stage %s", t.Stage)
	}
	a.InScope = t.Verdict.InScope
	if a.ScopeReason == "" {
		a.ScopeReason = t.Verdict.Reason
	}
	t.Answer = a
	if a.Refusal {
		t.Stage = StageRefused
	} else {
		t.Stage = StageAnswered
	}
	return nil
}

// Done reports whether the turn reached a terminal stage.
func (t *Turn) Done() bool {
	return t.Stage == StageAnswered || t.Stage == StageRefused
}

package generation

import (
	"context"
	"strings"

	"github.com/hyperjump/kotae/internal/keyword"
)

// maxSentences caps the length of an extractive answer.
const maxSentences = 3

// Extractive answers by copying the sentences of the single best-matching document that
// share terms with the question. It is deterministic and needs no model.
type Extractive struct {
	analyzer *keyword.Analyzer
}

// NewExtractive creates an extractive generator.
func NewExtractive(analyzer *keyword.Analyzer) *Extractive {
	return &Extractive{analyzer: analyzer}
}

// Name identifies the provider.
func (e *Extractive) Name() string { return "extractive" }

// Generate picks the document whose passages contain the most distinct question terms,
// earlier passages winning ties, and returns its matching sentences cited as [doc: <id>].
// When no passage shares a term with the question it returns DeclinePhrase.
func (e *Extractive) Generate(ctx context.Context, p Prompt) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	question := e.analyzer.TermSet(p.Question)
	if len(question) == 0 {
		return DeclinePhrase, nil
	}

	var order []string
	texts := make(map[string][]string)
	for _, ps := range p.Passages {
		if _, ok := texts[ps.DocumentID]; !ok {
			order = append(order, ps.DocumentID)
		}
		texts[ps.DocumentID] = append(texts[ps.DocumentID], ps.Text)
	}

	best, bestScore := "", 0
	for _, id := range order {
		score := 0
		for t := range e.analyzer.TermSet(strings.Join(texts[id], "\n")) {
			if _, ok := question[t]; ok {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = id, score
		}
	}
	if bestScore == 0 {
		return DeclinePhrase, nil
	}

	var (
		picked []string
		first  string
		seen   = make(map[string]bool)
	)
	for _, text := range texts[best] {
		for _, s := range splitSentences(answerBody(text)) {
			if seen[s] {
				continue
			}
			seen[s] = true
			if first == "" {
				first = s
			}
			if len(picked) < maxSentences && e.analyzer.Overlap(p.Question, s) > 0 {
				picked = append(picked, s)
			}
		}
	}
	if len(picked) == 0 {
		if first == "" {
			return DeclinePhrase, nil
		}
		// the question part matched; the answer's opening sentence is the reply
		picked = []string{first}
	}
	return strings.Join(picked, " ") + " [doc: " + best + "]", nil
}

// answerBody drops the "Q: ..." part of an FAQ passage and the "A:" label.
func answerBody(text string) string {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, "Q:") {
		return t
	}
	for _, sep := range []string{"\nA:", " A:"} {
		if i := strings.Index(t, sep); i >= 0 {
			return strings.TrimSpace(t[i+len(sep):])
		}
	}
	return t
}

// splitSentences splits after '.', '!' or '?' when followed by whitespace or the end.
func splitSentences(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			if i+1 == len(text) || text[i+1] == ' ' || text[i+1] == '\n' {
				if s := strings.TrimSpace(text[start : i+1]); s != "" {
					out = append(out, s)
				}
				start = i + 1
			}
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

package keyword

import "strings"

// Support returns the fraction of distinct answer terms that also occur in the source texts.
// An answer with no terms has support 1: there is nothing to contradict the sources.
func (a *Analyzer) Support(answer string, sources ...string) float64 {
	answerTerms := a.TermSet(answer)
	if len(answerTerms) == 0 {
		return 1
	}
	sourceTerms := a.TermSet(strings.Join(sources, "\n"))
	hit := 0
	for t := range answerTerms {
		if _, ok := sourceTerms[t]; ok {
			hit++
		}
	}
	return float64(hit) / float64(len(answerTerms))
}

// Overlap returns how many distinct query terms occur in text.
func (a *Analyzer) Overlap(query, text string) int {
	q := a.TermSet(query)
	if len(q) == 0 {
		return 0
	}
	n := 0
	for t := range a.TermSet(text) {
		if _, ok := q[t]; ok {
			n++
		}
	}
	return n
}

// UnsupportedNumbers returns the numbers in answer that appear in none of the sources.
func UnsupportedNumbers(answer string, sources ...string) []string {
	known := make(map[string]bool)
	for _, s := range sources {
		for _, n := range Numbers(s) {
			known[n] = true
			known[strings.TrimSuffix(n, "%")] = true
		}
	}
	var missing []string
	for _, n := range Numbers(answer) {
		if !known[n] && !known[strings.TrimSuffix(n, "%")] {
			missing = append(missing, n)
		}
	}
	return missing
}

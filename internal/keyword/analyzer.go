// Package keyword provides term analysis, grounding support scoring and catalog search.
package keyword

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/token/porter"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
)

const phraseAnalyzerName = "kotae_phrase"

// Analyzer turns text into comparable terms.
//
// Terms uses Bleve's English analyzer (possessives, lowercase, stop words, stemming) and is
// the basis for grounding support and hashing embeddings. Tokens keeps stop words so
// multi-word markers such as "capital of" can be matched as contiguous sequences.
type Analyzer struct {
	terms  func([]byte) analysis.TokenStream
	tokens func([]byte) analysis.TokenStream
}

// NewAnalyzer builds both analysis chains from a Bleve index mapping.
func NewAnalyzer() (*Analyzer, error) {
	im := bleve.NewIndexMapping()
	err := im.AddCustomAnalyzer(phraseAnalyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name, porter.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register phrase analyzer: %w", err)
	}
	termsAnalyzer := im.AnalyzerNamed(en.AnalyzerName)
	if termsAnalyzer == nil {
		return nil, fmt.Errorf("analyzer %q not registered", en.AnalyzerName)
	}
	tokensAnalyzer := im.AnalyzerNamed(phraseAnalyzerName)
	if tokensAnalyzer == nil {
		return nil, fmt.Errorf("analyzer %q not registered", phraseAnalyzerName)
	}
	return &Analyzer{terms: termsAnalyzer.Analyze, tokens: tokensAnalyzer.Analyze}, nil
}

// MustAnalyzer is NewAnalyzer for package initialisation and tests; it panics on error.
func MustAnalyzer() *Analyzer {
	a, err := NewAnalyzer()
	if err != nil {
		panic(err)
	}
	return a
}

// Terms returns the stemmed, stop-word-free terms of text in order (duplicates kept).
func (a *Analyzer) Terms(text string) []string {
	return collect(a.terms([]byte(text)))
}

// Tokens returns the stemmed tokens of text in order, stop words included.
func (a *Analyzer) Tokens(text string) []string {
	return collect(a.tokens([]byte(text)))
}

// TermSet returns the distinct terms of text.
func (a *Analyzer) TermSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range a.Terms(text) {
		set[t] = struct{}{}
	}
	return set
}

func collect(ts analysis.TokenStream) []string {
	out := make([]string, 0, len(ts))
	for _, tok := range ts {
		if len(tok.Term) == 0 {
			continue
		}
		out = append(out, string(tok.Term))
	}
	return out
}

var numberPattern = regexp.MustCompile(`\d+(?:[.,]\d+)*%?`)

// Numbers returns the numeric literals in text with thousands separators removed,
// e.g. "$1,500 and 20%" -> ["1500", "20%"].
func Numbers(text string) []string {
	matches := numberPattern.FindAllString(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		m = strings.TrimRight(m, ".,")
		out = append(out, strings.ReplaceAll(m, ",", ""))
	}
	return out
}

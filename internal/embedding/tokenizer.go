package embedding

import (
	"strings"
	"unicode"
)

const (
	tokenCLS   = 101
	tokenSEP   = 102
	vocabulary = 30000
)

// Tokenizer produces token IDs for BERT-style models (input_ids, attention_mask, token_type_ids).
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64)
}

// SimpleTokenizer lowercases, splits on non-alphanumerics and hashes words into the model
// vocabulary range. It stands in for a WordPiece vocabulary file.
type SimpleTokenizer struct{}

// Tokenize returns [CLS] words... [SEP] padded with zeros to maxTokens.
func (t *SimpleTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	if maxTokens <= 2 {
		maxTokens = 256
	}
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)

	inputIDs[0], attentionMask[0] = tokenCLS, 1
	pos := 1
	for _, word := range SplitWords(text) {
		if pos >= maxTokens-1 {
			break
		}
		inputIDs[pos] = int64(HashString(word)%(vocabulary-tokenSEP-1)) + tokenSEP + 1
		attentionMask[pos] = 1
		pos++
	}
	inputIDs[pos], attentionMask[pos] = tokenSEP, 1
	return inputIDs, attentionMask, tokenTypeIDs
}

// SplitWords lowercases text and splits it on anything that is not a letter or digit.
func SplitWords(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		return nil
	}
	return words
}

// HashString returns a deterministic non-negative hash for use as a token ID.
func HashString(s string) int {
	var h uint32 = 2166136261
	for _, c := range []byte(s) {
		h ^= uint32(c)
		h *= 16777619
	}
	return int(h & 0x7fffffff)
}

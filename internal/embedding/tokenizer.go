package embedding

import "strings"

// Token IDs follow the BERT convention: 101 opens a sequence, 102 closes
// it, and word tokens land in a fixed vocabulary range below 30000.
const (
	tokenCLS      = 101
	tokenSEP      = 102
	hashVocabSize = 30000

	defaultMaxTokens = 256
)

// Tokenizer converts text into the three parallel ID slices BERT-style
// models take as input.
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64)
}

// SimpleTokenizer hashes whitespace-separated words into token IDs. It
// stands in for a real WordPiece vocabulary: deterministic, no vocab file
// to ship, one word per token.
type SimpleTokenizer struct{}

// Tokenize produces zero-padded sequences of exactly maxTokens entries.
// Words that do not fit before the closing token are dropped.
func (t *SimpleTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)

	inputIDs[0] = tokenCLS
	attentionMask[0] = 1
	pos := 1
	for _, word := range SplitWords(text) {
		if pos >= maxTokens-1 {
			break
		}
		inputIDs[pos] = int64(HashString(word) % hashVocabSize)
		attentionMask[pos] = 1
		pos++
	}
	if pos < maxTokens {
		inputIDs[pos] = tokenSEP
		attentionMask[pos] = 1
	}
	return inputIDs, attentionMask, tokenTypeIDs
}

// SplitWords returns the words of text separated by spaces, tabs, or
// newlines. It returns nil when text contains no words.
func SplitWords(text string) []string {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n'
	})
	if len(words) == 0 {
		return nil
	}
	return words
}

// HashString returns a stable non-negative hash of s. Cached embeddings
// and the mock embedder depend on it being identical across runs, so it
// must stay a plain polynomial hash, never a seeded one.
func HashString(s string) int {
	h := 0
	for _, c := range s {
		h = 31*h + int(c)
	}
	if h < 0 {
		h = -h
	}
	return h
}

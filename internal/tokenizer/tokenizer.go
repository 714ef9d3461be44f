// Package tokenizer provides the default implementation of the Tokenizer
// collaborator the core treats as external (query text and indexed text must
// share the same tokenizer for a term's IndexKey to line up), grounded on the
// teacher's internal/store code tokenizer: regex word-splitting, lowercasing,
// and an optional stop-word filter, minus the camelCase/snake_case splitting
// that is specific to source identifiers rather than mail prose.
package tokenizer

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/tutao/search-core/internal/model"
)

var wordRegex = regexp.MustCompile(`[\p{L}\p{N}]+`)

// Tokenizer splits free text into the lowercased terms used as index keys.
type Tokenizer struct {
	minLength int
	stopWords map[string]struct{}
}

// Option configures a Tokenizer.
type Option func(*Tokenizer)

// WithMinLength drops tokens shorter than n runes. Default 1 (no filtering).
func WithMinLength(n int) Option {
	return func(t *Tokenizer) { t.minLength = n }
}

// WithStopWords filters the given words (case-insensitive) from every result.
func WithStopWords(words []string) Option {
	return func(t *Tokenizer) {
		m := make(map[string]struct{}, len(words))
		for _, w := range words {
			m[strings.ToLower(w)] = struct{}{}
		}
		t.stopWords = m
	}
}

// New builds a Tokenizer with the given options.
func New(opts ...Option) *Tokenizer {
	t := &Tokenizer{minLength: 1}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Tokenize splits text into lowercased terms, a quoted phrase's quotes
// included in the input producing the same terms as the unquoted phrase
// (quote-stripping for match-word-order detection happens in the caller).
func (t *Tokenizer) Tokenize(text string) []model.Term {
	words := wordRegex.FindAllString(text, -1)
	out := make([]model.Term, 0, len(words))
	for _, w := range words {
		lower := strings.ToLower(w)
		if utf8.RuneCountInString(lower) < t.minLength {
			continue
		}
		if _, stop := t.stopWords[lower]; stop {
			continue
		}
		out = append(out, model.Term(lower))
	}
	return out
}

package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tutao/search-core/internal/model"
)

func TestTokenize_LowercasesAndSplitsOnPunctuation(t *testing.T) {
	tok := New()
	got := tok.Tokenize("Hello, World! Invoice #42.")
	assert.Equal(t, []model.Term{"hello", "world", "invoice", "42"}, got)
}

func TestTokenize_StripsQuotesFromPhrase(t *testing.T) {
	tok := New()
	assert.Equal(t, []model.Term{"alpha", "beta"}, tok.Tokenize(`"alpha beta"`))
}

func TestTokenize_DropsTokensBelowMinLength(t *testing.T) {
	tok := New(WithMinLength(3))
	assert.Equal(t, []model.Term{"the", "cat"}, tok.Tokenize("a the cat it"))
}

func TestTokenize_FiltersStopWords(t *testing.T) {
	tok := New(WithStopWords([]string{"the", "a"}))
	assert.Equal(t, []model.Term{"quick", "fox"}, tok.Tokenize("the quick a fox"))
}

func TestTokenize_EmptyInputReturnsEmptySlice(t *testing.T) {
	tok := New()
	assert.Empty(t, tok.Tokenize("   "))
}

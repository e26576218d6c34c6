package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizeBasic(t *testing.T) {
	tokens := Tokenize("The quick brown fox jumps over the lazy dog")
	assert.Equal(t, []string{"quick", "brown", "fox", "jumps", "over", "lazy", "dog"}, tokens)
}

func TestTokenizeLowercasesAndStripsPunctuation(t *testing.T) {
	tokens := Tokenize("Hello, World! How's everything going?")
	assert.Equal(t, []string{"hello", "world", "how", "everything", "going"}, tokens)
}

func TestTokenizeDropsShortAndStopTokens(t *testing.T) {
	tokens := Tokenize("I am a big fan of Go")
	// "i", "a" are too short, "am"/"of" are stop words
	assert.Equal(t, []string{"big", "fan", "go"}, tokens)
}

func TestTokenizeEmptyAndSymbolOnly(t *testing.T) {
	assert.Empty(t, Tokenize(""))
	assert.Empty(t, Tokenize("!!! ??? ... ---"))
}

func TestTokenizeDeterministic(t *testing.T) {
	text := "Deterministic tokenization, every single time."
	assert.Equal(t, Tokenize(text), Tokenize(text))
}

func TestIsStopWord(t *testing.T) {
	assert.True(t, IsStopWord("the"))
	assert.True(t, IsStopWord("have"))
	assert.False(t, IsStopWord("fox"))
}

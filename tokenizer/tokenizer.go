// Package tokenizer normalizes raw text into the token stream used by the
// search index and the memory store's keyword layer.
package tokenizer

import (
	"strings"
	"unicode"
)

// stopWords is a minimal English list: articles, conjunctions and common
// pronouns/auxiliaries. Kept short on purpose; the index should stay
// language-agnostic beyond this.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {},
	"and": {}, "or": {}, "but": {}, "nor": {}, "so": {}, "if": {},
	"in": {}, "on": {}, "at": {}, "to": {}, "of": {}, "for": {}, "with": {},
	"it": {}, "its": {}, "he": {}, "she": {}, "they": {}, "them": {},
	"we": {}, "you": {}, "me": {}, "my": {}, "your": {}, "our": {},
	"this": {}, "that": {}, "these": {}, "those": {},
	"is": {}, "am": {}, "are": {}, "was": {}, "were": {}, "be": {},
	"been": {}, "being": {}, "do": {}, "does": {}, "did": {},
	"have": {}, "has": {}, "had": {}, "will": {}, "would": {},
	"can": {}, "could": {}, "shall": {}, "should": {}, "may": {},
	"might": {}, "must": {}, "not": {}, "no": {},
}

// Tokenize lower-cases text, replaces every non-word character with
// whitespace, splits on whitespace and drops single-character tokens and
// stop words. It is deterministic and never fails.
func Tokenize(text string) []string {
	lowered := strings.ToLower(text)

	normalized := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			return r
		}
		return ' '
	}, lowered)

	fields := strings.Fields(normalized)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) <= 1 {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// IsStopWord reports whether the (already lower-cased) token is in the
// stop-word set.
func IsStopWord(token string) bool {
	_, ok := stopWords[token]
	return ok
}

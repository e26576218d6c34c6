package search

import (
	"strings"
	"unicode/utf8"
)

// snippetWindow is the maximum snippet length in bytes.
const snippetWindow = 150

// makeSnippet centers a window on the first case-insensitive occurrence of
// the raw query text, or returns the leading window when the query is
// absent. Window edges are snapped to rune boundaries so multi-byte
// content never yields invalid UTF-8. Ellipses mark truncation at a
// non-boundary.
func makeSnippet(content, query string) string {
	if len(content) <= snippetWindow {
		return content
	}

	idx := -1
	if query != "" {
		idx = strings.Index(strings.ToLower(content), strings.ToLower(query))
	}

	if idx < 0 {
		return content[:snapToRuneStart(content, snippetWindow)] + "..."
	}

	start := idx + len(query)/2 - snippetWindow/2
	if start < 0 {
		start = 0
	}
	if start+snippetWindow > len(content) {
		start = len(content) - snippetWindow
	}
	start = snapToRuneStart(content, start)

	end := start + snippetWindow
	if end >= len(content) {
		end = len(content)
	} else {
		end = snapToRuneStart(content, end)
	}

	snippet := content[start:end]
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(content) {
		snippet += "..."
	}
	return snippet
}

// snapToRuneStart moves i backwards until it indexes the first byte of a
// rune (or 0).
func snapToRuneStart(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

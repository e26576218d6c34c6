package search

import (
	"sort"
	"strings"
	"sync"
)

const (
	maxSuggestions       = 10
	recentQueryPriority  = 100
	termPriority         = 80
	filterPriority       = 70
	commandPriority      = 60
	modelFilterPrefix    = "model:"
	commandPrefix        = "/"
	historyCapacity      = 50
	termPrefixMinimumLen = 3 // vocabulary suggestions need > 2 chars typed
)

// defaultCommands are the command completions offered for "/"-prefixed
// input. Engines can override the list.
var defaultCommands = []string{"/clear", "/export", "/help", "/settings"}

// queryHistory is a bounded most-recent-first list of distinct query texts.
type queryHistory struct {
	mu      sync.Mutex
	queries []string
}

// record moves text to the front, dropping an earlier duplicate and
// trimming to capacity.
func (h *queryHistory) record(text string) {
	if text == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]string, 0, len(h.queries)+1)
	out = append(out, text)
	for _, q := range h.queries {
		if q != text {
			out = append(out, q)
		}
	}
	if len(out) > historyCapacity {
		out = out[:historyCapacity]
	}
	h.queries = out
}

// list returns a copy in most-recent-first order.
func (h *queryHistory) list() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.queries))
	copy(out, h.queries)
	return out
}

// suggest produces the ranked top-10 query suggestions for a partial text.
func (e *Engine) suggest(text string) []Suggestion {
	var suggestions []Suggestion
	lowered := strings.ToLower(text)

	// (a) recent distinct queries containing the partial input.
	for rank, prev := range e.history.list() {
		if prev == text {
			continue
		}
		if text != "" && !strings.Contains(strings.ToLower(prev), lowered) {
			continue
		}
		suggestions = append(suggestions, Suggestion{
			Text:     prev,
			Type:     "recent",
			Priority: recentQueryPriority - rank,
		})
	}

	// (b) vocabulary token completions.
	if len(text) >= termPrefixMinimumLen {
		tokens, _ := e.index.vocabulary()
		terms := make([]string, 0)
		for token := range tokens {
			if strings.HasPrefix(token, lowered) && token != lowered {
				terms = append(terms, token)
			}
		}
		sort.Strings(terms)
		for _, term := range terms {
			suggestions = append(suggestions, Suggestion{
				Text:     term,
				Type:     "term",
				Priority: termPriority,
			})
		}
	}

	// (c) model filter completions.
	if strings.HasPrefix(lowered, modelFilterPrefix) {
		_, models := e.index.vocabulary()
		names := make([]string, 0, len(models))
		for m := range models {
			names = append(names, m)
		}
		sort.Strings(names)
		for _, m := range names {
			suggestions = append(suggestions, Suggestion{
				Text:     modelFilterPrefix + m,
				Type:     "filter",
				Priority: filterPriority,
			})
		}
	}

	// (d) command completions.
	if strings.HasPrefix(text, commandPrefix) {
		for _, cmd := range e.commands {
			if strings.HasPrefix(cmd, text) {
				suggestions = append(suggestions, Suggestion{
					Text:     cmd,
					Type:     "command",
					Priority: commandPriority,
				})
			}
		}
	}

	sort.SliceStable(suggestions, func(a, b int) bool {
		return suggestions[a].Priority > suggestions[b].Priority
	})

	if len(suggestions) > maxSuggestions {
		suggestions = suggestions[:maxSuggestions]
	}
	return suggestions
}

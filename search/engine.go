// Package search provides the conversation search index and query engine:
// tokenized entries with optional semantic vectors, multi-criteria
// filtering, composite lexical+semantic relevance scoring, faceting,
// snippets, suggestions and result export.
package search

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/recallkit/recall-go/embedding"
	"github.com/recallkit/recall-go/tokenizer"
)

// Engine answers ranked queries over an Index. Reads run concurrently;
// query history is the engine's only mutable state and is independently
// locked.
type Engine struct {
	index    *Index
	embedder embedding.Embedder // optional; enables semantic scoring
	history  *queryHistory
	commands []string
	now      func() time.Time
	logger   *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithQueryEmbedder enables the semantic scoring term for queries.
func WithQueryEmbedder(e embedding.Embedder) EngineOption {
	return func(eng *Engine) { eng.embedder = e }
}

// WithCommands overrides the command list used for "/" suggestions.
func WithCommands(commands []string) EngineOption {
	return func(eng *Engine) { eng.commands = commands }
}

// WithClock injects the time source (tests use a fixed clock).
func WithClock(now func() time.Time) EngineOption {
	return func(eng *Engine) { eng.now = now }
}

// WithEngineLogger sets the structured logger.
func WithEngineLogger(l *slog.Logger) EngineOption {
	return func(eng *Engine) { eng.logger = l }
}

// NewEngine creates a query engine over index.
func NewEngine(index *Index, opts ...EngineOption) *Engine {
	eng := &Engine{
		index:    index,
		history:  &queryHistory{},
		commands: defaultCommands,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(eng)
	}
	return eng
}

// scored pairs an entry with its computed relevance, preserving the entry's
// insertion position for stable tie-breaking.
type scored struct {
	entry      *Entry
	score      float64
	highlights []string
}

// Search runs the full query pipeline: filter, score, sort, paginate,
// snippet, suggestions, facets. Validation failures return
// ErrInvalidArgument without side effects.
func (e *Engine) Search(ctx context.Context, query Query) (*SearchResponse, error) {
	if err := query.validate(); err != nil {
		return nil, err
	}

	start := e.now()
	entries := e.index.snapshot()

	// Filter pass, independent of query text.
	filtered := make([]*Entry, 0, len(entries))
	for _, entry := range entries {
		if query.Filters.matches(entry) {
			filtered = append(filtered, entry)
		}
	}

	facets := buildFacets(filtered, e.now())

	// Scoring pass.
	hits := e.score(ctx, filtered, query.Text)

	// Stable sort keeps insertion order on ties.
	if err := sortHits(hits, query.SortBy, query.SortOrder); err != nil {
		return nil, err
	}

	totalCount := len(hits)
	page := paginate(hits, query.Offset, query.Limit)

	results := make([]SearchResult, 0, len(page))
	for _, h := range page {
		results = append(results, SearchResult{
			ID:               h.entry.ID,
			Kind:             h.entry.Kind,
			Content:          h.entry.Content,
			Snippet:          makeSnippet(h.entry.Content, query.Text),
			Score:            h.score,
			HighlightedTerms: h.highlights,
			ConversationID:   h.entry.ConversationID,
			MessageID:        h.entry.MessageID,
			Metadata:         h.entry.Metadata,
		})
	}

	suggestions := e.suggest(query.Text)
	e.history.record(query.Text)

	e.logger.Debug("search completed",
		"query_length", len(query.Text),
		"total_count", totalCount,
		"returned", len(results),
		"duration_ms", e.now().Sub(start).Milliseconds())

	return &SearchResponse{
		Results:     results,
		TotalCount:  totalCount,
		Suggestions: suggestions,
		Facets:      facets,
	}, nil
}

// score computes relevance for every filtered entry. With empty text every
// entry scores 1 and carries no highlights; otherwise entries with a final
// score of zero or less are dropped.
func (e *Engine) score(ctx context.Context, filtered []*Entry, text string) []scored {
	hits := make([]scored, 0, len(filtered))

	if text == "" {
		for _, entry := range filtered {
			hits = append(hits, scored{entry: entry, score: 1})
		}
		return hits
	}

	queryLower := strings.ToLower(text)
	queryTokens := tokenizer.Tokenize(text)

	var queryVec []float32
	if e.embedder != nil {
		v, err := e.embedder.Embed(ctx, text)
		if err != nil {
			e.logger.Warn("scoring without semantic term", "error", err)
		} else {
			queryVec = v
		}
	}

	for _, entry := range filtered {
		score, highlights := scoreEntry(entry, queryLower, queryTokens, queryVec)
		if score <= 0 {
			continue
		}
		hits = append(hits, scored{entry: entry, score: score, highlights: highlights})
	}
	return hits
}

// sortHits orders hits by the requested key. The underlying slice arrives
// in insertion order, so SliceStable preserves it on ties.
func sortHits(hits []scored, by SortBy, order SortOrder) error {
	if by == "" {
		by = SortByRelevance
	}
	if order == "" {
		order = SortDesc
	}

	var less func(a, b scored) bool
	switch by {
	case SortByRelevance:
		less = func(a, b scored) bool { return a.score < b.score }
	case SortByDate:
		less = func(a, b scored) bool { return a.entry.Metadata.Timestamp.Before(b.entry.Metadata.Timestamp) }
	case SortByTokenCount:
		less = func(a, b scored) bool { return a.entry.Metadata.TokenCount < b.entry.Metadata.TokenCount }
	case SortByLength:
		less = func(a, b scored) bool { return len(a.entry.Content) < len(b.entry.Content) }
	default:
		// validate() rejects unknown keys before we get here.
		return ErrInvalidArgument
	}

	sort.SliceStable(hits, func(a, b int) bool {
		if order == SortAsc {
			return less(hits[a], hits[b])
		}
		return less(hits[b], hits[a])
	})
	return nil
}

// paginate slices [offset, offset+limit) with bounds clamping. A zero
// limit returns no results (callers get counts and facets only).
func paginate(hits []scored, offset, limit int) []scored {
	if offset >= len(hits) {
		return nil
	}
	end := offset + limit
	if end > len(hits) {
		end = len(hits)
	}
	return hits[offset:end]
}

package search

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func newTestEngine(t *testing.T) (*Index, *Engine) {
	t.Helper()
	idx := NewIndex()
	eng := NewEngine(idx, WithClock(fixedClock))
	return idx, eng
}

func floatPtr(f float64) *float64 { return &f }
func intPtr(i int) *int           { return &i }
func timePtr(ts time.Time) *time.Time {
	return &ts
}

func TestExactPhraseBoost(t *testing.T) {
	idx, eng := newTestEngine(t)
	idx.IndexMessage(context.Background(), Message{
		ID:        "m1",
		Content:   "The quick brown fox",
		CreatedAt: testNow,
	}, "c1")

	resp, err := eng.Search(context.Background(), Query{Text: "quick brown", Limit: 10})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.GreaterOrEqual(t, resp.Results[0].Score, 100.0)
	assert.ElementsMatch(t, []string{"quick", "brown"}, resp.Results[0].HighlightedTerms)
}

func TestEmptyTextScoresOne(t *testing.T) {
	idx, eng := newTestEngine(t)
	for i := 0; i < 3; i++ {
		idx.IndexMessage(context.Background(), Message{
			ID:        fmt.Sprintf("m%d", i),
			Content:   fmt.Sprintf("entry %d", i),
			CreatedAt: testNow,
		}, "c1")
	}

	resp, err := eng.Search(context.Background(), Query{Limit: 10})
	require.NoError(t, err)
	require.Len(t, resp.Results, 3)
	for _, r := range resp.Results {
		assert.Equal(t, 1.0, r.Score)
		assert.Empty(t, r.HighlightedTerms)
	}
}

func TestAssistantAndLengthBoosts(t *testing.T) {
	idx, eng := newTestEngine(t)
	ctx := context.Background()

	idx.IndexMessage(ctx, Message{ID: "plain", Content: "answer text", Role: "user", CreatedAt: testNow}, "c1")
	idx.IndexMessage(ctx, Message{ID: "assistant", Content: "answer text", Role: "assistant", CreatedAt: testNow}, "c1")
	idx.IndexMessage(ctx, Message{ID: "long", Content: "answer text", Role: "user", TokenCount: 150, CreatedAt: testNow}, "c1")

	resp, err := eng.Search(ctx, Query{Text: "answer text", Limit: 10})
	require.NoError(t, err)
	require.Len(t, resp.Results, 3)

	scores := map[string]float64{}
	for _, r := range resp.Results {
		scores[r.ID] = r.Score
	}
	assert.InDelta(t, scores["plain"]*1.2, scores["assistant"], 1e-9)
	assert.InDelta(t, scores["plain"]*1.1, scores["long"], 1e-9)
	// Assistant boost outranks length boost; both outrank the plain hit.
	assert.Equal(t, "assistant", resp.Results[0].ID)
}

func TestNonMatchingEntriesDropped(t *testing.T) {
	idx, eng := newTestEngine(t)
	ctx := context.Background()

	idx.IndexMessage(ctx, Message{ID: "hit", Content: "contains needle here", CreatedAt: testNow}, "c1")
	idx.IndexMessage(ctx, Message{ID: "miss", Content: "completely unrelated", CreatedAt: testNow}, "c1")

	resp, err := eng.Search(ctx, Query{Text: "needle", Limit: 10})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "hit", resp.Results[0].ID)
	assert.Equal(t, 1, resp.TotalCount)
}

func TestPagination(t *testing.T) {
	idx, eng := newTestEngine(t)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		idx.IndexMessage(ctx, Message{
			ID:        fmt.Sprintf("m%02d", i),
			Content:   "shared match token",
			CreatedAt: testNow,
		}, "c1")
	}

	resp, err := eng.Search(ctx, Query{Text: "shared", Limit: 10, Offset: 20})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 5)
	assert.Equal(t, 25, resp.TotalCount)
}

func TestZeroLimitReturnsCountsOnly(t *testing.T) {
	idx, eng := newTestEngine(t)
	idx.IndexMessage(context.Background(), Message{ID: "m1", Content: "match", CreatedAt: testNow}, "c1")

	resp, err := eng.Search(context.Background(), Query{Text: "match"})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.Equal(t, 1, resp.TotalCount)
}

func TestFilterConjunction(t *testing.T) {
	idx, eng := newTestEngine(t)
	ctx := context.Background()

	old := testNow.AddDate(0, -2, 0)
	idx.IndexMessage(ctx, Message{ID: "keep", Content: "hello filtered world", Role: "assistant",
		Model: "gpt-4", Language: "en", TokenCount: 50, Sentiment: floatPtr(0.5),
		Tags: []string{"work"}, CreatedAt: testNow.AddDate(0, 0, -1)}, "c1")
	idx.IndexMessage(ctx, Message{ID: "wrong-role", Content: "hello filtered world", Role: "user",
		Model: "gpt-4", Language: "en", TokenCount: 50, Sentiment: floatPtr(0.5),
		Tags: []string{"work"}, CreatedAt: testNow.AddDate(0, 0, -1)}, "c1")
	idx.IndexMessage(ctx, Message{ID: "too-old", Content: "hello filtered world", Role: "assistant",
		Model: "gpt-4", Language: "en", TokenCount: 50, Sentiment: floatPtr(0.5),
		Tags: []string{"work"}, CreatedAt: old}, "c1")
	idx.IndexMessage(ctx, Message{ID: "wrong-model", Content: "hello filtered world", Role: "assistant",
		Model: "claude", Language: "en", TokenCount: 50, Sentiment: floatPtr(0.5),
		Tags: []string{"work"}, CreatedAt: testNow.AddDate(0, 0, -1)}, "c1")
	idx.IndexMessage(ctx, Message{ID: "negative", Content: "hello filtered world", Role: "assistant",
		Model: "gpt-4", Language: "en", TokenCount: 50, Sentiment: floatPtr(-0.5),
		Tags: []string{"work"}, CreatedAt: testNow.AddDate(0, 0, -1)}, "c1")
	idx.IndexMessage(ctx, Message{ID: "no-tags", Content: "hello filtered world", Role: "assistant",
		Model: "gpt-4", Language: "en", TokenCount: 50, Sentiment: floatPtr(0.5),
		CreatedAt: testNow.AddDate(0, 0, -1)}, "c1")

	query := Query{
		Text: "filtered",
		Filters: Filters{
			DateStart: timePtr(testNow.AddDate(0, -1, 0)),
			DateEnd:   timePtr(testNow),
			Role:      "assistant",
			Models:    []string{"gpt-4"},
			MinTokens: intPtr(10),
			MaxTokens: intPtr(100),
			Sentiment: SentimentPositive,
			Languages: []string{"en"},
			Tags:      []string{"work", "personal"},
		},
		Limit: 10,
	}

	resp, err := eng.Search(ctx, query)
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "keep", resp.Results[0].ID)
}

func TestSortByDateAndOrder(t *testing.T) {
	idx, eng := newTestEngine(t)
	ctx := context.Background()

	idx.IndexMessage(ctx, Message{ID: "older", Content: "same", CreatedAt: testNow.AddDate(0, 0, -2)}, "c1")
	idx.IndexMessage(ctx, Message{ID: "newer", Content: "same", CreatedAt: testNow.AddDate(0, 0, -1)}, "c1")

	resp, err := eng.Search(ctx, Query{SortBy: SortByDate, SortOrder: SortAsc, Limit: 10})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "older", resp.Results[0].ID)

	resp, err = eng.Search(ctx, Query{SortBy: SortByDate, SortOrder: SortDesc, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, "newer", resp.Results[0].ID)
}

func TestStableTieBreakByInsertionOrder(t *testing.T) {
	idx, eng := newTestEngine(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		idx.IndexMessage(ctx, Message{
			ID:        fmt.Sprintf("m%d", i),
			Content:   "identical",
			CreatedAt: testNow,
		}, "c1")
	}

	resp, err := eng.Search(ctx, Query{Text: "identical", Limit: 10})
	require.NoError(t, err)
	require.Len(t, resp.Results, 5)
	for i := 0; i < 5; i++ {
		assert.Equal(t, fmt.Sprintf("m%d", i), resp.Results[i].ID)
	}
}

func TestUnsupportedSortByFailsFast(t *testing.T) {
	_, eng := newTestEngine(t)
	_, err := eng.Search(context.Background(), Query{SortBy: "popularity"})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestInvalidArguments(t *testing.T) {
	_, eng := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.Search(ctx, Query{Limit: -1})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = eng.Search(ctx, Query{Offset: -5})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	start := testNow
	end := testNow.AddDate(0, 0, -1)
	_, err = eng.Search(ctx, Query{Filters: Filters{DateStart: &start, DateEnd: &end}})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = eng.Search(ctx, Query{Filters: Filters{MinTokens: intPtr(10), MaxTokens: intPtr(5)}})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestSnippetCentersOnMatch(t *testing.T) {
	idx, eng := newTestEngine(t)
	ctx := context.Background()

	long := ""
	for i := 0; i < 40; i++ {
		long += "padding words here "
	}
	long += "needle in the haystack"
	for i := 0; i < 40; i++ {
		long += " trailing filler"
	}

	idx.IndexMessage(ctx, Message{ID: "m1", Content: long, CreatedAt: testNow}, "c1")

	resp, err := eng.Search(ctx, Query{Text: "needle", Limit: 1})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)

	snippet := resp.Results[0].Snippet
	assert.LessOrEqual(t, len(snippet), snippetWindow+6) // window + two ellipses
	assert.Contains(t, snippet, "needle")
	assert.True(t, len(snippet) > 6)
}

func TestSnippetMultiByteContentStaysValidUTF8(t *testing.T) {
	content := strings.Repeat("日本語のテキスト", 30) + " needle " + strings.Repeat("日本語のテキスト", 30)

	centered := makeSnippet(content, "needle")
	assert.True(t, utf8.ValidString(centered), "centered window must not split runes: %q", centered)
	assert.Contains(t, centered, "needle")
	assert.LessOrEqual(t, len(centered), snippetWindow+6)

	leading := makeSnippet(content, "absent")
	assert.True(t, utf8.ValidString(leading), "leading window must not split runes: %q", leading)

	// A match near the very end clamps the window to the tail.
	tail := strings.Repeat("日本語のテキスト", 30) + " needle"
	end := makeSnippet(tail, "needle")
	assert.True(t, utf8.ValidString(end), "tail window must not split runes: %q", end)
	assert.Contains(t, end, "needle")
}

func TestSnippetLeadingWindowWithoutMatch(t *testing.T) {
	content := ""
	for i := 0; i < 50; i++ {
		content += "word "
	}
	s := makeSnippet(content, "absent")
	assert.Equal(t, content[:snippetWindow]+"...", s)

	short := "short content"
	assert.Equal(t, short, makeSnippet(short, "absent"))
}

func TestSuggestionsRankedSources(t *testing.T) {
	idx := NewIndex()
	eng := NewEngine(idx, WithClock(fixedClock))
	ctx := context.Background()

	idx.IndexMessage(ctx, Message{ID: "m1", Content: "kubernetes deployment guide", Model: "gpt-4", CreatedAt: testNow}, "c1")
	idx.IndexMessage(ctx, Message{ID: "m2", Content: "kubernetes networking", Model: "claude-3", CreatedAt: testNow}, "c1")

	// Seed history.
	_, err := eng.Search(ctx, Query{Text: "kubernetes deployment", Limit: 1})
	require.NoError(t, err)

	resp, err := eng.Search(ctx, Query{Text: "kub", Limit: 1})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Suggestions)

	// Recent query containing "kub" ranks first at priority 100.
	assert.Equal(t, "kubernetes deployment", resp.Suggestions[0].Text)
	assert.Equal(t, 100, resp.Suggestions[0].Priority)

	// Vocabulary completion present at priority 80.
	var sawTerm bool
	for _, s := range resp.Suggestions {
		if s.Type == "term" && s.Text == "kubernetes" {
			sawTerm = true
			assert.Equal(t, 80, s.Priority)
		}
	}
	assert.True(t, sawTerm)
}

func TestSuggestionsModelFilterAndCommands(t *testing.T) {
	idx := NewIndex()
	eng := NewEngine(idx, WithClock(fixedClock))
	ctx := context.Background()

	idx.IndexMessage(ctx, Message{ID: "m1", Content: "hello", Model: "gpt-4", CreatedAt: testNow}, "c1")

	resp, err := eng.Search(ctx, Query{Text: "model:", Limit: 1})
	require.NoError(t, err)
	var sawFilter bool
	for _, s := range resp.Suggestions {
		if s.Type == "filter" {
			sawFilter = true
			assert.Equal(t, "model:gpt-4", s.Text)
			assert.Equal(t, 70, s.Priority)
		}
	}
	assert.True(t, sawFilter)

	resp, err = eng.Search(ctx, Query{Text: "/ex", Limit: 1})
	require.NoError(t, err)
	var sawCommand bool
	for _, s := range resp.Suggestions {
		if s.Type == "command" {
			sawCommand = true
			assert.Equal(t, "/export", s.Text)
			assert.Equal(t, 60, s.Priority)
		}
	}
	assert.True(t, sawCommand)
}

func TestSuggestionsCappedAtTen(t *testing.T) {
	idx := NewIndex()
	eng := NewEngine(idx, WithClock(fixedClock))
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		idx.IndexMessage(ctx, Message{
			ID:        fmt.Sprintf("m%d", i),
			Content:   fmt.Sprintf("prefixterm%02d body", i),
			CreatedAt: testNow,
		}, "c1")
	}

	resp, err := eng.Search(ctx, Query{Text: "prefixterm", Limit: 1})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(resp.Suggestions), 10)
}

func TestFacets(t *testing.T) {
	idx, eng := newTestEngine(t)
	ctx := context.Background()

	idx.IndexMessage(ctx, Message{ID: "m1", Content: "a1", Role: "user", Model: "gpt-4", Language: "en", CreatedAt: testNow}, "c1")
	idx.IndexMessage(ctx, Message{ID: "m2", Content: "a2", Role: "assistant", Model: "gpt-4", Language: "en", CreatedAt: testNow.AddDate(0, 0, -1)}, "c1")
	idx.IndexMessage(ctx, Message{ID: "m3", Content: "a3", Role: "assistant", Model: "claude-3", Language: "de", CreatedAt: testNow.AddDate(0, 0, -5)}, "c1")
	idx.IndexMessage(ctx, Message{ID: "m4", Content: "a4", Role: "user", Model: "gpt-4", Language: "en", CreatedAt: testNow.AddDate(-2, 0, 0)}, "c1")

	resp, err := eng.Search(ctx, Query{Limit: 10})
	require.NoError(t, err)

	assert.Equal(t, 3, resp.Facets.Models["gpt-4"])
	assert.Equal(t, 1, resp.Facets.Models["claude-3"])
	assert.Equal(t, 3, resp.Facets.Languages["en"])
	assert.Equal(t, 2, resp.Facets.Roles["assistant"])
	assert.Equal(t, 1, resp.Facets.Recency["today"])
	assert.Equal(t, 1, resp.Facets.Recency["yesterday"])
	assert.Equal(t, 1, resp.Facets.Recency["this week"])
	assert.Equal(t, 1, resp.Facets.Recency["older"])
}

func TestRecencyBucketFutureTimestamp(t *testing.T) {
	assert.Equal(t, recencyToday, recencyBucket(testNow, testNow.Add(6*time.Hour)))
	assert.Equal(t, recencyToday, recencyBucket(testNow, testNow))
}

func TestFacetsComputedOverFilteredNotScored(t *testing.T) {
	idx, eng := newTestEngine(t)
	ctx := context.Background()

	// Passes the filter but will not match the text.
	idx.IndexMessage(ctx, Message{ID: "m1", Content: "unrelated", Role: "user", Model: "gpt-4", CreatedAt: testNow}, "c1")
	idx.IndexMessage(ctx, Message{ID: "m2", Content: "needle", Role: "user", Model: "gpt-4", CreatedAt: testNow}, "c1")

	resp, err := eng.Search(ctx, Query{Text: "needle", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.TotalCount)
	assert.Equal(t, 2, resp.Facets.Models["gpt-4"])
}

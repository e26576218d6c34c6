package search

import (
	"errors"
	"time"
)

// ErrInvalidArgument is returned when a query violates the caller contract:
// an unsupported sort key, a negative limit/offset, or an inverted filter
// range. Validation failures never partially mutate engine state.
var ErrInvalidArgument = errors.New("search: invalid argument")

// Kind tags an index entry as conversation-level or message-level. The two
// id namespaces share one index and are distinguished by this tag.
type Kind string

const (
	KindConversation Kind = "conversation"
	KindMessage      Kind = "message"
)

// Metadata carries the optional attributes of an indexed unit. Zero values
// mean "not set" except Sentiment, which uses a pointer so that a 0.0 score
// (neutral) is distinguishable from absent.
type Metadata struct {
	Timestamp  time.Time
	Role       string
	Model      string
	TokenCount int
	Language   string
	Sentiment  *float64 // in [-1, 1]
	Tags       []string
}

// Conversation is the conversation-level input to the index.
type Conversation struct {
	ID        string
	Title     string
	Model     string
	Tags      []string
	CreatedAt time.Time
}

// Message is the message-level input to the index.
type Message struct {
	ID         string
	Role       string
	Content    string
	Model      string
	TokenCount int
	Language   string
	Sentiment  *float64
	Tags       []string
	CreatedAt  time.Time
}

// Entry is one indexed unit. Tokens are always recomputed when content
// changes; an entry with non-empty content and no token pass is invalid and
// never stored.
type Entry struct {
	ID             string
	Kind           Kind
	ConversationID string
	MessageID      string
	Content        string
	Tokens         []string
	Metadata       Metadata
	Vector         []float32
}

// SortBy selects the ranking attribute of a query.
type SortBy string

const (
	SortByRelevance  SortBy = "relevance"
	SortByDate       SortBy = "date"
	SortByTokenCount SortBy = "tokenCount"
	SortByLength     SortBy = "length"
)

// SortOrder selects ascending or descending result order.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// SentimentClass buckets sentiment scores via thresholds at ±0.1.
type SentimentClass string

const (
	SentimentPositive SentimentClass = "positive"
	SentimentNegative SentimentClass = "negative"
	SentimentNeutral  SentimentClass = "neutral"
)

// Filters are AND-composed predicates applied before scoring. All fields
// are optional and independently combinable.
type Filters struct {
	DateStart *time.Time
	DateEnd   *time.Time
	Role      string
	Models    []string
	MinTokens *int
	MaxTokens *int
	MinLength *int
	MaxLength *int
	Sentiment SentimentClass
	Languages []string
	Tags      []string // non-empty overlap required
}

// Query describes one search invocation. An empty Text with
// SortByRelevance degenerates to "all filtered entries, score 1".
type Query struct {
	Text      string
	Filters   Filters
	SortBy    SortBy    // empty means relevance
	SortOrder SortOrder // empty means desc
	Limit     int
	Offset    int
}

// SearchResult is one ranked hit.
type SearchResult struct {
	ID               string
	Kind             Kind
	Content          string
	Snippet          string
	Score            float64
	HighlightedTerms []string
	ConversationID   string
	MessageID        string
	Metadata         Metadata
}

// Suggestion is one ranked query completion.
type Suggestion struct {
	Text     string
	Type     string // "recent", "term", "filter", "command"
	Priority int
}

// Facets are frequency breakdowns over the filtered (pre-scoring) set.
type Facets struct {
	Models    map[string]int
	Languages map[string]int
	Roles     map[string]int
	Recency   map[string]int
}

// SearchResponse is the full result of Engine.Search.
type SearchResponse struct {
	Results     []SearchResult
	TotalCount  int
	Suggestions []Suggestion
	Facets      Facets
}

// classifySentiment maps a score in [-1, 1] to its class.
func classifySentiment(score float64) SentimentClass {
	switch {
	case score > 0.1:
		return SentimentPositive
	case score < -0.1:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

package search

import "fmt"

// validate checks the caller contract before any work happens.
func (q *Query) validate() error {
	switch q.SortBy {
	case "", SortByRelevance, SortByDate, SortByTokenCount, SortByLength:
	default:
		return fmt.Errorf("%w: unsupported sortBy %q", ErrInvalidArgument, q.SortBy)
	}

	switch q.SortOrder {
	case "", SortAsc, SortDesc:
	default:
		return fmt.Errorf("%w: unsupported sortOrder %q", ErrInvalidArgument, q.SortOrder)
	}

	if q.Limit < 0 {
		return fmt.Errorf("%w: negative limit %d", ErrInvalidArgument, q.Limit)
	}
	if q.Offset < 0 {
		return fmt.Errorf("%w: negative offset %d", ErrInvalidArgument, q.Offset)
	}

	f := q.Filters
	if f.DateStart != nil && f.DateEnd != nil && f.DateStart.After(*f.DateEnd) {
		return fmt.Errorf("%w: date range start after end", ErrInvalidArgument)
	}
	if f.MinTokens != nil && f.MaxTokens != nil && *f.MinTokens > *f.MaxTokens {
		return fmt.Errorf("%w: token range start after end", ErrInvalidArgument)
	}
	if f.MinLength != nil && f.MaxLength != nil && *f.MinLength > *f.MaxLength {
		return fmt.Errorf("%w: length range start after end", ErrInvalidArgument)
	}

	switch f.Sentiment {
	case "", SentimentPositive, SentimentNegative, SentimentNeutral:
	default:
		return fmt.Errorf("%w: unsupported sentiment class %q", ErrInvalidArgument, f.Sentiment)
	}

	return nil
}

// matches evaluates every active predicate against entry; all must pass.
// The filter pass is independent of the query text.
func (f *Filters) matches(entry *Entry) bool {
	md := entry.Metadata

	if f.DateStart != nil && md.Timestamp.Before(*f.DateStart) {
		return false
	}
	if f.DateEnd != nil && md.Timestamp.After(*f.DateEnd) {
		return false
	}

	if f.Role != "" && md.Role != f.Role {
		return false
	}

	if len(f.Models) > 0 && !containsString(f.Models, md.Model) {
		return false
	}

	if f.MinTokens != nil && md.TokenCount < *f.MinTokens {
		return false
	}
	if f.MaxTokens != nil && md.TokenCount > *f.MaxTokens {
		return false
	}

	if f.MinLength != nil && len(entry.Content) < *f.MinLength {
		return false
	}
	if f.MaxLength != nil && len(entry.Content) > *f.MaxLength {
		return false
	}

	if f.Sentiment != "" {
		if md.Sentiment == nil || classifySentiment(*md.Sentiment) != f.Sentiment {
			return false
		}
	}

	if len(f.Languages) > 0 && !containsString(f.Languages, md.Language) {
		return false
	}

	if len(f.Tags) > 0 && !hasTagOverlap(f.Tags, md.Tags) {
		return false
	}

	return true
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// hasTagOverlap reports whether the two tag sets intersect.
func hasTagOverlap(want, have []string) bool {
	if len(have) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(have))
	for _, t := range have {
		set[t] = struct{}{}
	}
	for _, t := range want {
		if _, ok := set[t]; ok {
			return true
		}
	}
	return false
}

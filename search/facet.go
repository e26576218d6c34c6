package search

import "time"

// Recency bucket labels, computed from now − timestamp in whole days.
const (
	recencyToday     = "today"     // 0 days
	recencyYesterday = "yesterday" // 1 day
	recencyThisWeek  = "this week" // ≤ 7 days
	recencyThisMonth = "this month" // ≤ 30 days
	recencyThisYear  = "this year" // ≤ 365 days
	recencyOlder     = "older"
)

// buildFacets produces frequency counts over the filtered (pre-scoring)
// entry set.
func buildFacets(entries []*Entry, now time.Time) Facets {
	f := Facets{
		Models:    make(map[string]int),
		Languages: make(map[string]int),
		Roles:     make(map[string]int),
		Recency:   make(map[string]int),
	}

	for _, entry := range entries {
		md := entry.Metadata
		if md.Model != "" {
			f.Models[md.Model]++
		}
		if md.Language != "" {
			f.Languages[md.Language]++
		}
		if md.Role != "" {
			f.Roles[md.Role]++
		}
		f.Recency[recencyBucket(now, md.Timestamp)]++
	}
	return f
}

func recencyBucket(now, ts time.Time) string {
	days := int(now.Sub(ts).Hours() / 24)
	switch {
	case days <= 0:
		// Future-dated timestamps (clock skew) count as today.
		return recencyToday
	case days == 1:
		return recencyYesterday
	case days <= 7:
		return recencyThisWeek
	case days <= 30:
		return recencyThisMonth
	case days <= 365:
		return recencyThisYear
	default:
		return recencyOlder
	}
}

package search

import (
	"strings"

	"github.com/recallkit/recall-go/vec"
)

// Scoring weights. These are compatibility constants: ranking parity with
// existing deployments depends on them, so retune deliberately or not at
// all.
const (
	phraseMatchScore    = 100.0 // exact phrase dominates everything else
	tokenMatchScore     = 10.0  // per matching entry token, per query token
	semanticScoreWeight = 50.0  // cosine similarity multiplier
	assistantBoost      = 1.2   // assistant answers favored
	longResponseBoost   = 1.1   // token-count metadata > 100
	longResponseTokens  = 100
)

// scoreEntry computes the composite relevance of entry for the query.
// queryLower is the lower-cased raw query text, queryTokens its normalized
// tokens and queryVec the optional query embedding. The returned highlights
// are the distinct query tokens that matched at least one entry token.
func scoreEntry(entry *Entry, queryLower string, queryTokens []string, queryVec []float32) (float64, []string) {
	score := 0.0

	if strings.Contains(strings.ToLower(entry.Content), queryLower) {
		score += phraseMatchScore
	}

	var highlights []string
	for _, qt := range queryTokens {
		matched := 0
		for _, t := range entry.Tokens {
			if strings.Contains(t, qt) {
				matched++
			}
		}
		if matched > 0 {
			score += tokenMatchScore * float64(matched)
			highlights = append(highlights, qt)
		}
	}

	if len(entry.Vector) > 0 && len(queryVec) > 0 {
		score += vec.Cosine(entry.Vector, queryVec) * semanticScoreWeight
	}

	if entry.Metadata.Role == "assistant" {
		score *= assistantBoost
	}
	if entry.Metadata.TokenCount > longResponseTokens {
		score *= longResponseBoost
	}

	return score, highlights
}

package memory

import (
	"math"
	"strings"
	"time"
)

const (
	// decayHalfLifeDays is the time constant of the exponential curve.
	decayHalfLifeDays = 30.0
	// linearWindowDays is the full retention window of the linear curve.
	linearWindowDays = 365.0
)

// daysSince returns the (fractional) days elapsed from t to now.
// Negative values are possible when t is in the future; the formulas
// tolerate that and simply produce retention above 1.
func daysSince(now, t time.Time) float64 {
	return now.Sub(t).Hours() / 24
}

// queryRelevance scores a record against a query vector match for
// ranking, blending the raw similarity with recency of access,
// importance and an access-frequency bonus.
//
//	base * exp(-days/30) * (0.5 + 0.5*importance) + min(accessCount/10, 1) * 0.2
func queryRelevance(base float64, r *Record, now time.Time) float64 {
	days := daysSince(now, r.LastAccessedAt)
	decayed := base * math.Exp(-days/decayHalfLifeDays) * (0.5 + 0.5*r.Importance)
	frequency := math.Min(float64(r.AccessCount)/10, 1.0) * 0.2
	return decayed + frequency
}

// retention computes the forgetting-curve retention value of a record;
// it decides survival during ApplyForgettingCurve.
func retention(curve Curve, r *Record, now time.Time) float64 {
	days := daysSince(now, r.LastAccessedAt)
	switch curve {
	case CurveLinear:
		return math.Max(0, 1-days/linearWindowDays)
	case CurveCustom:
		return r.Importance*(1-days/linearWindowDays) + math.Min(float64(r.AccessCount)/100, 0.5)
	default: // exponential
		return math.Exp(-days / decayHalfLifeDays)
	}
}

// shouldRetain reports whether a record survives a forgetting pass.
// Records past their explicit expiry never survive, regardless of the
// curve or overrides.
func shouldRetain(cfg Config, r *Record, now time.Time) bool {
	if r.ExpiresAt != nil && !r.ExpiresAt.After(now) {
		return false
	}
	if retention(cfg.ForgettingCurve, r, now) > 0.1 {
		return true
	}
	if r.Importance > 0.8 {
		return true
	}
	return r.AccessCount > 10
}

// retentionPriority orders records when enforcing the capacity bound:
// higher values are kept.
//
//	0.6*importance + 0.4*(accessCount/100)
func retentionPriority(r *Record) float64 {
	return 0.6*r.Importance + 0.4*(float64(r.AccessCount)/100)
}

// explicitCues mark content the author asked to keep.
var explicitCues = []string{"remember", "important"}

// longContentChars is the length past which content earns an
// importance nudge.
const longContentChars = 200

// inferImportance derives an importance score from the record type and
// content cues when the caller does not supply one.
func inferImportance(t Type, content string) float64 {
	score := defaultImportance[t]
	lower := strings.ToLower(content)
	for _, cue := range explicitCues {
		if strings.Contains(lower, cue) {
			score += 0.1
			break
		}
	}
	if len(content) > longContentChars {
		score += 0.05
	}
	return math.Min(score, 1.0)
}

// Package memory provides the decaying long-term memory store: records
// scored by importance, keyed by semantic similarity, subject to a
// configurable forgetting curve, consolidation of near-duplicates and a
// hard per-owner capacity.
//
// Architecture:
//   - Store: per-owner mutable aggregates (single writer, many readers)
//   - Embedder: text-to-vector conversion, injected (see package embedding)
//   - RecordStore: durable snapshot persistence, injected (in-memory,
//     sqlite and postgres implementations provided)
//   - VectorIndex: optional similarity-candidate acceleration (chromem)
//
// Decay and retention formulas are compatibility contracts: they decide
// what survives maintenance, so they must not drift between releases.
package memory

import (
	"errors"
	"time"
)

// ErrNotFound is returned by operations that require their target to
// exist. Lookups where absence is a valid outcome return nil instead.
var ErrNotFound = errors.New("memory: record not found")

// ErrInvalidArgument is returned for caller contract violations. Failed
// validation never partially mutates owner state.
var ErrInvalidArgument = errors.New("memory: invalid argument")

// Type classifies what a memory captures.
type Type string

const (
	TypePersonal   Type = "personal"
	TypeFactual    Type = "factual"
	TypeProcedural Type = "procedural"
	TypeEpisodic   Type = "episodic"
	TypeSemantic   Type = "semantic"
)

// defaultImportance maps each memory type to its base importance.
var defaultImportance = map[Type]float64{
	TypePersonal:   0.8,
	TypeFactual:    0.6,
	TypeProcedural: 0.7,
	TypeEpisodic:   0.5,
	TypeSemantic:   0.6,
}

// validType reports whether t is a known memory type.
func validType(t Type) bool {
	_, ok := defaultImportance[t]
	return ok
}

// RecordMetadata carries provenance and consolidation back-references.
// RelatedMemoryIDs are non-owning and may reference now-absent records;
// callers must handle missing lookups gracefully.
type RecordMetadata struct {
	Source           string   `json:"source,omitempty"`
	Confidence       float64  `json:"confidence,omitempty"`
	Verified         bool     `json:"verified,omitempty"`
	RelatedMemoryIDs []string `json:"relatedMemoryIds,omitempty"`
	Context          string   `json:"context,omitempty"`
}

// Record is one memory, scoped to an owner. The embedding is always
// regenerated when content changes.
type Record struct {
	ID             string         `json:"id"`
	Content        string         `json:"content"`
	Type           Type           `json:"type"`
	Importance     float64        `json:"importance"`
	AccessCount    int            `json:"accessCount"`
	LastAccessedAt time.Time      `json:"lastAccessedAt"`
	CreatedAt      time.Time      `json:"createdAt"`
	ExpiresAt      *time.Time     `json:"expiresAt,omitempty"`
	Tags           []string       `json:"tags,omitempty"`
	Embedding      []float32      `json:"embedding,omitempty"`
	Metadata       RecordMetadata `json:"metadata"`
}

// clone returns a deep copy so callers never share slices with the store.
func (r *Record) clone() *Record {
	out := *r
	if r.ExpiresAt != nil {
		t := *r.ExpiresAt
		out.ExpiresAt = &t
	}
	out.Tags = append([]string(nil), r.Tags...)
	out.Embedding = append([]float32(nil), r.Embedding...)
	out.Metadata.RelatedMemoryIDs = append([]string(nil), r.Metadata.RelatedMemoryIDs...)
	return &out
}

// Curve selects the retention formula used during maintenance.
type Curve string

const (
	CurveExponential Curve = "exponential"
	CurveLinear      Curve = "linear"
	CurveCustom      Curve = "custom"
)

// Config controls per-owner retention behavior.
type Config struct {
	MaxMemories         int     `json:"maxMemories"`
	RetentionDays       int     `json:"retentionDays"`
	ImportanceThreshold float64 `json:"importanceThreshold"`
	ForgettingCurve     Curve   `json:"forgettingCurve"`
	AutoForget          bool    `json:"autoForget"`
}

// DefaultConfig returns the configuration applied to owners on first use.
func DefaultConfig() Config {
	return Config{
		MaxMemories:         1000,
		RetentionDays:       365,
		ImportanceThreshold: 0.3,
		ForgettingCurve:     CurveExponential,
		AutoForget:          false,
	}
}

// validate checks a config before it is applied to an owner.
func (c Config) validate() error {
	if c.MaxMemories <= 0 {
		return ErrInvalidArgument
	}
	if c.RetentionDays <= 0 {
		return ErrInvalidArgument
	}
	if c.ImportanceThreshold < 0 || c.ImportanceThreshold > 1 {
		return ErrInvalidArgument
	}
	switch c.ForgettingCurve {
	case CurveExponential, CurveLinear, CurveCustom:
	default:
		return ErrInvalidArgument
	}
	return nil
}

// Stats aggregates an owner's memory collection.
type Stats struct {
	TotalCount         int          `json:"totalCount"`
	CountsByType       map[Type]int `json:"countsByType"`
	AverageImportance  float64      `json:"averageImportance"`
	EstimatedSizeBytes int64        `json:"estimatedSizeBytes"`
}

// computeStats rebuilds the aggregate from a record collection.
func computeStats(records []*Record) Stats {
	stats := Stats{
		TotalCount:   len(records),
		CountsByType: make(map[Type]int),
	}

	var totalImportance float64
	for _, r := range records {
		stats.CountsByType[r.Type]++
		totalImportance += r.Importance
		stats.EstimatedSizeBytes += int64(len(r.Content)) + int64(4*len(r.Embedding))
		for _, tag := range r.Tags {
			stats.EstimatedSizeBytes += int64(len(tag))
		}
	}
	if len(records) > 0 {
		stats.AverageImportance = totalImportance / float64(len(records))
	}
	return stats
}

package memory

import "context"

// VectorMatch is a candidate returned by a VectorIndex query. Similarity
// is the index's own estimate; the store always re-ranks candidates with
// exact cosine similarity and the decay adjustment, so the index only
// needs to be approximately right about ordering.
type VectorMatch struct {
	ID         string
	Similarity float64
}

// VectorIndex accelerates similarity search over an owner's embeddings.
// It is strictly optional: without one the store scans every record.
// Implementations must tolerate Remove/Clear for unknown ids and owners.
type VectorIndex interface {
	Upsert(ctx context.Context, owner string, record *Record) error
	Remove(ctx context.Context, owner, id string) error
	Clear(ctx context.Context, owner string) error
	Query(ctx context.Context, owner string, embedding []float32, limit int) ([]VectorMatch, error)
}

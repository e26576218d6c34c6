// Package mock provides a deterministic hash-based Embedder for tests and
// local development. It carries no semantic signal beyond "identical text
// yields identical vectors", which is exactly what deterministic tests need.
package mock

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/recallkit/recall-go/embedding"
	"github.com/recallkit/recall-go/vec"
)

// Embedder generates deterministic embeddings from a text hash.
type Embedder struct {
	dimensions int
}

// New creates a mock embedder with the SDK default dimensions.
func New() *Embedder {
	return NewWithDimensions(embedding.Dimensions)
}

// NewWithDimensions creates a mock embedder producing vectors of size dims.
func NewWithDimensions(dims int) *Embedder {
	return &Embedder{dimensions: dims}
}

// Embed creates a deterministic unit vector from the FNV-1a hash of text,
// expanded with a linear congruential generator.
func (m *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	out := make([]float32, m.dimensions)
	for i := 0; i < m.dimensions; i++ {
		seed = seed*6364136223846793005 + 1442695040888963407
		out[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}

	return vec.Normalize(out), nil
}

// Dimensions returns the embedding size.
func (m *Embedder) Dimensions() int {
	return m.dimensions
}

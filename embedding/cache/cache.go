// Package cache wraps an Embedder with a ristretto cache keyed by the input
// text. Embedders are required to be deterministic within a process
// lifetime, so a hit is always equivalent to a recompute.
package cache

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"

	"github.com/recallkit/recall-go/embedding"
)

// Config controls cache sizing.
type Config struct {
	// MaxEntries is the approximate number of embeddings to keep.
	// Default: 10000.
	MaxEntries int64
}

// Embedder is a caching decorator over another Embedder.
type Embedder struct {
	inner embedding.Embedder
	cache *ristretto.Cache
}

// New wraps inner with an embedding cache.
func New(inner embedding.Embedder, cfg *Config) (*Embedder, error) {
	maxEntries := int64(10000)
	if cfg != nil && cfg.MaxEntries > 0 {
		maxEntries = cfg.MaxEntries
	}

	// Cost 1 per entry; counters sized at 10x capacity per ristretto docs.
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}

	return &Embedder{inner: inner, cache: cache}, nil
}

// Embed returns the cached vector for text, computing and storing it on a
// miss. The returned slice is shared with the cache and must not be
// mutated by callers.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.cache.Get(text); ok {
		if emb, ok := v.([]float32); ok {
			return emb, nil
		}
	}

	emb, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	e.cache.Set(text, emb, 1)
	return emb, nil
}

// Dimensions returns the wrapped embedder's dimensions.
func (e *Embedder) Dimensions() int {
	return e.inner.Dimensions()
}

// Wait blocks until pending cache writes are applied. Tests use this to
// make hits observable immediately after a Set.
func (e *Embedder) Wait() {
	e.cache.Wait()
}

// Close releases cache resources.
func (e *Embedder) Close() {
	e.cache.Close()
}

// Package embedding defines the pluggable text-to-vector contract shared by
// the search index and the memory store.
//
// Callers depend on three properties of an Embedder:
//   - stable output for identical input within a process lifetime
//   - cosine similarity between outputs correlating with textual similarity
//   - vectors being L2-normalizable (zero vectors map to themselves)
//
// Implementations:
//   - mock: deterministic hash-based vectors (tests, local development)
//   - cache: ristretto decorator over any Embedder
//   - openai: API-based production embedder
//   - onnx: local MiniLM model behind the "onnx" build tag
package embedding

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Dimensions is the default embedding size used across the SDK
// (all-MiniLM-L6-v2 compatible).
const Dimensions = 384

// Embedder converts text to a fixed-dimension vector.
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}

// BatchEmbed embeds texts concurrently, preserving input order. Concurrency
// is bounded to keep API-backed embedders from being overwhelmed; a limit
// of 0 or less falls back to 3.
func BatchEmbed(ctx context.Context, e Embedder, texts []string, limit int) ([][]float32, error) {
	if limit <= 0 {
		limit = 3
	}

	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, text := range texts {
		i, text := i, text
		g.Go(func() error {
			emb, err := e.Embed(gctx, text)
			if err != nil {
				return fmt.Errorf("embed text %d: %w", i, err)
			}
			out[i] = emb
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

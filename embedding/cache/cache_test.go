package cache

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recallkit/recall-go/embedding/mock"
)

// countingEmbedder counts how often the inner embedder is actually hit.
type countingEmbedder struct {
	inner *mock.Embedder
	calls atomic.Int64
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	return c.inner.Embed(ctx, text)
}

func (c *countingEmbedder) Dimensions() int { return c.inner.Dimensions() }

func TestCacheHitSkipsInnerEmbedder(t *testing.T) {
	counting := &countingEmbedder{inner: mock.NewWithDimensions(16)}
	cached, err := New(counting, nil)
	require.NoError(t, err)
	defer cached.Close()

	ctx := context.Background()
	first, err := cached.Embed(ctx, "repeated text")
	require.NoError(t, err)
	cached.Wait()

	second, err := cached.Embed(ctx, "repeated text")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), counting.calls.Load())
}

func TestCacheMissesForDistinctTexts(t *testing.T) {
	counting := &countingEmbedder{inner: mock.NewWithDimensions(16)}
	cached, err := New(counting, &Config{MaxEntries: 100})
	require.NoError(t, err)
	defer cached.Close()

	ctx := context.Background()
	_, err = cached.Embed(ctx, "one")
	require.NoError(t, err)
	_, err = cached.Embed(ctx, "two")
	require.NoError(t, err)

	assert.Equal(t, int64(2), counting.calls.Load())
}

func TestDimensionsPassThrough(t *testing.T) {
	cached, err := New(mock.NewWithDimensions(48), nil)
	require.NoError(t, err)
	defer cached.Close()
	assert.Equal(t, 48, cached.Dimensions())
}

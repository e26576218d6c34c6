package mock

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedDeterministic(t *testing.T) {
	e := New()
	a, err := e.Embed(context.Background(), "the same text")
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), "the same text")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEmbedDistinctTexts(t *testing.T) {
	e := New()
	a, _ := e.Embed(context.Background(), "first")
	b, _ := e.Embed(context.Background(), "second")
	assert.NotEqual(t, a, b)
}

func TestEmbedUnitLength(t *testing.T) {
	e := NewWithDimensions(32)
	v, err := e.Embed(context.Background(), "normalize me")
	require.NoError(t, err)
	require.Len(t, v, 32)

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
}

func TestDimensions(t *testing.T) {
	assert.Equal(t, 384, New().Dimensions())
	assert.Equal(t, 16, NewWithDimensions(16).Dimensions())
}

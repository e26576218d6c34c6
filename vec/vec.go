// Package vec holds the small amount of vector math shared by the search
// index and the memory store. All similarity in this SDK is cosine.
package vec

import "math"

// Cosine computes cosine similarity between two vectors: the dot product
// divided by the product of the magnitudes. Mismatched lengths, empty or
// zero-magnitude inputs yield 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Dot computes the dot product of two equal-length vectors.
func Dot(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// Normalize returns a unit-length copy of vec. Zero vectors are returned
// as-is so they stay comparable without dividing by zero.
func Normalize(v []float32) []float32 {
	var norm float32
	for _, x := range v {
		norm += x * x
	}

	if norm == 0 {
		return v
	}

	norm = float32(math.Sqrt(float64(norm)))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

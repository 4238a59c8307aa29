// Package vector provides similarity scoring over embedding vectors.
package vector

import "math"

// Cosine returns the cosine of the angle between a and b in [-1, 1].
// Both vectors must have the same length; the callers always generate
// embeddings at the configured dimensionality. If either vector is the
// zero vector the result is 0, not NaN.
func Cosine(a, b []float32) float64 {
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

// Package similarity implements the cosine-similarity scoring and threshold
// decision used by the verification engine. All persisted or compared
// embeddings are L2-normalized, so inner product and cosine similarity agree.
package similarity

import (
	"errors"
	"math"
)

// ErrZeroVector is returned when a vector with zero Euclidean norm is
// normalized. Zero vectors cannot represent a face and are rejected rather
// than silently passed through.
var ErrZeroVector = errors.New("embedding has zero norm")

// Cosine computes the cosine similarity between two vectors.
// Returns a value between -1 and 1, where 1 means identical.
// Returns exactly 0 when either vector has zero norm or the inputs are
// mismatched; never an error, never NaN.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp to [-1, 1] to handle floating point errors
	if sim > 1 {
		sim = 1
	}
	if sim < -1 {
		sim = -1
	}
	return sim
}

// Normalize returns a unit-norm copy of v. Normalizing an already
// normalized vector is safe and idempotent. A zero-norm input returns
// ErrZeroVector.
func Normalize(v []float32) ([]float32, error) {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return nil, ErrZeroVector
	}
	norm = math.Sqrt(norm)

	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out, nil
}

// Decide reports whether a similarity score passes the threshold.
// Ties go to acceptance.
func Decide(sim, threshold float64) bool {
	return sim >= threshold
}

package domain

import "math"

// DegenerateThreshold is the magnitude below which every component of a vector
// must fall for the vector to be considered degenerate (broken inference output
// rather than a genuine corpus point).
const DegenerateThreshold = 0.01

// Vector is a fixed-length dense embedding in a model-specific space.
type Vector []float32

// Dims returns the vector dimensionality.
func (v Vector) Dims() int { return len(v) }

// IsDegenerate reports whether every component is near zero.
func (v Vector) IsDegenerate() bool {
	for _, x := range v {
		if math.Abs(float64(x)) >= DegenerateThreshold {
			return false
		}
	}
	return true
}

// Cosine computes cosine similarity between two vectors of equal length.
// A zero norm on either side yields 0, never NaN.
func Cosine(a, b Vector) (float64, error) {
	if len(a) != len(b) {
		return 0, NewDimMismatch(len(a), len(b))
	}
	return cosine(a, b), nil
}

// CosineTruncated computes cosine similarity over the common prefix of two
// vectors. The truncated flag reports whether any components were discarded;
// callers must treat truncated scores as precision-losing.
func CosineTruncated(a, b Vector) (score float64, truncated bool) {
	if len(a) != len(b) {
		n := min(len(a), len(b))
		return cosine(a[:n], b[:n]), true
	}
	return cosine(a, b), false
}

func cosine(a, b Vector) float64 {
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

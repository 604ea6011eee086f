package embed

import (
	"fmt"
	"math"
)

// CosineSimilarity returns the cosine of the angle between a and b, in [-1, 1].
// Vectors must have the same, non-zero length. A zero-magnitude vector has
// similarity 0 with everything.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, ErrEmptyVector
	}
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(a), len(b))
	}

	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}

	sim := dot / math.Sqrt(na*nb)
	return math.Max(-1, math.Min(1, sim)), nil
}

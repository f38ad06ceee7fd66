package embedding

import (
	"math"

	"github.com/yungbote/graphrag-core/internal/rag/ragerr"
)

// Cosine returns the cosine similarity of a and b, computed in float64.
// A zero-norm vector yields 0. Vectors of different length are an InvalidArgument error.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, ragerr.Invalid("embedding.cosine", "vector length mismatch: %d vs %d", len(a), len(b))
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
	s := dot / (math.Sqrt(na) * math.Sqrt(nb))
	// Rounding can push identical vectors just past 1.
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	return s, nil
}

// Similarity is Cosine with mismatches and empty vectors scored as 0.
func Similarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	s, err := Cosine(a, b)
	if err != nil {
		return 0
	}
	return s
}

package vectorize

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// CosineSimilarity is dot(a,b)/(|a||b|), or 0 when either norm is 0 or the
// lengths differ.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return floats.Dot(a, b) / (na * nb)
}

// ToFloat64 widens an embedding returned by the provider.
func ToFloat64(v []float32) []float64 {
	if v == nil {
		return nil
	}
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

// Unit returns v scaled to unit length, or nil when v has zero norm.
func Unit(v []float64) []float64 {
	norm := floats.Norm(v, 2)
	if norm == 0 {
		return nil
	}
	out := make([]float64, len(v))
	floats.ScaleTo(out, 1/norm, v)
	return out
}

// CosineDistances returns the symmetric matrix of 1 - cosine similarity
// between the rows of v. Any pair involving a zero row, including a zero row
// with itself, is +Inf.
func CosineDistances(v *mat.Dense) *mat.SymDense {
	if v == nil {
		return nil
	}
	rows, _ := v.Dims()
	norms := make([]float64, rows)
	for i := range norms {
		norms[i] = mat.Norm(v.RowView(i), 2)
	}

	var gram mat.SymDense
	gram.SymOuterK(1, v)

	dist := mat.NewSymDense(rows, nil)
	for i := 0; i < rows; i++ {
		for j := i; j < rows; j++ {
			if norms[i] == 0 || norms[j] == 0 {
				dist.SetSym(i, j, math.Inf(1))
				continue
			}
			sim := gram.At(i, j) / (norms[i] * norms[j])
			dist.SetSym(i, j, clamp(1-sim, 0, 2))
		}
	}
	return dist
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

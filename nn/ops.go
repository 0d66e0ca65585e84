package nn

import (
	"gonum.org/v1/gonum/mat"
)

// ConcatColumns returns [a | b].
func ConcatColumns(a, b *mat.Dense) *mat.Dense {
	ra, ca := a.Dims()
	_, cb := b.Dims()
	out := mat.NewDense(ra, ca+cb, nil)
	out.Slice(0, ra, 0, ca).(*mat.Dense).Copy(a)
	out.Slice(0, ra, ca, ca+cb).(*mat.Dense).Copy(b)
	return out
}

// SplitColumns splits m into its first n columns and the rest.
func SplitColumns(m *mat.Dense, n int) (left, right *mat.Dense) {
	r, c := m.Dims()
	return mat.DenseCopyOf(m.Slice(0, r, 0, n)), mat.DenseCopyOf(m.Slice(0, r, n, c))
}

// ColumnSums returns a 1 x c row with the sum of every column.
func ColumnSums(m *mat.Dense) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(1, c, nil)
	for j := 0; j < c; j++ {
		var s float64
		for i := 0; i < r; i++ {
			s += m.At(i, j)
		}
		out.Set(0, j, s)
	}
	return out
}

// AddGrads returns a+b, treating nil as zero.
func AddGrads(a, b *mat.Dense) *mat.Dense {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	var out mat.Dense
	out.Add(a, b)
	return &out
}

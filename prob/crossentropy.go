package prob

import (
	"math"

	"github.com/YuminosukeSato/ssvae/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// CrossEntropyOffset bounds predictions away from 0 and 1 before logarithms.
const CrossEntropyOffset = 1e-7

// CrossEntropy returns the binary cross-entropy between pred and target,
// summed over columns. pred is clipped to [ε, 1-ε] first.
func CrossEntropy(pred, target *mat.Dense) []float64 {
	r, c := pred.Dims()
	out := make([]float64, r)
	for i := 0; i < r; i++ {
		var s float64
		for j := 0; j < c; j++ {
			p := errors.ClipValue(pred.At(i, j), CrossEntropyOffset, 1-CrossEntropyOffset)
			t := target.At(i, j)
			s += t*math.Log(p) + (1-t)*math.Log(1-p)
		}
		out[i] = -s
	}
	return out
}

// CrossEntropyGrad returns d(Σ_i scale[i]*CE_i)/dpred. The gradient is zero
// where the clip is active, matching the derivative of a clamp.
func CrossEntropyGrad(pred, target *mat.Dense, scale []float64) *mat.Dense {
	r, c := pred.Dims()
	grad := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			p := pred.At(i, j)
			if p < CrossEntropyOffset || p > 1-CrossEntropyOffset {
				continue
			}
			t := target.At(i, j)
			grad.Set(i, j, scale[i]*(-t/p+(1-t)/(1-p)))
		}
	}
	return grad
}

// MeanSquaredError returns mean((a-b)²) over every element, as used by the
// preventor loss.
func MeanSquaredError(a, b *mat.Dense) float64 {
	r, c := a.Dims()
	var s float64
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			d := a.At(i, j) - b.At(i, j)
			s += d * d
		}
	}
	return s / float64(r*c)
}

// MeanSquaredErrorGrad returns d(weight*mean((pred-target)²))/dpred.
func MeanSquaredErrorGrad(pred, target *mat.Dense, weight float64) *mat.Dense {
	r, c := pred.Dims()
	grad := mat.NewDense(r, c, nil)
	k := 2 * weight / float64(r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			grad.Set(i, j, k*(pred.At(i, j)-target.At(i, j)))
		}
	}
	return grad
}

package nn

import (
	"math"

	"github.com/YuminosukeSato/ssvae/core/parallel"
	"gonum.org/v1/gonum/mat"
)

const (
	// BatchNormEpsilon is added to the variance before the square root.
	BatchNormEpsilon = 1e-3
	// BatchNormDecay is the momentum of the running statistics.
	BatchNormDecay = 0.999
)

// BatchNorm normalises each column with batch statistics while training and
// with running statistics at inference. Only a learned offset (beta) is
// applied; there is no scale.
type BatchNorm struct {
	Beta       *Param
	MovingMean *Param
	MovingVar  *Param
	Epsilon    float64
	Decay      float64
}

// NewBatchNorm creates a BatchNorm over width columns. Running mean starts at
// 0 and running variance at 1.
func NewBatchNorm(prefix string, width int) *BatchNorm {
	return &BatchNorm{
		Beta:       NewParam(joinName(prefix, "beta"), 1, width),
		MovingMean: NewState(joinName(prefix, "moving_mean"), 1, width, 0),
		MovingVar:  NewState(joinName(prefix, "moving_variance"), 1, width, 1),
		Epsilon:    BatchNormEpsilon,
		Decay:      BatchNormDecay,
	}
}

// Forward normalises x. In training mode the running statistics are updated
// as a side effect and the returned closure back-propagates through the batch
// statistics. In inference mode the closure treats the statistics as
// constants.
func (bn *BatchNorm) Forward(x *mat.Dense, train bool) (*mat.Dense, Backward) {
	n, c := x.Dims()
	mean := make([]float64, c)
	variance := make([]float64, c)

	if train {
		for j := 0; j < c; j++ {
			var s float64
			for i := 0; i < n; i++ {
				s += x.At(i, j)
			}
			mean[j] = s / float64(n)
			var v float64
			for i := 0; i < n; i++ {
				d := x.At(i, j) - mean[j]
				v += d * d
			}
			variance[j] = v / float64(n)
		}
		mm := bn.MovingMean.Value.RawRowView(0)
		mv := bn.MovingVar.Value.RawRowView(0)
		for j := 0; j < c; j++ {
			mm[j] = bn.Decay*mm[j] + (1-bn.Decay)*mean[j]
			mv[j] = bn.Decay*mv[j] + (1-bn.Decay)*variance[j]
		}
	} else {
		copy(mean, bn.MovingMean.Value.RawRowView(0))
		copy(variance, bn.MovingVar.Value.RawRowView(0))
	}

	invStd := make([]float64, c)
	for j := range invStd {
		invStd[j] = 1 / math.Sqrt(variance[j]+bn.Epsilon)
	}
	beta := bn.Beta.Value.RawRowView(0)

	xhat := mat.NewDense(n, c, nil)
	y := mat.NewDense(n, c, nil)
	parallel.RowsWithThreshold(n, parallelRows, func(start, end int) {
		for i := start; i < end; i++ {
			xr, hr, yr := x.RawRowView(i), xhat.RawRowView(i), y.RawRowView(i)
			for j := range xr {
				hr[j] = (xr[j] - mean[j]) * invStd[j]
				yr[j] = hr[j] + beta[j]
			}
		}
	})

	return y, func(dy *mat.Dense) *mat.Dense {
		bn.Beta.AccumulateGrad(ColumnSums(dy))
		dx := mat.NewDense(n, c, nil)
		if !train {
			for i := 0; i < n; i++ {
				dyr, dxr := dy.RawRowView(i), dx.RawRowView(i)
				for j := range dyr {
					dxr[j] = dyr[j] * invStd[j]
				}
			}
			return dx
		}

		// dx = invstd/N * (N*dy - Σdy - xhat*Σ(dy*xhat))
		fn := float64(n)
		for j := 0; j < c; j++ {
			var sumDy, sumDyXhat float64
			for i := 0; i < n; i++ {
				sumDy += dy.At(i, j)
				sumDyXhat += dy.At(i, j) * xhat.At(i, j)
			}
			for i := 0; i < n; i++ {
				dx.Set(i, j, invStd[j]/fn*(fn*dy.At(i, j)-sumDy-xhat.At(i, j)*sumDyXhat))
			}
		}
		return dx
	}
}

// Params returns the trainable offset.
func (bn *BatchNorm) Params() []*Param {
	return []*Param{bn.Beta}
}

// State returns the running statistics.
func (bn *BatchNorm) State() []*Param {
	return []*Param{bn.MovingMean, bn.MovingVar}
}

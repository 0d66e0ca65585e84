package nn

import (
	"math"

	"github.com/YuminosukeSato/ssvae/core/parallel"
	"github.com/YuminosukeSato/ssvae/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// parallelRows is the batch size above which elementwise kernels fan out.
const parallelRows = 512

// Activation is an elementwise nonlinearity. Deriv receives both the input
// and the output of the forward pass.
type Activation struct {
	Name  string
	Fn    func(x float64) float64
	Deriv func(x, y float64) float64
}

var (
	Identity = Activation{
		Name:  "identity",
		Fn:    func(x float64) float64 { return x },
		Deriv: func(_, _ float64) float64 { return 1 },
	}
	ReLU = Activation{
		Name: "relu",
		Fn:   func(x float64) float64 { return math.Max(0, x) },
		Deriv: func(x, _ float64) float64 {
			if x > 0 {
				return 1
			}
			return 0
		},
	}
	Sigmoid = Activation{
		Name:  "sigmoid",
		Fn:    func(x float64) float64 { return 1 / (1 + math.Exp(-x)) },
		Deriv: func(_, y float64) float64 { return y * (1 - y) },
	}
	Tanh = Activation{
		Name:  "tanh",
		Fn:    math.Tanh,
		Deriv: func(_, y float64) float64 { return 1 - y*y },
	}
)

// ActivationByName resolves a stored activation name.
func ActivationByName(name string) (Activation, error) {
	switch name {
	case Identity.Name:
		return Identity, nil
	case ReLU.Name:
		return ReLU, nil
	case Sigmoid.Name:
		return Sigmoid, nil
	case Tanh.Name:
		return Tanh, nil
	}
	return Activation{}, errors.NewValidationError("activation", "unknown activation", name)
}

// Forward applies the activation elementwise.
func (a Activation) Forward(x *mat.Dense) (*mat.Dense, Backward) {
	r, c := x.Dims()
	y := mat.NewDense(r, c, nil)
	parallel.RowsWithThreshold(r, parallelRows, func(start, end int) {
		for i := start; i < end; i++ {
			xr, yr := x.RawRowView(i), y.RawRowView(i)
			for j := range xr {
				yr[j] = a.Fn(xr[j])
			}
		}
	})

	return y, func(dy *mat.Dense) *mat.Dense {
		dx := mat.NewDense(r, c, nil)
		parallel.RowsWithThreshold(r, parallelRows, func(start, end int) {
			for i := start; i < end; i++ {
				xr, yr, dyr, dxr := x.RawRowView(i), y.RawRowView(i), dy.RawRowView(i), dx.RawRowView(i)
				for j := range xr {
					dxr[j] = dyr[j] * a.Deriv(xr[j], yr[j])
				}
			}
		})
		return dx
	}
}

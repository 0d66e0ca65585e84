package nn

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// Dense is a fully-connected layer y = xW + b.
type Dense struct {
	W *Param
	B *Param
}

// NewDense creates a Dense layer named prefix with Xavier-initialised weights
// and zero biases.
func NewDense(prefix string, in, out int, src rand.Source) *Dense {
	d := &Dense{
		W: NewParam(joinName(prefix, "weights"), in, out),
		B: NewParam(joinName(prefix, "biases"), 1, out),
	}
	XavierUniform(d.W.Value, src)
	return d
}

// Forward computes xW + b.
func (d *Dense) Forward(x *mat.Dense) (*mat.Dense, Backward) {
	r, _ := x.Dims()
	_, out := d.W.Shape()
	y := mat.NewDense(r, out, nil)
	y.Mul(x, d.W.Value)
	bias := d.B.Value.RawRowView(0)
	for i := 0; i < r; i++ {
		row := y.RawRowView(i)
		for j := range row {
			row[j] += bias[j]
		}
	}

	return y, func(dy *mat.Dense) *mat.Dense {
		var dW mat.Dense
		dW.Mul(x.T(), dy)
		d.W.AccumulateGrad(&dW)
		d.B.AccumulateGrad(ColumnSums(dy))

		in, _ := d.W.Shape()
		dx := mat.NewDense(r, in, nil)
		dx.Mul(dy, d.W.Value.T())
		return dx
	}
}

// Params returns the weights and biases.
func (d *Dense) Params() []*Param {
	return []*Param{d.W, d.B}
}

// Dims returns the input and output widths.
func (d *Dense) Dims() (in, out int) {
	return d.W.Shape()
}

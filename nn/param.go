package nn

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Param is a named tensor owned by a module. Trainable parameters carry a
// gradient buffer; non-trainable ones (batch-norm running statistics) are
// updated as a side effect of training-mode forward passes.
type Param struct {
	Name      string
	Value     *mat.Dense
	Grad      *mat.Dense
	Trainable bool
}

// NewParam allocates a zero-valued trainable parameter.
func NewParam(name string, rows, cols int) *Param {
	return &Param{
		Name:      name,
		Value:     mat.NewDense(rows, cols, nil),
		Grad:      mat.NewDense(rows, cols, nil),
		Trainable: true,
	}
}

// NewState allocates a non-trainable tensor filled with v.
func NewState(name string, rows, cols int, v float64) *Param {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = v
	}
	return &Param{Name: name, Value: mat.NewDense(rows, cols, data)}
}

// ZeroGrad clears the accumulated gradient.
func (p *Param) ZeroGrad() {
	if p.Grad != nil {
		p.Grad.Zero()
	}
}

// AccumulateGrad adds g to the gradient buffer.
func (p *Param) AccumulateGrad(g mat.Matrix) {
	p.Grad.Add(p.Grad, g)
}

// Shape returns the tensor dimensions.
func (p *Param) Shape() (int, int) {
	return p.Value.Dims()
}

// InScope reports whether the parameter belongs to the named scope.
func (p *Param) InScope(scope string) bool {
	return strings.HasPrefix(p.Name, scope+"/")
}

func (p *Param) String() string {
	r, c := p.Shape()
	return fmt.Sprintf("%s[%dx%d]", p.Name, r, c)
}

func joinName(parts ...string) string {
	return strings.Join(parts, "/")
}

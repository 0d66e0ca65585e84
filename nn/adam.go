package nn

import (
	"math"

	"github.com/YuminosukeSato/ssvae/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Adam defaults.
const (
	DefaultLearningRate = 1e-3
	DefaultBeta1        = 0.9
	DefaultBeta2        = 0.999
	DefaultAdamEpsilon  = 1e-8
)

// Adam keeps first and second moment slots for a fixed parameter group.
// Several optimisers may share parameters; each keeps its own slots and
// step counter.
type Adam struct {
	Name         string
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64

	params []*Param
	m      map[string]*Param
	v      map[string]*Param
	step   *Param
}

// NewAdam creates an optimiser over params. Slots are allocated eagerly so
// that they can be checkpointed before the first step.
func NewAdam(name string, params []*Param, learningRate float64) *Adam {
	a := &Adam{
		Name:         name,
		LearningRate: learningRate,
		Beta1:        DefaultBeta1,
		Beta2:        DefaultBeta2,
		Epsilon:      DefaultAdamEpsilon,
		params:       params,
		m:            make(map[string]*Param, len(params)),
		v:            make(map[string]*Param, len(params)),
		step:         NewState(joinName(name, "step"), 1, 1, 0),
	}
	for _, p := range params {
		r, c := p.Shape()
		a.m[p.Name] = NewState(joinName(name, p.Name, "m"), r, c, 0)
		a.v[p.Name] = NewState(joinName(name, p.Name, "v"), r, c, 0)
	}
	return a
}

// Params returns the parameter group.
func (a *Adam) Params() []*Param {
	return a.params
}

// Steps returns the number of updates applied so far.
func (a *Adam) Steps() int {
	return int(a.step.Value.At(0, 0))
}

// Step applies one bias-corrected update using each parameter's Grad:
//
//	lr_t = lr * sqrt(1-β2^t) / (1-β1^t)
//	θ -= lr_t * m / (sqrt(v) + ε)
func (a *Adam) Step() error {
	t := float64(a.Steps() + 1)
	a.step.Value.Set(0, 0, t)
	lrT := a.LearningRate * math.Sqrt(1-math.Pow(a.Beta2, t)) / (1 - math.Pow(a.Beta1, t))

	for _, p := range a.params {
		m, v := a.m[p.Name].Value.RawMatrix().Data, a.v[p.Name].Value.RawMatrix().Data
		g := p.Grad.RawMatrix().Data
		w := p.Value.RawMatrix().Data
		if len(g) != len(m) || len(w) != len(m) {
			return errors.NewValueError("adam.step", "parameter "+p.Name+" changed shape")
		}
		for i := range w {
			m[i] = a.Beta1*m[i] + (1-a.Beta1)*g[i]
			v[i] = a.Beta2*v[i] + (1-a.Beta2)*g[i]*g[i]
			w[i] -= lrT * m[i] / (math.Sqrt(v[i]) + a.Epsilon)
		}
	}
	return nil
}

// State returns the slot tensors and the step counter, in parameter order.
func (a *Adam) State() []*Param {
	out := make([]*Param, 0, 2*len(a.params)+1)
	for _, p := range a.params {
		out = append(out, a.m[p.Name], a.v[p.Name])
	}
	return append(out, a.step)
}

// Moments returns the slot values of a parameter, for inspection.
func (a *Adam) Moments(name string) (m, v *mat.Dense, ok bool) {
	mp, ok := a.m[name]
	if !ok {
		return nil, nil, false
	}
	return mp.Value, a.v[name].Value, true
}

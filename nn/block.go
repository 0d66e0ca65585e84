package nn

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// Hidden is one fully-connected hidden layer: Dense (no activation) followed
// by batch normalisation and the nonlinearity.
type Hidden struct {
	Dense *Dense
	Norm  *BatchNorm
	Act   Activation
}

// NewHidden creates a hidden layer named prefix/fully_connected_<index>.
func NewHidden(prefix string, index, in, out int, act Activation, src rand.Source) *Hidden {
	name := joinName(prefix, fmt.Sprintf("fully_connected_%d", index))
	return &Hidden{
		Dense: NewDense(name, in, out, src),
		Norm:  NewBatchNorm(joinName(name, "BatchNorm"), out),
		Act:   act,
	}
}

// Forward runs the layer.
func (h *Hidden) Forward(x *mat.Dense, train bool) (*mat.Dense, Backward) {
	z, denseBack := h.Dense.Forward(x)
	n, normBack := h.Norm.Forward(z, train)
	y, actBack := h.Act.Forward(n)
	return y, func(dy *mat.Dense) *mat.Dense {
		return denseBack(normBack(actBack(dy)))
	}
}

// Params returns dense weights, biases and the batch-norm offset.
func (h *Hidden) Params() []*Param {
	return append(h.Dense.Params(), h.Norm.Params()...)
}

// State returns the batch-norm running statistics.
func (h *Hidden) State() []*Param {
	return h.Norm.State()
}

// Stack is a sequence of hidden layers.
type Stack []*Hidden

// NewStack builds hidden layers of the given widths on top of an input of
// width in. An empty widths slice yields the identity.
func NewStack(prefix string, in int, widths []int, act Activation, src rand.Source) Stack {
	s := make(Stack, 0, len(widths))
	for i, w := range widths {
		s = append(s, NewHidden(prefix, i, in, w, act, src))
		in = w
	}
	return s
}

// Forward runs every layer in order.
func (s Stack) Forward(x *mat.Dense, train bool) (*mat.Dense, Backward) {
	backs := make([]Backward, len(s))
	h := x
	for i, l := range s {
		h, backs[i] = l.Forward(h, train)
	}
	return h, func(dy *mat.Dense) *mat.Dense {
		for i := len(backs) - 1; i >= 0; i-- {
			dy = backs[i](dy)
		}
		return dy
	}
}

// Params collects the trainable parameters of every layer.
func (s Stack) Params() []*Param {
	var out []*Param
	for _, l := range s {
		out = append(out, l.Params()...)
	}
	return out
}

// State collects the running statistics of every layer.
func (s Stack) State() []*Param {
	var out []*Param
	for _, l := range s {
		out = append(out, l.State()...)
	}
	return out
}

package ssvae

import (
	"math/rand/v2"

	"github.com/YuminosukeSato/ssvae/nn"
	"github.com/YuminosukeSato/ssvae/pkg/errors"
	"github.com/YuminosukeSato/ssvae/prob"
	"gonum.org/v1/gonum/mat"
)

// サブネットワークのスコープ名
const (
	ScopeEncoder   = "encoder"
	ScopeRegressor = "regressor"
	ScopeDecoder   = "decoder"
	ScopePreventor = "preventor"
)

// Encoder maps inputs to a diagonal Gaussian posterior: a hidden stack
// followed by independent linear mean and log-std heads.
type Encoder struct {
	scope  string
	hidden nn.Stack
	mean   *nn.Dense
	logStd *nn.Dense
}

// GaussianBackward receives the gradients of a posterior's parameters and
// returns the gradient with respect to the network input.
type GaussianBackward func(dMean, dLogStd *mat.Dense) *mat.Dense

// Scope returns the registry key.
func (e *Encoder) Scope() string { return e.scope }

// Params returns the trainable parameters.
func (e *Encoder) Params() []*nn.Param {
	out := e.hidden.Params()
	out = append(out, e.mean.Params()...)
	return append(out, e.logStd.Params()...)
}

// State returns the batch-norm running statistics.
func (e *Encoder) State() []*nn.Param { return e.hidden.State() }

// Forward computes the posterior of x. train selects batch statistics and
// running-statistic updates in the batch-norm layers.
func (e *Encoder) Forward(x *mat.Dense, train bool) (prob.Gaussian, GaussianBackward) {
	h, hiddenBack := e.hidden.Forward(x, train)
	mean, meanBack := e.mean.Forward(h)
	logStd, logStdBack := e.logStd.Forward(h)

	return prob.Gaussian{Mean: mean, LogStd: logStd}, func(dMean, dLogStd *mat.Dense) *mat.Dense {
		var dh *mat.Dense
		if dMean != nil {
			dh = nn.AddGrads(dh, meanBack(dMean))
		}
		if dLogStd != nil {
			dh = nn.AddGrads(dh, logStdBack(dLogStd))
		}
		if dh == nil {
			return nil
		}
		return hiddenBack(dh)
	}
}

// BuildEncoder registers (reuse=false) or fetches (reuse=true) an encoder
// under scope. Widths are the hidden layer sizes from input to output.
func BuildEncoder(reg *nn.Registry, scope string, in, out int, hidden []int, act nn.Activation, reuse bool, src rand.Source) (*Encoder, error) {
	m, err := reg.Build(scope, reuse, func() (nn.Module, error) {
		stack := nn.NewStack(scope, in, hidden, act, src)
		last := in
		if len(hidden) > 0 {
			last = hidden[len(hidden)-1]
		}
		return &Encoder{
			scope:  scope,
			hidden: stack,
			mean:   nn.NewDense(scope+"/mean", last, out, src),
			logStd: nn.NewDense(scope+"/log_std", last, out, src),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	enc, ok := m.(*Encoder)
	if !ok {
		return nil, errors.NewScopeError(scope, reuse, "scope holds a different network type")
	}
	return enc, nil
}

// Decoder reconstructs inputs in (0, 1) from concat(z, y).
type Decoder struct {
	scope  string
	hidden nn.Stack
	output *nn.Dense
}

// Scope returns the registry key.
func (d *Decoder) Scope() string { return d.scope }

// Params returns the trainable parameters.
func (d *Decoder) Params() []*nn.Param {
	return append(d.hidden.Params(), d.output.Params()...)
}

// State returns the batch-norm running statistics.
func (d *Decoder) State() []*nn.Param { return d.hidden.State() }

// Forward reconstructs the input from a decoder input row batch.
func (d *Decoder) Forward(in *mat.Dense, train bool) (*mat.Dense, nn.Backward) {
	h, hiddenBack := d.hidden.Forward(in, train)
	logits, outBack := d.output.Forward(h)
	y, sigBack := nn.Sigmoid.Forward(logits)
	return y, func(dy *mat.Dense) *mat.Dense {
		return hiddenBack(outBack(sigBack(dy)))
	}
}

// BuildDecoder registers or fetches a decoder. The hidden widths are given
// in encoder order and applied reversed.
func BuildDecoder(reg *nn.Registry, scope string, in, out int, hidden []int, act nn.Activation, reuse bool, src rand.Source) (*Decoder, error) {
	m, err := reg.Build(scope, reuse, func() (nn.Module, error) {
		reversed := make([]int, len(hidden))
		for i, w := range hidden {
			reversed[len(hidden)-1-i] = w
		}
		last := in
		if len(reversed) > 0 {
			last = reversed[len(reversed)-1]
		}
		return &Decoder{
			scope:  scope,
			hidden: nn.NewStack(scope, in, reversed, act, src),
			output: nn.NewDense(scope+"/output", last, out, src),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	dec, ok := m.(*Decoder)
	if !ok {
		return nil, errors.NewScopeError(scope, reuse, "scope holds a different network type")
	}
	return dec, nil
}

// Preventor is a single linear layer regressing the target from a latent
// sample.
type Preventor struct {
	scope  string
	linear *nn.Dense
}

// Scope returns the registry key.
func (p *Preventor) Scope() string { return p.scope }

// Params returns the trainable parameters.
func (p *Preventor) Params() []*nn.Param { return p.linear.Params() }

// State returns nothing; the preventor has no batch norm.
func (p *Preventor) State() []*nn.Param { return nil }

// Forward returns the point estimate of the target.
func (p *Preventor) Forward(z *mat.Dense) (*mat.Dense, nn.Backward) {
	return p.linear.Forward(z)
}

// BuildPreventor registers or fetches a preventor.
func BuildPreventor(reg *nn.Registry, scope string, in, out int, reuse bool, src rand.Source) (*Preventor, error) {
	m, err := reg.Build(scope, reuse, func() (nn.Module, error) {
		return &Preventor{scope: scope, linear: nn.NewDense(scope+"/fully_connected", in, out, src)}, nil
	})
	if err != nil {
		return nil, err
	}
	p, ok := m.(*Preventor)
	if !ok {
		return nil, errors.NewScopeError(scope, reuse, "scope holds a different network type")
	}
	return p, nil
}

package ssvae

import (
	"github.com/YuminosukeSato/ssvae/nn"
	"github.com/YuminosukeSato/ssvae/pkg/errors"
	"github.com/YuminosukeSato/ssvae/pkg/log"
)

// デフォルトのハイパーパラメータ
const (
	DefaultAlpha         = 0.1
	DefaultPreventWeight = 0.2
	DefaultPredictionDim = 1
	DefaultRandomState   = -1
)

// Config holds the structural dimensions of the model. PredictionDim
// defaults to 1 when zero.
type Config struct {
	InputDim      int   `json:"input_dim"`
	VAEDims       []int `json:"vae_dims"`
	RegDims       []int `json:"reg_dims"`
	LatentDim     int   `json:"latent_dim"`
	PredictionDim int   `json:"prediction_dim"`
}

// Validate checks that every dimension is positive. Empty hidden width
// lists are allowed and give linear heads.
func (c *Config) Validate() error {
	if c.PredictionDim == 0 {
		c.PredictionDim = DefaultPredictionDim
	}
	checks := []struct {
		name  string
		value int
	}{
		{"input_dim", c.InputDim},
		{"latent_dim", c.LatentDim},
		{"prediction_dim", c.PredictionDim},
	}
	for _, ch := range checks {
		if ch.value <= 0 {
			return errors.NewValidationError(ch.name, "must be positive", ch.value)
		}
	}
	for _, w := range c.VAEDims {
		if w <= 0 {
			return errors.NewValidationError("vae_dims", "hidden widths must be positive", c.VAEDims)
		}
	}
	for _, w := range c.RegDims {
		if w <= 0 {
			return errors.NewValidationError("reg_dims", "hidden widths must be positive", c.RegDims)
		}
	}
	return nil
}

func (c Config) equal(o Config) bool {
	return c.InputDim == o.InputDim &&
		c.LatentDim == o.LatentDim &&
		c.PredictionDim == o.PredictionDim &&
		equalInts(c.VAEDims, o.VAEDims) &&
		equalInts(c.RegDims, o.RegDims)
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Option is a function that configures a Regressor
type Option func(*Regressor)

// WithAlpha sets the weight of the supervised log-density term in the
// labeled loss
func WithAlpha(alpha float64) Option {
	return func(r *Regressor) {
		r.alpha = alpha
	}
}

// WithPreventorWeight sets the weight of the adversarial preventor loss
func WithPreventorWeight(w float64) Option {
	return func(r *Regressor) {
		r.preventWeight = w
	}
}

// WithLearningRate sets the learning rate of all three optimisers
func WithLearningRate(lr float64) Option {
	return func(r *Regressor) {
		r.learningRate = lr
	}
}

// WithSeed fixes the random state used for initialisation and sampling.
// A negative seed draws one from the clock.
func WithSeed(seed int64) Option {
	return func(r *Regressor) {
		r.randomState = seed
	}
}

// WithVerbose enables per-layer shape logging and per-step progress logs
func WithVerbose(verbose bool) Option {
	return func(r *Regressor) {
		r.verbose = verbose
	}
}

// WithActivation sets the hidden-layer nonlinearity (default ReLU)
func WithActivation(act nn.Activation) Option {
	return func(r *Regressor) {
		r.activation = act
	}
}

// WithLogger replaces the default component logger
func WithLogger(logger log.Logger) Option {
	return func(r *Regressor) {
		r.logger = logger
	}
}

// WithPlotOnFinish renders the diagnostics figure to path whenever Train
// returns after at least one step
func WithPlotOnFinish(path string) Option {
	return func(r *Regressor) {
		r.plotPath = path
		r.plotOnFinish = true
	}
}

package ssvae

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/YuminosukeSato/ssvae/core/model"
	"github.com/YuminosukeSato/ssvae/diagnostics"
	"github.com/YuminosukeSato/ssvae/nn"
	"github.com/YuminosukeSato/ssvae/pkg/errors"
	"github.com/YuminosukeSato/ssvae/pkg/log"
	"github.com/YuminosukeSato/ssvae/prob"
	"gonum.org/v1/gonum/stat/distuv"
)

// ModelType identifies this model in checkpoints and logs.
const ModelType = "SSVAERegressor"

// オプティマイザ名（チェックポイント内のスロット名の接頭辞）
const (
	optimLabeled   = "labeled_optim"
	optimUnlabeled = "unlabeled_optim"
	optimPrevent   = "prevent_optim"
)

// Regressor is a semi-supervised variational regression model. It owns four
// sub-networks held in a scope registry (latent encoder, target encoder,
// decoder, preventor), three Adam optimisers and the training record.
type Regressor struct {
	state *model.StateManager
	// mu serialises training, inference and checkpointing
	mu sync.Mutex

	cfg           Config
	alpha         float64
	preventWeight float64
	learningRate  float64
	randomState   int64
	verbose       bool
	activation    nn.Activation
	plotPath      string
	plotOnFinish  bool
	logger        log.Logger

	registry  *nn.Registry
	encoder   *Encoder
	regressor *Encoder
	decoder   *Decoder
	preventor *Preventor

	labeledOpt   *nn.Adam
	unlabeledOpt *nn.Adam
	preventOpt   *nn.Adam

	noise  prob.Sampler
	record *diagnostics.Record
	status atomic.Int32
}

// New builds a Regressor with freshly initialised parameters.
func New(cfg Config, opts ...Option) (*Regressor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.VAEDims = append([]int(nil), cfg.VAEDims...)
	cfg.RegDims = append([]int(nil), cfg.RegDims...)

	r := &Regressor{
		state:         model.NewStateManager(),
		cfg:           cfg,
		alpha:         DefaultAlpha,
		preventWeight: DefaultPreventWeight,
		learningRate:  nn.DefaultLearningRate,
		randomState:   DefaultRandomState,
		activation:    nn.ReLU,
		registry:      nn.NewRegistry(),
		record:        diagnostics.NewRecord(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = log.GetLoggerWithName("ssvae")
	}
	if r.randomState < 0 {
		r.randomState = time.Now().UnixNano()
	}
	if r.learningRate <= 0 {
		return nil, errors.NewValidationError("learning_rate", "must be positive", r.learningRate)
	}

	seed := uint64(r.randomState)
	initSrc := rand.NewPCG(seed, 0x5eed)
	r.noise = distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewPCG(seed, 0xda7a)}

	if err := r.build(initSrc); err != nil {
		return nil, err
	}
	r.state.SetDimensions(cfg.InputDim, cfg.PredictionDim)

	r.logger.Info("Model built",
		log.ModelNameKey, ModelType,
		log.FeaturesKey, cfg.InputDim,
		log.TargetsKey, cfg.PredictionDim,
		log.HyperParamsKey, r.GetParams(),
	)
	return r, nil
}

// build creates every sub-network once and wires the optimisers over their
// parameter groups.
func (r *Regressor) build(src rand.Source) error {
	c := r.cfg
	var err error

	// q(z|x) と q(y|x) は別々のスコープ
	if r.encoder, err = BuildEncoder(r.registry, ScopeEncoder, c.InputDim, c.LatentDim, c.VAEDims, r.activation, false, src); err != nil {
		return err
	}
	if r.regressor, err = BuildEncoder(r.registry, ScopeRegressor, c.InputDim, c.PredictionDim, c.RegDims, r.activation, false, src); err != nil {
		return err
	}
	if r.decoder, err = BuildDecoder(r.registry, ScopeDecoder, c.LatentDim+c.PredictionDim, c.InputDim, c.VAEDims, r.activation, false, src); err != nil {
		return err
	}
	if r.preventor, err = BuildPreventor(r.registry, ScopePreventor, c.LatentDim, c.PredictionDim, false, src); err != nil {
		return err
	}

	vae := r.registry.Params(ScopeEncoder, ScopeRegressor, ScopeDecoder)
	r.labeledOpt = nn.NewAdam(optimLabeled, vae, r.learningRate)
	r.unlabeledOpt = nn.NewAdam(optimUnlabeled, vae, r.learningRate)
	r.preventOpt = nn.NewAdam(optimPrevent, r.registry.Params(ScopePreventor, ScopeEncoder), r.learningRate)

	if r.verbose {
		for _, p := range r.registry.Variables() {
			rows, cols := p.Shape()
			r.logger.Info("Variable",
				log.ScopeKey, p.Name,
				log.ShapeKey, []int{rows, cols},
			)
		}
	}
	return nil
}

// GetParams returns the model's hyperparameters.
func (r *Regressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"input_dim":        r.cfg.InputDim,
		"vae_dims":         r.cfg.VAEDims,
		"reg_dims":         r.cfg.RegDims,
		"latent_dim":       r.cfg.LatentDim,
		"prediction_dim":   r.cfg.PredictionDim,
		"alpha":            r.alpha,
		"preventor_weight": r.preventWeight,
		"learning_rate":    r.learningRate,
		"random_state":     r.randomState,
		"activation":       r.activation.Name,
		"verbose":          r.verbose,
	}
}

// Config returns a copy of the structural configuration.
func (r *Regressor) Config() Config {
	c := r.cfg
	c.VAEDims = append([]int(nil), c.VAEDims...)
	c.RegDims = append([]int(nil), c.RegDims...)
	return c
}

// Record returns the training record. It must not be modified while
// training runs.
func (r *Regressor) Record() *diagnostics.Record {
	return r.record
}

// Status returns the state of the most recent training call.
func (r *Regressor) Status() Status {
	return Status(r.status.Load())
}

func (r *Regressor) setStatus(s Status) {
	r.status.Store(int32(s))
}

// Epoch returns the number of completed epochs across all Train calls.
func (r *Regressor) Epoch() int {
	return r.state.Epoch()
}

// IsFitted reports whether the model has been trained or loaded.
func (r *Regressor) IsFitted() bool {
	return r.state.IsFitted()
}

// Registry exposes the sub-network registry, e.g. to inspect parameters.
func (r *Regressor) Registry() *nn.Registry {
	return r.registry
}

// String returns a string representation of the model.
func (r *Regressor) String() string {
	return fmt.Sprintf("SSVAERegressor(input_dim=%d, vae_dims=%v, reg_dims=%v, latent_dim=%d, prediction_dim=%d, alpha=%g)",
		r.cfg.InputDim, r.cfg.VAEDims, r.cfg.RegDims, r.cfg.LatentDim, r.cfg.PredictionDim, r.alpha)
}

var (
	_ model.ParameterGetter = (*Regressor)(nil)
	_ model.Persistable     = (*Regressor)(nil)
)

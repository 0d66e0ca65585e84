package ssvae

import (
	"github.com/YuminosukeSato/ssvae/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Predict returns the mean and log-std of the target posterior q(y|x). Batch
// normalisation uses the running statistics and nothing is sampled, so the
// result is deterministic for fixed parameters.
//
// The model must have been trained for at least one step or restored with
// Load; otherwise Predict returns a NotFittedError instead of predicting
// from the initial weights.
func (r *Regressor) Predict(x *mat.Dense) (mean, logStd *mat.Dense, err error) {
	defer errors.Recover(&err, "Predict")
	if err := r.state.RequireFitted(ModelType, "Predict"); err != nil {
		return nil, nil, err
	}
	if err := r.checkInput("Predict", x); err != nil {
		return nil, nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	mean, logStd = r.predict(x)
	return mean, logStd, nil
}

func (r *Regressor) predict(x *mat.Dense) (mean, logStd *mat.Dense) {
	post, _ := r.regressor.Forward(x, false)
	return post.Mean, post.LogStd
}

// Encode returns the latent posterior means of x in inference mode.
func (r *Regressor) Encode(x *mat.Dense) (mean *mat.Dense, err error) {
	defer errors.Recover(&err, "Encode")
	if err := r.state.RequireFitted(ModelType, "Encode"); err != nil {
		return nil, err
	}
	if err := r.checkInput("Encode", x); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	post, _ := r.encoder.Forward(x, false)
	return post.Mean, nil
}

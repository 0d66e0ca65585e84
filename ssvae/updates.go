package ssvae

import (
	"github.com/YuminosukeSato/ssvae/nn"
	"github.com/YuminosukeSato/ssvae/pkg/errors"
	"github.com/YuminosukeSato/ssvae/prob"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// labeledStats are the batch means reported by the labeled update.
type labeledStats struct {
	loss       float64
	rec        float64
	kldZ       float64
	logDensity float64
	zMean      *mat.Dense
}

// unlabeledStats are the batch means reported by the unlabeled update.
type unlabeledStats struct {
	loss  float64
	rec   float64
	kldZ  float64
	kldY  float64
	zMean *mat.Dense
}

func uniformScale(n int, v float64) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = v
	}
	return s
}

func addInto(dst, src *mat.Dense) *mat.Dense {
	dst.Add(dst, src)
	return dst
}

// labeledLoss runs the labeled forward pass and accumulates gradients of
//
//	mean_b[ CE(x̂, x) + KL(q(z|x) || N(0,I)) - α·log N(y; μ_y, σ_y) ]
//
// with x̂ = decoder(concat(z, y)).
func (r *Regressor) labeledLoss(x, y *mat.Dense) (labeledStats, error) {
	n, _ := x.Dims()
	zPost, encBack := r.encoder.Forward(x, true)
	yPost, regBack := r.regressor.Forward(x, true)
	z, epsZ := prob.Sample(zPost, r.noise)
	xHat, decBack := r.decoder.Forward(nn.ConcatColumns(z, y), true)

	rec := prob.CrossEntropy(xHat, x)
	kld := prob.KLD(zPost)
	dens := prob.GaussianLogDensity(y, yPost)
	perRow := make([]float64, n)
	for i := range perRow {
		perRow[i] = rec[i] + kld[i] - r.alpha*dens[i]
	}
	st := labeledStats{
		loss:       stat.Mean(perRow, nil),
		rec:        stat.Mean(rec, nil),
		kldZ:       stat.Mean(kld, nil),
		logDensity: stat.Mean(dens, nil),
		zMean:      mat.DenseCopyOf(zPost.Mean),
	}
	if err := errors.CheckSeries("labeled_loss", perRow, r.state.Epoch()); err != nil {
		return st, err
	}

	inv := uniformScale(n, 1/float64(n))
	dIn := decBack(prob.CrossEntropyGrad(xHat, x, inv))
	dz, _ := nn.SplitColumns(dIn, r.cfg.LatentDim)

	dMu, dLs := prob.SampleGrad(zPost, epsZ, dz)
	kMu, kLs := prob.KLDGrad(zPost, inv)
	encBack(addInto(dMu, kMu), addInto(dLs, kLs))

	regBack(prob.GaussianLogDensityGrad(y, yPost, uniformScale(n, -r.alpha/float64(n))))
	return st, nil
}

// unlabeledLoss runs the unlabeled forward pass and accumulates gradients of
//
//	mean_b[ CE(x̂, x) + KL(q(z|x)) + KL(q(y|x)) ]
//
// with x̂ = decoder(concat(z, ỹ)) and ỹ sampled from q(y|x).
func (r *Regressor) unlabeledLoss(x *mat.Dense) (unlabeledStats, error) {
	n, _ := x.Dims()
	zPost, encBack := r.encoder.Forward(x, true)
	yPost, regBack := r.regressor.Forward(x, true)
	z, epsZ := prob.Sample(zPost, r.noise)
	ySample, epsY := prob.Sample(yPost, r.noise)
	xHat, decBack := r.decoder.Forward(nn.ConcatColumns(z, ySample), true)

	rec := prob.CrossEntropy(xHat, x)
	kldZ := prob.KLD(zPost)
	kldY := prob.KLD(yPost)
	perRow := make([]float64, n)
	floats.AddTo(perRow, rec, kldZ)
	floats.Add(perRow, kldY)
	st := unlabeledStats{
		loss:  stat.Mean(perRow, nil),
		rec:   stat.Mean(rec, nil),
		kldZ:  stat.Mean(kldZ, nil),
		kldY:  stat.Mean(kldY, nil),
		zMean: mat.DenseCopyOf(zPost.Mean),
	}
	if err := errors.CheckSeries("unlabeled_loss", perRow, r.state.Epoch()); err != nil {
		return st, err
	}

	inv := uniformScale(n, 1/float64(n))
	dIn := decBack(prob.CrossEntropyGrad(xHat, x, inv))
	dz, dy := nn.SplitColumns(dIn, r.cfg.LatentDim)

	dMu, dLs := prob.SampleGrad(zPost, epsZ, dz)
	kMu, kLs := prob.KLDGrad(zPost, inv)
	encBack(addInto(dMu, kMu), addInto(dLs, kLs))

	yMu, yLs := prob.SampleGrad(yPost, epsY, dy)
	kyMu, kyLs := prob.KLDGrad(yPost, inv)
	regBack(addInto(yMu, kyMu), addInto(yLs, kyLs))
	return st, nil
}

// preventLoss runs the preventor on a labeled latent sample and accumulates
// gradients of β·mean((y - preventor(z))²) into the preventor and encoder.
func (r *Regressor) preventLoss(x, y *mat.Dense) (float64, error) {
	zPost, encBack := r.encoder.Forward(x, true)
	z, epsZ := prob.Sample(zPost, r.noise)
	pred, prevBack := r.preventor.Forward(z)

	loss := r.preventWeight * prob.MeanSquaredError(y, pred)
	if err := errors.CheckScalar("prevent_loss", loss, r.state.Epoch()); err != nil {
		return loss, err
	}

	dz := prevBack(prob.MeanSquaredErrorGrad(pred, y, r.preventWeight))
	encBack(prob.SampleGrad(zPost, epsZ, dz))
	return loss, nil
}

// labeledUpdate minimises the labeled loss over encoder, regressor and
// decoder.
func (r *Regressor) labeledUpdate(x, y *mat.Dense) (labeledStats, error) {
	r.registry.ZeroGrad()
	st, err := r.labeledLoss(x, y)
	if err != nil {
		return st, err
	}
	return st, nn.ApplyGradients(r.labeledOpt)
}

// unlabeledUpdate minimises the unlabeled loss over the same groups.
func (r *Regressor) unlabeledUpdate(x *mat.Dense) (unlabeledStats, error) {
	r.registry.ZeroGrad()
	st, err := r.unlabeledLoss(x)
	if err != nil {
		return st, err
	}
	return st, nn.ApplyGradients(r.unlabeledOpt)
}

// preventUpdate minimises the preventor loss on the preventor while the
// encoder receives the negated gradient, pushing target information out of
// the latent code.
func (r *Regressor) preventUpdate(x, y *mat.Dense) (float64, error) {
	r.registry.ZeroGrad()
	loss, err := r.preventLoss(x, y)
	if err != nil {
		return loss, err
	}
	return loss, nn.ApplyGradients(r.preventOpt, nn.NegateGroup(ScopeEncoder))
}

package prob

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Gaussian is a diagonal Gaussian posterior N(Mean, diag(exp(2*LogStd))),
// one row per batch element. LogStd is unconstrained.
type Gaussian struct {
	Mean   *mat.Dense
	LogStd *mat.Dense
}

// Dims returns the batch size and the dimension of the modelled variable.
func (g Gaussian) Dims() (int, int) {
	return g.Mean.Dims()
}

// Sampler draws standard normal variates. distuv.Normal satisfies it.
type Sampler interface {
	Rand() float64
}

// Sample draws z = mean + eps ⊙ exp(logStd) with fresh eps ~ N(0, I).
// The noise is returned so that SampleGrad can route gradients.
func Sample(g Gaussian, noise Sampler) (z, eps *mat.Dense) {
	r, c := g.Dims()
	z = mat.NewDense(r, c, nil)
	eps = mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			e := noise.Rand()
			eps.Set(i, j, e)
			z.Set(i, j, g.Mean.At(i, j)+e*math.Exp(g.LogStd.At(i, j)))
		}
	}
	return z, eps
}

// SampleGrad back-propagates dz through the reparameterisation:
// dMean = dz, dLogStd = dz ⊙ eps ⊙ exp(logStd).
func SampleGrad(g Gaussian, eps, dz *mat.Dense) (dMean, dLogStd *mat.Dense) {
	r, c := g.Dims()
	dMean = mat.DenseCopyOf(dz)
	dLogStd = mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			dLogStd.Set(i, j, dz.At(i, j)*eps.At(i, j)*math.Exp(g.LogStd.At(i, j)))
		}
	}
	return dMean, dLogStd
}

// KLD returns KL(N(mean, exp(2 logStd)) || N(0, I)) per row:
// -0.5 * Σ(1 + 2ls - μ² - exp(2ls)).
func KLD(g Gaussian) []float64 {
	r, c := g.Dims()
	out := make([]float64, r)
	for i := 0; i < r; i++ {
		var s float64
		for j := 0; j < c; j++ {
			mu, ls := g.Mean.At(i, j), g.LogStd.At(i, j)
			s += 1 + 2*ls - mu*mu - math.Exp(2*ls)
		}
		out[i] = -0.5 * s
	}
	return out
}

// KLDGrad returns the gradients of Σ_i scale[i]*KLD_i.
func KLDGrad(g Gaussian, scale []float64) (dMean, dLogStd *mat.Dense) {
	r, c := g.Dims()
	dMean = mat.NewDense(r, c, nil)
	dLogStd = mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			mu, ls := g.Mean.At(i, j), g.LogStd.At(i, j)
			dMean.Set(i, j, scale[i]*mu)
			dLogStd.Set(i, j, scale[i]*(math.Exp(2*ls)-1))
		}
	}
	return dMean, dLogStd
}

var halfLog2Pi = 0.5 * math.Log(2*math.Pi)

// GaussianLogDensity returns log N(x; mean, exp(2 logStd)) summed over columns.
func GaussianLogDensity(x *mat.Dense, g Gaussian) []float64 {
	r, c := g.Dims()
	out := make([]float64, r)
	for i := 0; i < r; i++ {
		var s float64
		for j := 0; j < c; j++ {
			d := x.At(i, j) - g.Mean.At(i, j)
			ls := g.LogStd.At(i, j)
			s += -halfLog2Pi - ls - d*d/(2*math.Exp(2*ls))
		}
		out[i] = s
	}
	return out
}

// GaussianLogDensityGrad returns the gradients of Σ_i scale[i]*logN_i with
// respect to the posterior parameters. x is treated as a constant.
func GaussianLogDensityGrad(x *mat.Dense, g Gaussian, scale []float64) (dMean, dLogStd *mat.Dense) {
	r, c := g.Dims()
	dMean = mat.NewDense(r, c, nil)
	dLogStd = mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			d := x.At(i, j) - g.Mean.At(i, j)
			v := math.Exp(2 * g.LogStd.At(i, j))
			dMean.Set(i, j, scale[i]*d/v)
			dLogStd.Set(i, j, scale[i]*(d*d/v-1))
		}
	}
	return dMean, dLogStd
}

// GaussianEntropy returns the differential entropy ½Σ(log(2πe) + 2ls) per row.
func GaussianEntropy(g Gaussian) []float64 {
	r, c := g.Dims()
	out := make([]float64, r)
	k := math.Log(2 * math.Pi * math.E)
	for i := 0; i < r; i++ {
		var s float64
		for j := 0; j < c; j++ {
			s += k + 2*g.LogStd.At(i, j)
		}
		out[i] = 0.5 * s
	}
	return out
}

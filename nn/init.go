package nn

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// XavierUniform fills w (fanIn x fanOut) from U(-l, l), l = sqrt(6/(fanIn+fanOut)).
func XavierUniform(w *mat.Dense, src rand.Source) {
	fanIn, fanOut := w.Dims()
	limit := math.Sqrt(6 / float64(fanIn+fanOut))
	u := distuv.Uniform{Min: -limit, Max: limit, Src: src}
	w.Apply(func(_, _ int, _ float64) float64 { return u.Rand() }, w)
}

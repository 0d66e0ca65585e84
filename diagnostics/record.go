// Package diagnostics keeps the per-step training record of a semi-supervised
// VAE and renders it as a nine-panel figure.
package diagnostics

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// 記録される系列の名前
const (
	LossLabeled        = "loss_l"
	RecLabeled         = "rec_l"
	KLDLatentLabeled   = "kld_z_l"
	LogDensityLabeled  = "logdense_y_l"
	LossUnlabeled      = "loss_ul"
	RecUnlabeled       = "rec_ul"
	KLDLatentUnlabeled = "kld_z_ul"
	KLDTargetUnlabeled = "kld_y_ul"
	ValidationMSE      = "mse"
	PreventLoss        = "prevent"
)

// SeriesNames lists every tracked series in recording order.
var SeriesNames = []string{
	LossLabeled, RecLabeled, KLDLatentLabeled, LogDensityLabeled,
	LossUnlabeled, RecUnlabeled, KLDLatentUnlabeled, KLDTargetUnlabeled,
	ValidationMSE, PreventLoss,
}

// Step holds the batch-mean diagnostics of one training step. MSE is NaN
// when no validation set was supplied.
type Step struct {
	LossL      float64
	RecL       float64
	KLDZL      float64
	LogDenseYL float64
	LossUL     float64
	RecUL      float64
	KLDZUL     float64
	KLDYUL     float64
	MSE        float64
	Prevent    float64
}

// Values returns the step keyed by series name.
func (s Step) Values() map[string]float64 {
	return map[string]float64{
		LossLabeled:        s.LossL,
		RecLabeled:         s.RecL,
		KLDLatentLabeled:   s.KLDZL,
		LogDensityLabeled:  s.LogDenseYL,
		LossUnlabeled:      s.LossUL,
		RecUnlabeled:       s.RecUL,
		KLDLatentUnlabeled: s.KLDZUL,
		KLDTargetUnlabeled: s.KLDYUL,
		ValidationMSE:      s.MSE,
		PreventLoss:        s.Prevent,
	}
}

// Finite reports whether every loss term except the optional MSE is finite.
func (s Step) Finite() bool {
	for name, v := range s.Values() {
		if name == ValidationMSE {
			continue
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Record is the append-only history of a training run. It is written by a
// single training loop.
type Record struct {
	Loss map[string][]float64

	// Mus holds the unlabeled latent means of every step.
	Mus []*mat.Dense
	// Ys holds the labeled targets of every step.
	Ys []*mat.Dense
}

// NewRecord creates an empty record with every series allocated.
func NewRecord() *Record {
	r := &Record{Loss: make(map[string][]float64, len(SeriesNames))}
	for _, name := range SeriesNames {
		r.Loss[name] = nil
	}
	return r
}

// Append adds one step. The snapshots are stored as given.
func (r *Record) Append(s Step, mus, ys *mat.Dense) {
	for name, v := range s.Values() {
		r.Loss[name] = append(r.Loss[name], v)
	}
	r.Mus = append(r.Mus, mus)
	r.Ys = append(r.Ys, ys)
}

// Series returns the values recorded under name.
func (r *Record) Series(name string) []float64 {
	return r.Loss[name]
}

// Len returns the number of recorded steps.
func (r *Record) Len() int {
	return len(r.Loss[LossLabeled])
}

// Last returns the most recent step.
func (r *Record) Last() (Step, bool) {
	n := r.Len()
	if n == 0 {
		return Step{}, false
	}
	at := func(name string) float64 { return r.Loss[name][n-1] }
	return Step{
		LossL:      at(LossLabeled),
		RecL:       at(RecLabeled),
		KLDZL:      at(KLDLatentLabeled),
		LogDenseYL: at(LogDensityLabeled),
		LossUL:     at(LossUnlabeled),
		RecUL:      at(RecUnlabeled),
		KLDZUL:     at(KLDLatentUnlabeled),
		KLDYUL:     at(KLDTargetUnlabeled),
		MSE:        at(ValidationMSE),
		Prevent:    at(PreventLoss),
	}, true
}

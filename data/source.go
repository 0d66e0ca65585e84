// Package data provides the batch sources consumed by training loops.
package data

import (
	"math/rand/v2"

	"github.com/YuminosukeSato/ssvae/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Source yields mini-batches. Next returns one batch of features and
// targets; BatchNum is the number of batches that make up one epoch.
// Unlabeled sources may return a nil y.
type Source interface {
	Next() (x, y *mat.Dense, err error)
	BatchNum() int
}

// Validation is a held-out set scored after every training step.
type Validation struct {
	X *mat.Dense
	Y *mat.Dense
}

// Validate checks that X and Y agree on the number of rows.
func (v *Validation) Validate() error {
	if v.X == nil || v.Y == nil {
		return errors.NewValueError("validation", "X and Y must both be set")
	}
	xr, _ := v.X.Dims()
	yr, _ := v.Y.Dims()
	if xr != yr {
		return errors.NewDimensionError("validation", xr, yr, 0)
	}
	return nil
}

// MatrixSource serves shuffled mini-batches from in-memory matrices. It
// reshuffles on every pass and never runs out.
type MatrixSource struct {
	x, y      *mat.Dense
	batchSize int
	rng       *rand.Rand
	perm      []int
	pos       int
}

// SourceOption configures a MatrixSource.
type SourceOption func(*MatrixSource)

// WithShuffleSeed seeds the row shuffle.
func WithShuffleSeed(seed uint64) SourceOption {
	return func(s *MatrixSource) {
		s.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// NewMatrixSource creates a source over x and optional targets y.
func NewMatrixSource(x, y *mat.Dense, batchSize int, opts ...SourceOption) (*MatrixSource, error) {
	if x == nil {
		return nil, errors.ErrEmptyData
	}
	n, _ := x.Dims()
	if n == 0 {
		return nil, errors.ErrEmptyData
	}
	if y != nil {
		if yr, _ := y.Dims(); yr != n {
			return nil, errors.NewDimensionError("NewMatrixSource", n, yr, 0)
		}
	}
	if batchSize <= 0 || batchSize > n {
		return nil, errors.NewValidationError("batchSize", "must be in [1, rows]", batchSize)
	}

	s := &MatrixSource{x: x, y: y, batchSize: batchSize}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		WithShuffleSeed(0)(s)
	}
	s.reshuffle()
	return s, nil
}

func (s *MatrixSource) reshuffle() {
	n, _ := s.x.Dims()
	s.perm = s.rng.Perm(n)
	s.pos = 0
}

// Next returns the next batch of batchSize rows. A pass that cannot fill a
// whole batch starts a fresh shuffle.
func (s *MatrixSource) Next() (*mat.Dense, *mat.Dense, error) {
	if s.pos+s.batchSize > len(s.perm) {
		s.reshuffle()
	}
	idx := s.perm[s.pos : s.pos+s.batchSize]
	s.pos += s.batchSize

	x := gatherRows(s.x, idx)
	var y *mat.Dense
	if s.y != nil {
		y = gatherRows(s.y, idx)
	}
	return x, y, nil
}

// BatchNum returns the number of full batches per pass.
func (s *MatrixSource) BatchNum() int {
	return len(s.perm) / s.batchSize
}

// BatchSize returns the number of rows per batch.
func (s *MatrixSource) BatchSize() int {
	return s.batchSize
}

func gatherRows(m *mat.Dense, idx []int) *mat.Dense {
	_, c := m.Dims()
	out := mat.NewDense(len(idx), c, nil)
	for i, r := range idx {
		out.SetRow(i, m.RawRowView(r))
	}
	return out
}

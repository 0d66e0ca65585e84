package errors

import (
	"math"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/mat"
)

// エラーに含める非有限値の最大数
const maxReportedValues = 10

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// CheckScalar returns a NumericalInstabilityError if a loss or other scalar
// is NaN or ±Inf.
func CheckScalar(operation string, value float64, iteration int) error {
	if finite(value) {
		return nil
	}
	return NewNumericalInstabilityError(operation, []float64{value}, iteration)
}

// CheckSeries checks a per-row vector such as a batch of KL terms. The index
// of the first offending entry is stored under Context["index"].
func CheckSeries(operation string, values []float64, iteration int) error {
	first := -1
	var bad []float64
	for i, v := range values {
		if finite(v) {
			continue
		}
		if first < 0 {
			first = i
		}
		if len(bad) < maxReportedValues {
			bad = append(bad, v)
		}
	}
	if first < 0 {
		return nil
	}
	return instability(operation, bad, iteration, map[string]interface{}{"index": first})
}

// CheckMatrix checks every element of m. The position of the first
// offending element is stored under Context["row"] and Context["col"].
func CheckMatrix(operation string, m mat.Matrix, iteration int) error {
	rows, cols := m.Dims()
	firstRow, firstCol := -1, -1
	var bad []float64
	for i := 0; i < rows && len(bad) < maxReportedValues; i++ {
		for j := 0; j < cols && len(bad) < maxReportedValues; j++ {
			if v := m.At(i, j); !finite(v) {
				if firstRow < 0 {
					firstRow, firstCol = i, j
				}
				bad = append(bad, v)
			}
		}
	}
	if firstRow < 0 {
		return nil
	}
	return instability(operation, bad, iteration, map[string]interface{}{"row": firstRow, "col": firstCol})
}

func instability(operation string, values []float64, iteration int, ctx map[string]interface{}) error {
	return errors.WithStack(&NumericalInstabilityError{
		Operation: operation,
		Values:    values,
		Iteration: iteration,
		Context:   ctx,
	})
}

// ClipValue clips value to [lo, hi].
func ClipValue(value, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, value))
}

// Package metrics provides regression metrics over gonum matrices. Targets
// are n×d matrices; multi-output scores are averaged uniformly over the d
// columns.
package metrics

import (
	"math"

	"github.com/YuminosukeSato/ssvae/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// checkPair は yTrue と yPred の形状を検証する
func checkPair(op string, yTrue, yPred mat.Matrix) (rows, cols int, err error) {
	rows, cols = yTrue.Dims()
	if rows == 0 || cols == 0 {
		return 0, 0, errors.NewValueError(op, "empty input")
	}
	pr, pc := yPred.Dims()
	if pr != rows {
		return 0, 0, errors.NewDimensionError(op, rows, pr, 0)
	}
	if pc != cols {
		return 0, 0, errors.NewDimensionError(op, cols, pc, 1)
	}
	return rows, cols, nil
}

func residuals(yTrue, yPred mat.Matrix) *mat.Dense {
	var diff mat.Dense
	diff.Sub(yTrue, yPred)
	return &diff
}

// MSE は全要素にわたる平均二乗誤差を計算する
func MSE(yTrue, yPred mat.Matrix) (float64, error) {
	rows, cols, err := checkPair("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	diff := residuals(yTrue, yPred)
	diff.MulElem(diff, diff)
	return mat.Sum(diff) / float64(rows*cols), nil
}

// RMSE は平方根平均二乗誤差を計算する
func RMSE(yTrue, yPred mat.Matrix) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE は全要素にわたる平均絶対誤差を計算する
func MAE(yTrue, yPred mat.Matrix) (float64, error) {
	rows, cols, err := checkPair("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	diff := residuals(yTrue, yPred)
	diff.Apply(func(_, _ int, v float64) float64 { return math.Abs(v) }, diff)
	return mat.Sum(diff) / float64(rows*cols), nil
}

// R2Score は列ごとの決定係数を計算し、その平均を返す。
// 分散ゼロの列があると ValueError を返す。
func R2Score(yTrue, yPred mat.Matrix) (float64, error) {
	rows, cols, err := checkPair("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	truth := make([]float64, rows)
	pred := make([]float64, rows)
	var sum float64
	for j := 0; j < cols; j++ {
		mat.Col(truth, j, yTrue)
		mat.Col(pred, j, yPred)
		if stat.Variance(truth, nil) == 0 {
			return 0, errors.NewValueError("R2Score", "total sum of squares is zero (no variance in yTrue)")
		}
		sum += stat.RSquaredFrom(pred, truth, nil)
	}
	return sum / float64(cols), nil
}

// GaussianNLL は予測分布 N(mean, exp(2*logStd)) の下での平均負対数尤度を計算する
// 行ごとに列方向の和を取り、行について平均する
func GaussianNLL(yTrue, mean, logStd mat.Matrix) (float64, error) {
	rows, cols, err := checkPair("GaussianNLL", yTrue, mean)
	if err != nil {
		return 0, err
	}
	if _, _, err := checkPair("GaussianNLL", yTrue, logStd); err != nil {
		return 0, err
	}

	halfLog2Pi := 0.5 * math.Log(2*math.Pi)
	var sum float64
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			d := yTrue.At(i, j) - mean.At(i, j)
			ls := logStd.At(i, j)
			sum += halfLog2Pi + ls + d*d/(2*math.Exp(2*ls))
		}
	}
	return sum / float64(rows), nil
}

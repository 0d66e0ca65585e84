package ssvae

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/YuminosukeSato/ssvae/core/model"
	"github.com/YuminosukeSato/ssvae/data"
	"github.com/YuminosukeSato/ssvae/diagnostics"
	"github.com/YuminosukeSato/ssvae/pkg/errors"
	"github.com/YuminosukeSato/ssvae/pkg/log"
	"gonum.org/v1/gonum/mat"
)

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		opts    []Option
		wantErr bool
	}{
		{"valid", Config{InputDim: 4, VAEDims: []int{8}, RegDims: []int{8}, LatentDim: 2}, nil, false},
		{"no hidden layers", Config{InputDim: 4, LatentDim: 2}, nil, false},
		{"zero input dim", Config{InputDim: 0, LatentDim: 2}, nil, true},
		{"negative latent dim", Config{InputDim: 4, LatentDim: -1}, nil, true},
		{"bad hidden width", Config{InputDim: 4, VAEDims: []int{8, 0}, LatentDim: 2}, nil, true},
		{"bad regressor width", Config{InputDim: 4, RegDims: []int{-3}, LatentDim: 2}, nil, true},
		{"bad learning rate", Config{InputDim: 4, LatentDim: 2}, []Option{WithLearningRate(0)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := log.NewTestLogger(log.LevelInfo)
			opts := append([]Option{WithLogger(logger), WithSeed(1)}, tt.opts...)
			r, err := New(tt.cfg, opts...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && r.Config().PredictionDim != DefaultPredictionDim {
				t.Errorf("PredictionDim = %d, want default %d", r.Config().PredictionDim, DefaultPredictionDim)
			}
		})
	}
}

func TestGetParams(t *testing.T) {
	r := newTestModel(t, WithAlpha(0.3), WithPreventorWeight(0.5))
	params := r.GetParams()
	if params["alpha"] != 0.3 || params["preventor_weight"] != 0.5 {
		t.Errorf("GetParams() = %v", params)
	}
	if params["random_state"] != int64(42) {
		t.Errorf("random_state = %v, want 42", params["random_state"])
	}
	if params["activation"] != "relu" {
		t.Errorf("activation = %v, want relu", params["activation"])
	}
}

// scenario builds the input_dim=4, vae_dims=[8], latent_dim=2 model with
// one labeled and one unlabeled batch of two rows.
func scenario(t *testing.T, opts ...Option) (*Regressor, *data.MatrixSource, *data.MatrixSource, *log.TestLogger) {
	t.Helper()
	logger, _ := log.NewTestLogger(log.LevelDebug)
	opts = append([]Option{WithSeed(7), WithLogger(logger)}, opts...)
	r, err := New(Config{
		InputDim:      4,
		VAEDims:       []int{8},
		RegDims:       []int{8},
		LatentDim:     2,
		PredictionDim: 1,
	}, opts...)
	if err != nil {
		t.Fatalf("Failed to build model: %v", err)
	}

	xl := mat.NewDense(2, 4, []float64{
		0.1, 0.4, 0.7, 0.2,
		0.9, 0.3, 0.5, 0.6,
	})
	y := mat.NewDense(2, 1, []float64{0.5, 1.2})
	xu := mat.NewDense(2, 4, []float64{
		0.2, 0.8, 0.1, 0.4,
		0.6, 0.5, 0.3, 0.9,
	})
	labeled, err := data.NewMatrixSource(xl, y, 2, data.WithShuffleSeed(1))
	if err != nil {
		t.Fatal(err)
	}
	unlabeled, err := data.NewMatrixSource(xu, nil, 2, data.WithShuffleSeed(2))
	if err != nil {
		t.Fatal(err)
	}
	return r, labeled, unlabeled, logger
}

func TestTrainEndToEnd(t *testing.T) {
	r, labeled, unlabeled, logger := scenario(t)

	status, err := r.Train(context.Background(), labeled, unlabeled, 1, nil)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if status != Completed || r.Status() != Completed {
		t.Errorf("status = %v, want completed", status)
	}
	if r.Epoch() != 1 {
		t.Errorf("epoch counter = %d, want 1", r.Epoch())
	}

	rec := r.Record()
	if rec.Len() != 1 {
		t.Fatalf("record has %d steps, want 1", rec.Len())
	}
	for _, name := range diagnostics.SeriesNames {
		v := rec.Series(name)[0]
		if name == diagnostics.ValidationMSE {
			if !math.IsNaN(v) {
				t.Errorf("mse without validation = %v, want NaN", v)
			}
			continue
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("series %s = %v, want finite", name, v)
		}
	}
	if rows, cols := rec.Mus[0].Dims(); rows != 2 || cols != 2 {
		t.Errorf("latent snapshot = %dx%d, want 2x2", rows, cols)
	}
	if !mat.Equal(rec.Ys[0], mat.NewDense(2, 1, []float64{0.5, 1.2})) && !mat.Equal(rec.Ys[0], mat.NewDense(2, 1, []float64{1.2, 0.5})) {
		t.Errorf("target snapshot = %v", mat.Formatted(rec.Ys[0]))
	}
	if !logger.ContainsMessage("Training finished") {
		t.Error("missing completion log")
	}
	if !logger.ContainsField(log.StatusKey, "completed") {
		t.Error("completion log must carry the status")
	}

	// エポック数は呼び出しをまたいで累積する
	if _, err := r.Train(context.Background(), labeled, unlabeled, 2, nil); err != nil {
		t.Fatalf("second Train: %v", err)
	}
	if r.Epoch() != 3 || rec.Len() != 3 {
		t.Errorf("after resume: epoch %d, steps %d; want 3, 3", r.Epoch(), rec.Len())
	}
}

func TestTrainWithValidation(t *testing.T) {
	r, labeled, unlabeled, _ := scenario(t)
	valid := &data.Validation{
		X: mat.NewDense(3, 4, []float64{
			0.1, 0.2, 0.3, 0.4,
			0.5, 0.6, 0.7, 0.8,
			0.9, 0.1, 0.2, 0.3,
		}),
		Y: mat.NewDense(3, 1, []float64{0.4, 0.9, 0.2}),
	}

	if _, err := r.Train(context.Background(), labeled, unlabeled, 3, valid); err != nil {
		t.Fatalf("Train: %v", err)
	}
	for i, v := range r.Record().Series(diagnostics.ValidationMSE) {
		if math.IsNaN(v) || v < 0 {
			t.Errorf("mse[%d] = %v", i, v)
		}
	}

	bad := &data.Validation{X: mat.NewDense(3, 5, nil), Y: mat.NewDense(3, 1, nil)}
	if _, err := r.Train(context.Background(), labeled, unlabeled, 1, bad); err == nil {
		t.Error("expected dimension error for validation features")
	}
}

// cancellingSource cancels a context after a number of batches.
type cancellingSource struct {
	data.Source
	after  int
	calls  int
	cancel context.CancelFunc
}

func (s *cancellingSource) Next() (*mat.Dense, *mat.Dense, error) {
	s.calls++
	if s.calls == s.after {
		s.cancel()
	}
	return s.Source.Next()
}

func TestTrainInterrupted(t *testing.T) {
	t.Run("cancelled before start", func(t *testing.T) {
		r, labeled, unlabeled, _ := scenario(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		status, err := r.Train(ctx, labeled, unlabeled, 5, nil)
		if err != nil {
			t.Fatalf("interruption must not be an error, got %v", err)
		}
		if status != Interrupted {
			t.Errorf("status = %v, want interrupted", status)
		}
		if r.Epoch() != 0 || r.Record().Len() != 0 {
			t.Errorf("epoch %d, steps %d; want 0, 0", r.Epoch(), r.Record().Len())
		}
		if r.IsFitted() {
			t.Error("a model without any step must not be fitted")
		}
	})

	t.Run("cancelled during the final step", func(t *testing.T) {
		r, labeled, unlabeled, _ := scenario(t)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		src := &cancellingSource{Source: labeled, after: 2, cancel: cancel}

		status, err := r.Train(ctx, src, unlabeled, 2, nil)
		if err != nil {
			t.Fatalf("Train: %v", err)
		}
		if status != Completed || r.Status() != Completed {
			t.Errorf("status = %v, want completed", status)
		}
		if r.Epoch() != 2 || r.Record().Len() != 2 {
			t.Errorf("epoch %d, steps %d; want 2, 2", r.Epoch(), r.Record().Len())
		}
	})

	t.Run("cancelled mid-run", func(t *testing.T) {
		plot := filepath.Join(t.TempDir(), "interrupted.png")
		r, labeled, unlabeled, _ := scenario(t, WithPlotOnFinish(plot))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		src := &cancellingSource{Source: labeled, after: 3, cancel: cancel}

		status, err := r.Train(ctx, src, unlabeled, 10, nil)
		if err != nil {
			t.Fatalf("Train: %v", err)
		}
		if status != Interrupted {
			t.Errorf("status = %v, want interrupted", status)
		}
		if r.Record().Len() != 3 {
			t.Errorf("steps = %d, want 3", r.Record().Len())
		}
		if _, err := os.Stat(plot); err != nil {
			t.Errorf("diagnostics not written on interruption: %v", err)
		}
	})
}

func TestPlotOnFinishFailureKeepsStatus(t *testing.T) {
	plot := filepath.Join(t.TempDir(), "missing", "figure.png")
	r, labeled, unlabeled, logger := scenario(t, WithPlotOnFinish(plot))

	status, err := r.Train(context.Background(), labeled, unlabeled, 1, nil)
	if err != nil {
		t.Fatalf("a render failure must not fail training: %v", err)
	}
	if status != Completed || r.Status() != Completed {
		t.Errorf("status = %v, want completed", status)
	}
	if !logger.ContainsMessage("Failed to render diagnostics") {
		t.Error("render failure should be logged")
	}
}

func TestTrainArgumentErrors(t *testing.T) {
	r, labeled, unlabeled, _ := scenario(t)
	ctx := context.Background()

	if _, err := r.Train(ctx, nil, unlabeled, 1, nil); err == nil {
		t.Error("expected error for missing labeled source")
	}
	if _, err := r.Train(ctx, labeled, unlabeled, 0, nil); err == nil {
		t.Error("expected error for zero epochs")
	}

	wrong, _ := data.NewMatrixSource(mat.NewDense(2, 3, nil), mat.NewDense(2, 1, nil), 2)
	status, err := r.Train(ctx, wrong, unlabeled, 1, nil)
	var dimErr *errors.DimensionError
	if !errors.As(err, &dimErr) {
		t.Fatalf("expected DimensionError, got %v", err)
	}
	if status != Failed {
		t.Errorf("status = %v, want failed", status)
	}
}

func TestPredict(t *testing.T) {
	r, labeled, unlabeled, _ := scenario(t)
	x := mat.NewDense(3, 4, []float64{
		0.1, 0.2, 0.3, 0.4,
		0.5, 0.6, 0.7, 0.8,
		0.9, 0.1, 0.2, 0.3,
	})

	_, _, err := r.Predict(x)
	var nf *errors.NotFittedError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFittedError, got %v", err)
	}

	if _, err := r.Train(context.Background(), labeled, unlabeled, 2, nil); err != nil {
		t.Fatal(err)
	}

	mean, logStd, err := r.Predict(x)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if rows, cols := mean.Dims(); rows != 3 || cols != 1 {
		t.Errorf("mean = %dx%d, want 3x1", rows, cols)
	}
	if rows, cols := logStd.Dims(); rows != 3 || cols != 1 {
		t.Errorf("logStd = %dx%d, want 3x1", rows, cols)
	}

	// 推論はサンプリングを行わないので決定的
	mean2, logStd2, _ := r.Predict(x)
	if !mat.Equal(mean, mean2) || !mat.Equal(logStd, logStd2) {
		t.Error("Predict must be deterministic")
	}

	z, err := r.Encode(x)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if rows, cols := z.Dims(); rows != 3 || cols != 2 {
		t.Errorf("Encode = %dx%d, want 3x2", rows, cols)
	}

	if _, _, err := r.Predict(mat.NewDense(2, 3, nil)); err == nil {
		t.Error("expected dimension error")
	} else {
		var dimErr *errors.DimensionError
		if !errors.As(err, &dimErr) || dimErr.Expected != 4 || dimErr.Got != 3 {
			t.Errorf("unexpected error %v", err)
		}
	}

	nan := mat.DenseCopyOf(x)
	nan.Set(1, 2, math.NaN())
	var numErr *errors.NumericalInstabilityError
	if _, _, err := r.Predict(nan); !errors.As(err, &numErr) {
		t.Errorf("expected NumericalInstabilityError for NaN input, got %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	r, labeled, unlabeled, _ := scenario(t)
	if _, err := r.Train(context.Background(), labeled, unlabeled, 3, nil); err != nil {
		t.Fatal(err)
	}
	dir := filepath.Join(t.TempDir(), "ckpt")
	if err := r.Save(dir); err != nil {
		t.Fatalf("Save: %v", err)
	}
	for _, name := range []string{model.TensorFile, model.ManifestFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}

	// 別の乱数シードで作った新しいインスタンスに復元する
	fresh, _, _, _ := scenario(t, WithSeed(99))
	if err := fresh.Load(dir); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if fresh.Epoch() != 3 {
		t.Errorf("restored epoch = %d, want 3", fresh.Epoch())
	}

	x := mat.NewDense(2, 4, []float64{
		0.3, 0.1, 0.8, 0.5,
		0.7, 0.9, 0.2, 0.4,
	})
	wantMean, wantLogStd, err := r.Predict(x)
	if err != nil {
		t.Fatal(err)
	}
	gotMean, gotLogStd, err := fresh.Predict(x)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.Equal(wantMean, gotMean) || !mat.Equal(wantLogStd, gotLogStd) {
		t.Errorf("restored predictions differ:\n%v\n%v", mat.Formatted(wantMean), mat.Formatted(gotMean))
	}

	// オプティマイザの状態も復元される
	if fresh.labeledOpt.Steps() != r.labeledOpt.Steps() {
		t.Errorf("optimiser steps = %d, want %d", fresh.labeledOpt.Steps(), r.labeledOpt.Steps())
	}
}

func TestLoadRejectsIncompatibleCheckpoint(t *testing.T) {
	r, labeled, unlabeled, _ := scenario(t)
	if _, err := r.Train(context.Background(), labeled, unlabeled, 1, nil); err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	if err := r.Save(dir); err != nil {
		t.Fatal(err)
	}

	logger, _ := log.NewTestLogger(log.LevelInfo)
	other, err := New(Config{InputDim: 4, VAEDims: []int{6}, RegDims: []int{8}, LatentDim: 2},
		WithSeed(3), WithLogger(logger))
	if err != nil {
		t.Fatal(err)
	}
	before := snapshot(other.checkpointVariables())

	err = other.Load(dir)
	var ckptErr *errors.CheckpointError
	if !errors.As(err, &ckptErr) {
		t.Fatalf("expected CheckpointError, got %v", err)
	}
	for _, p := range other.checkpointVariables() {
		for i, v := range p.Value.RawMatrix().Data {
			if v != before[p.Name][i] {
				t.Fatalf("%s modified by a failed load", p.Name)
			}
		}
	}
	if other.IsFitted() {
		t.Error("a failed load must not mark the model fitted")
	}

	if err := other.Load(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing checkpoint")
	}
}

func TestPlotInfo(t *testing.T) {
	r, labeled, unlabeled, _ := scenario(t)
	if _, err := r.Train(context.Background(), labeled, unlabeled, 2, nil); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "info.png")
	if err := r.PlotInfo(path); err != nil {
		t.Fatalf("PlotInfo: %v", err)
	}
	if info, err := os.Stat(path); err != nil || info.Size() == 0 {
		t.Errorf("figure not written: %v", err)
	}
}

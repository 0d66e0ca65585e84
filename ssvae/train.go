package ssvae

import (
	"context"
	"math"
	"time"

	"github.com/YuminosukeSato/ssvae/data"
	"github.com/YuminosukeSato/ssvae/diagnostics"
	"github.com/YuminosukeSato/ssvae/metrics"
	"github.com/YuminosukeSato/ssvae/pkg/errors"
	"github.com/YuminosukeSato/ssvae/pkg/log"
	"gonum.org/v1/gonum/mat"
)

// Status is the state of the training state machine.
type Status int

const (
	// Idle はまだ学習が開始されていない状態
	Idle Status = iota
	// Running は学習中
	Running
	// Completed は要求されたエポック数を完了した状態
	Completed
	// Interrupted はキャンセルにより途中で停止した状態
	Interrupted
	// Failed はエラーで停止した状態
	Failed
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Interrupted:
		return "interrupted"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Train runs epochs passes of labeled.BatchNum() steps. Each step pulls one
// labeled and one unlabeled batch and applies, in order, the labeled update,
// the preventor update and the unlabeled update.
//
// Cancelling ctx stops training at the next step boundary; Train then
// returns Interrupted and a nil error. A cancellation that arrives during
// the last step of the last epoch leaves nothing to stop, so the run is
// Completed. The epoch counter continues across calls.
//
// With WithPlotOnFinish the figure is rendered before returning; a render
// failure is logged and does not change the returned status or error.
func (r *Regressor) Train(ctx context.Context, labeled, unlabeled data.Source, epochs int, valid *data.Validation) (status Status, err error) {
	if labeled == nil || unlabeled == nil {
		return Idle, errors.NewValueError("Train", "labeled and unlabeled sources are required")
	}
	if epochs <= 0 {
		return Idle, errors.NewValidationError("epochs", "must be positive", epochs)
	}
	if labeled.BatchNum() <= 0 {
		return Idle, errors.NewValidationError("batch_num", "labeled source must yield at least one batch per epoch", labeled.BatchNum())
	}
	if valid != nil {
		if err := valid.Validate(); err != nil {
			return Idle, err
		}
		if err := r.checkInput("Train", valid.X); err != nil {
			return Idle, err
		}
		if _, c := valid.Y.Dims(); c != r.cfg.PredictionDim {
			return Idle, errors.NewDimensionError("Train", r.cfg.PredictionDim, c, 1)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	logger := r.logger.With(log.OperationKey, log.OperationFit, log.PhaseKey, log.PhaseTraining)
	r.setStatus(Running)
	status = Failed
	defer func() {
		r.setStatus(status)
	}()
	defer errors.Recover(&err, "Train")

	start := time.Now()
	startEpoch := r.state.Epoch()
	target := startEpoch + epochs
	steps := 0

	finish := func(s Status) (Status, error) {
		logger.Info("Training finished",
			log.StatusKey, s.String(),
			log.EpochKey, r.state.Epoch(),
			log.StepKey, steps,
			log.DurationMsKey, time.Since(start).Milliseconds(),
		)
		// 図の出力失敗は学習結果を変えない
		if r.plotOnFinish && steps > 0 {
			if _, err := diagnostics.Save(r.record, r.plotPath); err != nil {
				logger.Error("Failed to render diagnostics", err, log.PathKey, r.plotPath)
			}
		}
		return s, nil
	}

	interrupted := false
loop:
	for e := 0; e < epochs; e++ {
		for i := 0; i < labeled.BatchNum(); i++ {
			if ctx.Err() != nil {
				interrupted = true
				break loop
			}
			step, err := r.trainStep(labeled, unlabeled, valid)
			if err != nil {
				logger.Error("Training step failed", err, log.EpochKey, r.state.Epoch(), log.StepKey, i)
				return Failed, err
			}
			steps++
			r.state.SetFitted()
			r.logProgress(logger, step, target)
		}
		epoch := r.state.NextEpoch()
		logger.Debug("Epoch finished", log.EpochKey, epoch)
	}

	if interrupted {
		logger.Warn("Training interrupted", log.EpochKey, r.state.Epoch())
		status, err = finish(Interrupted)
		return status, err
	}
	status, err = finish(Completed)
	return status, err
}

// trainStep pulls one labeled and one unlabeled batch and applies the three
// updates.
func (r *Regressor) trainStep(labeled, unlabeled data.Source, valid *data.Validation) (diagnostics.Step, error) {
	var step diagnostics.Step

	xl, y, err := labeled.Next()
	if err != nil {
		return step, errors.Wrap(err, "labeled source")
	}
	xu, _, err := unlabeled.Next()
	if err != nil {
		return step, errors.Wrap(err, "unlabeled source")
	}
	if err := r.checkBatch(xl, y, xu); err != nil {
		return step, err
	}

	ls, err := r.labeledUpdate(xl, y)
	if err != nil {
		return step, err
	}
	prevent, err := r.preventUpdate(xl, y)
	if err != nil {
		return step, err
	}
	us, err := r.unlabeledUpdate(xu)
	if err != nil {
		return step, err
	}

	mse := math.NaN()
	if valid != nil {
		mean, _ := r.predict(valid.X)
		if mse, err = metrics.MSE(valid.Y, mean); err != nil {
			return step, err
		}
	}

	step = diagnostics.Step{
		LossL:      ls.loss,
		RecL:       ls.rec,
		KLDZL:      ls.kldZ,
		LogDenseYL: ls.logDensity,
		LossUL:     us.loss,
		RecUL:      us.rec,
		KLDZUL:     us.kldZ,
		KLDYUL:     us.kldY,
		MSE:        mse,
		Prevent:    prevent,
	}
	r.record.Append(step, us.zMean, mat.DenseCopyOf(y))
	rows, _ := xl.Dims()
	urows, _ := xu.Dims()
	r.state.AddSamples(rows + urows)
	return step, nil
}

// logProgress emits the per-step progress line. Verbose models log it at
// info level, others at debug.
func (r *Regressor) logProgress(logger log.Logger, s diagnostics.Step, target int) {
	emit := logger.Debug
	if r.verbose {
		emit = logger.Info
	}
	fields := []any{
		log.EpochKey, r.state.Epoch(),
		"training.target_epoch", target,
		log.LossKey, s.LossL + s.LossUL,
		log.KLDKey, s.KLDZL + s.KLDZUL,
		log.ReconstructionKey, s.RecL + s.RecUL,
		log.LogDensityKey, s.LogDenseYL,
		log.KLDTargetKey, s.KLDYUL,
		log.PreventLossKey, s.Prevent,
	}
	if !math.IsNaN(s.MSE) {
		fields = append(fields, log.MSEKey, s.MSE)
	}
	emit("Training step", fields...)
}

func (r *Regressor) checkInput(op string, x *mat.Dense) error {
	if x == nil {
		return errors.NewValueError(op, "input is nil")
	}
	rows, cols := x.Dims()
	if rows == 0 {
		return errors.ErrEmptyData
	}
	if cols != r.cfg.InputDim {
		return errors.NewDimensionError(op, r.cfg.InputDim, cols, 1)
	}
	return errors.CheckMatrix(op, x, r.state.Epoch())
}

func (r *Regressor) checkBatch(xl, y, xu *mat.Dense) error {
	if err := r.checkInput("labeled batch", xl); err != nil {
		return err
	}
	if err := r.checkInput("unlabeled batch", xu); err != nil {
		return err
	}
	if y == nil {
		return errors.NewValueError("labeled batch", "targets are required")
	}
	xr, _ := xl.Dims()
	yr, yc := y.Dims()
	if yr != xr {
		return errors.NewDimensionError("labeled batch", xr, yr, 0)
	}
	if yc != r.cfg.PredictionDim {
		return errors.NewDimensionError("labeled batch", r.cfg.PredictionDim, yc, 1)
	}
	return nil
}

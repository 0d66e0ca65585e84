package ssvae

import (
	"encoding/json"
	"path/filepath"

	"github.com/YuminosukeSato/ssvae/core/model"
	"github.com/YuminosukeSato/ssvae/diagnostics"
	"github.com/YuminosukeSato/ssvae/nn"
	"github.com/YuminosukeSato/ssvae/pkg/errors"
	"github.com/YuminosukeSato/ssvae/pkg/log"
)

// checkpointConfig is the structural part of the manifest. A checkpoint can
// only be restored into a model with the same configuration.
type checkpointConfig struct {
	Config
	Activation string `json:"activation"`
}

// checkpointVariables lists every tensor written to a checkpoint: network
// parameters and running statistics, then the optimiser slots.
func (r *Regressor) checkpointVariables() []*nn.Param {
	vars := r.registry.Variables()
	for _, opt := range []*nn.Adam{r.labeledOpt, r.unlabeledOpt, r.preventOpt} {
		vars = append(vars, opt.State()...)
	}
	return vars
}

// Save writes the model to dir (created if absent) as model.ckpt, the
// tensors in protobuf wire format, and model.json, the manifest.
func (r *Regressor) Save(dir string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg, err := json.Marshal(checkpointConfig{Config: r.cfg, Activation: r.activation.Name})
	if err != nil {
		return errors.NewCheckpointError(dir, "", "failed to encode configuration", err)
	}

	vars := r.checkpointVariables()
	tensors := make([]model.Tensor, 0, len(vars))
	for _, p := range vars {
		rows, cols := p.Shape()
		data := make([]float64, rows*cols)
		copy(data, p.Value.RawMatrix().Data)
		tensors = append(tensors, model.Tensor{Name: p.Name, Rows: rows, Cols: cols, Data: data})
	}

	manifest := &model.Manifest{
		ModelType:       ModelType,
		Config:          cfg,
		Hyperparameters: r.GetParams(),
		State:           r.state.GetState(),
	}
	if err := model.SaveCheckpoint(dir, manifest, tensors); err != nil {
		r.logger.Error("Failed to save checkpoint", err, log.PathKey, dir)
		return err
	}
	r.logger.Info("Checkpoint saved",
		log.OperationKey, log.OperationSave,
		log.PathKey, dir,
		log.EpochKey, r.state.Epoch(),
	)
	return nil
}

// Load restores parameters, running statistics, optimiser slots and the
// epoch counter from dir. Every tensor is checked against the model before
// anything is written; on any mismatch a CheckpointError is returned and the
// model is left untouched.
func (r *Regressor) Load(dir string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	manifest, tensors, err := model.LoadCheckpoint(dir)
	if err != nil {
		r.logger.Error("Failed to load checkpoint", err, log.PathKey, dir)
		return err
	}
	manifestPath := filepath.Join(dir, model.ManifestFile)
	if manifest.ModelType != ModelType {
		return errors.NewCheckpointError(manifestPath, "", "checkpoint holds a "+manifest.ModelType, nil)
	}

	var saved checkpointConfig
	if err := json.Unmarshal(manifest.Config, &saved); err != nil {
		return errors.NewCheckpointError(manifestPath, "", "failed to decode configuration", err)
	}
	if !saved.Config.equal(r.cfg) {
		return errors.NewCheckpointError(manifestPath, "", "model configuration does not match checkpoint", nil)
	}
	if saved.Activation != r.activation.Name {
		return errors.NewCheckpointError(manifestPath, "", "activation "+saved.Activation+" does not match "+r.activation.Name, nil)
	}

	tensorPath := filepath.Join(dir, model.TensorFile)
	vars := r.checkpointVariables()
	for _, p := range vars {
		t, ok := tensors[p.Name]
		if !ok {
			return errors.NewCheckpointError(tensorPath, p.Name, "tensor not found in checkpoint", nil)
		}
		rows, cols := p.Shape()
		if t.Rows != rows || t.Cols != cols {
			return errors.NewCheckpointError(tensorPath, p.Name, "incompatible tensor shape", nil)
		}
	}

	for _, p := range vars {
		copy(p.Value.RawMatrix().Data, tensors[p.Name].Data)
		p.ZeroGrad()
	}
	r.state.SetState(manifest.State)
	r.state.SetFitted()

	r.logger.Info("Checkpoint loaded",
		log.OperationKey, log.OperationLoad,
		log.PathKey, dir,
		log.EpochKey, r.state.Epoch(),
	)
	return nil
}

// PlotInfo renders the nine-panel diagnostics figure of the training record
// to filename, or to diagnostics.png when filename is empty.
func (r *Regressor) PlotInfo(filename string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	path, err := diagnostics.Save(r.record, filename)
	if err != nil {
		r.logger.Error("Failed to render diagnostics", err, log.PathKey, path)
		return err
	}
	r.logger.Info("Diagnostics written", log.OperationKey, log.OperationPlot, log.PathKey, path)
	return nil
}

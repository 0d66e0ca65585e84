package model

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/YuminosukeSato/ssvae/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

func sampleTensors() []Tensor {
	return []Tensor{
		{Name: "encoder/weights", Rows: 2, Cols: 3, Data: []float64{1, -2, 3.5, math.Pi, 0, -1e-9}},
		{Name: "encoder/beta", Rows: 1, Cols: 1, Data: []float64{0.25}},
	}
}

func TestWriteReadTensors(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteTensors(&buf, sampleTensors()); err != nil {
		t.Fatalf("WriteTensors: %v", err)
	}
	got, err := ReadTensors(&buf)
	if err != nil {
		t.Fatalf("ReadTensors: %v", err)
	}
	want := sampleTensors()
	if len(got) != len(want) {
		t.Fatalf("got %d tensors, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Spec() != want[i].Spec() {
			t.Errorf("tensor %d spec = %+v, want %+v", i, got[i].Spec(), want[i].Spec())
		}
		for j := range want[i].Data {
			if got[i].Data[j] != want[i].Data[j] {
				t.Errorf("tensor %d data[%d] = %v, want %v", i, j, got[i].Data[j], want[i].Data[j])
			}
		}
	}
}

func TestReadTensorsSkipsUnknownFields(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteTensors(&buf, sampleTensors()[1:]); err != nil {
		t.Fatalf("WriteTensors: %v", err)
	}
	b := protowire.AppendTag(nil, 15, protowire.VarintType)
	b = protowire.AppendVarint(b, 42)
	b = append(b, buf.Bytes()...)

	got, err := ReadTensors(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("ReadTensors: %v", err)
	}
	if len(got) != 1 || got[0].Name != "encoder/beta" {
		t.Errorf("unexpected tensors %+v", got)
	}
}

func TestWriteTensorsRejectsBadShape(t *testing.T) {
	var buf bytes.Buffer
	err := WriteTensors(&buf, []Tensor{{Name: "x", Rows: 2, Cols: 2, Data: []float64{1}}})
	if err == nil {
		t.Fatal("expected shape error")
	}
}

func TestSaveLoadCheckpoint(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "ckpt")
	cfg, _ := json.Marshal(map[string]int{"input_dim": 3})
	manifest := &Manifest{
		ModelType:       "Test",
		Config:          cfg,
		Hyperparameters: map[string]interface{}{"alpha": 0.1},
		State:           ModelState{Fitted: true, Epoch: 4},
	}
	if err := SaveCheckpoint(dir, manifest, sampleTensors()); err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}

	loaded, tensors, err := LoadCheckpoint(dir)
	if err != nil {
		t.Fatalf("LoadCheckpoint: %v", err)
	}
	if loaded.State.Epoch != 4 || !loaded.State.Fitted {
		t.Errorf("state = %+v", loaded.State)
	}
	if len(loaded.Tensors) != 2 {
		t.Errorf("manifest lists %d tensors, want 2", len(loaded.Tensors))
	}
	if tensors["encoder/beta"].Data[0] != 0.25 {
		t.Errorf("beta = %v", tensors["encoder/beta"].Data)
	}
	clone := loaded.Clone()
	clone.Tensors[0].Rows = 99
	if loaded.Tensors[0].Rows == 99 {
		t.Error("Clone must not share tensor specs")
	}
}

func TestLoadCheckpointRejectsMismatch(t *testing.T) {
	dir := t.TempDir()
	manifest := &Manifest{ModelType: "Test"}
	if err := SaveCheckpoint(dir, manifest, sampleTensors()); err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}

	// マニフェストの形状を書き換えてテンソルファイルと矛盾させる
	manifest.Tensors[0].Cols = 4
	data, err := manifest.ToJSON()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), data, 0o644); err != nil {
		t.Fatal(err)
	}

	_, _, err = LoadCheckpoint(dir)
	var ckptErr *errors.CheckpointError
	if !errors.As(err, &ckptErr) {
		t.Fatalf("expected CheckpointError, got %v", err)
	}
	if ckptErr.Tensor != "encoder/weights" {
		t.Errorf("tensor = %q, want encoder/weights", ckptErr.Tensor)
	}
}

func TestLoadCheckpointMissingDir(t *testing.T) {
	_, _, err := LoadCheckpoint(filepath.Join(t.TempDir(), "absent"))
	var ckptErr *errors.CheckpointError
	if !errors.As(err, &ckptErr) {
		t.Fatalf("expected CheckpointError, got %v", err)
	}
}

func TestManifestValidate(t *testing.T) {
	tests := []struct {
		name    string
		m       Manifest
		wantErr bool
	}{
		{"valid", Manifest{ModelType: "m", Version: ManifestVersion, Tensors: []TensorSpec{{"a", 1, 1}}}, false},
		{"missing type", Manifest{Version: ManifestVersion}, true},
		{"wrong version", Manifest{ModelType: "m", Version: "0"}, true},
		{"bad shape", Manifest{ModelType: "m", Version: ManifestVersion, Tensors: []TensorSpec{{"a", 0, 1}}}, true},
		{"duplicate", Manifest{ModelType: "m", Version: ManifestVersion, Tensors: []TensorSpec{{"a", 1, 1}, {"a", 1, 1}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.m.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStateManager(t *testing.T) {
	s := NewStateManager()
	if err := s.RequireFitted("Model", "Predict"); err == nil {
		t.Fatal("expected NotFittedError")
	} else {
		var nf *errors.NotFittedError
		if !errors.As(err, &nf) || nf.Method != "Predict" {
			t.Errorf("unexpected error %v", err)
		}
	}

	s.SetDimensions(4, 1)
	s.AddSamples(10)
	s.AddSamples(5)
	if s.NextEpoch() != 1 || s.NextEpoch() != 2 {
		t.Error("epoch counter must increase by one")
	}
	s.SetFitted()

	state := s.GetState()
	restored := NewStateManager()
	restored.SetState(state)
	if !restored.IsFitted() || restored.Epoch() != 2 || restored.GetState().SamplesSeen != 15 {
		t.Errorf("restored state = %+v", restored.GetState())
	}
	f, tg := restored.GetDimensions()
	if f != 4 || tg != 1 {
		t.Errorf("dimensions = (%d, %d)", f, tg)
	}

	restored.Reset()
	if restored.IsFitted() || restored.Epoch() != 0 {
		t.Error("Reset must clear the state")
	}
}

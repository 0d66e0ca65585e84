package model

import (
	"encoding/json"

	"github.com/YuminosukeSato/ssvae/pkg/errors"
)

// ManifestVersion is the checkpoint layout version written by this package.
const ManifestVersion = "1"

// TensorSpec はチェックポイント内の1テンソルの名前と形状
type TensorSpec struct {
	Name string `json:"name"`
	Rows int    `json:"rows"`
	Cols int    `json:"cols"`
}

// Manifest はチェックポイントのメタデータ（シリアライゼーション用）
type Manifest struct {
	// ModelType はモデルの種類
	ModelType string `json:"model_type"`

	// Version はチェックポイント形式のバージョン（互換性チェック用）
	Version string `json:"version"`

	// Config はモデル固有の構成（次元、隠れ層の幅等）
	Config json.RawMessage `json:"config"`

	// Hyperparameters はモデルのハイパーパラメータ
	Hyperparameters map[string]interface{} `json:"hyperparameters"`

	// State は学習状態（エポック数等）
	State ModelState `json:"state"`

	// Tensors はテンソルファイルに含まれるテンソルの一覧
	Tensors []TensorSpec `json:"tensors"`
}

// ToJSON はManifestをJSON形式にシリアライズ
func (m *Manifest) ToJSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// FromJSON はJSON形式からManifestをデシリアライズ
func (m *Manifest) FromJSON(data []byte) error {
	return json.Unmarshal(data, m)
}

// Validate はManifestの妥当性を検証
func (m *Manifest) Validate() error {
	if m.ModelType == "" {
		return errors.New("model_type is required")
	}
	if m.Version != ManifestVersion {
		return errors.Newf("unsupported checkpoint version %q", m.Version)
	}
	seen := make(map[string]bool, len(m.Tensors))
	for _, t := range m.Tensors {
		if t.Rows <= 0 || t.Cols <= 0 {
			return errors.Newf("tensor %q has invalid shape %dx%d", t.Name, t.Rows, t.Cols)
		}
		if seen[t.Name] {
			return errors.Newf("tensor %q listed twice", t.Name)
		}
		seen[t.Name] = true
	}
	return nil
}

// Lookup はテンソル名から形状を検索
func (m *Manifest) Lookup(name string) (TensorSpec, bool) {
	for _, t := range m.Tensors {
		if t.Name == name {
			return t, true
		}
	}
	return TensorSpec{}, false
}

// Clone はManifestのディープコピーを作成
func (m *Manifest) Clone() *Manifest {
	clone := &Manifest{
		ModelType:       m.ModelType,
		Version:         m.Version,
		Config:          append(json.RawMessage(nil), m.Config...),
		Hyperparameters: make(map[string]interface{}, len(m.Hyperparameters)),
		State:           m.State,
		Tensors:         make([]TensorSpec, len(m.Tensors)),
	}
	copy(clone.Tensors, m.Tensors)
	for k, v := range m.Hyperparameters {
		clone.Hyperparameters[k] = v
	}
	return clone
}

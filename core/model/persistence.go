package model

import (
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/YuminosukeSato/ssvae/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// チェックポイントディレクトリ内のファイル名
const (
	TensorFile   = "model.ckpt"
	ManifestFile = "model.json"
)

// テンソルレコードのフィールド番号
//
//	message Checkpoint { repeated Tensor tensors = 1; }
//	message Tensor {
//	  string name = 1;
//	  uint64 rows = 2;
//	  uint64 cols = 3;
//	  repeated double data = 4 [packed = true];
//	}
const (
	fieldCheckpointTensor protowire.Number = 1
	fieldTensorName       protowire.Number = 1
	fieldTensorRows       protowire.Number = 2
	fieldTensorCols       protowire.Number = 3
	fieldTensorData       protowire.Number = 4
)

// Tensor は行優先の2次元テンソル
type Tensor struct {
	Name string
	Rows int
	Cols int
	Data []float64
}

// Spec はテンソルの名前と形状を返す
func (t Tensor) Spec() TensorSpec {
	return TensorSpec{Name: t.Name, Rows: t.Rows, Cols: t.Cols}
}

func appendTensor(b []byte, t Tensor) []byte {
	var msg []byte
	msg = protowire.AppendTag(msg, fieldTensorName, protowire.BytesType)
	msg = protowire.AppendString(msg, t.Name)
	msg = protowire.AppendTag(msg, fieldTensorRows, protowire.VarintType)
	msg = protowire.AppendVarint(msg, uint64(t.Rows))
	msg = protowire.AppendTag(msg, fieldTensorCols, protowire.VarintType)
	msg = protowire.AppendVarint(msg, uint64(t.Cols))

	packed := make([]byte, 0, 8*len(t.Data))
	for _, v := range t.Data {
		packed = protowire.AppendFixed64(packed, math.Float64bits(v))
	}
	msg = protowire.AppendTag(msg, fieldTensorData, protowire.BytesType)
	msg = protowire.AppendBytes(msg, packed)

	b = protowire.AppendTag(b, fieldCheckpointTensor, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

func consumeTensor(b []byte) (Tensor, error) {
	var t Tensor
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return t, protowire.ParseError(n)
		}
		b = b[n:]
		switch {
		case num == fieldTensorName && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return t, protowire.ParseError(n)
			}
			t.Name = v
			b = b[n:]
		case num == fieldTensorRows && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return t, protowire.ParseError(n)
			}
			t.Rows = int(v)
			b = b[n:]
		case num == fieldTensorCols && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return t, protowire.ParseError(n)
			}
			t.Cols = int(v)
			b = b[n:]
		case num == fieldTensorData && typ == protowire.BytesType:
			packed, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return t, protowire.ParseError(n)
			}
			for len(packed) > 0 {
				v, m := protowire.ConsumeFixed64(packed)
				if m < 0 {
					return t, protowire.ParseError(m)
				}
				t.Data = append(t.Data, math.Float64frombits(v))
				packed = packed[m:]
			}
			b = b[n:]
		default:
			// 未知のフィールドは読み飛ばす
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return t, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	if len(t.Data) != t.Rows*t.Cols {
		return t, errors.Newf("tensor %q: %d values for shape %dx%d", t.Name, len(t.Data), t.Rows, t.Cols)
	}
	return t, nil
}

// WriteTensors はテンソル列をprotobufワイヤ形式でwに書き込む
func WriteTensors(w io.Writer, tensors []Tensor) error {
	var b []byte
	for _, t := range tensors {
		if len(t.Data) != t.Rows*t.Cols {
			return errors.Newf("tensor %q: %d values for shape %dx%d", t.Name, len(t.Data), t.Rows, t.Cols)
		}
		b = appendTensor(b, t)
	}
	_, err := w.Write(b)
	return errors.Wrap(err, "failed to write tensors")
}

// ReadTensors はrからテンソル列を読み込む
func ReadTensors(r io.Reader) ([]Tensor, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read tensors")
	}
	var out []Tensor
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, errors.Wrap(protowire.ParseError(n), "malformed checkpoint")
		}
		b = b[n:]
		if num != fieldCheckpointTensor || typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, errors.Wrap(protowire.ParseError(n), "malformed checkpoint")
			}
			b = b[n:]
			continue
		}
		msg, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, errors.Wrap(protowire.ParseError(n), "malformed checkpoint")
		}
		t, err := consumeTensor(msg)
		if err != nil {
			return nil, errors.Wrap(err, "malformed tensor record")
		}
		out = append(out, t)
		b = b[n:]
	}
	return out, nil
}

// SaveCheckpoint はdirにマニフェストとテンソルファイルを書き込む
//
// マニフェストのTensorsはtensorsから生成される。dirが存在しない場合は作成する。
func SaveCheckpoint(dir string, manifest *Manifest, tensors []Tensor) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.NewCheckpointError(dir, "", "failed to create directory", err)
	}

	manifest.Version = ManifestVersion
	manifest.Tensors = manifest.Tensors[:0]
	for _, t := range tensors {
		manifest.Tensors = append(manifest.Tensors, t.Spec())
	}

	tensorPath := filepath.Join(dir, TensorFile)
	file, err := os.Create(tensorPath)
	if err != nil {
		return errors.NewCheckpointError(tensorPath, "", "failed to create file", err)
	}
	if err := WriteTensors(file, tensors); err != nil {
		file.Close()
		return errors.NewCheckpointError(tensorPath, "", "failed to encode tensors", err)
	}
	if err := file.Close(); err != nil {
		return errors.NewCheckpointError(tensorPath, "", "failed to close file", err)
	}

	data, err := manifest.ToJSON()
	if err != nil {
		return errors.NewCheckpointError(dir, "", "failed to encode manifest", err)
	}
	manifestPath := filepath.Join(dir, ManifestFile)
	if err := os.WriteFile(manifestPath, data, 0o644); err != nil {
		return errors.NewCheckpointError(manifestPath, "", "failed to write manifest", err)
	}
	return nil
}

// LoadCheckpoint はdirからマニフェストとテンソルを読み込み、両者の整合性を検証する
func LoadCheckpoint(dir string) (*Manifest, map[string]Tensor, error) {
	manifestPath := filepath.Join(dir, ManifestFile)
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, nil, errors.NewCheckpointError(manifestPath, "", "failed to read manifest", err)
	}
	manifest := &Manifest{}
	if err := manifest.FromJSON(data); err != nil {
		return nil, nil, errors.NewCheckpointError(manifestPath, "", "failed to decode manifest", err)
	}
	if err := manifest.Validate(); err != nil {
		return nil, nil, errors.NewCheckpointError(manifestPath, "", "invalid manifest", err)
	}

	tensorPath := filepath.Join(dir, TensorFile)
	file, err := os.Open(tensorPath)
	if err != nil {
		return nil, nil, errors.NewCheckpointError(tensorPath, "", "failed to open file", err)
	}
	defer file.Close()

	list, err := ReadTensors(file)
	if err != nil {
		return nil, nil, errors.NewCheckpointError(tensorPath, "", "failed to decode tensors", err)
	}

	tensors := make(map[string]Tensor, len(list))
	for _, t := range list {
		spec, ok := manifest.Lookup(t.Name)
		if !ok {
			return nil, nil, errors.NewCheckpointError(tensorPath, t.Name, "tensor missing from manifest", nil)
		}
		if spec != t.Spec() {
			return nil, nil, errors.NewCheckpointError(tensorPath, t.Name, "tensor shape disagrees with manifest", nil)
		}
		tensors[t.Name] = t
	}
	if len(tensors) != len(manifest.Tensors) {
		return nil, nil, errors.NewCheckpointError(tensorPath, "", "tensor file is missing entries listed in the manifest", nil)
	}
	return manifest, tensors, nil
}

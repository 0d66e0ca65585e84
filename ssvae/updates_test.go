package ssvae

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/YuminosukeSato/ssvae/nn"
	"github.com/YuminosukeSato/ssvae/pkg/log"
	"gonum.org/v1/gonum/mat"
)

// replaySampler replays a fixed noise sequence so that a loss can be
// re-evaluated under identical samples.
type replaySampler struct {
	values []float64
	pos    int
}

func newReplaySampler(n int, seed uint64) *replaySampler {
	rng := rand.New(rand.NewPCG(seed, seed))
	s := &replaySampler{values: make([]float64, n)}
	for i := range s.values {
		s.values[i] = rng.NormFloat64()
	}
	return s
}

func (s *replaySampler) Rand() float64 {
	v := s.values[s.pos%len(s.values)]
	s.pos++
	return v
}

func (s *replaySampler) reset() { s.pos = 0 }

func newTestModel(t *testing.T, opts ...Option) *Regressor {
	t.Helper()
	logger, _ := log.NewTestLogger(log.LevelDebug)
	opts = append([]Option{WithSeed(42), WithLogger(logger)}, opts...)
	r, err := New(Config{
		InputDim:  3,
		VAEDims:   []int{4},
		RegDims:   []int{3},
		LatentDim: 2,
	}, opts...)
	if err != nil {
		t.Fatalf("Failed to build model: %v", err)
	}
	return r
}

// checkLossGradients compares accumulated gradients of every parameter in
// params against central differences of loss.
func checkLossGradients(t *testing.T, r *Regressor, params []*nn.Param, loss func() float64) {
	t.Helper()
	r.registry.ZeroGrad()
	loss()

	analytic := make(map[string][]float64, len(params))
	for _, p := range params {
		analytic[p.Name] = append([]float64(nil), p.Grad.RawMatrix().Data...)
	}

	const h = 1e-6
	for _, p := range params {
		data := p.Value.RawMatrix().Data
		for i := range data {
			orig := data[i]
			data[i] = orig + h
			fp := loss()
			data[i] = orig - h
			fm := loss()
			data[i] = orig

			num := (fp - fm) / (2 * h)
			got := analytic[p.Name][i]
			if math.Abs(num-got) > 1e-4*math.Max(1, math.Abs(num)) {
				t.Errorf("%s[%d]: analytic %.8g, numeric %.8g", p.Name, i, got, num)
			}
		}
	}
}

func TestLabeledLossGradients(t *testing.T) {
	r := newTestModel(t, WithActivation(nn.Tanh))
	noise := newReplaySampler(64, 3)
	r.noise = noise
	x := unitInput(4, 3, 1)
	y := mat.NewDense(4, 1, []float64{0.5, 1.2, -0.3, 0.8})

	params := r.registry.Params(ScopeEncoder, ScopeRegressor, ScopeDecoder)
	checkLossGradients(t, r, params, func() float64 {
		noise.reset()
		st, err := r.labeledLoss(x, y)
		if err != nil {
			t.Fatal(err)
		}
		return st.loss
	})

	// プリベンターはラベル付き損失に寄与しない
	for _, p := range r.registry.Params(ScopePreventor) {
		if mat.Sum(p.Grad) != 0 {
			t.Errorf("%s received a gradient from the labeled loss", p.Name)
		}
	}
}

func TestUnlabeledLossGradients(t *testing.T) {
	r := newTestModel(t, WithActivation(nn.Tanh))
	noise := newReplaySampler(64, 5)
	r.noise = noise
	x := unitInput(4, 3, 2)

	params := r.registry.Params(ScopeEncoder, ScopeRegressor, ScopeDecoder)
	checkLossGradients(t, r, params, func() float64 {
		noise.reset()
		st, err := r.unlabeledLoss(x)
		if err != nil {
			t.Fatal(err)
		}
		return st.loss
	})
}

func TestPreventLossGradients(t *testing.T) {
	r := newTestModel(t, WithActivation(nn.Tanh))
	noise := newReplaySampler(64, 7)
	r.noise = noise
	x := unitInput(4, 3, 3)
	y := mat.NewDense(4, 1, []float64{0.5, 1.2, -0.3, 0.8})

	params := r.registry.Params(ScopePreventor, ScopeEncoder)
	checkLossGradients(t, r, params, func() float64 {
		noise.reset()
		loss, err := r.preventLoss(x, y)
		if err != nil {
			t.Fatal(err)
		}
		return loss
	})
}

func snapshot(params []*nn.Param) map[string][]float64 {
	out := make(map[string][]float64, len(params))
	for _, p := range params {
		out[p.Name] = append([]float64(nil), p.Value.RawMatrix().Data...)
	}
	return out
}

func TestPreventorGradientReversal(t *testing.T) {
	r := newTestModel(t)
	x := unitInput(6, 3, 4)
	// 潜在変数から線形に復元可能なターゲット
	y := mat.NewDense(6, 1, nil)
	for i := 0; i < 6; i++ {
		y.Set(i, 0, 2*x.At(i, 0)-x.At(i, 1))
	}

	before := snapshot(r.registry.Variables())

	// preventUpdate と同じ手順で、反転前の勾配を保存する
	r.registry.ZeroGrad()
	if _, err := r.preventLoss(x, y); err != nil {
		t.Fatal(err)
	}
	raw := make(map[string][]float64)
	for _, p := range r.registry.Params(ScopePreventor, ScopeEncoder) {
		raw[p.Name] = append([]float64(nil), p.Grad.RawMatrix().Data...)
	}
	if err := nn.ApplyGradients(r.preventOpt, nn.NegateGroup(ScopeEncoder)); err != nil {
		t.Fatal(err)
	}

	// Adam の初回ステップは各要素を -lr*sign(g') だけ動かす
	for _, p := range r.registry.Params(ScopePreventor, ScopeEncoder) {
		var dot float64
		for i, v := range p.Value.RawMatrix().Data {
			dot += (v - before[p.Name][i]) * raw[p.Name][i]
		}
		if mat.Norm(mat.NewDense(1, len(raw[p.Name]), raw[p.Name]), 2) == 0 {
			continue
		}
		switch {
		case p.InScope(ScopePreventor) && dot >= 0:
			t.Errorf("%s must descend the preventor loss, step·grad = %v", p.Name, dot)
		case p.InScope(ScopeEncoder) && dot <= 0:
			t.Errorf("%s must ascend the preventor loss, step·grad = %v", p.Name, dot)
		}
	}

	for _, p := range r.registry.Params(ScopeRegressor, ScopeDecoder) {
		for i, v := range p.Value.RawMatrix().Data {
			if v != before[p.Name][i] {
				t.Fatalf("%s changed during the preventor update", p.Name)
			}
		}
	}
}

func TestPreventUpdateReducesPreventorLoss(t *testing.T) {
	r := newTestModel(t, WithLearningRate(0.02))
	x := unitInput(8, 3, 6)
	y := mat.NewDense(8, 1, nil)
	for i := 0; i < 8; i++ {
		y.Set(i, 0, x.At(i, 2))
	}

	// エンコーダを固定した状態でプリベンターの損失が下がることを確認する
	frozen := snapshot(r.registry.Params(ScopeEncoder))
	restoreEncoder := func() {
		for _, p := range r.registry.Params(ScopeEncoder) {
			copy(p.Value.RawMatrix().Data, frozen[p.Name])
		}
	}
	meanLoss := func() float64 {
		noise := newReplaySampler(256, 11)
		r.noise = noise
		loss, err := r.preventLoss(x, y)
		if err != nil {
			t.Fatal(err)
		}
		return loss
	}

	start := meanLoss()
	for i := 0; i < 20; i++ {
		if _, err := r.preventUpdate(x, y); err != nil {
			t.Fatal(err)
		}
		restoreEncoder()
	}
	if end := meanLoss(); end >= start {
		t.Errorf("preventor loss did not decrease: %v -> %v", start, end)
	}
}

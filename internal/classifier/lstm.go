package classifier

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// lstmCell holds one direction of one layer in PyTorch layout: gate rows
// ordered input, forget, cell, output.
type lstmCell struct {
	hidden int
	input  int
	wIH    []float32 // [4H x input]
	wHH    []float32 // [4H x H]
	bias   []float64 // b_ih + b_hh, [4H]
}

type lstmLayer struct {
	fwd *lstmCell
	bwd *lstmCell
}

// Model is an inference-only BiLSTM text classifier.
type Model struct {
	embedding [][]float32
	layers    []lstmLayer
	fcW       []float32 // [classes x features]
	fcB       []float32
	classes   int
	features  int
}

// buildEmbedding returns a vocabulary-aligned matrix: seeded normal rows,
// overwritten by word vectors and then by a saved embedding of the same shape.
func buildEmbedding(a *Artifacts) ([][]float32, error) {
	rows := 0
	for _, id := range a.Vocab {
		if id < 0 {
			return nil, fmt.Errorf("vocabulary has negative index %d", id)
		}
		if id+1 > rows {
			rows = id + 1
		}
	}
	dim := a.Config.EmbeddingDim
	rng := rand.New(rand.NewPCG(a.Config.Seed, a.Config.Seed))
	matrix := make([][]float32, rows)
	for i := range matrix {
		row := make([]float32, dim)
		for j := range row {
			row[j] = float32(rng.NormFloat64())
		}
		matrix[i] = row
	}
	for token, id := range a.Vocab {
		vec, ok := a.Vectors[token]
		if !ok {
			continue
		}
		if len(vec) != dim {
			return nil, fmt.Errorf("word vector for %q has dim %d, want %d", token, len(vec), dim)
		}
		copy(matrix[id], vec)
	}
	if saved, ok := a.Weights["embedding.weight"]; ok && len(saved.Shape) == 2 && saved.Shape[0] == rows && saved.Shape[1] == dim {
		for i := range matrix {
			copy(matrix[i], saved.Data[i*dim:(i+1)*dim])
		}
	}
	return matrix, nil
}

// NewModel assembles the network from artifacts, checking every shape.
func NewModel(a *Artifacts) (*Model, error) {
	embedding, err := buildEmbedding(a)
	if err != nil {
		return nil, err
	}
	cfg := a.Config
	dirs := cfg.directions()
	m := &Model{embedding: embedding, features: cfg.HiddenDim * dirs, classes: len(a.Labels)}

	input := cfg.EmbeddingDim
	for n := 0; n < cfg.NumLayers; n++ {
		fwd, err := loadCell(a.Weights, fmt.Sprintf("l%d", n), input, cfg.HiddenDim)
		if err != nil {
			return nil, err
		}
		layer := lstmLayer{fwd: fwd}
		if dirs == 2 {
			bwd, err := loadCell(a.Weights, fmt.Sprintf("l%d_reverse", n), input, cfg.HiddenDim)
			if err != nil {
				return nil, err
			}
			layer.bwd = bwd
		}
		m.layers = append(m.layers, layer)
		input = cfg.HiddenDim * dirs
	}

	fcW, err := tensor(a.Weights, "fc.weight", m.classes, m.features)
	if err != nil {
		return nil, err
	}
	fcB, err := tensor(a.Weights, "fc.bias", m.classes)
	if err != nil {
		return nil, err
	}
	m.fcW, m.fcB = fcW.Data, fcB.Data
	return m, nil
}

func loadCell(weights map[string]Tensor, suffix string, input, hidden int) (*lstmCell, error) {
	wIH, err := tensor(weights, "lstm.weight_ih_"+suffix, 4*hidden, input)
	if err != nil {
		return nil, err
	}
	wHH, err := tensor(weights, "lstm.weight_hh_"+suffix, 4*hidden, hidden)
	if err != nil {
		return nil, err
	}
	bIH, err := tensor(weights, "lstm.bias_ih_"+suffix, 4*hidden)
	if err != nil {
		return nil, err
	}
	bHH, err := tensor(weights, "lstm.bias_hh_"+suffix, 4*hidden)
	if err != nil {
		return nil, err
	}
	bias := make([]float64, 4*hidden)
	for i := range bias {
		bias[i] = float64(bIH.Data[i]) + float64(bHH.Data[i])
	}
	return &lstmCell{hidden: hidden, input: input, wIH: wIH.Data, wHH: wHH.Data, bias: bias}, nil
}

func tensor(weights map[string]Tensor, name string, shape ...int) (Tensor, error) {
	t, ok := weights[name]
	if !ok {
		return Tensor{}, fmt.Errorf("weights missing %s", name)
	}
	if len(t.Shape) != len(shape) {
		return Tensor{}, fmt.Errorf("%s has shape %v, want %v", name, t.Shape, shape)
	}
	for i := range shape {
		if t.Shape[i] != shape[i] {
			return Tensor{}, fmt.Errorf("%s has shape %v, want %v", name, t.Shape, shape)
		}
	}
	return t, nil
}

// run feeds xs through the cell in order and returns the hidden state at
// every step.
func (c *lstmCell) run(xs [][]float64, reverse bool) [][]float64 {
	H := c.hidden
	h := make([]float64, H)
	state := make([]float64, H)
	gates := make([]float64, 4*H)
	out := make([][]float64, len(xs))
	for step := range xs {
		t := step
		if reverse {
			t = len(xs) - 1 - step
		}
		x := xs[t]
		for g := 0; g < 4*H; g++ {
			sum := c.bias[g]
			row := c.wIH[g*c.input : (g+1)*c.input]
			for j, v := range x {
				sum += float64(row[j]) * v
			}
			hrow := c.wHH[g*H : (g+1)*H]
			for j, v := range h {
				sum += float64(hrow[j]) * v
			}
			gates[g] = sum
		}
		next := make([]float64, H)
		for j := 0; j < H; j++ {
			i := sigmoid(gates[j])
			f := sigmoid(gates[H+j])
			g := math.Tanh(gates[2*H+j])
			o := sigmoid(gates[3*H+j])
			state[j] = f*state[j] + i*g
			next[j] = o * math.Tanh(state[j])
		}
		h = next
		out[t] = next
	}
	return out
}

// Logits runs one forward pass over an encoded sequence.
func (m *Model) Logits(ids []int) []float64 {
	xs := make([][]float64, len(ids))
	for t, id := range ids {
		row := m.embedding[m.row(id)]
		x := make([]float64, len(row))
		for j, v := range row {
			x[j] = float64(v)
		}
		xs[t] = x
	}

	var fwd, bwd [][]float64
	for _, layer := range m.layers {
		fwd = layer.fwd.run(xs, false)
		if layer.bwd == nil {
			xs = fwd
			continue
		}
		bwd = layer.bwd.run(xs, true)
		next := make([][]float64, len(xs))
		for t := range xs {
			next[t] = append(append(make([]float64, 0, 2*len(fwd[t])), fwd[t]...), bwd[t]...)
		}
		xs = next
	}

	last := len(ids) - 1
	features := append([]float64{}, fwd[last]...)
	if bwd != nil {
		features = append(features, bwd[0]...)
	}
	logits := make([]float64, m.classes)
	for c := 0; c < m.classes; c++ {
		sum := float64(m.fcB[c])
		row := m.fcW[c*m.features : (c+1)*m.features]
		for j, v := range features {
			sum += float64(row[j]) * v
		}
		logits[c] = sum
	}
	return logits
}

// Embedding returns the vector row for id.
func (m *Model) Embedding(id int) []float32 {
	return m.embedding[m.row(id)]
}

func (m *Model) row(id int) int {
	if id < 0 || id >= len(m.embedding) {
		return 0
	}
	return id
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// Softmax is numerically stable and sums to one.
func Softmax(logits []float64) []float64 {
	maxLogit := math.Inf(-1)
	for _, v := range logits {
		maxLogit = math.Max(maxLogit, v)
	}
	out := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		out[i] = math.Exp(v - maxLogit)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

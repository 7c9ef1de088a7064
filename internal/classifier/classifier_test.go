package classifier

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/probe365/advocacia-ia-sub000/internal/core/domain"
)

type artifactOptions struct {
	layers     int
	zeroLSTM   bool
	fcBias     []float32
	skipFile   string
	badFCShape bool
}

const (
	testEmbed  = 4
	testHidden = 3
)

func writeSafetensors(t *testing.T, path string, tensors map[string]Tensor) {
	t.Helper()
	names := make([]string, 0, len(tensors))
	for name := range tensors {
		names = append(names, name)
	}
	sort.Strings(names)

	header := map[string]any{"__metadata__": map[string]string{"format": "pt"}}
	var body []byte
	for _, name := range names {
		tensor := tensors[name]
		start := len(body)
		for _, v := range tensor.Data {
			body = binary.LittleEndian.AppendUint32(body, math.Float32bits(v))
		}
		header[name] = map[string]any{"dtype": "F32", "shape": tensor.Shape, "data_offsets": []int{start, len(body)}}
	}
	rawHeader, err := json.Marshal(header)
	if err != nil {
		t.Fatalf("marshal header: %v", err)
	}
	out := binary.LittleEndian.AppendUint64(nil, uint64(len(rawHeader)))
	out = append(out, rawHeader...)
	out = append(out, body...)
	if err := os.WriteFile(path, out, 0o644); err != nil {
		t.Fatalf("write weights: %v", err)
	}
}

func filled(shape []int, seed int, zero bool) Tensor {
	n := 1
	for _, d := range shape {
		n *= d
	}
	data := make([]float32, n)
	if !zero {
		for i := range data {
			data[i] = float32(math.Sin(float64(seed*31+i))) * 0.5
		}
	}
	return Tensor{Shape: shape, Data: data}
}

func writeArtifacts(t *testing.T, opts artifactOptions) string {
	t.Helper()
	dir := t.TempDir()
	if opts.layers == 0 {
		opts.layers = 1
	}
	write := func(name, content string) {
		if name == opts.skipFile {
			return
		}
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	write(ConfigFile, fmt.Sprintf(`{"embedding_dim": %d, "hidden_dim": %d, "num_layers": %d, "dropout": 0.3, "max_len": 6, "bidirectional": true, "pad_token": "<PAD>", "unk_token": "<UNK>", "seed": 7}`, testEmbed, testHidden, opts.layers))
	write(VocabFile, `{"<PAD>": 0, "<UNK>": 1, "contrato": 2, "emprestimo": 3, "bancário": 4, "responsabilidade": 5, "civil": 6}`)
	write(LabelEncoderFile, `{"classes": ["A", "B"]}`)
	write(WordVectorsFile, strings.Join([]string{
		"5 4",
		"contrato 1 0 0 0",
		"bancário 0.8 0.2 0 0",
		"emprestimo 0.5 0.5 0 0",
		"responsabilidade 0 0 1 0",
		"civil 0 0 0.8 0.2",
	}, "\n")+"\n")

	if opts.skipFile == BestModelFile {
		return dir
	}
	tensors := map[string]Tensor{}
	input := testEmbed
	seed := 1
	for n := 0; n < opts.layers; n++ {
		for _, suffix := range []string{fmt.Sprintf("l%d", n), fmt.Sprintf("l%d_reverse", n)} {
			tensors["lstm.weight_ih_"+suffix] = filled([]int{4 * testHidden, input}, seed, opts.zeroLSTM)
			tensors["lstm.weight_hh_"+suffix] = filled([]int{4 * testHidden, testHidden}, seed+1, opts.zeroLSTM)
			tensors["lstm.bias_ih_"+suffix] = filled([]int{4 * testHidden}, seed+2, opts.zeroLSTM)
			tensors["lstm.bias_hh_"+suffix] = filled([]int{4 * testHidden}, seed+3, opts.zeroLSTM)
			seed += 4
		}
		input = 2 * testHidden
	}
	features := 2 * testHidden
	if opts.badFCShape {
		features = testHidden
	}
	tensors["fc.weight"] = filled([]int{2, features}, 99, opts.zeroLSTM)
	bias := filled([]int{2}, 100, opts.zeroLSTM)
	if opts.fcBias != nil {
		bias.Data = opts.fcBias
	}
	tensors["fc.bias"] = bias
	writeSafetensors(t, filepath.Join(dir, BestModelFile), tensors)
	return dir
}

func loadService(t *testing.T, opts artifactOptions) (*Service, string) {
	t.Helper()
	dir := writeArtifacts(t, opts)
	svc, err := Load(dir, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return svc, dir
}

func TestPredictIsDeterministicAndNormalized(t *testing.T) {
	svc, _ := loadService(t, artifactOptions{layers: 2})

	first, err := svc.Predict("contrato emprestimo")
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if first.Label != "A" && first.Label != "B" {
		t.Fatalf("unexpected label %q", first.Label)
	}
	if first.Confidence < 0.5 || first.Confidence > 1 {
		t.Fatalf("unexpected confidence %v", first.Confidence)
	}
	for i := 0; i < 3; i++ {
		again, err := svc.Predict("contrato emprestimo")
		if err != nil {
			t.Fatalf("Predict() error = %v", err)
		}
		if again != first {
			t.Fatalf("Predict() not deterministic: %+v vs %+v", again, first)
		}
	}

	probs := Softmax(svc.model.Logits(svc.tokenizer.Encode("contrato emprestimo palavra nova")))
	var sum, maxP float64
	for _, p := range probs {
		sum += p
		maxP = math.Max(maxP, p)
	}
	if math.Abs(sum-1) > 1e-5 {
		t.Fatalf("softmax sums to %v", sum)
	}
	pred, _ := svc.Predict("contrato emprestimo palavra nova")
	if math.Abs(pred.Confidence-maxP) > 1e-12 {
		t.Fatalf("confidence %v is not the max probability %v", pred.Confidence, maxP)
	}
}

func TestPredictWithZeroRecurrentWeightsUsesBias(t *testing.T) {
	svc, _ := loadService(t, artifactOptions{zeroLSTM: true, fcBias: []float32{0, float32(math.Log(3))}})

	got, err := svc.Predict("contrato")
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if got.Label != "B" || got.Index != 1 || math.Abs(got.Confidence-0.75) > 1e-6 {
		t.Fatalf("unexpected prediction %+v", got)
	}
}

func TestBatchPredictAndBlankInput(t *testing.T) {
	svc, _ := loadService(t, artifactOptions{})

	got, err := svc.BatchPredict([]string{"contrato", "responsabilidade civil"})
	if err != nil {
		t.Fatalf("BatchPredict() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected two predictions, got %d", len(got))
	}
	if _, err := svc.Predict("   "); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestSimilarRoundTripAndPersistence(t *testing.T) {
	svc, dir := loadService(t, artifactOptions{})

	if err := svc.ResetIndex(); err != nil {
		t.Fatalf("ResetIndex() error = %v", err)
	}
	n, err := svc.IndexDocs([]domain.IndexDoc{{ID: "e1", Text: "contrato bancário"}, {ID: "e2", Text: "responsabilidade civil"}})
	if err != nil || n != 2 {
		t.Fatalf("IndexDocs() = %d, %v", n, err)
	}
	hits, err := svc.Similar("contrato", 2)
	if err != nil {
		t.Fatalf("Similar() error = %v", err)
	}
	if hits[0].ID != "e1" || hits[0].Similarity <= 0 || hits[0].Similarity > 1+1e-6 {
		t.Fatalf("unexpected hits %+v", hits)
	}

	if _, err := svc.IndexDocs([]domain.IndexDoc{{ID: "e2", Text: "contrato bancário"}}); err != nil {
		t.Fatalf("IndexDocs() update error = %v", err)
	}
	if svc.IndexSize() != 2 {
		t.Fatalf("update must be in place, size %d", svc.IndexSize())
	}
	exact, _ := svc.Similar("responsabilidade civil", 1)
	if len(exact) != 1 {
		t.Fatalf("expected one hit, got %+v", exact)
	}

	reloaded, err := Load(dir, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if reloaded.IndexSize() != 2 {
		t.Fatalf("expected persisted index, size %d", reloaded.IndexSize())
	}
	if err := reloaded.ResetIndex(); err != nil {
		t.Fatalf("ResetIndex() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, IndexFile)); !os.IsNotExist(err) {
		t.Fatalf("expected index file removed, stat error = %v", err)
	}
}

func TestLoadRefusesIncompleteArtifacts(t *testing.T) {
	for _, missing := range []string{ConfigFile, VocabFile, LabelEncoderFile, WordVectorsFile, BestModelFile} {
		dir := writeArtifacts(t, artifactOptions{skipFile: missing})
		if _, err := Load(dir, nil); !domain.IsKind(err, domain.ErrClassifierColdStart) {
			t.Fatalf("Load() without %s error = %v, want cold start", missing, err)
		}
	}
	dir := writeArtifacts(t, artifactOptions{badFCShape: true})
	if _, err := Load(dir, nil); !domain.IsKind(err, domain.ErrClassifierColdStart) {
		t.Fatalf("Load() with bad shape error = %v, want cold start", err)
	}
}

func TestTokenizerLeftPadsAndTruncates(t *testing.T) {
	tok := NewTokenizer(map[string]int{"<PAD>": 0, "<UNK>": 1, "a": 2, "b": 3}, "<PAD>", "<UNK>", 4)
	if got := fmt.Sprint(tok.Encode("A b zzz")); got != "[0 2 3 1]" {
		t.Fatalf("Encode() = %s", got)
	}
	if got := fmt.Sprint(tok.Encode("a a b b a")); got != "[2 2 3 3]" {
		t.Fatalf("Encode() = %s", got)
	}
}

func TestReadSafetensorsRejectsNonF32(t *testing.T) {
	path := filepath.Join(t.TempDir(), "w.safetensors")
	header := []byte(`{"x": {"dtype": "F16", "shape": [1], "data_offsets": [0, 2]}}`)
	raw := binary.LittleEndian.AppendUint64(nil, uint64(len(header)))
	raw = append(append(raw, header...), 0, 0)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadSafetensors(path); err == nil || !strings.Contains(err.Error(), "F16") {
		t.Fatalf("expected dtype error, got %v", err)
	}
}

func TestIndexUpsertLeavesStateUntouchedWhenSaveFails(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	idx, err := OpenIndex(filepath.Join(dir, "ok", IndexFile))
	if err != nil {
		t.Fatalf("OpenIndex() error = %v", err)
	}
	if err := idx.Upsert([]indexEntry{{ID: "d1", Text: "contrato", Vector: []float32{1, 0}}}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	idx.path = filepath.Join(blocker, IndexFile)
	err = idx.Upsert([]indexEntry{
		{ID: "d1", Text: "alterado", Vector: []float32{0, 1}},
		{ID: "d2", Text: "novo", Vector: []float32{0, 1}},
	})
	if err == nil {
		t.Fatalf("expected save error")
	}
	if idx.Len() != 1 {
		t.Fatalf("failed upsert must not add entries, got %d", idx.Len())
	}
	hits := idx.Search([]float32{1, 0}, 1)
	if len(hits) != 1 || hits[0].entry.Text != "contrato" {
		t.Fatalf("failed upsert must not replace entries, got %+v", hits)
	}
}

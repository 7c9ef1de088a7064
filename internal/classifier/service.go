package classifier

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"strings"

	"github.com/probe365/advocacia-ia-sub000/internal/core/domain"
	"github.com/probe365/advocacia-ia-sub000/internal/core/ports"
)

var _ ports.ClassifierService = (*Service)(nil)

// Service serves predictions and semantic lookups from one artifact directory.
type Service struct {
	tokenizer *Tokenizer
	model     *Model
	labels    []string
	index     *Index
	logger    *slog.Logger
}

// Load cold-starts the service. It refuses to start when any artifact is
// missing or inconsistent.
func Load(dir string, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	artifacts, err := LoadArtifacts(dir)
	if err != nil {
		return nil, err
	}
	model, err := NewModel(artifacts)
	if err != nil {
		return nil, domain.WrapError(domain.ErrClassifierColdStart, "build classifier model", err)
	}
	index, err := OpenIndex(filepath.Join(dir, IndexFile))
	if err != nil {
		return nil, domain.WrapError(domain.ErrClassifierColdStart, "open semantic index", err)
	}
	cfg := artifacts.Config
	svc := &Service{
		tokenizer: NewTokenizer(artifacts.Vocab, cfg.PadToken, cfg.UnkToken, cfg.MaxLen),
		model:     model,
		labels:    artifacts.Labels,
		index:     index,
		logger:    logger.With("component", "classifier"),
	}
	svc.logger.Info("classifier_loaded",
		"labels", len(svc.labels),
		"vocab", len(artifacts.Vocab),
		"layers", cfg.NumLayers,
		"index_size", index.Len(),
	)
	return svc, nil
}

func (s *Service) Predict(text string) (domain.Prediction, error) {
	if strings.TrimSpace(text) == "" {
		return domain.Prediction{}, domain.WrapError(domain.ErrInvalidInput, "predict", errors.New("text is required"))
	}
	probs := Softmax(s.model.Logits(s.tokenizer.Encode(text)))
	best := 0
	for i, p := range probs {
		if p > probs[best] {
			best = i
		}
	}
	return domain.Prediction{Label: s.labels[best], Index: best, Confidence: probs[best]}, nil
}

func (s *Service) BatchPredict(texts []string) ([]domain.Prediction, error) {
	if len(texts) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "batch predict", errors.New("texts are required"))
	}
	out := make([]domain.Prediction, 0, len(texts))
	for i, text := range texts {
		p, err := s.Predict(text)
		if err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// IndexDocs embeds and upserts docs, then persists the index.
func (s *Service) IndexDocs(docs []domain.IndexDoc) (int, error) {
	if len(docs) == 0 {
		return 0, domain.WrapError(domain.ErrInvalidInput, "index docs", errors.New("docs are required"))
	}
	entries := make([]indexEntry, 0, len(docs))
	for _, d := range docs {
		if strings.TrimSpace(d.ID) == "" {
			return 0, domain.WrapError(domain.ErrInvalidInput, "index docs", errors.New("every doc needs an id"))
		}
		entries = append(entries, indexEntry{ID: d.ID, Text: d.Text, Vector: s.MeanVector(d.Text)})
	}
	if err := s.index.Upsert(entries); err != nil {
		return 0, err
	}
	return len(entries), nil
}

func (s *Service) Similar(query string, k int) ([]domain.SimilarHit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "similar", errors.New("query is required"))
	}
	if k <= 0 {
		k = 5
	}
	hits := s.index.Search(s.MeanVector(query), k)
	out := make([]domain.SimilarHit, 0, len(hits))
	for _, h := range hits {
		out = append(out, domain.SimilarHit{ID: h.entry.ID, Similarity: h.score, Snippet: snippet(h.entry.Text)})
	}
	return out, nil
}

func (s *Service) ResetIndex() error {
	return s.index.Reset()
}

func (s *Service) Labels() []string {
	return append([]string(nil), s.labels...)
}

func (s *Service) IndexSize() int {
	return s.index.Len()
}

// MeanVector averages the embeddings of known tokens and L2-normalizes the
// result. Text made only of unknown tokens uses the unknown row.
func (s *Service) MeanVector(text string) []float32 {
	ids := s.tokenizer.IDs(text)
	known := make([]int, 0, len(ids))
	for _, id := range ids {
		if id != s.tokenizer.Unknown() && id != s.tokenizer.Pad() {
			known = append(known, id)
		}
	}
	if len(known) == 0 && len(ids) > 0 {
		known = []int{s.tokenizer.Unknown()}
	}
	var sum []float64
	for _, id := range known {
		row := s.model.Embedding(id)
		if sum == nil {
			sum = make([]float64, len(row))
		}
		for j, v := range row {
			sum[j] += float64(v)
		}
	}
	var norm float64
	for _, v := range sum {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	out := make([]float32, len(sum))
	if norm == 0 {
		return out
	}
	for j, v := range sum {
		out[j] = float32(v / norm)
	}
	return out
}

func snippet(text string) string {
	r := []rune(strings.TrimSpace(text))
	if len(r) <= snippetRunes {
		return string(r)
	}
	return string(r[:snippetRunes]) + "…"
}

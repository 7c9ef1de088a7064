package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/probe365/advocacia-ia-sub000/internal/core/domain"
	"github.com/probe365/advocacia-ia-sub000/internal/core/ports"
)

const snapshotFile = "store.json"

type record struct {
	ID       string          `json:"id"`
	Text     string          `json:"text"`
	Metadata domain.Metadata `json:"metadata"`
	Vector   []float32       `json:"vector"`
}

type snapshot struct {
	Metric  domain.DistanceMetric `json:"metric"`
	Records []record              `json:"records"`
}

// Store keeps chunks and their vectors in memory and snapshots them to
// <dir>/store.json on Persist.
type Store struct {
	dir      string
	metric   domain.DistanceMetric
	embedder ports.Embedder

	mu      sync.RWMutex
	records []record
}

// Open loads the snapshot in dir when present. An existing snapshot keeps the
// metric it was written with.
func Open(dir string, metric domain.DistanceMetric, embedder ports.Embedder) (*Store, error) {
	if metric == "" {
		metric = domain.DistanceL2
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	s := &Store{
		dir:      dir,
		metric:   metric,
		embedder: embedder,
	}

	raw, err := os.ReadFile(filepath.Join(dir, snapshotFile))
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read store snapshot: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode store snapshot: %w", err)
	}
	if snap.Metric != "" {
		s.metric = snap.Metric
	}
	s.records = snap.Records
	return s, nil
}

func (s *Store) Metric() domain.DistanceMetric {
	return s.metric
}

func (s *Store) AddDocuments(ctx context.Context, chunks []domain.Chunk) ([]string, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("chunks/vectors mismatch")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if dim := s.dimension(); dim > 0 && len(vectors[0]) != dim {
		return nil, fmt.Errorf("vector dimension %d does not match store dimension %d", len(vectors[0]), dim)
	}
	ids := make([]string, len(chunks))
	for i, ch := range chunks {
		ids[i] = uuid.NewString()
		s.records = append(s.records, record{
			ID:       ids[i],
			Text:     ch.Text,
			Metadata: ch.Metadata.Clone(),
			Vector:   vectors[i],
		})
	}
	return ids, nil
}

func (s *Store) SimilaritySearchWithScore(ctx context.Context, query string, k int) ([]domain.ScoredChunk, error) {
	if k <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	empty := len(s.records) == 0
	s.mu.RUnlock()
	if empty {
		return nil, nil
	}

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ScoredChunk, 0, len(s.records))
	for _, r := range s.records {
		if len(r.Vector) != len(vector) {
			continue
		}
		out = append(out, domain.ScoredChunk{
			Chunk:    domain.Chunk{ID: r.ID, Text: r.Text, Metadata: r.Metadata.Clone()},
			Distance: distance(s.metric, vector, r.Vector),
			Metric:   s.metric,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].Chunk.ID < out[j].Chunk.ID
	})
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (s *Store) Get(_ context.Context, where map[string]string, include ...domain.Include) (domain.StoreGetResult, error) {
	withMeta, withDocs := includes(include)
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result domain.StoreGetResult
	for _, r := range s.records {
		if !r.Metadata.Matches(where) {
			continue
		}
		result.IDs = append(result.IDs, r.ID)
		if withMeta {
			result.Metadatas = append(result.Metadatas, r.Metadata.Clone())
		}
		if withDocs {
			result.Documents = append(result.Documents, r.Text)
		}
	}
	return result, nil
}

func (s *Store) Delete(_ context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.records[:0]
	for _, r := range s.records {
		if !drop[r.ID] {
			kept = append(kept, r)
		}
	}
	s.records = kept
	return nil
}

// Persist writes the snapshot to a temp file and renames it into place.
func (s *Store) Persist(_ context.Context) error {
	s.mu.RLock()
	raw, err := json.Marshal(snapshot{Metric: s.metric, Records: s.records})
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode store snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, snapshotFile+".*.tmp")
	if err != nil {
		return fmt.Errorf("create snapshot temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, snapshotFile)); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// Len returns the number of stored chunks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *Store) dimension() int {
	if len(s.records) == 0 {
		return 0
	}
	return len(s.records[0].Vector)
}

func distance(metric domain.DistanceMetric, a, b []float32) float64 {
	if metric == domain.DistanceCosine {
		var dot, na, nb float64
		for i := range a {
			dot += float64(a[i]) * float64(b[i])
			na += float64(a[i]) * float64(a[i])
			nb += float64(b[i]) * float64(b[i])
		}
		if na == 0 || nb == 0 {
			return 1
		}
		return math.Max(0, 1-dot/(math.Sqrt(na)*math.Sqrt(nb)))
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

func includes(include []domain.Include) (meta, docs bool) {
	if len(include) == 0 {
		return true, true
	}
	for _, inc := range include {
		switch inc {
		case domain.IncludeMetadatas:
			meta = true
		case domain.IncludeDocuments:
			docs = true
		}
	}
	return meta, docs
}

// Factory opens file stores by directory.
type Factory struct {
	metric   domain.DistanceMetric
	embedder ports.Embedder
}

func NewFactory(metric domain.DistanceMetric, embedder ports.Embedder) *Factory {
	return &Factory{metric: metric, embedder: embedder}
}

func (f *Factory) Open(_ context.Context, ref ports.StoreRef) (ports.VectorStore, error) {
	if ref.Dir == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "open file store", fmt.Errorf("dir is required"))
	}
	return Open(ref.Dir, f.metric, f.embedder)
}

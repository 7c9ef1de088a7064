package classifier

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

const snippetRunes = 200

// Index is a flat in-process matrix of L2-normalized document vectors.
// Writers take the exclusive lock; searches share it.
type Index struct {
	mu   sync.RWMutex
	path string
	docs []indexEntry
	pos  map[string]int
}

type indexEntry struct {
	ID     string
	Text   string
	Vector []float32
}

type indexSnapshot struct {
	Entries []indexEntry
}

// OpenIndex loads path when it exists. An empty path keeps the index in memory.
func OpenIndex(path string) (*Index, error) {
	idx := &Index{path: path, pos: map[string]int{}}
	if path == "" {
		return idx, nil
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return idx, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	defer f.Close()
	var snap indexSnapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode index: %w", err)
	}
	for _, e := range snap.Entries {
		idx.pos[e.ID] = len(idx.docs)
		idx.docs = append(idx.docs, e)
	}
	return idx, nil
}

// Upsert replaces entries with the same id in place and persists. The new
// state becomes visible only after the file is written.
func (x *Index) Upsert(entries []indexEntry) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	docs := make([]indexEntry, len(x.docs), len(x.docs)+len(entries))
	copy(docs, x.docs)
	pos := make(map[string]int, len(x.pos)+len(entries))
	for id, i := range x.pos {
		pos[id] = i
	}
	for _, e := range entries {
		if i, ok := pos[e.ID]; ok {
			docs[i] = e
			continue
		}
		pos[e.ID] = len(docs)
		docs = append(docs, e)
	}
	if err := x.save(docs); err != nil {
		return err
	}
	x.docs, x.pos = docs, pos
	return nil
}

type scored struct {
	entry indexEntry
	score float64
}

// Search returns the top k entries by inner product with a normalized query.
func (x *Index) Search(query []float32, k int) []scored {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]scored, 0, len(x.docs))
	for _, e := range x.docs {
		out = append(out, scored{entry: e, score: dot(query, e.Vector)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].score > out[j].score })
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out
}

// Reset empties the index and removes its file.
func (x *Index) Reset() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.docs = nil
	x.pos = map[string]int{}
	if x.path == "" {
		return nil
	}
	if err := os.Remove(x.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove index file: %w", err)
	}
	return nil
}

func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.docs)
}

func (x *Index) save(docs []indexEntry) error {
	if x.path == "" {
		return nil
	}
	dir := filepath.Dir(x.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".index-*")
	if err != nil {
		return fmt.Errorf("create temp index: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := gob.NewEncoder(tmp).Encode(indexSnapshot{Entries: docs}); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("encode index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp index: %w", err)
	}
	if err := os.Rename(tmp.Name(), x.path); err != nil {
		return fmt.Errorf("rename index: %w", err)
	}
	return nil
}

func dot(a, b []float32) float64 {
	n := min(len(a), len(b))
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

package embedcache

import (
	"context"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/probe365/advocacia-ia-sub000/internal/core/ports"
)

// Embedder memoizes query embeddings. Document batches go straight through
// since chunks are embedded once and never re-read.
type Embedder struct {
	next  ports.Embedder
	cache *lru.Cache[string, []float32]
}

func New(next ports.Embedder, size int) (*Embedder, error) {
	if size <= 0 {
		return nil, fmt.Errorf("embed cache size must be greater than zero")
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("init embed cache: %w", err)
	}
	return &Embedder{next: next, cache: cache}, nil
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return e.next.Embed(ctx, texts)
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := strings.TrimSpace(text)
	if vector, ok := e.cache.Get(key); ok {
		return vector, nil
	}
	vector, err := e.next.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Add(key, vector)
	return vector, nil
}

func (e *Embedder) Len() int {
	return e.cache.Len()
}

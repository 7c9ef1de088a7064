package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/probe365/advocacia-ia-sub000/internal/core/domain"
	"github.com/probe365/advocacia-ia-sub000/internal/core/ports"
)

const (
	DefaultCaseK   = 7
	DefaultKBK     = 3
	DefaultEmentaK = 5

	// DocumentSeparator delimits retrieved chunks inside a prompt context.
	DocumentSeparator = "\n\n--- documento ---\n\n"
)

// Retriever runs k-NN over one store. Results are ascending by distance.
type Retriever struct {
	store ports.VectorStore
	k     int
}

func NewRetriever(store ports.VectorStore, k int) *Retriever {
	if k <= 0 {
		k = DefaultCaseK
	}
	return &Retriever{store: store, k: k}
}

func (r *Retriever) Retrieve(ctx context.Context, query string) ([]domain.ScoredChunk, error) {
	return r.RetrieveK(ctx, query, r.k)
}

func (r *Retriever) RetrieveK(ctx context.Context, query string, k int) ([]domain.ScoredChunk, error) {
	if r == nil || r.store == nil {
		return nil, nil
	}
	hits, err := r.store.SimilaritySearchWithScore(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	return hits, nil
}

// ScopedRetriever fans a query out to the case and KB retrievers.
type ScopedRetriever struct {
	Case *Retriever
	KB   *Retriever
}

// Retrieve concatenates case results before KB results for SearchBoth.
func (s ScopedRetriever) Retrieve(ctx context.Context, query string, scope domain.SearchScope) ([]domain.ScoredChunk, error) {
	var out []domain.ScoredChunk
	if scope == domain.SearchCase || scope == domain.SearchBoth || scope == "" {
		hits, err := s.Case.Retrieve(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("case retriever: %w", err)
		}
		out = append(out, hits...)
	}
	if scope == domain.SearchKB || scope == domain.SearchBoth {
		hits, err := s.KB.Retrieve(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("kb retriever: %w", err)
		}
		out = append(out, hits...)
	}
	return out, nil
}

// JoinContext stuffs chunk texts into a single prompt context.
func JoinContext(chunks []domain.ScoredChunk) string {
	parts := make([]string, 0, len(chunks))
	for _, ch := range chunks {
		if text := strings.TrimSpace(ch.Chunk.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, DocumentSeparator)
}

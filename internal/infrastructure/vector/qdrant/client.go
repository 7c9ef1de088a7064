package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/probe365/advocacia-ia-sub000/internal/core/domain"
	"github.com/probe365/advocacia-ia-sub000/internal/core/ports"
	"github.com/probe365/advocacia-ia-sub000/internal/infrastructure/resilience"
)

const (
	payloadDocument = "document"
	payloadMetadata = "metadata"
	scrollPageSize  = 256
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
}

func New(baseURL string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.ResilienceExecutor,
	}
}

// Store is one Qdrant collection holding chunks. Distances are 1 - cosine
// score.
type Store struct {
	client     *Client
	collection string
	embedder   ports.Embedder

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

func (c *Client) Store(collection string, embedder ports.Embedder) *Store {
	return &Store{client: c, collection: collection, embedder: embedder}
}

// Factory opens stores by collection name.
type Factory struct {
	client   *Client
	embedder ports.Embedder
}

func NewFactory(client *Client, embedder ports.Embedder) *Factory {
	return &Factory{client: client, embedder: embedder}
}

func (f *Factory) Open(_ context.Context, ref ports.StoreRef) (ports.VectorStore, error) {
	if strings.TrimSpace(ref.Collection) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "open qdrant store", fmt.Errorf("collection is required"))
	}
	return f.client.Store(ref.Collection, f.embedder), nil
}

func (s *Store) Metric() domain.DistanceMetric {
	return domain.DistanceCosine
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector,omitempty"`
	Payload map[string]any `json:"payload"`
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
	if err := s.ensureCollection(ctx, len(vectors[0])); err != nil {
		return nil, err
	}

	ids := make([]string, len(chunks))
	points := make([]point, len(chunks))
	for i, ch := range chunks {
		ids[i] = uuid.NewString()
		points[i] = point{
			ID:     ids[i],
			Vector: vectors[i],
			Payload: map[string]any{
				payloadDocument: ch.Text,
				payloadMetadata: map[string]string(ch.Metadata.Clone()),
			},
		}
	}

	path := fmt.Sprintf("/collections/%s/points?wait=true", s.collection)
	if err := s.client.call(ctx, "upsert", http.MethodPut, path, map[string]any{"points": points}, nil); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Store) SimilaritySearchWithScore(ctx context.Context, query string, k int) ([]domain.ScoredChunk, error) {
	if k <= 0 {
		return nil, nil
	}
	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var resp struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	reqBody := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	path := fmt.Sprintf("/collections/%s/points/search", s.collection)
	if err := s.client.call(ctx, "search", http.MethodPost, path, reqBody, &resp); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	out := make([]domain.ScoredChunk, 0, len(resp.Result))
	for _, r := range resp.Result {
		distance := 1 - r.Score
		if distance < 0 {
			distance = 0
		}
		out = append(out, domain.ScoredChunk{
			Chunk:    chunkFromPayload(fmt.Sprint(r.ID), r.Payload),
			Distance: distance,
			Metric:   domain.DistanceCosine,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].Chunk.ID < out[j].Chunk.ID
	})
	return out, nil
}

func (s *Store) Get(ctx context.Context, where map[string]string, include ...domain.Include) (domain.StoreGetResult, error) {
	withMeta, withDocs := includes(include)
	var result domain.StoreGetResult

	reqBody := map[string]any{
		"limit":        scrollPageSize,
		"with_payload": true,
		"with_vector":  false,
	}
	if filter := buildFilter(where); filter != nil {
		reqBody["filter"] = filter
	}
	path := fmt.Sprintf("/collections/%s/points/scroll", s.collection)

	for {
		var resp struct {
			Result struct {
				Points []struct {
					ID      any            `json:"id"`
					Payload map[string]any `json:"payload"`
				} `json:"points"`
				NextPageOffset any `json:"next_page_offset"`
			} `json:"result"`
		}
		if err := s.client.call(ctx, "scroll", http.MethodPost, path, reqBody, &resp); err != nil {
			if isNotFound(err) {
				return result, nil
			}
			return domain.StoreGetResult{}, err
		}
		for _, p := range resp.Result.Points {
			ch := chunkFromPayload(fmt.Sprint(p.ID), p.Payload)
			result.IDs = append(result.IDs, ch.ID)
			if withMeta {
				result.Metadatas = append(result.Metadatas, ch.Metadata)
			}
			if withDocs {
				result.Documents = append(result.Documents, ch.Text)
			}
		}
		if resp.Result.NextPageOffset == nil {
			return result, nil
		}
		reqBody["offset"] = resp.Result.NextPageOffset
	}
}

func (s *Store) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	path := fmt.Sprintf("/collections/%s/points/delete?wait=true", s.collection)
	err := s.client.call(ctx, "delete", http.MethodPost, path, map[string]any{"points": ids}, nil)
	if isNotFound(err) {
		return nil
	}
	return err
}

// Persist is a no-op: upserts and deletes already wait for the write to be
// applied.
func (s *Store) Persist(context.Context) error {
	return nil
}

func (s *Store) ensureCollection(ctx context.Context, vectorSize int) error {
	s.ensureMu.Lock()
	if s.ensuredCollection && s.ensuredVectorSize == vectorSize {
		s.ensureMu.Unlock()
		return nil
	}
	s.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}
	path := fmt.Sprintf("/collections/%s", s.collection)
	err := s.client.call(ctx, "ensure_collection", http.MethodPut, path, reqBody, nil)

	// 200/201 for create, 409 if already exists (depends on version/config).
	var statusErr *resilience.StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusConflict {
		err = nil
	}
	if err != nil {
		return err
	}

	s.ensureMu.Lock()
	defer s.ensureMu.Unlock()
	s.ensuredCollection = true
	s.ensuredVectorSize = vectorSize
	return nil
}

func (c *Client) call(ctx context.Context, operation, method, path string, payload any, out any) error {
	err := resilience.Call(ctx, c.executor, "qdrant."+operation, func(callCtx context.Context) error {
		return c.doJSON(callCtx, operation, method, path, payload, out)
	}, classify)
	if err == nil || isConflict(err) || isNotFound(err) {
		return err
	}
	return resilience.External("qdrant "+operation, err, classify)
}

func (c *Client) doJSON(ctx context.Context, operation, method, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", operation, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &resilience.StatusError{
			Service:    "qdrant",
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(raw),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

// classify keeps 404 and 409 out of the breaker; both are expected answers.
func classify(err error) resilience.ErrorClassification {
	if isNotFound(err) || isConflict(err) {
		return resilience.ErrorClassification{}
	}
	return resilience.ClassifyTransport(err)
}

func isNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

func isConflict(err error) bool {
	return hasStatus(err, http.StatusConflict)
}

func hasStatus(err error, code int) bool {
	var statusErr *resilience.StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == code
}

func buildFilter(where map[string]string) map[string]any {
	if len(where) == 0 {
		return nil
	}
	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	must := make([]map[string]any, 0, len(keys))
	for _, k := range keys {
		must = append(must, map[string]any{
			"key":   payloadMetadata + "." + k,
			"match": map[string]any{"value": where[k]},
		})
	}
	return map[string]any{"must": must}
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

func chunkFromPayload(id string, payload map[string]any) domain.Chunk {
	ch := domain.Chunk{ID: id, Metadata: domain.Metadata{}}
	ch.Text = getStringPayload(payload, payloadDocument)
	if meta, ok := payload[payloadMetadata].(map[string]any); ok {
		for k := range meta {
			ch.Metadata[k] = getStringPayload(meta, k)
		}
	}
	return ch
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/probe365/advocacia-ia-sub000/internal/core/domain"
	"github.com/probe365/advocacia-ia-sub000/internal/infrastructure/resilience"
)

func TestChatModelSendsPromptVerbatim(t *testing.T) {
	var capturedPrompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		capturedPrompt, _ = payload["prompt"].(string)
		if payload["stream"] != false {
			t.Errorf("expected stream=false, got %v", payload["stream"])
		}
		_, _ = w.Write([]byte(`{"response":"  resposta  "}`))
	}))
	defer server.Close()

	model := NewChatModel(New(server.URL, "gen", "embed"))
	out, err := model.Complete(context.Background(), "Pergunta: qual o prazo?")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if out != "resposta" {
		t.Fatalf("expected trimmed response, got %q", out)
	}
	if capturedPrompt != "Pergunta: qual o prazo?" {
		t.Fatalf("unexpected prompt: %s", capturedPrompt)
	}
}

func TestEmbedIncludesHTTPBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadRequest)
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "gen", "embed"))
	_, err := embedder.Embed(context.Background(), []string{"hello"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrExternalCollaborator) {
		t.Fatalf("expected ErrExternalCollaborator, got %v", err)
	}
}

func TestGenerateUnwrapsJSONErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model \"gen\" not found, try pulling it first"}`))
	}))
	defer server.Close()

	_, err := NewChatModel(New(server.URL, "gen", "embed")).Complete(context.Background(), "oi")
	var statusErr *resilience.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusNotFound || statusErr.Body != `model "gen" not found, try pulling it first` {
		t.Fatalf("unexpected status error %+v", statusErr)
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("missing model must not be temporary")
	}
}

func TestEmbedRetriesTransientStatus(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"embeddings":[[0.1,0.2]]}`))
	}))
	defer server.Close()

	exec := resilience.NewExecutor(resilience.Config{Retry: resilience.RetryPolicy{
		MaxAttempts:    2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
	}}, nil)
	client := NewWithOptions(server.URL, "gen", "embed", Options{ResilienceExecutor: exec})
	vec, err := NewEmbedder(client).EmbedQuery(context.Background(), "hello")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	if len(vec) != 2 {
		t.Fatalf("expected 2 dims, got %d", len(vec))
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("expected 2 calls, got %d", got)
	}
}

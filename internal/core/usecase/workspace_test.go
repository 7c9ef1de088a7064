package usecase

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/probe365/advocacia-ia-sub000/internal/core/domain"
)

func TestValidateIDRejectsPathSegments(t *testing.T) {
	for _, id := range []string{"", "..", "a/b", "../x", "a..b", "caso 1"} {
		if err := ValidateID("case", id); !domain.IsKind(err, domain.ErrInvalidInput) {
			t.Fatalf("ValidateID(%q) error = %v, want invalid input", id, err)
		}
	}
	for _, id := range []string{"acme", "caso-1", "2024.001_a"} {
		if err := ValidateID("case", id); err != nil {
			t.Fatalf("ValidateID(%q) error = %v", id, err)
		}
	}
}

func TestCaseReturnsSamePipeline(t *testing.T) {
	env := newTestEnv(t, false)
	a := env.pipeline(t)
	b := env.pipeline(t)
	if a != b {
		t.Fatalf("expected cached pipeline")
	}
	if _, err := env.ws.Case(context.Background(), "acme", "../c2"); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid case id, got %v", err)
	}
}

func TestEnqueueThenHandleUploadJob(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	job, err := env.ws.EnqueueUpload(ctx, "acme", "c1", "../notas.txt", []byte("nota do cliente"))
	if err != nil {
		t.Fatalf("EnqueueUpload() error = %v", err)
	}
	if job.Filename != "notas.txt" || job.StorageKey != "acme/c1/uploads/notas.txt" || len(env.queue.jobs) != 1 {
		t.Fatalf("unexpected job %+v, queued %d", job, len(env.queue.jobs))
	}

	res, err := env.ws.HandleUploadJob(ctx, env.queue.jobs[0])
	if err != nil {
		t.Fatalf("HandleUploadJob() error = %v", err)
	}
	if res.Source != "notas.txt" || res.Chunks != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestEmentaSearchAndDelete(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	if _, err := env.ws.IngestEmenta(ctx, "acme", "resp-1.txt", []byte("APELAÇÃO. Dano moral configurado.")); err != nil {
		t.Fatalf("IngestEmenta() error = %v", err)
	}
	if _, err := env.ws.IngestEmenta(ctx, "acme", "resp-2.txt", []byte("Cobrança indevida. Repetição em dobro.")); err != nil {
		t.Fatalf("IngestEmenta() error = %v", err)
	}
	hits, err := env.ws.SearchEmentas(ctx, "acme", "dano moral", 0)
	if err != nil {
		t.Fatalf("SearchEmentas() error = %v", err)
	}
	if len(hits) != 2 || hits[0].Filename != "resp-1.txt" || hits[0].Similarity <= 0 || hits[0].Similarity > 1 {
		t.Fatalf("unexpected hits %+v", hits)
	}

	n, err := env.ws.DeleteEmenta(ctx, "acme", "resp-1.txt")
	if err != nil || n != 1 {
		t.Fatalf("DeleteEmenta() = %d, %v", n, err)
	}
	if n, err := env.ws.DeleteEmenta(ctx, "acme", "resp-1.txt"); err != nil || n != 0 {
		t.Fatalf("second DeleteEmenta() = %d, %v", n, err)
	}
	if _, err := env.ws.SearchEmentas(ctx, "acme", " ", 3); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for blank query, got %v", err)
	}
}

func TestEmentaStoreScoping(t *testing.T) {
	ctx := context.Background()

	isolated := newTestEnv(t, false)
	if _, err := isolated.ws.IngestEmenta(ctx, "acme", "e.txt", []byte("ementa")); err != nil {
		t.Fatalf("IngestEmenta() error = %v", err)
	}
	if hits, _ := isolated.ws.SearchEmentas(ctx, "other", "ementa", 5); len(hits) != 0 {
		t.Fatalf("tenants must not share ementas by default, got %+v", hits)
	}

	shared := newTestEnv(t, true)
	if _, err := shared.ws.IngestEmenta(ctx, "acme", "e.txt", []byte("ementa")); err != nil {
		t.Fatalf("IngestEmenta() error = %v", err)
	}
	if hits, _ := shared.ws.SearchEmentas(ctx, "other", "ementa", 5); len(hits) != 1 {
		t.Fatalf("shared ementa store must be visible to every tenant, got %+v", hits)
	}
}

func TestIngestKBFeedsCaseRetrieval(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	res, err := env.ws.IngestKB(ctx, "acme", "cdc.txt", []byte("Código de Defesa do Consumidor"))
	if err != nil {
		t.Fatalf("IngestKB() error = %v", err)
	}
	if res.Chunks != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	chat, err := env.pipeline(t).Chat(ctx, "o que diz o cdc?", []domain.ChatTurn{}, domain.SearchKB)
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if len(chat.SourceDocuments) != 1 || chat.SourceDocuments[0].Source != "cdc.txt" {
		t.Fatalf("expected kb source, got %+v", chat.SourceDocuments)
	}
}

func TestDeleteCaseRemovesTreeAndChunks(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	p := env.pipeline(t)
	if _, err := p.ProcessUpload(ctx, "a.txt", []byte("texto")); err != nil {
		t.Fatalf("ProcessUpload() error = %v", err)
	}
	if _, err := p.ExportDraft("minuta"); err != nil {
		t.Fatalf("ExportDraft() error = %v", err)
	}

	if err := env.ws.DeleteCase(ctx, "acme", "c1"); err != nil {
		t.Fatalf("DeleteCase() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(env.base, "acme", "c1")); !os.IsNotExist(err) {
		t.Fatalf("expected case dir removed, stat error = %v", err)
	}
	store := env.stores.stores[filepath.Join(env.base, "acme", "c1", "vectorstore")]
	if store.Len() != 0 {
		t.Fatalf("expected case chunks deleted, got %d", store.Len())
	}
	if again := env.pipeline(t); again == p {
		t.Fatalf("expected a fresh pipeline after delete")
	}
}

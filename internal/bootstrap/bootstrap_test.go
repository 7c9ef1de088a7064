package bootstrap

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/probe365/advocacia-ia-sub000/internal/config"
	"github.com/probe365/advocacia-ia-sub000/internal/core/domain"
)

func localConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		DataBasePath:     t.TempDir(),
		ChunkSize:        1000,
		ChunkOverlap:     200,
		RetrieverCaseK:   7,
		RetrieverKBK:     3,
		RetrieverEmentaK: 5,
		SummaryMaxWords:  300,
		LLMProvider:      "ollama",
		OllamaURL:        "http://127.0.0.1:1",
		EmbedCacheSize:   16,
		VectorBackend:    "file",
		VectorDistance:   "l2",
		OCRProvider:      "tesseract",
		TesseractPath:    "tesseract",
		STTProvider:      "none",
		UploadStorage:    "local",
		MediaWorkDir:     t.TempDir(),
	}
}

func TestNewBuildsLocalWorkspaceWithoutBroker(t *testing.T) {
	app, err := New(context.Background(), localConfig(t), nil, Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Close()

	if app.Workspace == nil {
		t.Fatalf("expected workspace")
	}
	if app.Queue != nil {
		t.Fatalf("expected no queue without Options.Queue")
	}
	pipeline, err := app.Workspace.Case(context.Background(), "acme", "c1")
	if err != nil {
		t.Fatalf("Case() error = %v", err)
	}
	docs, err := pipeline.ListUniqueCaseDocuments(context.Background())
	if err != nil || len(docs) != 0 {
		t.Fatalf("ListUniqueCaseDocuments() = %v, %v", docs, err)
	}
}

func TestNewRejectsUnknownProviders(t *testing.T) {
	mutations := map[string]func(*config.Config){
		"llm":      func(c *config.Config) { c.LLMProvider = "mystery" },
		"vector":   func(c *config.Config) { c.VectorBackend = "chroma" },
		"distance": func(c *config.Config) { c.VectorDistance = "ip" },
		"ocr":      func(c *config.Config) { c.OCRProvider = "paper" },
		"stt":      func(c *config.Config) { c.STTProvider = "whisper" },
		"storage":  func(c *config.Config) { c.UploadStorage = "ftp" },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			cfg := localConfig(t)
			mutate(&cfg)
			if _, err := New(context.Background(), cfg, nil, Options{}); !domain.IsKind(err, domain.ErrInvalidInput) {
				t.Fatalf("New() error = %v, want invalid input", err)
			}
		})
	}
}

func TestNewClassifierFailsOnColdStart(t *testing.T) {
	cfg := config.Config{ClassifierArtifactsDir: filepath.Join(t.TempDir(), "missing")}
	if _, err := NewClassifier(cfg, nil); !domain.IsKind(err, domain.ErrClassifierColdStart) {
		t.Fatalf("NewClassifier() error = %v, want cold start", err)
	}
}

package ports

import (
	"context"
	"io"

	"github.com/probe365/advocacia-ia-sub000/internal/core/domain"
)

// ChatModel completes a single prompt.
type ChatModel interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Embedder builds vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// SpeechToText transcribes an audio file on disk.
type SpeechToText interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// OCR recognizes text in an encoded image.
type OCR interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// PageRenderer rasterizes one PDF page to PNG.
type PageRenderer interface {
	RenderPage(ctx context.Context, pdfPath string, page, dpi int) ([]byte, error)
}

// AudioTrackExtractor probes video containers and extracts their audio track.
type AudioTrackExtractor interface {
	HasAudio(ctx context.Context, videoPath string) (bool, error)
	ExtractAudio(ctx context.Context, videoPath, wavPath string) error
}

// TextExtractor converts raw bytes of one media class into text. Failures are
// logged and produce an empty string.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, suffix string) string
}

// Chunker splits text into overlapping windows.
type Chunker interface {
	Split(text string) []string
}

// EntityTagger extracts named-entity surface forms keyed by domain key.
type EntityTagger interface {
	Tag(ctx context.Context, text string) map[string][]string
}

// VectorStore is a persisted chunk collection with k-NN search.
type VectorStore interface {
	AddDocuments(ctx context.Context, chunks []domain.Chunk) ([]string, error)
	SimilaritySearchWithScore(ctx context.Context, query string, k int) ([]domain.ScoredChunk, error)
	Get(ctx context.Context, where map[string]string, include ...domain.Include) (domain.StoreGetResult, error)
	Delete(ctx context.Context, ids []string) error
	Persist(ctx context.Context) error
	Metric() domain.DistanceMetric
}

// StoreRef locates one store: a directory for file-backed stores and a
// collection name for server-backed ones.
type StoreRef struct {
	Dir        string
	Collection string
}

// VectorStoreFactory opens stores by reference.
type VectorStoreFactory interface {
	Open(ctx context.Context, ref StoreRef) (VectorStore, error)
}

// PromptRegistry resolves prompt templates by name.
type PromptRegistry interface {
	Template(name string) (domain.PromptTemplate, error)
}

// DigestCache stores derived artifacts keyed by document-set digest and focus hash.
type DigestCache interface {
	ReadSummary(digest, focusHash string) (string, bool)
	WriteSummary(digest, focusHash, summary string) error
	ReadFIRACJSON(digest, focusHash string) (domain.FIRAC, bool)
	WriteFIRACJSON(digest, focusHash string, record domain.FIRAC) error
	ReadFIRACRaw(digest, focusHash string) (string, bool)
	WriteFIRACRaw(digest, focusHash, raw string) error
	// Purge drops every derived artifact of the case.
	Purge() error
}

// ObjectStorage stores raw upload bytes.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// UploadQueue publishes and consumes upload jobs.
type UploadQueue interface {
	PublishUpload(ctx context.Context, job domain.UploadJob) error
	SubscribeUploads(ctx context.Context, handler func(context.Context, domain.UploadJob) error) error
}

// CadastralStore is the tenant-scoped view of the relational cadastral data.
type CadastralStore interface {
	GetProcesso(ctx context.Context, id string) (*domain.Processo, error)
	GetCliente(ctx context.Context, id string) (*domain.Cliente, error)
	GetAdvogado(ctx context.Context, oab string) (*domain.AdvogadoRecord, error)
	SaveChatTurn(ctx context.Context, caseID, role, content string) error
	GetChatHistory(ctx context.Context, caseID string) ([]domain.ChatTurn, error)
	SaveDocumento(ctx context.Context, doc domain.DocumentoRecord) error
	DeleteDocumento(ctx context.Context, caseID, title string) error
}

// CadastralDirectory hands out tenant-scoped cadastral stores.
type CadastralDirectory interface {
	ForTenant(tenant string) CadastralStore
}

// TextRepairer undoes known encoding damage in extracted text.
type TextRepairer interface {
	Repair(s string) string
}

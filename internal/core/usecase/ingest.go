package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/probe365/advocacia-ia-sub000/internal/core/domain"
	"github.com/probe365/advocacia-ia-sub000/internal/core/ports"
)

// TagSeparator joins the surface forms of one tag key into a scalar value.
const TagSeparator = "; "

type IngestRequest struct {
	Data     []byte
	Source   string
	Filename string
	Media    domain.MediaType
	Scope    domain.Scope
	// Suffix is the file extension, used by audio and video extraction.
	Suffix string
}

// IngestReport describes what one ingestion inserted. Warning wraps
// ErrIngestionEmpty when nothing was inserted.
type IngestReport struct {
	IDs         []string
	Chunks      int
	Placeholder bool
	Warning     error
}

type IngestionHandler struct {
	extractors map[domain.MediaType]ports.TextExtractor
	chunker    ports.Chunker
	tagger     ports.EntityTagger
	repairer   ports.TextRepairer
	logger     *slog.Logger
}

func NewIngestionHandler(
	extractors map[domain.MediaType]ports.TextExtractor,
	chunker ports.Chunker,
	tagger ports.EntityTagger,
	repairer ports.TextRepairer,
	logger *slog.Logger,
) *IngestionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestionHandler{
		extractors: extractors,
		chunker:    chunker,
		tagger:     tagger,
		repairer:   repairer,
		logger:     logger.With("component", "ingestion"),
	}
}

func (h *IngestionHandler) IngestPDF(ctx context.Context, store ports.VectorStore, data []byte, source string, scope domain.Scope) (IngestReport, error) {
	return h.Ingest(ctx, store, IngestRequest{Data: data, Source: source, Filename: source, Media: domain.MediaPDF, Scope: scope, Suffix: ".pdf"})
}

func (h *IngestionHandler) IngestImage(ctx context.Context, store ports.VectorStore, data []byte, source string, scope domain.Scope) (IngestReport, error) {
	return h.Ingest(ctx, store, IngestRequest{Data: data, Source: source, Filename: source, Media: domain.MediaImage, Scope: scope})
}

func (h *IngestionHandler) IngestText(ctx context.Context, store ports.VectorStore, data []byte, source string, scope domain.Scope) (IngestReport, error) {
	return h.Ingest(ctx, store, IngestRequest{Data: data, Source: source, Filename: source, Media: domain.MediaText, Scope: scope, Suffix: ".txt"})
}

func (h *IngestionHandler) IngestAudio(ctx context.Context, store ports.VectorStore, data []byte, source, suffix string, scope domain.Scope) (IngestReport, error) {
	return h.Ingest(ctx, store, IngestRequest{Data: data, Source: source, Filename: source, Media: domain.MediaAudio, Scope: scope, Suffix: suffix})
}

func (h *IngestionHandler) IngestVideo(ctx context.Context, store ports.VectorStore, data []byte, source, suffix string, scope domain.Scope) (IngestReport, error) {
	return h.Ingest(ctx, store, IngestRequest{Data: data, Source: source, Filename: source, Media: domain.MediaVideo, Scope: scope, Suffix: suffix})
}

// Ingest extracts, chunks, tags and inserts one upload. Either every chunk
// is inserted and persisted or none is.
func (h *IngestionHandler) Ingest(ctx context.Context, store ports.VectorStore, req IngestRequest) (IngestReport, error) {
	base, err := baseMetadata(req)
	if err != nil {
		return IngestReport{}, err
	}
	logger := h.logger.With("source", base[domain.MetaSource], "media", string(req.Media), "scope", string(req.Scope))

	extractor, ok := h.extractors[extractorMedia(req.Media)]
	if !ok {
		return IngestReport{}, domain.WrapError(domain.ErrInvalidInput, "ingest", fmt.Errorf("no extractor for media %q", req.Media))
	}
	text := extractor.Extract(ctx, req.Data, req.Suffix)
	if err := ctx.Err(); err != nil {
		return IngestReport{}, err
	}
	if h.repairer != nil && (req.Scope == domain.ScopeKB || req.Scope == domain.ScopeEmenta) {
		text = h.repairer.Repair(text)
	}

	var chunks []domain.Chunk
	placeholder := false
	if strings.TrimSpace(text) == "" {
		if req.Media != domain.MediaImage {
			warning := domain.WrapError(domain.ErrIngestionEmpty, "ingest", fmt.Errorf("no text extracted from %s", base[domain.MetaSource]))
			logger.Warn("ingestion_empty")
			return IngestReport{Warning: warning}, nil
		}
		meta := base.Clone()
		meta[domain.MetaOCR] = "none"
		meta[domain.MetaChunkIndex] = "0"
		chunks = []domain.Chunk{{Text: domain.ImagePlaceholderText, Metadata: meta}}
		placeholder = true
		logger.Info("image_placeholder_inserted")
	} else {
		chunks = h.buildChunks(ctx, text, base)
		if len(chunks) == 0 {
			warning := domain.WrapError(domain.ErrIngestionEmpty, "ingest", fmt.Errorf("zero chunks for %s", base[domain.MetaSource]))
			logger.Warn("ingestion_empty", "reason", "zero_chunks")
			return IngestReport{Warning: warning}, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return IngestReport{}, err
	}
	ids, err := store.AddDocuments(ctx, chunks)
	if err != nil {
		return IngestReport{}, fmt.Errorf("add chunks: %w", err)
	}
	if err := ctx.Err(); err != nil {
		h.rollback(store, ids, logger)
		return IngestReport{}, err
	}
	if err := store.Persist(ctx); err != nil {
		h.rollback(store, ids, logger)
		return IngestReport{}, fmt.Errorf("persist store: %w", err)
	}

	logger.Info("ingestion_done", "chunks", len(ids))
	return IngestReport{IDs: ids, Chunks: len(ids), Placeholder: placeholder}, nil
}

func (h *IngestionHandler) buildChunks(ctx context.Context, text string, base domain.Metadata) []domain.Chunk {
	parts := h.chunker.Split(text)
	out := make([]domain.Chunk, 0, len(parts))
	for i, part := range parts {
		meta := domain.Metadata{}
		if h.tagger != nil {
			for key, value := range JoinTags(h.tagger.Tag(ctx, part)) {
				meta[key] = value
			}
		}
		for key, value := range base {
			meta[key] = value
		}
		meta[domain.MetaChunkIndex] = strconv.Itoa(i)
		out = append(out, domain.Chunk{Text: part, Metadata: meta})
	}
	return out
}

// rollback removes inserted ids after a failed commit. It runs detached from
// the request context so a cancellation does not leave chunks behind.
func (h *IngestionHandler) rollback(store ports.VectorStore, ids []string, logger *slog.Logger) {
	if err := store.Delete(context.Background(), ids); err != nil {
		logger.Error("ingestion_rollback_failed", "error", err)
	}
}

// JoinTags flattens tagger output into scalar metadata values, dropping
// empty lists.
func JoinTags(tags map[string][]string) map[string]string {
	out := make(map[string]string, len(tags))
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		values := make([]string, 0, len(tags[k]))
		for _, v := range tags[k] {
			if v = strings.TrimSpace(v); v != "" {
				values = append(values, v)
			}
		}
		if len(values) > 0 {
			out[k] = strings.Join(values, TagSeparator)
		}
	}
	return out
}

func baseMetadata(req IngestRequest) (domain.Metadata, error) {
	source := strings.TrimSpace(req.Source)
	filename := strings.TrimSpace(req.Filename)
	if filename == "" {
		filename = source
	}

	meta := domain.Metadata{domain.MetaType: string(req.Media)}
	switch req.Scope {
	case domain.ScopeCase, "":
		if source == "" {
			return nil, domain.WrapError(domain.ErrInvalidInput, "ingest", fmt.Errorf("source is required"))
		}
		meta[domain.MetaSource] = source
		meta[domain.MetaFilename] = filename
	case domain.ScopeKB:
		if source == "" {
			return nil, domain.WrapError(domain.ErrInvalidInput, "ingest", fmt.Errorf("source is required"))
		}
		meta[domain.MetaSource] = source
		meta[domain.MetaFilename] = filename
		meta[domain.MetaScope] = string(domain.ScopeKB)
	case domain.ScopeEmenta:
		if strings.TrimSpace(req.Filename) == "" {
			return nil, domain.WrapError(domain.ErrInvalidInput, "ingest", fmt.Errorf("filename is required for ementa uploads"))
		}
		meta[domain.MetaSource] = domain.EmentaSource
		meta[domain.MetaFilename] = filename
		meta[domain.MetaType] = string(domain.MediaJurisprudence)
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "ingest", fmt.Errorf("unknown scope %q", req.Scope))
	}
	return meta, nil
}

// extractorMedia maps jurisprudence uploads onto the text extractor.
func extractorMedia(media domain.MediaType) domain.MediaType {
	if media == domain.MediaJurisprudence {
		return domain.MediaText
	}
	return media
}

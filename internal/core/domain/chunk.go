package domain

import (
	"fmt"
	"strings"
)

// Well-known chunk metadata keys. Tag keys produced by the entity tagger are
// free-form and live alongside these.
const (
	MetaSource     = "source"
	MetaType       = "type"
	MetaFilename   = "filename"
	MetaScope      = "scope"
	MetaOCR        = "ocr"
	MetaChunkIndex = "chunk_index"
)

const (
	// EmentaSource is the symbolic source shared by every ementa chunk.
	EmentaSource = "ementa_kb_upload"
	// ImagePlaceholderText keeps an image without recognizable text listable.
	ImagePlaceholderText = "[imagem_sem_texto]"
)

type MediaType string

const (
	MediaPDF           MediaType = "pdf"
	MediaImage         MediaType = "image"
	MediaAudio         MediaType = "audio"
	MediaVideo         MediaType = "video"
	MediaText          MediaType = "text"
	MediaJurisprudence MediaType = "jurisprudence"
)

type Scope string

const (
	ScopeCase   Scope = "case"
	ScopeKB     Scope = "kb"
	ScopeEmenta Scope = "ementa"
)

type SearchScope string

const (
	SearchCase SearchScope = "case"
	SearchKB   SearchScope = "kb"
	SearchBoth SearchScope = "both"
)

func ParseSearchScope(raw string) (SearchScope, error) {
	switch SearchScope(strings.ToLower(strings.TrimSpace(raw))) {
	case "", SearchCase:
		return SearchCase, nil
	case SearchKB:
		return SearchKB, nil
	case SearchBoth:
		return SearchBoth, nil
	default:
		return "", WrapError(ErrInvalidInput, "parse search scope", fmt.Errorf("unknown search scope %q", raw))
	}
}

// Metadata holds scalar string values only so store filters stay exact-match.
type Metadata map[string]string

func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Matches reports whether every key in where has the same value in m.
func (m Metadata) Matches(where map[string]string) bool {
	for k, v := range where {
		if m[k] != v {
			return false
		}
	}
	return true
}

// Chunk is immutable once written to a store.
type Chunk struct {
	ID       string   `json:"id,omitempty"`
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
}

func (c Chunk) Source() string {
	return c.Metadata[MetaSource]
}

type DistanceMetric string

const (
	DistanceL2     DistanceMetric = "l2"
	DistanceCosine DistanceMetric = "cosine"
)

// ScoredChunk carries the non-negative distance reported by the store.
type ScoredChunk struct {
	Chunk    Chunk          `json:"chunk"`
	Distance float64        `json:"distance"`
	Metric   DistanceMetric `json:"metric"`
}

// Similarity converts the distance into a display score in (0, 1].
func (s ScoredChunk) Similarity() float64 {
	if s.Metric == DistanceCosine {
		sim := 1 - s.Distance
		switch {
		case sim < 0:
			return 0
		case sim > 1:
			return 1
		}
		return sim
	}
	d := s.Distance
	if d < 0 {
		d = 0
	}
	return 1 / (1 + d)
}

type Include string

const (
	IncludeMetadatas Include = "metadatas"
	IncludeDocuments Include = "documents"
)

// StoreGetResult mirrors the parallel-array shape of a metadata lookup.
type StoreGetResult struct {
	IDs       []string   `json:"ids"`
	Metadatas []Metadata `json:"metadatas,omitempty"`
	Documents []string   `json:"documents,omitempty"`
}

// CaseDocument aggregates the chunks of one uploaded source.
type CaseDocument struct {
	Source     string `json:"source"`
	Type       string `json:"type"`
	ChunkCount int    `json:"chunk_count"`
}

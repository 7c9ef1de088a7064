package domain

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatTurn is one persisted message of a case conversation.
type ChatTurn struct {
	ID        string    `json:"id,omitempty"`
	CaseID    string    `json:"case_id,omitempty"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

type SourcePreview struct {
	Source  string `json:"source"`
	Type    string `json:"type"`
	Preview string `json:"preview"`
}

type ChatResult struct {
	Answer          string          `json:"output"`
	SourceDocuments []SourcePreview `json:"source_documents"`
}

// UploadResult reports one processed upload. Warning is set when extraction
// produced no text and nothing was inserted.
type UploadResult struct {
	Source      string    `json:"source"`
	Media       MediaType `json:"type"`
	Chunks      int       `json:"chunks"`
	Placeholder bool      `json:"placeholder,omitempty"`
	Warning     error     `json:"-"`
}

type SummaryResult struct {
	Summary   string `json:"summary"`
	FromCache bool   `json:"from_cache"`
	Digest    string `json:"digest"`
}

// EmentaHit is one similarity match from the ementa store.
type EmentaHit struct {
	Filename   string  `json:"filename"`
	Text       string  `json:"text"`
	Distance   float64 `json:"distance"`
	Similarity float64 `json:"similarity"`
}

// UploadJob is the queued form of an upload awaiting ingestion.
type UploadJob struct {
	Tenant     string    `json:"tenant"`
	CaseID     string    `json:"case_id"`
	Filename   string    `json:"filename"`
	StorageKey string    `json:"storage_key"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

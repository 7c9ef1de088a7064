package ports

import (
	"context"

	"github.com/probe365/advocacia-ia-sub000/internal/core/domain"
)

// CaseService is the per-case analysis facade.
type CaseService interface {
	ProcessUpload(ctx context.Context, filename string, data []byte) (domain.UploadResult, error)
	ListUniqueCaseDocuments(ctx context.Context) ([]domain.CaseDocument, error)
	DeleteDocumentByFilename(ctx context.Context, filename string) error
	SummarizeWithCache(ctx context.Context, focus string) (domain.SummaryResult, error)
	GenerateFIRAC(ctx context.Context, focus string) (domain.FIRACResult, error)
	GeneratePetitionDraft(ctx context.Context, req domain.PetitionRequest) (string, error)
	Chat(ctx context.Context, question string, history []domain.ChatTurn, scope domain.SearchScope) (domain.ChatResult, error)
}

// ClassifierService serves label prediction and semantic lookup.
type ClassifierService interface {
	Predict(text string) (domain.Prediction, error)
	BatchPredict(texts []string) ([]domain.Prediction, error)
	IndexDocs(docs []domain.IndexDoc) (int, error)
	Similar(query string, k int) ([]domain.SimilarHit, error)
	ResetIndex() error
	Labels() []string
	IndexSize() int
}

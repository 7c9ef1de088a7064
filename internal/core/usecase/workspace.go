package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/probe365/advocacia-ia-sub000/internal/core/domain"
	"github.com/probe365/advocacia-ia-sub000/internal/core/ports"
)

const sharedTenantDir = "_shared"

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// WorkspaceConfig wires a Workspace. Queue and Cadastral may be nil.
type WorkspaceConfig struct {
	BaseDir         string
	Stores          ports.VectorStoreFactory
	Ingest          *IngestionHandler
	Chains          *ChainSet
	Petition        *PetitionGenerator
	Uploads         ports.ObjectStorage
	Queue           ports.UploadQueue
	Cadastral       ports.CadastralDirectory
	NewCache        func(dir string) ports.DigestCache
	CaseK           int
	KBK             int
	EmentaK         int
	SummaryMaxWords int
	EmentaShared    bool
	Logger          *slog.Logger
}

// Workspace owns the <base>/<tenant>/... layout, the tenant KB stores and
// the open case pipelines.
type Workspace struct {
	cfg    WorkspaceConfig
	logger *slog.Logger

	mu      sync.Mutex
	kb      map[string]ports.VectorStore
	ementas map[string]ports.VectorStore
	cases   map[string]*CasePipeline
}

func NewWorkspace(cfg WorkspaceConfig) *Workspace {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.EmentaK <= 0 {
		cfg.EmentaK = DefaultEmentaK
	}
	return &Workspace{
		cfg:     cfg,
		logger:  cfg.Logger.With("component", "workspace"),
		kb:      map[string]ports.VectorStore{},
		ementas: map[string]ports.VectorStore{},
		cases:   map[string]*CasePipeline{},
	}
}

// ValidateID accepts tenant and case identifiers that are safe path segments.
func ValidateID(kind, id string) error {
	if !identifierPattern.MatchString(id) || strings.Contains(id, "..") {
		return domain.WrapError(domain.ErrInvalidInput, "validate "+kind, fmt.Errorf("invalid %s id %q", kind, id))
	}
	return nil
}

func (w *Workspace) tenantDir(tenant string) string {
	return filepath.Join(w.cfg.BaseDir, tenant)
}

func (w *Workspace) caseDir(tenant, caseID string) string {
	return filepath.Join(w.cfg.BaseDir, tenant, caseID)
}

func (w *Workspace) caseRef(tenant, caseID string) ports.StoreRef {
	return ports.StoreRef{
		Dir:        filepath.Join(w.caseDir(tenant, caseID), "vectorstore"),
		Collection: tenant + "__case__" + caseID,
	}
}

func (w *Workspace) kbRef(tenant string) ports.StoreRef {
	return ports.StoreRef{Dir: filepath.Join(w.tenantDir(tenant), "kb_store"), Collection: tenant + "__kb"}
}

func (w *Workspace) ementaRef(tenant string) ports.StoreRef {
	owner := tenant
	if w.cfg.EmentaShared {
		owner = sharedTenantDir
	}
	return ports.StoreRef{Dir: filepath.Join(w.tenantDir(owner), "ementas_kb_store"), Collection: owner + "__ementas"}
}

// Case returns the pipeline of one case, opening its stores on first use.
func (w *Workspace) Case(ctx context.Context, tenant, caseID string) (*CasePipeline, error) {
	if err := ValidateID("tenant", tenant); err != nil {
		return nil, err
	}
	if err := ValidateID("case", caseID); err != nil {
		return nil, err
	}
	key := tenant + "/" + caseID

	w.mu.Lock()
	defer w.mu.Unlock()
	if p, ok := w.cases[key]; ok {
		return p, nil
	}
	kb, err := w.kbStoreLocked(ctx, tenant)
	if err != nil {
		return nil, err
	}
	store, err := w.cfg.Stores.Open(ctx, w.caseRef(tenant, caseID))
	if err != nil {
		return nil, fmt.Errorf("open case store: %w", err)
	}
	var cadastral ports.CadastralStore
	if w.cfg.Cadastral != nil {
		cadastral = w.cfg.Cadastral.ForTenant(tenant)
	}
	dir := w.caseDir(tenant, caseID)
	p := NewCasePipeline(CaseDeps{
		Tenant:          tenant,
		CaseID:          caseID,
		Dir:             dir,
		Store:           store,
		KB:              kb,
		Ingest:          w.cfg.Ingest,
		Chains:          w.cfg.Chains,
		Petition:        w.cfg.Petition,
		Cache:           w.cfg.NewCache(filepath.Join(dir, "cache")),
		Uploads:         w.cfg.Uploads,
		Cadastral:       cadastral,
		CaseK:           w.cfg.CaseK,
		KBK:             w.cfg.KBK,
		SummaryMaxWords: w.cfg.SummaryMaxWords,
		Logger:          w.cfg.Logger,
	})
	w.cases[key] = p
	return p, nil
}

func (w *Workspace) kbStoreLocked(ctx context.Context, tenant string) (ports.VectorStore, error) {
	if s, ok := w.kb[tenant]; ok {
		return s, nil
	}
	s, err := w.cfg.Stores.Open(ctx, w.kbRef(tenant))
	if err != nil {
		return nil, fmt.Errorf("open kb store: %w", err)
	}
	w.kb[tenant] = s
	return s, nil
}

func (w *Workspace) ementaStore(ctx context.Context, tenant string) (ports.VectorStore, error) {
	if err := ValidateID("tenant", tenant); err != nil {
		return nil, err
	}
	ref := w.ementaRef(tenant)
	w.mu.Lock()
	defer w.mu.Unlock()
	if s, ok := w.ementas[ref.Dir]; ok {
		return s, nil
	}
	s, err := w.cfg.Stores.Open(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("open ementa store: %w", err)
	}
	w.ementas[ref.Dir] = s
	return s, nil
}

// EnqueueUpload stores the raw bytes and publishes a job for the worker.
func (w *Workspace) EnqueueUpload(ctx context.Context, tenant, caseID, filename string, data []byte) (domain.UploadJob, error) {
	if w.cfg.Queue == nil || w.cfg.Uploads == nil {
		return domain.UploadJob{}, domain.WrapError(domain.ErrInvalidInput, "enqueue upload", errors.New("queue and upload storage are required"))
	}
	if err := ValidateID("tenant", tenant); err != nil {
		return domain.UploadJob{}, err
	}
	if err := ValidateID("case", caseID); err != nil {
		return domain.UploadJob{}, err
	}
	name, err := SafeUploadName(filename)
	if err != nil {
		return domain.UploadJob{}, err
	}
	job := domain.UploadJob{
		Tenant:     tenant,
		CaseID:     caseID,
		Filename:   name,
		StorageKey: UploadKey(tenant, caseID, name),
		EnqueuedAt: time.Now().UTC(),
	}
	if err := w.cfg.Uploads.Save(ctx, job.StorageKey, bytes.NewReader(data)); err != nil {
		return domain.UploadJob{}, fmt.Errorf("save upload: %w", err)
	}
	if err := w.cfg.Queue.PublishUpload(ctx, job); err != nil {
		return domain.UploadJob{}, fmt.Errorf("publish upload: %w", err)
	}
	w.logger.Info("upload_enqueued", "tenant", tenant, "case_id", caseID, "source", name)
	return job, nil
}

// HandleUploadJob ingests a queued upload from upload storage.
func (w *Workspace) HandleUploadJob(ctx context.Context, job domain.UploadJob) (domain.UploadResult, error) {
	p, err := w.Case(ctx, job.Tenant, job.CaseID)
	if err != nil {
		return domain.UploadResult{}, err
	}
	return p.ProcessStoredUpload(ctx, job.Filename)
}

// IngestKB adds reference material to the tenant knowledge base.
func (w *Workspace) IngestKB(ctx context.Context, tenant, filename string, data []byte) (domain.UploadResult, error) {
	if err := ValidateID("tenant", tenant); err != nil {
		return domain.UploadResult{}, err
	}
	w.mu.Lock()
	store, err := w.kbStoreLocked(ctx, tenant)
	w.mu.Unlock()
	if err != nil {
		return domain.UploadResult{}, err
	}
	return w.ingestTenant(ctx, store, filename, data, domain.ScopeKB)
}

// IngestEmenta adds one court-decision summary to the ementa store.
func (w *Workspace) IngestEmenta(ctx context.Context, tenant, filename string, data []byte) (domain.UploadResult, error) {
	store, err := w.ementaStore(ctx, tenant)
	if err != nil {
		return domain.UploadResult{}, err
	}
	return w.ingestTenant(ctx, store, filename, data, domain.ScopeEmenta)
}

func (w *Workspace) ingestTenant(ctx context.Context, store ports.VectorStore, filename string, data []byte, scope domain.Scope) (domain.UploadResult, error) {
	name, err := SafeUploadName(filename)
	if err != nil {
		return domain.UploadResult{}, err
	}
	media, suffix, err := DetectMedia(name, data)
	if err != nil {
		return domain.UploadResult{}, err
	}
	report, err := w.cfg.Ingest.Ingest(ctx, store, IngestRequest{
		Data:     data,
		Source:   name,
		Filename: name,
		Media:    media,
		Scope:    scope,
		Suffix:   suffix,
	})
	if err != nil {
		return domain.UploadResult{}, err
	}
	return domain.UploadResult{
		Source:      name,
		Media:       media,
		Chunks:      report.Chunks,
		Placeholder: report.Placeholder,
		Warning:     report.Warning,
	}, nil
}

// SearchEmentas returns the k ementa chunks closest to query.
func (w *Workspace) SearchEmentas(ctx context.Context, tenant, query string, k int) ([]domain.EmentaHit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search ementas", errors.New("query is required"))
	}
	store, err := w.ementaStore(ctx, tenant)
	if err != nil {
		return nil, err
	}
	if k <= 0 {
		k = w.cfg.EmentaK
	}
	hits, err := NewRetriever(store, k).Retrieve(ctx, query)
	if err != nil {
		return nil, err
	}
	out := make([]domain.EmentaHit, 0, len(hits))
	for _, hit := range hits {
		out = append(out, domain.EmentaHit{
			Filename:   hit.Chunk.Metadata[domain.MetaFilename],
			Text:       hit.Chunk.Text,
			Distance:   hit.Distance,
			Similarity: hit.Similarity(),
		})
	}
	return out, nil
}

// DeleteEmenta removes every chunk of one ementa file. Deleting an absent
// file succeeds.
func (w *Workspace) DeleteEmenta(ctx context.Context, tenant, filename string) (int, error) {
	name, err := SafeUploadName(filename)
	if err != nil {
		return 0, err
	}
	store, err := w.ementaStore(ctx, tenant)
	if err != nil {
		return 0, err
	}
	got, err := store.Get(ctx, map[string]string{domain.MetaSource: domain.EmentaSource, domain.MetaFilename: name})
	if err != nil {
		return 0, fmt.Errorf("find ementa chunks: %w", err)
	}
	if len(got.IDs) == 0 {
		return 0, nil
	}
	if err := store.Delete(ctx, got.IDs); err != nil {
		return 0, fmt.Errorf("delete ementa chunks: %w", err)
	}
	if err := store.Persist(ctx); err != nil {
		return 0, fmt.Errorf("persist ementa store: %w", err)
	}
	return len(got.IDs), nil
}

// DeleteCase drops every chunk of the case, removes its directory tree and
// forgets the open pipeline.
func (w *Workspace) DeleteCase(ctx context.Context, tenant, caseID string) error {
	p, err := w.Case(ctx, tenant, caseID)
	if err != nil {
		return err
	}
	got, err := p.store.Get(ctx, nil)
	if err != nil {
		return fmt.Errorf("list case chunks: %w", err)
	}
	if len(got.IDs) > 0 {
		if err := p.store.Delete(ctx, got.IDs); err != nil {
			return fmt.Errorf("delete case chunks: %w", err)
		}
	}

	w.mu.Lock()
	delete(w.cases, tenant+"/"+caseID)
	w.mu.Unlock()

	if err := os.RemoveAll(w.caseDir(tenant, caseID)); err != nil {
		return fmt.Errorf("remove case dir: %w", err)
	}
	w.logger.Info("case_deleted", "tenant", tenant, "case_id", caseID, "chunks", len(got.IDs))
	return nil
}

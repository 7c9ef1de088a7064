package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/probe365/advocacia-ia-sub000/internal/core/domain"
	"github.com/probe365/advocacia-ia-sub000/internal/core/ports"
)

var _ ports.CaseService = (*CasePipeline)(nil)

// CaseDeps wires one case pipeline. Cadastral may be nil.
type CaseDeps struct {
	Tenant          string
	CaseID          string
	Dir             string
	Store           ports.VectorStore
	KB              ports.VectorStore
	Ingest          *IngestionHandler
	Chains          *ChainSet
	Petition        *PetitionGenerator
	Cache           ports.DigestCache
	Uploads         ports.ObjectStorage
	Cadastral       ports.CadastralStore
	CaseK           int
	KBK             int
	SummaryMaxWords int
	Logger          *slog.Logger
}

// CasePipeline is the per-case facade over ingestion, analysis, caching and
// petition drafting. Callers serialize writes to one case.
type CasePipeline struct {
	tenant    string
	caseID    string
	dir       string
	store     ports.VectorStore
	ingest    *IngestionHandler
	chains    *ChainSet
	analyzer  *Analyzer
	petition  *PetitionGenerator
	cache     ports.DigestCache
	uploads   ports.ObjectStorage
	cadastral ports.CadastralStore
	maxWords  int
	logger    *slog.Logger
}

func NewCasePipeline(deps CaseDeps) *CasePipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("tenant", deps.Tenant, "case_id", deps.CaseID)
	return &CasePipeline{
		tenant:    deps.Tenant,
		caseID:    deps.CaseID,
		dir:       deps.Dir,
		store:     deps.Store,
		ingest:    deps.Ingest,
		chains:    deps.Chains,
		analyzer:  NewAnalyzer(deps.Chains, NewRetriever(deps.Store, deps.CaseK), NewRetriever(deps.KB, deps.KBK), logger),
		petition:  deps.Petition,
		cache:     deps.Cache,
		uploads:   deps.Uploads,
		cadastral: deps.Cadastral,
		maxWords:  deps.SummaryMaxWords,
		logger:    logger.With("component", "case_pipeline"),
	}
}

// UploadKey is the object storage key of a raw case upload.
func UploadKey(tenant, caseID, name string) string {
	return strings.Join([]string{tenant, caseID, "uploads", name}, "/")
}

// ProcessUpload stores the raw bytes and ingests them into the case store.
func (p *CasePipeline) ProcessUpload(ctx context.Context, filename string, data []byte) (domain.UploadResult, error) {
	name, err := SafeUploadName(filename)
	if err != nil {
		return domain.UploadResult{}, err
	}
	if p.uploads != nil {
		if err := p.uploads.Save(ctx, UploadKey(p.tenant, p.caseID, name), bytes.NewReader(data)); err != nil {
			return domain.UploadResult{}, fmt.Errorf("save upload: %w", err)
		}
	}
	return p.ingestUpload(ctx, name, data)
}

// ProcessStoredUpload ingests an upload whose bytes were saved earlier, as
// queued uploads are.
func (p *CasePipeline) ProcessStoredUpload(ctx context.Context, filename string) (domain.UploadResult, error) {
	name, err := SafeUploadName(filename)
	if err != nil {
		return domain.UploadResult{}, err
	}
	if p.uploads == nil {
		return domain.UploadResult{}, domain.WrapError(domain.ErrInvalidInput, "process stored upload", errors.New("upload storage is not configured"))
	}
	rc, err := p.uploads.Open(ctx, UploadKey(p.tenant, p.caseID, name))
	if err != nil {
		return domain.UploadResult{}, fmt.Errorf("open upload: %w", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return domain.UploadResult{}, fmt.Errorf("read upload: %w", err)
	}
	return p.ingestUpload(ctx, name, data)
}

func (p *CasePipeline) ingestUpload(ctx context.Context, name string, data []byte) (domain.UploadResult, error) {
	media, suffix, err := DetectMedia(name, data)
	if err != nil {
		return domain.UploadResult{}, err
	}
	report, err := p.ingest.Ingest(ctx, p.store, IngestRequest{
		Data:     data,
		Source:   name,
		Filename: name,
		Media:    media,
		Scope:    domain.ScopeCase,
		Suffix:   suffix,
	})
	if err != nil {
		return domain.UploadResult{}, err
	}
	result := domain.UploadResult{
		Source:      name,
		Media:       media,
		Chunks:      report.Chunks,
		Placeholder: report.Placeholder,
		Warning:     report.Warning,
	}
	if report.Chunks > 0 {
		p.purgeCache("upload", name)
	}
	if report.Chunks > 0 && p.cadastral != nil {
		err := p.cadastral.SaveDocumento(ctx, domain.DocumentoRecord{
			CaseID:     p.caseID,
			Title:      name,
			Media:      media,
			StorageKey: UploadKey(p.tenant, p.caseID, name),
			Size:       int64(len(data)),
			Chunks:     report.Chunks,
			CreatedAt:  time.Now().UTC(),
		})
		if err != nil {
			p.logger.Warn("save_documento_failed", "source", name, "error", err)
		}
	}
	return result, nil
}

// ListUniqueCaseDocuments aggregates the case store metadata by source.
func (p *CasePipeline) ListUniqueCaseDocuments(ctx context.Context) ([]domain.CaseDocument, error) {
	got, err := p.store.Get(ctx, nil, domain.IncludeMetadatas)
	if err != nil {
		return nil, fmt.Errorf("list case chunks: %w", err)
	}
	bySource := map[string]*domain.CaseDocument{}
	for _, meta := range got.Metadatas {
		source := meta[domain.MetaSource]
		if source == "" {
			continue
		}
		doc, ok := bySource[source]
		if !ok {
			doc = &domain.CaseDocument{Source: source, Type: meta[domain.MetaType]}
			bySource[source] = doc
		}
		doc.ChunkCount++
	}
	out := make([]domain.CaseDocument, 0, len(bySource))
	for _, doc := range bySource {
		out = append(out, *doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out, nil
}

// DeleteDocumentByFilename removes every chunk of the source. Deleting an
// absent document succeeds.
func (p *CasePipeline) DeleteDocumentByFilename(ctx context.Context, filename string) error {
	name, err := SafeUploadName(filename)
	if err != nil {
		return err
	}
	got, err := p.store.Get(ctx, map[string]string{domain.MetaSource: name})
	if err != nil {
		return fmt.Errorf("find document chunks: %w", err)
	}
	if len(got.IDs) > 0 {
		if err := p.store.Delete(ctx, got.IDs); err != nil {
			return fmt.Errorf("delete document chunks: %w", err)
		}
		if err := p.store.Persist(ctx); err != nil {
			return fmt.Errorf("persist store: %w", err)
		}
		p.purgeCache("delete", name)
	}
	if p.uploads != nil {
		if err := p.uploads.Delete(ctx, UploadKey(p.tenant, p.caseID, name)); err != nil && !domain.IsKind(err, domain.ErrDocumentNotFound) {
			p.logger.Warn("upload_delete_failed", "source", name, "error", err)
		}
	}
	if p.cadastral != nil {
		if err := p.cadastral.DeleteDocumento(ctx, p.caseID, name); err != nil {
			p.logger.Warn("delete_documento_failed", "source", name, "error", err)
		}
	}
	p.logger.Info("document_deleted", "source", name, "chunks", len(got.IDs))
	return nil
}

func (p *CasePipeline) purgeCache(reason, source string) {
	if err := p.cache.Purge(); err != nil {
		p.logger.Warn("cache_purge_failed", "reason", reason, "source", source, "error", err)
	}
}

func (p *CasePipeline) cacheKeys(ctx context.Context, focus string) (string, string, int, error) {
	docs, err := p.ListUniqueCaseDocuments(ctx)
	if err != nil {
		return "", "", 0, err
	}
	return domain.DocumentDigest(docs), domain.FocusHash(focus), len(docs), nil
}

func (p *CasePipeline) SummarizeWithCache(ctx context.Context, focus string) (domain.SummaryResult, error) {
	digest, focusHash, docCount, err := p.cacheKeys(ctx, focus)
	if err != nil {
		return domain.SummaryResult{}, err
	}
	if summary, ok := p.cache.ReadSummary(digest, focusHash); ok {
		return domain.SummaryResult{Summary: summary, FromCache: true, Digest: digest}, nil
	}
	summary, err := p.analyzer.Summarize(ctx, focus, p.maxWords)
	if err != nil {
		return domain.SummaryResult{}, err
	}
	if docCount > 0 && summary != EmptySummary {
		if err := p.cache.WriteSummary(digest, focusHash, summary); err != nil {
			p.logger.Warn("cache_write_failed", "artifact", "summary", "error", err)
		}
	}
	return domain.SummaryResult{Summary: summary, Digest: digest}, nil
}

// GenerateFIRAC reads the cached record, then the cached raw answer, and
// only then asks the model: first for markdown sections, then for JSON.
func (p *CasePipeline) GenerateFIRAC(ctx context.Context, focus string) (domain.FIRACResult, error) {
	digest, focusHash, _, err := p.cacheKeys(ctx, focus)
	if err != nil {
		return domain.FIRACResult{}, err
	}
	base := domain.FIRACResult{Digest: digest, Focus: domain.NormalizeFocus(focus)}

	if record, ok := p.cache.ReadFIRACJSON(digest, focusHash); ok {
		base.Data = record.Normalized(domain.NeutralMarker)
		base.Cached = true
		base.Raw, _ = p.cache.ReadFIRACRaw(digest, focusHash)
		return base, nil
	}
	if raw, ok := p.cache.ReadFIRACRaw(digest, focusHash); ok {
		if record, ok := ParseFIRAC(raw); ok {
			base.Raw = raw
			base.Cached = true
			return p.finishFIRAC(base, record, focusHash), nil
		}
		p.logger.Warn("firac_raw_unparsed", "digest", digest)
	}

	caseContext, err := p.analyzer.CaseContext(ctx, focus)
	if err != nil {
		return domain.FIRACResult{}, err
	}
	vars := map[string]string{"context": caseContext, "focus": firstNonEmpty(base.Focus, DefaultFIRACFocus)}
	for _, chain := range []string{ChainFIRACReport, ChainFIRACJSON} {
		raw, err := p.chains.Run(ctx, chain, vars)
		if err != nil {
			return domain.FIRACResult{}, err
		}
		base.Raw = raw
		if err := p.cache.WriteFIRACRaw(digest, focusHash, raw); err != nil {
			p.logger.Warn("cache_write_failed", "artifact", "firac_raw", "error", err)
		}
		if record, ok := ParseFIRAC(raw); ok {
			return p.finishFIRAC(base, record, focusHash), nil
		}
		p.logger.Warn("firac_parse_failed", "chain", chain)
	}
	return p.finishFIRAC(base, domain.FIRAC{}, focusHash), nil
}

// finishFIRAC fills empty fields with the neutral marker and caches the
// structured record only when nothing was missing.
func (p *CasePipeline) finishFIRAC(res domain.FIRACResult, record domain.FIRAC, focusHash string) domain.FIRACResult {
	res.Missing = record.Missing()
	res.Data = record.Normalized(domain.NeutralMarker)
	if len(res.Missing) > 0 {
		res.Cached = false
		res.Warning = &domain.FieldMissingError{Fields: res.Missing}
		p.logger.Warn("firac_fields_missing", "fields", strings.Join(res.Missing, ","))
		return res
	}
	if err := p.cache.WriteFIRACJSON(res.Digest, focusHash, record); err != nil {
		p.logger.Warn("cache_write_failed", "artifact", "firac_json", "error", err)
	}
	return res
}

// GeneratePetitionDraft fills blank form fields from the cadastral records,
// runs FIRAC and renders the petition.
func (p *CasePipeline) GeneratePetitionDraft(ctx context.Context, req domain.PetitionRequest) (string, error) {
	form := p.enrichForm(ctx, req)
	firac, err := p.GenerateFIRAC(ctx, req.Focus)
	if err != nil {
		return "", err
	}
	return p.petition.Generate(ctx, form, firac.Data)
}

func (p *CasePipeline) enrichForm(ctx context.Context, req domain.PetitionRequest) domain.PetitionForm {
	form := req.Form
	if p.cadastral == nil {
		return form
	}
	if oab := strings.TrimSpace(form.Advogado.OABNumero); oab != "" {
		adv, err := p.cadastral.GetAdvogado(ctx, oab)
		switch {
		case err != nil:
			p.logger.Debug("advogado_lookup_failed", "error", err)
		case adv != nil:
			form.Advogado.Nome = firstNonEmpty(form.Advogado.Nome, adv.Nome)
			form.Advogado.Email = firstNonEmpty(form.Advogado.Email, adv.Email)
			form.Advogado.EscritorioEndereco = firstNonEmpty(form.Advogado.EscritorioEndereco, adv.Endereco)
		}
	}
	if id := strings.TrimSpace(req.ProcessoID); id != "" {
		proc, err := p.cadastral.GetProcesso(ctx, id)
		if err != nil || proc == nil || proc.ClienteID == "" {
			return form
		}
		cli, err := p.cadastral.GetCliente(ctx, proc.ClienteID)
		if err != nil || cli == nil {
			return form
		}
		form.Autor.Nome = firstNonEmpty(form.Autor.Nome, cli.Nome)
		form.Autor.CPF = firstNonEmpty(form.Autor.CPF, cli.Documento)
		form.Autor.Email = firstNonEmpty(form.Autor.Email, cli.Email)
		form.Autor.Endereco = firstNonEmpty(form.Autor.Endereco, cli.Endereco)
		form.Autor.Nacionalidade = firstNonEmpty(form.Autor.Nacionalidade, cli.Nacionalidade)
		form.Autor.EstadoCivil = firstNonEmpty(form.Autor.EstadoCivil, cli.EstadoCivil)
		form.Autor.Profissao = firstNonEmpty(form.Autor.Profissao, cli.Profissao)
	}
	return form
}

// Chat answers a question and records both turns with the cadastral store.
// A nil history is loaded from the store.
func (p *CasePipeline) Chat(ctx context.Context, question string, history []domain.ChatTurn, scope domain.SearchScope) (domain.ChatResult, error) {
	if history == nil && p.cadastral != nil {
		loaded, err := p.cadastral.GetChatHistory(ctx, p.caseID)
		if err != nil {
			p.logger.Warn("chat_history_load_failed", "error", err)
		}
		history = loaded
	}
	result, err := p.analyzer.Chat(ctx, question, history, scope)
	if err != nil {
		return domain.ChatResult{}, err
	}
	if p.cadastral != nil {
		for _, turn := range []domain.ChatTurn{
			{Role: domain.RoleUser, Content: strings.TrimSpace(question)},
			{Role: domain.RoleAssistant, Content: result.Answer},
		} {
			if err := p.cadastral.SaveChatTurn(ctx, p.caseID, turn.Role, turn.Content); err != nil {
				p.logger.Warn("chat_turn_save_failed", "role", turn.Role, "error", err)
			}
		}
	}
	return result, nil
}

func (p *CasePipeline) AnalyzeFIRAC(ctx context.Context, focus string) (map[string]string, error) {
	caseContext, err := p.analyzer.CaseContext(ctx, focus)
	if err != nil {
		return nil, err
	}
	return p.analyzer.AnalyzeFIRAC(ctx, caseContext), nil
}

func (p *CasePipeline) IdentifyLegalRisks(ctx context.Context, focus string) (string, error) {
	return p.analyzer.IdentifyLegalRisks(ctx, focus)
}

func (p *CasePipeline) SuggestNextSteps(ctx context.Context, focus string) (string, error) {
	return p.analyzer.SuggestNextSteps(ctx, focus)
}

// ExportDraft writes text to exports/<case-id>.txt and returns the path.
func (p *CasePipeline) ExportDraft(text string) (string, error) {
	dir := filepath.Join(p.dir, "exports")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create exports dir: %w", err)
	}
	path := filepath.Join(dir, p.caseID+".txt")
	tmp, err := os.CreateTemp(dir, ".export-*")
	if err != nil {
		return "", fmt.Errorf("create temp export: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(text); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close export: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("rename export: %w", err)
	}
	return path, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

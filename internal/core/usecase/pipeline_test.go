package usecase

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/probe365/advocacia-ia-sub000/internal/core/domain"
	"github.com/probe365/advocacia-ia-sub000/internal/core/ports"
	"github.com/probe365/advocacia-ia-sub000/internal/infrastructure/cache/digest"
)

type testEnv struct {
	ws        *Workspace
	model     *modelFake
	stores    *storeFactoryFake
	uploads   *storageFake
	queue     *queueFake
	cadastral *cadastralFake
	base      string
}

func newTestEnv(t *testing.T, shared bool) *testEnv {
	t.Helper()
	env := &testEnv{
		model:     newModelFake(),
		stores:    &storeFactoryFake{},
		uploads:   &storageFake{},
		queue:     &queueFake{},
		cadastral: &cadastralFake{},
		base:      t.TempDir(),
	}
	extractors := map[domain.MediaType]ports.TextExtractor{
		domain.MediaPDF:   extractorFake{text: "O autor comprou produto defeituoso."},
		domain.MediaImage: extractorFake{},
		domain.MediaText:  extractorFake{echo: true},
	}
	chains := NewChainSet(registryFake{}, env.model, nil)
	env.ws = NewWorkspace(WorkspaceConfig{
		BaseDir:   env.base,
		Stores:    env.stores,
		Ingest:    NewIngestionHandler(extractors, chunkerFake{}, nil, &repairerFake{}, nil),
		Chains:    chains,
		Petition:  newTestPetition(env.model),
		Uploads:   env.uploads,
		Queue:     env.queue,
		Cadastral: cadastralDirectoryFake{store: env.cadastral},
		NewCache: func(dir string) ports.DigestCache {
			return digest.New(dir, nil)
		},
		CaseK:           DefaultCaseK,
		KBK:             DefaultKBK,
		SummaryMaxWords: 100,
		EmentaShared:    shared,
	})
	return env
}

func (e *testEnv) pipeline(t *testing.T) *CasePipeline {
	t.Helper()
	p, err := e.ws.Case(context.Background(), "acme", "c1")
	if err != nil {
		t.Fatalf("Case() error = %v", err)
	}
	return p
}

func TestSummaryColdThenWarmThenInvalidatedByDelete(t *testing.T) {
	env := newTestEnv(t, false)
	p := env.pipeline(t)
	ctx := context.Background()

	if _, err := p.ProcessUpload(ctx, "compra.pdf", []byte("%PDF-1.4")); err != nil {
		t.Fatalf("ProcessUpload() error = %v", err)
	}
	cold, err := p.SummarizeWithCache(ctx, "Resumo geral do caso")
	if err != nil {
		t.Fatalf("SummarizeWithCache() error = %v", err)
	}
	if cold.FromCache || strings.TrimSpace(cold.Summary) == "" {
		t.Fatalf("unexpected cold summary %+v", cold)
	}
	warm, err := p.SummarizeWithCache(ctx, "  resumo GERAL do caso ")
	if err != nil {
		t.Fatalf("SummarizeWithCache() error = %v", err)
	}
	if !warm.FromCache || warm.Summary != cold.Summary {
		t.Fatalf("expected identical cached summary, got %+v", warm)
	}

	if err := p.DeleteDocumentByFilename(ctx, "compra.pdf"); err != nil {
		t.Fatalf("DeleteDocumentByFilename() error = %v", err)
	}
	after, err := p.SummarizeWithCache(ctx, "Resumo geral do caso")
	if err != nil {
		t.Fatalf("SummarizeWithCache() error = %v", err)
	}
	if after.FromCache || after.Summary != EmptySummary {
		t.Fatalf("expected empty uncached summary, got %+v", after)
	}
}

func TestSummaryAfterNewUploadIsNotCached(t *testing.T) {
	env := newTestEnv(t, false)
	p := env.pipeline(t)
	ctx := context.Background()

	if _, err := p.ProcessUpload(ctx, "a.txt", []byte("primeiro documento")); err != nil {
		t.Fatalf("ProcessUpload() error = %v", err)
	}
	if _, err := p.SummarizeWithCache(ctx, "foco"); err != nil {
		t.Fatalf("SummarizeWithCache() error = %v", err)
	}
	if _, err := p.ProcessUpload(ctx, "b.txt", []byte("segundo documento")); err != nil {
		t.Fatalf("ProcessUpload() error = %v", err)
	}
	got, err := p.SummarizeWithCache(ctx, "foco")
	if err != nil {
		t.Fatalf("SummarizeWithCache() error = %v", err)
	}
	if got.FromCache {
		t.Fatalf("first summary after an upload must be recomputed")
	}
}

func TestReuploadWithSameChunkCountRecomputesSummaryAndFIRAC(t *testing.T) {
	env := newTestEnv(t, false)
	p := env.pipeline(t)
	ctx := context.Background()

	if _, err := p.ProcessUpload(ctx, "a.txt", []byte("contrato de compra e venda")); err != nil {
		t.Fatalf("ProcessUpload() error = %v", err)
	}
	first, err := p.SummarizeWithCache(ctx, "foco")
	if err != nil {
		t.Fatalf("SummarizeWithCache() error = %v", err)
	}
	if _, err := p.GenerateFIRAC(ctx, "foco"); err != nil {
		t.Fatalf("GenerateFIRAC() error = %v", err)
	}

	if err := p.DeleteDocumentByFilename(ctx, "a.txt"); err != nil {
		t.Fatalf("DeleteDocumentByFilename() error = %v", err)
	}
	if _, err := p.ProcessUpload(ctx, "a.txt", []byte("acidente de trânsito na rodovia")); err != nil {
		t.Fatalf("ProcessUpload() error = %v", err)
	}

	second, err := p.SummarizeWithCache(ctx, "foco")
	if err != nil {
		t.Fatalf("SummarizeWithCache() error = %v", err)
	}
	if second.Digest != first.Digest {
		t.Fatalf("same source and chunk count should hash alike, got %s and %s", first.Digest, second.Digest)
	}
	if second.FromCache {
		t.Fatalf("summary of replaced content must be recomputed")
	}
	firac, err := p.GenerateFIRAC(ctx, "foco")
	if err != nil {
		t.Fatalf("GenerateFIRAC() error = %v", err)
	}
	if firac.Cached {
		t.Fatalf("FIRAC of replaced content must be regenerated")
	}
	if n := env.model.count(ChainFIRACReport); n != 2 {
		t.Fatalf("expected two report calls, got %d", n)
	}
}

func TestProcessUploadListsSourceAndRecordsDocumento(t *testing.T) {
	env := newTestEnv(t, false)
	p := env.pipeline(t)
	ctx := context.Background()

	res, err := p.ProcessUpload(ctx, `C:\docs\peticao.txt`, []byte("um\n\ndois"))
	if err != nil {
		t.Fatalf("ProcessUpload() error = %v", err)
	}
	if res.Source != "peticao.txt" || res.Chunks != 2 || res.Media != domain.MediaText {
		t.Fatalf("unexpected result %+v", res)
	}
	docs, err := p.ListUniqueCaseDocuments(ctx)
	if err != nil {
		t.Fatalf("ListUniqueCaseDocuments() error = %v", err)
	}
	want := []domain.CaseDocument{{Source: "peticao.txt", Type: "text", ChunkCount: 2}}
	if !reflect.DeepEqual(docs, want) {
		t.Fatalf("ListUniqueCaseDocuments() = %+v, want %+v", docs, want)
	}
	if _, ok := env.uploads.objects["acme/c1/uploads/peticao.txt"]; !ok {
		t.Fatalf("expected raw bytes in upload storage, got %v", env.uploads.objects)
	}
	if env.cadastral.documentos["peticao.txt"].Chunks != 2 {
		t.Fatalf("expected documento record, got %+v", env.cadastral.documentos)
	}
}

func TestProcessUploadEmptyTextAndUnsupportedType(t *testing.T) {
	env := newTestEnv(t, false)
	p := env.pipeline(t)
	ctx := context.Background()

	res, err := p.ProcessUpload(ctx, "vazio.txt", nil)
	if err != nil {
		t.Fatalf("ProcessUpload() error = %v", err)
	}
	if !domain.IsKind(res.Warning, domain.ErrIngestionEmpty) || res.Chunks != 0 {
		t.Fatalf("expected empty warning, got %+v", res)
	}
	if _, err := p.ProcessUpload(ctx, "dados.bin", []byte{0x00, 0x01, 0x02, 0xff}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for unsupported type, got %v", err)
	}
}

func TestDeleteDocumentIsIdempotent(t *testing.T) {
	env := newTestEnv(t, false)
	p := env.pipeline(t)
	ctx := context.Background()

	if _, err := p.ProcessUpload(ctx, "a.txt", []byte("texto")); err != nil {
		t.Fatalf("ProcessUpload() error = %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := p.DeleteDocumentByFilename(ctx, "a.txt"); err != nil {
			t.Fatalf("DeleteDocumentByFilename() #%d error = %v", i+1, err)
		}
	}
	docs, _ := p.ListUniqueCaseDocuments(ctx)
	if len(docs) != 0 {
		t.Fatalf("expected no documents, got %+v", docs)
	}
	if len(env.uploads.objects) != 0 {
		t.Fatalf("expected upload removed, got %v", env.uploads.objects)
	}
}

func TestGenerateFIRACParsesMarkdownAndCaches(t *testing.T) {
	env := newTestEnv(t, false)
	p := env.pipeline(t)
	ctx := context.Background()
	if _, err := p.ProcessUpload(ctx, "a.pdf", []byte("%PDF-1.4")); err != nil {
		t.Fatalf("ProcessUpload() error = %v", err)
	}

	first, err := p.GenerateFIRAC(ctx, "")
	if err != nil {
		t.Fatalf("GenerateFIRAC() error = %v", err)
	}
	want := domain.FIRAC{Facts: []string{"A."}, Issue: "B.", Rules: []string{"C."}, Application: "D.", Conclusion: "E."}
	if !reflect.DeepEqual(first.Data, want) || first.Cached || first.Warning != nil {
		t.Fatalf("unexpected first result %+v", first)
	}
	second, err := p.GenerateFIRAC(ctx, "")
	if err != nil {
		t.Fatalf("GenerateFIRAC() error = %v", err)
	}
	if !second.Cached || !reflect.DeepEqual(second.Data, want) {
		t.Fatalf("expected cached result, got %+v", second)
	}
	if n := env.model.count(ChainFIRACReport); n != 1 {
		t.Fatalf("expected one report call, got %d", n)
	}
}

func TestGenerateFIRACReadsRawCacheBeforeModel(t *testing.T) {
	env := newTestEnv(t, false)
	p := env.pipeline(t)
	ctx := context.Background()
	if _, err := p.ProcessUpload(ctx, "a.pdf", []byte("%PDF-1.4")); err != nil {
		t.Fatalf("ProcessUpload() error = %v", err)
	}
	docs, _ := p.ListUniqueCaseDocuments(ctx)
	if err := p.cache.WriteFIRACRaw(domain.DocumentDigest(docs), domain.FocusHash("danos"), markdownFIRAC); err != nil {
		t.Fatalf("WriteFIRACRaw() error = %v", err)
	}

	got, err := p.GenerateFIRAC(ctx, "Danos")
	if err != nil {
		t.Fatalf("GenerateFIRAC() error = %v", err)
	}
	if !got.Cached || got.Data.Issue != "B." {
		t.Fatalf("expected raw cache hit, got %+v", got)
	}
	if n := env.model.count(ChainFIRACReport); n != 0 {
		t.Fatalf("model must not be called, got %d calls", n)
	}
	if _, ok := p.cache.ReadFIRACJSON(domain.DocumentDigest(docs), domain.FocusHash("danos")); !ok {
		t.Fatalf("parsed raw must be persisted as JSON")
	}
}

func TestGenerateFIRACFallsBackToJSONThenRawOnly(t *testing.T) {
	env := newTestEnv(t, false)
	env.model.responses[ChainFIRACReport] = "sem formato reconhecível"
	env.model.responses[ChainFIRACJSON] = `{"facts": ["F."], "issue": "I.", "rules": "R.", "application": "A.", "conclusion": "C."}`
	p := env.pipeline(t)
	ctx := context.Background()

	got, err := p.GenerateFIRAC(ctx, "foco")
	if err != nil {
		t.Fatalf("GenerateFIRAC() error = %v", err)
	}
	if got.Data.Issue != "I." || !reflect.DeepEqual(got.Data.Rules, []string{"R."}) || env.model.count(ChainFIRACJSON) != 1 {
		t.Fatalf("expected JSON fallback, got %+v", got)
	}

	env.model.responses[ChainFIRACJSON] = "também sem formato"
	raw, err := p.GenerateFIRAC(ctx, "outro foco")
	if err != nil {
		t.Fatalf("GenerateFIRAC() error = %v", err)
	}
	if len(raw.Missing) != 5 || !domain.IsKind(raw.Warning, domain.ErrFIRACFieldMissing) || raw.Cached {
		t.Fatalf("expected raw-only result, got %+v", raw)
	}
	if raw.Data.Issue != domain.NeutralMarker || raw.Data.Facts[0] != domain.NeutralMarker || raw.Raw != "também sem formato" {
		t.Fatalf("expected marked fields, got %+v", raw)
	}
}

func TestChatPersistsTurnsAndLoadsHistory(t *testing.T) {
	env := newTestEnv(t, false)
	p := env.pipeline(t)
	ctx := context.Background()
	if _, err := p.ProcessUpload(ctx, "a.txt", []byte("contrato de compra e venda")); err != nil {
		t.Fatalf("ProcessUpload() error = %v", err)
	}

	res, err := p.Chat(ctx, "primeira pergunta", nil, domain.SearchBoth)
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if res.Answer != "resposta" || len(res.SourceDocuments) != 1 || res.SourceDocuments[0].Source != "a.txt" {
		t.Fatalf("unexpected chat result %+v", res)
	}
	if len(env.cadastral.turns) != 2 || env.cadastral.turns[1].Role != domain.RoleAssistant {
		t.Fatalf("expected two persisted turns, got %+v", env.cadastral.turns)
	}

	if _, err := p.Chat(ctx, "segunda pergunta", nil, domain.SearchCase); err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	last := env.model.prompts[len(env.model.prompts)-1]
	if !strings.Contains(last, "Usuário: primeira pergunta") || !strings.Contains(last, "Assistente: resposta") {
		t.Fatalf("expected loaded history in prompt, got %q", last)
	}
	if _, err := p.Chat(ctx, "  ", nil, domain.SearchCase); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for blank question, got %v", err)
	}
}

func TestGeneratePetitionDraftEnrichesFromCadastral(t *testing.T) {
	env := newTestEnv(t, false)
	env.cadastral.advogados = map[string]*domain.AdvogadoRecord{"123456": {OAB: "123456", Nome: "ana souza", Email: "ana@exemplo.com"}}
	env.cadastral.processos = map[string]*domain.Processo{"p1": {ID: "p1", ClienteID: "cl1"}}
	env.cadastral.clientes = map[string]*domain.Cliente{"cl1": {ID: "cl1", Nome: "MARIA DA SILVA", Documento: "12345678901"}}
	p := env.pipeline(t)
	ctx := context.Background()
	if _, err := p.ProcessUpload(ctx, "a.pdf", []byte("%PDF-1.4")); err != nil {
		t.Fatalf("ProcessUpload() error = %v", err)
	}

	form := minimalForm()
	form.Autor = domain.Autor{}
	form.Advogado.Nome = ""
	draft, err := p.GeneratePetitionDraft(ctx, domain.PetitionRequest{Form: form, ProcessoID: "p1"})
	if err != nil {
		t.Fatalf("GeneratePetitionDraft() error = %v", err)
	}
	if !strings.Contains(draft, "Ana Souza") || !strings.Contains(draft, "Maria da Silva") || !strings.Contains(draft, "123.456.789-01") {
		t.Fatalf("expected cadastral enrichment:\n%s", draft)
	}

	path, err := p.ExportDraft(draft)
	if err != nil {
		t.Fatalf("ExportDraft() error = %v", err)
	}
	if path != filepath.Join(env.base, "acme", "c1", "exports", "c1.txt") {
		t.Fatalf("unexpected export path %q", path)
	}
	if b, _ := os.ReadFile(path); string(b) != draft {
		t.Fatalf("export content mismatch")
	}
}

func TestAnalyzeFIRACAndRiskOperations(t *testing.T) {
	env := newTestEnv(t, false)
	p := env.pipeline(t)
	ctx := context.Background()

	fields, err := p.AnalyzeFIRAC(ctx, "")
	if err != nil {
		t.Fatalf("AnalyzeFIRAC() error = %v", err)
	}
	if len(fields) != 5 {
		t.Fatalf("expected five fields, got %v", fields)
	}
	risks, err := p.IdentifyLegalRisks(ctx, "danos morais")
	if err != nil || risks != "legal_risks ok" {
		t.Fatalf("IdentifyLegalRisks() = %q, %v", risks, err)
	}
	steps, err := p.SuggestNextSteps(ctx, "")
	if err != nil || steps != "next_steps ok" {
		t.Fatalf("SuggestNextSteps() = %q, %v", steps, err)
	}
}

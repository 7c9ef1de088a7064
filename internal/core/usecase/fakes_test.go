package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/probe365/advocacia-ia-sub000/internal/core/domain"
	"github.com/probe365/advocacia-ia-sub000/internal/core/ports"
)

type memStore struct {
	mu         sync.Mutex
	records    []domain.Chunk
	persists   int
	persistErr error
	addErr     error
	deletedIDs []string
	afterAdd   func()
}

func (s *memStore) AddDocuments(_ context.Context, chunks []domain.Chunk) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.addErr != nil {
		return nil, s.addErr
	}
	ids := make([]string, 0, len(chunks))
	for _, ch := range chunks {
		ch.ID = uuid.NewString()
		ch.Metadata = ch.Metadata.Clone()
		s.records = append(s.records, ch)
		ids = append(ids, ch.ID)
	}
	if s.afterAdd != nil {
		s.afterAdd()
	}
	return ids, nil
}

func (s *memStore) SimilaritySearchWithScore(_ context.Context, _ string, k int) ([]domain.ScoredChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ScoredChunk
	for i, ch := range s.records {
		if len(out) == k {
			break
		}
		out = append(out, domain.ScoredChunk{Chunk: ch, Distance: float64(i) / 10, Metric: domain.DistanceL2})
	}
	return out, nil
}

func (s *memStore) Get(_ context.Context, where map[string]string, include ...domain.Include) (domain.StoreGetResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out domain.StoreGetResult
	for _, ch := range s.records {
		if !ch.Metadata.Matches(where) {
			continue
		}
		out.IDs = append(out.IDs, ch.ID)
		out.Metadatas = append(out.Metadatas, ch.Metadata.Clone())
		out.Documents = append(out.Documents, ch.Text)
	}
	return out, nil
}

func (s *memStore) Delete(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	drop := map[string]bool{}
	for _, id := range ids {
		drop[id] = true
	}
	kept := s.records[:0]
	for _, ch := range s.records {
		if !drop[ch.ID] {
			kept = append(kept, ch)
		}
	}
	s.records = kept
	s.deletedIDs = append(s.deletedIDs, ids...)
	return nil
}

func (s *memStore) Persist(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persists++
	return s.persistErr
}

func (s *memStore) Metric() domain.DistanceMetric { return domain.DistanceL2 }

func (s *memStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

type storeFactoryFake struct {
	mu     sync.Mutex
	stores map[string]*memStore
}

func (f *storeFactoryFake) Open(_ context.Context, ref ports.StoreRef) (ports.VectorStore, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stores == nil {
		f.stores = map[string]*memStore{}
	}
	s, ok := f.stores[ref.Dir]
	if !ok {
		s = &memStore{}
		f.stores[ref.Dir] = s
	}
	return s, nil
}

type extractorFake struct {
	text string
	echo bool
}

func (e extractorFake) Extract(_ context.Context, data []byte, _ string) string {
	if e.echo {
		return string(data)
	}
	return e.text
}

type chunkerFake struct{}

func (chunkerFake) Split(text string) []string {
	var out []string
	for _, part := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(part) != "" {
			out = append(out, part)
		}
	}
	return out
}

type taggerFake struct{}

func (taggerFake) Tag(context.Context, string) map[string][]string {
	return map[string][]string{"partes": {"Maria da Silva", "Banco X"}, "datas": nil}
}

type repairerFake struct{ calls int }

func (r *repairerFake) Repair(s string) string {
	r.calls++
	return s
}

var chainVars = map[string][]string{
	ChainChatQA:           {"context", "history", "question"},
	ChainSummaryMap:       {"text", "focus"},
	ChainSummaryReduce:    {"summaries", "focus", "max_words"},
	ChainLegalRisks:       {"context", "focus"},
	ChainNextSteps:        {"context", "focus"},
	ChainFIRACFacts:       {"context"},
	ChainFIRACIssue:       {"context", "facts"},
	ChainFIRACRules:       {"context", "facts", "issue"},
	ChainFIRACApplication: {"context", "facts", "issue", "rules"},
	ChainFIRACConclusion:  {"context", "facts", "issue", "rules", "application"},
	ChainFIRACReport:      {"context", "focus"},
	ChainFIRACJSON:        {"context", "focus"},
	ChainPetitionAction:   {"issue", "conclusion"},
	ChainPetitionArticles: {"rules"},
	ChainPetitionFacts:    {"facts"},
	ChainPetitionGrounds:  {"issue", "rules", "application"},
	ChainPetitionPrayers:  {"issue", "conclusion"},
}

// registryFake renders each prompt as its name on the first line followed by
// one line per variable.
type registryFake struct{}

func (registryFake) Template(name string) (domain.PromptTemplate, error) {
	vars, ok := chainVars[name]
	if !ok {
		return domain.PromptTemplate{}, domain.WrapError(domain.ErrInvalidInput, "prompt template", fmt.Errorf("unknown template %q", name))
	}
	lines := []string{name}
	for _, v := range vars {
		lines = append(lines, v+"={"+v+"}")
	}
	return domain.PromptTemplate{Name: name, InputVariables: vars, OutputKey: "text", Template: strings.Join(lines, "\n")}, nil
}

const markdownFIRAC = "1. **Fatos:** A.\n2. **Questão:** B.\n3. **Regras:** C.\n4. **Aplicação:** D.\n5. **Conclusão:** E."

type modelFake struct {
	mu        sync.Mutex
	calls     map[string]int
	prompts   []string
	responses map[string]string
	failures  map[string]error
}

func newModelFake() *modelFake {
	return &modelFake{
		calls: map[string]int{},
		responses: map[string]string{
			ChainSummaryMap:       "parcial",
			ChainSummaryReduce:    "O autor comprou produto defeituoso e busca reparação.",
			ChainChatQA:           "resposta",
			ChainFIRACReport:      markdownFIRAC,
			ChainPetitionAction:   "Ação de repetição de indébito",
			ChainPetitionArticles: "**Art. 42 do CDC** - devolução em dobro\nArt. 186 do Código Civil",
			ChainPetitionFacts:    "Desculpe, segue a narrativa.\nA autora foi cobrada indevidamente.",
			ChainPetitionGrounds:  "A cobrança indevida enseja restituição.",
			ChainPetitionPrayers:  "1. a restituição em dobro dos valores pagos\n2. a condenação do réu em custas e honorários",
		},
		failures: map[string]error{},
	}
}

func (m *modelFake) Complete(_ context.Context, prompt string) (string, error) {
	name, _, _ := strings.Cut(prompt, "\n")
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[name]++
	m.prompts = append(m.prompts, prompt)
	if err := m.failures[name]; err != nil {
		return "", err
	}
	if out, ok := m.responses[name]; ok {
		return out, nil
	}
	return name + " ok", nil
}

func (m *modelFake) count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

type storageFake struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (s *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.objects == nil {
		s.objects = map[string][]byte{}
	}
	s.objects[key] = b
	return nil
}

func (s *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.objects[key]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "open", errors.New(key))
	}
	return io.NopCloser(strings.NewReader(string(b))), nil
}

func (s *storageFake) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

type queueFake struct {
	jobs []domain.UploadJob
}

func (q *queueFake) PublishUpload(_ context.Context, job domain.UploadJob) error {
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *queueFake) SubscribeUploads(context.Context, func(context.Context, domain.UploadJob) error) error {
	return nil
}

type cadastralFake struct {
	mu         sync.Mutex
	turns      []domain.ChatTurn
	documentos map[string]domain.DocumentoRecord
	deleted    []string
	advogados  map[string]*domain.AdvogadoRecord
	processos  map[string]*domain.Processo
	clientes   map[string]*domain.Cliente
}

func (c *cadastralFake) GetProcesso(_ context.Context, id string) (*domain.Processo, error) {
	if p, ok := c.processos[id]; ok {
		return p, nil
	}
	return nil, domain.ErrDocumentNotFound
}

func (c *cadastralFake) GetCliente(_ context.Context, id string) (*domain.Cliente, error) {
	if cl, ok := c.clientes[id]; ok {
		return cl, nil
	}
	return nil, domain.ErrDocumentNotFound
}

func (c *cadastralFake) GetAdvogado(_ context.Context, oab string) (*domain.AdvogadoRecord, error) {
	if a, ok := c.advogados[oab]; ok {
		return a, nil
	}
	return nil, domain.ErrDocumentNotFound
}

func (c *cadastralFake) SaveChatTurn(_ context.Context, caseID, role, content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = append(c.turns, domain.ChatTurn{CaseID: caseID, Role: role, Content: content})
	return nil
}

func (c *cadastralFake) GetChatHistory(_ context.Context, caseID string) ([]domain.ChatTurn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []domain.ChatTurn
	for _, t := range c.turns {
		if t.CaseID == caseID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (c *cadastralFake) SaveDocumento(_ context.Context, doc domain.DocumentoRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.documentos == nil {
		c.documentos = map[string]domain.DocumentoRecord{}
	}
	c.documentos[doc.Title] = doc
	return nil
}

func (c *cadastralFake) DeleteDocumento(_ context.Context, _ string, title string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.documentos, title)
	c.deleted = append(c.deleted, title)
	return nil
}

type cadastralDirectoryFake struct{ store *cadastralFake }

func (d cadastralDirectoryFake) ForTenant(string) ports.CadastralStore { return d.store }

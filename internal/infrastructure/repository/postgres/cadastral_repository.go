package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/probe365/advocacia-ia-sub000/internal/core/domain"
	"github.com/probe365/advocacia-ia-sub000/internal/core/ports"
)

// DefaultHistoryLimit bounds the chat history loaded for one case.
const DefaultHistoryLimit = 50

// CadastralRepository serves every tenant from one database; rows carry a
// tenant_id column.
type CadastralRepository struct {
	db           *sql.DB
	historyLimit int
}

func NewCadastralRepository(db *sql.DB) *CadastralRepository {
	return &CadastralRepository{db: db, historyLimit: DefaultHistoryLimit}
}

func (r *CadastralRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across worker and cli startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101501)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS clientes (
	tenant_id TEXT NOT NULL,
	id TEXT NOT NULL,
	nome TEXT NOT NULL,
	documento TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT '',
	endereco TEXT NOT NULL DEFAULT '',
	nacionalidade TEXT NOT NULL DEFAULT '',
	estado_civil TEXT NOT NULL DEFAULT '',
	profissao TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (tenant_id, id)
);

CREATE TABLE IF NOT EXISTS processos (
	tenant_id TEXT NOT NULL,
	id TEXT NOT NULL,
	numero TEXT NOT NULL DEFAULT '',
	cliente_id TEXT NOT NULL DEFAULT '',
	titulo TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (tenant_id, id)
);

CREATE TABLE IF NOT EXISTS advogados (
	tenant_id TEXT NOT NULL,
	oab TEXT NOT NULL,
	nome TEXT NOT NULL,
	email TEXT NOT NULL DEFAULT '',
	endereco TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (tenant_id, oab)
);

CREATE TABLE IF NOT EXISTS chat_turns (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	case_id TEXT NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chat_turns_case ON chat_turns(tenant_id, case_id, created_at DESC);

CREATE TABLE IF NOT EXISTS documentos (
	tenant_id TEXT NOT NULL,
	case_id TEXT NOT NULL,
	title TEXT NOT NULL,
	media TEXT NOT NULL,
	storage_key TEXT NOT NULL,
	size BIGINT NOT NULL DEFAULT 0,
	chunks INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (tenant_id, case_id, title)
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *CadastralRepository) ForTenant(tenant string) ports.CadastralStore {
	return &TenantStore{repo: r, tenant: tenant}
}

// TenantStore is the cadastral view of one tenant.
type TenantStore struct {
	repo   *CadastralRepository
	tenant string
}

func (s *TenantStore) GetProcesso(ctx context.Context, id string) (*domain.Processo, error) {
	row := s.repo.db.QueryRowContext(ctx, `
SELECT id, numero, cliente_id, titulo, status
FROM processos
WHERE tenant_id = $1 AND id = $2
`, s.tenant, id)

	var p domain.Processo
	if err := row.Scan(&p.ID, &p.Numero, &p.ClienteID, &p.Titulo, &p.Status); err != nil {
		return nil, notFoundOr(err, "processo", id)
	}
	return &p, nil
}

func (s *TenantStore) GetCliente(ctx context.Context, id string) (*domain.Cliente, error) {
	row := s.repo.db.QueryRowContext(ctx, `
SELECT id, nome, documento, email, endereco, nacionalidade, estado_civil, profissao
FROM clientes
WHERE tenant_id = $1 AND id = $2
`, s.tenant, id)

	var c domain.Cliente
	if err := row.Scan(&c.ID, &c.Nome, &c.Documento, &c.Email, &c.Endereco, &c.Nacionalidade, &c.EstadoCivil, &c.Profissao); err != nil {
		return nil, notFoundOr(err, "cliente", id)
	}
	return &c, nil
}

func (s *TenantStore) GetAdvogado(ctx context.Context, oab string) (*domain.AdvogadoRecord, error) {
	row := s.repo.db.QueryRowContext(ctx, `
SELECT oab, nome, email, endereco
FROM advogados
WHERE tenant_id = $1 AND oab = $2
`, s.tenant, oab)

	var a domain.AdvogadoRecord
	if err := row.Scan(&a.OAB, &a.Nome, &a.Email, &a.Endereco); err != nil {
		return nil, notFoundOr(err, "advogado", oab)
	}
	return &a, nil
}

func (s *TenantStore) SaveChatTurn(ctx context.Context, caseID, role, content string) error {
	_, err := s.repo.db.ExecContext(ctx, `
INSERT INTO chat_turns (id, tenant_id, case_id, role, content, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
`, uuid.NewString(), s.tenant, caseID, role, content, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save chat turn: %w", err)
	}
	return nil
}

// GetChatHistory returns the most recent turns in chronological order.
func (s *TenantStore) GetChatHistory(ctx context.Context, caseID string) ([]domain.ChatTurn, error) {
	limit := s.repo.historyLimit
	rows, err := s.repo.db.QueryContext(ctx, `
SELECT id, case_id, role, content, created_at
FROM chat_turns
WHERE tenant_id = $1 AND case_id = $2
ORDER BY created_at DESC
LIMIT $3
`, s.tenant, caseID, limit)
	if err != nil {
		return nil, fmt.Errorf("list chat history: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ChatTurn, 0, limit)
	for rows.Next() {
		var turn domain.ChatTurn
		if err := rows.Scan(&turn.ID, &turn.CaseID, &turn.Role, &turn.Content, &turn.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat turn: %w", err)
		}
		out = append(out, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat turns: %w", err)
	}

	// Returned in descending order from SQL; reverse to keep chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// SaveDocumento upserts by (case, title) so re-uploads refresh the row.
func (s *TenantStore) SaveDocumento(ctx context.Context, doc domain.DocumentoRecord) error {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	_, err := s.repo.db.ExecContext(ctx, `
INSERT INTO documentos (tenant_id, case_id, title, media, storage_key, size, chunks, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (tenant_id, case_id, title) DO UPDATE
SET media = EXCLUDED.media, storage_key = EXCLUDED.storage_key, size = EXCLUDED.size,
	chunks = EXCLUDED.chunks, created_at = EXCLUDED.created_at
`, s.tenant, doc.CaseID, doc.Title, string(doc.Media), doc.StorageKey, doc.Size, doc.Chunks, doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("save documento: %w", err)
	}
	return nil
}

// DeleteDocumento is idempotent.
func (s *TenantStore) DeleteDocumento(ctx context.Context, caseID, title string) error {
	_, err := s.repo.db.ExecContext(ctx, `
DELETE FROM documentos
WHERE tenant_id = $1 AND case_id = $2 AND title = $3
`, s.tenant, caseID, title)
	if err != nil {
		return fmt.Errorf("delete documento: %w", err)
	}
	return nil
}

func notFoundOr(err error, entity, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.WrapError(domain.ErrDocumentNotFound, "get "+entity, fmt.Errorf("%s not found: %s", entity, id))
	}
	return fmt.Errorf("scan %s: %w", entity, err)
}

package domain

import "time"

type Processo struct {
	ID        string `json:"id"`
	Numero    string `json:"numero"`
	ClienteID string `json:"cliente_id"`
	Titulo    string `json:"titulo"`
	Status    string `json:"status"`
}

type Cliente struct {
	ID            string `json:"id"`
	Nome          string `json:"nome"`
	Documento     string `json:"documento"`
	Email         string `json:"email"`
	Endereco      string `json:"endereco"`
	Nacionalidade string `json:"nacionalidade"`
	EstadoCivil   string `json:"estado_civil"`
	Profissao     string `json:"profissao"`
}

type AdvogadoRecord struct {
	OAB      string `json:"oab"`
	Nome     string `json:"nome"`
	Email    string `json:"email"`
	Endereco string `json:"endereco"`
}

// DocumentoRecord is the cadastral row kept for each uploaded file.
type DocumentoRecord struct {
	CaseID     string    `json:"case_id"`
	Title      string    `json:"title"`
	Media      MediaType `json:"media"`
	StorageKey string    `json:"storage_key"`
	Size       int64     `json:"size"`
	Chunks     int       `json:"chunks"`
	CreatedAt  time.Time `json:"created_at"`
}

package domain

// PetitionForm is the user-supplied data for an initial petition.
type PetitionForm struct {
	Juizo    Juizo    `json:"juizo"`
	Autor    Autor    `json:"autor"`
	Reu      Reu      `json:"reu"`
	Advogado Advogado `json:"advogado"`
	Outros   Outros   `json:"outros"`
}

type Juizo struct {
	Vara          string `json:"vara"`
	Especialidade string `json:"especialidade"`
	Comarca       string `json:"comarca"`
	UF            string `json:"uf"`
}

type Autor struct {
	Nome          string `json:"nome_completo_ou_razao_social"`
	Nacionalidade string `json:"nacionalidade"`
	EstadoCivil   string `json:"estado_civil"`
	Profissao     string `json:"profissao"`
	RG            string `json:"rg"`
	CPF           string `json:"cpf"`
	Endereco      string `json:"endereco"`
	Email         string `json:"email"`
}

type Reu struct {
	Nome          string `json:"nome"`
	Nacionalidade string `json:"nacionalidade"`
	EstadoCivil   string `json:"estado_civil"`
	Profissao     string `json:"profissao"`
	RG            string `json:"rg"`
	CPFCNPJ       string `json:"cpf_cnpj"`
	Endereco      string `json:"endereco"`
	Email         string `json:"email"`
}

type Advogado struct {
	Nome               string `json:"nome"`
	OABUF              string `json:"oab_uf"`
	OABNumero          string `json:"oab_numero"`
	Email              string `json:"email"`
	EscritorioEndereco string `json:"escritorio_endereco"`
	CidadePeticao      string `json:"cidade_peticao"`
}

type Outros struct {
	ProcuracaoDocNum       string `json:"procuracao_doc_num"`
	ValorCausaNum          string `json:"valor_causa_num"`
	ValorCausaExt          string `json:"valor_causa_ext"`
	TextoProvasEspecificas string `json:"texto_provas_especificas"`
	TextoGratuidade        string `json:"texto_gratuidade"`
	TextoTutela            string `json:"texto_tutela"`
}

// PetitionRequest carries the form plus the cadastral ids used for enrichment.
type PetitionRequest struct {
	Form       PetitionForm `json:"ui_data"`
	ProcessoID string       `json:"processo_id,omitempty"`
	Focus      string       `json:"focus,omitempty"`
}

package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/probe365/advocacia-ia-sub000/internal/core/domain"
)

const defaultProvas = "Protesta provar o alegado por todos os meios de prova em direito admitidos, especialmente prova documental, testemunhal e pericial."

var (
	templateSlot  = regexp.MustCompile(`\{([a-z_]+)\}`)
	leftoverBrace = regexp.MustCompile(`\{[^{}]*\}|[{}]`)
)

// PetitionGenerator fills the initial-petition template from the form and a
// FIRAC record.
type PetitionGenerator struct {
	chains   *ChainSet
	template string
	now      func() time.Time
	logger   *slog.Logger
}

func NewPetitionGenerator(chains *ChainSet, template string, logger *slog.Logger) *PetitionGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &PetitionGenerator{
		chains:   chains,
		template: template,
		now:      time.Now,
		logger:   logger.With("component", "petition"),
	}
}

// Generate renders the draft. Failed sub-chains degrade to marked slots; only
// a template that still has braces after filling is an error.
func (g *PetitionGenerator) Generate(ctx context.Context, form domain.PetitionForm, record domain.FIRAC) (string, error) {
	form = NormalizeForm(form)
	record = record.Normalized(domain.NeutralMarker)

	generated, err := g.runSubChains(ctx, record)
	if err != nil {
		return "", err
	}

	provas := form.Outros.TextoProvasEspecificas
	if strings.TrimSpace(provas) == "" {
		provas = defaultProvas
	}
	values := map[string]string{
		"juizo_vara":                   form.Juizo.Vara,
		"juizo_especialidade":          form.Juizo.Especialidade,
		"juizo_comarca":                form.Juizo.Comarca,
		"juizo_uf":                     form.Juizo.UF,
		"autor_qualificacao_completa":  qualifyAutor(form.Autor),
		"procuracao_doc_numero":        form.Outros.ProcuracaoDocNum,
		"advogado_escritorio_endereco": form.Advogado.EscritorioEndereco,
		"advogado_email_contato":       form.Advogado.Email,
		"reu_qualificacao_completa":    qualifyReu(form.Reu),
		"texto_gratuidade":             form.Outros.TextoGratuidade,
		"texto_tutela":                 form.Outros.TextoTutela,
		"texto_provas":                 provas,
		"valor_causa_numerico":         FormatBRL(form.Outros.ValorCausaNum),
		"valor_causa_extenso":          form.Outros.ValorCausaExt,
		"cidade_peticao":               form.Advogado.CidadePeticao,
		"data_peticao":                 LongDate(g.now()),
		"advogado_nome":                form.Advogado.Nome,
		"advogado_oab_uf":              form.Advogado.OABUF,
		"advogado_oab_numero":          form.Advogado.OABNumero,
	}
	for k, v := range generated {
		values[k] = v
	}
	return Render(g.template, values)
}

func (g *PetitionGenerator) runSubChains(ctx context.Context, record domain.FIRAC) (map[string]string, error) {
	facts := strings.Join(record.Facts, "\n")
	rules := strings.Join(record.Rules, "\n")
	jobs := []struct {
		slot   string
		chain  string
		vars   map[string]string
		format func(string) string
		// keepOnFailure formats an empty answer instead of leaving the slot unfilled.
		keepOnFailure bool
	}{
		{"nome_completo_acao", ChainPetitionAction, map[string]string{"issue": record.Issue, "conclusion": record.Conclusion}, actionName, false},
		{"artigos_fundamentacao_chave", ChainPetitionArticles, map[string]string{"rules": rules}, CleanArticles, false},
		{"narrativa_fatos", ChainPetitionFacts, map[string]string{"facts": facts}, Sanitize, false},
		{"fundamentacao_direito", ChainPetitionGrounds, map[string]string{"issue": record.Issue, "rules": rules, "application": record.Application}, Sanitize, false},
		{"pedidos_completos", ChainPetitionPrayers, map[string]string{"issue": record.Issue, "conclusion": record.Conclusion}, FormatPrayers, true},
	}

	var (
		mu  sync.Mutex
		out = make(map[string]string, len(jobs))
		grp errgroup.Group
	)
	for _, job := range jobs {
		grp.Go(func() error {
			raw, err := g.chains.Run(ctx, job.chain, job.vars)
			if err != nil {
				g.logger.Warn("petition_subchain_failed", "chain", job.chain, "error", err)
				if !job.keepOnFailure {
					return nil
				}
				raw = ""
			}
			value := job.format(raw)
			mu.Lock()
			out[job.slot] = value
			mu.Unlock()
			return nil
		})
	}
	_ = grp.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Render fills every {slot} of template. Slots without a value become
// "[slot não preenchido]". Any brace left afterwards is reported as a
// PlaceholderError.
func Render(template string, values map[string]string) (string, error) {
	out := templateSlot.ReplaceAllStringFunc(template, func(m string) string {
		name := m[1 : len(m)-1]
		if v := strings.TrimSpace(values[name]); v != "" {
			return strings.NewReplacer("{", "", "}", "").Replace(v)
		}
		return fmt.Sprintf("[%s não preenchido]", name)
	})
	if leftovers := leftoverBrace.FindAllString(out, -1); len(leftovers) > 0 {
		sort.Strings(leftovers)
		return "", &domain.PlaceholderError{Placeholders: dedupe(leftovers)}
	}
	return out, nil
}

func actionName(raw string) string {
	line := strings.TrimSpace(markdownNoise.ReplaceAllString(Sanitize(raw), ""))
	if i := strings.Index(line, "\n"); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	return strings.ToUpper(strings.Trim(line, ` ."'`))
}

func dedupe(in []string) []string {
	out := in[:0]
	for i, s := range in {
		if i == 0 || s != in[i-1] {
			out = append(out, s)
		}
	}
	return out
}

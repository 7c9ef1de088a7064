package usecase

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/probe365/advocacia-ia-sub000/internal/core/domain"
)

const maxArticles = 5

var (
	nameParticles = map[string]bool{"da": true, "de": true, "do": true, "das": true, "dos": true, "e": true}

	markdownNoise = regexp.MustCompile("[*_#`>]+")
	listMarker    = regexp.MustCompile(`^\s*(?:[a-zA-Z]\)|[-*•]|\d+[.)])\s*`)
	metaLine      = regexp.MustCompile(`(?i)^\s*(desculpe|lamento|por favor,? forne[çc]a|como (?:um |uma )?(?:modelo de linguagem|assistente|ia)\b|nota:|observa[çc][ãa]o:|aqui est[áa]|segue abaixo|espero ter ajudado)`)
	thousandsOnly = regexp.MustCompile(`^\d{1,3}(?:\.\d{3})+$`)
	articleCut    = regexp.MustCompile(`\s*[:(]|\s+[-–—]\s|\s+(?:que|o qual|a qual)\s`)
)

var ptMonths = [...]string{"janeiro", "fevereiro", "março", "abril", "maio", "junho", "julho", "agosto", "setembro", "outubro", "novembro", "dezembro"}

// mandatoryPrayers must appear in every petition. Each entry is matched by
// its keywords before the default text is appended.
var mandatoryPrayers = []struct {
	keywords []string
	text     string
}{
	{[]string{"citação", "citacao"}, "a citação do réu para, querendo, apresentar contestação no prazo legal, sob pena de revelia"},
	{[]string{"procedência", "procedencia"}, "a total procedência dos pedidos formulados nesta inicial"},
	{[]string{"custas"}, "a condenação do réu ao pagamento das custas processuais e dos honorários advocatícios"},
	{[]string{"provas"}, "a produção de todas as provas em direito admitidas"},
}

// TitleName title-cases a personal or company name keeping Portuguese
// particles in lower case.
func TitleName(name string) string {
	title := cases.Title(language.BrazilianPortuguese)
	words := strings.Fields(name)
	for i, w := range words {
		lower := strings.ToLower(w)
		if i > 0 && nameParticles[lower] {
			words[i] = lower
			continue
		}
		words[i] = title.String(lower)
	}
	return strings.Join(words, " ")
}

// FormatDocument renders 11 digits as CPF and 14 digits as CNPJ. Anything
// else is returned trimmed.
func FormatDocument(doc string) string {
	digits := onlyDigits(doc)
	switch len(digits) {
	case 11:
		return fmt.Sprintf("%s.%s.%s-%s", digits[0:3], digits[3:6], digits[6:9], digits[9:11])
	case 14:
		return fmt.Sprintf("%s.%s.%s/%s-%s", digits[0:2], digits[2:5], digits[5:8], digits[8:12], digits[12:14])
	default:
		return strings.TrimSpace(doc)
	}
}

// NormalizeForm applies name casing and document formatting at the input boundary.
func NormalizeForm(form domain.PetitionForm) domain.PetitionForm {
	form.Autor.Nome = TitleName(form.Autor.Nome)
	form.Autor.CPF = FormatDocument(form.Autor.CPF)
	form.Reu.Nome = TitleName(form.Reu.Nome)
	form.Reu.CPFCNPJ = FormatDocument(form.Reu.CPFCNPJ)
	form.Advogado.Nome = TitleName(form.Advogado.Nome)
	form.Advogado.OABUF = strings.ToUpper(strings.TrimSpace(form.Advogado.OABUF))
	form.Juizo.UF = strings.ToUpper(strings.TrimSpace(form.Juizo.UF))
	return form
}

func qualifyAutor(a domain.Autor) string {
	return joinQualification(
		a.Nome,
		a.Nacionalidade,
		a.EstadoCivil,
		a.Profissao,
		prefixed("portador(a) do RG nº ", a.RG),
		prefixed("inscrito(a) no CPF sob o nº ", a.CPF),
		prefixed("residente e domiciliado(a) em ", a.Endereco),
		prefixed("endereço eletrônico ", a.Email),
	)
}

func qualifyReu(r domain.Reu) string {
	return joinQualification(
		r.Nome,
		r.Nacionalidade,
		r.EstadoCivil,
		r.Profissao,
		prefixed("portador(a) do RG nº ", r.RG),
		prefixed("inscrito(a) no CPF/CNPJ sob o nº ", r.CPFCNPJ),
		prefixed("com endereço em ", r.Endereco),
		prefixed("endereço eletrônico ", r.Email),
	)
}

func joinQualification(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}

func prefixed(prefix, value string) string {
	if strings.TrimSpace(value) == "" {
		return ""
	}
	return prefix + strings.TrimSpace(value)
}

// FormatBRL renders a numeric amount as "R$ 1.234,56". Input follows the
// Brazilian convention: dots group thousands and the comma marks decimals,
// so "10.000" is ten thousand. Non-numeric input is returned trimmed.
func FormatBRL(raw string) string {
	s := strings.TrimSpace(raw)
	clean := strings.TrimSpace(strings.TrimPrefix(s, "R$"))
	switch {
	case strings.Contains(clean, ","):
		clean = strings.ReplaceAll(clean, ".", "")
		clean = strings.Replace(clean, ",", ".", 1)
	case thousandsOnly.MatchString(clean):
		clean = strings.ReplaceAll(clean, ".", "")
	}
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return s
	}
	return "R$ " + message.NewPrinter(language.BrazilianPortuguese).Sprintf("%.2f", v)
}

// LongDate renders t as "15 de outubro de 2026".
func LongDate(t time.Time) string {
	return fmt.Sprintf("%d de %s de %d", t.Day(), ptMonths[t.Month()-1], t.Year())
}

// Sanitize drops apology and meta-commentary lines and strips braces so a
// generated value can never introduce a placeholder.
func Sanitize(text string) string {
	text = strings.NewReplacer("{", "", "}", "").Replace(text)
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if metaLine.MatchString(line) {
			continue
		}
		kept = append(kept, strings.TrimRight(line, " \t"))
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// CleanArticles reduces an articles answer to at most five distinct citations.
func CleanArticles(raw string) string {
	raw = markdownNoise.ReplaceAllString(Sanitize(raw), "")
	fields := strings.FieldsFunc(raw, func(r rune) bool { return r == '\n' || r == ';' })
	seen := map[string]bool{}
	var out []string
	for _, f := range fields {
		f = listMarker.ReplaceAllString(f, "")
		if loc := articleCut.FindStringIndex(f); loc != nil {
			f = f[:loc[0]]
		}
		f = strings.Trim(strings.TrimSpace(f), ".,")
		key := strings.ToLower(f)
		if f == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, f)
		if len(out) == maxArticles {
			break
		}
	}
	return strings.Join(out, "; ")
}

// FormatPrayers re-letters the prayers as "a) ...;" lines and appends the
// mandatory ones the model left out. The last prayer ends with a period.
func FormatPrayers(raw string) string {
	var items []string
	for _, line := range strings.Split(Sanitize(raw), "\n") {
		line = strings.TrimSpace(markdownNoise.ReplaceAllString(listMarker.ReplaceAllString(line, ""), ""))
		line = strings.TrimRight(line, ";.,")
		if line == "" || strings.HasSuffix(line, ":") {
			continue
		}
		items = append(items, line)
	}
	joined := strings.ToLower(strings.Join(items, "\n"))
	for _, m := range mandatoryPrayers {
		if !containsAny(joined, m.keywords) {
			items = append(items, m.text)
		}
	}
	if !strings.Contains(joined, "honorários") && !strings.Contains(joined, "honorarios") && strings.Contains(joined, "custas") {
		items = append(items, "a condenação do réu ao pagamento dos honorários advocatícios")
	}

	var b strings.Builder
	for i, item := range items {
		end := ";"
		if i == len(items)-1 {
			end = "."
		}
		fmt.Fprintf(&b, "%s) %s%s\n", alineaLetter(i), item, end)
	}
	return strings.TrimSpace(b.String())
}

// alineaLetter returns a, b, ..., z, aa, ab, ...
func alineaLetter(i int) string {
	if i < 26 {
		return string(rune('a' + i))
	}
	return alineaLetter(i/26-1) + string(rune('a'+i%26))
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

func onlyDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}

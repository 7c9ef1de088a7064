package ner

import (
	"context"
	"regexp"
	"strings"
)

// Domain keys written into chunk metadata.
const (
	KeyPartes       = "partes"
	KeyLocais       = "locais"
	KeyOrganizacoes = "organizacoes"
	KeyValores      = "valores"
	KeyDatas        = "datas"
)

// TagSeparator joins the surface forms of one key into a scalar value.
const TagSeparator = "; "

const (
	upperWord = `[A-ZÁÂÃÀÉÊÍÓÔÕÚÇ][a-záâãàéêíóôõúç]+|[A-ZÁÂÃÀÉÊÍÓÔÕÚÇ]{2,}`
	particle  = `(?:da|de|do|das|dos|e|DA|DE|DO|DAS|DOS|E)`
	namePart  = `(?:` + upperWord + `)(?:\s+(?:` + particle + `\s+)?(?:` + upperWord + `))`
)

var (
	moneyPattern    = regexp.MustCompile(`R\$\s?\d{1,3}(?:\.\d{3})*(?:,\d{2})?`)
	numericDate     = regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b`)
	longDate        = regexp.MustCompile(`(?i)\b\d{1,2}º?\s+de\s+(?:janeiro|fevereiro|março|marco|abril|maio|junho|julho|agosto|setembro|outubro|novembro|dezembro)\s+de\s+\d{4}\b`)
	orgSuffix       = regexp.MustCompile(`(?:` + upperWord + `)(?:\s+(?:` + upperWord + `|&))*\s+(?:Ltda\.?|LTDA\.?|S\.A\.|S/A|ME|EIRELI)`)
	orgPrefix       = regexp.MustCompile(`\b(?:Banco|Tribunal|Ministério|Instituto|Companhia|Caixa|Defensoria|Procuradoria)(?:\s+(?:` + particle + `\s+)?(?:` + upperWord + `))+`)
	comarcaPattern  = regexp.MustCompile(`\b(?i:comarca)\s+de\s+((?:` + upperWord + `)(?:\s+(?:` + particle + `\s+)?(?:` + upperWord + `))*)`)
	cityUFPattern   = regexp.MustCompile(`\b((?:` + upperWord + `)(?:\s+(?:` + particle + `\s+)?(?:` + upperWord + `))*)\s*[/-]\s*(AC|AL|AP|AM|BA|CE|DF|ES|GO|MA|MT|MS|MG|PA|PB|PR|PE|PI|RJ|RN|RS|RO|RR|SC|SP|SE|TO)\b`)
	addressPattern  = regexp.MustCompile(`\b(?:Rua|Avenida|Av\.|Travessa|Alameda|Praça|Rodovia)\s+[^,\n]{2,60}`)
	partyCuePattern = regexp.MustCompile(`\b(?i:autor[a]?|ré|réu|requerente|requerid[oa]|reclamante|reclamad[oa]|cliente|sr\.?|sra\.?)\s*:?\s+(` + namePart + `(?:\s+(?:` + particle + `\s+)?(?:` + upperWord + `))*)`)
	namePattern     = regexp.MustCompile(namePart + `(?:\s+(?:` + particle + `\s+)?(?:` + upperWord + `))*`)
)

var stateNames = []string{
	"Acre", "Alagoas", "Amapá", "Amazonas", "Bahia", "Ceará", "Distrito Federal", "Espírito Santo",
	"Goiás", "Maranhão", "Mato Grosso do Sul", "Mato Grosso", "Minas Gerais", "Pará", "Paraíba", "Paraná",
	"Pernambuco", "Piauí", "Rio de Janeiro", "Rio Grande do Norte", "Rio Grande do Sul", "Rondônia",
	"Roraima", "Santa Catarina", "São Paulo", "Sergipe", "Tocantins",
}

// leading words that make a capitalized run a heading or sentence start rather than a name
var nameStopwords = map[string]struct{}{
	"O": {}, "A": {}, "Os": {}, "As": {}, "Em": {}, "No": {}, "Na": {}, "Ao": {}, "Pelo": {}, "Pela": {},
	"Excelentíssimo": {}, "Senhor": {}, "Doutor": {}, "Juiz": {}, "Vara": {}, "Comarca": {}, "Lei": {},
	"Código": {}, "Art": {}, "Artigo": {}, "Tribunal": {}, "Banco": {}, "Rua": {}, "Avenida": {},
}

// Tagger extracts entity spans with fixed Portuguese patterns.
type Tagger struct{}

func NewTagger() *Tagger {
	return &Tagger{}
}

func (t *Tagger) Tag(ctx context.Context, text string) map[string][]string {
	out := map[string][]string{}
	if ctx.Err() != nil || strings.TrimSpace(text) == "" {
		return out
	}

	orgs := newSpanSet()
	orgs.addAll(orgSuffix.FindAllString(text, -1))
	orgs.addAll(orgPrefix.FindAllString(text, -1))

	places := newSpanSet()
	for _, m := range comarcaPattern.FindAllStringSubmatch(text, -1) {
		places.add(m[1])
	}
	for _, m := range cityUFPattern.FindAllStringSubmatch(text, -1) {
		places.add(m[1] + "/" + m[2])
	}
	places.addAll(addressPattern.FindAllString(text, -1))
	for _, state := range stateNames {
		if strings.Contains(text, state) {
			places.add(state)
		}
	}

	parties := newSpanSet()
	for _, m := range partyCuePattern.FindAllStringSubmatch(text, -1) {
		parties.add(m[1])
	}
	for _, candidate := range namePattern.FindAllString(text, -1) {
		if isPersonCandidate(candidate, orgs, places) {
			parties.add(candidate)
		}
	}

	dates := newSpanSet()
	dates.addAll(numericDate.FindAllString(text, -1))
	dates.addAll(longDate.FindAllString(text, -1))

	values := newSpanSet()
	values.addAll(moneyPattern.FindAllString(text, -1))

	for key, set := range map[string]*spanSet{
		KeyPartes:       parties,
		KeyLocais:       places,
		KeyOrganizacoes: orgs,
		KeyValores:      values,
		KeyDatas:        dates,
	} {
		if len(set.items) > 0 {
			out[key] = set.items
		}
	}
	return out
}

// Flatten joins each tag list into a scalar metadata value.
func Flatten(tags map[string][]string) map[string]string {
	out := make(map[string]string, len(tags))
	for key, values := range tags {
		if len(values) == 0 {
			continue
		}
		out[key] = strings.Join(values, TagSeparator)
	}
	return out
}

func isPersonCandidate(candidate string, orgs, places *spanSet) bool {
	words := strings.Fields(candidate)
	if len(words) < 2 {
		return false
	}
	if _, stop := nameStopwords[words[0]]; stop {
		return false
	}
	if orgs.containsSubstring(candidate) || places.has(candidate) {
		return false
	}
	for _, state := range stateNames {
		if candidate == state {
			return false
		}
	}
	return true
}

type spanSet struct {
	seen  map[string]struct{}
	items []string
}

func newSpanSet() *spanSet {
	return &spanSet{seen: map[string]struct{}{}}
}

func (s *spanSet) add(span string) {
	span = strings.Join(strings.Fields(strings.TrimRight(span, " ,;:")), " ")
	if span == "" {
		return
	}
	if _, ok := s.seen[span]; ok {
		return
	}
	s.seen[span] = struct{}{}
	s.items = append(s.items, span)
}

func (s *spanSet) addAll(spans []string) {
	for _, span := range spans {
		s.add(span)
	}
}

func (s *spanSet) has(span string) bool {
	_, ok := s.seen[span]
	return ok
}

func (s *spanSet) containsSubstring(span string) bool {
	for _, item := range s.items {
		if strings.Contains(item, span) || strings.Contains(span, item) {
			return true
		}
	}
	return false
}

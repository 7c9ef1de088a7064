package domain

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// NeutralMarker replaces FIRAC fields that could not be produced.
const NeutralMarker = "Não informado."

const (
	FieldFacts       = "facts"
	FieldIssue       = "issue"
	FieldRules       = "rules"
	FieldApplication = "application"
	FieldConclusion  = "conclusion"
)

// FIRACFields lists the record fields in pipeline order.
var FIRACFields = []string{FieldFacts, FieldIssue, FieldRules, FieldApplication, FieldConclusion}

type FIRAC struct {
	Facts       []string `json:"facts"`
	Issue       string   `json:"issue"`
	Rules       []string `json:"rules"`
	Application string   `json:"application"`
	Conclusion  string   `json:"conclusion"`
}

// UnmarshalJSON accepts English or Portuguese keys and a string or list for
// facts and rules.
func (f *FIRAC) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	var out FIRAC
	for key, value := range raw {
		switch foldKey(key) {
		case "facts", "fatos", "fato":
			out.Facts = decodeList(value)
		case "issue", "questao", "questoes", "issues":
			out.Issue = decodeText(value)
		case "rules", "regras", "regra":
			out.Rules = decodeList(value)
		case "application", "aplicacao":
			out.Application = decodeText(value)
		case "conclusion", "conclusao":
			out.Conclusion = decodeText(value)
		}
	}
	*f = out
	return nil
}

// Missing returns the names of empty fields in pipeline order.
func (f FIRAC) Missing() []string {
	var out []string
	if len(nonEmpty(f.Facts)) == 0 {
		out = append(out, FieldFacts)
	}
	if strings.TrimSpace(f.Issue) == "" {
		out = append(out, FieldIssue)
	}
	if len(nonEmpty(f.Rules)) == 0 {
		out = append(out, FieldRules)
	}
	if strings.TrimSpace(f.Application) == "" {
		out = append(out, FieldApplication)
	}
	if strings.TrimSpace(f.Conclusion) == "" {
		out = append(out, FieldConclusion)
	}
	return out
}

func (f FIRAC) Complete() bool {
	return len(f.Missing()) == 0
}

func (f FIRAC) Empty() bool {
	return len(f.Missing()) == len(FIRACFields)
}

// Normalized trims every field, drops empty list items and replaces empty
// fields with marker.
func (f FIRAC) Normalized(marker string) FIRAC {
	out := FIRAC{
		Facts:       nonEmpty(f.Facts),
		Issue:       strings.TrimSpace(f.Issue),
		Rules:       nonEmpty(f.Rules),
		Application: strings.TrimSpace(f.Application),
		Conclusion:  strings.TrimSpace(f.Conclusion),
	}
	if len(out.Facts) == 0 {
		out.Facts = []string{marker}
	}
	if out.Issue == "" {
		out.Issue = marker
	}
	if len(out.Rules) == 0 {
		out.Rules = []string{marker}
	}
	if out.Application == "" {
		out.Application = marker
	}
	if out.Conclusion == "" {
		out.Conclusion = marker
	}
	return out
}

// FIRACResult is what GenerateFIRAC returns.
type FIRACResult struct {
	Data    FIRAC    `json:"data"`
	Raw     string   `json:"raw,omitempty"`
	Cached  bool     `json:"cached"`
	Digest  string   `json:"digest"`
	Focus   string   `json:"focus"`
	Missing []string `json:"missing,omitempty"`
	Warning error    `json:"-"`
}

var sentenceEnd = regexp.MustCompile(`[.!?;]\s+`)

// citationAbbrev lists words whose trailing dot belongs to a legal citation
// ("Art. 186", "Lei n. 8.078", "p. 12") rather than ending a sentence.
var citationAbbrev = map[string]bool{
	"art": true, "arts": true, "inc": true, "incs": true, "al": true,
	"n": true, "nº": true, "n°": true,
	"p": true, "pp": true, "fl": true, "fls": true, "par": true,
	"cf": true, "ex": true, "rel": true, "des": true,
	"dr": true, "dra": true, "sr": true, "sra": true, "v": true,
}

// SplitSentences breaks free text into sentences, keeping the terminator.
// A dot after a citation abbreviation never ends a sentence.
func SplitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	var out []string
	start := 0
	for _, m := range sentenceEnd.FindAllStringIndex(text, -1) {
		if text[m[0]] == '.' && citationAbbrev[strings.ToLower(wordBefore(text, m[0]))] {
			continue
		}
		out = append(out, text[start:m[0]+1])
		start = m[1]
	}
	out = append(out, text[start:])
	return nonEmpty(out)
}

// wordBefore returns the run of letters (and ordinal marks) ending at i.
func wordBefore(text string, i int) string {
	j := i
	for j > 0 {
		r, size := utf8.DecodeLastRuneInString(text[:j])
		if !unicode.IsLetter(r) && r != 'º' && r != '°' {
			break
		}
		j -= size
	}
	return text[j:i]
}

func decodeList(value json.RawMessage) []string {
	var list []any
	if err := json.Unmarshal(value, &list); err == nil {
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return nonEmpty(out)
	}
	return SplitSentences(decodeText(value))
}

func decodeText(value json.RawMessage) string {
	var s string
	if err := json.Unmarshal(value, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var list []string
	if err := json.Unmarshal(value, &list); err == nil {
		return strings.TrimSpace(strings.Join(nonEmpty(list), " "))
	}
	return ""
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

var keyReplacer = strings.NewReplacer("ã", "a", "á", "a", "â", "a", "ç", "c", "õ", "o", "é", "e", "ê", "e", "í", "i", "ó", "o", "ú", "u")

func foldKey(key string) string {
	return keyReplacer.Replace(strings.ToLower(strings.TrimSpace(key)))
}

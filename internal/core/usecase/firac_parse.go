package usecase

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/probe365/advocacia-ia-sub000/internal/core/domain"
)

var (
	firacHeader = regexp.MustCompile(`(?i)(?:\d+\.\s*)?\*\*\s*(fatos|quest[aã]o|regras|aplica[cç][aã]o|conclus[aã]o)\s*:?\s*\*\*\s*:?`)
	bulletLine  = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)]|[a-z]\))\s+`)
)

var sectionFields = map[string]string{
	"fatos":     domain.FieldFacts,
	"questao":   domain.FieldIssue,
	"regras":    domain.FieldRules,
	"aplicacao": domain.FieldApplication,
	"conclusao": domain.FieldConclusion,
}

// ParseFIRAC accepts either a JSON object or markdown sections, preferring
// JSON. ok is false when no field could be extracted.
func ParseFIRAC(raw string) (domain.FIRAC, bool) {
	if record, ok := ParseFIRACJSON(raw); ok {
		return record, true
	}
	return ParseFIRACMarkdown(raw)
}

// ParseFIRACJSON decodes the outermost {...} span of raw.
func ParseFIRACJSON(raw string) (domain.FIRAC, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return domain.FIRAC{}, false
	}
	var record domain.FIRAC
	if err := json.Unmarshal([]byte(raw[start:end+1]), &record); err != nil {
		return domain.FIRAC{}, false
	}
	if record.Empty() {
		return domain.FIRAC{}, false
	}
	return record, true
}

// ParseFIRACMarkdown reads sections shaped like "1. **Fatos:** body". Each
// body runs until the next header or the end of text.
func ParseFIRACMarkdown(raw string) (domain.FIRAC, bool) {
	matches := firacHeader.FindAllStringSubmatchIndex(raw, -1)
	if len(matches) == 0 {
		return domain.FIRAC{}, false
	}
	bodies := map[string]string{}
	for i, m := range matches {
		end := len(raw)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		field := sectionFields[foldAccents(raw[m[2]:m[3]])]
		body := strings.TrimSpace(raw[m[1]:end])
		if field == "" || body == "" {
			continue
		}
		if _, seen := bodies[field]; !seen {
			bodies[field] = body
		}
	}
	record := domain.FIRAC{
		Facts:       splitListBody(bodies[domain.FieldFacts]),
		Issue:       bodies[domain.FieldIssue],
		Rules:       splitListBody(bodies[domain.FieldRules]),
		Application: bodies[domain.FieldApplication],
		Conclusion:  bodies[domain.FieldConclusion],
	}
	if record.Empty() {
		return domain.FIRAC{}, false
	}
	return record, true
}

// splitListBody splits on bullet lines when present, otherwise on sentences.
func splitListBody(body string) []string {
	if body == "" {
		return nil
	}
	lines := strings.Split(body, "\n")
	var items []string
	bulleted := false
	for _, line := range lines {
		if bulletLine.MatchString(line) {
			bulleted = true
			items = append(items, strings.TrimSpace(bulletLine.ReplaceAllString(line, "")))
			continue
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if bulleted && len(items) > 0 {
			items[len(items)-1] += " " + line
			continue
		}
		items = append(items, line)
	}
	if bulleted {
		return items
	}
	return domain.SplitSentences(strings.Join(items, " "))
}

func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

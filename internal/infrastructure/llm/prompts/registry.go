package prompts

import (
	_ "embed"
	"fmt"
	"regexp"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/probe365/advocacia-ia-sub000/internal/core/domain"
)

//go:embed templates.yaml
var defaultTemplates []byte

//go:embed petition_template.txt
var petitionTemplate string

// PetitionTemplate returns the fixed initial-petition layout.
func PetitionTemplate() string {
	return petitionTemplate
}

type Registry struct {
	templates map[string]domain.PromptTemplate
}

var placeholderPattern = regexp.MustCompile(`\{([a-z_]+)\}`)

// Load parses the embedded templates.
func Load() (*Registry, error) {
	return Parse(defaultTemplates)
}

// Parse builds a registry from YAML and checks that each template declares
// exactly the variables it references.
func Parse(raw []byte) (*Registry, error) {
	var doc struct {
		Prompts []domain.PromptTemplate `yaml:"prompts"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode prompt templates: %w", err)
	}

	reg := &Registry{templates: make(map[string]domain.PromptTemplate, len(doc.Prompts))}
	for _, tpl := range doc.Prompts {
		if tpl.Name == "" || tpl.OutputKey == "" {
			return nil, fmt.Errorf("prompt template missing name or output key")
		}
		if _, dup := reg.templates[tpl.Name]; dup {
			return nil, fmt.Errorf("duplicate prompt template %q", tpl.Name)
		}
		for _, m := range placeholderPattern.FindAllStringSubmatch(tpl.Template, -1) {
			if !slices.Contains(tpl.InputVariables, m[1]) {
				return nil, fmt.Errorf("prompt %q references undeclared variable %q", tpl.Name, m[1])
			}
		}
		reg.templates[tpl.Name] = tpl
	}
	return reg, nil
}

func (r *Registry) Template(name string) (domain.PromptTemplate, error) {
	tpl, ok := r.templates[name]
	if !ok {
		return domain.PromptTemplate{}, domain.WrapError(domain.ErrInvalidInput, "prompt template", fmt.Errorf("unknown template %q", name))
	}
	return tpl, nil
}

func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.templates))
	for name := range r.templates {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

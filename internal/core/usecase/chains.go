package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/probe365/advocacia-ia-sub000/internal/core/domain"
	"github.com/probe365/advocacia-ia-sub000/internal/core/ports"
)

// Chain names resolved from the prompt registry.
const (
	ChainChatQA            = "chat_qa"
	ChainSummaryMap        = "summary_map"
	ChainSummaryReduce     = "summary_reduce"
	ChainLegalRisks        = "legal_risks"
	ChainNextSteps         = "next_steps"
	ChainFIRACFacts        = "firac_facts"
	ChainFIRACIssue        = "firac_issue"
	ChainFIRACRules        = "firac_rules"
	ChainFIRACApplication  = "firac_application"
	ChainFIRACConclusion   = "firac_conclusion"
	ChainFIRACReport       = "firac_report"
	ChainFIRACJSON         = "firac_json"
	ChainPetitionAction    = "petition_action_name"
	ChainPetitionArticles  = "petition_articles"
	ChainPetitionFacts     = "petition_facts"
	ChainPetitionGrounds   = "petition_grounds"
	ChainPetitionPrayers   = "petition_prayers"
)

// firacStages maps each FIRAC field to the chain that produces it, in order.
var firacStages = []struct {
	field string
	chain string
}{
	{domain.FieldFacts, ChainFIRACFacts},
	{domain.FieldIssue, ChainFIRACIssue},
	{domain.FieldRules, ChainFIRACRules},
	{domain.FieldApplication, ChainFIRACApplication},
	{domain.FieldConclusion, ChainFIRACConclusion},
}

var templateVar = regexp.MustCompile(`\{([a-z_]+)\}`)

// ChainSet binds named prompt templates to the chat model. A chain is one
// template plus one completion.
type ChainSet struct {
	registry ports.PromptRegistry
	model    ports.ChatModel
	logger   *slog.Logger
}

func NewChainSet(registry ports.PromptRegistry, model ports.ChatModel, logger *slog.Logger) *ChainSet {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChainSet{
		registry: registry,
		model:    model,
		logger:   logger.With("component", "chains"),
	}
}

// Run renders the named template with vars and completes it.
func (c *ChainSet) Run(ctx context.Context, name string, vars map[string]string) (string, error) {
	prompt, err := c.Render(name, vars)
	if err != nil {
		return "", err
	}
	out, err := c.model.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("chain %s: %w", name, err)
	}
	return strings.TrimSpace(out), nil
}

// Render fills a template, failing when a declared variable is absent.
func (c *ChainSet) Render(name string, vars map[string]string) (string, error) {
	tpl, err := c.registry.Template(name)
	if err != nil {
		return "", err
	}
	var missing []string
	for _, v := range tpl.InputVariables {
		if _, ok := vars[v]; !ok {
			missing = append(missing, v)
		}
	}
	if len(missing) > 0 {
		return "", domain.WrapError(domain.ErrInvalidInput, "render "+name, fmt.Errorf("missing variables: %s", strings.Join(missing, ", ")))
	}
	return fill(tpl.Template, vars), nil
}

// RunFIRAC runs the five FIRAC chains in order. A failed stage records its
// error and passes an explanatory text to the later stages.
func (c *ChainSet) RunFIRAC(ctx context.Context, caseContext string) (map[string]string, map[string]error) {
	vars := map[string]string{"context": caseContext}
	out := make(map[string]string, len(firacStages))
	failures := map[string]error{}
	for _, stage := range firacStages {
		text, err := c.Run(ctx, stage.chain, vars)
		if err != nil {
			failures[stage.field] = err
			text = fmt.Sprintf("Erro ao gerar %s: %v", stage.field, err)
			c.logger.Warn("firac_stage_failed", "field", stage.field, "error", err)
		}
		out[stage.field] = text
		vars[stage.field] = text
	}
	return out, failures
}

func fill(template string, vars map[string]string) string {
	return templateVar.ReplaceAllStringFunc(template, func(m string) string {
		if v, ok := vars[m[1:len(m)-1]]; ok {
			return v
		}
		return m
	})
}

package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/probe365/advocacia-ia-sub000/internal/core/domain"
)

const (
	// EmptySummary is returned when the case has nothing to summarize.
	EmptySummary = "Sem conteúdo para resumir em Português."

	DefaultSummaryFocus = "Resumo geral do caso"
	DefaultFIRACFocus   = "Fatos, questão jurídica, normas aplicáveis, aplicação e conclusão do caso"
	DefaultSummaryWords = 300

	previewRunes    = 200
	summaryMapLimit = 4
)

// Analyzer answers questions and produces analyses over retrieved chunks.
type Analyzer struct {
	chains *ChainSet
	cases  *Retriever
	kb     *Retriever
	logger *slog.Logger
}

func NewAnalyzer(chains *ChainSet, cases, kb *Retriever, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		chains: chains,
		cases:  cases,
		kb:     kb,
		logger: logger.With("component", "analyzer"),
	}
}

func (a *Analyzer) Chat(ctx context.Context, question string, history []domain.ChatTurn, scope domain.SearchScope) (domain.ChatResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return domain.ChatResult{}, domain.WrapError(domain.ErrInvalidInput, "chat", fmt.Errorf("question is required"))
	}
	hits, err := ScopedRetriever{Case: a.cases, KB: a.kb}.Retrieve(ctx, question, scope)
	if err != nil {
		return domain.ChatResult{}, err
	}
	answer, err := a.chains.Run(ctx, ChainChatQA, map[string]string{
		"context":  JoinContext(hits),
		"history":  FormatHistory(history),
		"question": question,
	})
	if err != nil {
		return domain.ChatResult{}, err
	}
	return domain.ChatResult{Answer: answer, SourceDocuments: previews(hits)}, nil
}

// Summarize runs a map step per retrieved chunk and one reduce step.
func (a *Analyzer) Summarize(ctx context.Context, focus string, maxWords int) (string, error) {
	if strings.TrimSpace(focus) == "" {
		focus = DefaultSummaryFocus
	}
	if maxWords <= 0 {
		maxWords = DefaultSummaryWords
	}
	hits, err := a.cases.Retrieve(ctx, focus)
	if err != nil {
		return "", err
	}
	if len(hits) == 0 {
		return EmptySummary, nil
	}

	partials := make([]string, len(hits))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(summaryMapLimit)
	for i, hit := range hits {
		g.Go(func() error {
			out, err := a.chains.Run(gctx, ChainSummaryMap, map[string]string{"text": hit.Chunk.Text, "focus": focus})
			if err != nil {
				return err
			}
			partials[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	return a.chains.Run(ctx, ChainSummaryReduce, map[string]string{
		"summaries": strings.Join(partials, "\n\n"),
		"focus":     focus,
		"max_words": strconv.Itoa(maxWords),
	})
}

func (a *Analyzer) IdentifyLegalRisks(ctx context.Context, focus string) (string, error) {
	return a.runWithBothStores(ctx, ChainLegalRisks, focus)
}

func (a *Analyzer) SuggestNextSteps(ctx context.Context, focus string) (string, error) {
	return a.runWithBothStores(ctx, ChainNextSteps, focus)
}

// AnalyzeFIRAC always returns the five fields. A failed stage carries an
// error text instead of its output.
func (a *Analyzer) AnalyzeFIRAC(ctx context.Context, caseContext string) map[string]string {
	out, failures := a.chains.RunFIRAC(ctx, caseContext)
	if len(failures) > 0 {
		a.logger.Warn("firac_analysis_partial", "failed_stages", len(failures))
	}
	return out
}

// CaseContext retrieves case chunks for focus and joins them into one prompt context.
func (a *Analyzer) CaseContext(ctx context.Context, focus string) (string, error) {
	if strings.TrimSpace(focus) == "" {
		focus = DefaultFIRACFocus
	}
	hits, err := a.cases.Retrieve(ctx, focus)
	if err != nil {
		return "", err
	}
	return JoinContext(hits), nil
}

func (a *Analyzer) runWithBothStores(ctx context.Context, chain, focus string) (string, error) {
	if strings.TrimSpace(focus) == "" {
		focus = DefaultSummaryFocus
	}
	caseHits, err := a.cases.RetrieveK(ctx, focus, DefaultCaseK)
	if err != nil {
		return "", fmt.Errorf("case retriever: %w", err)
	}
	kbHits, err := a.kb.RetrieveK(ctx, focus, DefaultKBK)
	if err != nil {
		return "", fmt.Errorf("kb retriever: %w", err)
	}
	return a.chains.Run(ctx, chain, map[string]string{
		"context": JoinContext(append(caseHits, kbHits...)),
		"focus":   focus,
	})
}

// FormatHistory serializes turns one per line with a role label.
func FormatHistory(history []domain.ChatTurn) string {
	var b strings.Builder
	for _, turn := range history {
		content := strings.TrimSpace(turn.Content)
		if content == "" {
			continue
		}
		label := "Usuário"
		if turn.Role == domain.RoleAssistant {
			label = "Assistente"
		}
		fmt.Fprintf(&b, "%s: %s\n", label, content)
	}
	return strings.TrimSpace(b.String())
}

func previews(hits []domain.ScoredChunk) []domain.SourcePreview {
	out := make([]domain.SourcePreview, 0, len(hits))
	for _, hit := range hits {
		out = append(out, domain.SourcePreview{
			Source:  hit.Chunk.Source(),
			Type:    hit.Chunk.Metadata[domain.MetaType],
			Preview: truncateRunes(hit.Chunk.Text, previewRunes),
		})
	}
	return out
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/probe365/advocacia-ia-sub000/internal/core/domain"
	"github.com/probe365/advocacia-ia-sub000/internal/core/usecase"
)

func uploadCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>...",
		Short: "Extract, chunk and index files into the case store",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.withCase(cmd, func(ctx context.Context, p *usecase.CasePipeline) error {
				results := make([]uploadOutput, 0, len(args))
				for _, path := range args {
					data, err := os.ReadFile(path)
					if err != nil {
						return err
					}
					res, err := p.ProcessUpload(ctx, filepath.Base(path), data)
					if err != nil {
						return fmt.Errorf("%s: %w", path, err)
					}
					results = append(results, newUploadOutput(res))
				}
				return printJSON(cmd.OutOrStdout(), results)
			})
		},
	}
}

type uploadOutput struct {
	domain.UploadResult
	Warning string `json:"warning,omitempty"`
}

func newUploadOutput(res domain.UploadResult) uploadOutput {
	out := uploadOutput{UploadResult: res}
	if res.Warning != nil {
		out.Warning = res.Warning.Error()
	}
	return out
}

func enqueueCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "enqueue <file>",
		Short: "Store a file and queue it for the upload worker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.requireCase(); err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			return rt.withWorkspace(cmd, true, func(ctx context.Context, ws *usecase.Workspace) error {
				job, err := ws.EnqueueUpload(ctx, rt.tenant, rt.caseID, filepath.Base(args[0]), data)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), job)
			})
		},
	}
}

func listCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the distinct documents indexed for the case",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rt.withCase(cmd, func(ctx context.Context, p *usecase.CasePipeline) error {
				docs, err := p.ListUniqueCaseDocuments(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), docs)
			})
		},
	}
}

func deleteCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <filename>",
		Short: "Remove every chunk and the stored upload of one document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.withCase(cmd, func(ctx context.Context, p *usecase.CasePipeline) error {
				if err := p.DeleteDocumentByFilename(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
				return nil
			})
		},
	}
}

func summarizeCmd(rt *runtime) *cobra.Command {
	var focus string
	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Summarize the case, reusing the cached summary when documents are unchanged",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rt.withCase(cmd, func(ctx context.Context, p *usecase.CasePipeline) error {
				res, err := p.SummarizeWithCache(ctx, focus)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringVar(&focus, "focus", "", "Summary focus")
	return cmd
}

func firacCmd(rt *runtime) *cobra.Command {
	var focus string
	cmd := &cobra.Command{
		Use:   "firac",
		Short: "Generate the structured FIRAC record for the case",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rt.withCase(cmd, func(ctx context.Context, p *usecase.CasePipeline) error {
				res, err := p.GenerateFIRAC(ctx, focus)
				if err != nil {
					return err
				}
				if res.Warning != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), "warning:", res.Warning)
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringVar(&focus, "focus", "", "Retrieval focus")
	return cmd
}

func analyzeCmd(rt *runtime) *cobra.Command {
	var focus string
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run the sequential FIRAC analysis chain stage by stage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rt.withCase(cmd, func(ctx context.Context, p *usecase.CasePipeline) error {
				res, err := p.AnalyzeFIRAC(ctx, focus)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringVar(&focus, "focus", "", "Retrieval focus")
	return cmd
}

func risksCmd(rt *runtime) *cobra.Command {
	return textAnalysisCmd(rt, "risks", "Identify legal risks using case and knowledge-base context",
		func(ctx context.Context, p *usecase.CasePipeline, focus string) (string, error) {
			return p.IdentifyLegalRisks(ctx, focus)
		})
}

func nextStepsCmd(rt *runtime) *cobra.Command {
	return textAnalysisCmd(rt, "next-steps", "Suggest next procedural steps for the case",
		func(ctx context.Context, p *usecase.CasePipeline, focus string) (string, error) {
			return p.SuggestNextSteps(ctx, focus)
		})
}

func textAnalysisCmd(rt *runtime, use, short string, run func(context.Context, *usecase.CasePipeline, string) (string, error)) *cobra.Command {
	var focus string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rt.withCase(cmd, func(ctx context.Context, p *usecase.CasePipeline) error {
				out, err := run(ctx, p, focus)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&focus, "focus", "", "Retrieval focus")
	return cmd
}

func chatCmd(rt *runtime) *cobra.Command {
	var scope string
	cmd := &cobra.Command{
		Use:   "chat <question>",
		Short: "Ask a question answered from the case documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			searchScope, err := domain.ParseSearchScope(scope)
			if err != nil {
				return err
			}
			return rt.withCase(cmd, func(ctx context.Context, p *usecase.CasePipeline) error {
				res, err := p.Chat(ctx, args[0], nil, searchScope)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringVar(&scope, "scope", string(domain.SearchCase), "Search scope: case, kb or both")
	return cmd
}

func petitionCmd(rt *runtime) *cobra.Command {
	var (
		formPath   string
		processoID string
		focus      string
		export     bool
	)
	cmd := &cobra.Command{
		Use:   "petition",
		Short: "Draft an initial petition from a form and the case FIRAC",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			form, err := readForm(formPath)
			if err != nil {
				return err
			}
			return rt.withCase(cmd, func(ctx context.Context, p *usecase.CasePipeline) error {
				draft, err := p.GeneratePetitionDraft(ctx, domain.PetitionRequest{
					Form:       form,
					ProcessoID: processoID,
					Focus:      focus,
				})
				if err != nil {
					return err
				}
				if export {
					path, err := p.ExportDraft(draft)
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.ErrOrStderr(), "exported to", path)
				}
				fmt.Fprintln(cmd.OutOrStdout(), draft)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&formPath, "form", "", "Path to the petition form JSON")
	cmd.Flags().StringVar(&processoID, "processo", "", "Cadastral process id used to fill client data")
	cmd.Flags().StringVar(&focus, "focus", "", "FIRAC retrieval focus")
	cmd.Flags().BoolVar(&export, "export", false, "Also write the draft under the case exports directory")
	_ = cmd.MarkFlagRequired("form")
	return cmd
}

func readForm(path string) (domain.PetitionForm, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.PetitionForm{}, err
	}
	var form domain.PetitionForm
	if err := json.Unmarshal(raw, &form); err != nil {
		return domain.PetitionForm{}, domain.WrapError(domain.ErrInvalidInput, "read petition form", err)
	}
	return form, nil
}

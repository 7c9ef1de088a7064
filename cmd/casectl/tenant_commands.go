package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/probe365/advocacia-ia-sub000/internal/core/domain"
	"github.com/probe365/advocacia-ia-sub000/internal/core/usecase"
)

func kbAddCmd(rt *runtime) *cobra.Command {
	return tenantIngestCmd(rt, "kb-add <file>", "Add a file to the tenant knowledge base",
		func(ctx context.Context, ws *usecase.Workspace, name string, data []byte) (domain.UploadResult, error) {
			return ws.IngestKB(ctx, rt.tenant, name, data)
		})
}

func ementaAddCmd(rt *runtime) *cobra.Command {
	return tenantIngestCmd(rt, "ementa-add <file>", "Add a jurisprudence summary to the ementa library",
		func(ctx context.Context, ws *usecase.Workspace, name string, data []byte) (domain.UploadResult, error) {
			return ws.IngestEmenta(ctx, rt.tenant, name, data)
		})
}

func tenantIngestCmd(
	rt *runtime,
	use, short string,
	ingest func(context.Context, *usecase.Workspace, string, []byte) (domain.UploadResult, error),
) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.requireTenant(); err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			return rt.withWorkspace(cmd, false, func(ctx context.Context, ws *usecase.Workspace) error {
				res, err := ingest(ctx, ws, filepath.Base(args[0]), data)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), newUploadOutput(res))
			})
		},
	}
}

func ementaSearchCmd(rt *runtime) *cobra.Command {
	var k int
	cmd := &cobra.Command{
		Use:   "ementa-search <query>",
		Short: "Find the ementas most similar to a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.requireTenant(); err != nil {
				return err
			}
			return rt.withWorkspace(cmd, false, func(ctx context.Context, ws *usecase.Workspace) error {
				hits, err := ws.SearchEmentas(ctx, rt.tenant, args[0], k)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), hits)
			})
		},
	}
	cmd.Flags().IntVarP(&k, "top", "k", usecase.DefaultEmentaK, "Number of results")
	return cmd
}

func ementaDeleteCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "ementa-delete <filename>",
		Short: "Remove an ementa from the library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.requireTenant(); err != nil {
				return err
			}
			return rt.withWorkspace(cmd, false, func(ctx context.Context, ws *usecase.Workspace) error {
				n, err := ws.DeleteEmenta(ctx, rt.tenant, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %d chunks of %s\n", n, args[0])
				return nil
			})
		},
	}
}

func caseDeleteCmd(rt *runtime) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "case-delete",
		Short: "Delete the case store, caches, uploads and exports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := rt.requireCase(); err != nil {
				return err
			}
			if !yes {
				return fmt.Errorf("refusing to delete case %s/%s without --yes", rt.tenant, rt.caseID)
			}
			return rt.withWorkspace(cmd, false, func(ctx context.Context, ws *usecase.Workspace) error {
				if err := ws.DeleteCase(ctx, rt.tenant, rt.caseID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted case %s/%s\n", rt.tenant, rt.caseID)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm deletion")
	return cmd
}

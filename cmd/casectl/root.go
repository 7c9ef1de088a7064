package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/probe365/advocacia-ia-sub000/internal/bootstrap"
	"github.com/probe365/advocacia-ia-sub000/internal/config"
	"github.com/probe365/advocacia-ia-sub000/internal/core/usecase"
	"github.com/probe365/advocacia-ia-sub000/internal/observability/logging"
)

// runtime holds the global flags and opens the workspace on demand.
type runtime struct {
	envFile string
	tenant  string
	caseID  string

	open func(ctx context.Context, queue bool) (*usecase.Workspace, func(), error)
}

func newRuntime() *runtime {
	rt := &runtime{}
	rt.open = rt.openWorkspace
	return rt
}

func (rt *runtime) openWorkspace(ctx context.Context, queue bool) (*usecase.Workspace, func(), error) {
	if rt.envFile != "" {
		if err := godotenv.Load(rt.envFile); err != nil {
			return nil, nil, fmt.Errorf("load env file %s: %w", rt.envFile, err)
		}
	} else {
		_ = godotenv.Load()
	}
	cfg := config.Load()
	logger := logging.NewJSONLoggerTo(os.Stderr, "casectl", cfg.LogLevel)
	app, err := bootstrap.New(ctx, cfg, logger, bootstrap.Options{Queue: queue})
	if err != nil {
		return nil, nil, err
	}
	return app.Workspace, app.Close, nil
}

func (rt *runtime) requireTenant() error {
	if rt.tenant == "" {
		return errors.New("--tenant is required")
	}
	return usecase.ValidateID("tenant", rt.tenant)
}

func (rt *runtime) requireCase() error {
	if err := rt.requireTenant(); err != nil {
		return err
	}
	if rt.caseID == "" {
		return errors.New("--case is required")
	}
	return usecase.ValidateID("case", rt.caseID)
}

// withCase opens the case pipeline named by the global flags.
func (rt *runtime) withCase(cmd *cobra.Command, fn func(context.Context, *usecase.CasePipeline) error) error {
	if err := rt.requireCase(); err != nil {
		return err
	}
	return rt.withWorkspace(cmd, false, func(ctx context.Context, ws *usecase.Workspace) error {
		pipeline, err := ws.Case(ctx, rt.tenant, rt.caseID)
		if err != nil {
			return err
		}
		return fn(ctx, pipeline)
	})
}

func (rt *runtime) withWorkspace(cmd *cobra.Command, queue bool, fn func(context.Context, *usecase.Workspace) error) error {
	ctx := cmd.Context()
	ws, closeFn, err := rt.open(ctx, queue)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(ctx, ws)
}

func newRootCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "casectl",
		Short:         "Operate the per-case legal analysis pipeline",
		Long:          "casectl ingests case materials and runs summaries, FIRAC, risk analysis, chat and petition drafting for one tenant and case.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&rt.tenant, "tenant", "t", "", "Tenant identifier")
	cmd.PersistentFlags().StringVarP(&rt.caseID, "case", "c", "", "Case identifier")
	cmd.PersistentFlags().StringVar(&rt.envFile, "env-file", "", "Path to a .env file (defaults to ./.env when present)")

	cmd.AddCommand(
		uploadCmd(rt),
		enqueueCmd(rt),
		listCmd(rt),
		deleteCmd(rt),
		summarizeCmd(rt),
		firacCmd(rt),
		analyzeCmd(rt),
		risksCmd(rt),
		nextStepsCmd(rt),
		chatCmd(rt),
		petitionCmd(rt),
		kbAddCmd(rt),
		ementaAddCmd(rt),
		ementaSearchCmd(rt),
		ementaDeleteCmd(rt),
		caseDeleteCmd(rt),
	)
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

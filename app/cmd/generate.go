package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"scaffoldgen/app/config"
	"scaffoldgen/app/usecase"
	"scaffoldgen/internal/domain/entity"
	"scaffoldgen/internal/domain/repository"
	"scaffoldgen/internal/infrastructure/store/filesystem"
	"scaffoldgen/internal/infrastructure/store/sqlite"
)

type generateOptions struct {
	name        string
	description string
	projectType string
	features    []string
	outDir      string
	dbPath      string
}

func generateCmd(opts *globalOptions) *cobra.Command {
	var g generateOptions

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate one project and write it to disk",
		Long: `Run the full generation pipeline for a single project.

Progress is printed as the stages advance. The project is written to
<out>/<run id>/ and the run is recorded in the local SQLite database.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(opts)
			if g.outDir == "" {
				g.outDir = cfg.FileRepo.OutputDir
			}
			if g.dbPath != "" {
				cfg.SQLite.Path = g.dbPath
			}
			return runGenerate(cmd.Context(), cmd.OutOrStdout(), cfg, g)
		},
	}

	cmd.Flags().StringVarP(&g.name, "name", "n", "", "Project name")
	cmd.Flags().StringVarP(&g.description, "description", "d", "", "What the project should do")
	cmd.Flags().StringVarP(&g.projectType, "type", "t", string(entity.ProjectLanding), "Project type")
	cmd.Flags().StringSliceVarP(&g.features, "feature", "f", nil, "Optional feature (repeatable)")
	cmd.Flags().StringVarP(&g.outDir, "out", "o", "", "Output directory")
	cmd.Flags().StringVar(&g.dbPath, "db", "", "SQLite database path")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("description")
	return cmd
}

func runGenerate(parent context.Context, out io.Writer, cfg *config.Config, g generateOptions) error {
	logger := newLogger(os.Stderr, cfg.LogLevel, false)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.Worker.RunTimeout)
	defer cancel()

	pt, err := entity.ParseProjectType(g.projectType)
	if err != nil {
		return err
	}
	req := entity.GenerationRequest{
		ProjectName: g.name,
		Description: g.description,
		ProjectType: pt,
		Features:    g.features,
	}
	if err := req.Validate(); err != nil {
		return err
	}

	store, err := sqlite.Open(cfg.SQLite.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	exporter, err := filesystem.NewFileRepository(g.outDir)
	if err != nil {
		return err
	}

	call, err := newCallFunc(ctx, cfg, logger)
	if err != nil {
		return err
	}
	orchCfg, err := orchestratorConfig(cfg)
	if err != nil {
		return err
	}

	run := entity.NewRun(req)
	if err := store.Create(ctx, run); err != nil {
		return fmt.Errorf("record run: %w", err)
	}

	orchCfg.Sink = repository.FanOut{
		repository.ProgressFunc(func(_ context.Context, p entity.Progress) {
			fmt.Fprintf(out, "[%3d%%] %s\n", p.Percent, p.Message)
		}),
		repository.ProgressFunc(func(ctx context.Context, p entity.Progress) {
			if err := store.UpdateProgress(context.WithoutCancel(ctx), p); err != nil {
				logger.Warn("failed to store progress", "run_id", p.RunID, "err", err)
			}
		}),
	}

	res := usecase.NewOrchestrator(call, orchCfg, logger).Run(ctx, run.Request())

	persistCtx := context.WithoutCancel(ctx)
	if res.Success {
		if err := store.SaveFiles(persistCtx, run.ID, entity.NewArtifacts(run.ID, res.Files)); err != nil {
			logger.Warn("failed to store artifacts", "run_id", run.ID, "err", err)
		}
		if err := exporter.SaveFiles(persistCtx, run.ID, res.Files); err != nil {
			res.Success = false
			res.Error = fmt.Sprintf("write files: %v", err)
		}
	}
	run.ApplyResult(res)
	if err := store.Update(persistCtx, run); err != nil {
		logger.Warn("failed to update run record", "run_id", run.ID, "err", err)
	}

	printSummary(out, res, filepath.Join(exporter.GetBasePath(), run.ID))
	if !res.Success {
		return errors.New("generation failed: " + res.Error)
	}
	return nil
}

func printSummary(out io.Writer, res entity.Result, dir string) {
	fmt.Fprintln(out)
	if res.Success {
		fmt.Fprintf(out, "Generated %d files in %.1fs (%d tokens)\n", len(res.Files), res.TotalTimeSeconds, res.TokensUsed)
		fmt.Fprintf(out, "Project written to %s\n", dir)
	}
	if res.Validation != nil {
		fmt.Fprintf(out, "Validation: %d errors, %d warnings\n", len(res.Validation.Errors()), len(res.Validation.Warnings()))
		for _, issue := range res.Validation.Errors() {
			fmt.Fprintf(out, "  ✗ %s\n", issue)
		}
	}
}

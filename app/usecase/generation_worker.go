package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"scaffoldgen/internal/domain/entity"
	"scaffoldgen/internal/domain/repository"
	"scaffoldgen/internal/infrastructure/metrics"
)

// ProjectExporter writes a finished project somewhere it can be built.
type ProjectExporter interface {
	SaveFiles(ctx context.Context, runID string, files map[string]string) error
}

type WorkerConfig struct {
	PollInterval time.Duration
	RunTimeout   time.Duration
	Orchestrator OrchestratorConfig
	// Sinks receive progress in addition to the run record.
	Sinks []repository.ProgressSink
}

// GenerationWorker polls pending runs and drives each through its own
// orchestrator.
type GenerationWorker struct {
	runsRepo     repository.RunRepository
	artifactRepo repository.ArtifactRepository
	exporter     ProjectExporter
	call         repository.CallFunc
	cfg          WorkerConfig
	logger       *slog.Logger

	stop    chan struct{}
	stopped chan struct{}
}

func NewGenerationWorker(
	rr repository.RunRepository,
	ar repository.ArtifactRepository,
	exporter ProjectExporter,
	call repository.CallFunc,
	cfg WorkerConfig,
	logger *slog.Logger,
) *GenerationWorker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 30 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GenerationWorker{
		runsRepo:     rr,
		artifactRepo: ar,
		exporter:     exporter,
		call:         call,
		cfg:          cfg,
		logger:       logger,
		stop:         make(chan struct{}),
		stopped:      make(chan struct{}),
	}
}

func (w *GenerationWorker) Start(ctx context.Context) {
	go func() {
		defer close(w.stopped)
		ticker := time.NewTicker(w.cfg.PollInterval)
		defer ticker.Stop()

		w.logger.Info("generation worker started", "interval", w.cfg.PollInterval)

		if err := w.RunOnce(ctx); err != nil {
			w.logger.Warn("initial poll failed", "err", err)
		}

		for {
			select {
			case <-ctx.Done():
				w.logger.Info("generation worker context canceled")
				return
			case <-w.stop:
				w.logger.Info("generation worker stopped by Stop()")
				return
			case <-ticker.C:
				if err := w.RunOnce(ctx); err != nil {
					w.logger.Warn("poll failed", "err", err)
				}
			}
		}
	}()
}

// Stop must only be called after Start.
func (w *GenerationWorker) Stop() {
	select {
	case <-w.stop:
	default:
		close(w.stop)
	}
	<-w.stopped
	w.logger.Info("generation worker fully stopped")
}

// RunOnce processes every pending run sequentially.
func (w *GenerationWorker) RunOnce(ctx context.Context) error {
	runs, err := w.runsRepo.ListByStatus(ctx, entity.RunStatusPending)
	if err != nil {
		return fmt.Errorf("list pending runs: %w", err)
	}
	if len(runs) == 0 {
		return nil
	}

	w.logger.Debug("found pending runs", "count", len(runs))

	for _, run := range runs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := w.runsRepo.UpdateStatus(ctx, run.ID, entity.RunStatusRunning); err != nil {
			w.logger.Warn("failed to set run running; skip", "run_id", run.ID, "err", err)
			continue
		}
		run.Status = entity.RunStatusRunning
		metrics.IncRunStatusChange(string(entity.RunStatusRunning))

		runCtx, cancel := context.WithTimeout(ctx, w.cfg.RunTimeout)
		func() {
			defer cancel()
			if err := w.processRun(runCtx, run); err != nil {
				w.logger.Error("processRun failed", "run_id", run.ID, "err", err)
			}
		}()
	}
	return nil
}

func (w *GenerationWorker) processRun(ctx context.Context, run *entity.Run) error {
	metrics.IncActiveRuns()
	defer metrics.DecActiveRuns()

	log := w.logger.With("run_id", run.ID)
	log.Info("start processing run", "type", run.ProjectType)

	record := repository.ProgressFunc(func(ctx context.Context, p entity.Progress) {
		if err := w.runsRepo.UpdateProgress(ctx, p); err != nil {
			log.Warn("failed to store progress", "state", p.State, "err", err)
		}
	})
	cfg := w.cfg.Orchestrator
	cfg.Sink = append(repository.FanOut{record}, w.cfg.Sinks...)

	res := NewOrchestrator(w.call, cfg, log).Run(ctx, run.Request())

	// the run record is written even when the run context has expired
	persistCtx := context.WithoutCancel(ctx)

	if res.Success {
		if err := w.artifactRepo.SaveFiles(persistCtx, run.ID, entity.NewArtifacts(run.ID, res.Files)); err != nil {
			res.Success = false
			res.Error = fmt.Sprintf("save files: %v", err)
			log.Error("save files failed", "err", err)
		}
	}
	if res.Success && w.exporter != nil {
		if err := w.exporter.SaveFiles(persistCtx, run.ID, res.Files); err != nil {
			log.Error("export files failed", "err", err)
			res.Warnings = append(res.Warnings, fmt.Sprintf("export: %v", err))
		}
	}

	run.ApplyResult(res)
	if err := w.runsRepo.Update(persistCtx, run); err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	metrics.IncRunStatusChange(string(run.Status))

	log.Info("run processed",
		"status", run.Status,
		"files", run.FileCount,
		"tokens", run.TokensUsed,
		"duration", time.Duration(res.TotalTimeSeconds*float64(time.Second)),
	)
	if !res.Success {
		return fmt.Errorf("generation: %s", res.Error)
	}
	return nil
}

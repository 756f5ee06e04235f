package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"scaffoldgen/internal/domain/entity"
	"scaffoldgen/internal/domain/repository"
	"scaffoldgen/internal/infrastructure/metrics"
)

type RunUsecase interface {
	CreateRun(ctx context.Context, req entity.GenerationRequest) (*entity.Run, error)
	GetRun(ctx context.Context, id string) (*entity.Run, error)
	ListRuns(ctx context.Context) ([]*entity.Run, error)
	DeleteRun(ctx context.Context, id string) error
	BuildRun(ctx context.Context, id string) error
}

var _ RunUsecase = (*RunService)(nil)

var (
	ErrInvalidRequest   = errors.New("invalid request")
	ErrNotReadyForBuild = errors.New("run is not ready for build")
)

type RunService struct {
	runsRepo     repository.RunRepository
	artifactRepo repository.ArtifactRepository
	builder      Builder
	logger       *slog.Logger

	builds sync.WaitGroup
}

func NewRunService(
	rr repository.RunRepository,
	ar repository.ArtifactRepository,
	b Builder,
	logger *slog.Logger,
) *RunService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunService{
		runsRepo:     rr,
		artifactRepo: ar,
		builder:      b,
		logger:       logger,
	}
}

// CreateRun stores a pending run; the generation worker picks it up.
func (u *RunService) CreateRun(ctx context.Context, req entity.GenerationRequest) (*entity.Run, error) {
	pt, err := entity.ParseProjectType(string(req.ProjectType))
	if err == nil {
		req.ProjectType = pt
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	run := entity.NewRun(req)
	if err := u.runsRepo.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	u.logger.Info("run created", "run_id", run.ID, "type", run.ProjectType)
	return run, nil
}

func (u *RunService) GetRun(ctx context.Context, id string) (*entity.Run, error) {
	run, err := u.runsRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, runNotFoundError(id)
	}
	return run, nil
}

func (u *RunService) ListRuns(ctx context.Context) ([]*entity.Run, error) {
	return u.runsRepo.List(ctx)
}

func (u *RunService) DeleteRun(ctx context.Context, id string) error {
	if _, err := u.GetRun(ctx, id); err != nil {
		return err
	}
	if err := u.artifactRepo.DeleteRun(ctx, id); err != nil {
		return fmt.Errorf("delete artifacts: %w", err)
	}
	if err := u.runsRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	return nil
}

// BuildRun marks a finished run as building and verifies the exported
// project in the background. Wait blocks until pending builds finish.
func (u *RunService) BuildRun(ctx context.Context, id string) error {
	if u.builder == nil {
		return errors.New("no builder configured")
	}
	run, err := u.GetRun(ctx, id)
	if err != nil {
		return err
	}
	if !run.IsReadyForBuild() {
		return fmt.Errorf("%w: status %s", ErrNotReadyForBuild, run.Status)
	}
	if err := u.runsRepo.UpdateStatus(ctx, id, entity.RunStatusBuilding); err != nil {
		return fmt.Errorf("err update status: %w", err)
	}
	metrics.IncRunStatusChange(string(entity.RunStatusBuilding))

	u.builds.Add(1)
	go func() {
		defer u.builds.Done()
		u.build(context.WithoutCancel(ctx), run)
	}()
	return nil
}

func (u *RunService) build(ctx context.Context, run *entity.Run) {
	logPath, err := u.builder.Build(ctx, run)
	status := entity.RunStatusBuilt
	if err != nil {
		metrics.IncBuildRequest("fail")
		u.logger.Error("build failed", "run_id", run.ID, "log", logPath, "err", err)
		status = entity.RunStatusCompleted
	} else {
		metrics.IncBuildRequest("ok")
		u.logger.Info("build finished", "run_id", run.ID, "log", logPath)
	}
	if err := u.runsRepo.UpdateStatus(ctx, run.ID, status); err != nil {
		u.logger.Warn("failed to update run after build", "run_id", run.ID, "err", err)
		return
	}
	metrics.IncRunStatusChange(string(status))
}

func (u *RunService) Wait() {
	u.builds.Wait()
}

func runNotFoundError(id string) error {
	return fmt.Errorf("run %s: %w", id, entity.ErrRunNotFound)
}

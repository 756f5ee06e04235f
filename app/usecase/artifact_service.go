package usecase

import (
	"context"
	"fmt"

	"scaffoldgen/internal/domain/entity"
	"scaffoldgen/internal/domain/repository"
)

type ArtifactUsecase interface {
	SaveFiles(ctx context.Context, runID string, files map[string]string) error
	GetFiles(ctx context.Context, runID string) ([]*entity.Artifact, error)
	DeleteFiles(ctx context.Context, runID string) error
}

type ArtifactService struct {
	repo repository.ArtifactRepository
}

func NewArtifactService(repo repository.ArtifactRepository) *ArtifactService {
	return &ArtifactService{repo: repo}
}

var _ ArtifactUsecase = (*ArtifactService)(nil)

func (s *ArtifactService) SaveFiles(ctx context.Context, runID string, files map[string]string) error {
	if len(files) == 0 {
		return nil
	}
	if runID == "" {
		return fmt.Errorf("runID is required")
	}
	if err := s.repo.SaveFiles(ctx, runID, entity.NewArtifacts(runID, files)); err != nil {
		return fmt.Errorf("save files for run %s: %w", runID, err)
	}
	return nil
}

func (s *ArtifactService) GetFiles(ctx context.Context, runID string) ([]*entity.Artifact, error) {
	if runID == "" {
		return nil, fmt.Errorf("runID is required")
	}
	files, err := s.repo.GetFiles(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("get files for run %s: %w", runID, err)
	}
	return files, nil
}

func (s *ArtifactService) DeleteFiles(ctx context.Context, runID string) error {
	if runID == "" {
		return fmt.Errorf("runID is required")
	}
	if err := s.repo.DeleteRun(ctx, runID); err != nil {
		return fmt.Errorf("delete files for run %s: %w", runID, err)
	}
	return nil
}

package repository

import (
	"context"

	"scaffoldgen/internal/domain/entity"
)

// ArtifactRepository stores the files produced by a run.
type ArtifactRepository interface {
	SaveFiles(ctx context.Context, runID string, files []*entity.Artifact) error
	GetFiles(ctx context.Context, runID string) ([]*entity.Artifact, error)
	ListRuns(ctx context.Context) ([]string, error)
	DeleteRun(ctx context.Context, runID string) error
}

package repository

import (
	"context"

	"scaffoldgen/internal/domain/entity"
)

// RunRepository stores generation run records.
type RunRepository interface {
	Create(ctx context.Context, run *entity.Run) error
	GetByID(ctx context.Context, id string) (*entity.Run, error)
	List(ctx context.Context) ([]*entity.Run, error)
	ListByStatus(ctx context.Context, status entity.RunStatus) ([]*entity.Run, error)
	Update(ctx context.Context, run *entity.Run) error
	UpdateStatus(ctx context.Context, id string, status entity.RunStatus) error
	UpdateProgress(ctx context.Context, p entity.Progress) error
	Delete(ctx context.Context, id string) error
	CountByStatus(ctx context.Context, status entity.RunStatus) (int, error)
}

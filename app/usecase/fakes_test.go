package usecase

import (
	"context"
	"errors"
	"sync"

	"scaffoldgen/internal/domain/entity"
)

type memRunRepo struct {
	mu       sync.Mutex
	runs     map[string]*entity.Run
	progress []entity.Progress
}

func newMemRunRepo() *memRunRepo {
	return &memRunRepo{runs: make(map[string]*entity.Run)}
}

func (r *memRunRepo) Create(_ context.Context, run *entity.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *run
	r.runs[run.ID] = &cp
	return nil
}

func (r *memRunRepo) GetByID(_ context.Context, id string) (*entity.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, nil
	}
	cp := *run
	return &cp, nil
}

func (r *memRunRepo) List(_ context.Context) ([]*entity.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Run
	for _, run := range r.runs {
		cp := *run
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memRunRepo) ListByStatus(_ context.Context, status entity.RunStatus) ([]*entity.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Run
	for _, run := range r.runs {
		if run.Status == status {
			cp := *run
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memRunRepo) Update(_ context.Context, run *entity.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.runs[run.ID]; !ok {
		return errors.New("no such run")
	}
	cp := *run
	r.runs[run.ID] = &cp
	return nil
}

func (r *memRunRepo) UpdateStatus(_ context.Context, id string, status entity.RunStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return errors.New("no such run")
	}
	run.Status = status
	return nil
}

func (r *memRunRepo) UpdateProgress(_ context.Context, p entity.Progress) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, p)
	if run, ok := r.runs[p.RunID]; ok {
		run.Progress = p.Percent
		run.State = p.State
		run.Message = p.Message
	}
	return nil
}

func (r *memRunRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.runs, id)
	return nil
}

func (r *memRunRepo) CountByStatus(_ context.Context, status entity.RunStatus) (int, error) {
	runs, _ := r.ListByStatus(context.Background(), status)
	return len(runs), nil
}

func (r *memRunRepo) status(id string) entity.RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	if run, ok := r.runs[id]; ok {
		return run.Status
	}
	return ""
}

type memArtifactRepo struct {
	mu    sync.Mutex
	files map[string][]*entity.Artifact
	err   error
}

func newMemArtifactRepo() *memArtifactRepo {
	return &memArtifactRepo{files: make(map[string][]*entity.Artifact)}
}

func (r *memArtifactRepo) SaveFiles(_ context.Context, runID string, files []*entity.Artifact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.files[runID] = append(r.files[runID], files...)
	return nil
}

func (r *memArtifactRepo) GetFiles(_ context.Context, runID string) ([]*entity.Artifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.files[runID], nil
}

func (r *memArtifactRepo) ListRuns(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for id := range r.files {
		out = append(out, id)
	}
	return out, nil
}

func (r *memArtifactRepo) DeleteRun(_ context.Context, runID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.files, runID)
	return nil
}

type memExporter struct {
	mu    sync.Mutex
	saved map[string]map[string]string
}

func (e *memExporter) SaveFiles(_ context.Context, runID string, files map[string]string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.saved == nil {
		e.saved = make(map[string]map[string]string)
	}
	e.saved[runID] = files
	return nil
}

type fakeBuilder struct {
	err   error
	built chan string
}

func (b *fakeBuilder) Build(_ context.Context, run *entity.Run) (string, error) {
	if b.built != nil {
		b.built <- run.ID
	}
	return "/tmp/" + run.ID + ".log", b.err
}

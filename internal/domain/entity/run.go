package entity

import (
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusBuilding  RunStatus = "building"
	RunStatusBuilt     RunStatus = "built"
)

// Run is the persisted record of one generation request.
type Run struct {
	ID          string      `json:"id" bson:"id"`
	ProjectName string      `json:"project_name" bson:"project_name"`
	Description string      `json:"description" bson:"description"`
	ProjectType ProjectType `json:"project_type" bson:"project_type"`
	Features    []string    `json:"features" bson:"features"`
	Status      RunStatus   `json:"status" bson:"status"`
	State       State       `json:"state,omitempty" bson:"state,omitempty"`
	Progress    int         `json:"progress" bson:"progress"`
	Message     string      `json:"message,omitempty" bson:"message,omitempty"`
	Error       string      `json:"error,omitempty" bson:"error,omitempty"`
	Errors      []string    `json:"errors,omitempty" bson:"errors,omitempty"`
	Warnings    []string    `json:"warnings,omitempty" bson:"warnings,omitempty"`
	TokensUsed  int         `json:"tokens_used" bson:"tokens_used"`
	FileCount   int         `json:"file_count" bson:"file_count"`
	CreatedAt   time.Time   `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" bson:"updated_at"`
	FinishedAt  *time.Time  `json:"finished_at,omitempty" bson:"finished_at,omitempty"`
}

func NewRun(req GenerationRequest) *Run {
	now := time.Now()
	return &Run{
		ID:          uuid.New().String(),
		ProjectName: req.ProjectName,
		Description: req.Description,
		ProjectType: req.ProjectType,
		Features:    req.Features,
		Status:      RunStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (r *Run) UpdateStatus(status RunStatus) {
	r.Status = status
	r.UpdatedAt = time.Now()
}

// Request rebuilds the generation request the run was created from.
func (r *Run) Request() GenerationRequest {
	return GenerationRequest{
		RunID:       r.ID,
		ProjectName: r.ProjectName,
		Description: r.Description,
		ProjectType: r.ProjectType,
		Features:    r.Features,
	}
}

// ApplyResult copies the outcome of a generation into the run record.
func (r *Run) ApplyResult(res Result) {
	now := time.Now()
	r.FinishedAt = &now
	r.UpdatedAt = now
	r.Errors = res.Errors
	r.Warnings = res.Warnings
	r.TokensUsed = res.TokensUsed
	r.FileCount = len(res.Files)
	if res.Success {
		r.Status = RunStatusCompleted
		r.State = StateDone
		r.Progress = 100
		r.Error = ""
		return
	}
	r.Status = RunStatusFailed
	r.State = StateFailed
	r.Error = res.Error
}

func (r *Run) IsReadyForBuild() bool {
	return r.Status == RunStatusCompleted || r.Status == RunStatusBuilt
}

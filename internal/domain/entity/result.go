package entity

import (
	"errors"
	"strings"
	"time"
)

// GenerationRequest is the input of one orchestrated run.
type GenerationRequest struct {
	RunID       string      `json:"-"`
	ProjectName string      `json:"projectName"`
	Description string      `json:"description"`
	ProjectType ProjectType `json:"projectType"`
	Features    []string    `json:"features"`
}

func (r GenerationRequest) Validate() error {
	if strings.TrimSpace(r.ProjectName) == "" {
		return errors.New("projectName is required")
	}
	if strings.TrimSpace(r.Description) == "" {
		return errors.New("description is required")
	}
	if _, err := ParseProjectType(string(r.ProjectType)); err != nil {
		return err
	}
	return nil
}

// Result is the terminal outcome of a run. Files is set only on success.
type Result struct {
	Success          bool              `json:"success"`
	Files            map[string]string `json:"files,omitempty"`
	SessionID        string            `json:"sessionId"`
	TotalTimeSeconds float64           `json:"totalTimeSeconds,omitempty"`
	Error            string            `json:"error,omitempty"`
	Errors           []string          `json:"errors,omitempty"`
	Warnings         []string          `json:"warnings,omitempty"`
	Validation       *ValidationReport `json:"validation,omitempty"`
	TokensUsed       int               `json:"tokensUsed"`
}

// Progress is emitted on every state transition of a run.
type Progress struct {
	RunID   string    `json:"runId"`
	Percent int       `json:"percent"`
	Message string    `json:"message"`
	State   State     `json:"state"`
	At      time.Time `json:"at"`
}

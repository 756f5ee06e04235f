package entity

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Session is the mutable state of one generation run. It is owned by a
// single orchestrator and is not safe for concurrent use.
type Session struct {
	ID          string            `json:"id"`
	ProjectType ProjectType       `json:"project_type"`
	Features    FeatureSet        `json:"features"`
	StageIndex  int               `json:"stage_index"`
	History     []Interaction     `json:"history"`
	Artifacts   map[string]string `json:"artifacts"`
	TokensUsed  int               `json:"tokens_used"`
	Errors      []string          `json:"errors"`
	Warnings    []string          `json:"warnings"`
	StartedAt   time.Time         `json:"started_at"`
}

// Interaction is one completed model call. Records are never mutated.
type Interaction struct {
	At         time.Time `json:"at"`
	Stage      Stage     `json:"stage"`
	Prompt     string    `json:"prompt"`
	Response   string    `json:"response"`
	TokensUsed int       `json:"tokens_used"`
	Context    Snapshot  `json:"context"`
}

// Snapshot captures session context at the moment of an interaction.
type Snapshot struct {
	StageIndex    int         `json:"stage_index"`
	ProjectType   ProjectType `json:"project_type"`
	Features      []string    `json:"features"`
	ArtifactCount int         `json:"artifact_count"`
	TokensUsed    int         `json:"tokens_used"`
}

func NewSession(projectType ProjectType, features FeatureSet) *Session {
	if features == nil {
		features = FeatureSet{}
	}
	return &Session{
		ID:          uuid.NewString(),
		ProjectType: projectType,
		Features:    features.Clone(),
		Artifacts:   make(map[string]string),
		StartedAt:   time.Now(),
	}
}

func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		StageIndex:    s.StageIndex,
		ProjectType:   s.ProjectType,
		Features:      s.Features.Enabled(),
		ArtifactCount: len(s.Artifacts),
		TokensUsed:    s.TokensUsed,
	}
}

// Record appends an interaction and charges its tokens to the session.
func (s *Session) Record(stage Stage, prompt, response string, tokens int) Interaction {
	if tokens < 0 {
		tokens = 0
	}
	snap := s.Snapshot()
	s.TokensUsed += tokens
	in := Interaction{
		At:         time.Now(),
		Stage:      stage,
		Prompt:     prompt,
		Response:   response,
		TokensUsed: tokens,
		Context:    snap,
	}
	s.History = append(s.History, in)
	return in
}

// MergeArtifacts copies files into the session. Paths already present are
// overwritten: a later stage supersedes an earlier one.
func (s *Session) MergeArtifacts(files map[string]string) int {
	if s.Artifacts == nil {
		s.Artifacts = make(map[string]string, len(files))
	}
	for path, content := range files {
		s.Artifacts[path] = content
	}
	return len(files)
}

func (s *Session) AddError(msg string) {
	s.Errors = append(s.Errors, msg)
}

func (s *Session) AddWarning(msg string) {
	s.Warnings = append(s.Warnings, msg)
}

// Reset clears generated state. History is kept.
func (s *Session) Reset() {
	s.Artifacts = make(map[string]string)
	s.TokensUsed = 0
	s.StageIndex = 0
	s.Errors = nil
	s.Warnings = nil
	s.StartedAt = time.Now()
}

func (s *Session) ArtifactPaths() []string {
	paths := make([]string, 0, len(s.Artifacts))
	for p := range s.Artifacts {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// LastInteraction returns the most recent interaction for stage.
func (s *Session) LastInteraction(stage Stage) (Interaction, bool) {
	for i := len(s.History) - 1; i >= 0; i-- {
		if s.History[i].Stage == stage {
			return s.History[i], true
		}
	}
	return Interaction{}, false
}

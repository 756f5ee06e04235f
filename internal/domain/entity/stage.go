package entity

import "fmt"

type Stage string

const (
	StageAnalyze             Stage = "analyze"
	StagePlan                Stage = "plan"
	StageGenerateCore        Stage = "generate-core"
	StageGenerateComponents  Stage = "generate-components"
	StageGenerateIntegration Stage = "generate-integration"
	StageValidate            Stage = "validate"
	StageCompose             Stage = "compose"
	StageImprove             Stage = "improve"
	StageGeneratePage        Stage = "generate-page"
	StageGenerateComponent   Stage = "generate-component"
)

// Intent says what kind of output a stage expects from the model.
type Intent int

const (
	IntentStructured Intent = iota
	IntentArtifacts
)

func (i Intent) String() string {
	if i == IntentStructured {
		return "structured"
	}
	return "artifacts"
}

var allStages = []Stage{
	StageAnalyze,
	StagePlan,
	StageGenerateCore,
	StageGenerateComponents,
	StageGenerateIntegration,
	StageValidate,
	StageCompose,
	StageImprove,
	StageGeneratePage,
	StageGenerateComponent,
}

func Stages() []Stage {
	out := make([]Stage, len(allStages))
	copy(out, allStages)
	return out
}

func ParseStage(s string) (Stage, error) {
	for _, st := range allStages {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStage, s)
}

func (s Stage) Valid() bool {
	_, err := ParseStage(string(s))
	return err == nil
}

func (s Stage) Intent() Intent {
	switch s {
	case StageAnalyze, StagePlan, StageValidate:
		return IntentStructured
	default:
		return IntentArtifacts
	}
}

// State is a step of the generation state machine.
type State string

const (
	StateAnalyzing             State = "analyzing"
	StatePlanning              State = "planning"
	StateGeneratingCore        State = "generating_core"
	StateGeneratingComponents  State = "generating_components"
	StateGeneratingIntegration State = "generating_integration"
	StateComposing             State = "composing"
	StateValidating            State = "validating"
	StateImproving             State = "improving"
	StateDone                  State = "done"
	StateFailed                State = "failed"
)

var pipelineStates = []State{
	StateAnalyzing,
	StatePlanning,
	StateGeneratingCore,
	StateGeneratingComponents,
	StateGeneratingIntegration,
	StateComposing,
	StateValidating,
	StateImproving,
}

// PipelineStates returns the working states in execution order.
func PipelineStates() []State {
	out := make([]State, len(pipelineStates))
	copy(out, pipelineStates)
	return out
}

func (s State) Stage() (Stage, bool) {
	switch s {
	case StateAnalyzing:
		return StageAnalyze, true
	case StatePlanning:
		return StagePlan, true
	case StateGeneratingCore:
		return StageGenerateCore, true
	case StateGeneratingComponents:
		return StageGenerateComponents, true
	case StateGeneratingIntegration:
		return StageGenerateIntegration, true
	case StateComposing:
		return StageCompose, true
	case StateValidating:
		return StageValidate, true
	case StateImproving:
		return StageImprove, true
	}
	return "", false
}

func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

func (s State) Message() string {
	switch s {
	case StateAnalyzing:
		return "Analyzing requirements"
	case StatePlanning:
		return "Planning project structure"
	case StateGeneratingCore:
		return "Generating core files"
	case StateGeneratingComponents:
		return "Generating components"
	case StateGeneratingIntegration:
		return "Wiring integration layer"
	case StateComposing:
		return "Composing project"
	case StateValidating:
		return "Validating project"
	case StateImproving:
		return "Applying improvements"
	case StateDone:
		return "Generation complete"
	case StateFailed:
		return "Generation failed"
	}
	return string(s)
}

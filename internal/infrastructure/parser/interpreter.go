package parser

import (
	"errors"
	"log/slog"

	"scaffoldgen/internal/domain/entity"
)

// Interpreter turns raw model output into the value a stage expects.
type Interpreter struct {
	knownFiles []string
	logger     *slog.Logger
}

func NewInterpreter(knownFiles []string, logger *slog.Logger) *Interpreter {
	if len(knownFiles) == 0 {
		knownFiles = DefaultKnownFiles
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Interpreter{knownFiles: knownFiles, logger: logger}
}

// Structured parses the JSON intent of an analyze, plan or validate stage.
func (i *Interpreter) Structured(stage entity.Stage, text string) (map[string]any, error) {
	v, err := ParseStructured(text)
	if err != nil {
		var uerr *entity.UnparsableResponseError
		if errors.As(err, &uerr) {
			uerr.Stage = stage
		}
		i.logger.Debug("structured response rejected", "stage", stage, "len", len(text))
		return nil, err
	}
	return v, nil
}

// Artifacts extracts the files of an artifact-producing stage.
func (i *Interpreter) Artifacts(stage entity.Stage, text string) Extraction {
	ex := ExtractArtifacts(text, i.knownFiles)
	if ex.Rejected > 0 || ex.Duplicates > 0 {
		i.logger.Debug("artifact candidates dropped",
			"stage", stage,
			"rejected", ex.Rejected,
			"duplicates", ex.Duplicates,
		)
	}
	return ex
}

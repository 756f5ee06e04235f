package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"scaffoldgen/internal/domain/entity"
	"scaffoldgen/internal/domain/repository"
	"scaffoldgen/internal/infrastructure/llm"
	"scaffoldgen/internal/infrastructure/metrics"
	"scaffoldgen/internal/infrastructure/parser"
	"scaffoldgen/internal/infrastructure/prompt"
	"scaffoldgen/internal/infrastructure/validator"
)

var defaultTokenBudgets = map[entity.Stage]int{
	entity.StageAnalyze:             2000,
	entity.StagePlan:                3000,
	entity.StageGenerateCore:        8000,
	entity.StageGenerateComponents:  8000,
	entity.StageGenerateIntegration: 8000,
	entity.StageCompose:             8000,
	entity.StageValidate:            2000,
	entity.StageImprove:             8000,
	entity.StageGeneratePage:        4000,
	entity.StageGenerateComponent:   4000,
}

// stageEstimates drive the progress percentage, not any timeout.
var stageEstimates = map[entity.Stage]time.Duration{
	entity.StageAnalyze:             10 * time.Second,
	entity.StagePlan:                15 * time.Second,
	entity.StageGenerateCore:        45 * time.Second,
	entity.StageGenerateComponents:  60 * time.Second,
	entity.StageGenerateIntegration: 40 * time.Second,
	entity.StageCompose:             30 * time.Second,
	entity.StageValidate:            15 * time.Second,
	entity.StageImprove:             40 * time.Second,
}

type OrchestratorConfig struct {
	Stack            entity.Stack
	Templates        map[entity.Stage]string
	TokenBudgets     map[entity.Stage]int
	Catalog          *entity.FeatureCatalog
	Retry            llm.RetryConfig
	Wait             llm.WaitFunc
	ModelLabel       string
	FailOnValidation bool
	Sink             repository.ProgressSink
}

// Orchestrator drives one generation request through the stage state
// machine. It owns its session and must not be shared between runs.
type Orchestrator struct {
	invoker     *llm.Invoker
	composer    *prompt.Composer
	interpreter *parser.Interpreter
	validator   *validator.Pipeline
	sink        repository.ProgressSink
	budgets     map[entity.Stage]int
	failOnVal   bool
	logger      *slog.Logger

	session     *entity.Session
	state       entity.State
	lastPercent int
	intents     map[entity.Stage]map[string]any
	checks      *entity.ValidationReport
}

func NewOrchestrator(call repository.CallFunc, cfg OrchestratorConfig, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	stack := cfg.Stack.WithDefaults()

	opts := []llm.InvokerOption{}
	if cfg.Retry.BaseDelay > 0 {
		opts = append(opts, llm.WithRetry(cfg.Retry))
	}
	if cfg.Wait != nil {
		opts = append(opts, llm.WithWait(cfg.Wait))
	}
	if cfg.ModelLabel != "" {
		opts = append(opts, llm.WithModelLabel(cfg.ModelLabel))
	}

	budgets := make(map[entity.Stage]int, len(defaultTokenBudgets))
	for k, v := range defaultTokenBudgets {
		budgets[k] = v
	}
	for k, v := range cfg.TokenBudgets {
		budgets[k] = v
	}

	pipeline := validator.NewPipeline(stack, logger)
	sink := cfg.Sink
	if sink == nil {
		sink = repository.FanOut(nil)
	}

	return &Orchestrator{
		invoker:     llm.NewInvoker(call, logger, opts...),
		composer:    prompt.NewComposer(stack, cfg.Templates, cfg.Catalog),
		interpreter: parser.NewInterpreter(pipeline.Manifest().All(), logger),
		validator:   pipeline,
		sink:        sink,
		budgets:     budgets,
		failOnVal:   cfg.FailOnValidation,
		logger:      logger,
	}
}

// Session returns the session of the current or last run.
func (o *Orchestrator) Session() *entity.Session { return o.session }

func (o *Orchestrator) State() entity.State { return o.state }

// Run executes the whole pipeline and always returns a Result; failures
// are reported through Result.Success and Result.Error.
func (o *Orchestrator) Run(ctx context.Context, req entity.GenerationRequest) entity.Result {
	start := time.Now()
	o.session = entity.NewSession(req.ProjectType, entity.NewFeatureSet(req.Features...))
	if req.RunID != "" {
		o.session.ID = req.RunID
	}
	o.lastPercent = 0
	o.intents = make(map[entity.Stage]map[string]any)
	o.checks = nil

	log := o.logger.With("session_id", o.session.ID)
	log.Info("generation started", "project", req.ProjectName, "type", req.ProjectType)

	if err := req.Validate(); err != nil {
		return o.fail(ctx, entity.StateAnalyzing, fmt.Errorf("invalid request: %w", err), start)
	}
	if !o.invoker.Configured() {
		o.session.AddError(entity.ErrNotConfigured.Error())
		return o.fail(ctx, entity.StateAnalyzing, entity.ErrNotConfigured, start)
	}

	var total, elapsed time.Duration
	for _, est := range stageEstimates {
		total += est
	}

	for i, state := range entity.PipelineStates() {
		stage, _ := state.Stage()
		o.session.StageIndex = i
		o.emit(ctx, state, percentOf(elapsed, total))

		stageStart := time.Now()
		if err := o.step(ctx, state, stage, req); err != nil {
			metrics.ObserveStageDuration(string(stage), "fail", time.Since(stageStart))
			return o.fail(ctx, state, err, start)
		}
		metrics.ObserveStageDuration(string(stage), "ok", time.Since(stageStart))
		log.Info("stage finished",
			"stage", stage,
			"files", len(o.session.Artifacts),
			"tokens", o.session.TokensUsed,
			"duration", time.Since(stageStart),
		)
		elapsed += stageEstimates[stage]
	}

	if len(o.session.Artifacts) == 0 {
		return o.fail(ctx, entity.StateImproving, errors.New("no files were produced"), start)
	}

	passed, report := o.validator.ValidateProject(o.session)
	if !passed && o.failOnVal {
		err := fmt.Errorf("%w: %d errors", entity.ErrValidationFailed, len(report.Errors()))
		res := o.fail(ctx, entity.StateValidating, err, start)
		res.Validation = report
		return res
	}

	o.emit(ctx, entity.StateDone, 100)
	metrics.ObserveRunDuration(time.Since(start))
	log.Info("generation finished",
		"files", len(o.session.Artifacts),
		"tokens", o.session.TokensUsed,
		"valid", passed,
		"duration", time.Since(start),
	)

	files := make(map[string]string, len(o.session.Artifacts))
	for k, v := range o.session.Artifacts {
		files[k] = v
	}
	return entity.Result{
		Success:          true,
		Files:            files,
		SessionID:        o.session.ID,
		TotalTimeSeconds: time.Since(start).Seconds(),
		Errors:           o.session.Errors,
		Warnings:         o.session.Warnings,
		Validation:       report,
		TokensUsed:       o.session.TokensUsed,
	}
}

func (o *Orchestrator) step(ctx context.Context, state entity.State, stage entity.Stage, req entity.GenerationRequest) error {
	if state == entity.StateValidating {
		o.checks = o.validator.ValidateFiles(o.session.Artifacts)
	}

	text, err := o.composer.Compose(stage, o.promptData(stage, req))
	if err != nil {
		return err
	}

	out, err := o.invoker.Invoke(ctx, o.session, stage, text, o.budgets[stage])
	if err != nil {
		return err
	}

	switch stage.Intent() {
	case entity.IntentStructured:
		v, err := o.interpreter.Structured(stage, out)
		if err != nil {
			o.session.AddError(err.Error())
			return err
		}
		o.intents[stage] = v
	default:
		ex := o.interpreter.Artifacts(stage, out)
		if len(ex.Files) == 0 {
			o.session.AddWarning(fmt.Sprintf("%s produced no files", stage))
			o.logger.Warn("stage produced no files", "session_id", o.session.ID, "stage", stage, "rejected", ex.Rejected)
		}
		o.session.MergeArtifacts(ex.Files)
	}
	return nil
}

func (o *Orchestrator) promptData(stage entity.Stage, req entity.GenerationRequest) prompt.Data {
	d := prompt.Data{
		ProjectName:   req.ProjectName,
		Description:   req.Description,
		ProjectType:   req.ProjectType,
		Features:      o.session.Features.Enabled(),
		ExistingFiles: o.session.ArtifactPaths(),
	}

	var parts []string
	add := func(title string, v map[string]any) {
		if v == nil {
			return
		}
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return
		}
		parts = append(parts, title+":\n"+string(b))
	}

	switch stage {
	case entity.StageAnalyze:
	case entity.StagePlan:
		add("Analysis", o.intent(entity.StageAnalyze))
	case entity.StageValidate:
		parts = append(parts, "Automated checks:\n"+summarize(o.checks))
	case entity.StageImprove:
		parts = append(parts, "Automated checks:\n"+summarize(o.checks))
		add("Review", o.intent(entity.StageValidate))
	default:
		add("Analysis", o.intent(entity.StageAnalyze))
		add("Plan", o.intent(entity.StagePlan))
	}
	d.Context = strings.Join(parts, "\n\n")
	return d
}

func (o *Orchestrator) intent(stage entity.Stage) map[string]any {
	return o.intents[stage]
}

func summarize(r *entity.ValidationReport) string {
	if r == nil || len(r.Issues) == 0 {
		return "all automated checks passed"
	}
	lines := make([]string, 0, len(r.Issues))
	for _, i := range r.Issues {
		lines = append(lines, fmt.Sprintf("- %s %s", i.Severity, i.String()))
	}
	return strings.Join(lines, "\n")
}

func (o *Orchestrator) emit(ctx context.Context, state entity.State, percent int) {
	if percent < o.lastPercent {
		percent = o.lastPercent
	}
	o.state = state
	o.lastPercent = percent
	p := entity.Progress{
		RunID:   o.session.ID,
		Percent: percent,
		Message: state.Message(),
		State:   state,
		At:      time.Now(),
	}
	o.sink.Publish(ctx, p)
	o.logger.Debug("progress", "session_id", o.session.ID, "state", state, "percent", percent)
}

func (o *Orchestrator) fail(ctx context.Context, state entity.State, err error, start time.Time) entity.Result {
	serr := &entity.StageError{State: state, Err: err}
	o.logger.Error("generation failed", "session_id", o.session.ID, "state", state, "err", err)
	metrics.IncError("orchestrator", string(state))

	o.state = entity.StateFailed
	o.sink.Publish(ctx, entity.Progress{
		RunID:   o.session.ID,
		Percent: o.lastPercent,
		Message: fmt.Sprintf("%s: %v", entity.StateFailed.Message(), serr),
		State:   entity.StateFailed,
		At:      time.Now(),
	})

	return entity.Result{
		Success:          false,
		SessionID:        o.session.ID,
		TotalTimeSeconds: time.Since(start).Seconds(),
		Error:            serr.Error(),
		Errors:           o.session.Errors,
		Warnings:         o.session.Warnings,
		TokensUsed:       o.session.TokensUsed,
	}
}

// percentOf caps at 99 so that only the Done transition reports 100.
func percentOf(elapsed, total time.Duration) int {
	if total <= 0 {
		return 0
	}
	p := int(elapsed * 100 / total)
	if p > 99 {
		p = 99
	}
	return p
}

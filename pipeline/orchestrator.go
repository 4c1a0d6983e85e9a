package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/c360studio/semcoach/agent"
	"github.com/c360studio/semcoach/calculator"
	"github.com/c360studio/semcoach/llm"
	"github.com/c360studio/semcoach/training"
)

// RunReport is the outcome of one run, successful or not.
type RunReport struct {
	RunID string `json:"runId"`
	State State  `json:"state"`

	Plan    training.GeneratedPlan `json:"plan"`
	Quality training.QualityCheck  `json:"quality"`
	Targets calculator.Targets     `json:"targets"`

	Analysis     training.ContextAnalysis `json:"analysis"`
	Structure    training.WeekStructure   `json:"structure"`
	Degradations []Degradation            `json:"degradations,omitempty"`

	// Fallback is set when the plan came from the single-shot generator.
	Fallback bool `json:"fallback"`

	Stages   []StageReport `json:"stages"`
	Duration time.Duration `json:"duration"`
}

// run carries the outputs of a run between stages.
type run struct {
	id      string
	req     training.GenerationRequest
	targets calculator.Targets
	paces   calculator.Paces

	analysis    training.ContextAnalysis
	structure   training.WeekStructure
	sessions    []training.SessionDesign
	allocations []training.VolumeAllocation
	draft       training.GeneratedPlan
	quality     training.QualityCheck
	plan        training.GeneratedPlan
	degraded    []Degradation

	done   map[string]bool
	report *StageReport
}

// Orchestrator sequences the five stage agents and assembles the plan.
// It is immutable after construction and safe for concurrent runs.
type Orchestrator struct {
	analyzer  *agent.ContextAnalyzer
	planner   *agent.WeekStructurePlanner
	composer  *agent.SessionComposer
	allocator *agent.VolumeAllocator
	validator *agent.QualityValidator

	stages  []Stage
	logger  *slog.Logger
	metrics *Metrics
}

// NewOrchestrator creates the stage agents over gateway.
func NewOrchestrator(gateway llm.Gateway, opts ...Option) *Orchestrator {
	return newOrchestrator(gateway, buildSettings(opts))
}

func newOrchestrator(gateway llm.Gateway, s settings) *Orchestrator {
	agentOpts := s.agentOptions()
	o := &Orchestrator{
		analyzer:  agent.NewContextAnalyzer(gateway, agentOpts...),
		planner:   agent.NewWeekStructurePlanner(gateway, agentOpts...),
		composer:  agent.NewSessionComposer(gateway, s.maxDescLen, agentOpts...),
		allocator: agent.NewVolumeAllocator(gateway, agentOpts...),
		validator: agent.NewQualityValidator(gateway, agentOpts...),
		logger:    s.logger,
		metrics:   s.metrics,
	}
	o.stages = o.defaultStages()
	return o
}

// Stages returns the stage list in execution order.
func (o *Orchestrator) Stages() []Stage {
	return append([]Stage(nil), o.stages...)
}

func (o *Orchestrator) defaultStages() []Stage {
	return []Stage{
		{
			Name:    StageContextAnalyzer,
			Reaches: StateContextAnalyzed,
			run:     o.analyze,
		},
		{
			Name:      StageStructurePlanner,
			DependsOn: []string{StageContextAnalyzer},
			Reaches:   StateStructurePlanned,
			run:       o.planStructure,
		},
		{
			Name:      StageSessionComposer,
			DependsOn: []string{StageContextAnalyzer, StageStructurePlanner},
			Reaches:   StateSessionsDesigned,
			run:       o.composeSessions,
		},
		{
			Name:      StageVolumeAllocator,
			DependsOn: []string{StageStructurePlanner, StageSessionComposer},
			Reaches:   StateVolumesAllocated,
			run:       o.allocateVolumes,
		},
		{
			Name:      StageQualityValidator,
			DependsOn: []string{StageSessionComposer, StageVolumeAllocator},
			Reaches:   StateQualityChecked,
			run:       o.checkQuality,
		},
		{
			Name:      StageAssembly,
			DependsOn: []string{StageSessionComposer, StageVolumeAllocator, StageQualityValidator},
			Reaches:   StateAssembled,
			run:       o.assemble,
		},
	}
}

// Run executes every stage in order. On failure the returned report has
// State failed and the error is a *StageError naming the stage.
func (o *Orchestrator) Run(ctx context.Context, req training.GenerationRequest) (*RunReport, error) {
	report := &RunReport{RunID: uuid.NewString(), State: StateStart}
	start := time.Now()
	defer func() { report.Duration = time.Since(start) }()

	if err := req.Validate(); err != nil {
		report.State = StateFailed
		return report, fmt.Errorf("invalid request: %w", err)
	}

	req = req.Normalized()
	r := &run{
		id:      report.RunID,
		req:     req,
		targets: calculator.TargetsFor(req),
		paces:   calculator.DefaultPaces(req.VMA),
		done:    make(map[string]bool, len(o.stages)),
	}
	report.Targets = r.targets
	logger := o.logger.With("run_id", r.id)
	logger.Info("Plan generation started",
		"objective", req.Objective,
		"period", req.Period,
		"target_km", r.targets.Target)

	for _, stage := range o.stages {
		if err := o.runStage(ctx, stage, r, report, logger); err != nil {
			report.State = StateFailed
			o.fillReport(report, r)
			logger.Error("Plan generation failed",
				"stage", stage.Name,
				"elapsed", time.Since(start),
				"error", err)
			return report, err
		}
	}

	report.State = StateDone
	o.fillReport(report, r)
	logger.Info("Plan generation complete",
		"total_km", r.plan.TotalVolume(),
		"score", r.quality.Score,
		"elapsed", time.Since(start))
	return report, nil
}

func (o *Orchestrator) runStage(ctx context.Context, stage Stage, r *run, report *RunReport, logger *slog.Logger) error {
	for _, dep := range stage.DependsOn {
		if !r.done[dep] {
			return &StageError{Stage: stage.Name, Err: fmt.Errorf("dependency %s has no output", dep)}
		}
	}
	if err := ctx.Err(); err != nil {
		return &StageError{Stage: stage.Name, Err: err}
	}

	sr := StageReport{Name: stage.Name}
	r.report = &sr
	stageCtx := llm.WithRunContext(ctx, llm.RunContext{RunID: r.id, Stage: stage.Name})

	started := time.Now()
	err := stage.run(stageCtx, r)
	sr.Duration = time.Since(started)
	r.report = nil

	if err != nil {
		sr.State = StateFailed
		sr.Error = err.Error()
		report.Stages = append(report.Stages, sr)
		o.metrics.ObserveStage(stage.Name, OutcomeFailed, sr.Duration)
		return &StageError{Stage: stage.Name, Err: err}
	}

	r.done[stage.Name] = true
	sr.State = stage.Reaches
	report.State = stage.Reaches
	report.Stages = append(report.Stages, sr)
	o.metrics.ObserveStage(stage.Name, OutcomeSuccess, sr.Duration)
	logger.Info("Stage complete",
		"stage", stage.Name,
		"state", stage.Reaches,
		"attempts", sr.Attempts,
		"elapsed", sr.Duration)
	return nil
}

func (o *Orchestrator) fillReport(report *RunReport, r *run) {
	report.Analysis = r.analysis
	report.Structure = r.structure
	report.Quality = r.quality
	report.Plan = r.plan
	report.Degradations = r.degraded
}

// track copies agent bookkeeping into the current stage report and turns a
// failed result into an error.
func track[T any](r *run, res agent.Result[T]) (T, error) {
	if r.report != nil {
		r.report.Attempts = res.Attempts
		r.report.Model = res.Model
	}
	if !res.Success {
		err := res.Err
		if err == nil {
			err = errors.New(res.Error)
		}
		var zero T
		return zero, err
	}
	return res.Data, nil
}

func (o *Orchestrator) analyze(ctx context.Context, r *run) error {
	out, err := track(r, o.analyzer.Execute(ctx, agent.ContextInput{Request: r.req, Targets: r.targets}))
	if err != nil {
		return err
	}
	r.analysis = out
	return nil
}

func (o *Orchestrator) planStructure(ctx context.Context, r *run) error {
	out, err := track(r, o.planner.Execute(ctx, agent.StructureInput{
		Request:  r.req,
		Analysis: r.analysis,
		Targets:  r.targets,
	}))
	if err != nil {
		return err
	}
	r.structure = out
	return nil
}

func (o *Orchestrator) composeSessions(ctx context.Context, r *run) error {
	out, err := track(r, o.composer.Execute(ctx, agent.SessionInput{
		Request:   r.req,
		Analysis:  r.analysis,
		Structure: r.structure,
		Paces:     r.paces,
	}))
	if err != nil {
		return err
	}
	r.sessions = out
	return nil
}

func (o *Orchestrator) allocateVolumes(ctx context.Context, r *run) error {
	out, err := track(r, o.allocator.Execute(ctx, agent.AllocationInput{
		Request:   r.req,
		Structure: r.structure,
		Sessions:  r.sessions,
		Targets:   r.targets,
	}))
	if err != nil {
		return err
	}
	r.allocations = out
	return nil
}

// checkQuality validates a draft merged from sessions and allocations. The
// draft is not normalized beyond the merge so the validator sees what the
// stages produced.
func (o *Orchestrator) checkQuality(ctx context.Context, r *run) error {
	days, _ := MergeDays(r.sessions, r.allocations)
	r.draft = training.GeneratedPlan{Objective: string(r.req.Objective), Days: days}

	out, err := track(r, o.validator.Execute(ctx, agent.QualityInput{
		Request: r.req,
		Targets: r.targets,
		Plan:    r.draft,
	}))
	if err != nil {
		return err
	}
	r.quality = out
	return nil
}

func (o *Orchestrator) assemble(_ context.Context, r *run) error {
	logger := o.logger.With("run_id", r.id)
	r.plan, r.degraded = Assemble(string(r.req.Objective), r.sessions, r.allocations, &r.quality, logger)
	if err := r.plan.CheckDays(); err != nil {
		return err
	}
	if !r.targets.Contains(r.plan.TotalVolume()) {
		logger.Warn("Assembled plan outside the volume band",
			"total_km", r.plan.TotalVolume(),
			"min_km", r.targets.Min,
			"max_km", r.targets.Max)
	}
	return nil
}

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/c360studio/semcoach/agent"
	"github.com/c360studio/semcoach/calculator"
	"github.com/c360studio/semcoach/llm"
	"github.com/c360studio/semcoach/training"
)

// Generator runs the staged pipeline and falls back to the single-shot
// generator when any stage fails.
type Generator struct {
	orchestrator *Orchestrator
	fallback     *agent.FallbackGenerator
	logger       *slog.Logger
	metrics      *Metrics
}

// NewGenerator creates a generator over gateway. WithoutFallback disables
// the single-shot retry.
func NewGenerator(gateway llm.Gateway, opts ...Option) *Generator {
	s := buildSettings(opts)
	g := &Generator{
		orchestrator: newOrchestrator(gateway, s),
		logger:       s.logger,
		metrics:      s.metrics,
	}
	if !s.disableFallback {
		g.fallback = agent.NewFallbackGenerator(gateway, s.maxDescLen, s.fallbackOptions()...)
	}
	return g
}

// Orchestrator returns the staged runner.
func (g *Generator) Orchestrator() *Orchestrator {
	return g.orchestrator
}

// Generate produces a plan for req. The report is non-nil whenever the
// request was valid. When both paths fail the error is a *GenerationError
// matching ErrGenerationFailed.
func (g *Generator) Generate(ctx context.Context, req training.GenerationRequest) (*RunReport, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	report, err := g.orchestrator.Run(ctx, req)
	if err == nil {
		g.metrics.ObserveRun(OutcomeSuccess)
		return report, nil
	}

	var causes *multierror.Error
	causes = multierror.Append(causes, err)

	if g.fallback == nil || ctx.Err() != nil {
		g.metrics.ObserveRun(OutcomeFailed)
		return report, &GenerationError{Causes: causes}
	}

	logger := g.logger.With("run_id", report.RunID)
	logger.Warn("Staged generation failed, using fallback generator", "error", err)

	req = req.Normalized()
	targets := calculator.TargetsFor(req)
	fctx := llm.WithRunContext(ctx, llm.RunContext{RunID: report.RunID, Stage: StageFallback})

	started := time.Now()
	res := g.fallback.Execute(fctx, agent.FallbackInput{Request: req, Targets: targets})
	sr := StageReport{
		Name:     StageFallback,
		Attempts: res.Attempts,
		Model:    res.Model,
		Duration: time.Since(started),
	}

	if !res.Success {
		sr.State = StateFailed
		sr.Error = res.Error
		report.Stages = append(report.Stages, sr)
		g.metrics.ObserveStage(StageFallback, OutcomeFailed, sr.Duration)
		g.metrics.ObserveFallback(OutcomeFailed)
		g.metrics.ObserveRun(OutcomeFailed)

		causes = multierror.Append(causes, &StageError{Stage: StageFallback, Err: res.Err})
		genErr := &GenerationError{Causes: causes}
		logger.Error("Plan generation failed", "error", genErr.Detail())
		return report, genErr
	}

	sr.State = StateDone
	report.Stages = append(report.Stages, sr)
	g.metrics.ObserveStage(StageFallback, OutcomeSuccess, sr.Duration)
	g.metrics.ObserveFallback(OutcomeSuccess)
	g.metrics.ObserveRun(OutcomeFallback)

	report.Plan = res.Data
	report.Quality = agent.ReviewPlan(res.Data, targets).Apply(training.QualityCheck{IsValid: true, Score: 100})
	report.Targets = targets
	report.Fallback = true
	report.State = StateDone
	logger.Info("Fallback plan generated",
		"total_km", res.Data.TotalVolume(),
		"attempts", res.Attempts)
	return report, nil
}

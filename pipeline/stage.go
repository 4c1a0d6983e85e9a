// Package pipeline runs the staged plan generation: context analysis, week
// structure, session design, volume allocation and quality check, then
// assembles the final seven-day plan. Generator adds the single-shot
// fallback on top of the staged run.
//
// State flow:
//
//	start -> context_analyzed -> structure_planned -> sessions_designed ->
//	volumes_allocated -> quality_checked -> assembled -> done
//	                                 (any stage error) -> failed
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/c360studio/semcoach/agent"
)

// State is the position of a run in the stage sequence.
type State string

const (
	StateStart            State = "start"
	StateContextAnalyzed  State = "context_analyzed"
	StateStructurePlanned State = "structure_planned"
	StateSessionsDesigned State = "sessions_designed"
	StateVolumesAllocated State = "volumes_allocated"
	StateQualityChecked   State = "quality_checked"
	StateAssembled        State = "assembled"

	// StateDone is terminal: the plan is complete.
	StateDone State = "done"

	// StateFailed is terminal: a stage failed and the run was aborted.
	StateFailed State = "failed"
)

// Stage names. The five generative stages are named after their agent.
const (
	StageContextAnalyzer  = agent.RoleContextAnalyzer
	StageStructurePlanner = agent.RoleStructurePlanner
	StageSessionComposer  = agent.RoleSessionComposer
	StageVolumeAllocator  = agent.RoleVolumeAllocator
	StageQualityValidator = agent.RoleQualityValidator
	StageAssembly         = "assembly"
	StageFallback         = agent.RoleFallback
)

// Stage is one step of a run. A stage runs only after every stage in
// DependsOn has produced output.
type Stage struct {
	Name      string
	DependsOn []string

	// Reaches is the state the run enters once the stage succeeds.
	Reaches State

	run func(ctx context.Context, r *run) error
}

// StageReport records how one stage went.
type StageReport struct {
	Name     string        `json:"name"`
	State    State         `json:"state"`
	Attempts int           `json:"attempts,omitempty"`
	Model    string        `json:"model,omitempty"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// StageError aborts a run.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// ErrGenerationFailed is reported when both the staged run and the
// fallback generator failed. Its message is safe to show to end users.
var ErrGenerationFailed = errors.New("plan generation failed: configure a generation backend or retry; a plan can also be written manually")

// GenerationError carries the causes behind ErrGenerationFailed. Its
// message is the generic one; errors.Is and errors.As reach the causes.
type GenerationError struct {
	Causes *multierror.Error
}

func (e *GenerationError) Error() string {
	return ErrGenerationFailed.Error()
}

func (e *GenerationError) Unwrap() []error {
	errs := []error{ErrGenerationFailed}
	if e.Causes != nil {
		errs = append(errs, e.Causes.Errors...)
	}
	return errs
}

// Detail returns the generic message followed by every cause.
func (e *GenerationError) Detail() string {
	if e.Causes == nil || len(e.Causes.Errors) == 0 {
		return e.Error()
	}
	return e.Error() + ": " + e.Causes.Error()
}

package plangenerator

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/c360studio/semstreams/message"

	"github.com/c360studio/semcoach/calculator"
	"github.com/c360studio/semcoach/pipeline"
	"github.com/c360studio/semcoach/training"
)

// Result statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// PlanTriggerType is the message type for plan generation triggers.
var PlanTriggerType = message.Type{Domain: "coach", Category: "plan-trigger", Version: "v1"}

// PlanResultType is the message type for plan generation results.
var PlanResultType = message.Type{Domain: "coach", Category: "plan-result", Version: "v1"}

// PlanTrigger asks for one weekly plan.
type PlanTrigger struct {
	// RequestID correlates the result. Required.
	RequestID string `json:"request_id"`

	// CallbackSubject, when set, receives the result instead of the
	// default result subject.
	CallbackSubject string `json:"callback_subject,omitempty"`

	// TraceID is carried into the result for cross-system tracing.
	TraceID string `json:"trace_id,omitempty"`

	// AthleteID, when set, archives the plan and fills the request's
	// historical plans from the archive if it carries none.
	AthleteID string `json:"athlete_id,omitempty"`

	Request training.GenerationRequest `json:"request"`
}

// Schema implements message.Payload.
func (t *PlanTrigger) Schema() message.Type {
	return PlanTriggerType
}

// Validate implements message.Payload.
func (t *PlanTrigger) Validate() error {
	if t.RequestID == "" {
		return errors.New("request_id is required")
	}
	if err := t.Request.Validate(); err != nil {
		return fmt.Errorf("request: %w", err)
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t *PlanTrigger) MarshalJSON() ([]byte, error) {
	type Alias PlanTrigger
	return json.Marshal((*Alias)(t))
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *PlanTrigger) UnmarshalJSON(data []byte) error {
	type Alias PlanTrigger
	return json.Unmarshal(data, (*Alias)(t))
}

// PlanResult is published once per trigger.
type PlanResult struct {
	RequestID string `json:"request_id"`
	RunID     string `json:"run_id,omitempty"`
	TraceID   string `json:"trace_id,omitempty"`
	Status    string `json:"status"`

	Plan     *training.GeneratedPlan `json:"plan,omitempty"`
	Quality  *training.QualityCheck  `json:"quality,omitempty"`
	Targets  *calculator.Targets     `json:"targets,omitempty"`
	Fallback bool                    `json:"fallback,omitempty"`

	// PlanID is the archive ID of the plan, when archived.
	PlanID string `json:"plan_id,omitempty"`

	// Error is the user-facing failure message.
	Error string `json:"error,omitempty"`

	DurationMs int64 `json:"duration_ms"`
}

// Schema implements message.Payload.
func (r *PlanResult) Schema() message.Type {
	return PlanResultType
}

// Validate implements message.Payload.
func (r *PlanResult) Validate() error {
	if r.RequestID == "" {
		return errors.New("request_id is required")
	}
	if r.Status != StatusCompleted && r.Status != StatusFailed {
		return fmt.Errorf("invalid status %q", r.Status)
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (r *PlanResult) MarshalJSON() ([]byte, error) {
	type Alias PlanResult
	return json.Marshal((*Alias)(r))
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *PlanResult) UnmarshalJSON(data []byte) error {
	type Alias PlanResult
	return json.Unmarshal(data, (*Alias)(r))
}

// newResult builds the result for a finished generation.
func newResult(trigger *PlanTrigger, report *pipeline.RunReport, err error, elapsed time.Duration) *PlanResult {
	res := &PlanResult{
		RequestID:  trigger.RequestID,
		TraceID:    trigger.TraceID,
		Status:     StatusCompleted,
		DurationMs: elapsed.Milliseconds(),
	}
	if report != nil {
		res.RunID = report.RunID
	}
	if err != nil {
		res.Status = StatusFailed
		res.Error = err.Error()
		return res
	}
	res.Plan = &report.Plan
	res.Quality = &report.Quality
	res.Targets = &report.Targets
	res.Fallback = report.Fallback
	return res
}

// envelope is the part of a semstreams BaseMessage needed to tell a typed
// message from a bare payload.
type envelope struct {
	Type    message.Type    `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ParseTrigger reads a trigger published either as a typed BaseMessage, as
// an untyped {"payload": ...} wrapper or as bare JSON.
func ParseTrigger(data []byte) (*PlanTrigger, error) {
	return decodeTrigger(defaultDecoder, data)
}

func decodeTrigger(dec *message.Decoder, data []byte) (*PlanTrigger, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal trigger: %w", err)
	}
	if env.Type.Domain != "" {
		msg, err := dec.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("decode trigger message: %w", err)
		}
		trigger, ok := msg.Payload().(*PlanTrigger)
		if !ok {
			return nil, fmt.Errorf("unexpected message type %s", msg.Type())
		}
		if err := trigger.Validate(); err != nil {
			return nil, fmt.Errorf("invalid trigger: %w", err)
		}
		return trigger, nil
	}

	body := data
	if len(env.Payload) > 0 && string(env.Payload) != "null" {
		body = env.Payload
	}

	var trigger PlanTrigger
	if err := json.Unmarshal(body, &trigger); err != nil {
		return nil, fmt.Errorf("unmarshal trigger payload: %w", err)
	}
	if err := trigger.Validate(); err != nil {
		return nil, fmt.Errorf("invalid trigger: %w", err)
	}
	return &trigger, nil
}

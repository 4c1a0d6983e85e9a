package agent

import (
	"context"
	"log/slog"
	"time"

	"github.com/c360studio/semcoach/agent/prompts"
	"github.com/c360studio/semcoach/calculator"
	"github.com/c360studio/semcoach/llm"
	"github.com/c360studio/semcoach/training"
)

const (
	// DefaultFallbackBackoff is the backoff unit of the single-shot generator.
	DefaultFallbackBackoff = 2 * time.Second

	// volumeWarnRatio is the relative gap to the target that is logged.
	volumeWarnRatio = 0.2
)

// FallbackInput is the input of the single-shot generator.
type FallbackInput struct {
	Request training.GenerationRequest
	Targets calculator.Targets
}

// FallbackGenerator produces a whole plan in one call when the staged
// pipeline fails.
type FallbackGenerator struct {
	*Agent[FallbackInput, training.GeneratedPlan]
	logger *slog.Logger
}

var fallbackSchema = compileSchema(`{
  "type": "object",
  "required": ["days"],
  "properties": {
    "days": {
      "type": "array",
      "items": {"type": "object"}
    }
  }
}`)

// NewFallbackGenerator creates the single-shot generator. Its backoff unit
// defaults to DefaultFallbackBackoff; opts may override it.
func NewFallbackGenerator(gateway llm.Gateway, maxLen int, opts ...Option) *FallbackGenerator {
	if maxLen <= 0 {
		maxLen = DefaultMaxDescriptionLen
	}
	opts = append([]Option{WithBackoff(DefaultFallbackBackoff)}, opts...)
	a := New(gateway, Spec[FallbackInput, training.GeneratedPlan]{
		Name:        RoleFallback,
		Temperature: 0.3,
		MaxTokens:   6144,
		System:      prompts.FallbackSystemPrompt(maxLen),
		Prompt: func(in FallbackInput) (string, error) {
			return prompts.FallbackUserPrompt(in.Request, in.Targets), nil
		},
		Parse: func(raw string) (training.GeneratedPlan, error) {
			return ParseGeneratedPlan(raw, maxLen)
		},
		Keys: []string{"objective", "days"},
	}, opts...)
	return &FallbackGenerator{Agent: a, logger: a.logger}
}

// Execute generates the plan and logs a warning when its volume is more
// than 20% away from the target. The volume check never rejects the plan.
func (f *FallbackGenerator) Execute(ctx context.Context, in FallbackInput) Result[training.GeneratedPlan] {
	res := f.Agent.Execute(ctx, in)
	if !res.Success {
		return res
	}
	if res.Data.Objective == "" {
		res.Data.Objective = string(in.Request.Normalized().Objective)
	}
	if total := res.Data.TotalVolume(); in.Targets.Deviation(total) > volumeWarnRatio {
		f.logger.Warn("Fallback plan volume far from target",
			"total_km", total,
			"target_km", in.Targets.Target,
			"deviation", training.Round(in.Targets.Deviation(total), 2))
	}
	return res
}

// ParseGeneratedPlan reads a complete plan reply. It requires exactly one
// entry per day 0-6 and coerces every figure.
func ParseGeneratedPlan(raw string, maxLen int) (training.GeneratedPlan, error) {
	m, err := decodeObject(raw, fallbackSchema, "days")
	if err != nil {
		return training.GeneratedPlan{}, err
	}

	items := objList(m, "days")
	days := make([]training.GeneratedDay, 0, len(items))
	for _, item := range items {
		desc := Terse(str(item, "sessionDescription", "shortDescription", "description"), maxLen)
		sessionType := str(item, "sessionType", "type")
		if sessionType == "" {
			sessionType = calculator.DetectSessionType(desc)
		} else {
			sessionType = NormalizeDayType(sessionType, 1)
		}
		day := training.GeneratedDay{
			Day:                dayIndex(item, "day", "dayOfWeek"),
			SessionDescription: desc,
			SessionType:        sessionType,
			TargetTimes:        str(item, "targetTimes"),
			Notes:              str(item, "notes"),
		}
		day.SetVolumes(training.VolumeAllocation{
			Zone1Km: num(item, "zone1Km"),
			Zone2Km: num(item, "zone2Km"),
			Zone3Km: num(item, "zone3Km"),
			SpeedKm: num(item, "speedKm"),
			TotalKm: num(item, "totalKm"),
		})
		if day.SessionDescription == "" && day.TotalKm == 0 {
			day.SessionDescription = training.RestDay(day.Day).SessionDescription
			day.SessionType = training.SessionTypeRest
		}
		days = append(days, day)
	}
	if err := checkDays(len(days), func(i int) int { return days[i].Day }); err != nil {
		return training.GeneratedPlan{}, err
	}

	plan := training.GeneratedPlan{Objective: str(m, "objective"), Days: days}
	plan.Normalize()
	return plan, nil
}

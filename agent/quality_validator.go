package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cast"

	"github.com/c360studio/semcoach/agent/prompts"
	"github.com/c360studio/semcoach/calculator"
	"github.com/c360studio/semcoach/llm"
	"github.com/c360studio/semcoach/training"
)

// QualityInput is the input of the quality validator.
type QualityInput struct {
	Request training.GenerationRequest
	Targets calculator.Targets
	Plan    training.GeneratedPlan
}

// QualityValidator scores an assembled plan. The model's verdict is merged
// with the deterministic ReviewPlan findings.
type QualityValidator struct {
	*Agent[QualityInput, training.QualityCheck]
}

var qualitySchema = compileSchema(`{
  "type": "object",
  "required": ["score"],
  "properties": {
    "issues": {"type": "array"},
    "suggestions": {"type": "array"},
    "perDayAdjustments": {"type": "array"}
  }
}`)

// NewQualityValidator creates the fifth-stage agent.
func NewQualityValidator(gateway llm.Gateway, opts ...Option) *QualityValidator {
	return &QualityValidator{New(gateway, Spec[QualityInput, training.QualityCheck]{
		Name:        RoleQualityValidator,
		Temperature: 0.1,
		System:      prompts.QualityValidatorSystemPrompt(),
		Prompt: func(in QualityInput) (string, error) {
			if len(in.Plan.Days) == 0 {
				return "", errors.New("plan has no days")
			}
			return prompts.QualityValidatorUserPrompt(in.Request, in.Targets, in.Plan), nil
		},
		Parse:            ParseQualityCheck,
		CorrectionPrompt: true,
		Keys:             []string{"isValid", "score", "issues", "suggestions", "perDayAdjustments"},
	}, opts...)}
}

// Execute runs the validator and folds in the deterministic review.
func (q *QualityValidator) Execute(ctx context.Context, in QualityInput) Result[training.QualityCheck] {
	res := q.Agent.Execute(ctx, in)
	if res.Success {
		res.Data = ReviewPlan(in.Plan, in.Targets).Apply(res.Data)
	}
	return res
}

// ParseQualityCheck reads a quality verdict. The score is clamped to 0-100
// and adjustments for unknown days are dropped.
func ParseQualityCheck(raw string) (training.QualityCheck, error) {
	m, err := decodeObject(raw, qualitySchema, "")
	if err != nil {
		return training.QualityCheck{}, err
	}

	valid := true
	if v, ok := m["isValid"]; ok {
		valid = cast.ToBool(v)
	}

	check := training.QualityCheck{
		IsValid:     valid,
		Score:       min(max(training.Int(m["score"]), 0), 100),
		Issues:      strList(m, "issues"),
		Suggestions: strList(m, "suggestions"),
		Adjustments: []training.DayAdjustment{},
	}

	for _, item := range objList(m, "perDayAdjustments") {
		day := dayIndex(item, "day", "dayOfWeek")
		if day < 0 || day >= training.DaysPerWeek {
			continue
		}
		check.Adjustments = append(check.Adjustments, training.DayAdjustment{
			Day:     day,
			Reason:  str(item, "reason", "note"),
			Zone1Km: optNum(item, "zone1Km"),
			Zone2Km: optNum(item, "zone2Km"),
			Zone3Km: optNum(item, "zone3Km"),
			SpeedKm: optNum(item, "speedKm"),
			TotalKm: optNum(item, "totalKm"),
		})
	}
	return check, nil
}

// Review penalties, in score points.
const (
	penaltyVolume       = 15
	penaltyNoRest       = 15
	penaltyHardStreak   = 10
	penaltyInconsistent = 10

	// maxHardStreak is the longest accepted run of high-intensity days.
	maxHardStreak = 2
)

// Review holds the deterministic findings on a plan.
type Review struct {
	Issues      []string
	Suggestions []string
	Penalty     int
}

// Err returns the findings as one aggregated error, or nil.
func (r Review) Err() error {
	var result *multierror.Error
	for _, issue := range r.Issues {
		result = multierror.Append(result, errors.New(issue))
	}
	return result.ErrorOrNil()
}

// Apply merges the findings into a verdict. The rules are advisory: they
// lower the score and add issues and suggestions but never flip IsValid.
func (r Review) Apply(check training.QualityCheck) training.QualityCheck {
	check.Issues = append(check.Issues, r.Issues...)
	check.Suggestions = append(check.Suggestions, r.Suggestions...)
	check.Score = max(check.Score-r.Penalty, 0)
	return check
}

// ReviewPlan checks a plan against the deterministic rules: weekly volume
// inside the target band, at least one rest day, no more than two
// high-intensity days in a row and consistent zone totals.
func ReviewPlan(plan training.GeneratedPlan, targets calculator.Targets) Review {
	var r Review

	total := plan.TotalVolume()
	if targets.Target > 0 && !targets.Contains(total) {
		r.Issues = append(r.Issues, fmt.Sprintf("weekly volume %.1f km outside the %.1f-%.1f km range", total, targets.Min, targets.Max))
		if total > targets.Max {
			r.Suggestions = append(r.Suggestions, fmt.Sprintf("reduce the week by about %.1f km", total-targets.Target))
		} else {
			r.Suggestions = append(r.Suggestions, fmt.Sprintf("add about %.1f km of easy running", targets.Target-total))
		}
		r.Penalty += penaltyVolume
	}

	if plan.RestDays() < 1 {
		r.Issues = append(r.Issues, "no rest day in the week")
		r.Suggestions = append(r.Suggestions, "turn the easiest day into a rest day")
		r.Penalty += penaltyNoRest
	}

	streak, longest, streakEnd := 0, 0, -1
	for _, d := range plan.Days {
		if IsHighIntensity(d) {
			streak++
			if streak > longest {
				longest, streakEnd = streak, d.Day
			}
			continue
		}
		streak = 0
	}
	if longest > maxHardStreak {
		r.Issues = append(r.Issues, fmt.Sprintf("%d consecutive high-intensity days ending on day %d", longest, streakEnd))
		r.Suggestions = append(r.Suggestions, "insert an easy day between quality sessions")
		r.Penalty += penaltyHardStreak
	}

	for _, d := range plan.Days {
		if !d.Volumes().Consistent() {
			r.Issues = append(r.Issues, fmt.Sprintf("day %d total %.2f km does not match its zones", d.Day, d.TotalKm))
			r.Penalty += penaltyInconsistent
		}
	}

	return r
}

// IsHighIntensity reports whether a day is a quality session.
func IsHighIntensity(d training.GeneratedDay) bool {
	if calculator.IsQuality(d.SessionType) {
		return true
	}
	if d.SessionType == "" || d.SessionType == training.SessionTypeRest {
		return false
	}
	return d.Zone3Km+d.SpeedKm > 0
}

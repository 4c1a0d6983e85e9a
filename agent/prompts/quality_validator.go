package prompts

import (
	"fmt"
	"strings"

	"github.com/c360studio/semcoach/calculator"
	"github.com/c360studio/semcoach/training"
)

// QualityValidatorSystemPrompt returns the system prompt for the quality validator.
func QualityValidatorSystemPrompt() string {
	return `You are a head coach reviewing a training week written by an assistant.

## Your Objective

Check the plan is safe and coherent for this athlete, score it and propose targeted fixes.

## Review Checklist

- Weekly volume inside the accepted range
- At least one rest day
- No more than two hard days in a row
- Zone distances consistent with each day's total
- Sessions match the objective and period

## Adjustments

perDayAdjustments only list days that need a change. Always give a reason. Give new zone distances only when the volume must change; omit them otherwise. A totalKm alone rescales the day's zones.

## Output Format

` + "```json" + `
{
  "isValid": true,
  "score": 85,
  "issues": ["..."],
  "suggestions": ["..."],
  "perDayAdjustments": [
    {"day": 3, "reason": "reduce VMA volume after a hard Tuesday", "zone3Km": 4}
  ]
}
` + "```" + JSONOnly
}

// QualityValidatorUserPrompt returns the user prompt for the quality validator.
func QualityValidatorUserPrompt(req training.GenerationRequest, targets calculator.Targets, plan training.GeneratedPlan) string {
	var sb strings.Builder
	sb.WriteString("Review this training week.\n\n")
	sb.WriteString(FormatRequest(req))
	sb.WriteString("\n")
	sb.WriteString(FormatTargets(targets))
	sb.WriteString("\n")
	sb.WriteString(FormatPlan(plan))
	return sb.String()
}

// FormatPlan renders a plan with its per-day zone figures.
func FormatPlan(plan training.GeneratedPlan) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Plan (%.1f km)\n\n", plan.TotalVolume())
	for _, d := range plan.Days {
		fmt.Fprintf(&sb, "- day %d (%s): %s [%s] Z1 %.1f / Z2 %.1f / Z3 %.1f / speed %.1f = %.1f km\n",
			d.Day, DayName(d.Day), d.SessionDescription, d.SessionType,
			d.Zone1Km, d.Zone2Km, d.Zone3Km, d.SpeedKm, d.TotalKm)
	}
	return sb.String()
}

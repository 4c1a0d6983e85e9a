package prompts

import (
	"fmt"
	"strings"

	"github.com/c360studio/semcoach/calculator"
	"github.com/c360studio/semcoach/training"
)

// StructurePlannerSystemPrompt returns the system prompt for the week structure planner.
func StructurePlannerSystemPrompt() string {
	return `You are a running coach laying out the structure of a training week.

## Your Objective

Decide, for each of the 7 days, what kind of day it is, how hard it is and roughly how far the athlete runs.

## Rules

- Exactly 7 days, dayOfWeek 0 (Monday) to 6 (Sunday), each once.
- At least one rest day (dayType "rest", estimatedVolume 0).
- Never three hard days in a row.
- The sum of estimatedVolume must stay inside the accepted weekly range.
- dayType is one of: rest, endurance, threshold, vma, interval, speed, strength, long_run, competition.
- intensity is one of: rest, easy, moderate, hard.

## Output Format

` + "```json" + `
{
  "days": [
    {"dayOfWeek": 0, "dayType": "rest", "intensity": "rest", "estimatedVolume": 0, "notes": ""},
    {"dayOfWeek": 1, "dayType": "endurance", "intensity": "easy", "estimatedVolume": 10}
  ],
  "totalVolume": 50,
  "weeklyObjective": "short phrase",
  "zoneMix": {"z1": 80, "z2": 15, "z3": 5, "speed": 0}
}
` + "```" + JSONOnly
}

// StructurePlannerUserPrompt returns the user prompt for the structure planner.
func StructurePlannerUserPrompt(req training.GenerationRequest, analysis training.ContextAnalysis, targets calculator.Targets) string {
	var sb strings.Builder
	sb.WriteString("Plan the structure of the coming week.\n\n")
	sb.WriteString(FormatRequest(req))
	sb.WriteString("\n")
	sb.WriteString(FormatTargets(targets))
	sb.WriteString("\n")
	sb.WriteString(FormatAnalysis(analysis))
	return sb.String()
}

// FormatAnalysis renders the context analysis for downstream prompts.
func FormatAnalysis(a training.ContextAnalysis) string {
	p := a.AthleteProfile
	w := a.WeekRecommendation

	var sb strings.Builder
	sb.WriteString("## Analysis\n\n")
	fmt.Fprintf(&sb, "- Level: %s, form: %s, fatigue risk: %s\n", p.Level, p.CurrentForm, p.FatigueRisk)
	fmt.Fprintf(&sb, "- Week type: %s, volume x%.2f, intensity %s\n", w.WeekType, w.VolumeMultiplier, w.IntensityLevel)
	if w.KeyFocus != "" {
		fmt.Fprintf(&sb, "- Key focus: %s\n", w.KeyFocus)
	}
	z := w.ZoneDistribution
	fmt.Fprintf(&sb, "- Recommended zones: Z1 %.0f%%, Z2 %.0f%%, Z3 %.0f%%, speed %.0f%%\n", z.Z1, z.Z2, z.Z3, z.Speed)
	for _, insight := range a.HistoricalInsights {
		fmt.Fprintf(&sb, "- Insight: %s\n", insight)
	}
	return sb.String()
}

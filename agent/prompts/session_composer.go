package prompts

import (
	"fmt"
	"strings"

	"github.com/c360studio/semcoach/calculator"
	"github.com/c360studio/semcoach/training"
)

// SessionComposerSystemPrompt returns the system prompt for the session composer.
// maxLen is the longest accepted description, in characters.
func SessionComposerSystemPrompt(maxLen int) string {
	return fmt.Sprintf(`You are a running coach writing the sessions of a training week.

## Your Objective

Write one session per day following the week structure. Descriptions are what the coach writes on a whiteboard.

%s

## Rules

- Exactly 7 sessions, day 0 (Monday) to 6 (Sunday), each once.
- shortDescription is at most %d characters, on one line, no explanations.
- Rest days are "Repos" with sessionType "rest".
- targetZonePercentages sum to 100 for training days.
- targetTimes gives paces or times for the work blocks when relevant, e.g. "1000m en 3:50".
- rpeTarget is the expected effort from 1 (very easy) to 10 (maximal).

## Output Format

`+"```json"+`
{
  "sessions": [
    {"day": 0, "shortDescription": "Repos", "sessionType": "rest", "targetZonePercentages": {"z1": 0, "z2": 0, "z3": 0, "speed": 0}, "rpeTarget": 1},
    {"day": 1, "shortDescription": "VMA 6x1000m r=1'30", "sessionType": "vma", "targetZonePercentages": {"z1": 55, "z2": 0, "z3": 45, "speed": 0}, "targetTimes": "1000m en 3:50", "rpeTarget": 8}
  ]
}
`+"```"+JSONOnly, SessionVocabulary, maxLen)
}

// SessionComposerUserPrompt returns the user prompt for the session composer.
func SessionComposerUserPrompt(req training.GenerationRequest, analysis training.ContextAnalysis, structure training.WeekStructure, paces calculator.Paces) string {
	var sb strings.Builder
	sb.WriteString("Write the sessions for this week.\n\n")
	sb.WriteString(FormatRequest(req))
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "## Paces\n\n%s\n\n", paces.Describe())
	if focus := analysis.WeekRecommendation.KeyFocus; focus != "" {
		fmt.Fprintf(&sb, "Key focus of the week: %s\n\n", focus)
	}
	sb.WriteString(FormatStructure(structure))
	return sb.String()
}

// FormatStructure renders the week structure one line per day.
func FormatStructure(w training.WeekStructure) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Week Structure (%.1f km", w.TotalVolume)
	if w.WeeklyObjective != "" {
		fmt.Fprintf(&sb, ", %s", w.WeeklyObjective)
	}
	sb.WriteString(")\n\n")
	for _, d := range w.Days {
		fmt.Fprintf(&sb, "- day %d (%s): %s, %s, ~%.1f km", d.DayOfWeek, DayName(d.DayOfWeek), d.DayType, d.Intensity, d.EstimatedVolume)
		if d.Notes != "" {
			fmt.Fprintf(&sb, " (%s)", d.Notes)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

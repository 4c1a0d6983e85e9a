// Package prompts holds the system and user prompts for the plan-generation
// agents. Every prompt asks for a single JSON object so the response can go
// through the shared sanitizer.
package prompts

import (
	"fmt"
	"strings"

	"github.com/c360studio/semcoach/calculator"
	"github.com/c360studio/semcoach/training"
)

// DayNames maps day indices to the coach-facing names. Day 0 is Monday.
var DayNames = [training.DaysPerWeek]string{
	"lundi", "mardi", "mercredi", "jeudi", "vendredi", "samedi", "dimanche",
}

// DayName returns the name for a day index, or "day N" when out of range.
func DayName(day int) string {
	if day < 0 || day >= len(DayNames) {
		return fmt.Sprintf("day %d", day)
	}
	return DayNames[day]
}

// JSONOnly is appended to every system prompt.
const JSONOnly = `
## Output Rules

- Respond with a single JSON object and nothing else.
- No markdown, no comments, no trailing commas.
- Numbers are plain JSON numbers (no units, no quotes).
`

// SessionVocabulary describes the terse notation used for session descriptions.
const SessionVocabulary = `Session descriptions use the coach's terse notation, never full sentences:
- "EF 10km" or "EF 45min" (endurance)
- "Seuil 2x15min" or "Tempo 8km" (threshold)
- "VMA 6x1000m r=1'30" (VMA repetitions)
- "Fractionné 10x400m" (intervals)
- "Lignes droites 8x80m" (speed)
- "Renfo" (strength)
- "Course 10km" (competition)
- "Repos" (rest)`

// FormatRequest renders the athlete figures and coach inputs.
func FormatRequest(req training.GenerationRequest) string {
	req = req.Normalized()
	s := req.AthleteStats

	var sb strings.Builder
	sb.WriteString("## Athlete\n\n")
	fmt.Fprintf(&sb, "- CTL (chronic load): %.1f\n", s.CTL)
	fmt.Fprintf(&sb, "- ATL (acute load): %.1f\n", s.ATL)
	fmt.Fprintf(&sb, "- ACWR: %.2f\n", s.ACWR)
	fmt.Fprintf(&sb, "- Recent weekly volume: %.1f km\n", s.WeeklyVolume)
	if req.VMA > 0 {
		fmt.Fprintf(&sb, "- VMA: %.1f km/h\n", req.VMA)
	}
	sb.WriteString("\n## Week\n\n")
	fmt.Fprintf(&sb, "- Objective: %s\n", req.Objective.Label())
	fmt.Fprintf(&sb, "- Period: %s\n", req.Period.Label())
	if c := strings.TrimSpace(req.Constraints); c != "" {
		fmt.Fprintf(&sb, "- Coach constraints: %s\n", c)
	}
	return sb.String()
}

// FormatTargets renders the deterministic volume band and zone split.
func FormatTargets(t calculator.Targets) string {
	return fmt.Sprintf("## Volume Targets\n\n"+
		"- Weekly target: %.1f km (accepted range %.1f to %.1f km)\n"+
		"- Zone split: Z1 %.0f%%, Z2 %.0f%%, Z3 %.0f%%, speed %.0f%%\n",
		t.Target, t.Min, t.Max, t.Zones.Z1, t.Zones.Z2, t.Zones.Z3, t.Zones.Speed)
}

// maxHistoryPlans bounds how many previous weeks are rendered.
const maxHistoryPlans = 4

// FormatHistory renders the most recent historical plans, newest last.
func FormatHistory(plans []training.GeneratedPlan) string {
	if len(plans) == 0 {
		return ""
	}
	if len(plans) > maxHistoryPlans {
		plans = plans[len(plans)-maxHistoryPlans:]
	}

	var sb strings.Builder
	sb.WriteString("## Previous Weeks\n\n")
	for i, p := range plans {
		fmt.Fprintf(&sb, "### Week -%d (%s, %.1f km)\n", len(plans)-i, p.Objective, p.TotalVolume())
		for _, d := range p.Days {
			fmt.Fprintf(&sb, "- %s: %s\n", DayName(d.Day), d.SessionDescription)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

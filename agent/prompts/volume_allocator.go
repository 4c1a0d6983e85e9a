package prompts

import (
	"fmt"
	"strings"

	"github.com/c360studio/semcoach/calculator"
	"github.com/c360studio/semcoach/training"
)

// VolumeAllocatorSystemPrompt returns the system prompt for the volume allocator.
func VolumeAllocatorSystemPrompt() string {
	return `You are a running coach turning session descriptions into distances per intensity zone.

## Your Objective

For each day, split the distance of the session into zone 1 (easy), zone 2 (threshold), zone 3 (VMA) and speed.

## Rules

- Exactly 7 allocations, day 0 to 6, each once.
- totalKm equals zone1Km + zone2Km + zone3Km + speedKm.
- Quality sessions include about 3 km of warm-up and 2 km of cool-down in zone 1.
- Rest days are all zeros.
- The weekly sum of totalKm must stay inside the accepted range.
- Deterministic estimates are provided per day: stay close to them unless the weekly range requires otherwise.

## Output Format

` + "```json" + `
{
  "allocations": [
    {"day": 0, "zone1Km": 0, "zone2Km": 0, "zone3Km": 0, "speedKm": 0, "totalKm": 0},
    {"day": 1, "zone1Km": 5, "zone2Km": 0, "zone3Km": 6, "speedKm": 0, "totalKm": 11}
  ]
}
` + "```" + JSONOnly
}

// VolumeAllocatorUserPrompt returns the user prompt for the volume allocator.
// estimates holds the calculator's figure for each session, by position.
func VolumeAllocatorUserPrompt(structure training.WeekStructure, sessions []training.SessionDesign, estimates []training.VolumeAllocation, targets calculator.Targets) string {
	var sb strings.Builder
	sb.WriteString("Allocate the distances for this week.\n\n")
	sb.WriteString(FormatTargets(targets))
	sb.WriteString("\n## Sessions\n\n")
	for i, s := range sessions {
		fmt.Fprintf(&sb, "- day %d (%s): %s [%s]", s.Day, DayName(s.Day), s.ShortDescription, s.SessionType)
		if d, ok := structure.Day(s.Day); ok && d.EstimatedVolume > 0 {
			fmt.Fprintf(&sb, ", planned ~%.1f km", d.EstimatedVolume)
		}
		if i < len(estimates) {
			e := estimates[i]
			fmt.Fprintf(&sb, ", estimate Z1 %.1f / Z2 %.1f / Z3 %.1f / speed %.1f = %.1f km",
				e.Zone1Km, e.Zone2Km, e.Zone3Km, e.SpeedKm, e.TotalKm)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

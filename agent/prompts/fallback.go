package prompts

import (
	"fmt"
	"strings"

	"github.com/c360studio/semcoach/calculator"
	"github.com/c360studio/semcoach/training"
)

// FallbackSystemPrompt returns the system prompt for single-shot plan generation.
func FallbackSystemPrompt(maxLen int) string {
	return fmt.Sprintf(`You are a running coach writing a complete training week in one go.

%s

## Rules

- Exactly 7 days, day 0 (Monday) to 6 (Sunday), each once.
- At least one rest day.
- sessionDescription is at most %d characters.
- totalKm equals zone1Km + zone2Km + zone3Km + speedKm.
- The weekly sum of totalKm stays close to the weekly target.

## Output Format

`+"```json"+`
{
  "objective": "fondamental",
  "days": [
    {"day": 0, "sessionDescription": "Repos", "sessionType": "rest", "zone1Km": 0, "zone2Km": 0, "zone3Km": 0, "speedKm": 0, "totalKm": 0},
    {"day": 1, "sessionDescription": "EF 10km", "sessionType": "endurance", "zone1Km": 10, "zone2Km": 0, "zone3Km": 0, "speedKm": 0, "totalKm": 10}
  ]
}
`+"```"+JSONOnly, SessionVocabulary, maxLen)
}

// FallbackUserPrompt returns the user prompt for single-shot plan generation.
func FallbackUserPrompt(req training.GenerationRequest, targets calculator.Targets) string {
	var sb strings.Builder
	sb.WriteString("Write the training week for this athlete.\n\n")
	sb.WriteString(FormatRequest(req))
	sb.WriteString("\n")
	sb.WriteString(FormatTargets(targets))
	if h := FormatHistory(req.HistoricalPlans); h != "" {
		sb.WriteString("\n")
		sb.WriteString(h)
	}
	return sb.String()
}

package prompts

import (
	"strings"

	"github.com/c360studio/semcoach/calculator"
	"github.com/c360studio/semcoach/training"
)

// ContextAnalyzerSystemPrompt returns the system prompt for the context analyzer role.
func ContextAnalyzerSystemPrompt() string {
	return `You are an experienced running coach analysing an athlete's training load before planning the next week.

## Your Objective

Read the load figures, the coach's objective and the previous weeks, then describe the athlete and recommend the shape of the coming week.

## Rules

- ACWR above 1.5 means a load spike: recommend a recovery week (weekType "recovery", volumeMultiplier at most 0.8).
- ACWR between 1.3 and 1.5 calls for caution: no volume increase.
- During a taper ("affûtage") recommend a sharply reduced volume while keeping some intensity.
- zoneDistribution percentages must sum to 100.
- volumeMultiplier is relative to the recent weekly volume (1.0 = same volume).

## Output Format

` + "```json" + `
{
  "athleteProfile": {
    "level": "beginner" | "intermediate" | "advanced",
    "currentForm": "fresh" | "normal" | "tired",
    "fatigueRisk": "low" | "moderate" | "high",
    "strengths": ["..."],
    "areasToImprove": ["..."]
  },
  "weekRecommendation": {
    "weekType": "build" | "maintain" | "recovery" | "taper",
    "volumeMultiplier": 1.0,
    "intensityLevel": "low" | "moderate" | "high",
    "keyFocus": "short phrase",
    "zoneDistribution": {"z1": 80, "z2": 15, "z3": 5, "speed": 0}
  },
  "historicalInsights": ["..."]
}
` + "```" + JSONOnly
}

// ContextAnalyzerUserPrompt returns the user prompt for the context analyzer.
func ContextAnalyzerUserPrompt(req training.GenerationRequest, targets calculator.Targets) string {
	var sb strings.Builder
	sb.WriteString("Analyse this athlete for the coming week.\n\n")
	sb.WriteString(FormatRequest(req))
	sb.WriteString("\n")
	sb.WriteString(FormatTargets(targets))
	if h := FormatHistory(req.HistoricalPlans); h != "" {
		sb.WriteString("\n")
		sb.WriteString(h)
	}
	return sb.String()
}

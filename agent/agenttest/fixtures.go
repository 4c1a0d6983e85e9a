// Package agenttest provides canned stage replies for a complete, valid
// training week and a scripted gateway routing them by capability.
//
// The week targets base/general with a 50 km recent volume (45-55 km band):
//
//	0 Repos, 1 EF 10km, 2 VMA 6x1000m, 3 EF 8km,
//	4 Seuil 2x15min, 5 Repos, 6 Sortie longue 12km  = 52 km
package agenttest

import (
	"fmt"

	"github.com/c360studio/semcoach/llm"
	"github.com/c360studio/semcoach/llm/testutil"
	"github.com/c360studio/semcoach/model"
	"github.com/c360studio/semcoach/training"
)

// WeekTotalKm is the weekly volume of the canned week.
const WeekTotalKm = 52.0

// Request returns the generation request the canned week answers.
func Request() training.GenerationRequest {
	return training.GenerationRequest{
		AthleteStats: training.NewAthleteStats(50, 50, 50),
		Objective:    training.ObjectiveBase,
		Period:       training.PeriodGeneral,
	}
}

// ContextAnalysis is a context analyzer reply with a 120% zone mix.
const ContextAnalysis = `Here is my analysis:
{
  "athleteProfile": {
    "level": "intermediate",
    "currentForm": "normal",
    "fatigueRisk": "low",
    "strengths": ["régularité"],
    "areasToImprove": ["VMA"]
  },
  "weekRecommendation": {
    "weekType": "build",
    "volumeMultiplier": 1.0,
    "intensityLevel": "moderate",
    "keyFocus": "aerobic base",
    "zoneDistribution": {"z1": 96, "z2": 18, "z3": 6, "speed": 0}
  },
  "historicalInsights": []
}`

// WeekStructure is a fenced structure planner reply with a trailing comma
// and a comment.
const WeekStructure = "```json\n" + `{
  "days": [
    {"dayOfWeek": 0, "dayType": "rest", "intensity": "rest", "estimatedVolume": 0},
    {"dayOfWeek": 1, "dayType": "endurance", "intensity": "easy", "estimatedVolume": 10},
    {"dayOfWeek": 2, "dayType": "vma", "intensity": "hard", "estimatedVolume": 11},
    {"dayOfWeek": 3, "dayType": "endurance", "intensity": "easy", "estimatedVolume": 8},
    {"dayOfWeek": 4, "dayType": "threshold", "intensity": "hard", "estimatedVolume": 11},
    {"dayOfWeek": 5, "dayType": "rest", "intensity": "rest", "estimatedVolume": 0},
    {"dayOfWeek": 6, "dayType": "long_run", "intensity": "moderate", "estimatedVolume": 12}, // long run
  ],
  "totalVolume": 52,
  "weeklyObjective": "fondamental",
  "zoneMix": {"z1": 80, "z2": 15, "z3": 5, "speed": 0}
}` + "\n```"

// Sessions is a session composer reply.
const Sessions = `{
  "sessions": [
    {"day": 0, "shortDescription": "Repos", "sessionType": "rest", "targetZonePercentages": {"z1": 0, "z2": 0, "z3": 0, "speed": 0}, "rpeTarget": 1},
    {"day": 1, "shortDescription": "EF 10km", "sessionType": "endurance", "targetZonePercentages": {"z1": 100, "z2": 0, "z3": 0, "speed": 0}, "rpeTarget": 3},
    {"day": 2, "shortDescription": "VMA 6x1000m r=1'30", "sessionType": "vma", "targetZonePercentages": {"z1": 55, "z2": 0, "z3": 45, "speed": 0}, "targetTimes": "1000m en 3:50", "rpeTarget": 8},
    {"day": 3, "shortDescription": "EF 8km", "sessionType": "endurance", "targetZonePercentages": {"z1": 100, "z2": 0, "z3": 0, "speed": 0}, "rpeTarget": 3},
    {"day": 4, "shortDescription": "Seuil 2x15min", "sessionType": "threshold", "targetZonePercentages": {"z1": 45, "z2": 55, "z3": 0, "speed": 0}, "rpeTarget": 7},
    {"day": 5, "shortDescription": "Repos", "sessionType": "rest", "targetZonePercentages": {"z1": 0, "z2": 0, "z3": 0, "speed": 0}, "rpeTarget": 1},
    {"day": 6, "shortDescription": "Sortie longue 12km", "sessionType": "long_run", "targetZonePercentages": {"z1": 100, "z2": 0, "z3": 0, "speed": 0}, "rpeTarget": 4}
  ]
}`

// Allocations is a volume allocator reply. Day 4 carries an inconsistent
// total that parsing recomputes.
const Allocations = `{
  "allocations": [
    {"day": 0, "zone1Km": 0, "zone2Km": 0, "zone3Km": 0, "speedKm": 0, "totalKm": 0},
    {"day": 1, "zone1Km": 10, "zone2Km": 0, "zone3Km": 0, "speedKm": 0, "totalKm": 10},
    {"day": 2, "zone1Km": 5, "zone2Km": 0, "zone3Km": 6, "speedKm": 0, "totalKm": 11},
    {"day": 3, "zone1Km": 8, "zone2Km": 0, "zone3Km": 0, "speedKm": 0, "totalKm": 8},
    {"day": 4, "zone1Km": 5, "zone2Km": 6, "zone3Km": 0, "speedKm": 0, "totalKm": 14},
    {"day": 5, "zone1Km": 0, "zone2Km": 0, "zone3Km": 0, "speedKm": 0, "totalKm": 0},
    {"day": 6, "zone1Km": 12, "zone2Km": 0, "zone3Km": 0, "speedKm": 0, "totalKm": 12}
  ]
}`

// Quality is a quality validator reply with one note-only adjustment.
const Quality = `{
  "isValid": true,
  "score": 88,
  "issues": [],
  "suggestions": ["hydrate well on the long run"],
  "perDayAdjustments": [
    {"day": 6, "reason": "keep the long run conversational"}
  ]
}`

// Plan is a single-shot fallback reply for the same week.
const Plan = `{
  "objective": "base",
  "days": [
    {"day": 0, "sessionDescription": "Repos", "sessionType": "rest", "zone1Km": 0, "zone2Km": 0, "zone3Km": 0, "speedKm": 0, "totalKm": 0},
    {"day": 1, "sessionDescription": "EF 10km", "sessionType": "endurance", "zone1Km": 10, "zone2Km": 0, "zone3Km": 0, "speedKm": 0, "totalKm": 10},
    {"day": 2, "sessionDescription": "VMA 6x1000m", "sessionType": "vma", "zone1Km": 5, "zone2Km": 0, "zone3Km": 6, "speedKm": 0, "totalKm": 11},
    {"day": 3, "sessionDescription": "EF 8km", "sessionType": "endurance", "zone1Km": 8, "zone2Km": 0, "zone3Km": 0, "speedKm": 0, "totalKm": 8},
    {"day": 4, "sessionDescription": "Seuil 2x15min", "sessionType": "threshold", "zone1Km": 5, "zone2Km": 6, "zone3Km": 0, "speedKm": 0, "totalKm": 11},
    {"day": 5, "sessionDescription": "Repos", "sessionType": "rest", "zone1Km": 0, "zone2Km": 0, "zone3Km": 0, "speedKm": 0, "totalKm": 0},
    {"day": 6, "sessionDescription": "Sortie longue 12km", "sessionType": "long_run", "zone1Km": 12, "zone2Km": 0, "zone3Km": 0, "speedKm": 0, "totalKm": 12}
  ]
}`

// Replies maps each capability to its canned reply.
func Replies() map[model.Capability]string {
	return map[model.Capability]string{
		model.CapabilityAnalysis:   ContextAnalysis,
		model.CapabilityPlanning:   WeekStructure,
		model.CapabilityComposing:  Sessions,
		model.CapabilityAllocating: Allocations,
		model.CapabilityReviewing:  Quality,
		model.CapabilityFast:       Plan,
	}
}

// Router answers each request with the canned reply for its capability.
// Entries in override replace the defaults.
func Router(override map[model.Capability]string) func(req llm.Request) (*llm.Response, error) {
	replies := Replies()
	for cap, reply := range override {
		replies[cap] = reply
	}
	return func(req llm.Request) (*llm.Response, error) {
		reply, ok := replies[model.Capability(req.Capability)]
		if !ok {
			return nil, llm.NewFatalError(fmt.Errorf("no canned reply for capability %q", req.Capability))
		}
		return testutil.Text(reply), nil
	}
}

// Gateway returns a scripted gateway serving the canned week.
func Gateway() *testutil.MockLLMClient {
	return &testutil.MockLLMClient{Handler: Router(nil)}
}

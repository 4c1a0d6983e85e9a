package agent

import (
	"sort"
	"strings"

	"github.com/c360studio/semcoach/agent/prompts"
	"github.com/c360studio/semcoach/calculator"
	"github.com/c360studio/semcoach/llm"
	"github.com/c360studio/semcoach/training"
)

// Day types known to the structure planner.
const (
	DayTypeRest        = "rest"
	DayTypeEndurance   = "endurance"
	DayTypeThreshold   = "threshold"
	DayTypeVMA         = "vma"
	DayTypeInterval    = "interval"
	DayTypeSpeed       = "speed"
	DayTypeStrength    = "strength"
	DayTypeLongRun     = "long_run"
	DayTypeCompetition = "competition"
)

// Intensity tags.
const (
	IntensityRest     = "rest"
	IntensityEasy     = "easy"
	IntensityModerate = "moderate"
	IntensityHard     = "hard"
)

// StructureInput is the input of the week structure planner.
type StructureInput struct {
	Request  training.GenerationRequest
	Analysis training.ContextAnalysis
	Targets  calculator.Targets
}

// WeekStructurePlanner decides the type, intensity and rough volume of each day.
type WeekStructurePlanner = Agent[StructureInput, training.WeekStructure]

var structureSchema = compileSchema(`{
  "type": "object",
  "required": ["days"],
  "properties": {
    "days": {
      "type": "array",
      "items": {"type": "object"}
    }
  }
}`)

// NewWeekStructurePlanner creates the second-stage agent.
func NewWeekStructurePlanner(gateway llm.Gateway, opts ...Option) *WeekStructurePlanner {
	return New(gateway, Spec[StructureInput, training.WeekStructure]{
		Name:        RoleStructurePlanner,
		Temperature: 0.3,
		System:      prompts.StructurePlannerSystemPrompt(),
		Prompt: func(in StructureInput) (string, error) {
			return prompts.StructurePlannerUserPrompt(in.Request, in.Analysis, in.Targets), nil
		},
		Parse:            ParseWeekStructure,
		CorrectionPrompt: true,
		Keys:             []string{"days", "totalVolume", "weeklyObjective", "zoneMix"},
	}, opts...)
}

// ParseWeekStructure reads a week structure reply. It requires exactly one
// entry per day 0-6, normalizes tags and recomputes the total volume.
func ParseWeekStructure(raw string) (training.WeekStructure, error) {
	m, err := decodeObject(raw, structureSchema, "days")
	if err != nil {
		return training.WeekStructure{}, err
	}

	items := objList(m, "days")
	days := make([]training.DayPlan, 0, len(items))
	for _, item := range items {
		volume := num(item, "estimatedVolume", "volume", "totalKm")
		dayType := NormalizeDayType(str(item, "dayType", "type"), volume)
		days = append(days, training.DayPlan{
			DayOfWeek:       dayIndex(item, "dayOfWeek", "day"),
			DayType:         dayType,
			Intensity:       NormalizeIntensity(str(item, "intensity"), dayType),
			EstimatedVolume: training.Round(volume, 1),
			Notes:           str(item, "notes"),
		})
	}
	if err := checkDays(len(days), func(i int) int { return days[i].DayOfWeek }); err != nil {
		return training.WeekStructure{}, err
	}
	sort.Slice(days, func(i, j int) bool { return days[i].DayOfWeek < days[j].DayOfWeek })

	var total float64
	for _, d := range days {
		total += d.EstimatedVolume
	}

	return training.WeekStructure{
		Days:            days,
		TotalVolume:     training.Round(total, 1),
		WeeklyObjective: str(m, "weeklyObjective"),
		ZoneMix:         training.NormalizePercentages(zoneMix(obj(m, "zoneMix")), percentageThreshold),
	}, nil
}

var dayTypeAliases = map[string]string{
	"rest": DayTypeRest, "repos": DayTypeRest, "off": DayTypeRest,
	"endurance": DayTypeEndurance, "ef": DayTypeEndurance, "easy": DayTypeEndurance, "recovery": DayTypeEndurance,
	"threshold": DayTypeThreshold, "seuil": DayTypeThreshold, "tempo": DayTypeThreshold,
	"vma":      DayTypeVMA,
	"interval": DayTypeInterval, "intervals": DayTypeInterval, "fractionne": DayTypeInterval,
	"speed": DayTypeSpeed, "vitesse": DayTypeSpeed,
	"strength": DayTypeStrength, "renfo": DayTypeStrength,
	"long_run": DayTypeLongRun, "long run": DayTypeLongRun, "longrun": DayTypeLongRun, "sortie longue": DayTypeLongRun,
	"competition": DayTypeCompetition, "race": DayTypeCompetition, "course": DayTypeCompetition,
}

// NormalizeDayType maps a free-form day type onto a known tag. Unknown
// values fall back to keyword detection; an empty type is rest when the
// day has no volume.
func NormalizeDayType(s string, volume float64) string {
	key := strings.ToLower(strings.TrimSpace(strings.ReplaceAll(s, "é", "e")))
	if t, ok := dayTypeAliases[key]; ok {
		return t
	}
	if key == "" {
		if volume > 0 {
			return DayTypeEndurance
		}
		return DayTypeRest
	}
	return calculator.DetectSessionType(s)
}

var intensityAliases = map[string]string{
	"rest": IntensityRest, "none": IntensityRest, "off": IntensityRest, "repos": IntensityRest,
	"easy": IntensityEasy, "low": IntensityEasy, "light": IntensityEasy, "facile": IntensityEasy,
	"moderate": IntensityModerate, "medium": IntensityModerate, "moyenne": IntensityModerate,
	"hard": IntensityHard, "high": IntensityHard, "intense": IntensityHard, "difficile": IntensityHard,
}

// NormalizeIntensity maps a free-form intensity onto a known tag, deriving
// it from the day type when unknown.
func NormalizeIntensity(s, dayType string) string {
	if t, ok := intensityAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return t
	}
	switch {
	case dayType == DayTypeRest:
		return IntensityRest
	case calculator.IsQuality(dayType):
		return IntensityHard
	case dayType == DayTypeLongRun:
		return IntensityModerate
	default:
		return IntensityEasy
	}
}

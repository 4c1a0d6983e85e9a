package agent

import (
	"github.com/c360studio/semcoach/agent/prompts"
	"github.com/c360studio/semcoach/calculator"
	"github.com/c360studio/semcoach/llm"
	"github.com/c360studio/semcoach/training"
)

// Agent roles.
const (
	RoleContextAnalyzer  = "context_analyzer"
	RoleStructurePlanner = "structure_planner"
	RoleSessionComposer  = "session_composer"
	RoleVolumeAllocator  = "volume_allocator"
	RoleQualityValidator = "quality_validator"
	RoleFallback         = "fallback"
	RoleAdvisor          = "advisor"
)

// ContextInput is the input of the context analyzer.
type ContextInput struct {
	Request training.GenerationRequest
	Targets calculator.Targets
}

// ContextAnalyzer reads the athlete's load and history into a profile and
// a recommendation for the week.
type ContextAnalyzer = Agent[ContextInput, training.ContextAnalysis]

var contextSchema = compileSchema(`{
  "type": "object",
  "required": ["athleteProfile", "weekRecommendation"],
  "properties": {
    "athleteProfile": {"type": "object"},
    "weekRecommendation": {
      "type": "object",
      "required": ["zoneDistribution"],
      "properties": {"zoneDistribution": {"type": "object"}}
    }
  }
}`)

// NewContextAnalyzer creates the first-stage agent.
func NewContextAnalyzer(gateway llm.Gateway, opts ...Option) *ContextAnalyzer {
	return New(gateway, Spec[ContextInput, training.ContextAnalysis]{
		Name:        RoleContextAnalyzer,
		Temperature: 0.3,
		System:      prompts.ContextAnalyzerSystemPrompt(),
		Prompt: func(in ContextInput) (string, error) {
			return prompts.ContextAnalyzerUserPrompt(in.Request, in.Targets), nil
		},
		Parse:            ParseContextAnalysis,
		CorrectionPrompt: true,
		Keys:             []string{"athleteProfile", "weekRecommendation", "historicalInsights"},
	}, opts...)
}

// ParseContextAnalysis reads a context analysis reply. The recommended zone
// distribution is rescaled when it drifts more than 10 points from 100.
func ParseContextAnalysis(raw string) (training.ContextAnalysis, error) {
	m, err := decodeObject(raw, contextSchema, "")
	if err != nil {
		return training.ContextAnalysis{}, err
	}

	profile := obj(m, "athleteProfile")
	rec := obj(m, "weekRecommendation")

	multiplier := num(rec, "volumeMultiplier")
	if multiplier == 0 {
		multiplier = 1
	}

	return training.ContextAnalysis{
		AthleteProfile: training.AthleteProfile{
			Level:          str(profile, "level"),
			CurrentForm:    str(profile, "currentForm"),
			FatigueRisk:    str(profile, "fatigueRisk"),
			Strengths:      strList(profile, "strengths"),
			AreasToImprove: strList(profile, "areasToImprove"),
		},
		WeekRecommendation: training.WeekRecommendation{
			WeekType:         str(rec, "weekType"),
			VolumeMultiplier: training.Round(multiplier, 2),
			IntensityLevel:   str(rec, "intensityLevel"),
			KeyFocus:         str(rec, "keyFocus"),
			ZoneDistribution: training.NormalizePercentages(zoneMix(obj(rec, "zoneDistribution")), percentageThreshold),
		},
		HistoricalInsights: strList(m, "historicalInsights"),
	}, nil
}

package agent

import (
	"errors"
	"fmt"
	"sort"

	"github.com/c360studio/semcoach/agent/prompts"
	"github.com/c360studio/semcoach/calculator"
	"github.com/c360studio/semcoach/llm"
	"github.com/c360studio/semcoach/training"
)

// DefaultMaxDescriptionLen caps session descriptions, in runes.
const DefaultMaxDescriptionLen = 80

// SessionInput is the input of the session composer.
type SessionInput struct {
	Request   training.GenerationRequest
	Analysis  training.ContextAnalysis
	Structure training.WeekStructure
	Paces     calculator.Paces
}

// SessionComposer writes the terse session description of each day.
type SessionComposer = Agent[SessionInput, []training.SessionDesign]

var sessionSchema = compileSchema(`{
  "type": "object",
  "required": ["sessions"],
  "properties": {
    "sessions": {
      "type": "array",
      "items": {"type": "object"}
    }
  }
}`)

// NewSessionComposer creates the third-stage agent. maxLen caps the
// description length; 0 uses DefaultMaxDescriptionLen.
func NewSessionComposer(gateway llm.Gateway, maxLen int, opts ...Option) *SessionComposer {
	if maxLen <= 0 {
		maxLen = DefaultMaxDescriptionLen
	}
	return New(gateway, Spec[SessionInput, []training.SessionDesign]{
		Name:        RoleSessionComposer,
		Temperature: 0.4,
		System:      prompts.SessionComposerSystemPrompt(maxLen),
		Prompt: func(in SessionInput) (string, error) {
			if len(in.Structure.Days) == 0 {
				return "", errors.New("week structure has no days")
			}
			return prompts.SessionComposerUserPrompt(in.Request, in.Analysis, in.Structure, in.Paces), nil
		},
		Parse: func(raw string) ([]training.SessionDesign, error) {
			return ParseSessions(raw, maxLen)
		},
		CorrectionPrompt: true,
		Keys:             []string{"sessions"},
	}, opts...)
}

// ParseSessions reads a session list reply. Descriptions are collapsed to
// one line and truncated to maxLen runes, RPE is clamped to 1-10 and zone
// percentages are rescaled like the analyzer's.
func ParseSessions(raw string, maxLen int) ([]training.SessionDesign, error) {
	m, err := decodeObject(raw, sessionSchema, "sessions")
	if err != nil {
		return nil, err
	}

	items := objList(m, "sessions")
	sessions := make([]training.SessionDesign, 0, len(items))
	for _, item := range items {
		day := dayIndex(item, "day", "dayOfWeek")
		desc := Terse(str(item, "shortDescription", "description", "sessionDescription"), maxLen)
		sessionType := str(item, "sessionType", "type")
		if sessionType == "" {
			sessionType = calculator.DetectSessionType(desc)
		} else {
			sessionType = NormalizeDayType(sessionType, 1)
		}
		if desc == "" {
			if sessionType != DayTypeRest {
				return nil, llm.NewInvalidError(fmt.Errorf("session for day %d has no description", day))
			}
			desc = training.RestDay(day).SessionDescription
		}

		sessions = append(sessions, training.SessionDesign{
			Day:              day,
			ShortDescription: desc,
			SessionType:      sessionType,
			TargetZones:      training.NormalizePercentages(zoneMix(obj(item, "targetZonePercentages")), percentageThreshold),
			TargetTimes:      Terse(str(item, "targetTimes"), maxLen),
			RPETarget:        clampRPE(training.Int(item["rpeTarget"])),
		})
	}
	if err := checkDays(len(sessions), func(i int) int { return sessions[i].Day }); err != nil {
		return nil, err
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].Day < sessions[j].Day })
	return sessions, nil
}

func clampRPE(rpe int) int {
	return min(max(rpe, 1), 10)
}

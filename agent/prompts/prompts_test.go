package prompts

import (
	"errors"
	"strings"
	"testing"

	"github.com/c360studio/semcoach/calculator"
	"github.com/c360studio/semcoach/training"
)

func testRequest() training.GenerationRequest {
	return training.GenerationRequest{
		AthleteStats: training.NewAthleteStats(50, 60, 55),
		Objective:    training.ParseObjective("résistance"),
		Period:       training.ParsePeriod("spécifique"),
		Constraints:  "pas de séance le mercredi",
	}
}

func TestSystemPromptsRequireJSON(t *testing.T) {
	prompts := map[string]string{
		"context_analyzer":  ContextAnalyzerSystemPrompt(),
		"structure_planner": StructurePlannerSystemPrompt(),
		"session_composer":  SessionComposerSystemPrompt(80),
		"volume_allocator":  VolumeAllocatorSystemPrompt(),
		"quality_validator": QualityValidatorSystemPrompt(),
		"fallback":          FallbackSystemPrompt(80),
	}
	for name, p := range prompts {
		if !strings.Contains(p, "Output Format") {
			t.Errorf("%s: missing Output Format section", name)
		}
		if !strings.Contains(p, "single JSON object") {
			t.Errorf("%s: missing JSON output rule", name)
		}
		if strings.Contains(p, "%!") {
			t.Errorf("%s: bad format verb in prompt", name)
		}
	}
}

func TestContextAnalyzerSystemPrompt_Rules(t *testing.T) {
	p := ContextAnalyzerSystemPrompt()
	for _, want := range []string{"ACWR above 1.5", "recovery", "affûtage", "zoneDistribution"} {
		if !strings.Contains(p, want) {
			t.Errorf("ContextAnalyzerSystemPrompt missing %q", want)
		}
	}
}

func TestSessionComposerSystemPrompt_Length(t *testing.T) {
	p := SessionComposerSystemPrompt(60)
	if !strings.Contains(p, "at most 60 characters") {
		t.Error("expected the description limit in the prompt")
	}
	if !strings.Contains(p, "VMA 6x1000m") {
		t.Error("expected the session vocabulary in the prompt")
	}
}

func TestContextAnalyzerUserPrompt(t *testing.T) {
	req := testRequest()
	req.HistoricalPlans = []training.GeneratedPlan{{
		Objective: "base",
		Days:      []training.GeneratedDay{{Day: 1, SessionDescription: "EF 10km", TotalKm: 10}},
	}}
	p := ContextAnalyzerUserPrompt(req, calculator.TargetsFor(req))

	for _, want := range []string{"CTL (chronic load): 50.0", "ACWR: 1.20", "résistance", "spécifique", "mercredi", "Weekly target", "Previous Weeks", "mardi: EF 10km"} {
		if !strings.Contains(p, want) {
			t.Errorf("user prompt missing %q", want)
		}
	}
}

func TestFormatHistory_KeepsRecentWeeks(t *testing.T) {
	var plans []training.GeneratedPlan
	for i := 0; i < 6; i++ {
		plans = append(plans, training.GeneratedPlan{Objective: string(rune('a' + i))})
	}
	h := FormatHistory(plans)
	if strings.Contains(h, "(a,") || strings.Contains(h, "(b,") {
		t.Error("oldest weeks should be dropped")
	}
	if !strings.Contains(h, "Week -1 (f,") {
		t.Error("newest week should be last")
	}
	if FormatHistory(nil) != "" {
		t.Error("expected empty history for no plans")
	}
}

func TestVolumeAllocatorUserPrompt_Estimates(t *testing.T) {
	structure := training.WeekStructure{Days: []training.DayPlan{{DayOfWeek: 2, DayType: "vma", EstimatedVolume: 11}}}
	sessions := []training.SessionDesign{{Day: 2, ShortDescription: "VMA 6x1000m", SessionType: "vma"}}
	estimates := []training.VolumeAllocation{calculator.SessionZones(2, "VMA 6x1000m", calculator.DefaultPaces(15))}

	p := VolumeAllocatorUserPrompt(structure, sessions, estimates, calculator.Targets{Target: 50, Min: 45, Max: 55})
	if !strings.Contains(p, "planned ~11.0 km") {
		t.Error("expected planned volume from the structure")
	}
	if !strings.Contains(p, "Z3 6.0") || !strings.Contains(p, "= 11.0 km") {
		t.Errorf("expected calculator estimate, got:\n%s", p)
	}
}

func TestQualityValidatorUserPrompt(t *testing.T) {
	plan := training.GeneratedPlan{Days: []training.GeneratedDay{training.RestDay(0)}}
	plan.Normalize()
	p := QualityValidatorUserPrompt(testRequest(), calculator.Targets{Target: 50}, plan)
	if !strings.Contains(p, "day 6 (dimanche): Repos [rest]") {
		t.Errorf("expected every day rendered, got:\n%s", p)
	}
}

func TestFormatCorrectionPrompt(t *testing.T) {
	p := FormatCorrectionPrompt(errors.New("no JSON found in response"), []string{"days"})
	if !strings.Contains(p, "no JSON found in response") {
		t.Error("prompt should contain the original error message")
	}
	if !strings.Contains(p, `"days"`) {
		t.Error("prompt should name the expected keys")
	}
	if !strings.Contains(p, "ONLY a valid JSON object") {
		t.Error("prompt should instruct the model to respond with only JSON")
	}
}

func TestAdvisorUserPrompt(t *testing.T) {
	p := AdvisorUserPrompt("Combien de séances de VMA ?", "[guide.md] Deux séances maximum.")
	if !strings.Contains(p, "Reference Excerpts") || !strings.Contains(p, "[guide.md]") {
		t.Error("expected excerpts section")
	}
	if strings.Contains(AdvisorUserPrompt("q", "  "), "Reference Excerpts") {
		t.Error("blank excerpts should be omitted")
	}
}

func TestDayName(t *testing.T) {
	if DayName(0) != "lundi" || DayName(6) != "dimanche" {
		t.Error("unexpected day names")
	}
	if DayName(9) != "day 9" {
		t.Errorf("unexpected out of range name %q", DayName(9))
	}
}

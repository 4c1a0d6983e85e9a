// Package training defines the data model shared by the plan-generation
// pipeline: athlete load statistics, the generation request, the intermediate
// stage outputs and the final seven-day plan.
package training

import (
	"fmt"
	"strings"
)

// DaysPerWeek is the fixed number of days in a generated plan.
const DaysPerWeek = 7

// VolumeTolerance is the maximum accepted gap, in km, between a day's total
// and the sum of its zone distances.
const VolumeTolerance = 0.05

// AthleteStats holds the precomputed training-load figures for an athlete.
type AthleteStats struct {
	// CTL is the chronic training load.
	CTL float64 `json:"ctl" yaml:"ctl"`

	// ATL is the acute training load.
	ATL float64 `json:"atl" yaml:"atl"`

	// ACWR is the acute:chronic workload ratio (ATL/CTL, 0 when CTL is 0).
	ACWR float64 `json:"acwr" yaml:"acwr"`

	// WeeklyVolume is the athlete's recent weekly distance in km.
	WeeklyVolume float64 `json:"weeklyVolume" yaml:"weekly_volume"`
}

// NewAthleteStats builds stats and derives the ACWR from the loads.
func NewAthleteStats(ctl, atl, weeklyVolume float64) AthleteStats {
	s := AthleteStats{CTL: ctl, ATL: atl, WeeklyVolume: weeklyVolume}
	return s.Normalize()
}

// Normalize clamps invalid figures to zero and derives a missing ACWR.
func (s AthleteStats) Normalize() AthleteStats {
	s.CTL = Float(s.CTL)
	s.ATL = Float(s.ATL)
	s.WeeklyVolume = Float(s.WeeklyVolume)
	s.ACWR = Float(s.ACWR)
	if s.ACWR == 0 && s.CTL > 0 {
		s.ACWR = Round(s.ATL/s.CTL, 2)
	}
	return s
}

// Objective is the coach-set goal for the week.
type Objective string

const (
	ObjectiveBase        Objective = "base"
	ObjectiveResistance  Objective = "resistance"
	ObjectiveCompetition Objective = "competition"
	ObjectiveRecovery    Objective = "recovery"
)

var objectiveAliases = map[string]Objective{
	"base":         ObjectiveBase,
	"fondamental":  ObjectiveBase,
	"foncier":      ObjectiveBase,
	"resistance":   ObjectiveResistance,
	"competition":  ObjectiveCompetition,
	"recovery":     ObjectiveRecovery,
	"recuperation": ObjectiveRecovery,
}

// ParseObjective accepts English identifiers and French labels, with or
// without accents. Unknown values map to ObjectiveBase.
func ParseObjective(s string) Objective {
	if o, ok := objectiveAliases[foldLabel(s)]; ok {
		return o
	}
	return ObjectiveBase
}

// Label returns the coach-facing French label used in prompts.
func (o Objective) Label() string {
	switch o {
	case ObjectiveResistance:
		return "résistance"
	case ObjectiveCompetition:
		return "compétition"
	case ObjectiveRecovery:
		return "récupération"
	default:
		return "fondamental"
	}
}

// Period is the macro-cycle phase the week belongs to.
type Period string

const (
	PeriodGeneral  Period = "general"
	PeriodSpecific Period = "specific"
	PeriodTaper    Period = "taper"
)

var periodAliases = map[string]Period{
	"general":    PeriodGeneral,
	"specific":   PeriodSpecific,
	"specifique": PeriodSpecific,
	"taper":      PeriodTaper,
	"affutage":   PeriodTaper,
}

// ParsePeriod mirrors ParseObjective. Unknown values map to PeriodGeneral.
func ParsePeriod(s string) Period {
	if p, ok := periodAliases[foldLabel(s)]; ok {
		return p
	}
	return PeriodGeneral
}

// Label returns the coach-facing French label used in prompts.
func (p Period) Label() string {
	switch p {
	case PeriodSpecific:
		return "spécifique"
	case PeriodTaper:
		return "affûtage"
	default:
		return "général"
	}
}

// foldLabel lowercases and strips the French accents found in labels.
func foldLabel(s string) string {
	r := strings.NewReplacer(
		"é", "e", "è", "e", "ê", "e", "É", "e",
		"û", "u", "ù", "u", "â", "a", "à", "a", "ô", "o", "î", "i", "ç", "c",
	)
	return strings.ToLower(strings.TrimSpace(r.Replace(strings.ToLower(s))))
}

// GenerationRequest is the caller input for one pipeline run.
type GenerationRequest struct {
	AthleteStats    AthleteStats    `json:"athleteStats" yaml:"athlete_stats"`
	Objective       Objective       `json:"objective" yaml:"objective"`
	Period          Period          `json:"period" yaml:"period"`
	Constraints     string          `json:"constraints,omitempty" yaml:"constraints,omitempty"`
	HistoricalPlans []GeneratedPlan `json:"historicalPlans,omitempty" yaml:"historical_plans,omitempty"`

	// VMA is the athlete's maximal aerobic speed in km/h. Zero uses a default.
	VMA float64 `json:"vma,omitempty" yaml:"vma,omitempty"`
}

// Validate checks the request figures are usable.
func (r *GenerationRequest) Validate() error {
	s := r.AthleteStats
	if s.CTL < 0 || s.ATL < 0 || s.ACWR < 0 || s.WeeklyVolume < 0 {
		return fmt.Errorf("athlete stats must be non-negative")
	}
	if r.VMA < 0 {
		return fmt.Errorf("vma must be non-negative")
	}
	return nil
}

// Normalized returns a copy with canonical objective/period tags and clean stats.
func (r GenerationRequest) Normalized() GenerationRequest {
	r.AthleteStats = r.AthleteStats.Normalize()
	r.Objective = ParseObjective(string(r.Objective))
	r.Period = ParsePeriod(string(r.Period))
	return r
}

// ZoneMix is a percentage split across the four training zones.
type ZoneMix struct {
	Z1    float64 `json:"z1"`
	Z2    float64 `json:"z2"`
	Z3    float64 `json:"z3"`
	Speed float64 `json:"speed"`
}

// Sum returns the total of the four components.
func (m ZoneMix) Sum() float64 {
	return m.Z1 + m.Z2 + m.Z3 + m.Speed
}

// AthleteProfile describes the athlete as seen by the context analyzer.
type AthleteProfile struct {
	Level          string   `json:"level"`
	CurrentForm    string   `json:"currentForm"`
	FatigueRisk    string   `json:"fatigueRisk"`
	Strengths      []string `json:"strengths"`
	AreasToImprove []string `json:"areasToImprove"`
}

// WeekRecommendation is the analyzer's advice for the coming week.
type WeekRecommendation struct {
	WeekType         string  `json:"weekType"`
	VolumeMultiplier float64 `json:"volumeMultiplier"`
	IntensityLevel   string  `json:"intensityLevel"`
	KeyFocus         string  `json:"keyFocus"`
	ZoneDistribution ZoneMix `json:"zoneDistribution"`
}

// ContextAnalysis is the output of the first stage.
type ContextAnalysis struct {
	AthleteProfile     AthleteProfile     `json:"athleteProfile"`
	WeekRecommendation WeekRecommendation `json:"weekRecommendation"`
	HistoricalInsights []string           `json:"historicalInsights"`
}

// DayPlan is one day of the week structure.
type DayPlan struct {
	DayOfWeek       int     `json:"dayOfWeek"`
	DayType         string  `json:"dayType"`
	Intensity       string  `json:"intensity"`
	EstimatedVolume float64 `json:"estimatedVolume"`
	Notes           string  `json:"notes,omitempty"`
}

// WeekStructure is the output of the second stage.
type WeekStructure struct {
	Days            []DayPlan `json:"days"`
	TotalVolume     float64   `json:"totalVolume"`
	WeeklyObjective string    `json:"weeklyObjective"`
	ZoneMix         ZoneMix   `json:"zoneMix"`
}

// Day returns the plan for a day index, if present.
func (w *WeekStructure) Day(day int) (DayPlan, bool) {
	for _, d := range w.Days {
		if d.DayOfWeek == day {
			return d, true
		}
	}
	return DayPlan{}, false
}

// SessionDesign is one day of the third stage's output.
type SessionDesign struct {
	Day              int     `json:"day"`
	ShortDescription string  `json:"shortDescription"`
	SessionType      string  `json:"sessionType"`
	TargetZones      ZoneMix `json:"targetZonePercentages"`
	TargetTimes      string  `json:"targetTimes,omitempty"`
	RPETarget        int     `json:"rpeTarget"`
}

// VolumeAllocation is one day of the fourth stage's output.
type VolumeAllocation struct {
	Day     int     `json:"day"`
	Zone1Km float64 `json:"zone1Km"`
	Zone2Km float64 `json:"zone2Km"`
	Zone3Km float64 `json:"zone3Km"`
	SpeedKm float64 `json:"speedKm"`
	TotalKm float64 `json:"totalKm"`
}

// ZoneSum returns the sum of the four zone distances.
func (v VolumeAllocation) ZoneSum() float64 {
	return v.Zone1Km + v.Zone2Km + v.Zone3Km + v.SpeedKm
}

// Consistent reports whether TotalKm matches the zone sum within tolerance.
func (v VolumeAllocation) Consistent() bool {
	d := v.TotalKm - v.ZoneSum()
	return d <= VolumeTolerance && d >= -VolumeTolerance
}

// ScaledTo returns v with its zones scaled proportionally to total. A day
// with no zone distance puts the whole total in zone 1.
func (v VolumeAllocation) ScaledTo(total float64) VolumeAllocation {
	total = Float(total)
	sum := v.ZoneSum()
	if sum <= 0 {
		v.Zone1Km, v.Zone2Km, v.Zone3Km, v.SpeedKm = total, 0, 0, 0
	} else {
		k := total / sum
		v.Zone1Km *= k
		v.Zone2Km *= k
		v.Zone3Km *= k
		v.SpeedKm *= k
	}
	v.TotalKm = total
	return v
}

// Normalize coerces every figure and recomputes an inconsistent total.
func (v VolumeAllocation) Normalize() VolumeAllocation {
	v.Zone1Km = Round(Float(v.Zone1Km), 2)
	v.Zone2Km = Round(Float(v.Zone2Km), 2)
	v.Zone3Km = Round(Float(v.Zone3Km), 2)
	v.SpeedKm = Round(Float(v.SpeedKm), 2)
	v.TotalKm = Float(v.TotalKm)
	if !v.Consistent() {
		v.TotalKm = v.ZoneSum()
	}
	v.TotalKm = Round(v.TotalKm, 2)
	return v
}

// DayAdjustment is a validator-proposed change to one day. Nil figures mean
// "no change"; the reason is always attached to the day as a note.
type DayAdjustment struct {
	Day     int      `json:"day"`
	Reason  string   `json:"reason"`
	Zone1Km *float64 `json:"zone1Km,omitempty"`
	Zone2Km *float64 `json:"zone2Km,omitempty"`
	Zone3Km *float64 `json:"zone3Km,omitempty"`
	SpeedKm *float64 `json:"speedKm,omitempty"`

	// TotalKm is used only when no zone figure is given: the day's zones are
	// scaled to it.
	TotalKm *float64 `json:"totalKm,omitempty"`
}

// HasFigures reports whether the adjustment carries explicit new volumes.
func (a DayAdjustment) HasFigures() bool {
	return a.HasZoneFigures() || a.TotalKm != nil
}

// HasZoneFigures reports whether any zone distance is given.
func (a DayAdjustment) HasZoneFigures() bool {
	return a.Zone1Km != nil || a.Zone2Km != nil || a.Zone3Km != nil || a.SpeedKm != nil
}

// QualityCheck is the output of the fifth stage.
type QualityCheck struct {
	IsValid     bool            `json:"isValid"`
	Score       int             `json:"score"`
	Issues      []string        `json:"issues"`
	Suggestions []string        `json:"suggestions"`
	Adjustments []DayAdjustment `json:"perDayAdjustments"`
}

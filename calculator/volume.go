// Package calculator holds the deterministic, non-generative figures used to
// seed prompts and cross-check generated plans: weekly volume targets and
// per-session zone distances.
package calculator

import (
	"math"

	"github.com/c360studio/semcoach/training"
)

const (
	// highACWR marks an acute load spike that calls for a volume cut.
	highACWR = 1.3
	// lowACWR marks detraining that allows a volume increase.
	lowACWR = 0.8

	// minWeeklyVolume is the floor used when no recent volume is known.
	minWeeklyVolume = 20.0
	// ctlToVolume converts a chronic load into an approximate weekly km.
	ctlToVolume = 0.6
)

// Targets is the weekly distance band and zone split for one request.
type Targets struct {
	Min    float64          `json:"min"`
	Target float64          `json:"target"`
	Max    float64          `json:"max"`
	Zones  training.ZoneMix `json:"zonePercentages"`
}

// Contains reports whether a weekly volume lies inside [Min, Max].
func (t Targets) Contains(volume float64) bool {
	return volume >= t.Min && volume <= t.Max
}

// Deviation returns |volume - Target| / Target, or 0 when Target is 0.
func (t Targets) Deviation(volume float64) float64 {
	if t.Target == 0 {
		return 0
	}
	return math.Abs(volume-t.Target) / t.Target
}

// ZoneKm splits a distance according to the target zone percentages.
func (t Targets) ZoneKm(total float64) training.VolumeAllocation {
	v := training.VolumeAllocation{
		Zone1Km: total * t.Zones.Z1 / 100,
		Zone2Km: total * t.Zones.Z2 / 100,
		Zone3Km: total * t.Zones.Z3 / 100,
		SpeedKm: total * t.Zones.Speed / 100,
	}
	v.TotalKm = v.ZoneSum()
	return v.Normalize()
}

// ObjectiveMultiplier returns the volume factor for a weekly objective.
func ObjectiveMultiplier(o training.Objective) float64 {
	switch o {
	case training.ObjectiveResistance:
		return 1.15
	case training.ObjectiveCompetition:
		return 0.9
	case training.ObjectiveRecovery:
		return 0.7
	default:
		return 1.0
	}
}

// PeriodMultiplier returns the volume factor for a macro-cycle period.
func PeriodMultiplier(p training.Period) float64 {
	switch p {
	case training.PeriodTaper:
		return 0.75
	case training.PeriodSpecific:
		return 1.1
	default:
		return 1.0
	}
}

// ACWRMultiplier returns the safety factor for the workload ratio.
// A zero ratio means "unknown" and leaves the volume unchanged.
func ACWRMultiplier(acwr float64) float64 {
	switch {
	case acwr > highACWR:
		return 0.85
	case acwr > 0 && acwr < lowACWR:
		return 1.1
	default:
		return 1.0
	}
}

// ZoneSplit returns the target zone percentages for an objective and period.
func ZoneSplit(o training.Objective, p training.Period) training.ZoneMix {
	var m training.ZoneMix
	switch o {
	case training.ObjectiveResistance:
		m = training.ZoneMix{Z1: 70, Z2: 20, Z3: 8, Speed: 2}
	case training.ObjectiveCompetition:
		m = training.ZoneMix{Z1: 65, Z2: 20, Z3: 10, Speed: 5}
	case training.ObjectiveRecovery:
		m = training.ZoneMix{Z1: 90, Z2: 10}
	default:
		m = training.ZoneMix{Z1: 80, Z2: 15, Z3: 5}
	}
	if p == training.PeriodTaper && o != training.ObjectiveRecovery {
		// Keep some intensity while volume drops.
		m.Z1 -= 5
		m.Z3 += 5
	}
	return m
}

// BaseVolume returns the weekly distance the adjustments apply to.
func BaseVolume(stats training.AthleteStats) float64 {
	stats = stats.Normalize()
	if stats.WeeklyVolume > 0 {
		return stats.WeeklyVolume
	}
	return math.Max(minWeeklyVolume, stats.CTL*ctlToVolume)
}

// VolumeTargets computes the weekly band for a request:
// target = base × objective × period × ACWR safety, min = 0.9·target,
// max = 1.1·target, all rounded to 0.1 km.
func VolumeTargets(stats training.AthleteStats, objective training.Objective, period training.Period) Targets {
	stats = stats.Normalize()
	target := BaseVolume(stats) *
		ObjectiveMultiplier(objective) *
		PeriodMultiplier(period) *
		ACWRMultiplier(stats.ACWR)

	return Targets{
		Min:    training.Round(target*0.9, 1),
		Target: training.Round(target, 1),
		Max:    training.Round(target*1.1, 1),
		Zones:  ZoneSplit(objective, period),
	}
}

// TargetsFor is VolumeTargets applied to a normalized request.
func TargetsFor(req training.GenerationRequest) Targets {
	req = req.Normalized()
	return VolumeTargets(req.AthleteStats, req.Objective, req.Period)
}

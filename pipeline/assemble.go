package pipeline

import (
	"log/slog"

	"github.com/c360studio/semcoach/training"
)

// MergeRule tells how a session found its volumes.
type MergeRule string

const (
	// MergeExact: the allocation has the session's day index.
	MergeExact MergeRule = "exact"
	// MergePositional: no allocation for the day, the one at the same
	// list position was used.
	MergePositional MergeRule = "positional"
	// MergeZero: nothing usable, the day gets zero volumes.
	MergeZero MergeRule = "zero"
)

// Degradation records a session that did not merge exactly.
type Degradation struct {
	Day  int       `json:"day"`
	Rule MergeRule `json:"rule"`
}

// MergeDays pairs each session with its volumes. An allocation is used at
// most once.
func MergeDays(sessions []training.SessionDesign, allocations []training.VolumeAllocation) ([]training.GeneratedDay, []Degradation) {
	byDay := make(map[int]int, len(allocations))
	for i, a := range allocations {
		if _, dup := byDay[a.Day]; !dup {
			byDay[a.Day] = i
		}
	}
	used := make([]bool, len(allocations))

	days := make([]training.GeneratedDay, 0, len(sessions))
	var degraded []Degradation
	for pos, s := range sessions {
		day := training.GeneratedDay{
			Day:                s.Day,
			SessionDescription: s.ShortDescription,
			SessionType:        s.SessionType,
			TargetTimes:        s.TargetTimes,
		}

		idx, ok := byDay[s.Day]
		rule := MergeExact
		if !ok || used[idx] {
			idx, ok = pos, pos < len(allocations) && !used[pos]
			rule = MergePositional
		}
		if ok {
			used[idx] = true
			day.SetVolumes(allocations[idx])
		} else {
			rule = MergeZero
		}
		if rule != MergeExact {
			degraded = append(degraded, Degradation{Day: s.Day, Rule: rule})
		}
		days = append(days, day)
	}
	return days, degraded
}

// ApplyAdjustments attaches every adjustment reason to its day as a note.
// Explicit figures replace the matching zone distance and the day total is
// recomputed; a total given without zone figures scales the day's zones.
// Absent figures leave the volumes untouched.
func ApplyAdjustments(plan *training.GeneratedPlan, adjustments []training.DayAdjustment) int {
	changed := 0
	for _, adj := range adjustments {
		for i := range plan.Days {
			d := &plan.Days[i]
			if d.Day != adj.Day {
				continue
			}
			d.AddNote(adj.Reason)
			if adj.HasFigures() {
				v := d.Volumes()
				override(&v.Zone1Km, adj.Zone1Km)
				override(&v.Zone2Km, adj.Zone2Km)
				override(&v.Zone3Km, adj.Zone3Km)
				override(&v.SpeedKm, adj.SpeedKm)
				v.TotalKm = v.ZoneSum()
				if !adj.HasZoneFigures() {
					v = v.ScaledTo(*adj.TotalKm)
				}
				d.SetVolumes(v)
				changed++
			}
			break
		}
	}
	return changed
}

func override(dst *float64, v *float64) {
	if v != nil {
		*dst = training.Float(*v)
	}
}

// Assemble builds the final plan from the stage outputs and normalizes it:
// seven days, sorted, finite non-negative figures.
func Assemble(objective string, sessions []training.SessionDesign, allocations []training.VolumeAllocation,
	check *training.QualityCheck, logger *slog.Logger) (training.GeneratedPlan, []Degradation) {
	days, degraded := MergeDays(sessions, allocations)
	for _, d := range degraded {
		logger.Warn("Session merged without a matching allocation",
			"day", d.Day,
			"rule", string(d.Rule))
	}

	plan := training.GeneratedPlan{Objective: objective, Days: days}
	if check != nil {
		if n := ApplyAdjustments(&plan, check.Adjustments); n > 0 {
			logger.Debug("Applied volume adjustments", "days", n)
		}
	}
	plan.Normalize()
	return plan, degraded
}

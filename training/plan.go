package training

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/spf13/cast"
)

// SessionTypeRest tags a day without training.
const SessionTypeRest = "rest"

// GeneratedDay is one day of the final plan.
type GeneratedDay struct {
	Day                int     `json:"day" yaml:"day"`
	SessionDescription string  `json:"sessionDescription" yaml:"session_description"`
	SessionType        string  `json:"sessionType" yaml:"session_type"`
	Zone1Km            float64 `json:"zone1Km" yaml:"zone1_km"`
	Zone2Km            float64 `json:"zone2Km" yaml:"zone2_km"`
	Zone3Km            float64 `json:"zone3Km" yaml:"zone3_km"`
	SpeedKm            float64 `json:"speedKm" yaml:"speed_km"`
	TotalKm            float64 `json:"totalKm" yaml:"total_km"`
	TargetTimes        string  `json:"targetTimes,omitempty" yaml:"target_times,omitempty"`
	Notes              string  `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// RestDay returns a zero-volume rest day for the given index.
func RestDay(day int) GeneratedDay {
	return GeneratedDay{
		Day:                day,
		SessionDescription: "Repos",
		SessionType:        SessionTypeRest,
	}
}

// Volumes returns the day's figures as a VolumeAllocation.
func (d GeneratedDay) Volumes() VolumeAllocation {
	return VolumeAllocation{
		Day:     d.Day,
		Zone1Km: d.Zone1Km,
		Zone2Km: d.Zone2Km,
		Zone3Km: d.Zone3Km,
		SpeedKm: d.SpeedKm,
		TotalKm: d.TotalKm,
	}
}

// SetVolumes copies normalized figures from an allocation onto the day.
func (d *GeneratedDay) SetVolumes(v VolumeAllocation) {
	v = v.Normalize()
	d.Zone1Km = v.Zone1Km
	d.Zone2Km = v.Zone2Km
	d.Zone3Km = v.Zone3Km
	d.SpeedKm = v.SpeedKm
	d.TotalKm = v.TotalKm
}

// AddNote appends a note, separating existing notes with "; ".
func (d *GeneratedDay) AddNote(note string) {
	note = strings.TrimSpace(note)
	if note == "" {
		return
	}
	if d.Notes == "" {
		d.Notes = note
		return
	}
	d.Notes += "; " + note
}

// GeneratedPlan is the artifact returned to the caller.
type GeneratedPlan struct {
	Objective string         `json:"objective" yaml:"objective"`
	Days      []GeneratedDay `json:"days" yaml:"days"`
}

// TotalVolume returns the weekly distance in km.
func (p *GeneratedPlan) TotalVolume() float64 {
	var total float64
	for _, d := range p.Days {
		total += d.TotalKm
	}
	return Round(total, 2)
}

// RestDays counts days with no volume or tagged as rest.
func (p *GeneratedPlan) RestDays() int {
	n := 0
	for _, d := range p.Days {
		if d.SessionType == SessionTypeRest || d.TotalKm == 0 {
			n++
		}
	}
	return n
}

// Normalize enforces the plan invariants: one entry per day index 0..6,
// missing days filled with rest days, out-of-range and duplicate indices
// dropped (first occurrence wins), figures coerced and days sorted.
func (p *GeneratedPlan) Normalize() {
	byDay := make(map[int]GeneratedDay, DaysPerWeek)
	for _, d := range p.Days {
		if d.Day < 0 || d.Day >= DaysPerWeek {
			continue
		}
		if _, seen := byDay[d.Day]; seen {
			continue
		}
		d.SetVolumes(d.Volumes())
		if d.SessionType == "" {
			d.SessionType = SessionTypeRest
			if d.TotalKm > 0 {
				d.SessionType = "endurance"
			}
		}
		byDay[d.Day] = d
	}

	days := make([]GeneratedDay, 0, DaysPerWeek)
	for i := 0; i < DaysPerWeek; i++ {
		if d, ok := byDay[i]; ok {
			days = append(days, d)
			continue
		}
		days = append(days, RestDay(i))
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Day < days[j].Day })
	p.Days = days
}

// CheckDays verifies the plan holds exactly the indices 0..6 once each.
func (p *GeneratedPlan) CheckDays() error {
	if len(p.Days) != DaysPerWeek {
		return fmt.Errorf("expected %d days, got %d", DaysPerWeek, len(p.Days))
	}
	return CheckDayIndices(len(p.Days), func(i int) int { return p.Days[i].Day })
}

// CheckDayIndices verifies n entries carry each index 0..6 exactly once.
func CheckDayIndices(n int, dayAt func(i int) int) error {
	if n != DaysPerWeek {
		return fmt.Errorf("expected %d days, got %d", DaysPerWeek, n)
	}
	seen := make(map[int]bool, DaysPerWeek)
	for i := 0; i < n; i++ {
		d := dayAt(i)
		if d < 0 || d >= DaysPerWeek {
			return fmt.Errorf("day index %d out of range 0-6", d)
		}
		if seen[d] {
			return fmt.Errorf("duplicate day index %d", d)
		}
		seen[d] = true
	}
	return nil
}

// Float coerces any JSON-ish value to a finite, non-negative number.
// Missing, unparsable, NaN, infinite and negative values all become 0.
func Float(v any) float64 {
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}

// Int coerces any JSON-ish value to an int, returning 0 when invalid.
func Int(v any) int {
	i, err := cast.ToIntE(v)
	if err != nil {
		if f := Float(v); f > 0 {
			return int(math.Round(f))
		}
		return 0
	}
	return i
}

// Round rounds to the given number of decimals.
func Round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

// NormalizePercentages rescales a zone mix proportionally so it sums to 100
// when the raw sum deviates by more than threshold points. A zero mix is
// returned unchanged.
func NormalizePercentages(m ZoneMix, threshold float64) ZoneMix {
	m = ZoneMix{Z1: Float(m.Z1), Z2: Float(m.Z2), Z3: Float(m.Z3), Speed: Float(m.Speed)}
	sum := m.Sum()
	if sum == 0 || math.Abs(sum-100) <= threshold {
		return m
	}
	scale := 100 / sum
	return ZoneMix{
		Z1:    Round(m.Z1*scale, 1),
		Z2:    Round(m.Z2*scale, 1),
		Z3:    Round(m.Z3*scale, 1),
		Speed: Round(m.Speed*scale, 1),
	}
}

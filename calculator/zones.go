package calculator

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/c360studio/semcoach/training"
)

// Session types recognised in terse descriptions.
const (
	SessionEndurance   = "endurance"
	SessionThreshold   = "threshold"
	SessionVMA         = "vma"
	SessionInterval    = "interval"
	SessionSpeed       = "speed"
	SessionStrength    = "strength"
	SessionCompetition = "competition"
	SessionRest        = training.SessionTypeRest
)

const (
	// WarmUpKm and CoolDownKm are added in zone 1 around every quality session.
	WarmUpKm   = 3.0
	CoolDownKm = 2.0

	// DefaultVMA is used when the athlete has no measured VMA, in km/h.
	DefaultVMA = 15.0

	// shortRepKm is the longest repetition counted as pure speed work.
	shortRepKm = 0.2
)

// Paces holds athlete-specific reference paces in min/km.
type Paces struct {
	VMA           float64 `json:"vma"`
	EndurancePace float64 `json:"endurancePace"`
	ThresholdPace float64 `json:"thresholdPace"`
	VMAPace       float64 `json:"vmaPace"`
}

// DefaultPaces derives reference paces from a VMA in km/h: endurance at 65%,
// threshold at 85% and VMA pace at 100%.
func DefaultPaces(vma float64) Paces {
	if vma <= 0 {
		vma = DefaultVMA
	}
	return Paces{
		VMA:           vma,
		EndurancePace: paceFor(vma * 0.65),
		ThresholdPace: paceFor(vma * 0.85),
		VMAPace:       paceFor(vma),
	}
}

func paceFor(kmh float64) float64 {
	if kmh <= 0 {
		return 0
	}
	return 60 / kmh
}

func speedFor(pace float64) float64 {
	if pace <= 0 {
		return 0
	}
	return 60 / pace
}

// filled returns paces with any missing field derived from the VMA.
func (p Paces) filled() Paces {
	d := DefaultPaces(p.VMA)
	if p.VMA <= 0 {
		p.VMA = d.VMA
	}
	if p.EndurancePace <= 0 {
		p.EndurancePace = d.EndurancePace
	}
	if p.ThresholdPace <= 0 {
		p.ThresholdPace = d.ThresholdPace
	}
	if p.VMAPace <= 0 {
		p.VMAPace = d.VMAPace
	}
	return p
}

// Describe renders the paces as "m:ss/km" strings for prompts.
func (p Paces) Describe() string {
	p = p.filled()
	return fmt.Sprintf("EF %s, seuil %s, VMA %s (VMA %.1f km/h)",
		formatPace(p.EndurancePace), formatPace(p.ThresholdPace), formatPace(p.VMAPace), p.VMA)
}

func formatPace(pace float64) string {
	total := int(pace*60 + 0.5)
	return fmt.Sprintf("%d:%02d/km", total/60, total%60)
}

// Zone is one of the four intensity buckets.
type Zone int

const (
	Zone1 Zone = iota + 1
	Zone2
	Zone3
	ZoneSpeed
)

// Block is one quantity found in a description, e.g. "6x1000m" or "45min".
type Block struct {
	Reps       int
	DistanceKm float64
	Minutes    float64
	Zone       Zone
}

// SessionSpec is the parsed form of a terse description.
type SessionSpec struct {
	Type    string
	Quality bool
	Blocks  []Block
}

var (
	repPattern      = regexp.MustCompile(`(\d+)\s*[x×]\s*(\d+(?:[.,]\d+)?)\s*(km|min|mn|m|sec|s|'|")?`)
	distancePattern = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*km\b`)
	durationPattern = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*(?:min|mn|')`)
	hourPattern     = regexp.MustCompile(`(\d+)\s*h\s*(\d+)?`)
)

type keywordRule struct {
	sessionType string
	keywords    []string
}

// Ordered by precedence: a "repos" day wins over anything else mentioned.
var keywordRules = []keywordRule{
	{SessionRest, []string{"repos", "rest", "off"}},
	{SessionCompetition, []string{"competition", "course", "race", "compet"}},
	{SessionVMA, []string{"vma"}},
	{SessionThreshold, []string{"seuil", "threshold", "tempo", "allure marathon", "as10", "as21", "as42"}},
	{SessionInterval, []string{"fractionne", "interval", "fartlek", "cotes", "hill"}},
	{SessionSpeed, []string{"sprint", "vitesse", "lignes droites", "speed"}},
	{SessionStrength, []string{"renfo", "muscu", "strength", "ppg", "gainage"}},
	{SessionEndurance, []string{"ef", "endurance", "footing", "sortie longue", "sl", "recup", "easy"}},
}

// DetectSessionType pattern-matches the session keywords of a description.
// Descriptions with repetitions and no keyword are treated as intervals;
// anything else defaults to endurance.
func DetectSessionType(description string) string {
	text := fold(description)
	words := tokenSet(text)
	for _, rule := range keywordRules {
		for _, kw := range rule.keywords {
			if strings.Contains(kw, " ") {
				if strings.Contains(text, kw) {
					return rule.sessionType
				}
				continue
			}
			if words[kw] || (len(kw) > 3 && strings.Contains(text, kw)) {
				return rule.sessionType
			}
		}
	}
	if repPattern.MatchString(text) {
		return SessionInterval
	}
	if strings.TrimSpace(text) == "" {
		return SessionRest
	}
	return SessionEndurance
}

// IsQuality reports whether a session type gets a warm-up and cool-down.
func IsQuality(sessionType string) bool {
	switch sessionType {
	case SessionThreshold, SessionVMA, SessionInterval, SessionSpeed, SessionCompetition:
		return true
	}
	return false
}

// ParseSession extracts the session type and its quantity blocks.
func ParseSession(description string) SessionSpec {
	text := fold(description)
	spec := SessionSpec{Type: DetectSessionType(description)}
	spec.Quality = IsQuality(spec.Type)
	if spec.Type == SessionRest {
		return spec
	}

	workZone := workZoneFor(spec.Type)

	for _, m := range repPattern.FindAllStringSubmatch(text, -1) {
		reps, _ := strconv.Atoi(m[1])
		amount := parseNumber(m[2])
		b := Block{Reps: reps, Zone: workZone}
		switch m[3] {
		case "km":
			b.DistanceKm = amount
		case "m", "":
			b.DistanceKm = amount / 1000
		case "min", "mn", "'":
			b.Minutes = amount
		case "s", "sec", "\"":
			b.Minutes = amount / 60
		}
		if spec.Type == SessionInterval && b.DistanceKm > 0 && b.DistanceKm <= shortRepKm {
			b.Zone = ZoneSpeed
		}
		spec.Blocks = append(spec.Blocks, b)
	}

	// Quantities outside repetition tokens describe continuous running.
	rest := repPattern.ReplaceAllString(text, " ")
	plainZone := Zone1
	if spec.Quality && len(spec.Blocks) == 0 {
		plainZone = workZone
	}
	for _, m := range distancePattern.FindAllStringSubmatch(rest, -1) {
		spec.Blocks = append(spec.Blocks, Block{Reps: 1, DistanceKm: parseNumber(m[1]), Zone: plainZone})
	}
	rest = distancePattern.ReplaceAllString(rest, " ")
	if m := hourPattern.FindStringSubmatch(rest); m != nil {
		h, _ := strconv.Atoi(m[1])
		mins := 0
		if m[2] != "" {
			mins, _ = strconv.Atoi(m[2])
		}
		spec.Blocks = append(spec.Blocks, Block{Reps: 1, Minutes: float64(h*60 + mins), Zone: plainZone})
		rest = hourPattern.ReplaceAllString(rest, " ")
	}
	for _, m := range durationPattern.FindAllStringSubmatch(rest, -1) {
		spec.Blocks = append(spec.Blocks, Block{Reps: 1, Minutes: parseNumber(m[1]), Zone: plainZone})
	}

	return spec
}

func workZoneFor(sessionType string) Zone {
	switch sessionType {
	case SessionThreshold:
		return Zone2
	case SessionVMA, SessionInterval, SessionCompetition:
		return Zone3
	case SessionSpeed:
		return ZoneSpeed
	default:
		return Zone1
	}
}

// SessionZones converts a terse description into per-zone distances using
// the athlete's paces. Quality sessions get WarmUpKm and CoolDownKm in zone 1.
func SessionZones(day int, description string, paces Paces) training.VolumeAllocation {
	return Allocate(day, ParseSession(description), paces)
}

// Allocate converts a parsed session into per-zone distances.
func Allocate(day int, spec SessionSpec, paces Paces) training.VolumeAllocation {
	paces = paces.filled()
	v := training.VolumeAllocation{Day: day}
	if spec.Type == SessionRest {
		return v
	}

	for _, b := range spec.Blocks {
		km := b.DistanceKm
		if km == 0 && b.Minutes > 0 {
			km = b.Minutes / 60 * zoneSpeed(b.Zone, paces)
		}
		km *= float64(max(b.Reps, 1))
		switch b.Zone {
		case Zone2:
			v.Zone2Km += km
		case Zone3:
			v.Zone3Km += km
		case ZoneSpeed:
			v.SpeedKm += km
		default:
			v.Zone1Km += km
		}
	}

	if spec.Quality {
		v.Zone1Km += WarmUpKm + CoolDownKm
	}
	v.TotalKm = v.ZoneSum()
	return v.Normalize()
}

func zoneSpeed(z Zone, p Paces) float64 {
	switch z {
	case Zone2:
		return speedFor(p.ThresholdPace)
	case Zone3:
		return speedFor(p.VMAPace)
	case ZoneSpeed:
		return p.VMA * 1.1
	default:
		return speedFor(p.EndurancePace)
	}
}

func parseNumber(s string) float64 {
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return 0
	}
	return f
}

func fold(s string) string {
	r := strings.NewReplacer("é", "e", "è", "e", "ê", "e", "à", "a", "â", "a", "ô", "o", "û", "u", "ç", "c", "’", "'")
	return r.Replace(strings.ToLower(s))
}

func tokenSet(text string) map[string]bool {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

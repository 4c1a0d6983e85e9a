package agent

import (
	"errors"
	"sort"

	"github.com/c360studio/semcoach/agent/prompts"
	"github.com/c360studio/semcoach/calculator"
	"github.com/c360studio/semcoach/llm"
	"github.com/c360studio/semcoach/training"
)

// AllocationInput is the input of the volume allocator.
type AllocationInput struct {
	Request   training.GenerationRequest
	Structure training.WeekStructure
	Sessions  []training.SessionDesign
	Targets   calculator.Targets
}

// VolumeAllocator splits each session's distance across the four zones.
type VolumeAllocator = Agent[AllocationInput, []training.VolumeAllocation]

var allocationSchema = compileSchema(`{
  "type": "object",
  "required": ["allocations"],
  "properties": {
    "allocations": {
      "type": "array",
      "items": {"type": "object"}
    }
  }
}`)

// NewVolumeAllocator creates the fourth-stage agent. The prompt is seeded
// with the session zone calculator's estimate for every day.
func NewVolumeAllocator(gateway llm.Gateway, opts ...Option) *VolumeAllocator {
	return New(gateway, Spec[AllocationInput, []training.VolumeAllocation]{
		Name:        RoleVolumeAllocator,
		Temperature: 0.1,
		System:      prompts.VolumeAllocatorSystemPrompt(),
		Prompt: func(in AllocationInput) (string, error) {
			if len(in.Sessions) == 0 {
				return "", errors.New("no sessions to allocate")
			}
			return prompts.VolumeAllocatorUserPrompt(in.Structure, in.Sessions, EstimateAllocations(in.Request, in.Sessions), in.Targets), nil
		},
		Parse:            ParseAllocations,
		CorrectionPrompt: true,
		Keys:             []string{"allocations"},
	}, opts...)
}

// EstimateAllocations runs the session zone calculator over each session
// with the athlete's paces.
func EstimateAllocations(req training.GenerationRequest, sessions []training.SessionDesign) []training.VolumeAllocation {
	paces := calculator.DefaultPaces(req.VMA)
	out := make([]training.VolumeAllocation, len(sessions))
	for i, s := range sessions {
		out[i] = calculator.SessionZones(s.Day, s.ShortDescription, paces)
	}
	return out
}

// ParseAllocations reads an allocation reply. Figures are coerced and a
// total that disagrees with the zone sum is recomputed.
func ParseAllocations(raw string) ([]training.VolumeAllocation, error) {
	m, err := decodeObject(raw, allocationSchema, "allocations")
	if err != nil {
		return nil, err
	}

	items := objList(m, "allocations")
	allocs := make([]training.VolumeAllocation, 0, len(items))
	for _, item := range items {
		allocs = append(allocs, training.VolumeAllocation{
			Day:     dayIndex(item, "day", "dayOfWeek"),
			Zone1Km: num(item, "zone1Km", "zone1", "z1"),
			Zone2Km: num(item, "zone2Km", "zone2", "z2"),
			Zone3Km: num(item, "zone3Km", "zone3", "z3"),
			SpeedKm: num(item, "speedKm", "speed"),
			TotalKm: num(item, "totalKm", "total"),
		}.Normalize())
	}
	if err := checkDays(len(allocs), func(i int) int { return allocs[i].Day }); err != nil {
		return nil, err
	}
	sort.Slice(allocs, func(i, j int) bool { return allocs[i].Day < allocs[j].Day })
	return allocs, nil
}

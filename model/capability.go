// Package model provides capability-based model selection for the generation
// stages. Agents ask for a capability (analysis, planning, composing) and the
// registry resolves it to configured endpoints with a fallback chain.
package model

// Capability represents a semantic capability for model selection.
type Capability string

const (
	// CapabilityAnalysis is for reading load figures and history into a profile.
	CapabilityAnalysis Capability = "analysis"

	// CapabilityPlanning is for laying out the shape of the week.
	CapabilityPlanning Capability = "planning"

	// CapabilityComposing is for writing terse session descriptions.
	CapabilityComposing Capability = "composing"

	// CapabilityAllocating is for numeric distance allocation.
	CapabilityAllocating Capability = "allocating"

	// CapabilityReviewing is for plan quality review.
	CapabilityReviewing Capability = "reviewing"

	// CapabilityFast is for single-shot generation and short answers.
	CapabilityFast Capability = "fast"
)

// RoleCapabilities maps agent roles to their default capability.
var RoleCapabilities = map[string]Capability{
	"context_analyzer":  CapabilityAnalysis,
	"structure_planner": CapabilityPlanning,
	"session_composer":  CapabilityComposing,
	"volume_allocator":  CapabilityAllocating,
	"quality_validator": CapabilityReviewing,
	"fallback":          CapabilityFast,
	"advisor":           CapabilityFast,
}

// CapabilityForRole returns the default capability for a given role.
// Returns CapabilityFast for unknown roles.
func CapabilityForRole(role string) Capability {
	if cap, ok := RoleCapabilities[role]; ok {
		return cap
	}
	return CapabilityFast
}

// IsValid checks if a capability string is a known capability.
func (c Capability) IsValid() bool {
	switch c {
	case CapabilityAnalysis, CapabilityPlanning, CapabilityComposing,
		CapabilityAllocating, CapabilityReviewing, CapabilityFast:
		return true
	}
	return false
}

// String returns the string representation of the capability.
func (c Capability) String() string {
	return string(c)
}

// ParseCapability converts a string to a Capability, returning empty for invalid values.
func ParseCapability(s string) Capability {
	cap := Capability(s)
	if cap.IsValid() {
		return cap
	}
	return ""
}

// AllCapabilities lists every known capability in stage order.
func AllCapabilities() []Capability {
	return []Capability{
		CapabilityAnalysis, CapabilityPlanning, CapabilityComposing,
		CapabilityAllocating, CapabilityReviewing, CapabilityFast,
	}
}

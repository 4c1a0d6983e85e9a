package plangenerator

import (
	"fmt"

	"github.com/c360studio/semstreams/component"
)

// RegistryInterface defines the minimal interface needed for registration.
type RegistryInterface interface {
	RegisterWithConfig(component.RegistrationConfig) error
}

// Register registers the plan-generator component with the given registry.
func Register(registry RegistryInterface) error {
	if registry == nil {
		return fmt.Errorf("registry cannot be nil")
	}
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        componentName,
		Factory:     NewComponent,
		Schema:      planGeneratorSchema,
		Type:        "processor",
		Protocol:    "coach",
		Domain:      "semcoach",
		Description: "Generates weekly training plans through the staged LLM pipeline",
		Version:     "0.1.0",
	})
}

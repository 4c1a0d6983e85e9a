package config

import (
	"fmt"

	"github.com/c360studio/semcoach/model"
)

// PrimaryEndpoint is the endpoint name used when the backend section
// describes a single model.
const PrimaryEndpoint = "primary"

// Registry builds the model registry injected into the generation gateway.
// A registry file takes precedence; otherwise every capability resolves to
// the single backend endpoint.
func (c *Config) Registry() (*model.Registry, error) {
	if c.Backend.RegistryFile != "" {
		reg, err := model.LoadFromFile(c.Backend.RegistryFile)
		if err != nil {
			return nil, fmt.Errorf("load registry file: %w", err)
		}
		if err := reg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid registry file %s: %w", c.Backend.RegistryFile, err)
		}
		return reg, nil
	}

	if c.Backend.Model == "" {
		return model.NewDefaultRegistry(), nil
	}

	caps := make(map[model.Capability]*model.CapabilityConfig)
	for _, cap := range model.AllCapabilities() {
		caps[cap] = &model.CapabilityConfig{
			Description: "Configured backend",
			Preferred:   []string{PrimaryEndpoint},
		}
	}
	reg := model.NewRegistry(caps, map[string]*model.EndpointConfig{
		PrimaryEndpoint: {
			Provider: c.Backend.Provider,
			URL:      c.Backend.URL,
			Model:    c.Backend.Model,
		},
	})
	reg.SetDefault(PrimaryEndpoint)
	return reg, nil
}

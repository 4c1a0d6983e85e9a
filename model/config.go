package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// RegistryConfig is the on-disk form of a registry: the file named by
// backend.registry_file in semcoach.yaml. Files ending in .yaml or .yml are
// read as YAML, anything else as JSON.
type RegistryConfig struct {
	Capabilities map[string]*CapabilityConfig `json:"capabilities" yaml:"capabilities"`
	Endpoints    map[string]*EndpointConfig   `json:"endpoints" yaml:"endpoints"`
	Defaults     *DefaultsConfig              `json:"defaults,omitempty" yaml:"defaults,omitempty"`
	Health       *HealthFileConfig            `json:"health,omitempty" yaml:"health,omitempty"`
}

// HealthFileConfig overrides DefaultHealthPolicy. Unset fields keep the
// default.
type HealthFileConfig struct {
	DemoteAfter *int   `json:"demote_after,omitempty" yaml:"demote_after,omitempty"`
	Cooldown    string `json:"cooldown,omitempty" yaml:"cooldown,omitempty"`
}

// Policy merges the overrides onto DefaultHealthPolicy.
func (h *HealthFileConfig) Policy() (HealthPolicy, error) {
	policy := DefaultHealthPolicy()
	if h == nil {
		return policy, nil
	}
	if h.DemoteAfter != nil {
		if *h.DemoteAfter < 0 {
			return policy, fmt.Errorf("health.demote_after must not be negative, got %d", *h.DemoteAfter)
		}
		policy.DemoteAfter = *h.DemoteAfter
	}
	if h.Cooldown != "" {
		d, err := time.ParseDuration(h.Cooldown)
		if err != nil {
			return policy, fmt.Errorf("health.cooldown: %w", err)
		}
		policy.Cooldown = d
	}
	return policy, nil
}

// LoadFromFile reads and validates a registry file.
func LoadFromFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadFromYAML(data)
	default:
		return LoadFromJSON(data)
	}
}

// LoadFromJSON parses and validates a JSON registry.
func LoadFromJSON(data []byte) (*Registry, error) {
	var cfg RegistryConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse registry json: %w", err)
	}
	return cfg.Build()
}

// LoadFromYAML parses and validates a YAML registry.
func LoadFromYAML(data []byte) (*Registry, error) {
	var cfg RegistryConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse registry yaml: %w", err)
	}
	return cfg.Build()
}

// Build turns the file form into a registry. Unknown capability names,
// endpoints without a provider or model, and dangling model references are
// all reported in one error.
func (cfg *RegistryConfig) Build() (*Registry, error) {
	var result *multierror.Error

	if len(cfg.Capabilities) == 0 {
		result = multierror.Append(result, fmt.Errorf("no capabilities configured"))
	}
	caps := make(map[Capability]*CapabilityConfig, len(cfg.Capabilities))
	for name, c := range cfg.Capabilities {
		cap := ParseCapability(name)
		if cap == "" {
			result = multierror.Append(result, fmt.Errorf("unknown capability %q", name))
			continue
		}
		if c == nil || len(c.Preferred)+len(c.Fallback) == 0 {
			result = multierror.Append(result, fmt.Errorf("capability %s: no models listed", cap))
			continue
		}
		caps[cap] = c
	}

	endpoints := make(map[string]*EndpointConfig, len(cfg.Endpoints))
	for name, ep := range cfg.Endpoints {
		if ep == nil || ep.Provider == "" || ep.Model == "" {
			result = multierror.Append(result, fmt.Errorf("endpoint %s: provider and model are required", name))
			continue
		}
		endpoints[name] = ep
	}

	policy, err := cfg.Health.Policy()
	if err != nil {
		result = multierror.Append(result, err)
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}

	r := NewRegistry(caps, endpoints)
	if cfg.Defaults != nil && cfg.Defaults.Model != "" {
		r.SetDefault(cfg.Defaults.Model)
	} else {
		r.SetDefault(defaultModel(caps))
	}
	r.SetHealthPolicy(policy)

	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// defaultModel picks the fast capability's first model, else the first
// model of the earliest configured stage.
func defaultModel(caps map[Capability]*CapabilityConfig) string {
	order := append([]Capability{CapabilityFast}, AllCapabilities()...)
	for _, cap := range order {
		c, ok := caps[cap]
		if !ok {
			continue
		}
		if chain := append(append([]string{}, c.Preferred...), c.Fallback...); len(chain) > 0 {
			return chain[0]
		}
	}
	return ""
}

// Package config provides configuration loading and management for semcoach.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete semcoach configuration
type Config struct {
	Backend  BackendConfig  `yaml:"backend"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	NATS     NATSConfig     `yaml:"nats"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
}

// BackendConfig selects the generation backend.
type BackendConfig struct {
	// Provider is the backend adapter: ollama, openai or anthropic.
	Provider string `yaml:"provider" env:"SEMCOACH_PROVIDER"`
	// URL is the API base URL. Empty uses the provider default.
	URL string `yaml:"url" env:"SEMCOACH_BACKEND_URL"`
	// Model is the model identifier sent to the provider.
	Model string `yaml:"model" env:"SEMCOACH_MODEL"`
	// Temperature, when non-zero, overrides every agent's sampling
	// temperature (0.0-1.0). Zero keeps the per-agent defaults.
	Temperature float64 `yaml:"temperature" env:"SEMCOACH_TEMPERATURE"`
	// Timeout is the maximum time to wait for one backend response
	Timeout time.Duration `yaml:"timeout" env:"SEMCOACH_TIMEOUT"`
	// RegistryFile is an optional JSON or YAML model registry. When set it replaces
	// the single endpoint described above.
	RegistryFile string `yaml:"registry_file" env:"SEMCOACH_REGISTRY_FILE"`
}

// PipelineConfig tunes the generation pipeline.
type PipelineConfig struct {
	// MaxRetries is the number of attempts per stage.
	MaxRetries int `yaml:"max_retries" env:"SEMCOACH_MAX_RETRIES"`
	// Backoff is the linear backoff unit between stage attempts.
	Backoff time.Duration `yaml:"backoff" env:"SEMCOACH_BACKOFF"`
	// FallbackBackoff is the backoff unit of the single-shot fallback.
	FallbackBackoff time.Duration `yaml:"fallback_backoff" env:"SEMCOACH_FALLBACK_BACKOFF"`
	// MaxDescriptionLen caps session descriptions, in characters.
	MaxDescriptionLen int `yaml:"max_description_len" env:"SEMCOACH_MAX_DESCRIPTION_LEN"`
	// DisableFallback skips the single-shot generator when the pipeline fails.
	DisableFallback bool `yaml:"disable_fallback" env:"SEMCOACH_DISABLE_FALLBACK"`
}

// NATSConfig configures the NATS connection
type NATSConfig struct {
	// URL is the NATS server URL. Empty disables NATS features.
	URL string `yaml:"url" env:"SEMCOACH_NATS_URL"`
	// RecordCalls stores every generation call in the LLM_CALLS bucket.
	RecordCalls bool `yaml:"record_calls" env:"SEMCOACH_RECORD_CALLS"`
	// Workers is the number of concurrent plan generations in serve mode.
	Workers int `yaml:"workers" env:"SEMCOACH_WORKERS"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address for /metrics. Empty disables it.
	Addr string `yaml:"addr" env:"SEMCOACH_METRICS_ADDR"`
}

// LogConfig configures log output.
type LogConfig struct {
	Level string `yaml:"level" env:"SEMCOACH_LOG_LEVEL"`
	// File, when set, receives logs with size-based rotation.
	File       string `yaml:"file" env:"SEMCOACH_LOG_FILE"`
	MaxSizeMB  int    `yaml:"max_size_mb" env:"SEMCOACH_LOG_MAX_SIZE"`
	MaxBackups int    `yaml:"max_backups" env:"SEMCOACH_LOG_MAX_BACKUPS"`
	MaxAgeDays int    `yaml:"max_age_days" env:"SEMCOACH_LOG_MAX_AGE"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			Provider: "ollama",
			URL:      "http://localhost:11434/v1",
			Model:    "qwen2.5:14b",
			Timeout:  3 * time.Minute,
		},
		Pipeline: PipelineConfig{
			MaxRetries:        3,
			Backoff:           time.Second,
			FallbackBackoff:   2 * time.Second,
			MaxDescriptionLen: 80,
		},
		NATS: NATSConfig{
			Workers: 2,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  20,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
	}
}

var knownProviders = map[string]bool{"ollama": true, "openai": true, "anthropic": true}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Backend.RegistryFile == "" {
		if !knownProviders[c.Backend.Provider] {
			return fmt.Errorf("backend.provider must be one of ollama, openai, anthropic (got %q)", c.Backend.Provider)
		}
		if c.Backend.Model == "" {
			return fmt.Errorf("backend.model is required")
		}
	}
	if c.Backend.Temperature < 0 || c.Backend.Temperature > 1 {
		return fmt.Errorf("backend.temperature must be between 0 and 1")
	}
	if c.Backend.Timeout < 0 {
		return fmt.Errorf("backend.timeout must not be negative")
	}
	if c.Pipeline.MaxRetries < 1 {
		return fmt.Errorf("pipeline.max_retries must be at least 1")
	}
	if c.Pipeline.Backoff < 0 || c.Pipeline.FallbackBackoff < 0 {
		return fmt.Errorf("pipeline backoff must not be negative")
	}
	if c.Pipeline.MaxDescriptionLen < 10 {
		return fmt.Errorf("pipeline.max_description_len must be at least 10")
	}
	if c.NATS.Workers < 1 {
		return fmt.Errorf("nats.workers must be at least 1")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Backend
	if other.Backend.Provider != "" {
		c.Backend.Provider = other.Backend.Provider
	}
	if other.Backend.URL != "" {
		c.Backend.URL = other.Backend.URL
	}
	if other.Backend.Model != "" {
		c.Backend.Model = other.Backend.Model
	}
	if other.Backend.Temperature != 0 {
		c.Backend.Temperature = other.Backend.Temperature
	}
	if other.Backend.Timeout != 0 {
		c.Backend.Timeout = other.Backend.Timeout
	}
	if other.Backend.RegistryFile != "" {
		c.Backend.RegistryFile = other.Backend.RegistryFile
	}

	// Pipeline
	if other.Pipeline.MaxRetries != 0 {
		c.Pipeline.MaxRetries = other.Pipeline.MaxRetries
	}
	if other.Pipeline.Backoff != 0 {
		c.Pipeline.Backoff = other.Pipeline.Backoff
	}
	if other.Pipeline.FallbackBackoff != 0 {
		c.Pipeline.FallbackBackoff = other.Pipeline.FallbackBackoff
	}
	if other.Pipeline.MaxDescriptionLen != 0 {
		c.Pipeline.MaxDescriptionLen = other.Pipeline.MaxDescriptionLen
	}
	if other.Pipeline.DisableFallback {
		c.Pipeline.DisableFallback = true
	}

	// NATS
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}
	if other.NATS.RecordCalls {
		c.NATS.RecordCalls = true
	}
	if other.NATS.Workers != 0 {
		c.NATS.Workers = other.NATS.Workers
	}

	// Metrics
	if other.Metrics.Addr != "" {
		c.Metrics.Addr = other.Metrics.Addr
	}

	// Log
	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}
	if other.Log.File != "" {
		c.Log.File = other.Log.File
	}
	if other.Log.MaxSizeMB != 0 {
		c.Log.MaxSizeMB = other.Log.MaxSizeMB
	}
	if other.Log.MaxBackups != 0 {
		c.Log.MaxBackups = other.Log.MaxBackups
	}
	if other.Log.MaxAgeDays != 0 {
		c.Log.MaxAgeDays = other.Log.MaxAgeDays
	}
}

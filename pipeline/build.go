package pipeline

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/c360studio/semcoach/agent"
	"github.com/c360studio/semcoach/config"
	"github.com/c360studio/semcoach/llm"
)

// ConfigOptions translates the pipeline section of the configuration.
func ConfigOptions(cfg *config.Config) []Option {
	agentOpts := []agent.Option{
		agent.WithMaxRetries(cfg.Pipeline.MaxRetries),
		agent.WithBackoff(cfg.Pipeline.Backoff),
	}
	if cfg.Backend.Temperature > 0 {
		agentOpts = append(agentOpts, agent.WithTemperature(cfg.Backend.Temperature))
	}

	opts := []Option{
		WithAgentOptions(agentOpts...),
		WithFallbackOptions(agent.WithBackoff(cfg.Pipeline.FallbackBackoff)),
		WithMaxDescriptionLen(cfg.Pipeline.MaxDescriptionLen),
	}
	if cfg.Pipeline.DisableFallback {
		opts = append(opts, WithoutFallback())
	}
	return opts
}

// NewClient builds the generation gateway described by cfg. store may be
// nil.
func NewClient(cfg *config.Config, logger *slog.Logger, store *llm.CallStore) (*llm.Client, error) {
	registry, err := cfg.Registry()
	if err != nil {
		return nil, fmt.Errorf("build model registry: %w", err)
	}

	opts := []llm.ClientOption{llm.WithLogger(logger)}
	if cfg.Backend.Timeout > 0 {
		opts = append(opts, llm.WithHTTPClient(&http.Client{Timeout: cfg.Backend.Timeout}))
	}
	if store != nil {
		opts = append(opts, llm.WithCallStore(store))
	}
	return llm.NewClient(registry, opts...), nil
}

// NewGeneratorFromConfig wires a Generator over the configured backend.
// Extra options are applied after the configuration.
func NewGeneratorFromConfig(cfg *config.Config, logger *slog.Logger, store *llm.CallStore, extra ...Option) (*Generator, error) {
	client, err := NewClient(cfg, logger, store)
	if err != nil {
		return nil, err
	}
	opts := append([]Option{WithLogger(logger)}, ConfigOptions(cfg)...)
	return NewGenerator(client, append(opts, extra...)...), nil
}

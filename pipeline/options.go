package pipeline

import (
	"log/slog"

	"github.com/c360studio/semcoach/agent"
)

type settings struct {
	logger          *slog.Logger
	metrics         *Metrics
	agentOpts       []agent.Option
	fallbackOpts    []agent.Option
	maxDescLen      int
	disableFallback bool
}

// Option configures an Orchestrator or a Generator.
type Option func(*settings)

// WithLogger sets the logger shared by the run and its agents.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *Metrics) Option {
	return func(s *settings) {
		s.metrics = m
	}
}

// WithAgentOptions applies options to every stage agent and the fallback.
// A backoff set here does not reach the fallback, which keeps
// agent.DefaultFallbackBackoff unless WithFallbackOptions says otherwise.
func WithAgentOptions(opts ...agent.Option) Option {
	return func(s *settings) {
		s.agentOpts = append(s.agentOpts, opts...)
	}
}

// WithFallbackOptions applies options to the fallback generator only,
// after those of WithAgentOptions.
func WithFallbackOptions(opts ...agent.Option) Option {
	return func(s *settings) {
		s.fallbackOpts = append(s.fallbackOpts, opts...)
	}
}

// WithMaxDescriptionLen bounds session descriptions, in runes.
func WithMaxDescriptionLen(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxDescLen = n
		}
	}
}

// WithoutFallback makes a Generator report staged failures directly.
func WithoutFallback() Option {
	return func(s *settings) {
		s.disableFallback = true
	}
}

func buildSettings(opts []Option) settings {
	s := settings{
		logger:     slog.Default(),
		maxDescLen: agent.DefaultMaxDescriptionLen,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// agentOptions returns the options for stage agents. The logger and
// observer come first so explicit agent options can override them.
func (s settings) agentOptions() []agent.Option {
	opts := []agent.Option{agent.WithLogger(s.logger)}
	if s.metrics != nil {
		opts = append(opts, agent.WithObserver(s.metrics))
	}
	return append(opts, s.agentOpts...)
}

// fallbackOptions restores DefaultFallbackBackoff after the shared agent
// options: only WithFallbackOptions changes the fallback's backoff unit.
func (s settings) fallbackOptions() []agent.Option {
	opts := append(s.agentOptions(), agent.WithBackoff(agent.DefaultFallbackBackoff))
	return append(opts, s.fallbackOpts...)
}

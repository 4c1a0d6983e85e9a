// Package agent implements the retrying generation agent and the specialised
// agents of the plan pipeline. An agent turns a typed input into a prompt,
// calls the generation gateway, sanitizes and validates the reply and
// retries with linear backoff until it gets a usable typed output.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/c360studio/semcoach/agent/prompts"
	"github.com/c360studio/semcoach/llm"
	"github.com/c360studio/semcoach/model"
)

const (
	// DefaultMaxRetries is the number of attempts per execution.
	DefaultMaxRetries = 3
	// DefaultBackoff is the linear backoff unit: attempt n waits n × DefaultBackoff.
	DefaultBackoff = time.Second
	// DefaultMaxTokens bounds each reply.
	DefaultMaxTokens = 4096
)

// ErrExhausted is wrapped into the result error when every attempt failed.
var ErrExhausted = errors.New("retries exhausted")

// Observer is notified after every attempt. Implementations must be safe
// for concurrent use.
type Observer interface {
	ObserveAttempt(agent, outcome string, elapsed time.Duration)
}

// Result is the outcome of one execution. It never carries a panic and
// Execute never returns an error alongside it.
type Result[T any] struct {
	Success bool
	Data    T

	// Err is the failure cause, nil on success. Error is its message.
	Err   error
	Error string

	// RawResponse is the content of the last reply received.
	RawResponse string
	// Model is the backend model that produced the last reply.
	Model string

	Attempts int
	Duration time.Duration
}

// Spec describes what an agent asks for and how it reads the answer.
type Spec[In, Out any] struct {
	// Name is the agent role, e.g. "session_composer".
	Name string

	// Capability selects the backend. Empty uses the role's default.
	Capability model.Capability

	Temperature float64
	MaxTokens   int

	// System is the system prompt.
	System string

	// Prompt builds the user prompt. An error is fatal: it would fail the
	// same way on every attempt.
	Prompt func(in In) (string, error)

	// Parse turns the raw reply into the typed output. Untagged errors are
	// treated as invalid output.
	Parse func(raw string) (Out, error)

	// CorrectionPrompt appends the rejected reply and a format correction
	// turn to the conversation before the next attempt.
	CorrectionPrompt bool

	// Keys lists the expected top-level keys, quoted in correction turns.
	Keys []string

	// FreeText disables the backend's JSON mode for prose replies.
	FreeText bool
}

// Options tune the retry loop and its observability.
type Options struct {
	MaxRetries int
	Backoff    time.Duration
	Logger     *slog.Logger
	Observer   Observer

	// Temperature, when set, replaces the agent's own temperature.
	Temperature *float64
}

// Option configures an agent.
type Option func(*Options)

// WithMaxRetries sets the number of attempts. Values below 1 are ignored.
func WithMaxRetries(n int) Option {
	return func(o *Options) {
		if n >= 1 {
			o.MaxRetries = n
		}
	}
}

// WithBackoff sets the linear backoff unit.
func WithBackoff(d time.Duration) Option {
	return func(o *Options) {
		if d >= 0 {
			o.Backoff = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

// WithTemperature overrides the sampling temperature of the agent.
func WithTemperature(t float64) Option {
	return func(o *Options) {
		o.Temperature = &t
	}
}

// WithObserver attaches an attempt observer, typically pipeline metrics.
func WithObserver(obs Observer) Option {
	return func(o *Options) {
		o.Observer = obs
	}
}

func buildOptions(opts []Option) Options {
	o := Options{
		MaxRetries: DefaultMaxRetries,
		Backoff:    DefaultBackoff,
		Logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Agent is an immutable, concurrency-safe retrying generation agent.
type Agent[In, Out any] struct {
	spec    Spec[In, Out]
	gateway llm.Gateway
	opts    Options
	logger  *slog.Logger
}

// New creates an agent over a gateway.
func New[In, Out any](gateway llm.Gateway, spec Spec[In, Out], opts ...Option) *Agent[In, Out] {
	if spec.Capability == "" {
		spec.Capability = model.CapabilityForRole(spec.Name)
	}
	if spec.MaxTokens == 0 {
		spec.MaxTokens = DefaultMaxTokens
	}
	o := buildOptions(opts)
	return &Agent[In, Out]{
		spec:    spec,
		gateway: gateway,
		opts:    o,
		logger:  o.Logger.With("agent", spec.Name),
	}
}

// Name returns the agent role.
func (a *Agent[In, Out]) Name() string {
	return a.spec.Name
}

// Backoff returns the linear backoff unit.
func (a *Agent[In, Out]) Backoff() time.Duration {
	return a.opts.Backoff
}

// MaxRetries returns the configured number of attempts.
func (a *Agent[In, Out]) MaxRetries() int {
	return a.opts.MaxRetries
}

// Execute runs the retry loop. Transient and invalid failures are retried
// after Backoff × attempt; fatal failures and context cancellation stop the
// loop at once.
func (a *Agent[In, Out]) Execute(ctx context.Context, in In) Result[Out] {
	start := time.Now()
	var res Result[Out]
	finish := func(err error) Result[Out] {
		res.Duration = time.Since(start)
		if err != nil {
			res.Success = false
			res.Err = err
			res.Error = err.Error()
		}
		return res
	}

	user, err := a.buildPrompt(in)
	if err != nil {
		res.Attempts = 1
		a.observe("fatal", 0)
		a.logger.Error("Prompt build failed", "error", err)
		return finish(fmt.Errorf("%s: %w", a.spec.Name, err))
	}

	messages := []llm.Message{
		{Role: "system", Content: a.spec.System},
		{Role: "user", Content: user},
	}

	var lastErr error
	for attempt := 1; attempt <= a.opts.MaxRetries; attempt++ {
		res.Attempts = attempt
		attemptStart := time.Now()

		out, resp, err := a.attempt(ctx, messages)
		elapsed := time.Since(attemptStart)
		if resp != nil {
			res.RawResponse = resp.Content
			res.Model = resp.Model
		}

		if err == nil {
			a.observe("success", elapsed)
			a.logger.Debug("Agent attempt succeeded",
				"attempt", attempt,
				"elapsed", elapsed,
				"model", res.Model)
			res.Success = true
			res.Data = out
			return finish(nil)
		}

		lastErr = err
		kind := llm.Kind(err)
		a.observe(kind, elapsed)

		if llm.IsFatal(err) {
			a.logger.Error("Agent attempt failed with fatal error",
				"attempt", attempt,
				"elapsed", elapsed,
				"error", err)
			return finish(fmt.Errorf("%s: %w", a.spec.Name, err))
		}
		if ctx.Err() != nil {
			return finish(fmt.Errorf("%s: %w", a.spec.Name, ctx.Err()))
		}

		a.logger.Warn("Agent attempt failed",
			"attempt", attempt,
			"max_retries", a.opts.MaxRetries,
			"elapsed", elapsed,
			"outcome", kind,
			"error", err)

		if attempt == a.opts.MaxRetries {
			break
		}

		if a.spec.CorrectionPrompt && llm.IsInvalid(err) && res.RawResponse != "" {
			messages = append(messages,
				llm.Message{Role: "assistant", Content: res.RawResponse},
				llm.Message{Role: "user", Content: prompts.FormatCorrectionPrompt(err, a.spec.Keys)},
			)
		}

		if err := sleep(ctx, a.opts.Backoff*time.Duration(attempt)); err != nil {
			return finish(fmt.Errorf("%s: %w", a.spec.Name, err))
		}
	}

	return finish(fmt.Errorf("%s: %w after %d attempts: %w", a.spec.Name, ErrExhausted, res.Attempts, lastErr))
}

// attempt performs one gateway call and parse. Panics are converted to
// invalid-output errors.
func (a *Agent[In, Out]) attempt(ctx context.Context, messages []llm.Message) (out Out, resp *llm.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = llm.NewInvalidError(fmt.Errorf("panic while handling response: %v", r))
		}
	}()

	temperature := a.spec.Temperature
	if a.opts.Temperature != nil {
		temperature = *a.opts.Temperature
	}
	resp, err = a.gateway.Complete(ctx, llm.Request{
		Capability:  a.spec.Capability.String(),
		Messages:    messages,
		Temperature: &temperature,
		MaxTokens:   a.spec.MaxTokens,
		JSONMode:    !a.spec.FreeText,
	})
	if err != nil {
		return out, nil, err
	}
	if resp == nil {
		return out, nil, llm.NewTransientError(errors.New("nil response from gateway"))
	}

	out, err = a.spec.Parse(resp.Content)
	if err != nil && llm.Kind(err) == "unknown" {
		err = llm.NewInvalidError(err)
	}
	return out, resp, err
}

func (a *Agent[In, Out]) buildPrompt(in In) (prompt string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = llm.NewFatalError(fmt.Errorf("panic while building prompt: %v", r))
		}
	}()
	if a.spec.Prompt == nil {
		return "", llm.NewFatalError(errors.New("agent has no prompt builder"))
	}
	prompt, err = a.spec.Prompt(in)
	if err != nil && !llm.IsFatal(err) {
		err = llm.NewFatalError(err)
	}
	return prompt, err
}

func (a *Agent[In, Out]) observe(outcome string, elapsed time.Duration) {
	if a.opts.Observer != nil {
		a.opts.Observer.ObserveAttempt(a.spec.Name, outcome, elapsed)
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

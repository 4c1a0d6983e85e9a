// Package plangenerator provides a processor that consumes plan generation
// triggers from JetStream, runs the staged generation pipeline with its
// single-shot fallback, and publishes the resulting weekly plan.
package plangenerator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/message"
	"github.com/c360studio/semstreams/natsclient"
	"github.com/c360studio/semstreams/payloadregistry"
	"github.com/nats-io/nats.go/jetstream"

	coachconfig "github.com/c360studio/semcoach/config"
	"github.com/c360studio/semcoach/llm"
	"github.com/c360studio/semcoach/pipeline"
	"github.com/c360studio/semcoach/storage"
	"github.com/c360studio/semcoach/training"
)

const componentName = "plan-generator"

// Generator produces a plan report for a request.
type Generator interface {
	Generate(ctx context.Context, req training.GenerationRequest) (*pipeline.RunReport, error)
}

// Publisher is the subset of the NATS client used to publish results.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
	PublishToStream(ctx context.Context, subject string, data []byte) error
}

// Archive keeps generated plans per athlete.
type Archive interface {
	SavePlan(ctx context.Context, r *storage.PlanRecord) (storage.PlanID, error)
	RecentPlans(ctx context.Context, athlete string, n int) ([]training.GeneratedPlan, error)
}

// Component implements the plan-generator processor.
type Component struct {
	name       string
	config     Config
	settings   *coachconfig.Config
	natsClient *natsclient.Client
	publisher  Publisher
	decoder    *message.Decoder
	logger     *slog.Logger

	generator Generator
	metrics   *pipeline.Metrics
	archive   Archive

	// JetStream consumer
	consumer jetstream.Consumer

	// Lifecycle
	running   bool
	startTime time.Time
	mu        sync.RWMutex
	cancel    context.CancelFunc
	done      chan struct{}

	// Metrics
	triggersProcessed atomic.Int64
	plansGenerated    atomic.Int64
	fallbackPlans     atomic.Int64
	generationsFailed atomic.Int64
	lastActivityMu    sync.RWMutex
	lastActivity      time.Time
}

// Option configures a Component.
type Option func(*Component)

// WithGenerator replaces the generator built from the semcoach configuration.
func WithGenerator(g Generator) Option {
	return func(c *Component) {
		c.generator = g
	}
}

// WithPublisher replaces the NATS client as result publisher.
func WithPublisher(p Publisher) Option {
	return func(c *Component) {
		c.publisher = p
	}
}

// WithMetrics attaches pipeline metrics to the generator built at start.
func WithMetrics(m *pipeline.Metrics) Option {
	return func(c *Component) {
		c.metrics = m
	}
}

// WithPayloadRegistry decodes triggers against a shared payload registry.
// The registry must hold the plan-generator payloads.
func WithPayloadRegistry(reg *payloadregistry.Registry) Option {
	return func(c *Component) {
		if reg != nil {
			c.decoder = message.NewDecoder(reg)
		}
	}
}

// WithArchive replaces the COACH_PLANS archive opened at start.
func WithArchive(a Archive) Option {
	return func(c *Component) {
		c.archive = a
	}
}

// NewComponent creates a new plan-generator processor. The generation
// backend comes from the layered semcoach configuration.
func NewComponent(rawConfig json.RawMessage, deps component.Dependencies) (component.Discoverable, error) {
	var config Config
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &config); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}

	logger := deps.GetLogger()
	settings, err := coachconfig.NewLoader(logger).Load()
	if err != nil {
		return nil, fmt.Errorf("load semcoach config: %w", err)
	}

	var opts []Option
	if deps.PayloadRegistry != nil {
		if err := ensurePayloads(deps.PayloadRegistry); err != nil {
			return nil, fmt.Errorf("register payloads: %w", err)
		}
		opts = append(opts, WithPayloadRegistry(deps.PayloadRegistry))
	}
	return New(config, settings, deps.NATSClient, logger, opts...)
}

// New creates the component from explicit dependencies.
func New(config Config, settings *coachconfig.Config, nc *natsclient.Client, logger *slog.Logger, opts ...Option) (*Component, error) {
	config = config.withDefaults()
	if settings == nil {
		settings = coachconfig.DefaultConfig()
	}
	if config.Workers == 0 {
		config.Workers = max(settings.NATS.Workers, 1)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Component{
		name:       componentName,
		config:     config,
		settings:   settings,
		natsClient: nc,
		decoder:    defaultDecoder,
		logger:     logger.With("component", componentName),
	}
	if nc != nil {
		c.publisher = nc
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Initialize prepares the component.
func (c *Component) Initialize() error {
	c.logger.Debug("Initialized plan-generator",
		"stream", c.config.StreamName,
		"consumer", c.config.ConsumerName,
		"trigger_subject", c.config.TriggerSubject,
		"workers", c.config.Workers)
	return nil
}

// Start begins processing plan triggers.
func (c *Component) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("component already running")
	}
	if c.natsClient == nil {
		c.mu.Unlock()
		return fmt.Errorf("NATS client required")
	}

	c.running = true
	c.startTime = time.Now()

	subCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	if c.generator == nil {
		gen, err := c.buildGenerator(subCtx)
		if err != nil {
			c.rollbackStart(cancel)
			return err
		}
		c.generator = gen
	}

	js, err := c.natsClient.JetStream()
	if err != nil {
		c.rollbackStart(cancel)
		return fmt.Errorf("get jetstream: %w", err)
	}

	if c.archive == nil && !c.config.DisableArchive {
		store, err := storage.NewStore(subCtx, js)
		if err != nil {
			c.logger.Warn("Failed to open plan archive, plans will not be archived", "error", err)
		} else {
			c.archive = store
		}
	}

	stream, err := js.Stream(subCtx, c.config.StreamName)
	if err != nil {
		c.rollbackStart(cancel)
		return fmt.Errorf("get stream %s: %w", c.config.StreamName, err)
	}

	consumer, err := stream.CreateOrUpdateConsumer(subCtx, jetstream.ConsumerConfig{
		Durable:       c.config.ConsumerName,
		FilterSubject: c.config.TriggerSubject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       c.config.GetAckWait(),
		MaxDeliver:    c.config.MaxDeliver,
		MaxAckPending: c.config.Workers,
	})
	if err != nil {
		c.rollbackStart(cancel)
		return fmt.Errorf("create consumer: %w", err)
	}
	c.consumer = consumer

	c.done = make(chan struct{})
	go c.consumeLoop(subCtx)

	c.logger.Info("plan-generator started",
		"stream", c.config.StreamName,
		"consumer", c.config.ConsumerName,
		"subject", c.config.TriggerSubject,
		"workers", c.config.Workers)

	return nil
}

// buildGenerator wires the pipeline over the configured backend. Call
// recording failures only disable recording.
func (c *Component) buildGenerator(ctx context.Context) (Generator, error) {
	var store *llm.CallStore
	if c.settings.NATS.RecordCalls {
		s, err := llm.NewCallStore(ctx, c.natsClient, llm.WithStoreLogger(c.logger))
		if err != nil {
			c.logger.Warn("Failed to initialize LLM call store, calls will not be recorded", "error", err)
		} else {
			store = s
		}
	}

	gen, err := pipeline.NewGeneratorFromConfig(c.settings, c.logger, store, pipeline.WithMetrics(c.metrics))
	if err != nil {
		return nil, fmt.Errorf("build generator: %w", err)
	}
	return gen, nil
}

func (c *Component) rollbackStart(cancel context.CancelFunc) {
	c.mu.Lock()
	c.running = false
	c.cancel = nil
	c.mu.Unlock()
	cancel()
}

// consumeLoop fetches triggers and hands them to the worker pool.
func (c *Component) consumeLoop(ctx context.Context) {
	jobs := make(chan jetstream.Msg)
	poolDone := make(chan struct{})
	go func() {
		dispatch(c.config.Workers, jobs, func(msg jetstream.Msg) {
			c.handleMessage(ctx, msg)
		})
		close(poolDone)
	}()
	defer func() {
		close(jobs)
		<-poolDone
		close(c.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msgs, err := c.consumer.Fetch(c.config.Workers, jetstream.FetchMaxWait(5*time.Second))
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Debug("Fetch timeout or error", "error", err)
			continue
		}

		for msg := range msgs.Messages() {
			select {
			case jobs <- msg:
			case <-ctx.Done():
				if err := msg.Nak(); err != nil {
					c.logger.Warn("Failed to NAK message during shutdown", "error", err)
				}
			}
		}

		if msgs.Error() != nil && !errors.Is(msgs.Error(), context.DeadlineExceeded) {
			c.logger.Warn("Message fetch error", "error", msgs.Error())
		}
	}
}

// handleMessage processes a single plan trigger.
func (c *Component) handleMessage(ctx context.Context, msg jetstream.Msg) {
	if ctx.Err() != nil {
		if err := msg.Nak(); err != nil {
			c.logger.Warn("Failed to NAK message during shutdown", "error", err)
		}
		return
	}

	trigger, err := decodeTrigger(c.decoder, msg.Data())
	if err != nil {
		c.logger.Error("Failed to parse trigger", "error", err)
		if err := msg.Term(); err != nil {
			c.logger.Warn("Failed to terminate message", "error", err)
		}
		return
	}

	result := c.Process(ctx, trigger)
	if result.Status == StatusFailed && ctx.Err() != nil {
		// Shutting down: leave the trigger for another instance.
		if err := msg.Nak(); err != nil {
			c.logger.Warn("Failed to NAK message", "error", err)
		}
		return
	}

	if err := c.PublishResult(ctx, trigger, result); err != nil {
		c.logger.Error("Failed to publish plan result",
			"request_id", trigger.RequestID,
			"error", err)
		if err := msg.Nak(); err != nil {
			c.logger.Warn("Failed to NAK message", "error", err)
		}
		return
	}

	if err := msg.Ack(); err != nil {
		c.logger.Warn("Failed to ACK message", "error", err)
	}
}

// Process generates the plan for one trigger. Generation failures are
// reported in the result, never as an error.
func (c *Component) Process(ctx context.Context, trigger *PlanTrigger) *PlanResult {
	c.triggersProcessed.Add(1)
	c.updateLastActivity()

	c.logger.Info("Processing plan trigger",
		"request_id", trigger.RequestID,
		"objective", trigger.Request.Objective,
		"period", trigger.Request.Period,
		"trace_id", trigger.TraceID)

	genCtx, cancel := context.WithTimeout(ctx, c.config.GetAckWait())
	defer cancel()

	start := time.Now()
	req := c.withHistory(genCtx, trigger)
	report, err := c.generator.Generate(genCtx, req)
	result := newResult(trigger, report, err, time.Since(start))

	if err != nil {
		c.generationsFailed.Add(1)
		detail := err.Error()
		var genErr *pipeline.GenerationError
		if errors.As(err, &genErr) {
			detail = genErr.Detail()
		}
		c.logger.Error("Failed to generate plan",
			"request_id", trigger.RequestID,
			"run_id", result.RunID,
			"error", detail)
		return result
	}

	c.plansGenerated.Add(1)
	if result.Fallback {
		c.fallbackPlans.Add(1)
	}
	result.PlanID = c.archivePlan(ctx, trigger, req, report)
	c.logger.Info("Plan generated",
		"request_id", trigger.RequestID,
		"run_id", result.RunID,
		"total_km", result.Plan.TotalVolume(),
		"score", result.Quality.Score,
		"fallback", result.Fallback,
		"elapsed", time.Since(start))
	return result
}

// withHistory fills the request's historical plans from the archive when
// the trigger names an athlete and the request carries none. Archive
// failures only cost the history.
func (c *Component) withHistory(ctx context.Context, trigger *PlanTrigger) training.GenerationRequest {
	req := trigger.Request
	if c.archive == nil || trigger.AthleteID == "" || len(req.HistoricalPlans) > 0 || c.config.HistoryWeeks == 0 {
		return req
	}
	plans, err := c.archive.RecentPlans(ctx, trigger.AthleteID, c.config.HistoryWeeks)
	if err != nil {
		c.logger.Warn("Failed to load plan history",
			"athlete_id", trigger.AthleteID,
			"error", err)
		return req
	}
	req.HistoricalPlans = plans
	c.logger.Debug("Loaded plan history", "athlete_id", trigger.AthleteID, "weeks", len(plans))
	return req
}

// archivePlan stores a generated plan for the trigger's athlete and
// returns its archive ID, or "" when nothing was archived.
func (c *Component) archivePlan(ctx context.Context, trigger *PlanTrigger, req training.GenerationRequest, report *pipeline.RunReport) string {
	if c.archive == nil || trigger.AthleteID == "" {
		return ""
	}
	id, err := c.archive.SavePlan(ctx, &storage.PlanRecord{
		AthleteID: trigger.AthleteID,
		RunID:     report.RunID,
		Request:   req,
		Plan:      report.Plan,
		Score:     report.Quality.Score,
		Fallback:  report.Fallback,
	})
	if err != nil {
		c.logger.Warn("Failed to archive plan",
			"athlete_id", trigger.AthleteID,
			"run_id", report.RunID,
			"error", err)
		return ""
	}
	return id.String()
}

// PublishResult sends the result to the trigger's callback subject, or to
// the result stream under the request ID.
func (c *Component) PublishResult(ctx context.Context, trigger *PlanTrigger, result *PlanResult) error {
	if c.publisher == nil {
		return fmt.Errorf("no publisher configured")
	}

	baseMsg := message.NewBaseMessage(PlanResultType, result, componentName)
	data, err := json.Marshal(baseMsg)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	if trigger.CallbackSubject != "" {
		if err := c.publisher.Publish(ctx, trigger.CallbackSubject, data); err != nil {
			return fmt.Errorf("publish callback to %s: %w", trigger.CallbackSubject, err)
		}
		return nil
	}

	subject := c.ResultSubject(trigger.RequestID)
	if err := c.publisher.PublishToStream(ctx, subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	return nil
}

var subjectTokenReplacer = strings.NewReplacer(".", "-", " ", "-", "*", "-", ">", "-")

// ResultSubject returns the default result subject for a request ID.
func (c *Component) ResultSubject(requestID string) string {
	return c.config.ResultSubjectPrefix + "." + subjectTokenReplacer.Replace(requestID)
}

// Stop stops the component, waiting up to timeout for in-flight plans.
func (c *Component) Stop(timeout time.Duration) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	cancel := c.cancel
	done := c.done
	c.running = false
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		select {
		case <-done:
		case <-time.After(timeout):
			c.logger.Warn("Timed out waiting for in-flight plans", "timeout", timeout)
		}
	}

	c.logger.Info("plan-generator stopped",
		"triggers_processed", c.triggersProcessed.Load(),
		"plans_generated", c.plansGenerated.Load(),
		"fallback_plans", c.fallbackPlans.Load(),
		"generations_failed", c.generationsFailed.Load())
	return nil
}

// Meta returns component metadata.
func (c *Component) Meta() component.Metadata {
	return component.Metadata{
		Name:        componentName,
		Type:        "processor",
		Description: "Generates weekly training plans through the staged LLM pipeline",
		Version:     "0.1.0",
	}
}

// InputPorts returns configured input port definitions.
func (c *Component) InputPorts() []component.Port {
	return ports(c.config.Ports, true)
}

// OutputPorts returns configured output port definitions.
func (c *Component) OutputPorts() []component.Port {
	return ports(c.config.Ports, false)
}

func ports(cfg *component.PortConfig, inputs bool) []component.Port {
	if cfg == nil {
		return []component.Port{}
	}
	defs, dir := cfg.Outputs, component.DirectionOutput
	if inputs {
		defs, dir = cfg.Inputs, component.DirectionInput
	}
	out := make([]component.Port, len(defs))
	for i, def := range defs {
		out[i] = component.Port{
			Name:        def.Name,
			Direction:   dir,
			Required:    def.Required,
			Description: def.Description,
			Config: component.NATSPort{
				Subject: def.Subject,
			},
		}
	}
	return out
}

// ConfigSchema returns the configuration schema.
func (c *Component) ConfigSchema() component.ConfigSchema {
	return planGeneratorSchema
}

// Health returns the current health status.
func (c *Component) Health() component.HealthStatus {
	c.mu.RLock()
	running := c.running
	startTime := c.startTime
	c.mu.RUnlock()

	status := "stopped"
	if running {
		status = "running"
	}

	return component.HealthStatus{
		Healthy:    running,
		LastCheck:  time.Now(),
		ErrorCount: int(c.generationsFailed.Load()),
		Uptime:     time.Since(startTime),
		Status:     status,
	}
}

// DataFlow returns current data flow metrics.
func (c *Component) DataFlow() component.FlowMetrics {
	return component.FlowMetrics{
		LastActivity: c.getLastActivity(),
	}
}

func (c *Component) updateLastActivity() {
	c.lastActivityMu.Lock()
	c.lastActivity = time.Now()
	c.lastActivityMu.Unlock()
}

func (c *Component) getLastActivity() time.Time {
	c.lastActivityMu.RLock()
	defer c.lastActivityMu.RUnlock()
	return c.lastActivity
}

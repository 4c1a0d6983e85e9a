package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/c360studio/semstreams/natsclient"
	"github.com/nats-io/nats.go/jetstream"
)

// CallsBucket is the KV bucket name for generation call records.
const CallsBucket = "LLM_CALLS"

// DefaultCallsTTL is the default TTL for call records (7 days).
const DefaultCallsTTL = 7 * 24 * time.Hour

// responsePreviewLen caps the stored response text.
const responsePreviewLen = 4000

// CallRecord represents a single generation call for audit.
type CallRecord struct {
	// RequestID uniquely identifies this call.
	RequestID string `json:"request_id"`

	// RunID correlates the calls of one pipeline run.
	RunID string `json:"run_id,omitempty"`

	// Stage is the pipeline stage that issued the call.
	Stage string `json:"stage,omitempty"`

	// Capability is the semantic capability requested.
	Capability string `json:"capability"`

	// Model is the actual model that was used for this call.
	Model string `json:"model"`

	// Provider is the backend (anthropic, ollama, openai).
	Provider string `json:"provider"`

	// Messages is the input message history sent to the backend.
	Messages []Message `json:"messages"`

	// Response is the generated content, truncated for storage.
	Response string `json:"response"`

	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`

	// ContextBudget is the maximum context window size for this model (optional).
	ContextBudget int `json:"context_budget,omitempty"`

	// FinishReason indicates why generation stopped.
	FinishReason string `json:"finish_reason"`

	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMs  int64     `json:"duration_ms"`

	// Error contains any error message if the call failed.
	Error string `json:"error,omitempty"`

	// Retries is the number of transport retries made.
	Retries int `json:"retries"`

	// FallbacksUsed lists models tried before success (if fallback was needed).
	FallbacksUsed []string `json:"fallbacks_used,omitempty"`
}

// Key returns the KV key: {run_id}.{request_id}, or the request ID alone
// when the call was made outside a run.
func (r *CallRecord) Key() string {
	if r.RunID == "" {
		return r.RequestID
	}
	return r.RunID + "." + r.RequestID
}

// CallStore persists call records to a JetStream KV bucket.
type CallStore struct {
	bucket jetstream.KeyValue
	ttl    time.Duration
	logger *slog.Logger
}

// CallStoreOption configures a CallStore.
type CallStoreOption func(*CallStore)

// WithCallsTTL sets the TTL for call records.
func WithCallsTTL(ttl time.Duration) CallStoreOption {
	return func(s *CallStore) {
		s.ttl = ttl
	}
}

// WithStoreLogger sets the logger for the call store.
func WithStoreLogger(logger *slog.Logger) CallStoreOption {
	return func(s *CallStore) {
		s.logger = logger
	}
}

// NewCallStore creates the call store, creating or updating the bucket.
// The context is used for the initial bucket creation/update operation.
func NewCallStore(ctx context.Context, nc *natsclient.Client, opts ...CallStoreOption) (*CallStore, error) {
	if nc == nil {
		return nil, fmt.Errorf("NATS client required")
	}

	s := &CallStore{ttl: DefaultCallsTTL, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}

	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("get jetstream: %w", err)
	}

	// CreateOrUpdateKeyValue is idempotent and handles race conditions
	bucket, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      CallsBucket,
		Description: "Generation call records",
		TTL:         s.ttl,
	})
	if err != nil {
		return nil, fmt.Errorf("create/update kv bucket: %w", err)
	}

	s.bucket = bucket
	return s, nil
}

// NewCallStoreWithBucket wraps an existing KV bucket.
func NewCallStoreWithBucket(bucket jetstream.KeyValue, opts ...CallStoreOption) *CallStore {
	s := &CallStore{bucket: bucket, ttl: DefaultCallsTTL, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store saves a call record under Key().
func (s *CallStore) Store(ctx context.Context, record *CallRecord) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if record.RequestID == "" {
		return fmt.Errorf("request_id is required")
	}

	stored := *record
	if len(stored.Response) > responsePreviewLen {
		stored.Response = stored.Response[:responsePreviewLen]
	}

	data, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	if _, err := s.bucket.Put(ctx, record.Key(), data); err != nil {
		return fmt.Errorf("put record: %w", err)
	}

	s.logger.Debug("Stored generation call",
		"key", record.Key(),
		"stage", record.Stage,
		"capability", record.Capability)
	return nil
}

// Get retrieves a call record by its key.
func (s *CallStore) Get(ctx context.Context, key string) (*CallRecord, error) {
	entry, err := s.bucket.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}

	var record CallRecord
	if err := json.Unmarshal(entry.Value(), &record); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return &record, nil
}

// GetByRunID retrieves all call records of a run in chronological order.
func (s *CallStore) GetByRunID(ctx context.Context, runID string) ([]*CallRecord, error) {
	if runID == "" {
		return nil, fmt.Errorf("run_id is required")
	}

	keys, err := s.bucket.Keys(ctx)
	if err != nil {
		// No keys is not an error - return empty slice
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return []*CallRecord{}, nil
		}
		return nil, fmt.Errorf("list keys: %w", err)
	}

	prefix := runID + "."
	var records []*CallRecord
	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		record, err := s.Get(ctx, key)
		if err != nil {
			// ErrKeyDeleted is expected during concurrent access
			if !errors.Is(err, jetstream.ErrKeyDeleted) && !errors.Is(err, jetstream.ErrKeyNotFound) {
				s.logger.Warn("Failed to get key", "key", key, "error", err)
			}
			continue
		}
		records = append(records, record)
	}

	SortByStartTime(records)
	return records, nil
}

// SortByStartTime sorts records chronologically by StartedAt.
func SortByStartTime(records []*CallRecord) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].StartedAt.Before(records[j].StartedAt)
	})
}

// RunContext identifies the pipeline run and stage issuing a call.
type RunContext struct {
	RunID string
	Stage string
}

// runContextKey is the context key for run information.
type runContextKey struct{}

// WithRunContext adds run information to a context.
func WithRunContext(ctx context.Context, rc RunContext) context.Context {
	return context.WithValue(ctx, runContextKey{}, rc)
}

// GetRunContext extracts run information from a context.
func GetRunContext(ctx context.Context) RunContext {
	if rc, ok := ctx.Value(runContextKey{}).(RunContext); ok {
		return rc
	}
	return RunContext{}
}

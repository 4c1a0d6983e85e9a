package llm

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memKV is an in-memory stand-in for the parts of jetstream.KeyValue the
// call store uses.
type memKV struct {
	jetstream.KeyValue
	mu   sync.Mutex
	data map[string][]byte
}

type memEntry struct {
	jetstream.KeyValueEntry
	value []byte
}

func (e memEntry) Value() []byte { return e.value }

func newMemKV() *memKV {
	return &memKV{data: make(map[string][]byte)}
}

func (m *memKV) Put(_ context.Context, key string, value []byte) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return uint64(len(m.data)), nil
}

func (m *memKV) Get(_ context.Context, key string) (jetstream.KeyValueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, jetstream.ErrKeyNotFound
	}
	return memEntry{value: v}, nil
}

func (m *memKV) Keys(_ context.Context, _ ...jetstream.WatchOpt) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.data) == 0 {
		return nil, jetstream.ErrNoKeysFound
	}
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	return keys, nil
}

func TestCallStore_StoreAndGet(t *testing.T) {
	store := NewCallStoreWithBucket(newMemKV())
	ctx := context.Background()

	record := &CallRecord{
		RequestID:  "req-1",
		RunID:      "run-1",
		Stage:      "session_composer",
		Capability: "composing",
		Model:      "qwen2.5:14b",
		Provider:   "ollama",
		Response:   strings.Repeat("x", responsePreviewLen+100),
		StartedAt:  time.Now(),
	}
	require.NoError(t, store.Store(ctx, record))

	got, err := store.Get(ctx, "run-1.req-1")
	require.NoError(t, err)
	assert.Equal(t, "session_composer", got.Stage)
	assert.Len(t, got.Response, responsePreviewLen)
	assert.Len(t, record.Response, responsePreviewLen+100, "caller's record is not modified")
}

func TestCallStore_RequiresRequestID(t *testing.T) {
	store := NewCallStoreWithBucket(newMemKV())
	err := store.Store(context.Background(), &CallRecord{RunID: "run-1"})
	assert.ErrorContains(t, err, "request_id is required")
}

func TestCallStore_GetByRunID(t *testing.T) {
	store := NewCallStoreWithBucket(newMemKV())
	ctx := context.Background()

	empty, err := store.GetByRunID(ctx, "run-a")
	require.NoError(t, err)
	assert.Empty(t, empty)

	base := time.Now()
	require.NoError(t, store.Store(ctx, &CallRecord{RequestID: "b", RunID: "run-a", StartedAt: base.Add(time.Second)}))
	require.NoError(t, store.Store(ctx, &CallRecord{RequestID: "a", RunID: "run-a", StartedAt: base}))
	require.NoError(t, store.Store(ctx, &CallRecord{RequestID: "c", RunID: "run-b", StartedAt: base}))
	require.NoError(t, store.Store(ctx, &CallRecord{RequestID: "d", StartedAt: base}))

	records, err := store.GetByRunID(ctx, "run-a")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a", records[0].RequestID)
	assert.Equal(t, "b", records[1].RequestID)

	_, err = store.GetByRunID(ctx, "")
	assert.Error(t, err)
}

func TestCallRecord_Key(t *testing.T) {
	assert.Equal(t, "req", (&CallRecord{RequestID: "req"}).Key())
	assert.Equal(t, "run.req", (&CallRecord{RequestID: "req", RunID: "run"}).Key())
}

func TestRunContext(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, RunContext{}, GetRunContext(ctx))

	ctx = WithRunContext(ctx, RunContext{RunID: "r1", Stage: "volume_allocator"})
	assert.Equal(t, "r1", GetRunContext(ctx).RunID)
	assert.Equal(t, "volume_allocator", GetRunContext(ctx).Stage)
}

func TestEstimateTokens_Fallback(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens("qwen2.5:14b", ""))
	assert.Equal(t, 2, EstimateTokens("qwen2.5:14b", "abcdefgh"))
	assert.Equal(t, 1, EstimateTokens("qwen2.5:14b", "éé"))
	assert.Equal(t, 3, EstimateMessagesTokens("llama3.2", []Message{
		{Role: "system", Content: "abcd"},
		{Role: "user", Content: "abcdefgh"},
	}))
}

func TestErrorKinds(t *testing.T) {
	assert.Equal(t, "transient", Kind(NewTransientError(assert.AnError)))
	assert.Equal(t, "invalid", Kind(NewInvalidError(assert.AnError)))
	assert.Equal(t, "fatal", Kind(NewFatalError(assert.AnError)))
	assert.Equal(t, "unknown", Kind(assert.AnError))
	assert.Equal(t, "", Kind(nil))
	assert.True(t, IsInvalid(NewInvalidError(assert.AnError)))
	assert.False(t, IsFatal(NewInvalidError(assert.AnError)))
}

package storage

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semcoach/training"
)

// memKV is an in-memory stand-in for the plan bucket.
type memKV struct {
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

func (m *memKV) Create(_ context.Context, key string, value []byte, _ ...jetstream.KVCreateOpt) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return 0, jetstream.ErrKeyExists
	}
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

// newTestStore returns a store whose clock advances a day per save.
func newTestStore() *Store {
	s := NewStoreWithBucket(newMemKV())
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	var n int
	s.now = func() time.Time {
		n++
		return base.AddDate(0, 0, n)
	}
	return s
}

func weekPlan(objective string) training.GeneratedPlan {
	return training.GeneratedPlan{Objective: objective}
}

func TestPlanID(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		original := NewPlanID("athlete-7")
		parsed, err := ParsePlanID(original.String())
		require.NoError(t, err)
		assert.Equal(t, original, parsed)
	})

	t.Run("key tokenizes athlete", func(t *testing.T) {
		id := PlanID{Athlete: "jean.dupont@club", ID: "abc"}
		assert.Equal(t, "jean_dupont_club.abc", id.Key())
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		for _, input := range []string{"", "no-colon", ":id", "athlete:"} {
			_, err := ParsePlanID(input)
			assert.Error(t, err, input)
		}
	})
}

func TestStore_SaveAndGet(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	rec := &PlanRecord{
		AthleteID: "a1",
		RunID:     "run-1",
		Request: training.GenerationRequest{
			Objective:       training.ObjectiveBase,
			HistoricalPlans: []training.GeneratedPlan{weekPlan("old")},
		},
		Plan:  weekPlan("fondamental"),
		Score: 88,
	}
	id, err := s.SavePlan(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, "a1", id.Athlete)

	got, err := s.GetPlan(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id.String(), got.ID)
	assert.Equal(t, "fondamental", got.Plan.Objective)
	assert.Equal(t, 88, got.Score)
	assert.Empty(t, got.Request.HistoricalPlans)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestStore_SaveRequiresAthlete(t *testing.T) {
	_, err := newTestStore().SavePlan(context.Background(), &PlanRecord{})
	require.Error(t, err)
}

func TestStore_GetNotFound(t *testing.T) {
	_, err := newTestStore().GetPlan(context.Background(), PlanID{Athlete: "a", ID: "missing"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ListByAthlete(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	empty, err := s.ListByAthlete(ctx, "a1", 0)
	require.NoError(t, err)
	assert.Empty(t, empty)

	for _, obj := range []string{"w1", "w2", "w3"} {
		_, err := s.SavePlan(ctx, &PlanRecord{AthleteID: "a1", Plan: weekPlan(obj)})
		require.NoError(t, err)
	}
	_, err = s.SavePlan(ctx, &PlanRecord{AthleteID: "a2", Plan: weekPlan("other")})
	require.NoError(t, err)
	// "a.1" and "a_1" share a key token.
	_, err = s.SavePlan(ctx, &PlanRecord{AthleteID: "a.1", Plan: weekPlan("dotted")})
	require.NoError(t, err)
	_, err = s.SavePlan(ctx, &PlanRecord{AthleteID: "a_1", Plan: weekPlan("underscored")})
	require.NoError(t, err)

	all, err := s.ListByAthlete(ctx, "a1", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "w3", all[0].Plan.Objective, "newest first")

	dotted, err := s.ListByAthlete(ctx, "a.1", 0)
	require.NoError(t, err)
	require.Len(t, dotted, 1)
	assert.Equal(t, "dotted", dotted[0].Plan.Objective)

	limited, err := s.ListByAthlete(ctx, "a1", 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
}

func TestStore_RecentPlansOldestFirst(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	for _, obj := range []string{"w1", "w2", "w3", "w4"} {
		_, err := s.SavePlan(ctx, &PlanRecord{AthleteID: "a1", Plan: weekPlan(obj)})
		require.NoError(t, err)
	}

	plans, err := s.RecentPlans(ctx, "a1", 3)
	require.NoError(t, err)
	var got []string
	for _, p := range plans {
		got = append(got, p.Objective)
	}
	assert.Equal(t, "w2,w3,w4", strings.Join(got, ","))
}

func TestNewStoreWithBucket_AcceptsJetStreamBucket(t *testing.T) {
	var bucket jetstream.KeyValue
	store := NewStoreWithBucket(bucket)
	require.NotNil(t, store)
}

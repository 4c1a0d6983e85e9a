// Package storage archives generated plans in NATS KV so later requests for
// the same athlete can carry their recent weeks.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360studio/semcoach/training"
)

// BucketPlans is the KV bucket holding archived plans.
const BucketPlans = "COACH_PLANS"

// PlanID identifies an archived plan. Keys group plans by athlete.
type PlanID struct {
	Athlete string
	ID      string
}

// String returns the string representation of the plan ID.
func (p PlanID) String() string {
	return fmt.Sprintf("%s:%s", p.Athlete, p.ID)
}

// Key returns the KV key for the plan.
func (p PlanID) Key() string {
	return athleteToken(p.Athlete) + "." + p.ID
}

// ParsePlanID parses a plan ID string into its components.
func ParsePlanID(s string) (PlanID, error) {
	athlete, id, ok := strings.Cut(s, ":")
	if !ok || athlete == "" || id == "" {
		return PlanID{}, fmt.Errorf("invalid plan ID format: %s", s)
	}
	return PlanID{Athlete: athlete, ID: id}, nil
}

// NewPlanID generates a new unique plan ID for an athlete.
func NewPlanID(athlete string) PlanID {
	return PlanID{Athlete: athlete, ID: uuid.NewString()}
}

var invalidKeyChars = regexp.MustCompile(`[^-_=a-zA-Z0-9]`)

func athleteToken(athlete string) string {
	return invalidKeyChars.ReplaceAllString(athlete, "_")
}

// PlanRecord is one archived week.
type PlanRecord struct {
	ID        string                     `json:"id"`
	AthleteID string                     `json:"athlete_id"`
	RunID     string                     `json:"run_id,omitempty"`
	Request   training.GenerationRequest `json:"request"`
	Plan      training.GeneratedPlan     `json:"plan"`
	Score     int                        `json:"score"`
	Fallback  bool                       `json:"fallback,omitempty"`
	CreatedAt time.Time                  `json:"created_at"`
}

// KeyValue is the subset of jetstream.KeyValue the store uses.
type KeyValue interface {
	Create(ctx context.Context, key string, value []byte, opts ...jetstream.KVCreateOpt) (uint64, error)
	Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error)
	Keys(ctx context.Context, opts ...jetstream.WatchOpt) ([]string, error)
}

var _ KeyValue = jetstream.KeyValue(nil)

// Store provides plan storage operations backed by NATS KV.
type Store struct {
	plans KeyValue
	now   func() time.Time
}

// NewStore creates a new Store with the given JetStream context.
// It creates the plan bucket if it doesn't exist.
func NewStore(ctx context.Context, js jetstream.JetStream) (*Store, error) {
	plans, err := getOrCreateBucket(ctx, js, BucketPlans)
	if err != nil {
		return nil, fmt.Errorf("create plans bucket: %w", err)
	}
	return NewStoreWithBucket(plans), nil
}

// NewStoreWithBucket creates a Store over an existing bucket.
func NewStoreWithBucket(kv KeyValue) *Store {
	return &Store{plans: kv, now: time.Now}
}

func getOrCreateBucket(ctx context.Context, js jetstream.JetStream, name string) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, name)
	if err == nil {
		return kv, nil
	}
	// Bucket doesn't exist, create it
	return js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: "Semcoach archived weekly plans",
		History:     1,
	})
}

// SavePlan archives a plan and returns its ID. Historical plans carried by
// the request are not archived again.
func (s *Store) SavePlan(ctx context.Context, r *PlanRecord) (PlanID, error) {
	if r.AthleteID == "" {
		return PlanID{}, errors.New("athlete_id is required")
	}

	id := NewPlanID(r.AthleteID)
	r.ID = id.String()
	r.CreatedAt = s.now()
	r.Request.HistoricalPlans = nil

	data, err := json.Marshal(r)
	if err != nil {
		return PlanID{}, fmt.Errorf("marshal plan: %w", err)
	}

	if _, err := s.plans.Create(ctx, id.Key(), data); err != nil {
		return PlanID{}, fmt.Errorf("store plan: %w", err)
	}

	return id, nil
}

// GetPlan retrieves a plan by ID.
func (s *Store) GetPlan(ctx context.Context, id PlanID) (*PlanRecord, error) {
	entry, err := s.plans.Get(ctx, id.Key())
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get plan: %w", err)
	}

	var r PlanRecord
	if err := json.Unmarshal(entry.Value(), &r); err != nil {
		return nil, fmt.Errorf("unmarshal plan: %w", err)
	}

	return &r, nil
}

// ListByAthlete returns an athlete's plans, newest first. A positive limit
// caps the result.
func (s *Store) ListByAthlete(ctx context.Context, athlete string, limit int) ([]*PlanRecord, error) {
	keys, err := s.plans.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("list plan keys: %w", err)
	}

	prefix := athleteToken(athlete) + "."
	records := make([]*PlanRecord, 0)
	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		entry, err := s.plans.Get(ctx, key)
		if err != nil {
			continue // Skip entries that fail to load
		}
		var r PlanRecord
		if err := json.Unmarshal(entry.Value(), &r); err != nil {
			continue
		}
		// Tokenized keys can collide; the record holds the real athlete.
		if r.AthleteID != athlete {
			continue
		}
		records = append(records, &r)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// RecentPlans returns up to n of the athlete's latest plans, oldest first,
// ready for GenerationRequest.HistoricalPlans.
func (s *Store) RecentPlans(ctx context.Context, athlete string, n int) ([]training.GeneratedPlan, error) {
	records, err := s.ListByAthlete(ctx, athlete, n)
	if err != nil {
		return nil, err
	}
	plans := make([]training.GeneratedPlan, len(records))
	for i, r := range records {
		plans[len(records)-1-i] = r.Plan
	}
	return plans, nil
}

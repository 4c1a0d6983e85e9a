package model

import (
	"sync"
	"time"
)

// Endpoint health only orders fallback chains. An endpoint that keeps
// failing with transient errors is demoted: it is tried after its healthy
// siblings until its cooldown passes. Health never removes an endpoint from
// a chain, so every call still reaches a backend and retry budgets stay with
// the caller.

// HealthPolicy configures endpoint demotion.
type HealthPolicy struct {
	// DemoteAfter is the number of consecutive transient failures that
	// demote an endpoint. Zero disables demotion.
	DemoteAfter int

	// Cooldown is how long a demoted endpoint stays at the back of its
	// chains.
	Cooldown time.Duration
}

// DefaultHealthPolicy demotes an endpoint after five transient failures in
// a row, for one minute.
func DefaultHealthPolicy() HealthPolicy {
	return HealthPolicy{
		DemoteAfter: 5,
		Cooldown:    time.Minute,
	}
}

// EndpointHealth is a snapshot of one endpoint's record.
type EndpointHealth struct {
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastSuccess         time.Time `json:"last_success,omitempty"`
	LastFailure         time.Time `json:"last_failure,omitempty"`
	DemotedUntil        time.Time `json:"demoted_until,omitempty"`
}

// Demoted reports whether the endpoint is demoted at t.
func (h EndpointHealth) Demoted(t time.Time) bool {
	return t.Before(h.DemotedUntil)
}

type healthBook struct {
	mu      sync.Mutex
	policy  HealthPolicy
	records map[string]*EndpointHealth
	now     func() time.Time
}

func newHealthBook(policy HealthPolicy) *healthBook {
	return &healthBook{
		policy:  policy,
		records: make(map[string]*EndpointHealth),
		now:     time.Now,
	}
}

func (b *healthBook) record(name string) *EndpointHealth {
	rec, ok := b.records[name]
	if !ok {
		rec = &EndpointHealth{}
		b.records[name] = rec
	}
	return rec
}

// book returns the registry's health book, creating it on first use.
func (r *Registry) book() *healthBook {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.health == nil {
		r.health = newHealthBook(DefaultHealthPolicy())
	}
	return r.health
}

// SetHealthPolicy replaces the demotion policy. Existing records are kept.
func (r *Registry) SetHealthPolicy(policy HealthPolicy) {
	b := r.book()
	b.mu.Lock()
	b.policy = policy
	b.mu.Unlock()
}

// RecordSuccess clears the endpoint's failures and any demotion.
func (r *Registry) RecordSuccess(name string) {
	b := r.book()
	b.mu.Lock()
	defer b.mu.Unlock()

	rec := b.record(name)
	rec.LastSuccess = b.now()
	rec.ConsecutiveFailures = 0
	rec.DemotedUntil = time.Time{}
}

// RecordFailure notes a failed call. Only transient failures count toward
// demotion: auth and request errors say nothing about availability.
func (r *Registry) RecordFailure(name string, transient bool) {
	if !transient {
		return
	}
	b := r.book()
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	rec := b.record(name)
	rec.LastFailure = now
	rec.ConsecutiveFailures++
	if b.policy.DemoteAfter > 0 && rec.ConsecutiveFailures >= b.policy.DemoteAfter {
		rec.DemotedUntil = now.Add(b.policy.Cooldown)
	}
}

// Health returns a snapshot of the endpoint's record.
func (r *Registry) Health(name string) (EndpointHealth, bool) {
	b := r.book()
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, ok := b.records[name]
	if !ok {
		return EndpointHealth{}, false
	}
	return *rec, true
}

// ResetHealth forgets the endpoint's record.
func (r *Registry) ResetHealth(name string) {
	b := r.book()
	b.mu.Lock()
	delete(b.records, name)
	b.mu.Unlock()
}

// OrderedChain returns the fallback chain for cap with demoted endpoints
// moved to the back. Relative order is kept inside both groups, and a
// single-endpoint chain is returned as is.
func (r *Registry) OrderedChain(cap Capability) []string {
	chain := r.GetFallbackChain(cap)
	if len(chain) < 2 {
		return chain
	}

	b := r.book()
	b.mu.Lock()
	now := b.now()
	healthy := make([]string, 0, len(chain))
	var demoted []string
	for _, name := range chain {
		if rec, ok := b.records[name]; ok && rec.Demoted(now) {
			demoted = append(demoted, name)
			continue
		}
		healthy = append(healthy, name)
	}
	b.mu.Unlock()

	return append(healthy, demoted...)
}

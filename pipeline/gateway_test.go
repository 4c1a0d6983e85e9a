package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semcoach/agent/agenttest"
	"github.com/c360studio/semcoach/llm"
	_ "github.com/c360studio/semcoach/llm/providers"
	"github.com/c360studio/semcoach/model"
	"github.com/c360studio/semcoach/training"
)

// flakyBackend answers 503 for the first failures calls and the canned
// fallback plan afterwards.
func flakyBackend(t *testing.T, failures int32) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= failures {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("warming up"))
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"model": "mock",
			"choices": []map[string]any{{
				"message":       map[string]string{"role": "assistant", "content": agenttest.Plan},
				"finish_reason": "stop",
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

// singleEndpointRegistry routes every capability to one backend.
func singleEndpointRegistry(url string) *model.Registry {
	caps := make(map[model.Capability]*model.CapabilityConfig)
	for _, c := range []model.Capability{
		model.CapabilityAnalysis, model.CapabilityPlanning, model.CapabilityComposing,
		model.CapabilityAllocating, model.CapabilityReviewing, model.CapabilityFast,
	} {
		caps[c] = &model.CapabilityConfig{Preferred: []string{"mock"}}
	}
	return model.NewRegistry(caps, map[string]*model.EndpointConfig{
		"mock": {Provider: "ollama", URL: url, Model: "mock"},
	})
}

func TestGenerator_FallbackRecoversAfterStageExhaustsRetries(t *testing.T) {
	srv, calls := flakyBackend(t, 4)
	registry := singleEndpointRegistry(srv.URL)
	// Demote on the first failure: a lone endpoint must still be called.
	registry.SetHealthPolicy(model.HealthPolicy{DemoteAfter: 1, Cooldown: time.Hour})

	client := llm.NewClient(registry, llm.WithLogger(quietLogger()))
	g := NewGenerator(client, testOptions()...)

	report, err := g.Generate(context.Background(), agenttest.Request())
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.True(t, report.Fallback)
	assert.Equal(t, StateDone, report.State)
	assert.Equal(t, int32(5), calls.Load())

	require.NotEmpty(t, report.Stages)
	last := report.Stages[len(report.Stages)-1]
	assert.Equal(t, StageFallback, last.Name)
	assert.Equal(t, StateDone, last.State)
	assert.Equal(t, 2, last.Attempts)

	require.Len(t, report.Plan.Days, training.DaysPerWeek)
	assert.Equal(t, agenttest.WeekTotalKm, report.Plan.TotalVolume())

	h, ok := registry.Health("mock")
	require.True(t, ok)
	assert.Zero(t, h.ConsecutiveFailures)
}

func TestGenerator_FallbackFailsOnceBackendStaysDown(t *testing.T) {
	srv, calls := flakyBackend(t, 100)
	client := llm.NewClient(singleEndpointRegistry(srv.URL), llm.WithLogger(quietLogger()))
	g := NewGenerator(client, testOptions()...)

	report, err := g.Generate(context.Background(), agenttest.Request())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGenerationFailed)
	require.NotNil(t, report)

	// Three analyzer attempts then three fallback attempts, each reaching the backend.
	assert.Equal(t, int32(6), calls.Load())
	last := report.Stages[len(report.Stages)-1]
	assert.Equal(t, StageFallback, last.Name)
	assert.Equal(t, StateFailed, last.State)
	assert.Equal(t, 3, last.Attempts)
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semcoach/agent/agenttest"
	"github.com/c360studio/semcoach/config"
	_ "github.com/c360studio/semcoach/llm/providers"
	"github.com/c360studio/semcoach/model"
	"github.com/c360studio/semcoach/pipeline"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFixture(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func doCompletion(t *testing.T, h http.Handler, modelName string) (int, string) {
	t.Helper()
	body, err := json.Marshal(chatRequest{
		Model:    modelName,
		Messages: []chatMessage{{Role: "user", Content: "plan my week"}},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		return w.Code, w.Body.String()
	}

	var resp chatResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Choices, 1)
	return w.Code, resp.Choices[0].Message.Content
}

func TestLoadFixtures_BaseOnly(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "mock-planning.json", `{"days":[]}`)
	writeFixture(t, dir, "reviewing.txt", "```json\n{\"isValid\": true,}\n```")

	fixtures, err := loadFixtures(dir)
	require.NoError(t, err)
	require.Len(t, fixtures, 2)
	assert.Len(t, fixtures["mock-planning"], 1)
	assert.Contains(t, fixtures["reviewing"][0], "```json")
}

func TestLoadFixtures_Sequential(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "mock-reviewing.1.json", `{"note":"first"}`)
	writeFixture(t, dir, "mock-reviewing.2.txt", `second, not json`)
	writeFixture(t, dir, "mock-reviewing.json", `{"note":"fallback"}`)

	fixtures, err := loadFixtures(dir)
	require.NoError(t, err)

	seq := fixtures["mock-reviewing"]
	require.Len(t, seq, 3)
	assert.Contains(t, seq[0], "first")
	assert.Contains(t, seq[1], "second")
	assert.Contains(t, seq[2], "fallback")
}

func TestLoadFixtures_Errors(t *testing.T) {
	t.Run("empty directory", func(t *testing.T) {
		_, err := loadFixtures(t.TempDir())
		require.Error(t, err)
	})

	t.Run("invalid json", func(t *testing.T) {
		dir := t.TempDir()
		writeFixture(t, dir, "mock-planning.json", `{"days":`)
		_, err := loadFixtures(dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid JSON")
	})
}

func TestNumberedFileRegex(t *testing.T) {
	tests := []struct {
		name  string
		match bool
		model string
	}{
		{"mock-reviewing.1.json", true, "mock-reviewing"},
		{"planning.12.txt", true, "planning"},
		{"mock-reviewing.json", false, ""},
		{"mock-reviewing.1.yaml", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := numberedFileRe.FindStringSubmatch(tt.name)
			if !tt.match {
				assert.Nil(t, m)
				return
			}
			require.NotNil(t, m)
			assert.Equal(t, tt.model, m[1])
		})
	}
}

func TestSequentialFixtureSelection(t *testing.T) {
	s := newServer(map[string][]string{
		"mock-reviewing": {"first", "second"},
		"planning":       {"structure"},
	}, quietLogger())
	h := s.routes()

	_, got := doCompletion(t, h, "mock-reviewing")
	assert.Equal(t, "first", got)
	_, got = doCompletion(t, h, "mock-reviewing")
	assert.Equal(t, "second", got)
	_, got = doCompletion(t, h, "mock-reviewing")
	assert.Equal(t, "second", got, "last fixture repeats")

	_, got = doCompletion(t, h, "mock-planning")
	assert.Equal(t, "structure", got, "mock- prefix is stripped")

	code, _ := doCompletion(t, h, "mock-unknown")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestStatsAndReset(t *testing.T) {
	s := newServer(cannedFixtures(), quietLogger())
	h := s.routes()
	doCompletion(t, h, "mock-analysis")
	doCompletion(t, h, "mock-analysis")
	doCompletion(t, h, "mock-planning")

	var stats struct {
		TotalCalls   int64          `json:"total_calls"`
		CallsByModel map[string]int `json:"calls_by_model"`
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.NoError(t, json.NewDecoder(w.Body).Decode(&stats))
	assert.Equal(t, int64(3), stats.TotalCalls)
	assert.Equal(t, 2, stats.CallsByModel["mock-analysis"])

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/requests?model=mock-analysis&call=2", nil))
	var captured struct {
		RequestsByModel map[string][]capturedRequest `json:"requests_by_model"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&captured))
	require.Len(t, captured.RequestsByModel["mock-analysis"], 1)
	assert.Equal(t, 2, captured.RequestsByModel["mock-analysis"][0].CallIndex)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/reset", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Zero(t, s.calls.Load())
}

func TestCannedFixtures_CoverEveryCapability(t *testing.T) {
	fixtures := cannedFixtures()
	for _, c := range model.AllCapabilities() {
		assert.Contains(t, fixtures, modelFor(c))
	}
}

func TestRegistryConfig_Valid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	require.NoError(t, writeRegistry(path, "http://localhost:9999/v1"))

	reg, err := model.LoadFromFile(path)
	require.NoError(t, err)
	require.NoError(t, reg.Validate())
	assert.Equal(t, "mock-planning", reg.Resolve(model.CapabilityPlanning))
}

// TestPipelineAgainstMock runs a full generation over HTTP against the
// canned week.
func TestPipelineAgainstMock(t *testing.T) {
	s := newServer(cannedFixtures(), quietLogger())
	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	path := filepath.Join(t.TempDir(), "registry.json")
	require.NoError(t, writeRegistry(path, ts.URL+"/v1"))

	cfg := config.DefaultConfig()
	cfg.Backend.RegistryFile = path
	cfg.Pipeline.Backoff = 0

	gen, err := pipeline.NewGeneratorFromConfig(cfg, quietLogger(), nil)
	require.NoError(t, err)

	report, err := gen.Generate(context.Background(), agenttest.Request())
	require.NoError(t, err)
	assert.False(t, report.Fallback)
	assert.InDelta(t, agenttest.WeekTotalKm, report.Plan.TotalVolume(), 0.01)

	for _, c := range []model.Capability{
		model.CapabilityAnalysis, model.CapabilityPlanning, model.CapabilityComposing,
		model.CapabilityAllocating, model.CapabilityReviewing,
	} {
		s.mu.Lock()
		n := s.modelCalls[modelFor(c)]
		s.mu.Unlock()
		assert.Equal(t, 1, n, "calls to %s", modelFor(c))
	}
	s.mu.Lock()
	assert.Zero(t, s.modelCalls[modelFor(model.CapabilityFast)])
	s.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	for name, reqs := range s.modelRequests {
		require.NotEmpty(t, reqs, name)
		assert.NotEmpty(t, reqs[0].Messages, "prompt captured for %s", name)
	}
}

package model

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const registryJSON = `{
	"capabilities": {
		"allocating": {"preferred": ["mistral"], "fallback": ["qwen"]},
		"fast": {"preferred": ["qwen"]}
	},
	"endpoints": {
		"mistral": {"provider": "ollama", "model": "mistral"},
		"qwen": {"provider": "ollama", "url": "http://localhost:11434/v1", "model": "qwen2.5:14b", "max_tokens": 128000}
	},
	"health": {"demote_after": 2, "cooldown": "30s"}
}`

const registryYAML = `
capabilities:
  analysis:
    description: Athlete profile
    preferred: [qwen]
    fallback: [claude-sonnet]
endpoints:
  qwen:
    provider: ollama
    url: http://localhost:11434/v1
    model: qwen2.5:14b
    max_tokens: 128000
  claude-sonnet:
    provider: anthropic
    model: claude-sonnet-4-20250514
defaults:
  model: claude-sonnet
`

func TestLoadFromJSON(t *testing.T) {
	r, err := LoadFromJSON([]byte(registryJSON))
	require.NoError(t, err)

	assert.Equal(t, "mistral", r.Resolve(CapabilityAllocating))
	assert.Equal(t, []string{"mistral", "qwen"}, r.GetFallbackChain(CapabilityAllocating))
	assert.Equal(t, 128000, r.GetEndpoint("qwen").MaxTokens)

	// Capabilities missing from the file fall through to the fast model.
	assert.Equal(t, "qwen", r.Resolve(CapabilityPlanning))

	b := r.book()
	assert.Equal(t, HealthPolicy{DemoteAfter: 2, Cooldown: 30 * time.Second}, b.policy)
}

func TestLoadFromYAML(t *testing.T) {
	r, err := LoadFromYAML([]byte(registryYAML))
	require.NoError(t, err)

	assert.Equal(t, []string{"qwen", "claude-sonnet"}, r.GetFallbackChain(CapabilityAnalysis))
	assert.Equal(t, "claude-sonnet", r.Resolve(CapabilityFast))

	ep := r.GetEndpoint("qwen")
	require.NotNil(t, ep)
	assert.Equal(t, "http://localhost:11434/v1", ep.URL)
	assert.Equal(t, 128000, ep.MaxTokens)
	assert.Equal(t, DefaultHealthPolicy(), r.book().policy)
}

func TestLoadFromJSON_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data string
		want []string
	}{
		{
			name: "malformed",
			data: `not valid json`,
			want: []string{"parse registry json"},
		},
		{
			name: "empty",
			data: `{}`,
			want: []string{"no capabilities configured"},
		},
		{
			name: "unknown capability and incomplete endpoint",
			data: `{
				"capabilities": {"writing": {"preferred": ["a"]}, "fast": {"preferred": ["a"]}},
				"endpoints": {"a": {"provider": "ollama"}}
			}`,
			want: []string{`unknown capability "writing"`, "endpoint a: provider and model are required"},
		},
		{
			name: "dangling model",
			data: `{
				"capabilities": {"fast": {"preferred": ["a"], "fallback": ["ghost"]}},
				"endpoints": {"a": {"provider": "ollama", "model": "a"}}
			}`,
			want: []string{`fallback model "ghost" not found`},
		},
		{
			name: "empty chain",
			data: `{"capabilities": {"fast": {}}, "endpoints": {}}`,
			want: []string{"capability fast: no models listed"},
		},
		{
			name: "bad health policy",
			data: `{
				"capabilities": {"fast": {"preferred": ["a"]}},
				"endpoints": {"a": {"provider": "ollama", "model": "a"}},
				"health": {"demote_after": -1, "cooldown": "soon"}
			}`,
			want: []string{"demote_after must not be negative", "health.cooldown"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromJSON([]byte(tt.data))
			require.Error(t, err)
			for _, want := range tt.want {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "models.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(registryJSON), 0o644))
	r, err := LoadFromFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "mistral", r.Resolve(CapabilityAllocating))

	yamlPath := filepath.Join(dir, "models.YML")
	require.NoError(t, os.WriteFile(yamlPath, []byte(registryYAML), 0o644))
	r, err = LoadFromFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "qwen", r.Resolve(CapabilityAnalysis))

	_, err = LoadFromFile(filepath.Join(dir, "missing.json"))
	assert.ErrorContains(t, err, "read registry file")
}

func TestHealthFileConfig_Policy(t *testing.T) {
	var nilCfg *HealthFileConfig
	p, err := nilCfg.Policy()
	require.NoError(t, err)
	assert.Equal(t, DefaultHealthPolicy(), p)

	zero := 0
	p, err = (&HealthFileConfig{DemoteAfter: &zero}).Policy()
	require.NoError(t, err)
	assert.Zero(t, p.DemoteAfter)
	assert.Equal(t, time.Minute, p.Cooldown)
}

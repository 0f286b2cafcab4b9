package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "priority", cfg.Rules.ConflictStrategy)
	assert.Equal(t, 10, cfg.Rules.MaxIterations)
	assert.InDelta(t, 0.6, cfg.Bayes.DecisionThreshold, 1e-9)
	assert.Equal(t, 1000, cfg.RL.BufferSize)
	assert.Equal(t, 10, cfg.Planner.MaxPlanLength)
	assert.Equal(t, 100, cfg.Meta.HistoryCap)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Rules.MaxIterations, cfg.Rules.MaxIterations)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "noesis.yaml")
	content := `
rules:
  conflict_strategy: recency
  max_iterations: 5
rl:
  epsilon: 0.5
planner:
  search_timeout: 2s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "recency", cfg.Rules.ConflictStrategy)
	assert.Equal(t, 5, cfg.Rules.MaxIterations)
	assert.InDelta(t, 0.5, cfg.RL.Epsilon, 1e-9)
	assert.Equal(t, 2*time.Second, cfg.Planner.SearchTimeout)

	// Untouched sections keep defaults.
	assert.InDelta(t, 0.6, cfg.Bayes.DecisionThreshold, 1e-9)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules: [not a map"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("NOESIS_CONFLICT_STRATEGY", "specificity")
	t.Setenv("NOESIS_EPSILON", "0.42")
	t.Setenv("NOESIS_MAX_PLAN_LENGTH", "7")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "specificity", cfg.Rules.ConflictStrategy)
	assert.InDelta(t, 0.42, cfg.RL.Epsilon, 1e-9)
	assert.Equal(t, 7, cfg.Planner.MaxPlanLength)
}

func TestLoad_EnvOverrideCanInvalidate(t *testing.T) {
	t.Setenv("NOESIS_CONFLICT_STRATEGY", "chaos")

	_, err := Load("")
	assert.Error(t, err, "validation runs after overlays")
}

func TestValidate_RejectsBadSections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad strategy", func(c *Config) { c.Rules.ConflictStrategy = "random" }},
		{"zero iterations", func(c *Config) { c.Rules.MaxIterations = 0 }},
		{"threshold too high", func(c *Config) { c.Bayes.DecisionThreshold = 1.5 }},
		{"zero learning rate", func(c *Config) { c.RL.LearningRate = 0 }},
		{"negative buffer", func(c *Config) { c.RL.BufferSize = -1 }},
		{"zero plan length", func(c *Config) { c.Planner.MaxPlanLength = 0 }},
		{"penalty out of range", func(c *Config) { c.Meta.FallbackPenalty = 1.0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

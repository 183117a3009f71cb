package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultRiskFreeRate, cfg.Optimizer.RiskFreeRate)
	assert.Equal(t, DefaultMaxPositionSize, cfg.Optimizer.MaxPositionSize)
	assert.Equal(t, DefaultMinWeight, cfg.Optimizer.MinWeight)
	assert.Equal(t, DefaultMaxIterations, cfg.Optimizer.MaxIterations)
	assert.Equal(t, 8001, cfg.Port)
	assert.Empty(t, cfg.Schedule)
	assert.Equal(t, DefaultRunsRetention, cfg.Retention)
	assert.False(t, cfg.Universe.FilterMinReturn)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("RISK_FREE_RATE", "0.02")
	t.Setenv("MAX_POSITION_SIZE", "0.1")
	t.Setenv("MAX_ITERATIONS", "250")
	t.Setenv("FILTER_MIN_RETURN", "true")
	t.Setenv("OPTIMIZE_SCHEDULE", "@daily")
	t.Setenv("RUNS_RETENTION", "10")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 0.02, cfg.Optimizer.RiskFreeRate)
	assert.Equal(t, 0.1, cfg.Optimizer.MaxPositionSize)
	assert.Equal(t, 250, cfg.Optimizer.MaxIterations)
	assert.True(t, cfg.Universe.FilterMinReturn)
	assert.Equal(t, "@daily", cfg.Schedule)
	assert.Equal(t, 10, cfg.Retention)
}

func TestLoad_RejectsNegativeRetention(t *testing.T) {
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("RUNS_RETENTION", "-1")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_InvalidValueFallsBackToDefault(t *testing.T) {
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("MAX_ITERATIONS", "many")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxIterations, cfg.Optimizer.MaxIterations)
}

func TestOptimizerConfig_Validate(t *testing.T) {
	valid := OptimizerConfig{
		RiskFreeRate:    0.04,
		MaxPositionSize: 0.4,
		MinWeight:       0.01,
		MaxIterations:   1000,
	}
	require.NoError(t, valid.Validate())

	testCases := []struct {
		name   string
		mutate func(*OptimizerConfig)
	}{
		{"zero max position", func(o *OptimizerConfig) { o.MaxPositionSize = 0 }},
		{"max position above one", func(o *OptimizerConfig) { o.MaxPositionSize = 1.5 }},
		{"negative min weight", func(o *OptimizerConfig) { o.MinWeight = -0.1 }},
		{"min weight of one", func(o *OptimizerConfig) { o.MinWeight = 1 }},
		{"no iterations", func(o *OptimizerConfig) { o.MaxIterations = 0 }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

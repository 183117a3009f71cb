package optimization

import (
	"fmt"

	"github.com/aristath/previ-optimizer/internal/config"
)

const (
	// SnapThreshold: solved weights strictly below it are set to exactly 0.
	SnapThreshold = 0.01

	feasibilityTolerance = 1e-9
	minVarianceProxy     = 1e-10

	// Projected gradient ascent
	stationarityTolerance = 1e-8 // Norm of P(w+∇f)−w at which w counts as stationary
	armijoFactor          = 1e-4
	minStep               = 1e-14
	maxStep               = 1e3
)

// Settings configures one optimization run.
type Settings struct {
	RiskFreeRate    float64 `json:"risk_free_rate"`
	MaxPositionSize float64 `json:"max_position_size"`
	MinWeight       float64 `json:"min_weight"` // Allocation summary threshold
	MaxIterations   int     `json:"max_iterations"`
}

// DefaultSettings returns the documented defaults.
func DefaultSettings() Settings {
	return Settings{
		RiskFreeRate:    config.DefaultRiskFreeRate,
		MaxPositionSize: config.DefaultMaxPositionSize,
		MinWeight:       config.DefaultMinWeight,
		MaxIterations:   config.DefaultMaxIterations,
	}
}

// SettingsFromConfig maps the optimizer section of the application config.
func SettingsFromConfig(cfg config.OptimizerConfig) Settings {
	return Settings{
		RiskFreeRate:    cfg.RiskFreeRate,
		MaxPositionSize: cfg.MaxPositionSize,
		MinWeight:       cfg.MinWeight,
		MaxIterations:   cfg.MaxIterations,
	}
}

func (s Settings) withDefaults() Settings {
	if s.MaxIterations <= 0 {
		s.MaxIterations = config.DefaultMaxIterations
	}
	return s
}

// Validate checks the settings against their allowed ranges.
func (s Settings) Validate() error {
	err := config.OptimizerConfig{
		RiskFreeRate:    s.RiskFreeRate,
		MaxPositionSize: s.MaxPositionSize,
		MinWeight:       s.MinWeight,
		MaxIterations:   s.MaxIterations,
	}.Validate()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	return nil
}

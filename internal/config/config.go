// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir     string // Directory holding the run history database (always absolute)
	DatasetPath string // Prepared instrument CSV
	ChartDir    string // Where allocation charts are written
	LogLevel    string
	Port        int
	DevMode     bool
	Schedule    string // Cron expression for periodic re-optimization, empty disables it
	Retention   int    // Number of runs kept by the prune job, 0 keeps everything
	Optimizer   OptimizerConfig
	Universe    UniverseConfig
}

// OptimizerConfig holds the options consumed by the optimizer.
type OptimizerConfig struct {
	RiskFreeRate    float64 // Annual risk-free rate as a decimal fraction
	MaxPositionSize float64 // Maximum weight of any single instrument, in (0,1]
	MinWeight       float64 // Allocation summary display threshold
	MaxIterations   int
}

// UniverseConfig controls how the instrument CSV is filtered on load.
type UniverseConfig struct {
	FilterMinReturn bool
	MinRecentReturn float64 // Instruments at or below this mean recent return are dropped when filtering
}

// Defaults
const (
	DefaultRiskFreeRate    = 0.04
	DefaultMaxPositionSize = 0.4
	DefaultMinWeight       = 0.01
	DefaultMaxIterations   = 1000
	DefaultMinRecentReturn = 0.05
	DefaultRunsRetention   = 500
)

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	absDataDir, err := filepath.Abs(getEnv("DATA_DIR", "data"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:     absDataDir,
		DatasetPath: getEnv("DATASET_PATH", filepath.Join("data", "processed", "data.csv")),
		ChartDir:    getEnv("CHART_DIR", "visualizations"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Port:        getEnvAsInt("PORT", 8001),
		DevMode:     getEnvAsBool("DEV_MODE", false),
		Schedule:    getEnv("OPTIMIZE_SCHEDULE", ""),
		Retention:   getEnvAsInt("RUNS_RETENTION", DefaultRunsRetention),
		Optimizer: OptimizerConfig{
			RiskFreeRate:    getEnvAsFloat("RISK_FREE_RATE", DefaultRiskFreeRate),
			MaxPositionSize: getEnvAsFloat("MAX_POSITION_SIZE", DefaultMaxPositionSize),
			MinWeight:       getEnvAsFloat("MIN_WEIGHT", DefaultMinWeight),
			MaxIterations:   getEnvAsInt("MAX_ITERATIONS", DefaultMaxIterations),
		},
		Universe: UniverseConfig{
			FilterMinReturn: getEnvAsBool("FILTER_MIN_RETURN", false),
			MinRecentReturn: getEnvAsFloat("MIN_RECENT_RETURN", DefaultMinRecentReturn),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// DatabasePath returns the location of the run history database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "runs.db")
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.DatasetPath == "" {
		return fmt.Errorf("DATASET_PATH must not be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	if c.Retention < 0 {
		return fmt.Errorf("RUNS_RETENTION must not be negative, got %d", c.Retention)
	}
	return c.Optimizer.Validate()
}

// Validate checks the optimizer options against their allowed ranges.
func (o OptimizerConfig) Validate() error {
	if math.IsNaN(o.RiskFreeRate) || math.IsInf(o.RiskFreeRate, 0) {
		return fmt.Errorf("risk_free_rate must be finite, got %v", o.RiskFreeRate)
	}
	if !(o.MaxPositionSize > 0 && o.MaxPositionSize <= 1) {
		return fmt.Errorf("max_position_size must be in (0,1], got %v", o.MaxPositionSize)
	}
	if !(o.MinWeight >= 0 && o.MinWeight < 1) {
		return fmt.Errorf("min_weight must be in [0,1), got %v", o.MinWeight)
	}
	if o.MaxIterations <= 0 {
		return fmt.Errorf("max_iterations must be positive, got %d", o.MaxIterations)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// Package runs persists optimization runs in SQLite.
package runs

import (
	"errors"
	"time"

	"github.com/aristath/previ-optimizer/internal/modules/allocation"
)

// ErrRunNotFound is returned when no run has the requested identifier.
var ErrRunNotFound = errors.New("optimization run not found")

// Record is one stored optimization run.
type Record struct {
	ID              string    `json:"id"`
	CreatedAt       time.Time `json:"created_at"`
	Dataset         string    `json:"dataset"`
	RiskFreeRate    float64   `json:"risk_free_rate"`
	MaxPositionSize float64   `json:"max_position_size"`
	MinWeight       float64   `json:"min_weight"`
	CompoundReturn  float64   `json:"compound_return"`
	SharpeRatio     float64   `json:"-"` // May be ±Inf, see SharpeDefined
	SharpeDefined   bool      `json:"sharpe_defined"`
	Converged       bool      `json:"converged"`
	Status          string    `json:"status"`
	Years           int       `json:"years"`
	Payload         Payload   `json:"payload"`
}

// Payload holds the per-instrument data of a run, stored as one msgpack blob.
type Payload struct {
	ISINs       []string         `msgpack:"isins" json:"isins"`
	Assets      []string         `msgpack:"assets" json:"assets"`
	Weights     []float64        `msgpack:"weights" json:"weights"`
	Allocation  []allocation.Row `msgpack:"allocation" json:"allocation"`
	WindowYears []int            `msgpack:"window_years" json:"window_years"`
	SharpeRatio float64          `msgpack:"sharpe_ratio" json:"-"`
	Method      string           `msgpack:"method" json:"method"`
	Iterations  int              `msgpack:"iterations" json:"iterations"`
}

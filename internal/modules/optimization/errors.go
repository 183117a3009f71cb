package optimization

import (
	"errors"
	"fmt"
)

var (
	// ErrInfeasibleOptimization is returned when the solver cannot produce any
	// feasible weight vector, e.g. for an empty universe.
	ErrInfeasibleOptimization = errors.New("no feasible portfolio")

	// ErrInfeasibleConstraint matches every *InfeasibleConstraintError.
	ErrInfeasibleConstraint = errors.New("infeasible position constraints")

	// ErrUndefinedSharpe is returned alongside statistics whose volatility
	// proxy is zero. The accompanying SharpeRatio holds a sentinel value.
	ErrUndefinedSharpe = errors.New("sharpe ratio undefined for zero volatility")

	// ErrInvalidSettings wraps out-of-range run settings.
	ErrInvalidSettings = errors.New("invalid optimizer settings")
)

// InfeasibleConstraintError reports a position cap that cannot satisfy the
// budget constraint: MaxPositionSize × Instruments < 1.
type InfeasibleConstraintError struct {
	MaxPositionSize float64
	Instruments     int
}

func (e *InfeasibleConstraintError) Error() string {
	return fmt.Sprintf("max_position_size %.4g × %d instruments = %.4g < 1: weights cannot sum to 1",
		e.MaxPositionSize, e.Instruments, e.MaxPositionSize*float64(e.Instruments))
}

// Is lets errors.Is(err, ErrInfeasibleConstraint) match.
func (e *InfeasibleConstraintError) Is(target error) bool {
	return target == ErrInfeasibleConstraint
}

// CheckFeasible validates that n weights capped at maxPositionSize can sum to 1.
func CheckFeasible(n int, maxPositionSize float64) error {
	if n == 0 {
		return ErrInfeasibleOptimization
	}
	if !(maxPositionSize > 0) || maxPositionSize*float64(n) < 1-feasibilityTolerance {
		return &InfeasibleConstraintError{MaxPositionSize: maxPositionSize, Instruments: n}
	}
	return nil
}

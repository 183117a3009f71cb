package optimization

import (
	"errors"
	"fmt"
	"math"

	"github.com/aristath/previ-optimizer/internal/modules/dataset"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
)

// Solver statuses reported in SolveInfo.Status.
const (
	StatusStationary       = "Stationary"
	StatusIterationLimit   = "IterationLimit"
	StatusLineSearchFailed = "LineSearchFailed"

	methodProjectedGradient = "ProjectedGradient"
)

// SharpeOptimizer finds long-only weights maximizing the Sharpe ratio.
type SharpeOptimizer struct {
	settings Settings
	log      zerolog.Logger
}

// NewSharpeOptimizer creates a new Sharpe optimizer.
func NewSharpeOptimizer(settings Settings, log zerolog.Logger) *SharpeOptimizer {
	return &SharpeOptimizer{
		settings: settings.withDefaults(),
		log:      log.With().Str("component", "sharpe_optimizer").Logger(),
	}
}

// Settings returns the run settings.
func (o *SharpeOptimizer) Settings() Settings {
	return o.settings
}

// Optimize solves
//
//	maximize   (μ'w − r_f) / sqrt(vol'w)
//	subject to Σw = 1, 0 ≤ wᵢ ≤ max_position_size
//
// over one weight per row of the dataset's returns matrix, starting from equal
// weights. Every iterate stays on the feasible set, so hitting the iteration
// cap degrades to a best-effort answer instead of an error.
//
// The solved point is then snapped, renormalized and re-evaluated with
// ComputeStatistics so the reported figures describe the returned weights.
func (o *SharpeOptimizer) Optimize(ds *dataset.Dataset) (*Portfolio, error) {
	if ds == nil || ds.Len() == 0 {
		return nil, ErrInfeasibleOptimization
	}
	n := ds.Len()
	if err := CheckFeasible(n, o.settings.MaxPositionSize); err != nil {
		return nil, err
	}

	upper := math.Min(o.settings.MaxPositionSize, 1)
	inputs := newInstrumentInputs(ds)
	objective := newSharpeObjective(inputs, o.settings.RiskFreeRate)

	initial := make([]float64, n)
	for i := range initial {
		initial[i] = 1.0 / float64(n)
	}

	solved, info := o.ascend(objective, initial, upper)

	weights, err := normalizeWeights(solved, upper)
	if err != nil {
		return nil, err
	}

	stats, err := inputs.statistics(weights, o.settings.RiskFreeRate)
	sharpeDefined := true
	if errors.Is(err, ErrUndefinedSharpe) {
		sharpeDefined = false
		o.log.Warn().
			Float64("mean_return", stats.MeanReturn).
			Float64("sharpe_sentinel", stats.SharpeRatio).
			Msg("Volatility proxy is zero, Sharpe ratio reported as sentinel")
	} else if err != nil {
		return nil, fmt.Errorf("failed to evaluate optimized weights: %w", err)
	}

	if !info.Converged {
		o.log.Warn().
			Str("status", info.Status).
			Int("iterations", info.Iterations).
			Int("max_iterations", o.settings.MaxIterations).
			Msg("Solver stopped before convergence, using best point found")
	}

	return &Portfolio{
		stats:         stats,
		sharpeDefined: sharpeDefined,
		weights:       weights,
		assets:        ds.Names(),
		isins:         ds.Returns().ISINs(),
		solve:         info,
	}, nil
}

// ascend runs projected gradient ascent on {w : Σw = 1, 0 ≤ wᵢ ≤ upper} from
// the feasible point start. Trial steps start at the Barzilai-Borwein length
// and are halved until the Armijo condition
//
//	f(P(w + t∇f)) ≥ f(w) + c·∇f'(P(w + t∇f) − w)
//
// holds, so Sharpe never decreases. The point is stationary when
// ‖P(w + ∇f) − w‖ ≤ stationarityTolerance.
func (o *SharpeOptimizer) ascend(objective *sharpeObjective, start []float64, upper float64) ([]float64, SolveInfo) {
	n := len(start)
	info := SolveInfo{Method: methodProjectedGradient}

	w := append([]float64(nil), start...)
	f := objective.value(w)
	grad := make([]float64, n)
	objective.gradient(grad, w)

	trial := make([]float64, n)
	step := 1.0
	for {
		if objective.stationarity(w, grad, upper) <= stationarityTolerance {
			info.Converged = true
			info.Status = StatusStationary
			break
		}
		if info.Iterations >= o.settings.MaxIterations {
			info.Status = StatusIterationLimit
			break
		}

		var next []float64
		var fNext float64
		accepted := false
		for t := step; t >= minStep; t /= 2 {
			for i := range trial {
				trial[i] = w[i] + t*grad[i]
			}
			next = projectToCappedSimplex(trial, upper)
			fNext = objective.value(next)

			var gain float64
			for i := range next {
				gain += grad[i] * (next[i] - w[i])
			}
			if fNext >= f+armijoFactor*gain {
				accepted = true
				break
			}
		}
		if !accepted {
			info.Status = StatusLineSearchFailed
			break
		}
		info.Iterations++

		nextGrad := make([]float64, n)
		objective.gradient(nextGrad, next)

		// Barzilai-Borwein length for the next trial; Sharpe is maximized, so
		// the curvature term s'y is negative where the surface is concave.
		var ss, sy float64
		for i := range next {
			s := next[i] - w[i]
			ss += s * s
			sy += s * (nextGrad[i] - grad[i])
		}
		if sy < 0 {
			step = clamp(ss/-sy, minStep, maxStep)
		} else {
			step = 1.0
		}

		w, f, grad = next, fNext, nextGrad
	}

	info.Evaluations = objective.evaluations
	return w, info
}

// sharpeObjective evaluates the Sharpe ratio and its gradient with the
// variance proxy floored, so neither divides by zero.
type sharpeObjective struct {
	inputs       instrumentInputs
	riskFreeRate float64
	evaluations  int
}

func newSharpeObjective(inputs instrumentInputs, riskFreeRate float64) *sharpeObjective {
	return &sharpeObjective{
		inputs:       inputs,
		riskFreeRate: riskFreeRate,
	}
}

func (s *sharpeObjective) moments(w []float64) (mean, variance float64) {
	return floats.Dot(s.inputs.mean, w), floats.Dot(s.inputs.vol, w)
}

func (s *sharpeObjective) value(w []float64) float64 {
	s.evaluations++
	mean, variance := s.moments(w)
	return (mean - s.riskFreeRate) / math.Sqrt(math.Max(variance, minVarianceProxy))
}

// gradient writes ∂f/∂wᵢ = μᵢ/σ − (μ'w − r_f)·volᵢ/(2σ³) into grad. Below the
// variance floor σ is constant and only the first term remains.
func (s *sharpeObjective) gradient(grad, w []float64) {
	mean, variance := s.moments(w)
	floored := variance < minVarianceProxy
	sigma := math.Sqrt(math.Max(variance, minVarianceProxy))
	excess := mean - s.riskFreeRate

	for i := range grad {
		g := s.inputs.mean[i] / sigma
		if !floored {
			g -= excess * s.inputs.vol[i] / (2 * sigma * sigma * sigma)
		}
		grad[i] = g
	}
}

// stationarity is the norm of the unit projected-gradient step from w. It is
// zero exactly at the KKT points of the capped-simplex problem.
func (s *sharpeObjective) stationarity(w, grad []float64, upper float64) float64 {
	moved := make([]float64, len(w))
	for i := range w {
		moved[i] = w[i] + grad[i]
	}
	step := projectToCappedSimplex(moved, upper)
	floats.Sub(step, w)
	return floats.Norm(step, 2)
}

package optimization

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/aristath/previ-optimizer/internal/modules/dataset"
	testingpkg "github.com/aristath/previ-optimizer/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func newTestOptimizer(maxPositionSize float64) *SharpeOptimizer {
	settings := DefaultSettings()
	settings.MaxPositionSize = maxPositionSize
	return NewSharpeOptimizer(settings, zerolog.Nop())
}

func assertFeasible(t *testing.T, weights []float64, maxPositionSize float64) {
	t.Helper()
	assert.InDelta(t, 1.0, floats.Sum(weights), 1e-9, "weights should sum to 1")
	for i, w := range weights {
		assert.GreaterOrEqual(t, w, 0.0, "weight %d should be non-negative", i)
		assert.LessOrEqual(t, w, maxPositionSize+1e-12, "weight %d should respect the cap", i)
	}
}

func TestSharpeOptimizer_IdenticalInstruments(t *testing.T) {
	ds := testingpkg.NewDataset(t,
		testingpkg.UniformFund("A", "Equity", 0.08, 0.04),
		testingpkg.UniformFund("B", "Equity", 0.08, 0.04),
		testingpkg.UniformFund("C", "Equity", 0.08, 0.04),
	)

	p, err := newTestOptimizer(0.5).Optimize(ds)
	require.NoError(t, err)

	assertFeasible(t, p.Weights(), 0.5)
	for _, w := range p.Weights() {
		assert.InDelta(t, 1.0/3, w, 1e-9)
	}
	assert.InDelta(t, 0.2, p.SharpeRatio(), 1e-9)
	assert.True(t, p.SharpeDefined())
}

func TestSharpeOptimizer_InfeasibleCap(t *testing.T) {
	funds := testingpkg.NewFundFixtures()
	ds := testingpkg.NewDataset(t, funds...)

	p, err := newTestOptimizer(0.1).Optimize(ds)
	require.Error(t, err)
	assert.Nil(t, p)
	assert.ErrorIs(t, err, ErrInfeasibleConstraint)

	var capErr *InfeasibleConstraintError
	require.True(t, errors.As(err, &capErr))
	assert.Equal(t, 5, capErr.Instruments)
	assert.Equal(t, 0.1, capErr.MaxPositionSize)
}

func TestSharpeOptimizer_SingleInstrument(t *testing.T) {
	ds := testingpkg.NewDataset(t, testingpkg.UniformFund("A", "Equity", 0.08, 0.04))

	p, err := newTestOptimizer(1.0).Optimize(ds)
	require.NoError(t, err)

	assert.Equal(t, []float64{1.0}, p.Weights())

	own, err := ComputeStatistics([]float64{1}, ds, DefaultSettings().RiskFreeRate)
	require.NoError(t, err)
	assert.Equal(t, own, p.Statistics())
}

func TestSharpeOptimizer_EmptyUniverse(t *testing.T) {
	_, err := newTestOptimizer(0.4).Optimize(nil)
	assert.ErrorIs(t, err, ErrInfeasibleOptimization)
}

func TestSharpeOptimizer_MixedUniverse(t *testing.T) {
	ds := testingpkg.NewDataset(t, testingpkg.NewFundFixtures()...)
	rf := DefaultSettings().RiskFreeRate

	p, err := newTestOptimizer(0.4).Optimize(ds)
	require.NoError(t, err)

	weights := p.Weights()
	require.Len(t, weights, ds.Len())
	assertFeasible(t, weights, 0.4)
	for _, w := range weights {
		assert.True(t, w == 0 || w >= SnapThreshold, "weight %v should be snapped or above threshold", w)
	}

	// Reported figures describe the returned weights
	stats, err := ComputeStatistics(weights, ds, rf)
	require.NoError(t, err)
	assert.Equal(t, stats.SharpeRatio, p.SharpeRatio())
	assert.Equal(t, stats.CompoundReturn, p.CompoundReturn())

	equal := make([]float64, ds.Len())
	for i := range equal {
		equal[i] = 1.0 / float64(ds.Len())
	}
	baseline, err := ComputeStatistics(equal, ds, rf)
	require.NoError(t, err)
	assert.Greater(t, p.SharpeRatio(), baseline.SharpeRatio)

	// The growth fund has the best return per unit of volatility
	assert.Equal(t, floats.Max(weights), p.Weight("LU0360863863"))
	assert.Equal(t, ds.Names(), p.Assets())
	assert.Equal(t, ds.Returns().ISINs(), p.ISINs())
}

func TestSharpeOptimizer_Deterministic(t *testing.T) {
	ds := testingpkg.NewDataset(t, testingpkg.NewFundFixtures()...)

	first, err := newTestOptimizer(0.4).Optimize(ds)
	require.NoError(t, err)
	second, err := newTestOptimizer(0.4).Optimize(ds)
	require.NoError(t, err)

	assert.Equal(t, first.Weights(), second.Weights())
}

func TestSharpeOptimizer_IterationCap(t *testing.T) {
	ds := testingpkg.NewDataset(t, testingpkg.NewFundFixtures()...)

	settings := DefaultSettings()
	settings.MaxIterations = 1
	p, err := NewSharpeOptimizer(settings, zerolog.Nop()).Optimize(ds)
	require.NoError(t, err)

	assertFeasible(t, p.Weights(), settings.MaxPositionSize)
	assert.LessOrEqual(t, p.Solve().Iterations, 1)
	assert.Positive(t, p.Solve().Evaluations)
}

// randomUniverse builds n instruments with yearly returns in [-15%, 25%) and
// volatility in [2%, 35%).
func randomUniverse(t *testing.T, rng *rand.Rand, n int) *dataset.Dataset {
	t.Helper()

	categories := []string{"Equity", "Bonds", "Mixed"}
	funds := make([]testingpkg.FundFixture, n)
	for i := range funds {
		var returns [7]float64
		for y := range returns {
			returns[y] = -0.15 + 0.4*rng.Float64()
		}
		funds[i] = testingpkg.FundFixture{
			ISIN:       fmt.Sprintf("XX%010d", i),
			Name:       fmt.Sprintf("Fund %d", i),
			Category:   categories[i%len(categories)],
			Returns:    returns,
			Volatility: 0.02 + 0.33*rng.Float64(),
			Fees:       0.01,
			Sharpe:     0.5,
		}
	}
	return testingpkg.NewDataset(t, funds...)
}

// bestProjectedStep returns the largest Sharpe gain over steps P(w + t∇f)
// with t from 1 down to 1e-8.
func bestProjectedStep(objective *sharpeObjective, w []float64, upper float64) float64 {
	grad := make([]float64, len(w))
	objective.gradient(grad, w)
	f := objective.value(w)

	var best float64
	trial := make([]float64, len(w))
	for step := 1.0; step >= 1e-8; step /= 2 {
		for i := range trial {
			trial[i] = w[i] + step*grad[i]
		}
		if gain := objective.value(projectToCappedSimplex(trial, upper)) - f; gain > best {
			best = gain
		}
	}
	return best
}

func TestSharpeOptimizer_ReachesStationaryPoint(t *testing.T) {
	rf := DefaultSettings().RiskFreeRate

	for _, n := range []int{10, 15, 20, 25, 30, 35, 40} {
		for _, maxPos := range []float64{0.2, 0.3, 0.5} {
			t.Run(fmt.Sprintf("n=%d cap=%.1f", n, maxPos), func(t *testing.T) {
				rng := rand.New(rand.NewSource(int64(n*100) + int64(maxPos*10)))
				ds := randomUniverse(t, rng, n)
				o := newTestOptimizer(maxPos)

				equal := make([]float64, n)
				for i := range equal {
					equal[i] = 1.0 / float64(n)
				}
				objective := newSharpeObjective(newInstrumentInputs(ds), rf)
				solved, info := o.ascend(objective, equal, maxPos)

				assertFeasible(t, solved, maxPos)
				assert.GreaterOrEqual(t, objective.value(solved), objective.value(equal)-1e-12)
				assert.LessOrEqual(t, bestProjectedStep(objective, solved, maxPos), 1e-6,
					"a projected gradient step should not improve the solved point (%+v)", info)

				if info.Converged {
					grad := make([]float64, n)
					objective.gradient(grad, solved)
					assert.LessOrEqual(t, objective.stationarity(solved, grad, maxPos), stationarityTolerance)
					assert.Equal(t, StatusStationary, info.Status)
				}

				p, err := o.Optimize(ds)
				require.NoError(t, err)
				assertFeasible(t, p.Weights(), maxPos)
				for _, w := range p.Weights() {
					assert.False(t, w > 0 && w < SnapThreshold, "weight %v is between 0 and the snap threshold", w)
				}
			})
		}
	}
}

func TestSharpeOptimizer_ConvergedMeansStationary(t *testing.T) {
	ds := testingpkg.NewDataset(t, testingpkg.NewFundFixtures()...)

	p, err := newTestOptimizer(0.4).Optimize(ds)
	require.NoError(t, err)
	assert.True(t, p.Solve().Converged)
	assert.Equal(t, StatusStationary, p.Solve().Status)
	assert.Equal(t, "ProjectedGradient", p.Solve().Method)
}

func TestSharpeOptimizer_IterationLimitIsNotConverged(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	ds := randomUniverse(t, rng, 30)

	settings := DefaultSettings()
	settings.MaxIterations = 1
	o := NewSharpeOptimizer(settings, zerolog.Nop())

	equal := make([]float64, 30)
	for i := range equal {
		equal[i] = 1.0 / 30
	}
	objective := newSharpeObjective(newInstrumentInputs(ds), settings.RiskFreeRate)
	solved, info := o.ascend(objective, equal, settings.MaxPositionSize)

	grad := make([]float64, len(solved))
	objective.gradient(grad, solved)
	if objective.stationarity(solved, grad, settings.MaxPositionSize) > stationarityTolerance {
		assert.False(t, info.Converged)
		assert.NotEqual(t, StatusStationary, info.Status)
	}
	assert.LessOrEqual(t, info.Iterations, 1)
}

func TestSharpeOptimizer_ZeroVolatility(t *testing.T) {
	ds := testingpkg.NewDataset(t,
		testingpkg.UniformFund("A", "Cash", 0.08, 0),
		testingpkg.UniformFund("B", "Cash", 0.08, 0),
	)

	p, err := newTestOptimizer(1.0).Optimize(ds)
	require.NoError(t, err)

	assertFeasible(t, p.Weights(), 1.0)
	assert.False(t, p.SharpeDefined())
	assert.True(t, math.IsInf(p.SharpeRatio(), 1))
}

func TestCheckFeasible(t *testing.T) {
	assert.NoError(t, CheckFeasible(5, 0.2))
	assert.NoError(t, CheckFeasible(3, 1.0/3))
	assert.NoError(t, CheckFeasible(1, 1))
	assert.ErrorIs(t, CheckFeasible(0, 0.4), ErrInfeasibleOptimization)
	assert.ErrorIs(t, CheckFeasible(5, 0.1), ErrInfeasibleConstraint)
	assert.ErrorIs(t, CheckFeasible(2, 0), ErrInfeasibleConstraint)
	assert.ErrorIs(t, CheckFeasible(2, math.NaN()), ErrInfeasibleConstraint)
}

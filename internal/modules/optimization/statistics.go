package optimization

import (
	"fmt"
	"math"

	"github.com/aristath/previ-optimizer/internal/modules/dataset"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Statistics are the figures of one weight vector.
type Statistics struct {
	CompoundReturn float64 `json:"compound_return"`
	MeanReturn     float64 `json:"mean_return"`
	Volatility     float64 `json:"volatility"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
}

// ComputeStatistics evaluates a weight vector aligned with the dataset's
// returns matrix:
//
//	compound_return  = Σ wᵢ·(∏(1+rᵢ) − 1)
//	mean_return      = Σ wᵢ·mean(rᵢ)
//	volatility_proxy = sqrt(Σ wᵢ·volᵢ)
//	sharpe_ratio     = (mean_return − riskFreeRate) / volatility_proxy
//
// Each instrument compounds on its own and volatilities combine linearly;
// there is no covariance term. When the volatility proxy is zero the Sharpe
// ratio is set to +Inf, -Inf or 0 following the sign of the excess return and
// ErrUndefinedSharpe is returned with the statistics.
func ComputeStatistics(weights []float64, ds *dataset.Dataset, riskFreeRate float64) (Statistics, error) {
	if ds == nil {
		return Statistics{}, ErrInfeasibleOptimization
	}
	return newInstrumentInputs(ds).statistics(weights, riskFreeRate)
}

// instrumentInputs caches the per-instrument terms of the statistics.
type instrumentInputs struct {
	growth []float64 // ∏(1+r) − 1 over the returns window
	mean   []float64
	vol    []float64
}

func newInstrumentInputs(ds *dataset.Dataset) instrumentInputs {
	m := ds.Returns()
	n := m.Len()
	in := instrumentInputs{
		growth: make([]float64, n),
		mean:   make([]float64, n),
		vol:    ds.Volatilities(),
	}
	for i := 0; i < n; i++ {
		row := m.Row(i)
		g := 1.0
		for _, r := range row {
			g *= 1 + r
		}
		in.growth[i] = g - 1
		in.mean[i] = stat.Mean(row, nil)
	}
	return in
}

func (in instrumentInputs) len() int {
	return len(in.mean)
}

func (in instrumentInputs) statistics(w []float64, riskFreeRate float64) (Statistics, error) {
	if len(w) != in.len() {
		return Statistics{}, fmt.Errorf("weight vector has %d entries, universe has %d instruments", len(w), in.len())
	}
	for i, v := range w {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Statistics{}, fmt.Errorf("weight %d is not finite", i)
		}
	}

	s := Statistics{
		CompoundReturn: floats.Dot(w, in.growth),
		MeanReturn:     floats.Dot(w, in.mean),
	}

	variance := floats.Dot(w, in.vol)
	if variance <= 0 {
		s.SharpeRatio = undefinedSharpe(s.MeanReturn - riskFreeRate)
		return s, ErrUndefinedSharpe
	}

	s.Volatility = math.Sqrt(variance)
	s.SharpeRatio = (s.MeanReturn - riskFreeRate) / s.Volatility
	return s, nil
}

func undefinedSharpe(excess float64) float64 {
	switch {
	case excess > 0:
		return math.Inf(1)
	case excess < 0:
		return math.Inf(-1)
	default:
		return 0
	}
}

package optimization

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// projectToCappedSimplex returns the Euclidean projection of x onto
// {w : Σw = 1, 0 ≤ wᵢ ≤ upper}. The projection has the form
// wᵢ = clamp(xᵢ − τ, 0, upper); τ is found by bisection on the
// non-increasing map τ ↦ Σ clamp(xᵢ − τ). Requires len(x)·upper ≥ 1.
func projectToCappedSimplex(x []float64, upper float64) []float64 {
	w := make([]float64, len(x))
	if len(x) == 0 {
		return w
	}

	lo := floats.Min(x) - upper // every weight at the cap: sum ≥ 1
	hi := floats.Max(x)         // every weight at zero: sum = 0
	for iter := 0; iter < 200 && hi-lo > 1e-15; iter++ {
		tau := 0.5 * (lo + hi)
		if cappedSum(x, tau, upper) > 1 {
			lo = tau
		} else {
			hi = tau
		}
	}

	tau := refineShift(x, 0.5*(lo+hi), upper)
	for i, v := range x {
		w[i] = clamp(v-tau, 0, upper)
	}
	return w
}

// refineShift solves Σ_free (xᵢ − τ) + capped·upper = 1 exactly for the
// free and capped sets found at the bisected τ.
func refineShift(x []float64, tau, upper float64) float64 {
	var freeSum float64
	var free, capped int
	for _, v := range x {
		switch d := v - tau; {
		case d >= upper:
			capped++
		case d > 0:
			freeSum += v
			free++
		}
	}
	if free == 0 {
		return tau
	}
	refined := (freeSum + float64(capped)*upper - 1) / float64(free)
	if math.IsNaN(refined) || math.IsInf(refined, 0) {
		return tau
	}
	return refined
}

func cappedSum(x []float64, tau, upper float64) float64 {
	var sum float64
	for _, v := range x {
		sum += clamp(v-tau, 0, upper)
	}
	return sum
}

func clamp(v, lower, upper float64) float64 {
	return math.Max(lower, math.Min(upper, v))
}

package optimization

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// normalizeWeights applies the deterministic post-solve steps to a solver
// point: weights below SnapThreshold become exactly 0, the rest are scaled to
// sum to 1, and any weight pushed above upper by the scaling hands its excess
// back to the uncapped positions.
//
// Two degenerate cases keep the output feasible: when every weight is below
// the threshold the unsnapped vector is rescaled instead, and when every
// remaining position already sits at the cap, snapped positions are reopened
// in decreasing order of their solver weight. A reopened position is raised
// to SnapThreshold, taken from the positions above it, so no weight ends in
// (0, SnapThreshold) unless the cap itself is below the threshold or the other
// positions cannot spare the difference.
func normalizeWeights(raw []float64, upper float64) ([]float64, error) {
	clean := make([]float64, len(raw))
	for i, v := range raw {
		if v > 0 && !math.IsInf(v, 1) {
			clean[i] = v
		}
	}

	w := make([]float64, len(clean))
	for i, v := range clean {
		if v >= SnapThreshold {
			w[i] = v
		}
	}

	sum := floats.Sum(w)
	if sum == 0 {
		copy(w, clean)
		sum = floats.Sum(w)
	}
	if sum == 0 {
		return nil, ErrInfeasibleOptimization
	}
	for i := range w {
		w[i] /= sum
	}

	enforceCap(w, clean, upper)
	return w, nil
}

// enforceCap moves weight above upper onto uncapped active positions in
// proportion to their size. It terminates within len(w) rounds because every
// round either finishes or caps at least one more position.
func enforceCap(w, raw []float64, upper float64) {
	const tol = 1e-12

	for round := 0; round <= len(w); round++ {
		var excess float64
		for i := range w {
			if w[i] > upper {
				excess += w[i] - upper
				w[i] = upper
			}
		}
		if excess <= tol {
			return
		}

		var free float64
		for i := range w {
			if w[i] > 0 && w[i] < upper {
				free += w[i]
			}
		}
		if free > 0 {
			for i := range w {
				if w[i] > 0 && w[i] < upper {
					w[i] += excess * w[i] / free
				}
			}
			continue
		}

		for _, i := range reopenOrder(w, raw) {
			take := math.Min(excess, upper)
			w[i] = take
			excess -= take
			if excess <= tol {
				if take < SnapThreshold {
					raiseToThreshold(w, i, upper)
				}
				break
			}
		}
		return
	}
}

// raiseToThreshold lifts w[i] to SnapThreshold, drawing the difference from
// the other positions in proportion to their weight above the threshold.
func raiseToThreshold(w []float64, i int, upper float64) {
	target := math.Min(SnapThreshold, upper)
	deficit := target - w[i]
	if deficit <= 0 {
		return
	}

	var slack float64
	for j := range w {
		if j != i && w[j] > target {
			slack += w[j] - target
		}
	}
	if slack < deficit {
		return
	}

	for j := range w {
		if j != i && w[j] > target {
			w[j] -= deficit * (w[j] - target) / slack
		}
	}
	w[i] = target
}

// reopenOrder lists zero-weight positions by decreasing solver weight,
// ties in index order.
func reopenOrder(w, raw []float64) []int {
	var idx []int
	for i := range w {
		if w[i] == 0 {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return raw[idx[a]] > raw[idx[b]]
	})
	return idx
}

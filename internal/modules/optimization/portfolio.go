package optimization

// SolveInfo describes how the solver finished. Converged is set only when the
// returned point passed the stationarity check. A run that hit the iteration
// cap or a line-search failure still yields a usable best-effort portfolio.
type SolveInfo struct {
	Method      string `json:"method"`
	Status      string `json:"status"`
	Converged   bool   `json:"converged"`
	Iterations  int    `json:"iterations"`
	Evaluations int    `json:"evaluations"`
}

// Portfolio is the immutable result of one optimization run. Weights, assets
// and ISINs are aligned positionally; accessors return copies.
type Portfolio struct {
	stats         Statistics
	sharpeDefined bool
	weights       []float64
	assets        []string
	isins         []string
	solve         SolveInfo
}

// CompoundReturn returns the compound return of the final weights.
func (p *Portfolio) CompoundReturn() float64 { return p.stats.CompoundReturn }

// SharpeRatio returns the Sharpe ratio of the final weights. When
// SharpeDefined is false it holds the zero-volatility sentinel.
func (p *Portfolio) SharpeRatio() float64 { return p.stats.SharpeRatio }

// SharpeDefined reports whether the volatility proxy was non-zero.
func (p *Portfolio) SharpeDefined() bool { return p.sharpeDefined }

// Statistics returns every figure computed for the final weights.
func (p *Portfolio) Statistics() Statistics { return p.stats }

// Solve returns the solver outcome.
func (p *Portfolio) Solve() SolveInfo { return p.solve }

// Len returns the number of instruments in the universe.
func (p *Portfolio) Len() int { return len(p.weights) }

// Weights returns the final weight vector.
func (p *Portfolio) Weights() []float64 {
	return append([]float64(nil), p.weights...)
}

// Assets returns display names aligned with Weights.
func (p *Portfolio) Assets() []string {
	return append([]string(nil), p.assets...)
}

// ISINs returns identifiers aligned with Weights.
func (p *Portfolio) ISINs() []string {
	return append([]string(nil), p.isins...)
}

// Weight returns the weight of one instrument, 0 when unknown.
func (p *Portfolio) Weight(isin string) float64 {
	for i, id := range p.isins {
		if id == isin {
			return p.weights[i]
		}
	}
	return 0
}

// ActivePositions counts instruments with a non-zero weight.
func (p *Portfolio) ActivePositions() int {
	var n int
	for _, w := range p.weights {
		if w > 0 {
			n++
		}
	}
	return n
}

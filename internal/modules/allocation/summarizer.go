// Package allocation turns optimized weights into the allocation report rows
// handed to printers and chart renderers.
package allocation

import (
	"fmt"
	"sort"

	"github.com/aristath/previ-optimizer/internal/modules/dataset"
	"github.com/aristath/previ-optimizer/internal/utils"
)

// DefaultMinWeight is the default display threshold (1%).
const DefaultMinWeight = 0.01

// WeightedPortfolio is the part of an optimization result the summarizer reads.
type WeightedPortfolio interface {
	ISINs() []string
	Weights() []float64
}

// Row is one instrument of the allocation report. Percentages are in percent
// units, rounded half-to-even.
type Row struct {
	ISIN          string  `json:"isin"`
	Asset         string  `json:"asset"`
	WeightPct     float64 `json:"weight_pct"`     // 1 decimal
	Sharpe        float64 `json:"sharpe"`         // 2 decimals
	VolatilityPct float64 `json:"volatility_pct"` // 2 decimals
	ReturnPct     float64 `json:"return_pct"`     // 2 decimals, mean over the returns window
	Category      string  `json:"category"`
}

// Summarize joins the portfolio weights back onto the dataset and keeps the
// instruments whose weight exceeds minWeight, sorted by weight descending.
// Equal weights keep the returns matrix order. Neither argument is modified.
func Summarize(p WeightedPortfolio, ds *dataset.Dataset, minWeight float64) ([]Row, error) {
	isins := p.ISINs()
	weights := p.Weights()
	if len(isins) != len(weights) {
		return nil, fmt.Errorf("portfolio has %d identifiers for %d weights", len(isins), len(weights))
	}

	threshold := minWeight * 100
	rows := make([]Row, 0, len(isins))
	for i, isin := range isins {
		rec, ok := ds.Instrument(isin)
		if !ok {
			return nil, fmt.Errorf("instrument %s not found in dataset", isin)
		}
		recentMean, _ := ds.RecentMeanReturn(isin)

		weightPct := utils.Round(weights[i]*100, 1)
		if weights[i] <= minWeight || weightPct <= threshold {
			continue
		}

		rows = append(rows, Row{
			ISIN:          isin,
			Asset:         rec.Name,
			WeightPct:     weightPct,
			Sharpe:        utils.Round(rec.Sharpe, 2),
			VolatilityPct: utils.Round(rec.Volatility*100, 2),
			ReturnPct:     utils.Round(recentMean*100, 2),
			Category:      rec.Category,
		})
	}

	sort.SliceStable(rows, func(a, b int) bool {
		return rows[a].WeightPct > rows[b].WeightPct
	})
	return rows, nil
}

// CategoryWeight is the summed displayed weight of one category.
type CategoryWeight struct {
	Category  string  `json:"category"`
	WeightPct float64 `json:"weight_pct"`
	Positions int     `json:"positions"`
}

// ByCategory groups allocation rows per category, heaviest first.
func ByCategory(rows []Row) []CategoryWeight {
	index := make(map[string]int)
	var out []CategoryWeight
	for _, r := range rows {
		i, ok := index[r.Category]
		if !ok {
			i = len(out)
			index[r.Category] = i
			out = append(out, CategoryWeight{Category: r.Category})
		}
		out[i].WeightPct += r.WeightPct
		out[i].Positions++
	}
	for i := range out {
		out[i].WeightPct = utils.Round(out[i].WeightPct, 1)
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].WeightPct > out[b].WeightPct
	})
	return out
}

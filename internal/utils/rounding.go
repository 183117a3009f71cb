package utils

import (
	"math"

	"github.com/shopspring/decimal"
)

// Round rounds x to the given number of decimal places using round-half-to-even,
// the convention used for every rounded figure in reports and aggregates.
// Non-finite values are returned unchanged.
func Round(x float64, places int32) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	return decimal.NewFromFloat(x).RoundBank(places).InexactFloat64()
}

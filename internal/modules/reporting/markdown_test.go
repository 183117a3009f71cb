package reporting

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/aristath/previ-optimizer/internal/modules/allocation"
	"github.com/aristath/previ-optimizer/internal/modules/dataset"
	"github.com/aristath/previ-optimizer/internal/modules/optimization"
	"github.com/aristath/previ-optimizer/internal/modules/runs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord() *runs.Record {
	return &runs.Record{
		RiskFreeRate:    0.04,
		MaxPositionSize: 0.4,
		CompoundReturn:  0.45123,
		SharpeRatio:     0.1344,
		SharpeDefined:   true,
		Converged:       true,
		Years:           5,
		Payload: runs.Payload{
			Allocation: []allocation.Row{
				{ISIN: "A", Asset: "Fund A", WeightPct: 60, Sharpe: 0.5, VolatilityPct: 12, ReturnPct: 8, Category: "Equity"},
				{ISIN: "B", Asset: "Fund | B", WeightPct: 40, Sharpe: 0.3, VolatilityPct: 4, ReturnPct: 3, Category: "Bonds"},
			},
		},
	}
}

func TestMarkdown(t *testing.T) {
	md := Markdown(sampleRecord())

	assert.Contains(t, md, "Compound Return: 45.12% (5 years)")
	assert.Contains(t, md, "Sharpe Ratio: 0.13")
	assert.Contains(t, md, "| Fund A | A | 60.0 | 0.50 | 12.00 | 8.00 | Equity |")
	assert.Contains(t, md, `Fund \| B`)
	assert.Contains(t, md, "## By Category")
	assert.NotContains(t, md, "Solver:")
}

func TestMarkdown_UndefinedSharpeAndBestEffort(t *testing.T) {
	rec := sampleRecord()
	rec.SharpeRatio = math.Inf(1)
	rec.SharpeDefined = false
	rec.Converged = false
	rec.Status = "IterationLimit"

	md := Markdown(rec)
	assert.Contains(t, md, "Sharpe Ratio: n/a")
	assert.Contains(t, md, "stopped before convergence (IterationLimit)")
}

func TestMarkdown_EmptyAllocation(t *testing.T) {
	rec := sampleRecord()
	rec.Payload.Allocation = nil

	md := Markdown(rec)
	assert.Contains(t, md, "No position above the display threshold")
}

func TestCategoriesMarkdown(t *testing.T) {
	md := CategoriesMarkdown([]dataset.CategoryAggregate{
		{Category: "Bonds", YearlyMeans: []float64{0.01, 0.02}, Volatility: 0.05, AverageReturn: 0.015, Instruments: 2},
	}, []int{2023, 2024})

	assert.Contains(t, md, "| Category | 2023 | 2024 | Volatility 3 years | Average Return | Instruments |")
	assert.Contains(t, md, "| Bonds | 0.0100 | 0.0200 | 0.0500 | 0.0150 | 2 |")
}

func TestSweepMarkdown(t *testing.T) {
	md := SweepMarkdown([]optimization.SweepEntry{
		{MaxPositionSize: 0.1, Err: errors.New("infeasible")},
	})
	assert.Contains(t, md, "| 10 | | | | infeasible |")
}

func TestRunsMarkdown(t *testing.T) {
	rec := sampleRecord()
	rec.ID = "run-1"
	rec.CreatedAt = time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	rec.Converged = false

	md := RunsMarkdown([]runs.Record{*rec})
	assert.Contains(t, md, "| run-1 | 2025-03-01 09:30 | 40 | 45.12 | 0.13 | 2 | no |")

	assert.Contains(t, RunsMarkdown(nil), "No run stored yet")
}

func TestFormatSharpe(t *testing.T) {
	assert.Equal(t, "1.23", FormatSharpe(1.234, true))
	assert.Equal(t, "n/a", FormatSharpe(math.Inf(-1), false))
	assert.Equal(t, "n/a", FormatSharpe(math.NaN(), true))
	assert.Equal(t, "n/a", FormatSharpe(0, false))
}

func TestRender(t *testing.T) {
	out, err := Render(Markdown(sampleRecord()))
	require.NoError(t, err)
	assert.Contains(t, out, "Fund A")
}

package testing

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/aristath/previ-optimizer/internal/modules/dataset"
)

// FundFixture describes one instrument row of a test table.
// Returns holds one value per year 2018-2024.
type FundFixture struct {
	ISIN       string
	Name       string
	Category   string
	Returns    [7]float64
	Volatility float64
	Fees       float64
	Sharpe     float64
}

// UniformFund returns a fund with the same return every year.
func UniformFund(isin, category string, annualReturn, volatility float64) FundFixture {
	f := FundFixture{
		ISIN:       isin,
		Name:       "Fund " + isin,
		Category:   category,
		Volatility: volatility,
		Fees:       0.01,
		Sharpe:     0.5,
	}
	for i := range f.Returns {
		f.Returns[i] = annualReturn
	}
	return f
}

// NewFundFixtures returns a small mixed universe: two equity funds with high
// return and volatility, two bond funds with low return and volatility, and a
// money market fund below the usual risk-free rate.
func NewFundFixtures() []FundFixture {
	return []FundFixture{
		{
			ISIN: "FR0010315770", Name: "Alpha Actions Europe", Category: "Equity Europe",
			Returns:    [7]float64{-0.12, 0.25, 0.04, 0.22, -0.11, 0.16, 0.09},
			Volatility: 0.17, Fees: 0.0175, Sharpe: 0.62,
		},
		{
			ISIN: "LU0360863863", Name: "Beta World Growth", Category: "Equity World",
			Returns:    [7]float64{-0.03, 0.31, 0.18, 0.27, -0.21, 0.24, 0.21},
			Volatility: 0.19, Fees: 0.018, Sharpe: 0.81,
		},
		{
			ISIN: "FR0010149120", Name: "Gamma Oblig Euro", Category: "Bonds EUR",
			Returns:    [7]float64{-0.01, 0.05, 0.03, -0.01, -0.12, 0.07, 0.04},
			Volatility: 0.05, Fees: 0.009, Sharpe: 0.11,
		},
		{
			ISIN: "LU1694789451", Name: "Delta Credit Flexible", Category: "Bonds EUR",
			Returns:    [7]float64{-0.02, 0.06, 0.02, 0.03, -0.06, 0.08, 0.06},
			Volatility: 0.04, Fees: 0.011, Sharpe: 0.35,
		},
		{
			ISIN: "FR0000447823", Name: "Epsilon Monetaire", Category: "Money Market",
			Returns:    [7]float64{-0.004, -0.004, -0.005, -0.006, -0.001, 0.032, 0.037},
			Volatility: 0.003, Fees: 0.002, Sharpe: -0.4,
		},
	}
}

// FundHeader is the header of a prepared fund table.
var FundHeader = []string{
	"ISIN", "Unit of account", "Category",
	"2018", "2019", "2020", "2021", "2022", "2023", "2024",
	"Volatility 3 years", "Fees", "Sharpe",
}

// NewFundTable renders fixtures as a prepared table.
func NewFundTable(funds ...FundFixture) dataset.Table {
	table := dataset.Table{Header: append([]string(nil), FundHeader...)}
	for _, f := range funds {
		row := []string{f.ISIN, f.Name, f.Category}
		for _, r := range f.Returns {
			row = append(row, formatFloat(r))
		}
		row = append(row, formatFloat(f.Volatility), formatFloat(f.Fees), formatFloat(f.Sharpe))
		table.Rows = append(table.Rows, row)
	}
	return table
}

// NewDataset prepares fixtures with the default columns and fails the test on error.
func NewDataset(t *testing.T, funds ...FundFixture) *dataset.Dataset {
	t.Helper()

	ds, err := dataset.Prepare(NewFundTable(funds...), dataset.DefaultColumns())
	if err != nil {
		t.Fatalf("Failed to prepare test dataset: %v", err)
	}
	return ds
}

// WriteFundCSV writes fixtures as a prepared CSV file in dir and returns its path.
func WriteFundCSV(t *testing.T, dir string, funds ...FundFixture) string {
	t.Helper()

	path := filepath.Join(dir, "data.csv")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create fixture CSV: %v", err)
	}
	defer f.Close()

	table := NewFundTable(funds...)
	w := csv.NewWriter(f)
	if err := w.Write(table.Header); err != nil {
		t.Fatalf("Failed to write fixture CSV header: %v", err)
	}
	if err := w.WriteAll(table.Rows); err != nil {
		t.Fatalf("Failed to write fixture CSV rows: %v", err)
	}
	return path
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

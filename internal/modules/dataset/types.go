// Package dataset turns a per-instrument table into the immutable views the
// optimizer works on: instrument records, category aggregates and the
// trailing-window returns matrix.
//
// Numeric fields are expected as unit-decimal fractions: returns such as
// -0.5 to 2.0, volatility 0.0 to 1.0+, fees such as 0.0125 for "1,25%".
package dataset

import "strconv"

// Table is a raw tabular dataset: a header row plus string cells, as read
// from the prepared CSV.
type Table struct {
	Header []string
	Rows   [][]string
}

// Columns names the required columns of a Table.
type Columns struct {
	ISIN       string
	Name       string
	Category   string
	Years      []int // Full year range, ascending, one return column per year
	Volatility string
	Fees       string
	Sharpe     string
	Window     int // Trailing years kept in the returns matrix
}

// DefaultColumns returns the column layout of the prepared fund dataset.
func DefaultColumns() Columns {
	return Columns{
		ISIN:       "ISIN",
		Name:       "Unit of account",
		Category:   "Category",
		Years:      []int{2018, 2019, 2020, 2021, 2022, 2023, 2024},
		Volatility: "Volatility 3 years",
		Fees:       "Fees",
		Sharpe:     "Sharpe",
		Window:     5,
	}
}

// YearColumn returns the header name of a yearly return column.
func YearColumn(year int) string {
	return strconv.Itoa(year)
}

// InstrumentRecord is one instrument of the universe.
type InstrumentRecord struct {
	ISIN       string
	Name       string
	Category   string
	Returns    []float64 // One annual return per year of the full range
	Volatility float64   // 3-year volatility
	Fees       float64
	Sharpe     float64 // Informational, never used by the optimizer
}

func (r InstrumentRecord) clone() InstrumentRecord {
	r.Returns = append([]float64(nil), r.Returns...)
	return r
}

// CategoryAggregate holds the mean figures of one category.
type CategoryAggregate struct {
	Category      string    `json:"category"`
	YearlyMeans   []float64 `json:"yearly_means"`   // Aligned with Dataset.Years(), rounded to 4 places
	Volatility    float64   `json:"volatility"`     // Rounded to 4 places
	AverageReturn float64   `json:"average_return"` // Mean of YearlyMeans
	Instruments   int       `json:"instruments"`
}

// ReturnsMatrix holds annual returns restricted to the trailing window.
// Rows follow instrument order, columns are years ascending.
type ReturnsMatrix struct {
	years  []int
	isins  []string
	values [][]float64
}

// Years returns the window years, ascending.
func (m *ReturnsMatrix) Years() []int {
	return append([]int(nil), m.years...)
}

// ISINs returns the row keys in matrix order.
func (m *ReturnsMatrix) ISINs() []string {
	return append([]string(nil), m.isins...)
}

// Len returns the number of rows.
func (m *ReturnsMatrix) Len() int {
	return len(m.isins)
}

// Row returns a copy of row i.
func (m *ReturnsMatrix) Row(i int) []float64 {
	return append([]float64(nil), m.values[i]...)
}

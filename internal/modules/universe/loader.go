// Package universe reads the instrument universe from CSV and normalizes it
// into the table shape the dataset preparer expects.
package universe

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/aristath/previ-optimizer/internal/config"
	"github.com/aristath/previ-optimizer/internal/modules/dataset"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// headerAliases maps the column names of the raw fund spreadsheet export to
// the canonical names.
var headerAliases = map[string]string{
	"Code ISIN":             "ISIN",
	"Unité de compte":       "Unit of account",
	"Catégorie MorningStar": "Category",
	"Frais de gestion":      "Fees",
	"Ratio de Sharpe":       "Sharpe",
}

// Loader reads instrument CSV files.
type Loader struct {
	columns         dataset.Columns
	filter          bool
	minRecentReturn float64
	log             zerolog.Logger
}

// NewLoader creates a loader for the default column layout.
func NewLoader(cfg config.UniverseConfig, log zerolog.Logger) *Loader {
	return &Loader{
		columns:         dataset.DefaultColumns(),
		filter:          cfg.FilterMinReturn,
		minRecentReturn: cfg.MinRecentReturn,
		log:             log.With().Str("component", "universe_loader").Logger(),
	}
}

// Load reads the CSV file at path.
func (l *Loader) Load(path string) (dataset.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return dataset.Table{}, fmt.Errorf("failed to open universe %s: %w", path, err)
	}
	defer f.Close()

	table, err := l.Read(f)
	if err != nil {
		return dataset.Table{}, fmt.Errorf("failed to load universe %s: %w", path, err)
	}
	return table, nil
}

// Read parses CSV records: header aliases are resolved, missing numeric cells
// become "0", fee percentages become fractions and numeric cells are rounded to 4
// places. With filtering enabled, instruments whose mean return over the
// trailing window is not above the configured minimum are dropped.
func (l *Loader) Read(r io.Reader) (dataset.Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return dataset.Table{}, fmt.Errorf("failed to read csv: %w", err)
	}
	if len(records) == 0 {
		return dataset.Table{}, dataset.ErrEmptyDataset
	}

	header := canonicalHeader(records[0])
	table := dataset.Table{Header: header}

	text := map[string]bool{l.columns.ISIN: true, l.columns.Name: true, l.columns.Category: true}
	for i, record := range records[1:] {
		row, err := l.normalizeRow(header, record, text)
		if err != nil {
			return dataset.Table{}, &dataset.SchemaError{Row: i + 1, Reason: err.Error()}
		}
		table.Rows = append(table.Rows, row)
	}

	total := len(table.Rows)
	if l.filter {
		if table, err = l.filterRecentReturn(table); err != nil {
			return dataset.Table{}, err
		}
	}

	l.log.Info().
		Int("instruments", total).
		Int("kept", len(table.Rows)).
		Bool("filtered", l.filter).
		Msg("Loaded instrument universe")

	return table, nil
}

func canonicalHeader(raw []string) []string {
	header := make([]string, len(raw))
	for i, name := range raw {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if alias, ok := headerAliases[name]; ok {
			name = alias
		}
		header[i] = name
	}
	return header
}

func (l *Loader) normalizeRow(header, record []string, text map[string]bool) ([]string, error) {
	row := make([]string, len(header))
	for j, name := range header {
		var cell string
		if j < len(record) {
			cell = strings.TrimSpace(record[j])
		}
		if cell == "" {
			if !text[name] {
				row[j] = "0"
			}
			continue
		}

		switch {
		case text[name]:
			row[j] = cell
		case name == l.columns.Fees:
			fee, err := NormalizeFee(cell)
			if err != nil {
				return nil, err
			}
			row[j] = formatNumber(fee)
		default:
			row[j] = roundCell(cell)
		}
	}
	return row, nil
}

// NormalizeFee converts a management fee cell to a unit fraction rounded to 4
// places: "1,25%" becomes 0.0125. Values without a percent sign are taken as
// already being fractions.
func NormalizeFee(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, nil
	}

	percent := strings.HasSuffix(s, "%")
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	s = strings.ReplaceAll(s, ",", ".")

	fee, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid fee %q: %w", raw, err)
	}
	if percent {
		fee = fee.Div(decimal.NewFromInt(100))
	}
	return fee.RoundBank(4), nil
}

// roundCell rounds numeric cells to 4 places and leaves anything else as is.
func roundCell(cell string) string {
	d, err := decimal.NewFromString(cell)
	if err != nil {
		return cell
	}
	return formatNumber(d.RoundBank(4))
}

func formatNumber(d decimal.Decimal) string {
	return d.String()
}

func (l *Loader) filterRecentReturn(table dataset.Table) (dataset.Table, error) {
	years := l.columns.Years
	if w := l.columns.Window; w > 0 && w < len(years) {
		years = years[len(years)-w:]
	}

	index := make(map[string]int, len(table.Header))
	for i, name := range table.Header {
		index[name] = i
	}
	var cols []int
	var missing []string
	for _, y := range years {
		i, ok := index[dataset.YearColumn(y)]
		if !ok {
			missing = append(missing, dataset.YearColumn(y))
			continue
		}
		cols = append(cols, i)
	}
	if len(missing) > 0 {
		return dataset.Table{}, &dataset.SchemaError{Columns: missing, Reason: "missing return columns for recent return filter"}
	}

	kept := table.Rows[:0:0]
	for i, row := range table.Rows {
		var sum float64
		for _, c := range cols {
			v, err := strconv.ParseFloat(row[c], 64)
			if err != nil {
				return dataset.Table{}, &dataset.SchemaError{
					Columns: []string{table.Header[c]},
					Row:     i + 1,
					Reason:  "return is not a number",
				}
			}
			sum += v
		}
		if sum/float64(len(cols)) > l.minRecentReturn {
			kept = append(kept, row)
		}
	}
	table.Rows = kept
	return table, nil
}

package dataset

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/aristath/previ-optimizer/internal/utils"
	"gonum.org/v1/gonum/stat"
)

// Prepare validates a table against cols and builds the instrument table,
// the category aggregates and the returns matrix. It fails with a
// *SchemaError when a required column is absent or a value is unusable, and
// with ErrEmptyDataset when the table has no rows.
func Prepare(table Table, cols Columns) (*Dataset, error) {
	if len(cols.Years) == 0 {
		return nil, &SchemaError{Reason: "no yearly return columns configured"}
	}
	years := append([]int(nil), cols.Years...)
	sort.Ints(years)

	idx, err := resolveColumns(table.Header, cols, years)
	if err != nil {
		return nil, err
	}

	if len(table.Rows) == 0 {
		return nil, ErrEmptyDataset
	}

	instruments := make([]InstrumentRecord, 0, len(table.Rows))
	index := make(map[string]int, len(table.Rows))

	for r, row := range table.Rows {
		rec, err := parseRecord(row, r+1, idx, years)
		if err != nil {
			return nil, err
		}
		if _, dup := index[rec.ISIN]; dup {
			return nil, &SchemaError{
				Columns: []string{cols.ISIN},
				Row:     r + 1,
				Reason:  fmt.Sprintf("duplicate identifier %q", rec.ISIN),
			}
		}
		index[rec.ISIN] = len(instruments)
		instruments = append(instruments, rec)
	}

	return &Dataset{
		years:       years,
		instruments: instruments,
		index:       index,
		categories:  aggregateCategories(instruments, len(years)),
		returns:     buildReturnsMatrix(instruments, years, cols.Window),
	}, nil
}

// columnIndex holds the header position of each required column.
type columnIndex struct {
	isin, name, category     int
	years                    []int
	volatility, fees, sharpe int
}

func resolveColumns(header []string, cols Columns, years []int) (columnIndex, error) {
	positions := make(map[string]int, len(header))
	for i, h := range header {
		positions[strings.TrimSpace(h)] = i
	}

	var missing []string
	lookup := func(name string) int {
		i, ok := positions[name]
		if !ok {
			missing = append(missing, name)
			return -1
		}
		return i
	}

	idx := columnIndex{
		isin:     lookup(cols.ISIN),
		name:     lookup(cols.Name),
		category: lookup(cols.Category),
		years:    make([]int, len(years)),
	}
	for i, y := range years {
		idx.years[i] = lookup(YearColumn(y))
	}
	idx.volatility = lookup(cols.Volatility)
	idx.fees = lookup(cols.Fees)
	idx.sharpe = lookup(cols.Sharpe)

	if len(missing) > 0 {
		return columnIndex{}, &SchemaError{Columns: missing, Reason: "missing required columns"}
	}
	return idx, nil
}

func parseRecord(row []string, rowNum int, idx columnIndex, years []int) (InstrumentRecord, error) {
	cell := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	rec := InstrumentRecord{
		ISIN:     cell(idx.isin),
		Name:     cell(idx.name),
		Category: cell(idx.category),
		Returns:  make([]float64, len(years)),
	}
	if rec.ISIN == "" {
		return InstrumentRecord{}, &SchemaError{Row: rowNum, Reason: "empty identifier"}
	}

	for i, y := range years {
		v, err := parseNumber(cell(idx.years[i]))
		if err != nil {
			return InstrumentRecord{}, &SchemaError{Columns: []string{YearColumn(y)}, Row: rowNum, Reason: err.Error()}
		}
		rec.Returns[i] = v
	}

	var err error
	if rec.Volatility, err = parseNumber(cell(idx.volatility)); err != nil {
		return InstrumentRecord{}, &SchemaError{Row: rowNum, Reason: "volatility: " + err.Error()}
	}
	if rec.Volatility < 0 {
		return InstrumentRecord{}, &SchemaError{Row: rowNum, Reason: fmt.Sprintf("negative volatility %v", rec.Volatility)}
	}
	if rec.Fees, err = parseNumber(cell(idx.fees)); err != nil {
		return InstrumentRecord{}, &SchemaError{Row: rowNum, Reason: "fees: " + err.Error()}
	}
	if rec.Sharpe, err = parseNumber(cell(idx.sharpe)); err != nil {
		return InstrumentRecord{}, &SchemaError{Row: rowNum, Reason: "sharpe: " + err.Error()}
	}

	return rec, nil
}

// parseNumber resolves a cell to a finite number. Missing values default to 0.
func parseNumber(s string) (float64, error) {
	switch strings.ToLower(s) {
	case "", "nan", "null", "none":
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite number %q", s)
	}
	return v, nil
}

func aggregateCategories(instruments []InstrumentRecord, nYears int) []CategoryAggregate {
	members := make(map[string][]int)
	var names []string
	for i, rec := range instruments {
		if _, ok := members[rec.Category]; !ok {
			names = append(names, rec.Category)
		}
		members[rec.Category] = append(members[rec.Category], i)
	}
	sort.Strings(names)

	aggregates := make([]CategoryAggregate, 0, len(names))
	for _, name := range names {
		rows := members[name]
		agg := CategoryAggregate{
			Category:    name,
			YearlyMeans: make([]float64, nYears),
			Instruments: len(rows),
		}

		column := make([]float64, len(rows))
		for y := 0; y < nYears; y++ {
			for k, i := range rows {
				column[k] = instruments[i].Returns[y]
			}
			agg.YearlyMeans[y] = utils.Round(stat.Mean(column, nil), 4)
		}
		for k, i := range rows {
			column[k] = instruments[i].Volatility
		}
		agg.Volatility = utils.Round(stat.Mean(column, nil), 4)
		agg.AverageReturn = stat.Mean(agg.YearlyMeans, nil)

		aggregates = append(aggregates, agg)
	}
	return aggregates
}

func buildReturnsMatrix(instruments []InstrumentRecord, years []int, window int) *ReturnsMatrix {
	if window <= 0 || window > len(years) {
		window = len(years)
	}
	start := len(years) - window

	m := &ReturnsMatrix{
		years:  append([]int(nil), years[start:]...),
		isins:  make([]string, len(instruments)),
		values: make([][]float64, len(instruments)),
	}
	for i, rec := range instruments {
		m.isins[i] = rec.ISIN
		m.values[i] = append([]float64(nil), rec.Returns[start:]...)
	}
	return m
}

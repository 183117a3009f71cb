package dataset

import "gonum.org/v1/gonum/stat"

// Dataset is the prepared, read-only view of an instrument universe.
// Instrument order is the table row order and is shared by the returns
// matrix and every weight vector built against this dataset.
type Dataset struct {
	years       []int
	instruments []InstrumentRecord
	index       map[string]int
	categories  []CategoryAggregate
	returns     *ReturnsMatrix
}

// Years returns the full year range, ascending.
func (d *Dataset) Years() []int {
	return append([]int(nil), d.years...)
}

// Len returns the number of instruments.
func (d *Dataset) Len() int {
	return len(d.instruments)
}

// Instruments returns a copy of all instrument records in dataset order.
func (d *Dataset) Instruments() []InstrumentRecord {
	out := make([]InstrumentRecord, len(d.instruments))
	for i, r := range d.instruments {
		out[i] = r.clone()
	}
	return out
}

// Instrument looks up an instrument by identifier.
func (d *Dataset) Instrument(isin string) (InstrumentRecord, bool) {
	i, ok := d.index[isin]
	if !ok {
		return InstrumentRecord{}, false
	}
	return d.instruments[i].clone(), true
}

// IndexOf returns the position of an instrument in dataset order.
func (d *Dataset) IndexOf(isin string) (int, bool) {
	i, ok := d.index[isin]
	return i, ok
}

// Categories returns the category aggregates, sorted by category name.
func (d *Dataset) Categories() []CategoryAggregate {
	out := make([]CategoryAggregate, len(d.categories))
	for i, c := range d.categories {
		c.YearlyMeans = append([]float64(nil), c.YearlyMeans...)
		out[i] = c
	}
	return out
}

// Returns returns the trailing-window returns matrix.
func (d *Dataset) Returns() *ReturnsMatrix {
	return d.returns
}

// Names returns display names in dataset order.
func (d *Dataset) Names() []string {
	names := make([]string, len(d.instruments))
	for i, r := range d.instruments {
		names[i] = r.Name
	}
	return names
}

// Volatilities returns the 3-year volatility of each instrument in dataset order.
func (d *Dataset) Volatilities() []float64 {
	vols := make([]float64, len(d.instruments))
	for i, r := range d.instruments {
		vols[i] = r.Volatility
	}
	return vols
}

// RecentMeanReturn returns the mean annual return of an instrument over the
// returns matrix window.
func (d *Dataset) RecentMeanReturn(isin string) (float64, bool) {
	i, ok := d.index[isin]
	if !ok {
		return 0, false
	}
	return stat.Mean(d.returns.values[i], nil), true
}

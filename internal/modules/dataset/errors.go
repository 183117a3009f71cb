package dataset

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyDataset is returned when no instrument rows survive preparation.
var ErrEmptyDataset = errors.New("dataset has no instrument rows")

// SchemaError reports a table that does not satisfy the instrument schema:
// missing required columns, duplicate identifiers or unusable values.
type SchemaError struct {
	Columns []string
	Row     int // 1-based data row, 0 when the error is not tied to a row
	Reason  string
}

func (e *SchemaError) Error() string {
	var b strings.Builder
	b.WriteString("schema error")
	if e.Row > 0 {
		fmt.Fprintf(&b, " at row %d", e.Row)
	}
	if len(e.Columns) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(e.Columns, ", "))
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	return b.String()
}

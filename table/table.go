// Package table provides the columnar result table produced by a metrics
// run and the assembler that builds it row by row.
package table

import (
	"fmt"
)

// Coordinate column names, prepended in this fixed order when coordinates
// are requested.
const (
	ColumnX = "X"
	ColumnY = "Y"
	ColumnZ = "Z"
)

// Column is one named float64 column of a table.
type Column struct {
	Name   string
	Values []float64
}

// Table is an ordered collection of equal-length float64 columns, one row
// per processed point, in processed-point order. Rows align positionally
// with any other per-point data derived from the same cloud and filter.
type Table struct {
	cols []Column
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int {
	if len(t.cols) == 0 {
		return 0
	}
	return len(t.cols[0].Values)
}

// NumCols returns the number of columns.
func (t *Table) NumCols() int { return len(t.cols) }

// Names returns the column names in table order.
func (t *Table) Names() []string {
	names := make([]string, len(t.cols))
	for i, c := range t.cols {
		names[i] = c.Name
	}
	return names
}

// Column returns the i-th column.
func (t *Table) Column(i int) Column { return t.cols[i] }

// ColumnByName returns the named column.
func (t *Table) ColumnByName(name string) (Column, bool) {
	for _, c := range t.cols {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Row copies the i-th row into dst, growing it as needed, and returns the
// filled slice.
func (t *Table) Row(i int, dst []float64) []float64 {
	if cap(dst) < len(t.cols) {
		dst = make([]float64, len(t.cols))
	}
	dst = dst[:len(t.cols)]
	for j, c := range t.cols {
		dst[j] = c.Values[i]
	}
	return dst
}

// Assembler accumulates fixed-width metric rows and finalizes them into a
// Table. The column set is fixed at construction; every pushed row must
// match it.
type Assembler struct {
	names  []string
	values [][]float64
}

// NewAssembler creates an assembler for the given metric column names.
// sizeHint preallocates per-column storage for the expected row count.
func NewAssembler(names []string, sizeHint int) *Assembler {
	values := make([][]float64, len(names))
	for i := range values {
		values[i] = make([]float64, 0, sizeHint)
	}
	return &Assembler{
		names:  append([]string(nil), names...),
		values: values,
	}
}

// Push appends one row of metric values.
func (a *Assembler) Push(row []float64) error {
	if len(row) != len(a.names) {
		return fmt.Errorf("table: row has %d values, assembler has %d columns", len(row), len(a.names))
	}
	for i, v := range row {
		a.values[i] = append(a.values[i], v)
	}
	return nil
}

// NumRows returns the number of rows pushed so far.
func (a *Assembler) NumRows() int {
	if len(a.values) == 0 {
		return 0
	}
	return len(a.values[0])
}

// Finalize produces the table. When x, y, z are non-nil they are
// prepended as the X, Y, Z columns; they must already correspond to the
// processed points, row for row. The coordinate slices are referenced,
// not copied, so an unfiltered run attaches coordinates at zero cost.
//
// Finalizing with zero pushed rows returns an empty table with no
// columns; degenerate but valid.
func (a *Assembler) Finalize(x, y, z []float64) (*Table, error) {
	rows := a.NumRows()
	if rows == 0 {
		return &Table{}, nil
	}

	cols := make([]Column, 0, len(a.names)+3)
	if x != nil || y != nil || z != nil {
		if len(x) != rows || len(y) != rows || len(z) != rows {
			return nil, fmt.Errorf("table: coordinate columns have lengths %d/%d/%d, want %d rows",
				len(x), len(y), len(z), rows)
		}
		cols = append(cols,
			Column{Name: ColumnX, Values: x},
			Column{Name: ColumnY, Values: y},
			Column{Name: ColumnZ, Values: z},
		)
	}
	for i, name := range a.names {
		cols = append(cols, Column{Name: name, Values: a.values[i]})
	}
	return &Table{cols: cols}, nil
}

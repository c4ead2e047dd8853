// Package dataset holds the in-memory table that every edaloom stage works on:
// named columns of raw string cells plus the inferred kind of each column.
package dataset

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownColumn is returned when a caller names a column the dataset does not have.
var ErrUnknownColumn = errors.New("unknown column")

// Column is a single named column. Values holds one raw cell per row.
type Column struct {
	Name   string
	Values []string
	Kind   Kind
	// Numbers mirrors Values for numeric columns; missing cells are NaN.
	Numbers []float64
}

// Dataset is a column-major table. All columns have the same length.
type Dataset struct {
	Name string
	// SourceRows is the row count before any sampling.
	SourceRows int

	columns []*Column
	index   map[string]int
	rows    int
}

// New builds a dataset from a header and row-major records. Every record must
// have exactly len(header) fields and header names must be unique.
func New(name string, header []string, records [][]string) (*Dataset, error) {
	d := &Dataset{
		Name:       name,
		SourceRows: len(records),
		columns:    make([]*Column, len(header)),
		index:      make(map[string]int, len(header)),
		rows:       len(records),
	}
	for i, h := range header {
		if _, dup := d.index[h]; dup {
			return nil, fmt.Errorf("duplicate column name %q", h)
		}
		d.index[h] = i
		d.columns[i] = &Column{Name: h, Values: make([]string, len(records))}
	}
	for r, rec := range records {
		if len(rec) != len(header) {
			return nil, fmt.Errorf("row %d: has %d fields, want %d", r+1, len(rec), len(header))
		}
		for c, v := range rec {
			d.columns[c].Values[r] = v
		}
	}
	return d, nil
}

// Rows returns the number of rows.
func (d *Dataset) Rows() int { return d.rows }

// Cols returns the number of columns.
func (d *Dataset) Cols() int { return len(d.columns) }

// Empty reports whether the dataset has no data rows.
func (d *Dataset) Empty() bool { return d.rows == 0 }

// Names returns column names in order.
func (d *Dataset) Names() []string {
	out := make([]string, len(d.columns))
	for i, c := range d.columns {
		out[i] = c.Name
	}
	return out
}

// Columns returns the columns in order. Callers must not mutate them.
func (d *Dataset) Columns() []*Column { return d.columns }

// Column looks a column up by name.
func (d *Dataset) Column(name string) (*Column, error) {
	i, ok := d.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
	}
	return d.columns[i], nil
}

// Row returns a copy of row i.
func (d *Dataset) Row(i int) []string {
	out := make([]string, len(d.columns))
	for c, col := range d.columns {
		out[c] = col.Values[i]
	}
	return out
}

// Head returns up to n leading rows.
func (d *Dataset) Head(n int) [][]string {
	if n > d.rows {
		n = d.rows
	}
	out := make([][]string, 0, max(n, 0))
	for i := 0; i < n; i++ {
		out = append(out, d.Row(i))
	}
	return out
}

// Tail returns up to n trailing rows.
func (d *Dataset) Tail(n int) [][]string {
	if n > d.rows {
		n = d.rows
	}
	out := make([][]string, 0, max(n, 0))
	for i := d.rows - n; i < d.rows; i++ {
		out = append(out, d.Row(i))
	}
	return out
}

// MissingCells counts cells recognised as missing across the whole table.
func (d *Dataset) MissingCells() int {
	n := 0
	for _, c := range d.columns {
		for _, v := range c.Values {
			if IsMissing(v) {
				n++
			}
		}
	}
	return n
}

// DuplicateRows counts rows identical to an earlier row.
func (d *Dataset) DuplicateRows() int {
	seen := make(map[string]struct{}, d.rows)
	dups := 0
	for i := 0; i < d.rows; i++ {
		key := strings.Join(d.Row(i), "\x1f")
		if _, ok := seen[key]; ok {
			dups++
			continue
		}
		seen[key] = struct{}{}
	}
	return dups
}

// MemoryBytes is a rough estimate of the bytes held by cell values.
func (d *Dataset) MemoryBytes() int64 {
	var n int64
	for _, c := range d.columns {
		// string header per cell plus payload
		n += int64(len(c.Values)) * 16
		for _, v := range c.Values {
			n += int64(len(v))
		}
		n += int64(len(c.Numbers)) * 8
	}
	return n
}

// take builds a new dataset holding only the given row indexes, in order.
func (d *Dataset) take(idx []int, cols []*Column) *Dataset {
	out := &Dataset{
		Name:       d.Name,
		SourceRows: d.SourceRows,
		columns:    make([]*Column, len(cols)),
		index:      make(map[string]int, len(cols)),
		rows:       len(idx),
	}
	for ci, c := range cols {
		nc := &Column{Name: c.Name, Kind: c.Kind, Values: make([]string, len(idx))}
		if c.Numbers != nil {
			nc.Numbers = make([]float64, len(idx))
		}
		for j, r := range idx {
			nc.Values[j] = c.Values[r]
			if c.Numbers != nil {
				nc.Numbers[j] = c.Numbers[r]
			}
		}
		out.columns[ci] = nc
		out.index[c.Name] = ci
	}
	return out
}

package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strings"
)

// Range is an inclusive numeric interval.
type Range struct {
	Min, Max float64
}

// Condition keeps rows whose Column equals Equals, or falls in Range when set.
type Condition struct {
	Column string
	Equals string
	Range  *Range
}

// Filter projects the dataset onto columns (all columns when empty) and keeps
// only rows matching every condition.
func (d *Dataset) Filter(columns []string, where []Condition, opt ParseOptions) (*Dataset, error) {
	cols := d.columns
	if len(columns) > 0 {
		cols = make([]*Column, 0, len(columns))
		for _, name := range columns {
			c, err := d.Column(name)
			if err != nil {
				return nil, err
			}
			cols = append(cols, c)
		}
	}
	type check struct {
		col  *Column
		cond Condition
	}
	checks := make([]check, 0, len(where))
	for _, w := range where {
		c, err := d.Column(w.Column)
		if err != nil {
			return nil, err
		}
		checks = append(checks, check{col: c, cond: w})
	}
	idx := make([]int, 0, d.rows)
	for r := 0; r < d.rows; r++ {
		keep := true
		for _, ck := range checks {
			if !ck.cond.matches(ck.col, r, opt) {
				keep = false
				break
			}
		}
		if keep {
			idx = append(idx, r)
		}
	}
	return d.take(idx, cols), nil
}

func (c Condition) matches(col *Column, r int, opt ParseOptions) bool {
	v := col.Values[r]
	if c.Range == nil {
		return strings.TrimSpace(v) == c.Equals
	}
	x := math.NaN()
	if col.Numbers != nil {
		x = col.Numbers[r]
	} else if !IsMissing(v) {
		if f, ok := ParseNumber(v, opt); ok {
			x = f
		}
	}
	if math.IsNaN(x) {
		return false
	}
	return x >= c.Range.Min && x <= c.Range.Max
}

// WriteCSV writes the header and all rows as comma-separated values.
func (d *Dataset) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(d.Names()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i := 0; i < d.rows; i++ {
		if err := cw.Write(d.Row(i)); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

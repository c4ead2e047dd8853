// Package profile computes the exploratory statistics behind an EDA report:
// dataset overview, per-variable summaries, correlations, alerts and samples.
package profile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/KaramelBytes/edaloom/internal/dataset"
)

// ErrNoRows is returned when asked to profile an empty dataset.
var ErrNoRows = errors.New("cannot profile a dataset without rows")

// Options controls profiling depth.
type Options struct {
	// Explorative adds skewness alerts and per-variable outlier scans.
	Explorative bool
	// Minimal skips correlations and histograms.
	Minimal bool
	// Bins is the histogram bin count for numeric variables.
	Bins int
	// TopN limits the most frequent values kept per non-numeric variable.
	TopN int
	// SampleRows is how many head and tail rows to keep.
	SampleRows int
	// OutlierThreshold is the robust |z| above which a value counts as an outlier.
	OutlierThreshold float64
	// HighCorrelation is the |r| at which a HIGH_CORRELATION alert is raised.
	HighCorrelation float64
}

// DefaultOptions mirrors an explorative ydata-style report.
func DefaultOptions() Options {
	return Options{
		Explorative:      true,
		Bins:             20,
		TopN:             10,
		SampleRows:       10,
		OutlierThreshold: 3.5,
		HighCorrelation:  0.9,
	}
}

// Profile is the full analysis of one dataset.
type Profile struct {
	Name        string
	GeneratedAt time.Time
	Options     Options
	Overview    Overview
	Variables   []Variable
	Partition   dataset.Partition
	Corr        *CorrMatrix
	Alerts      []Alert
	Columns     []string
	Head        [][]string
	Tail        [][]string
	Notices     []string
}

// Overview summarises the dataset as a whole.
type Overview struct {
	Rows          int
	SourceRows    int
	Cols          int
	MissingCells  int
	MissingPct    float64
	DuplicateRows int
	DuplicatePct  float64
	MemoryBytes   int64
	Kinds         map[dataset.Kind]int
}

// Variable holds per-column statistics. Only the section matching Kind is set.
type Variable struct {
	Name        string
	Kind        dataset.Kind
	Count       int
	Missing     int
	MissingPct  float64
	Distinct    int
	DistinctPct float64
	Unique      bool

	Numeric *NumericStats
	Top     []CategoryCount
	Length  *LengthStats
	Dates   *DateRange
}

// CategoryCount is a value and its frequency.
type CategoryCount struct {
	Value string
	Count int
}

// LengthStats describes string lengths in runes.
type LengthStats struct {
	Min, Max int
	Mean     float64
}

// DateRange is the span of a datetime variable.
type DateRange struct {
	Min, Max time.Time
}

// Build profiles ds. The dataset must already be classified.
func Build(ctx context.Context, ds *dataset.Dataset, opt Options) (*Profile, error) {
	if ds == nil || ds.Empty() {
		return nil, ErrNoRows
	}
	if opt.Bins <= 0 {
		opt.Bins = 20
	}
	if opt.TopN <= 0 {
		opt.TopN = 10
	}
	if opt.SampleRows < 0 {
		opt.SampleRows = 0
	}
	if opt.OutlierThreshold <= 0 {
		opt.OutlierThreshold = 3.5
	}
	if opt.HighCorrelation <= 0 {
		opt.HighCorrelation = 0.9
	}

	p := &Profile{
		Name:        ds.Name,
		GeneratedAt: time.Now(),
		Options:     opt,
		Partition:   ds.Partition(),
		Columns:     ds.Names(),
		Head:        ds.Head(opt.SampleRows),
		Tail:        ds.Tail(opt.SampleRows),
	}
	p.Overview = overview(ds)

	for _, c := range ds.Columns() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := describe(c, opt)
		if err != nil {
			return nil, fmt.Errorf("profile column %q: %w", c.Name, err)
		}
		p.Variables = append(p.Variables, v)
	}
	if !opt.Minimal {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p.Corr = correlations(ds)
	}
	p.Alerts = alerts(p)
	return p, nil
}

func overview(ds *dataset.Dataset) Overview {
	ov := Overview{
		Rows:          ds.Rows(),
		SourceRows:    ds.SourceRows,
		Cols:          ds.Cols(),
		MissingCells:  ds.MissingCells(),
		DuplicateRows: ds.DuplicateRows(),
		MemoryBytes:   ds.MemoryBytes(),
		Kinds:         map[dataset.Kind]int{},
	}
	if cells := ov.Rows * ov.Cols; cells > 0 {
		ov.MissingPct = float64(ov.MissingCells) * 100 / float64(cells)
	}
	if ov.Rows > 0 {
		ov.DuplicatePct = float64(ov.DuplicateRows) * 100 / float64(ov.Rows)
	}
	for _, c := range ds.Columns() {
		ov.Kinds[c.Kind]++
	}
	return ov
}

func describe(c *dataset.Column, opt Options) (Variable, error) {
	v := Variable{Name: c.Name, Kind: c.Kind}
	counts := make(map[string]int)
	var (
		lenMin, lenMax, lenSum int
		first                  = true
		dates                  *DateRange
	)
	for _, raw := range c.Values {
		if dataset.IsMissing(raw) {
			v.Missing++
			continue
		}
		val := strings.TrimSpace(raw)
		v.Count++
		counts[val]++
		if c.Kind == dataset.KindNumeric {
			continue
		}
		n := utf8.RuneCountInString(val)
		if first || n < lenMin {
			lenMin = n
		}
		if first || n > lenMax {
			lenMax = n
		}
		lenSum += n
		first = false
		if c.Kind == dataset.KindDatetime {
			if t, ok := dataset.ParseTime(val); ok {
				if dates == nil {
					dates = &DateRange{Min: t, Max: t}
				}
				if t.Before(dates.Min) {
					dates.Min = t
				}
				if t.After(dates.Max) {
					dates.Max = t
				}
			}
		}
	}
	total := v.Count + v.Missing
	if total > 0 {
		v.MissingPct = float64(v.Missing) * 100 / float64(total)
	}
	v.Distinct = len(counts)
	if v.Count > 0 {
		v.DistinctPct = float64(v.Distinct) * 100 / float64(v.Count)
		v.Unique = v.Distinct == v.Count
	}

	switch c.Kind {
	case dataset.KindNumeric:
		ns, err := numericStats(c.Name, c.Numbers, opt)
		if err != nil {
			return v, err
		}
		v.Numeric = ns
	case dataset.KindEmpty:
	default:
		v.Top = topValues(counts, opt.TopN)
		if v.Count > 0 {
			v.Length = &LengthStats{Min: lenMin, Max: lenMax, Mean: float64(lenSum) / float64(v.Count)}
		}
		v.Dates = dates
	}
	return v, nil
}

func topValues(counts map[string]int, n int) []CategoryCount {
	tops := make([]CategoryCount, 0, len(counts))
	for k, c := range counts {
		tops = append(tops, CategoryCount{Value: k, Count: c})
	}
	sort.Slice(tops, func(i, j int) bool {
		if tops[i].Count == tops[j].Count {
			return tops[i].Value < tops[j].Value
		}
		return tops[i].Count > tops[j].Count
	})
	if len(tops) > n {
		tops = tops[:n]
	}
	return tops
}

// Variable returns the named variable, if present.
func (p *Profile) Variable(name string) (*Variable, bool) {
	for i := range p.Variables {
		if p.Variables[i].Name == name {
			return &p.Variables[i], true
		}
	}
	return nil, false
}

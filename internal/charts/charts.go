// Package charts renders single-variable and pairwise charts as SVG.
package charts

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"math"
	"sort"
	"strings"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/KaramelBytes/edaloom/internal/dataset"
	"github.com/KaramelBytes/edaloom/internal/profile"
)

var (
	// ErrUnsupportedColumn is returned when a column's kind does not fit the chart.
	ErrUnsupportedColumn = errors.New("column cannot be used for this chart")
	// ErrNoData is returned when nothing is left to plot after dropping missing values.
	ErrNoData = errors.New("no values to plot")
)

// Kind selects a chart type.
type Kind string

const (
	KindHistogram Kind = "histogram"
	KindBar       Kind = "bar"
	KindScatter   Kind = "scatter"
)

// ParseKind validates a chart kind name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindHistogram, KindBar, KindScatter:
		return k, nil
	case "":
		return KindHistogram, nil
	default:
		return "", fmt.Errorf("unknown chart kind %q (want histogram, bar or scatter)", s)
	}
}

// Request describes a chart over one or two columns.
type Request struct {
	Kind Kind
	X    string
	Y    string
	Bins int
	TopN int
}

const (
	width      = 720
	height     = 360
	labelMax   = 18
	maxBins    = 100
	barSpacing = 2
	otherName  = "(other)"
)

var (
	barColor  = drawing.ColorFromHex("4c72b0")
	dotColor  = drawing.ColorFromHex("dd8452")
	chartFont = chart.Style{FontSize: 9}
)

// ForColumn renders the chart described by req after checking the columns
// against the dataset partition. ds must be classified.
func ForColumn(ds *dataset.Dataset, req Request) ([]byte, error) {
	part := ds.Partition()
	x, err := ds.Column(req.X)
	if err != nil {
		return nil, err
	}
	switch req.Kind {
	case KindHistogram, "":
		if !part.IsNumeric(x.Name) {
			return nil, unsupported(x, "histogram")
		}
		return Histogram(x.Name, x.Numbers, req.Bins)
	case KindBar:
		if !part.IsCategorical(x.Name) {
			return nil, unsupported(x, "bar")
		}
		return ValueCounts(x.Name, x.Values, req.TopN)
	case KindScatter:
		if !part.IsNumeric(x.Name) {
			return nil, unsupported(x, "scatter")
		}
		if req.Y == "" {
			return nil, fmt.Errorf("%w: scatter needs a y column", ErrUnsupportedColumn)
		}
		y, err := ds.Column(req.Y)
		if err != nil {
			return nil, err
		}
		if !part.IsNumeric(y.Name) {
			return nil, unsupported(y, "scatter")
		}
		return Scatter(x.Name, x.Numbers, y.Name, y.Numbers)
	default:
		return nil, fmt.Errorf("unknown chart kind %q", req.Kind)
	}
}

func unsupported(c *dataset.Column, kind string) error {
	return fmt.Errorf("%w: %q is %s, not valid for a %s chart", ErrUnsupportedColumn, c.Name, c.Kind, kind)
}

// Histogram renders equal-width bins of values; NaN entries are ignored.
func Histogram(name string, values []float64, bins int) ([]byte, error) {
	if bins > maxBins {
		bins = maxBins
	}
	return Bins(name, profile.Histogram(values, bins))
}

// Bins renders pre-computed histogram buckets.
func Bins(name string, hist []profile.Bin) ([]byte, error) {
	if len(hist) == 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrNoData)
	}
	bars := make([]chart.Value, len(hist))
	maxCount := 0
	for i, b := range hist {
		bars[i] = chart.Value{Value: float64(b.Count), Label: binLabel(b, i, len(hist))}
		if b.Count > maxCount {
			maxCount = b.Count
		}
	}
	return renderBars(name, bars, maxCount)
}

// ValueCounts renders the topN most frequent non-missing values; the rest
// collapse into a single "(other)" bar.
func ValueCounts(name string, values []string, topN int) ([]byte, error) {
	if topN <= 0 {
		topN = 20
	}
	counts := map[string]int{}
	total := 0
	for _, raw := range values {
		if dataset.IsMissing(raw) {
			continue
		}
		counts[strings.TrimSpace(raw)]++
		total++
	}
	top := make([]profile.CategoryCount, 0, len(counts))
	for k, c := range counts {
		top = append(top, profile.CategoryCount{Value: k, Count: c})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Count == top[j].Count {
			return top[i].Value < top[j].Value
		}
		return top[i].Count > top[j].Count
	})
	if len(top) > topN {
		top = top[:topN]
	}
	kept := 0
	for _, c := range top {
		kept += c.Count
	}
	return Counts(name, top, total-kept)
}

// Counts renders value frequencies in the given order, plus an "(other)" bar
// when other is positive.
func Counts(name string, top []profile.CategoryCount, other int) ([]byte, error) {
	if len(top) == 0 && other <= 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrNoData)
	}
	bars := make([]chart.Value, 0, len(top)+1)
	maxCount := 0
	for _, c := range top {
		bars = append(bars, chart.Value{Value: float64(c.Count), Label: label(c.Value)})
		if c.Count > maxCount {
			maxCount = c.Count
		}
	}
	if other > 0 {
		bars = append(bars, chart.Value{Value: float64(other), Label: otherName})
		if other > maxCount {
			maxCount = other
		}
	}
	return renderBars(name, bars, maxCount)
}

// Scatter plots ys against xs, dropping pairs where either side is NaN.
func Scatter(xName string, xs []float64, yName string, ys []float64) ([]byte, error) {
	n := len(xs)
	if len(ys) < n {
		n = len(ys)
	}
	px := make([]float64, 0, n)
	py := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if math.IsNaN(xs[i]) || math.IsNaN(ys[i]) {
			continue
		}
		px = append(px, xs[i])
		py = append(py, ys[i])
	}
	if len(px) == 0 {
		return nil, fmt.Errorf("%s vs %s: %w", yName, xName, ErrNoData)
	}
	if len(px) == 1 {
		// go-chart needs two points to lay out a series
		px = append(px, px[0])
		py = append(py, py[0])
	}
	ch := chart.Chart{
		Title:  html.EscapeString(fmt.Sprintf("%s vs %s", yName, xName)),
		Width:  width,
		Height: height,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16},
		},
		XAxis: chart.XAxis{Name: html.EscapeString(xName), Range: paddedRange(px)},
		YAxis: chart.YAxis{Name: html.EscapeString(yName), Range: paddedRange(py)},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    yName,
				XValues: px,
				YValues: py,
				Style: chart.Style{
					StrokeWidth: chart.Disabled,
					DotWidth:    3,
					DotColor:    dotColor,
				},
			},
		},
	}
	var buf bytes.Buffer
	if err := ch.Render(chart.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render scatter: %w", err)
	}
	return buf.Bytes(), nil
}

func renderBars(title string, bars []chart.Value, maxCount int) ([]byte, error) {
	for i := range bars {
		bars[i].Style = chart.Style{FillColor: barColor, StrokeColor: barColor}
	}
	barWidth := (width-100)/len(bars) - barSpacing
	if barWidth > 60 {
		barWidth = 60
	}
	if barWidth < 1 {
		barWidth = 1
	}
	top := float64(maxCount) * 1.1
	if top < 1 {
		top = 1
	}
	bc := chart.BarChart{
		Title:  html.EscapeString(title),
		Width:  width,
		Height: height,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16},
		},
		BarWidth:   barWidth,
		BarSpacing: barSpacing,
		XAxis:      chartFont,
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: top},
		},
		Bars: bars,
	}
	var buf bytes.Buffer
	if err := bc.Render(chart.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render %s: %w", title, err)
	}
	return buf.Bytes(), nil
}

// paddedRange widens degenerate ranges so a single point still renders.
func paddedRange(vals []float64) *chart.ContinuousRange {
	lo, hi := vals[0], vals[0]
	for _, v := range vals[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	pad := (hi - lo) * 0.05
	if pad == 0 {
		pad = math.Max(math.Abs(lo)*0.1, 1)
	}
	return &chart.ContinuousRange{Min: lo - pad, Max: hi + pad}
}

func binLabel(b profile.Bin, i, n int) string {
	// label every bin when sparse, otherwise only some to keep the axis readable
	step := 1
	if n > 10 {
		step = n / 5
	}
	if i%step != 0 && i != n-1 {
		return ""
	}
	return fmt.Sprintf("%.3g", b.Lo)
}

// label truncates s and escapes it; the SVG renderer writes text verbatim.
func label(s string) string {
	r := []rune(s)
	if len(r) > labelMax {
		s = string(r[:labelMax-1]) + "…"
	}
	return html.EscapeString(s)
}

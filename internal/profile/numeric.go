package profile

import (
	"math"
	"sort"

	"github.com/go-gota/gota/series"
)

// NumericStats summarises a numeric variable. Quantiles interpolate linearly
// between order statistics, so the median of 1,2,3,4 is 2.5.
type NumericStats struct {
	Mean, Std, Min, Max, Sum  float64
	P5, P25, Median, P75, P95 float64
	IQR                       float64
	Skewness                  float64
	Zeros, Negatives          int
	// Outliers counts values with robust |z| (MAD based) above OutlierThreshold.
	Outliers         int
	OutlierMaxAbsZ   float64
	OutlierThreshold float64
	Histogram        []Bin
}

// Bin is one histogram bucket covering [Lo, Hi); the last bin is closed.
type Bin struct {
	Lo, Hi float64
	Count  int
}

func numericStats(name string, numbers []float64, opt Options) (*NumericStats, error) {
	vals := make([]float64, 0, len(numbers))
	for _, x := range numbers {
		if !math.IsNaN(x) {
			vals = append(vals, x)
		}
	}
	ns := &NumericStats{}
	if len(vals) == 0 {
		return ns, nil
	}
	s := series.New(vals, series.Float, name)
	if s.Err != nil {
		return nil, s.Err
	}
	ns.Mean = s.Mean()
	ns.Min = s.Min()
	ns.Max = s.Max()
	if len(vals) > 1 {
		ns.Std = s.StdDev()
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	ns.P5 = quantile(sorted, 0.05)
	ns.P25 = quantile(sorted, 0.25)
	ns.Median = quantile(sorted, 0.5)
	ns.P75 = quantile(sorted, 0.75)
	ns.P95 = quantile(sorted, 0.95)
	ns.IQR = ns.P75 - ns.P25

	var m3 float64
	for _, x := range vals {
		ns.Sum += x
		switch {
		case x == 0:
			ns.Zeros++
		case x < 0:
			ns.Negatives++
		}
		d := x - ns.Mean
		m3 += d * d * d
	}
	if ns.Std > 0 && len(vals) > 2 {
		n := float64(len(vals))
		// adjusted Fisher-Pearson coefficient, as pandas reports it
		ns.Skewness = (n / ((n - 1) * (n - 2))) * m3 / math.Pow(ns.Std, 3)
	}

	if opt.Explorative && len(vals) >= 8 {
		median, mad := medianMAD(vals)
		ns.OutlierThreshold = opt.OutlierThreshold
		if mad > 0 {
			for _, v := range vals {
				az := math.Abs(0.6745 * (v - median) / mad)
				if az > opt.OutlierThreshold {
					ns.Outliers++
				}
				if az > ns.OutlierMaxAbsZ {
					ns.OutlierMaxAbsZ = az
				}
			}
		}
	}
	if !opt.Minimal {
		ns.Histogram = histogram(vals, ns.Min, ns.Max, opt.Bins)
	}
	return ns, nil
}

// histogram buckets vals into equal-width bins across [lo, hi].
func histogram(vals []float64, lo, hi float64, bins int) []Bin {
	if len(vals) == 0 {
		return nil
	}
	// divide before subtracting so ranges near ±MaxFloat64 stay finite
	width := hi/float64(bins) - lo/float64(bins)
	if hi == lo || width <= 0 || math.IsInf(width, 0) {
		return []Bin{{Lo: lo, Hi: hi, Count: len(vals)}}
	}
	out := make([]Bin, bins)
	for i := range out {
		out[i].Lo = lo + float64(i)*width
		out[i].Hi = lo + float64(i+1)*width
	}
	out[0].Lo = lo
	out[bins-1].Hi = hi
	for _, v := range vals {
		pos := v/width - lo/width
		i := bins - 1
		if pos < float64(bins) {
			i = int(pos)
		}
		if i < 0 {
			i = 0
		}
		out[i].Count++
	}
	return out
}

// Histogram exposes equal-width binning for chart callers.
func Histogram(vals []float64, bins int) []Bin {
	clean := make([]float64, 0, len(vals))
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		clean = append(clean, v)
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if bins <= 0 {
		bins = 20
	}
	return histogram(clean, lo, hi, bins)
}

// medianMAD computes median and MAD (median absolute deviation) of values.
func medianMAD(vals []float64) (median, mad float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	cp := make([]float64, len(vals))
	copy(cp, vals)
	sort.Float64s(cp)
	median = quantile(cp, 0.5)
	dev := make([]float64, len(cp))
	for i, v := range cp {
		dev[i] = math.Abs(v - median)
	}
	sort.Float64s(dev)
	mad = quantile(dev, 0.5)
	return
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}

package profile

import (
	"fmt"
	"math"

	"github.com/KaramelBytes/edaloom/internal/dataset"
)

// AlertType names a data quality warning.
type AlertType string

const (
	AlertHighMissing     AlertType = "HIGH_MISSING"
	AlertConstant        AlertType = "CONSTANT"
	AlertUnique          AlertType = "UNIQUE"
	AlertHighCardinality AlertType = "HIGH_CARDINALITY"
	AlertHighCorrelation AlertType = "HIGH_CORRELATION"
	AlertSkewed          AlertType = "SKEWED"
	AlertZeros           AlertType = "ZEROS"
	AlertDuplicates      AlertType = "DUPLICATES"
	AlertMixed           AlertType = "MIXED"
)

const (
	highMissingPct  = 20.0
	zerosPct        = 10.0
	highCardinality = 50
	skewThreshold   = 1.0
)

// Alert flags a column (or the whole dataset when Column is empty).
type Alert struct {
	Column string
	Type   AlertType
	Detail string
}

func alerts(p *Profile) []Alert {
	var out []Alert
	if p.Overview.DuplicateRows > 0 {
		out = append(out, Alert{Type: AlertDuplicates,
			Detail: fmt.Sprintf("dataset has %d (%.1f%%) duplicate rows", p.Overview.DuplicateRows, p.Overview.DuplicatePct)})
	}
	for _, v := range p.Variables {
		if v.MissingPct > highMissingPct {
			out = append(out, Alert{Column: v.Name, Type: AlertHighMissing,
				Detail: fmt.Sprintf("%s has %d (%.1f%%) missing values", v.Name, v.Missing, v.MissingPct)})
		}
		if v.Distinct == 1 {
			out = append(out, Alert{Column: v.Name, Type: AlertConstant,
				Detail: fmt.Sprintf("%s has a constant value", v.Name)})
		}
		switch v.Kind {
		case dataset.KindMixed:
			out = append(out, Alert{Column: v.Name, Type: AlertMixed,
				Detail: fmt.Sprintf("%s mixes value types and is excluded from charts", v.Name)})
		case dataset.KindCategorical:
			if v.Unique && v.Count > 1 {
				out = append(out, Alert{Column: v.Name, Type: AlertUnique,
					Detail: fmt.Sprintf("%s has unique values", v.Name)})
			} else if v.Distinct > highCardinality {
				out = append(out, Alert{Column: v.Name, Type: AlertHighCardinality,
					Detail: fmt.Sprintf("%s has a high cardinality: %d distinct values", v.Name, v.Distinct)})
			}
		case dataset.KindNumeric:
			ns := v.Numeric
			if ns == nil || v.Count == 0 {
				continue
			}
			if pct := float64(ns.Zeros) * 100 / float64(v.Count); pct > zerosPct {
				out = append(out, Alert{Column: v.Name, Type: AlertZeros,
					Detail: fmt.Sprintf("%s has %d (%.1f%%) zeros", v.Name, ns.Zeros, pct)})
			}
			if p.Options.Explorative && math.Abs(ns.Skewness) > skewThreshold {
				out = append(out, Alert{Column: v.Name, Type: AlertSkewed,
					Detail: fmt.Sprintf("%s is highly skewed (γ1 = %.2f)", v.Name, ns.Skewness)})
			}
		}
	}
	for _, pc := range p.Corr.TopPairs(0) {
		if math.Abs(pc.R) < p.Options.HighCorrelation {
			break
		}
		out = append(out, Alert{Column: pc.A, Type: AlertHighCorrelation,
			Detail: fmt.Sprintf("%s is highly correlated with %s (r = %.3f)", pc.A, pc.B, pc.R)})
	}
	return out
}

// AlertsFor returns the alerts raised on column name.
func (p *Profile) AlertsFor(name string) []Alert {
	var out []Alert
	for _, a := range p.Alerts {
		if a.Column == name {
			out = append(out, a)
		}
	}
	return out
}

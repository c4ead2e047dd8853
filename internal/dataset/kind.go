package dataset

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Kind is the inferred value type of a column.
type Kind string

const (
	KindEmpty       Kind = "empty"
	KindNumeric     Kind = "numeric"
	KindBoolean     Kind = "boolean"
	KindDatetime    Kind = "datetime"
	KindCategorical Kind = "categorical"
	KindMixed       Kind = "mixed"
)

// ParseOptions controls how cells are recognised as numbers.
type ParseOptions struct {
	// DecimalSeparator; 0 auto-detects per value.
	DecimalSeparator rune
	// ThousandsSeparator; 0 strips the common separators that differ from the decimal one.
	ThousandsSeparator rune
}

// Partition splits column names into the sets that drive visualisation.
// A column appears in at most one set.
type Partition struct {
	Numeric     []string
	Categorical []string
	// Excluded lists columns of empty, boolean, datetime or mixed kind.
	Excluded []string
}

// IsNumeric reports whether name is in the numeric set.
func (p Partition) IsNumeric(name string) bool { return contains(p.Numeric, name) }

// IsCategorical reports whether name is in the categorical set.
func (p Partition) IsCategorical(name string) bool { return contains(p.Categorical, name) }

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// naValues mirrors the pandas read_csv default NA markers.
var naValues = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

// IsMissing reports whether a raw cell counts as missing.
func IsMissing(v string) bool {
	_, ok := naValues[strings.TrimSpace(v)]
	return ok
}

// Classify infers the kind of every column, fills numeric views and returns
// the resulting partition.
func (d *Dataset) Classify(opt ParseOptions) Partition {
	for _, c := range d.columns {
		c.Kind = inferKind(c.Values, opt)
		c.Numbers = nil
		if c.Kind != KindNumeric {
			continue
		}
		c.Numbers = make([]float64, len(c.Values))
		for i, v := range c.Values {
			x := math.NaN()
			if !IsMissing(v) {
				if f, ok := ParseNumber(v, opt); ok {
					x = f
				}
			}
			c.Numbers[i] = x
		}
	}
	return d.Partition()
}

// Partition derives the column partition from the kinds set by Classify.
func (d *Dataset) Partition() Partition {
	var p Partition
	for _, c := range d.columns {
		switch c.Kind {
		case KindNumeric:
			p.Numeric = append(p.Numeric, c.Name)
		case KindCategorical:
			p.Categorical = append(p.Categorical, c.Name)
		default:
			p.Excluded = append(p.Excluded, c.Name)
		}
	}
	return p
}

func inferKind(values []string, opt ParseOptions) Kind {
	var num, boolean, dt, txt int
	for _, raw := range values {
		if IsMissing(raw) {
			continue
		}
		v := strings.TrimSpace(raw)
		if _, ok := ParseBool(v); ok {
			boolean++
			continue
		}
		if _, ok := ParseNumber(v, opt); ok {
			num++
			continue
		}
		if _, ok := ParseTime(v); ok {
			dt++
			continue
		}
		txt++
	}
	classes := 0
	for _, n := range []int{num, boolean, dt, txt} {
		if n > 0 {
			classes++
		}
	}
	switch {
	case classes == 0:
		return KindEmpty
	case classes > 1:
		return KindMixed
	case num > 0:
		return KindNumeric
	case boolean > 0:
		return KindBoolean
	case dt > 0:
		return KindDatetime
	default:
		return KindCategorical
	}
}

// ParseBool accepts the spellings pandas turns into a bool column.
func ParseBool(s string) (bool, bool) {
	switch s {
	case "true", "True", "TRUE":
		return true, true
	case "false", "False", "FALSE":
		return false, true
	}
	return false, false
}

var timeLayouts = []string{
	time.RFC3339, "2006-01-02", "2006/01/02", "02/01/2006", "01/02/2006",
	"2006-01-02 15:04", "2006-01-02 15:04:05", "1/2/2006 15:04", "1/2/2006 15:04:05",
}

// ParseTime tries the supported date layouts in order.
func ParseTime(s string) (time.Time, bool) {
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// groupedThousands matches comma-only digit grouping such as "1,000" or "-12,345,678".
var groupedThousands = regexp.MustCompile(`^[-+]?\d{1,3}(,\d{3})+$`)

// ParseNumber parses a locale-formatted number. A trailing percent sign is
// dropped and separators are auto-detected unless opt fixes them.
func ParseNumber(s string, opt ParseOptions) (float64, bool) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return 0, false
	}
	raw = strings.ReplaceAll(raw, "%", "")
	raw = strings.ReplaceAll(raw, "\u00A0", " ")
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.ContainsAny(raw, "xX_") {
		return 0, false
	}
	dec := opt.DecimalSeparator
	thou := opt.ThousandsSeparator
	if dec == 0 {
		cpos := strings.LastIndex(raw, ",")
		dpos := strings.LastIndex(raw, ".")
		switch {
		case cpos >= 0 && dpos >= 0:
			if cpos > dpos {
				dec, thou = ',', '.'
			} else {
				dec, thou = '.', ','
			}
		case cpos >= 0 && groupedThousands.MatchString(raw):
			dec, thou = '.', ','
		case cpos >= 0:
			dec = ','
		default:
			dec = '.'
		}
	}
	if thou == 0 {
		for _, sep := range []rune{',', '.', ' '} {
			if sep != dec {
				raw = strings.ReplaceAll(raw, string(sep), "")
			}
		}
	} else if thou != dec {
		raw = strings.ReplaceAll(raw, string(thou), "")
	}
	if dec != '.' {
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

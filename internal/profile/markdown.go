package profile

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/edaloom/internal/dataset"
)

// Markdown renders a compact text report for terminals and plain documents.
func (p *Profile) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if p.Name != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", p.Name))
	}
	ov := p.Overview
	if ov.SourceRows > ov.Rows {
		b.WriteString(fmt.Sprintf("Rows: %d (sampled from %d)\n", ov.Rows, ov.SourceRows))
	} else {
		b.WriteString(fmt.Sprintf("Rows: %d\n", ov.Rows))
	}
	b.WriteString(fmt.Sprintf("Columns: %d\n", ov.Cols))
	b.WriteString(fmt.Sprintf("Missing cells: %d (%.1f%%)\n", ov.MissingCells, ov.MissingPct))
	b.WriteString(fmt.Sprintf("Duplicate rows: %d (%.1f%%)\n\n", ov.DuplicateRows, ov.DuplicatePct))

	b.WriteString("[SCHEMA]\n")
	for _, v := range p.Variables {
		b.WriteString(fmt.Sprintf("- %s: %s (non-null %d, missing %.1f%%, distinct %d)", safeName(v.Name), v.Kind, v.Count, v.MissingPct, v.Distinct))
		switch {
		case v.Numeric != nil && v.Count > 0:
			ns := v.Numeric
			b.WriteString(fmt.Sprintf(" — min %.4g, max %.4g, mean %.4g, std %.4g, median %.4g", ns.Min, ns.Max, ns.Mean, ns.Std, ns.Median))
			if ns.OutlierThreshold > 0 {
				b.WriteString(fmt.Sprintf("; outliers: %d above |z|>%.1f", ns.Outliers, ns.OutlierThreshold))
			}
		case v.Dates != nil:
			b.WriteString(fmt.Sprintf(" — from %s to %s", v.Dates.Min.Format("2006-01-02"), v.Dates.Max.Format("2006-01-02")))
		case len(v.Top) > 0 && v.Kind != dataset.KindMixed:
			b.WriteString(" — top: ")
			for i, kv := range v.Top {
				if i > 0 {
					b.WriteString(", ")
				}
				b.WriteString(fmt.Sprintf("%s(%d)", safeVal(kv.Value), kv.Count))
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("\n[COLUMN GROUPS]\n")
	b.WriteString(fmt.Sprintf("- numeric: %s\n", joinOrNone(p.Partition.Numeric)))
	b.WriteString(fmt.Sprintf("- categorical: %s\n", joinOrNone(p.Partition.Categorical)))
	b.WriteString(fmt.Sprintf("- excluded: %s\n", joinOrNone(p.Partition.Excluded)))

	if pairs := p.Corr.TopPairs(10); len(pairs) > 0 {
		b.WriteString("\n[CORRELATIONS]\n")
		for _, pc := range pairs {
			b.WriteString(fmt.Sprintf("- %s ~ %s: r=%.3f\n", pc.A, pc.B, pc.R))
		}
	}
	if len(p.Alerts) > 0 {
		b.WriteString("\n[ALERTS]\n")
		for _, a := range p.Alerts {
			b.WriteString(fmt.Sprintf("- %s: %s\n", a.Type, a.Detail))
		}
	}
	if len(p.Head) > 0 {
		b.WriteString("\n[HEAD]\n")
		b.WriteString("| ")
		for i, c := range p.Columns {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString(safeName(c))
		}
		b.WriteString(" |\n| ")
		for i := range p.Columns {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString("---")
		}
		b.WriteString(" |\n")
		for _, row := range p.Head {
			b.WriteString("| ")
			for i := range p.Columns {
				if i > 0 {
					b.WriteString(" | ")
				}
				val := ""
				if i < len(row) {
					val = row[i]
				}
				if len(val) > 80 {
					val = val[:77] + "..."
				}
				b.WriteString(safeVal(val))
			}
			b.WriteString(" |\n")
		}
	}
	if len(p.Notices) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, n := range p.Notices {
			b.WriteString("- ")
			b.WriteString(n)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func joinOrNone(names []string) string {
	if len(names) == 0 {
		return "(none)"
	}
	return strings.Join(names, ", ")
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }

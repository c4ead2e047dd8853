package report

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"math"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/KaramelBytes/edaloom/internal/charts"
	"github.com/KaramelBytes/edaloom/internal/dataset"
	"github.com/KaramelBytes/edaloom/internal/profile"
)

//go:embed report.html.tmpl
var reportHTML string

var reportTmpl = template.Must(template.New("report").Funcs(template.FuncMap{
	"num":      func(f float64) string { return fmt.Sprintf("%.4g", f) },
	"pct":      func(f float64) string { return fmt.Sprintf("%.1f%%", f) },
	"bytes":    humanBytes,
	"heat":     heat,
	"date":     func(t time.Time) string { return t.Format("2006-01-02 15:04") },
	"excluded": excluded,
}).Parse(reportHTML))

// HTMLGenerator renders a self-contained HTML report with inline SVG figures.
type HTMLGenerator struct {
	// Dir holds the temporary report files; empty means os.TempDir().
	Dir   string
	Title string
	// Charts embeds a figure per variable.
	Charts bool
}

type htmlView struct {
	Title   string
	Mode    string
	P       *profile.Profile
	Figures map[string]template.HTML
}

// Generate writes the report for p to a new temporary file.
func (g *HTMLGenerator) Generate(ctx context.Context, p *profile.Profile) (*Artifact, error) {
	if p == nil {
		return nil, &GenerateError{Stage: "input", Err: profile.ErrNoRows}
	}
	view := htmlView{Title: g.Title, Mode: "explorative", P: p, Figures: map[string]template.HTML{}}
	if view.Title == "" {
		view.Title = "Profiling Report"
	}
	if p.Options.Minimal {
		view.Mode = "minimal"
	}
	if g.Charts {
		for _, v := range p.Variables {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			svg, err := figure(v)
			if err != nil {
				return nil, &GenerateError{Stage: "figure " + v.Name, Err: err}
			}
			if svg != nil {
				view.Figures[v.Name] = template.HTML(svg)
			}
		}
	}
	var buf bytes.Buffer
	if err := reportTmpl.Execute(&buf, view); err != nil {
		return nil, &GenerateError{Stage: "template", Err: err}
	}
	return writeTemp(g.Dir, "edaloom-report-*.html", buf.Bytes(), DownloadName(p.Name, ".html"), "text/html; charset=utf-8")
}

// figure returns nil when the variable has nothing to draw.
func figure(v profile.Variable) ([]byte, error) {
	switch v.Kind {
	case dataset.KindNumeric:
		if v.Numeric == nil || len(v.Numeric.Histogram) == 0 {
			return nil, nil
		}
		return charts.Bins(v.Name, v.Numeric.Histogram)
	case dataset.KindCategorical:
		if len(v.Top) == 0 {
			return nil, nil
		}
		kept := 0
		for _, c := range v.Top {
			kept += c.Count
		}
		return charts.Counts(v.Name, v.Top, v.Count-kept)
	}
	return nil, nil
}

// MarkdownGenerator writes the plain-text summary produced by Profile.Markdown.
type MarkdownGenerator struct {
	Dir string
}

// Generate writes the markdown summary for p to a new temporary file.
func (g *MarkdownGenerator) Generate(ctx context.Context, p *profile.Profile) (*Artifact, error) {
	if p == nil {
		return nil, &GenerateError{Stage: "input", Err: profile.ErrNoRows}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return writeTemp(g.Dir, "edaloom-report-*.md", []byte(p.Markdown()), DownloadName(p.Name, ".md"), "text/markdown; charset=utf-8")
}

func writeTemp(dir, pattern string, data []byte, name, contentType string) (*Artifact, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &FileError{Op: "mkdir", Path: dir, Err: err}
		}
	}
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return nil, &FileError{Op: "create", Path: dir, Err: err}
	}
	art := &Artifact{ID: uuid.NewString(), Name: name, Path: f.Name(), ContentType: contentType}
	n, werr := f.Write(data)
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		_ = art.Cleanup()
		return nil, &FileError{Op: "write", Path: art.Path, Err: werr}
	}
	art.Size = int64(n)
	return art, nil
}

func excluded(k dataset.Kind) bool {
	return k != dataset.KindNumeric && k != dataset.KindCategorical
}

// heat maps a correlation in [-1, 1] to a diverging background colour.
func heat(r float64) template.CSS {
	if math.IsNaN(r) {
		return template.CSS("background-color: #eee")
	}
	a := math.Min(math.Abs(r), 1)
	if r >= 0 {
		return template.CSS(fmt.Sprintf("background-color: rgba(196, 78, 82, %.2f)", a))
	}
	return template.CSS(fmt.Sprintf("background-color: rgba(76, 114, 176, %.2f)", a))
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

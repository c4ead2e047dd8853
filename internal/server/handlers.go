package server

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"html/template"
	"math"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/KaramelBytes/edaloom/internal/charts"
	"github.com/KaramelBytes/edaloom/internal/dataset"
	"github.com/KaramelBytes/edaloom/internal/ingest"
	"github.com/KaramelBytes/edaloom/internal/logger"
	"github.com/KaramelBytes/edaloom/internal/profile"
	"github.com/KaramelBytes/edaloom/internal/report"
	"github.com/KaramelBytes/edaloom/internal/session"
)

const (
	modeExplorative = "explorative"
	modeMinimal     = "minimal"
)

//go:embed templates/page.html.tmpl
var pageHTML string

var pageTmpl = template.Must(template.New("page").Parse(pageHTML))

type pageView struct {
	Title       string
	MaxUploadMB int64
	Error       string
	Warning     string
	Preview     *preview
}

type preview struct {
	Name       string
	Rows, Cols int
	SourceRows int
	Sampled    bool
	Encoding   string
	Delimiter  string
	Columns    []string
	Head       [][]string
	Partition  dataset.Partition
	Notices    []string
}

func newPreview(res *ingest.Result, rows int) *preview {
	ds := res.Dataset
	delim := string(res.Delimiter)
	if res.Delimiter == '\t' {
		delim = "tab"
	}
	return &preview{
		Name:       ds.Name,
		Rows:       ds.Rows(),
		Cols:       ds.Cols(),
		SourceRows: res.SourceRows,
		Sampled:    res.Sampled,
		Encoding:   res.Encoding,
		Delimiter:  delim,
		Columns:    ds.Names(),
		Head:       ds.Head(rows),
		Partition:  res.Partition,
		Notices:    res.Notices,
	}
}

func (s *Server) newView() pageView {
	return pageView{Title: s.opt.Title, MaxUploadMB: s.opt.MaxUploadBytes >> 20}
}

func (s *Server) render(w http.ResponseWriter, status int, view pageView) {
	var buf bytes.Buffer
	if err := pageTmpl.Execute(&buf, view); err != nil {
		logger.Error("render page: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// renderError shows err on the upload page, keeping any committed preview.
func (s *Server) renderError(w http.ResponseWriter, r *http.Request, view pageView, err error) {
	status, msg := classify(err)
	if status == http.StatusOK {
		view.Warning = msg
	} else {
		view.Error = msg
	}
	if status >= 500 {
		logger.Error("upload: %v", err)
	} else {
		logger.Warn("upload: %v", err)
	}
	if st, serr := s.state(r); serr == nil {
		view.Preview = newPreview(st.Result, s.opt.PreviewRows)
	}
	s.render(w, status, view)
}

func sessionID(r *http.Request) string {
	c, err := r.Cookie(cookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

func (s *Server) state(r *http.Request) (*session.State, error) {
	id := sessionID(r)
	if id == "" {
		return nil, session.ErrNoDataset
	}
	return s.sessions.Get(id)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	view := s.newView()
	if st, err := s.state(r); err == nil {
		view.Preview = newPreview(st.Result, s.opt.PreviewRows)
	}
	s.render(w, http.StatusOK, view)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	view := s.newView()
	if s.limiter != nil && !s.limiter.Allow() {
		s.renderError(w, r, view, errRateLimited)
		return
	}
	if s.opt.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.opt.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		s.renderError(w, r, view, uploadError(err, s.opt.MaxUploadBytes))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, hdr, err := r.FormFile("file")
	if err != nil {
		s.renderError(w, r, view, badRequest("choose a CSV file to upload"))
		return
	}
	defer file.Close()
	if !isCSV(hdr) {
		s.renderError(w, r, view, badRequest("only .csv files are accepted"))
		return
	}

	res, err := ingest.Ingest(r.Context(), file, filepath.Base(hdr.Filename), s.opt.Ingest)
	if err != nil {
		s.renderError(w, r, view, err)
		return
	}

	id := sessionID(r)
	if id == "" {
		id = session.NewID()
		http.SetCookie(w, &http.Cookie{
			Name:     cookieName,
			Value:    id,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	s.sessions.Commit(id, res)
	logger.Info("upload %s: %d rows x %d columns (%s)", res.Dataset.Name, res.Dataset.Rows(), res.Dataset.Cols(), res.Encoding)
	for _, n := range res.Notices {
		logger.Warn("upload %s: %s", res.Dataset.Name, n)
	}
	view.Preview = newPreview(res, s.opt.PreviewRows)
	s.render(w, http.StatusOK, view)
}

// uploadError keeps MaxBytesError recognisable; multipart parsing does not
// always wrap it.
func uploadError(err error, limit int64) error {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return err
	}
	if strings.Contains(err.Error(), "request body too large") {
		return &http.MaxBytesError{Limit: limit}
	}
	return badRequest("invalid upload: %v", err)
}

func isCSV(hdr *multipart.FileHeader) bool {
	if strings.EqualFold(filepath.Ext(hdr.Filename), ".csv") {
		return true
	}
	mt, _, err := mime.ParseMediaType(hdr.Header.Get("Content-Type"))
	return err == nil && mt == "text/csv"
}

func parseMode(v, def string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "":
		return def, nil
	case modeExplorative:
		return modeExplorative, nil
	case modeMinimal:
		return modeMinimal, nil
	}
	return "", badRequest("mode must be %s or %s", modeExplorative, modeMinimal)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	s.serveReport(w, r, false)
}

func (s *Server) handleReportDownload(w http.ResponseWriter, r *http.Request) {
	s.serveReport(w, r, true)
}

func (s *Server) serveReport(w http.ResponseWriter, r *http.Request, attachment bool) {
	mode, err := parseMode(r.URL.Query().Get("mode"), s.opt.DefaultMode)
	if err != nil {
		fail(w, r, err)
		return
	}
	st, err := s.state(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	id := sessionID(r)
	body, ok := s.sessions.Report(id, mode)
	if !ok {
		body, err = s.buildReport(r.Context(), st.Result, mode)
		if err != nil {
			fail(w, r, err)
			return
		}
		s.sessions.SetReport(id, st.Result, mode, body)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if attachment {
		name := report.DownloadName(st.Result.Dataset.Name, ".html")
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	}
	_, _ = w.Write(body)
}

func (s *Server) buildReport(ctx context.Context, res *ingest.Result, mode string) ([]byte, error) {
	opt := s.opt.Profile
	opt.Minimal = mode == modeMinimal
	opt.Explorative = mode == modeExplorative
	p, err := profile.Build(ctx, res.Dataset, opt)
	if err != nil {
		return nil, err
	}
	p.Notices = res.Notices
	logger.Debug("profiled %s in %s mode: %d alerts", p.Name, mode, len(p.Alerts))
	return report.Serve(ctx, s.reports, p)
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	kind, err := charts.ParseKind(q.Get("kind"))
	if err != nil {
		fail(w, r, badRequest("%v", err))
		return
	}
	req := charts.Request{Kind: kind, X: q.Get("x"), Y: q.Get("y"), TopN: s.opt.Profile.TopN}
	if req.X == "" {
		fail(w, r, badRequest("x column is required"))
		return
	}
	if b := q.Get("bins"); b != "" {
		n, err := strconv.Atoi(b)
		if err != nil || n <= 0 {
			fail(w, r, badRequest("bins must be a positive integer"))
			return
		}
		req.Bins = n
	} else {
		req.Bins = s.opt.Profile.Bins
	}
	st, err := s.state(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	svg, err := charts.ForColumn(st.Result.Dataset, req)
	if err != nil {
		fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	_, _ = w.Write(svg)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	cols, where, err := parseExport(r.URL.Query())
	if err != nil {
		fail(w, r, err)
		return
	}
	st, err := s.state(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	sub, err := st.Result.Dataset.Filter(cols, where, s.opt.Ingest.Parse)
	if err != nil {
		fail(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := sub.WriteCSV(&buf); err != nil {
		fail(w, r, err)
		return
	}
	stem := strings.TrimSuffix(report.DownloadName(st.Result.Dataset.Name, ""), "_report")
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": stem + "_filtered.csv"}))
	_, _ = w.Write(buf.Bytes())
}

// parseExport reads columns=a,b, repeated where=col:value and
// range=col:lo:hi parameters. An empty bound is open.
func parseExport(q url.Values) ([]string, []dataset.Condition, error) {
	var cols []string
	for _, part := range strings.Split(q.Get("columns"), ",") {
		if p := strings.TrimSpace(part); p != "" {
			cols = append(cols, p)
		}
	}
	var where []dataset.Condition
	for _, w := range q["where"] {
		if strings.TrimSpace(w) == "" {
			continue
		}
		i := strings.Index(w, ":")
		if i <= 0 {
			return nil, nil, badRequest("where must look like column:value, got %q", w)
		}
		where = append(where, dataset.Condition{Column: w[:i], Equals: strings.TrimSpace(w[i+1:])})
	}
	for _, rg := range q["range"] {
		if strings.TrimSpace(rg) == "" {
			continue
		}
		hiAt := strings.LastIndex(rg, ":")
		if hiAt <= 0 {
			return nil, nil, badRequest("range must look like column:lo:hi, got %q", rg)
		}
		loAt := strings.LastIndex(rg[:hiAt], ":")
		if loAt <= 0 {
			return nil, nil, badRequest("range must look like column:lo:hi, got %q", rg)
		}
		lo, err := bound(rg[loAt+1:hiAt], math.Inf(-1))
		if err != nil {
			return nil, nil, err
		}
		hi, err := bound(rg[hiAt+1:], math.Inf(1))
		if err != nil {
			return nil, nil, err
		}
		if lo > hi {
			return nil, nil, badRequest("range %q has lo above hi", rg)
		}
		where = append(where, dataset.Condition{Column: rg[:loAt], Range: &dataset.Range{Min: lo, Max: hi}})
	}
	return cols, where, nil
}

func bound(s string, open float64) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return open, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return 0, badRequest("invalid range bound %q", s)
	}
	return f, nil
}

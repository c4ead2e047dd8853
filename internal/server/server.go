// Package server is the browser front end: upload a CSV, preview it, and
// download a profiling report, charts or a filtered extract.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/KaramelBytes/edaloom/internal/ingest"
	"github.com/KaramelBytes/edaloom/internal/logger"
	"github.com/KaramelBytes/edaloom/internal/profile"
	"github.com/KaramelBytes/edaloom/internal/report"
	"github.com/KaramelBytes/edaloom/internal/session"
)

const cookieName = "edaloom_session"

// Options configures the server.
type Options struct {
	Title string
	// MaxUploadBytes caps the request body of an upload.
	MaxUploadBytes int64
	// UploadsPerSecond and UploadBurst size the upload token bucket; a zero
	// rate disables limiting.
	UploadsPerSecond float64
	UploadBurst      int
	PreviewRows      int
	// DefaultMode is "explorative" or "minimal".
	DefaultMode string
	Ingest      ingest.Options
	Profile     profile.Options
	// SweepEvery is how often expired sessions are dropped while running.
	SweepEvery time.Duration
}

// DefaultOptions returns options matching the config defaults.
func DefaultOptions() Options {
	return Options{
		Title:            "Profiling Report",
		MaxUploadBytes:   200 << 20,
		UploadsPerSecond: 2,
		UploadBurst:      4,
		PreviewRows:      10,
		DefaultMode:      modeExplorative,
		Ingest:           ingest.DefaultOptions(),
		Profile:          profile.DefaultOptions(),
		SweepEvery:       time.Minute,
	}
}

// Server serves the web UI. Sessions and the report generator are injected so
// tests can observe them.
type Server struct {
	opt      Options
	sessions *session.Store
	reports  report.Generator
	limiter  *rate.Limiter
	mux      *http.ServeMux
}

// New wires the routes.
func New(opt Options, sessions *session.Store, reports report.Generator) *Server {
	if opt.PreviewRows <= 0 {
		opt.PreviewRows = 10
	}
	if opt.DefaultMode == "" {
		opt.DefaultMode = modeExplorative
	}
	s := &Server{opt: opt, sessions: sessions, reports: reports, mux: http.NewServeMux()}
	if opt.UploadsPerSecond > 0 {
		burst := opt.UploadBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opt.UploadsPerSecond), burst)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("POST /upload", s.handleUpload)
	s.mux.HandleFunc("GET /report", s.handleReport)
	s.mux.HandleFunc("GET /report/download", s.handleReportDownload)
	s.mux.HandleFunc("GET /chart", s.handleChart)
	s.mux.HandleFunc("GET /export.csv", s.handleExport)
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintln(w, "ok")
	})
}

// Handler returns the root handler with request logging.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		s.mux.ServeHTTP(rec, r)
		logger.Debug("%s %s -> %d (%s)", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond))
	})
}

// Run listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go s.sweep(ctx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening on http://%s", ln.Addr())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) sweep(ctx context.Context) {
	every := s.opt.SweepEvery
	if every <= 0 {
		every = time.Minute
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.sessions.Sweep(now); n > 0 {
				logger.Debug("expired %d sessions", n)
			}
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/KaramelBytes/edaloom/internal/charts"
	"github.com/KaramelBytes/edaloom/internal/dataset"
	"github.com/KaramelBytes/edaloom/internal/ingest"
	"github.com/KaramelBytes/edaloom/internal/logger"
	"github.com/KaramelBytes/edaloom/internal/report"
	"github.com/KaramelBytes/edaloom/internal/session"
)

var (
	errBadRequest  = errors.New("bad request")
	errRateLimited = errors.New("too many uploads, try again shortly")
)

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// classify maps an error to the status code and the message shown to the user.
func classify(err error) (int, string) {
	var (
		de  *ingest.DecodeError
		pe  *ingest.ParseError
		ge  *report.GenerateError
		fe  *report.FileError
		mbe *http.MaxBytesError
	)
	switch {
	case errors.Is(err, ingest.ErrEmptyDataset):
		return http.StatusOK, ingest.ErrEmptyDataset.Error()
	case errors.As(err, &de):
		return http.StatusUnprocessableEntity, "could not decode file as " + strings.Join(de.Encodings, " or ")
	case errors.As(err, &pe):
		return http.StatusUnprocessableEntity, pe.Error()
	case errors.Is(err, session.ErrNoDataset):
		return http.StatusConflict, session.ErrNoDataset.Error()
	case errors.As(err, &mbe):
		return http.StatusRequestEntityTooLarge, fmt.Sprintf("file is larger than the %s upload limit", sizeLabel(mbe.Limit))
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests, errRateLimited.Error()
	case errors.As(err, &fe):
		return http.StatusInternalServerError, "temporary storage failure"
	case errors.As(err, &ge):
		return http.StatusInternalServerError, "report generation failed"
	case errors.Is(err, errBadRequest),
		errors.Is(err, charts.ErrUnsupportedColumn),
		errors.Is(err, charts.ErrNoData),
		errors.Is(err, dataset.ErrUnknownColumn):
		return http.StatusBadRequest, strings.TrimPrefix(err.Error(), errBadRequest.Error()+": ")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "request cancelled"
	}
	return http.StatusInternalServerError, "internal error"
}

// fail writes err as plain text, logging server-side failures.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := classify(err)
	if status >= 500 {
		logger.Error("%s %s: %v", r.Method, r.URL.Path, err)
	} else {
		logger.Debug("%s %s: %v", r.Method, r.URL.Path, err)
	}
	http.Error(w, msg, status)
}

func sizeLabel(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%d MB", n>>20)
	case n >= 1<<10:
		return fmt.Sprintf("%d KB", n>>10)
	}
	return fmt.Sprintf("%d byte", n)
}

// Package report turns a profile into a standalone document written to a
// temporary file, and hands back its bytes once the file is gone.
package report

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/edaloom/internal/logger"
	"github.com/KaramelBytes/edaloom/internal/profile"
)

// Generator produces a report artifact for a profile.
type Generator interface {
	Generate(ctx context.Context, p *profile.Profile) (*Artifact, error)
}

// Artifact is a generated report on disk.
type Artifact struct {
	ID          string
	Name        string
	Path        string
	ContentType string
	Size        int64
}

// Bytes reads the artifact back.
func (a *Artifact) Bytes() ([]byte, error) {
	b, err := os.ReadFile(a.Path)
	if err != nil {
		return nil, &FileError{Op: "read", Path: a.Path, Err: err}
	}
	return b, nil
}

// Cleanup removes the artifact file. A file that is already gone is not an error.
func (a *Artifact) Cleanup() error {
	if a == nil || a.Path == "" {
		return nil
	}
	if err := os.Remove(a.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &FileError{Op: "remove", Path: a.Path, Err: err}
	}
	return nil
}

// Serve generates a report, reads it into memory and removes the file before
// returning, whether or not reading succeeded.
func Serve(ctx context.Context, gen Generator, p *profile.Profile) ([]byte, error) {
	art, err := gen.Generate(ctx, p)
	if art != nil {
		defer func() {
			if cerr := art.Cleanup(); cerr != nil {
				logger.Warn("report cleanup: %v", cerr)
			}
		}()
	}
	if err != nil {
		return nil, err
	}
	return art.Bytes()
}

// DownloadName derives "<stem>_report<ext>" from a dataset file name.
func DownloadName(dataset, ext string) string {
	base := filepath.Base(strings.TrimSpace(dataset))
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" || stem == "." || stem == string(filepath.Separator) {
		stem = "dataset"
	}
	return stem + "_report" + ext
}

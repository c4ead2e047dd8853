package report

import "fmt"

// GenerateError indicates the report could not be rendered from the profile.
type GenerateError struct {
	Stage string
	Err   error
}

func (e *GenerateError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("report generation failed (%s): %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("report generation failed: %v", e.Err)
}

func (e *GenerateError) Unwrap() error { return e.Err }

// FileError indicates a temporary report file could not be created, written,
// read back or removed.
type FileError struct {
	Op   string
	Path string
	Err  error
}

func (e *FileError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("temporary storage failure: %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("temporary storage failure: %s: %v", e.Op, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

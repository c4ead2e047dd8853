package ingest

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyDataset signals an upload with a header but no data rows. It is a
// warning: callers should stop processing the upload without reporting a failure.
var ErrEmptyDataset = errors.New("the uploaded CSV file is empty")

// DecodeError indicates the input could not be decoded with any configured encoding.
type DecodeError struct {
	Encodings []string
	Err       error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode input (tried %s): %v", strings.Join(e.Encodings, ", "), e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ParseError indicates malformed CSV. Line is 1-based and counts the header.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("malformed CSV at line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("malformed CSV: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

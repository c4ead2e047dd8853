// Package ingest turns an uploaded CSV byte stream into a sanitized dataset:
// it decodes with an encoding fallback, parses, rejects empty uploads, caps the
// row count by deterministic sampling and partitions columns by kind.
package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"github.com/KaramelBytes/edaloom/internal/dataset"
)

// Options controls ingestion. Build one per call; nothing is read from globals.
type Options struct {
	// MaxRows caps the dataset; larger inputs are sampled down to exactly MaxRows.
	// 0 means unlimited.
	MaxRows int
	// Seed feeds the sampling PRNG.
	Seed int64
	// Fallback is tried when the input is not valid UTF-8. nil disables the retry.
	Fallback encoding.Encoding
	// Delimiter for CSV. If 0, sniffed from the header line among ',', ';', '\t', '|'.
	Delimiter rune
	// Number parsing locale used during classification.
	Parse dataset.ParseOptions
}

// DefaultOptions caps at 100k rows, seeds sampling with 42 and falls back to ISO-8859-1.
func DefaultOptions() Options {
	return Options{
		MaxRows:  100000,
		Seed:     42,
		Fallback: charmap.ISO8859_1,
	}
}

// Result is a sanitized dataset ready for profiling or charting.
type Result struct {
	Dataset   *dataset.Dataset
	Partition dataset.Partition
	// Encoding that decoded the input.
	Encoding  string
	Delimiter rune
	// SourceRows is the parsed row count before sampling.
	SourceRows int
	Sampled    bool
	Notices    []string
}

// Ingest reads r fully and returns the sanitized dataset. A header-only or
// zero-byte input returns ErrEmptyDataset. Decode and parse failures return
// *DecodeError and *ParseError respectively. Ingest has no side effects.
func Ingest(ctx context.Context, r io.Reader, name string, opt Options) (*Result, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text, enc, err := decode(raw, opt.Fallback)
	if err != nil {
		return nil, err
	}
	text = normalizeNewlines(text)
	delim := opt.Delimiter
	if delim == 0 {
		delim = sniffDelimiter(text)
	}
	header, records, err := parseCSV(text, delim)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrEmptyDataset
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ds, err := dataset.New(name, header, records)
	if err != nil {
		return nil, &ParseError{Err: err}
	}

	res := &Result{Encoding: enc, Delimiter: delim, SourceRows: ds.Rows()}
	if enc != defaultEncoding {
		res.Notices = append(res.Notices, fmt.Sprintf("file was not valid UTF-8; decoded as %s", enc))
	}
	if opt.MaxRows > 0 && ds.Rows() > opt.MaxRows {
		ds = ds.Sample(opt.MaxRows, opt.Seed)
		res.Sampled = true
		res.Notices = append(res.Notices, fmt.Sprintf("dataset is too large (%d rows); sampled %d rows for analysis", res.SourceRows, opt.MaxRows))
	}
	res.Partition = ds.Classify(opt.Parse)
	res.Dataset = ds
	return res, nil
}

func parseCSV(text string, delim rune) ([]string, [][]string, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, nil
		}
		return nil, nil, csvParseError(err)
	}
	header = sanitizeHeader(header)
	ncol := len(header)

	var records [][]string
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, nil, csvParseError(err)
		}
		if len(rec) > ncol {
			line, _ := r.FieldPos(0)
			return nil, nil, &ParseError{Line: line, Err: fmt.Errorf("expected %d fields, saw %d", ncol, len(rec))}
		}
		if len(rec) < ncol {
			padded := make([]string, ncol)
			copy(padded, rec)
			rec = padded
		}
		records = append(records, rec)
	}
	return header, records, nil
}

func csvParseError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &ParseError{Line: pe.Line, Err: pe.Err}
	}
	return &ParseError{Err: err}
}

// sanitizeHeader trims names, labels blanks "Unnamed: i" and suffixes
// duplicates with ".1", ".2", ... in order of appearance.
func sanitizeHeader(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]int, len(header))
	taken := make(map[string]struct{}, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			h = "Unnamed: " + strconv.Itoa(i)
		}
		name := h
		for {
			if _, dup := taken[name]; !dup {
				break
			}
			seen[h]++
			name = h + "." + strconv.Itoa(seen[h])
		}
		taken[name] = struct{}{}
		out[i] = name
	}
	return out
}

var delimiterCandidates = []rune{',', ';', '\t', '|'}

// sniffRecords is how many records each candidate delimiter is tried on.
const sniffRecords = 20

// sniffDelimiter parses the first records with every candidate and picks the
// one that splits the header into the most fields while every sampled record
// has the same field count. Quoted fields are respected. If no candidate is
// consistent, the widest header wins; a single-column file defaults to comma.
func sniffDelimiter(text string) rune {
	best, bestN := ',', 1
	fallback, fallbackN := ',', 1
	for _, c := range delimiterCandidates {
		width, consistent := trialParse(text, c)
		if consistent && width > bestN {
			best, bestN = c, width
		}
		if width > fallbackN {
			fallback, fallbackN = c, width
		}
	}
	if bestN > 1 {
		return best
	}
	return fallback
}

// trialParse returns the header field count under delim and whether the
// following sampled records all match it.
func trialParse(text string, delim rune) (int, bool) {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	header, err := r.Read()
	if err != nil {
		return 0, false
	}
	for i := 0; i < sniffRecords; i++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil || len(rec) != len(header) {
			return len(header), false
		}
	}
	return len(header), true
}

// normalizeNewlines turns CRLF and bare CR line endings into LF; encoding/csv
// only recognises the first two.
func normalizeNewlines(text string) string {
	if !strings.Contains(text, "\r") {
		return text
	}
	return strings.ReplaceAll(strings.ReplaceAll(text, "\r\n", "\n"), "\r", "\n")
}

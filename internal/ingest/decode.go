package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
)

const defaultEncoding = "UTF-8"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// LookupEncoding resolves a WHATWG/IANA encoding label such as "ISO-8859-1"
// or "windows-1252". An empty label means no fallback.
func LookupEncoding(label string) (encoding.Encoding, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, nil
	}
	switch strings.ToLower(label) {
	// htmlindex maps latin1 to windows-1252; keep the strict single-byte table.
	case "iso-8859-1", "iso8859-1", "latin1", "latin-1":
		return charmap.ISO8859_1, nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", label, err)
	}
	return enc, nil
}

// EncodingName returns a display name for enc.
func EncodingName(enc encoding.Encoding) string {
	if enc == nil {
		return ""
	}
	if enc == charmap.ISO8859_1 {
		return "ISO-8859-1"
	}
	if s, ok := enc.(fmt.Stringer); ok {
		return s.String()
	}
	if name, err := htmlindex.Name(enc); err == nil {
		return name
	}
	return "fallback"
}

// decode returns UTF-8 text and the name of the encoding that produced it.
// Valid UTF-8 wins; otherwise fallback is applied.
func decode(raw []byte, fallback encoding.Encoding) (string, string, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	if utf8.Valid(raw) {
		return string(raw), defaultEncoding, nil
	}
	tried := []string{defaultEncoding}
	if fallback == nil {
		return "", "", &DecodeError{Encodings: tried, Err: errors.New("invalid UTF-8 and no fallback encoding configured")}
	}
	name := EncodingName(fallback)
	tried = append(tried, name)
	out, err := fallback.NewDecoder().Bytes(raw)
	if err != nil {
		return "", "", &DecodeError{Encodings: tried, Err: err}
	}
	if !utf8.Valid(out) {
		return "", "", &DecodeError{Encodings: tried, Err: errors.New("decoder produced invalid UTF-8")}
	}
	return string(out), name, nil
}

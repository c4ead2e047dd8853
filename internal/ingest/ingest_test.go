package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

func ingestString(t *testing.T, s string, opt Options) (*Result, error) {
	t.Helper()
	return Ingest(context.Background(), strings.NewReader(s), "upload.csv", opt)
}

func TestIngestPreservesShape(t *testing.T) {
	in := "city,population,founded,mayor\n" +
		"Lyon,522228,43 BC,Grégory Doucet\n" +
		"Nantes,320732,,Johanna Rolland\n" +
		"Lille,236234,640,Martine Aubry\n"
	res, err := ingestString(t, in, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 3, res.Dataset.Rows())
	assert.Equal(t, 4, res.Dataset.Cols())
	assert.Equal(t, 3, res.SourceRows)
	assert.False(t, res.Sampled)
	assert.Equal(t, "UTF-8", res.Encoding)
	assert.Equal(t, ',', res.Delimiter)
	assert.Empty(t, res.Notices)

	assert.Equal(t, []string{"population"}, res.Partition.Numeric)
	assert.Equal(t, []string{"city", "mayor"}, res.Partition.Categorical)
	assert.Equal(t, []string{"founded"}, res.Partition.Excluded)
}

func TestIngestHeaderOnlyIsEmptyDataset(t *testing.T) {
	res, err := ingestString(t, "a,b,c\n", DefaultOptions())
	require.ErrorIs(t, err, ErrEmptyDataset)
	assert.Nil(t, res)

	_, err = ingestString(t, "", DefaultOptions())
	require.ErrorIs(t, err, ErrEmptyDataset)

	_, err = ingestString(t, "a,b\n\n\n", DefaultOptions())
	require.ErrorIs(t, err, ErrEmptyDataset)
}

func TestIngestSamplesAboveCap(t *testing.T) {
	var b strings.Builder
	b.WriteString("id,value\n")
	for i := 0; i < 250; i++ {
		fmt.Fprintf(&b, "%d,%d.5\n", i, i*3)
	}
	opt := DefaultOptions()
	opt.MaxRows = 100

	first, err := ingestString(t, b.String(), opt)
	require.NoError(t, err)
	second, err := ingestString(t, b.String(), opt)
	require.NoError(t, err)

	assert.Equal(t, 100, first.Dataset.Rows())
	assert.Equal(t, 250, first.SourceRows)
	assert.Equal(t, 250, first.Dataset.SourceRows)
	assert.True(t, first.Sampled)
	require.Len(t, first.Notices, 1)
	assert.Contains(t, first.Notices[0], "sampled 100 rows")

	a, _ := first.Dataset.Column("id")
	c, _ := second.Dataset.Column("id")
	assert.Equal(t, a.Values, c.Values)
	assert.Equal(t, []string{"id", "value"}, first.Partition.Numeric)
}

func TestIngestExactlyAtCapIsUntouched(t *testing.T) {
	opt := DefaultOptions()
	opt.MaxRows = 3
	res, err := ingestString(t, "x\n1\n2\n3\n", opt)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Dataset.Rows())
	assert.False(t, res.Sampled)
}

func TestIngestLatin1Fallback(t *testing.T) {
	// "Montréal" and "Zürich" in ISO-8859-1: é=0xE9, ü=0xFC
	raw := []byte("city,temp\nMontr\xe9al,-3\nZ\xfcrich,2\n")
	res, err := Ingest(context.Background(), bytes.NewReader(raw), "latin.csv", DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, "ISO-8859-1", res.Encoding)
	assert.Equal(t, 2, res.Dataset.Rows())
	col, err := res.Dataset.Column("city")
	require.NoError(t, err)
	assert.Equal(t, []string{"Montréal", "Zürich"}, col.Values)
	require.Len(t, res.Notices, 1)
	assert.Contains(t, res.Notices[0], "ISO-8859-1")
}

func TestIngestWithoutFallbackFailsToDecode(t *testing.T) {
	opt := DefaultOptions()
	opt.Fallback = nil
	_, err := Ingest(context.Background(), bytes.NewReader([]byte("a\n\xff\n")), "bad.csv", opt)
	var de *DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, []string{"UTF-8"}, de.Encodings)
}

type failingTransformer struct{ transform.NopResetter }

func (failingTransformer) Transform(dst, src []byte, atEOF bool) (int, int, error) {
	return 0, 0, errors.New("boom")
}

type failingEncoding struct{}

func (failingEncoding) NewDecoder() *encoding.Decoder {
	return &encoding.Decoder{Transformer: failingTransformer{}}
}

func (failingEncoding) NewEncoder() *encoding.Encoder {
	return &encoding.Encoder{Transformer: failingTransformer{}}
}

func TestIngestFallbackFailureIsDecodeError(t *testing.T) {
	opt := DefaultOptions()
	opt.Fallback = failingEncoding{}
	_, err := Ingest(context.Background(), bytes.NewReader([]byte("a\n\xff\n")), "bad.csv", opt)
	var de *DecodeError
	require.True(t, errors.As(err, &de))
	assert.Len(t, de.Encodings, 2)
}

func TestIngestStripsBOM(t *testing.T) {
	res, err := Ingest(context.Background(), bytes.NewReader([]byte("\xef\xbb\xbfname,n\nx,1\n")), "bom.csv", DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "n"}, res.Dataset.Names())
}

func TestIngestRaggedRows(t *testing.T) {
	res, err := ingestString(t, "a,b,c\n1,2\n4,5,6\n", DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", ""}, res.Dataset.Row(0))

	_, err = ingestString(t, "a,b\n1,2\n3,4,5\n", DefaultOptions())
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 3, pe.Line)
}

func TestIngestSanitizesHeader(t *testing.T) {
	res, err := ingestString(t, " id ,,score,score,score\n1,2,3,4,5\n", DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "Unnamed: 1", "score", "score.1", "score.2"}, res.Dataset.Names())
}

func TestIngestSniffsDelimiter(t *testing.T) {
	res, err := ingestString(t, "a;b;c\n1;2;3\n", DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, ';', res.Delimiter)
	assert.Equal(t, 3, res.Dataset.Cols())

	res, err = ingestString(t, "a\tb\n1\t2\n", DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, '\t', res.Delimiter)
}

func TestIngestSniffIgnoresDelimitersInsideQuotes(t *testing.T) {
	in := "id,\"price; EUR; incl. VAT\"\n1,9.5\n2,12\n"
	res, err := ingestString(t, in, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, ',', res.Delimiter)
	assert.Equal(t, []string{"id", "price; EUR; incl. VAT"}, res.Dataset.Names())
	assert.Equal(t, []string{"1", "9.5"}, res.Dataset.Row(0))
	assert.Equal(t, 2, res.Dataset.Rows())
}

func TestIngestSniffPrefersConsistentSplit(t *testing.T) {
	// semicolon gives the widest header, but only comma splits every row evenly
	in := "code;label;note,qty\nA;1,3\nB;2,4\n"
	res, err := ingestString(t, in, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, ',', res.Delimiter)
	assert.Equal(t, 2, res.Dataset.Cols())
}

func TestIngestCarriageReturnLineEndings(t *testing.T) {
	res, err := ingestString(t, "a,b\r1,2\r3,4\r", DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Dataset.Rows())
	assert.Equal(t, []string{"a", "b"}, res.Dataset.Names())
	assert.Equal(t, []string{"3", "4"}, res.Dataset.Row(1))

	res, err = ingestString(t, "a,b\r\n1,2\r\n", DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, res.Dataset.Row(0))
}

func TestIngestCommaGroupedThousandsStayNumeric(t *testing.T) {
	res, err := ingestString(t, "amount\n\"1,000\"\n\"2,500\"\n10\n", DefaultOptions())
	require.NoError(t, err)
	col, err := res.Dataset.Column("amount")
	require.NoError(t, err)
	assert.Equal(t, []float64{1000, 2500, 10}, col.Numbers)
}

func TestIngestHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Ingest(ctx, strings.NewReader("a\n1\n"), "x.csv", DefaultOptions())
	require.ErrorIs(t, err, context.Canceled)
}

func TestLookupEncoding(t *testing.T) {
	enc, err := LookupEncoding("")
	require.NoError(t, err)
	assert.Nil(t, enc)

	enc, err = LookupEncoding("latin1")
	require.NoError(t, err)
	assert.Equal(t, "ISO-8859-1", EncodingName(enc))

	enc, err = LookupEncoding("windows-1252")
	require.NoError(t, err)
	assert.NotNil(t, enc)

	_, err = LookupEncoding("klingon")
	require.Error(t, err)
}

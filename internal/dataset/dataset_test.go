package dataset

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hopHarvest(t *testing.T) *Dataset {
	t.Helper()
	ds, err := New("hops.csv",
		[]string{"date", "plot", "alpha", "moisture", "organic", "note"},
		[][]string{
			{"2024-08-10", "A1", "12.5%", "74", "true", "early pick"},
			{"2024-08-12", "A1", "11.8%", "71", "false", "NA"},
			{"2024-08-15", "B3", "10.2%", "", "true", "42"},
			{"2024-08-18", "B3", "9.9%", "68", "False", "late"},
		})
	require.NoError(t, err)
	return ds
}

func TestNewRejectsRaggedRows(t *testing.T) {
	_, err := New("x", []string{"a", "b"}, [][]string{{"1", "2"}, {"3"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")
}

func TestNewRejectsDuplicateHeaders(t *testing.T) {
	_, err := New("x", []string{"a", "a"}, nil)
	require.Error(t, err)
}

func TestClassifyPartitionsColumns(t *testing.T) {
	ds := hopHarvest(t)
	p := ds.Classify(ParseOptions{})

	assert.Equal(t, []string{"alpha", "moisture"}, p.Numeric)
	assert.Equal(t, []string{"plot"}, p.Categorical)
	assert.ElementsMatch(t, []string{"date", "organic", "note"}, p.Excluded)

	kinds := map[string]Kind{}
	for _, c := range ds.Columns() {
		kinds[c.Name] = c.Kind
	}
	assert.Equal(t, KindDatetime, kinds["date"])
	assert.Equal(t, KindBoolean, kinds["organic"])
	assert.Equal(t, KindMixed, kinds["note"])

	moisture, err := ds.Column("moisture")
	require.NoError(t, err)
	require.Len(t, moisture.Numbers, 4)
	assert.Equal(t, 74.0, moisture.Numbers[0])
	assert.True(t, math.IsNaN(moisture.Numbers[2]))
}

func TestClassifyNeverPlacesColumnInBothSets(t *testing.T) {
	ds := hopHarvest(t)
	p := ds.Classify(ParseOptions{})
	seen := map[string]int{}
	for _, n := range p.Numeric {
		seen[n]++
	}
	for _, n := range p.Categorical {
		seen[n]++
	}
	for name, n := range seen {
		assert.Equal(t, 1, n, "column %s", name)
	}
	assert.Equal(t, ds.Cols(), len(p.Numeric)+len(p.Categorical)+len(p.Excluded))
}

func TestClassifyFreeTextIsCategorical(t *testing.T) {
	ds, err := New("t", []string{"comment"}, [][]string{
		{"the crop looked healthy this year"},
		{"rain delayed the harvest"},
		{""},
	})
	require.NoError(t, err)
	p := ds.Classify(ParseOptions{})
	assert.True(t, p.IsCategorical("comment"))
	assert.False(t, p.IsNumeric("comment"))
}

func TestClassifyAllMissingIsEmpty(t *testing.T) {
	ds, err := New("t", []string{"blank"}, [][]string{{""}, {"NA"}, {"null"}})
	require.NoError(t, err)
	p := ds.Classify(ParseOptions{})
	assert.Equal(t, []string{"blank"}, p.Excluded)
	assert.Equal(t, KindEmpty, ds.Columns()[0].Kind)
}

func TestParseNumberLocales(t *testing.T) {
	cases := []struct {
		in   string
		opt  ParseOptions
		want float64
		ok   bool
	}{
		{"12.5", ParseOptions{}, 12.5, true},
		{"1.000,5", ParseOptions{}, 1000.5, true},
		{"1,000.5", ParseOptions{}, 1000.5, true},
		{"0,5", ParseOptions{}, 0.5, true},
		{"1,000", ParseOptions{}, 1000, true},
		{"-12,345,678", ParseOptions{}, -12345678, true},
		{"2,50", ParseOptions{}, 2.5, true},
		{"1,000", ParseOptions{DecimalSeparator: ','}, 1, true},
		{"12%", ParseOptions{}, 12, true},
		{"1e3", ParseOptions{}, 1000, true},
		{"1 234", ParseOptions{DecimalSeparator: '.', ThousandsSeparator: ' '}, 1234, true},
		{"abc", ParseOptions{}, 0, false},
		{"0x10", ParseOptions{}, 0, false},
		{"inf", ParseOptions{}, 0, false},
		{"", ParseOptions{}, 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseNumber(tc.in, tc.opt)
		assert.Equal(t, tc.ok, ok, tc.in)
		if tc.ok {
			assert.InDelta(t, tc.want, got, 1e-9, tc.in)
		}
	}
}

func TestIsMissing(t *testing.T) {
	for _, v := range []string{"", "  ", "NA", "N/A", "NaN", "null", "None", "<NA>"} {
		assert.True(t, IsMissing(v), "%q", v)
	}
	for _, v := range []string{"0", "none", "n.a."} {
		assert.False(t, IsMissing(v), "%q", v)
	}
}

func numbered(t *testing.T, n int) *Dataset {
	t.Helper()
	recs := make([][]string, n)
	for i := range recs {
		recs[i] = []string{strconv.Itoa(i), fmt.Sprintf("r%d", i)}
	}
	ds, err := New("big", []string{"id", "label"}, recs)
	require.NoError(t, err)
	return ds
}

func TestSampleIsExactAndDeterministic(t *testing.T) {
	ds := numbered(t, 1000)

	a := ds.Sample(100, 42)
	b := ds.Sample(100, 42)
	c := ds.Sample(100, 7)

	require.Equal(t, 100, a.Rows())
	assert.Equal(t, 1000, a.SourceRows)
	ida, _ := a.Column("id")
	idb, _ := b.Column("id")
	idc, _ := c.Column("id")
	assert.Equal(t, ida.Values, idb.Values)
	assert.NotEqual(t, ida.Values, idc.Values)

	prev := -1
	for _, v := range ida.Values {
		n, err := strconv.Atoi(v)
		require.NoError(t, err)
		assert.Greater(t, n, prev, "sample keeps source order")
		prev = n
	}
}

func TestSampleKeepsRowsAligned(t *testing.T) {
	ds := numbered(t, 50)
	s := ds.Sample(10, 42)
	for i := 0; i < s.Rows(); i++ {
		row := s.Row(i)
		assert.Equal(t, "r"+row[0], row[1])
	}
}

func TestSampleNoopUnderCap(t *testing.T) {
	ds := numbered(t, 10)
	assert.Same(t, ds, ds.Sample(10, 42))
	assert.Same(t, ds, ds.Sample(0, 42))
}

func TestFilterAndWriteCSV(t *testing.T) {
	ds := hopHarvest(t)
	ds.Classify(ParseOptions{})

	out, err := ds.Filter([]string{"plot", "moisture"}, []Condition{
		{Column: "plot", Equals: "A1"},
		{Column: "moisture", Range: &Range{Min: 72, Max: 80}},
	}, ParseOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, out.Rows())
	assert.Equal(t, []string{"A1", "74"}, out.Row(0))

	var buf bytes.Buffer
	require.NoError(t, out.WriteCSV(&buf))
	assert.Equal(t, "plot,moisture\nA1,74\n", buf.String())
}

func TestFilterUnknownColumn(t *testing.T) {
	ds := hopHarvest(t)
	_, err := ds.Filter([]string{"nope"}, nil, ParseOptions{})
	require.ErrorIs(t, err, ErrUnknownColumn)

	_, err = ds.Filter(nil, []Condition{{Column: "nope", Equals: "x"}}, ParseOptions{})
	require.ErrorIs(t, err, ErrUnknownColumn)
}

func TestOverviewCounters(t *testing.T) {
	ds, err := New("d", []string{"a", "b"}, [][]string{
		{"1", "x"}, {"1", "x"}, {"", "y"}, {"2", "NA"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, ds.DuplicateRows())
	assert.Equal(t, 2, ds.MissingCells())
	assert.Len(t, ds.Head(10), 4)
	assert.Equal(t, [][]string{{"2", "NA"}}, ds.Tail(1))
	assert.Greater(t, ds.MemoryBytes(), int64(0))
}

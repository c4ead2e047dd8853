package charts

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/edaloom/internal/dataset"
)

func orchard(t *testing.T) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.New("orchard.csv",
		[]string{"tree", "variety", "height_m", "yield_kg", "planted"},
		[][]string{
			{"T1", "gala", "3.2", "41", "2019-04-02"},
			{"T2", "fuji", "2.8", "37", "2019-04-02"},
			{"T3", "gala", "3.9", "", "2020-03-15"},
			{"T4", "braeburn", "4.1", "52", "2020-03-15"},
			{"T5", "gala", "", "29", "2021-05-01"},
		})
	require.NoError(t, err)
	ds.Classify(dataset.ParseOptions{})
	return ds
}

func isSVG(t *testing.T, b []byte) {
	t.Helper()
	require.NotEmpty(t, b)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(string(b)), "<svg"), "not an svg document")
}

func TestForColumnHistogram(t *testing.T) {
	out, err := ForColumn(orchard(t), Request{Kind: KindHistogram, X: "height_m", Bins: 4})
	require.NoError(t, err)
	isSVG(t, out)
}

func TestForColumnBar(t *testing.T) {
	out, err := ForColumn(orchard(t), Request{Kind: KindBar, X: "variety"})
	require.NoError(t, err)
	isSVG(t, out)
	assert.Contains(t, string(out), "gala")
}

func TestForColumnScatterDropsMissingPairs(t *testing.T) {
	out, err := ForColumn(orchard(t), Request{Kind: KindScatter, X: "height_m", Y: "yield_kg"})
	require.NoError(t, err)
	isSVG(t, out)
}

func TestForColumnRejectsWrongKinds(t *testing.T) {
	ds := orchard(t)
	cases := []Request{
		{Kind: KindHistogram, X: "variety"},
		{Kind: KindHistogram, X: "planted"},
		{Kind: KindBar, X: "height_m"},
		{Kind: KindBar, X: "planted"},
		{Kind: KindScatter, X: "height_m", Y: "variety"},
		{Kind: KindScatter, X: "height_m"},
	}
	for _, req := range cases {
		_, err := ForColumn(ds, req)
		assert.ErrorIs(t, err, ErrUnsupportedColumn, "%+v", req)
	}
}

func TestForColumnUnknownColumn(t *testing.T) {
	_, err := ForColumn(orchard(t), Request{Kind: KindHistogram, X: "rootstock"})
	require.ErrorIs(t, err, dataset.ErrUnknownColumn)
}

func TestValueCountsCollapsesTail(t *testing.T) {
	out, err := ValueCounts("letters", []string{"a", "a", "b", "c", "d", ""}, 2)
	require.NoError(t, err)
	assert.Contains(t, string(out), otherName)
}

func TestNothingToPlot(t *testing.T) {
	_, err := Histogram("h", []float64{math.NaN()}, 10)
	assert.True(t, errors.Is(err, ErrNoData))

	_, err = ValueCounts("v", []string{"", "NA"}, 5)
	assert.ErrorIs(t, err, ErrNoData)

	_, err = Scatter("x", []float64{1, math.NaN()}, "y", []float64{math.NaN(), 2})
	assert.ErrorIs(t, err, ErrNoData)
}

func TestSinglePointScatterRenders(t *testing.T) {
	out, err := Scatter("x", []float64{5}, "y", []float64{5})
	require.NoError(t, err)
	isSVG(t, out)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("Scatter")
	require.NoError(t, err)
	assert.Equal(t, KindScatter, k)

	k, err = ParseKind("")
	require.NoError(t, err)
	assert.Equal(t, KindHistogram, k)

	_, err = ParseKind("pie")
	assert.Error(t, err)
}

func TestLabelsAreEscaped(t *testing.T) {
	out, err := ValueCounts("tags <raw>", []string{"<b>bold</b>", "plain"}, 5)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "<b>")
	assert.Contains(t, string(out), "&lt;b&gt;")
}

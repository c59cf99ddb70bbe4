package vectorize

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func TestTFIDF_FitTransform_DropsRareTerms(t *testing.T) {
	corpus := [][]string{
		{"inflation", "rose"},
		{"inflation", "rose", "three", "percent"},
		{"championship", "game", "ended", "overtime"},
	}

	m := DefaultTFIDF().FitTransform(corpus)

	assert.Equal(t, []string{"inflation", "rose"}, m.Vocabulary)
	assert.Equal(t, 3, m.Rows())
	assert.InDeltaSlice(t, m.Row(0), m.Row(1), 1e-12)
	assert.Equal(t, []float64{0, 0}, m.Row(2))
}

func TestTFIDF_FitTransform_RowsAreUnitLength(t *testing.T) {
	corpus := [][]string{
		{"rates", "rates", "bank"},
		{"rates", "bank", "bank", "cut"},
		{"cut", "cut", "bank"},
		{"storm", "storm"},
	}

	m := DefaultTFIDF().FitTransform(corpus)
	require.NotNil(t, m.Vectors)

	for i := 0; i < m.Rows(); i++ {
		assert.InDelta(t, 1.0, floats.Norm(m.Row(i), 2), 1e-9, "row %d", i)
	}
	assert.Contains(t, m.Vocabulary, "storm", "repeated single-document term is kept")
}

func TestTFIDF_FitTransform_MaxDocFreq(t *testing.T) {
	corpus := [][]string{
		{"news", "rates"},
		{"news", "rates"},
		{"news", "storm", "storm"},
	}

	m := DefaultTFIDF().FitTransform(corpus)

	assert.NotContains(t, m.Vocabulary, "news")
	assert.Contains(t, m.Vocabulary, "rates")
}

func TestTFIDF_FitTransform_MaxDocFreqSkippedForPairs(t *testing.T) {
	m := DefaultTFIDF().FitTransform([][]string{{"inflation", "rose"}, {"inflation", "rose"}})

	assert.Equal(t, []string{"inflation", "rose"}, m.Vocabulary)
}

func TestTFIDF_FitTransform_IDFWeighting(t *testing.T) {
	corpus := [][]string{
		{"common", "rare"},
		{"common", "rare"},
		{"common", "other"},
		{"other", "filler"},
	}
	tf := TFIDF{MinTermCount: 1}

	m := tf.FitTransform(corpus)

	idx := func(term string) int {
		for i, v := range m.Vocabulary {
			if v == term {
				return i
			}
		}
		t.Fatalf("term %s missing", term)
		return -1
	}
	row := m.Row(0)
	idfCommon := math.Log(5.0/4.0) + 1
	idfRare := math.Log(5.0/3.0) + 1
	norm := math.Hypot(idfCommon, idfRare)
	assert.InDelta(t, idfCommon/norm, row[idx("common")], 1e-12)
	assert.InDelta(t, idfRare/norm, row[idx("rare")], 1e-12)
}

func TestTFIDF_FitTransform_Empty(t *testing.T) {
	m := DefaultTFIDF().FitTransform(nil)
	assert.Equal(t, 0, m.Rows())
	assert.Nil(t, m.Vectors)

	m = DefaultTFIDF().FitTransform([][]string{{}, {"solo"}})
	assert.Equal(t, 2, m.Rows())
	assert.Nil(t, m.Vectors)
	assert.Empty(t, m.Row(1))
}

func TestTFIDF_FitTransform_OrderIndependentWeights(t *testing.T) {
	a := []string{"rates", "bank", "cut"}
	b := []string{"rates", "bank"}
	c := []string{"storm", "flood", "storm"}

	m1 := DefaultTFIDF().FitTransform([][]string{a, b, c})
	m2 := DefaultTFIDF().FitTransform([][]string{c, a, b})

	assert.Equal(t, m1.Vocabulary, m2.Vocabulary)
	assert.InDeltaSlice(t, m1.Row(0), m2.Row(1), 1e-12)
	assert.InDeltaSlice(t, m1.Row(2), m2.Row(0), 1e-12)
}

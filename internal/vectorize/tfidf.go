// Package vectorize builds comparable vectors from normalized text and
// provides cosine similarity helpers for both sparse and dense vectors.
package vectorize

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// TFIDF weights terms by frequency within a document against how many
// documents of the same corpus contain them. Vocabulary is derived per call.
type TFIDF struct {
	// MinTermCount drops terms that occur in a single document fewer than this
	// many times in total.
	MinTermCount int
	// MaxDocFreqRatio drops terms whose document frequency exceeds this share
	// of the corpus. Applied only when the corpus has at least
	// MinDocsForMaxDocFreq documents.
	MaxDocFreqRatio float64
}

// MinDocsForMaxDocFreq is the smallest corpus the document-frequency ceiling
// applies to. Below it every shared term would be removed.
const MinDocsForMaxDocFreq = 3

// DefaultTFIDF returns the weighting used for story clustering.
func DefaultTFIDF() TFIDF {
	return TFIDF{MinTermCount: 2, MaxDocFreqRatio: 0.95}
}

// Matrix holds one row per input document. Vectors is nil when the corpus
// is empty or no term survived filtering; every row is then a zero vector.
type Matrix struct {
	Vocabulary []string
	Vectors    *mat.Dense
	rows       int
}

// Rows is the number of documents represented.
func (m *Matrix) Rows() int {
	return m.rows
}

// Row returns a copy of document i's vector.
func (m *Matrix) Row(i int) []float64 {
	if m.Vectors == nil {
		return make([]float64, len(m.Vocabulary))
	}
	return mat.Row(nil, i, m.Vectors)
}

// FitTransform computes L2-normalized TF-IDF rows for corpus. A document left
// with no surviving terms is a zero row.
func (t TFIDF) FitTransform(corpus [][]string) *Matrix {
	n := len(corpus)
	out := &Matrix{Vocabulary: []string{}, rows: n}
	if n == 0 {
		return out
	}

	counts := make([]map[string]int, n)
	docFreq := make(map[string]int)
	total := make(map[string]int)
	for i, tokens := range corpus {
		counts[i] = make(map[string]int, len(tokens))
		for _, tok := range tokens {
			counts[i][tok]++
			total[tok]++
		}
		for tok := range counts[i] {
			docFreq[tok]++
		}
	}

	for term, df := range docFreq {
		if df == 1 && total[term] < t.MinTermCount {
			continue
		}
		if n >= MinDocsForMaxDocFreq && t.MaxDocFreqRatio > 0 && float64(df)/float64(n) > t.MaxDocFreqRatio {
			continue
		}
		out.Vocabulary = append(out.Vocabulary, term)
	}
	if len(out.Vocabulary) == 0 {
		return out
	}
	sort.Strings(out.Vocabulary)

	v := mat.NewDense(n, len(out.Vocabulary), nil)
	for j, term := range out.Vocabulary {
		idf := math.Log(float64(1+n)/float64(1+docFreq[term])) + 1
		for i := range corpus {
			if tf := counts[i][term]; tf > 0 {
				v.Set(i, j, float64(tf)*idf)
			}
		}
	}
	normalizeRows(v)
	out.Vectors = v
	return out
}

func normalizeRows(v *mat.Dense) {
	rows, cols := v.Dims()
	for i := 0; i < rows; i++ {
		norm := mat.Norm(v.RowView(i), 2)
		if norm == 0 {
			continue
		}
		for j := 0; j < cols; j++ {
			v.Set(i, j, v.At(i, j)/norm)
		}
	}
}

// Package textnorm turns raw article text into normalized token sequences.
//
// Space-delimited scripts are split on letter/digit boundaries. Unsegmented
// scripts (Han, Hiragana, Katakana) are segmented by forward maximum matching
// against a lexicon. Stopwords and tokens shorter than MinRunes are dropped
// unless explicitly kept.
package textnorm

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// DefaultMinRunes drops single-rune tokens.
const DefaultMinRunes = 2

// Options configures a Normalizer.
type Options struct {
	// Stopwords are removed after segmentation.
	Stopwords []string
	// Keep lists tokens retained even when shorter than MinRunes.
	Keep []string
	// Lexicon lists multi-rune words used to segment unsegmented scripts.
	Lexicon []string
	// MinRunes is the minimum token length in runes. Zero means DefaultMinRunes.
	MinRunes int
}

// DefaultOptions returns the built-in stopword list with no lexicon.
func DefaultOptions() Options {
	return Options{
		Stopwords: DefaultStopwords(),
		MinRunes:  DefaultMinRunes,
	}
}

// Normalizer is immutable after construction and safe for concurrent use.
type Normalizer struct {
	stop      map[string]struct{}
	keep      map[string]struct{}
	lexicon   map[string]struct{}
	maxLexLen int
	minRunes  int
}

// New builds a Normalizer. Dictionary entries are folded the same way input
// text is, so configuration is case- and width-insensitive.
func New(opts Options) *Normalizer {
	n := &Normalizer{
		stop:     toSet(opts.Stopwords),
		keep:     toSet(opts.Keep),
		lexicon:  toSet(opts.Lexicon),
		minRunes: opts.MinRunes,
	}
	if n.minRunes <= 0 {
		n.minRunes = DefaultMinRunes
	}
	for word := range n.lexicon {
		if l := utf8.RuneCountInString(word); l > n.maxLexLen {
			n.maxLexLen = l
		}
	}
	return n
}

// NewDefault builds a Normalizer from DefaultOptions.
func NewDefault() *Normalizer {
	return New(DefaultOptions())
}

// Normalize returns the token sequence for text. Empty or unsegmentable input
// yields an empty, non-nil slice.
func (n *Normalizer) Normalize(text string) []string {
	tokens := []string{}
	clean := fold(text)
	if strings.TrimSpace(clean) == "" {
		return tokens
	}

	for _, r := range splitRuns(clean) {
		var words []string
		if r.unsegmented {
			words = n.segment(r.text)
		} else {
			words = []string{r.text}
		}
		for _, w := range words {
			if n.accept(w) {
				tokens = append(tokens, w)
			}
		}
	}
	return tokens
}

// NormalizeAll normalizes every text, preserving order.
func (n *Normalizer) NormalizeAll(texts []string) [][]string {
	out := make([][]string, len(texts))
	for i, t := range texts {
		out[i] = n.Normalize(t)
	}
	return out
}

func (n *Normalizer) accept(token string) bool {
	if token == "" {
		return false
	}
	if _, ok := n.stop[token]; ok {
		return false
	}
	if utf8.RuneCountInString(token) < n.minRunes {
		_, keep := n.keep[token]
		return keep
	}
	return true
}

// segment applies forward maximum matching. Runes not covered by a lexicon
// word are emitted one at a time.
func (n *Normalizer) segment(run string) []string {
	runes := []rune(run)
	var words []string
	for i := 0; i < len(runes); {
		matched := 1
		maxLen := n.maxLexLen
		if rest := len(runes) - i; maxLen > rest {
			maxLen = rest
		}
		for l := maxLen; l >= 2; l-- {
			if _, ok := n.lexicon[string(runes[i:i+l])]; ok {
				matched = l
				break
			}
		}
		words = append(words, string(runes[i:i+matched]))
		i += matched
	}
	return words
}

type run struct {
	text        string
	unsegmented bool
}

// splitRuns breaks text into maximal runs of word runes of the same kind.
// Everything else (spaces, punctuation, symbols) separates runs.
func splitRuns(text string) []run {
	var runs []run
	var b strings.Builder
	current := runeSeparator

	flush := func() {
		if b.Len() > 0 {
			runs = append(runs, run{text: b.String(), unsegmented: current == runeUnsegmented})
			b.Reset()
		}
	}

	for _, r := range text {
		kind := classify(r)
		if kind == runeMark && current != runeSeparator {
			b.WriteRune(r)
			continue
		}
		if kind != current {
			flush()
			current = kind
		}
		if kind == runeWord || kind == runeUnsegmented {
			b.WriteRune(r)
		}
	}
	flush()
	return runs
}

type runeKind int

const (
	runeSeparator runeKind = iota
	runeWord
	runeUnsegmented
	runeMark
)

func classify(r rune) runeKind {
	switch {
	case unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana):
		return runeUnsegmented
	case unicode.IsLetter(r) || unicode.IsDigit(r):
		return runeWord
	case unicode.IsMark(r):
		return runeMark
	}
	return runeSeparator
}

// fold applies NFKC (full-width forms become ASCII) and Unicode case folding.
func fold(s string) string {
	return cases.Fold().String(norm.NFKC.String(s))
}

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		w = strings.TrimSpace(fold(w))
		if w != "" {
			set[w] = struct{}{}
		}
	}
	return set
}

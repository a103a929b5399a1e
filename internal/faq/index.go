package faq

import (
	"math"
	"regexp"
	"slices"
)

// termPattern keeps runs of two or more word characters. Single-character
// tokens never become terms.
var termPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// analyze turns tokens into index terms: word runs inside each token, minus
// stop-words.
func analyze(tokens []string, stop StopwordSet) []string {
	terms := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		for _, term := range termPattern.FindAllString(tok, -1) {
			if !stop.Contains(term) {
				terms = append(terms, term)
			}
		}
	}
	return terms
}

// Vector is a sparse vector with ascending column indices.
type Vector struct {
	Indices []int
	Values  []float64
}

// IsZero reports whether v has no non-zero component.
func (v Vector) IsZero() bool {
	return len(v.Indices) == 0
}

// Norm returns the Euclidean length of v.
func (v Vector) Norm() float64 {
	var sum float64
	for _, x := range v.Values {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// Dot returns the inner product of v and w. Summation follows column order,
// so equal inputs always produce bit-identical results.
func (v Vector) Dot(w Vector) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(v.Indices) && j < len(w.Indices) {
		switch {
		case v.Indices[i] == w.Indices[j]:
			sum += v.Values[i] * w.Values[j]
			i++
			j++
		case v.Indices[i] < w.Indices[j]:
			i++
		default:
			j++
		}
	}
	return sum
}

// TermIndex maps terms to columns and holds their IDF weights.
type TermIndex struct {
	vocabulary map[string]int
	terms      []string // column -> term, sorted
	idf        []float64
	stopwords  StopwordSet
}

// Len returns the vocabulary size.
func (ix *TermIndex) Len() int {
	return len(ix.terms)
}

// Terms returns the vocabulary in column order.
func (ix *TermIndex) Terms() []string {
	return slices.Clone(ix.terms)
}

// IDF returns the weight of term and whether it is in the vocabulary.
func (ix *TermIndex) IDF(term string) (float64, bool) {
	col, ok := ix.vocabulary[term]
	if !ok {
		return 0, false
	}
	return ix.idf[col], true
}

// Transform projects tokens onto the vocabulary. Out-of-vocabulary terms are
// ignored. The result is L2-normalised, or zero when no term survives.
func (ix *TermIndex) Transform(tokens []string) Vector {
	counts := make(map[int]int)
	for _, term := range analyze(tokens, ix.stopwords) {
		if col, ok := ix.vocabulary[term]; ok {
			counts[col]++
		}
	}
	return ix.weigh(counts)
}

func (ix *TermIndex) weigh(counts map[int]int) Vector {
	if len(counts) == 0 {
		return Vector{}
	}
	v := Vector{
		Indices: make([]int, 0, len(counts)),
		Values:  make([]float64, 0, len(counts)),
	}
	for col := range counts {
		v.Indices = append(v.Indices, col)
	}
	slices.Sort(v.Indices)
	for _, col := range v.Indices {
		v.Values = append(v.Values, float64(counts[col])*ix.idf[col])
	}

	norm := v.Norm()
	if norm == 0 {
		return Vector{}
	}
	for i := range v.Values {
		v.Values[i] /= norm
	}
	return v
}

// CorpusMatrix holds one normalised TF-IDF row per entry.
type CorpusMatrix struct {
	rows []Vector
}

// Rows returns the number of rows.
func (m *CorpusMatrix) Rows() int {
	return len(m.rows)
}

// Row returns row i.
func (m *CorpusMatrix) Row(i int) Vector {
	return m.rows[i]
}

// EmptyRows counts rows with no surviving term.
func (m *CorpusMatrix) EmptyRows() int {
	n := 0
	for _, r := range m.rows {
		if r.IsZero() {
			n++
		}
	}
	return n
}

// Similarities returns the cosine similarity of q with every row. Rows and q
// are unit length (or zero), so the dot product is the cosine.
func (m *CorpusMatrix) Similarities(q Vector) []float64 {
	scores := make([]float64, len(m.rows))
	if q.IsZero() {
		return scores
	}
	for i, r := range m.rows {
		scores[i] = r.Dot(q)
	}
	return scores
}

// BuildIndex builds the vocabulary over every non-stop-word term in corpus
// and weighs each row with term count times smoothed IDF:
//
//	idf(t) = ln((1+n) / (1+df(t))) + 1
//
// where n is the number of rows and df(t) the number of rows containing t.
// An empty corpus yields an empty vocabulary and no rows.
func BuildIndex(corpus TokenizedCorpus, stop StopwordSet) (*TermIndex, *CorpusMatrix) {
	analyzed := make([][]string, len(corpus))
	df := make(map[string]int)
	for i, tokens := range corpus {
		analyzed[i] = analyze(tokens, stop)
		seen := make(map[string]struct{}, len(analyzed[i]))
		for _, term := range analyzed[i] {
			if _, ok := seen[term]; ok {
				continue
			}
			seen[term] = struct{}{}
			df[term]++
		}
	}

	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	slices.Sort(terms)

	n := float64(len(corpus))
	ix := &TermIndex{
		vocabulary: make(map[string]int, len(terms)),
		terms:      terms,
		idf:        make([]float64, len(terms)),
		stopwords:  stop,
	}
	for col, term := range terms {
		ix.vocabulary[term] = col
		ix.idf[col] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}

	m := &CorpusMatrix{rows: make([]Vector, len(analyzed))}
	for i, row := range analyzed {
		counts := make(map[int]int, len(row))
		for _, term := range row {
			counts[ix.vocabulary[term]]++
		}
		m.rows[i] = ix.weigh(counts)
	}

	return ix, m
}

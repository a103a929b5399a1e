package faq

import (
	"fmt"
	"slices"
)

// Defaults for a Matcher built without options.
const (
	DefaultThreshold = 0.5
	DefaultFallback  = "抱歉，目前無法處理您的請求，請稍後再試。"
)

// Option configures a Matcher.
type Option func(*Matcher)

// WithThreshold sets the minimum cosine similarity for a match. A score equal
// to the threshold matches.
func WithThreshold(t float64) Option {
	return func(m *Matcher) {
		m.threshold = t
	}
}

// WithFallback sets the text returned when nothing matches. Blank values are
// ignored.
func WithFallback(text string) Option {
	return func(m *Matcher) {
		if text != "" {
			m.fallback = text
		}
	}
}

// WithPanicHandler registers fn to observe panics recovered while answering
// a query. The query still gets the fallback.
func WithPanicHandler(fn func(recovered any)) Option {
	return func(m *Matcher) {
		m.onPanic = fn
	}
}

// Matcher answers queries against an immutable corpus. Construct it with New;
// the zero value is not usable.
type Matcher struct {
	entries   []Entry
	tokenizer Tokenizer
	index     *TermIndex
	matrix    *CorpusMatrix
	threshold float64
	fallback  string
	onPanic   func(any)
}

// Result describes how a query was answered.
type Result struct {
	// Index of the best entry, or -1 when no entry scored.
	Index int
	// Score is the best cosine similarity, 0 when Index is -1.
	Score float64
	// Matched is true when Score reached the threshold.
	Matched bool
	// Answer is the entry's answer when Matched, the fallback otherwise.
	Answer string
	// Empty is true when the corpus was empty or the query had no
	// in-vocabulary term.
	Empty bool
	// Recovered is true when answering panicked.
	Recovered bool
}

// Stats summarises a built Matcher.
type Stats struct {
	Entries    int     `json:"entries"`
	Vocabulary int     `json:"vocabulary"`
	EmptyRows  int     `json:"empty_rows"`
	Stopwords  int     `json:"stopwords"`
	Threshold  float64 `json:"threshold"`
}

// New tokenizes every question with tok and builds the index. entries is
// copied. An empty corpus is valid: every query gets the fallback.
func New(entries []Entry, stop StopwordSet, tok Tokenizer, opts ...Option) *Matcher {
	m := &Matcher{
		entries:   slices.Clone(entries),
		tokenizer: tok,
		threshold: DefaultThreshold,
		fallback:  DefaultFallback,
	}
	for _, opt := range opts {
		opt(m)
	}

	corpus := make(TokenizedCorpus, len(m.entries))
	for i, e := range m.entries {
		corpus[i] = m.tokenize(e.Question)
	}
	m.index, m.matrix = BuildIndex(corpus, stop)
	return m
}

// tokenize treats a panicking tokenizer as producing no tokens.
func (m *Matcher) tokenize(text string) (tokens []string) {
	defer func() {
		if r := recover(); r != nil {
			m.reportPanic(r)
			tokens = nil
		}
	}()
	return m.tokenizer.Tokenize(Normalize(text))
}

func (m *Matcher) reportPanic(r any) {
	if m.onPanic != nil {
		m.onPanic(r)
	}
}

// Match scores query against every entry and picks the first entry with the
// highest similarity. It never panics.
func (m *Matcher) Match(query string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			m.reportPanic(fmt.Errorf("faq match: %v", r))
			res = Result{Index: -1, Answer: m.fallback, Recovered: true}
		}
	}()

	res = Result{Index: -1, Answer: m.fallback}
	if m.matrix.Rows() == 0 {
		res.Empty = true
		return res
	}

	q := m.index.Transform(m.tokenize(query))
	if q.IsZero() {
		res.Empty = true
		return res
	}

	scores := m.matrix.Similarities(q)
	best := 0
	for i, s := range scores {
		if s > scores[best] {
			best = i
		}
	}

	res.Index = best
	res.Score = scores[best]
	if res.Score >= m.threshold {
		res.Matched = true
		res.Answer = m.entries[best].Answer
	}
	return res
}

// Answer returns the best answer for query, or the fallback.
func (m *Matcher) Answer(query string) string {
	return m.Match(query).Answer
}

// Fallback returns the configured fallback text.
func (m *Matcher) Fallback() string {
	return m.fallback
}

// Threshold returns the configured match threshold.
func (m *Matcher) Threshold() float64 {
	return m.threshold
}

// Len returns the number of entries.
func (m *Matcher) Len() int {
	return len(m.entries)
}

// Entry returns entry i.
func (m *Matcher) Entry(i int) Entry {
	return m.entries[i]
}

// Stats reports the size of the built index.
func (m *Matcher) Stats() Stats {
	return Stats{
		Entries:    len(m.entries),
		Vocabulary: m.index.Len(),
		EmptyRows:  m.matrix.EmptyRows(),
		Stopwords:  m.index.stopwords.Len(),
		Threshold:  m.threshold,
	}
}

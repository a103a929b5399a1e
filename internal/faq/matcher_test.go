package faq

import (
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleEntries = []Entry{
	{Question: "如何重設密碼", Answer: "請至設定頁面點選重設密碼"},
	{Question: "營業時間是幾點", Answer: "週一至週五 9:00-18:00"},
	{Question: "How do I change my email address", Answer: "Open Settings > Account."},
	{Question: "退貨流程怎麼申請", Answer: "請於七日內填寫退貨單"},
}

func TestMatcher_EndToEnd(t *testing.T) {
	t.Parallel()

	entries := []Entry{{Question: "如何重設密碼", Answer: "請至設定頁面點選重設密碼"}}
	m := New(entries, nil, BigramTokenizer{})

	res := m.Match("我要如何重設密碼")
	assert.True(t, res.Matched)
	assert.Equal(t, 0, res.Index)
	assert.InDelta(t, 1.0, res.Score, 1e-9)
	assert.Equal(t, "請至設定頁面點選重設密碼", res.Answer)

	// Only the bigram 如何 overlaps: cosine = 1/sqrt(5).
	res = m.Match("今天天氣如何")
	assert.False(t, res.Matched)
	assert.InDelta(t, 1/math.Sqrt(5), res.Score, 1e-9)
	assert.Equal(t, DefaultFallback, res.Answer)
	assert.Equal(t, DefaultFallback, m.Answer("今天天氣如何"))
}

func TestMatcher_SelfSimilarity(t *testing.T) {
	t.Parallel()

	m := New(sampleEntries, nil, BigramTokenizer{})
	for i, e := range sampleEntries {
		res := m.Match(e.Question)
		assert.Equal(t, i, res.Index, e.Question)
		assert.InDelta(t, 1.0, res.Score, 1e-9, e.Question)
		assert.Equal(t, e.Answer, res.Answer)
	}
}

func TestMatcher_ThresholdIsInclusive(t *testing.T) {
	t.Parallel()

	query := "今天天氣如何"
	score := New(sampleEntries, nil, BigramTokenizer{}).Match(query).Score
	require.Positive(t, score)
	require.Less(t, score, 1.0)

	atScore := New(sampleEntries, nil, BigramTokenizer{}, WithThreshold(score))
	res := atScore.Match(query)
	assert.True(t, res.Matched, "score equal to threshold matches")
	assert.Equal(t, sampleEntries[0].Answer, res.Answer)

	above := New(sampleEntries, nil, BigramTokenizer{}, WithThreshold(math.Nextafter(score, 2)))
	res = above.Match(query)
	assert.False(t, res.Matched)
	assert.Equal(t, DefaultFallback, res.Answer)
}

func TestMatcher_EmptyCorpus(t *testing.T) {
	t.Parallel()

	for _, entries := range [][]Entry{nil, {}} {
		m := New(entries, nil, BigramTokenizer{}, WithThreshold(0))
		for _, q := range []string{"", "如何重設密碼", "anything at all", "   "} {
			res := m.Match(q)
			assert.Equal(t, DefaultFallback, res.Answer, "query %q", q)
			assert.True(t, res.Empty)
			assert.Equal(t, -1, res.Index)
		}
		assert.Equal(t, Stats{Threshold: 0}, m.Stats())
	}
}

func TestMatcher_TieBreaksToFirst(t *testing.T) {
	t.Parallel()

	entries := []Entry{
		{Question: "如何重設密碼", Answer: "A"},
		{Question: "如何重設密碼", Answer: "B"},
	}
	m := New(entries, nil, BigramTokenizer{})

	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			for range 50 {
				assert.Equal(t, "A", m.Answer("如何重設密碼"))
			}
		})
	}
	wg.Wait()
}

func TestMatcher_OutOfVocabulary(t *testing.T) {
	t.Parallel()

	m := New(sampleEntries, nil, BigramTokenizer{})
	res := m.Match("zzz qqq 天氣晴朗")
	assert.True(t, res.Empty)
	assert.False(t, res.Matched)
	assert.Equal(t, DefaultFallback, res.Answer)
}

func TestMatcher_ZeroQueryNeverMatches(t *testing.T) {
	t.Parallel()

	// Even a zero threshold needs at least one shared term.
	m := New(sampleEntries, nil, BigramTokenizer{}, WithThreshold(0))
	assert.Equal(t, DefaultFallback, m.Answer("zzz"))
	assert.Equal(t, DefaultFallback, m.Answer(""))
}

func TestMatcher_Options(t *testing.T) {
	t.Parallel()

	m := New(sampleEntries, nil, BigramTokenizer{}, WithFallback("no idea"), WithThreshold(0.9))
	assert.Equal(t, "no idea", m.Answer("今天天氣如何"))
	assert.Equal(t, "no idea", m.Fallback())
	assert.InDelta(t, 0.9, m.Threshold(), 0)

	m = New(sampleEntries, nil, BigramTokenizer{}, WithFallback(""))
	assert.Equal(t, DefaultFallback, m.Fallback(), "blank fallback is ignored")
	assert.InDelta(t, DefaultThreshold, m.Threshold(), 0)
}

func TestMatcher_StopwordsApplyToQueries(t *testing.T) {
	t.Parallel()

	entries := []Entry{{Question: "reset the password", Answer: "ok"}}
	m := New(entries, NewStopwordSet([]string{"the"}), TokenizerFunc(strings.Fields))

	assert.Equal(t, 2, m.Stats().Vocabulary)
	assert.Equal(t, DefaultFallback, m.Answer("the the the"))
	assert.Equal(t, "ok", m.Answer("RESET THE PASSWORD"), "queries are normalised")
}

func TestMatcher_InjectedTokenizer(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	tok := TokenizerFunc(func(s string) []string {
		calls.Add(1)
		return strings.Fields(s)
	})

	m := New([]Entry{{Question: "alpha beta", Answer: "1"}, {Question: "gamma delta", Answer: "2"}}, nil, tok)
	assert.Equal(t, int32(2), calls.Load(), "build tokenizes every question")

	assert.Equal(t, "2", m.Answer("delta gamma"))
	assert.Equal(t, int32(3), calls.Load(), "queries use the same tokenizer")
}

func TestMatcher_TokenizerPanic(t *testing.T) {
	t.Parallel()

	var recovered atomic.Int32
	tok := TokenizerFunc(func(s string) []string {
		if strings.Contains(s, "boom") {
			panic("segmenter failure")
		}
		return strings.Fields(s)
	})

	m := New([]Entry{{Question: "reset password", Answer: "ok"}}, nil, tok,
		WithPanicHandler(func(any) { recovered.Add(1) }))

	assert.NotPanics(t, func() {
		assert.Equal(t, DefaultFallback, m.Answer("boom password"))
	})
	assert.Equal(t, int32(1), recovered.Load())
	assert.Equal(t, "ok", m.Answer("reset password"))
}

func TestMatcher_RecoversInternalFailure(t *testing.T) {
	t.Parallel()

	var got any
	broken := &Matcher{fallback: "fb", onPanic: func(r any) { got = r }}

	res := broken.Match("query")
	assert.True(t, res.Recovered)
	assert.Equal(t, "fb", res.Answer)
	assert.Equal(t, -1, res.Index)
	assert.NotNil(t, got)
}

func TestMatcher_Stats(t *testing.T) {
	t.Parallel()

	entries := append([]Entry{{Question: "的", Answer: "x"}}, sampleEntries...)
	m := New(entries, nil, BigramTokenizer{})

	st := m.Stats()
	assert.Equal(t, 5, st.Entries)
	assert.Equal(t, 1, st.EmptyRows)
	assert.Positive(t, st.Vocabulary)
	assert.Equal(t, 5, m.Len())
	assert.Equal(t, entries[1], m.Entry(1))
}

func TestMatcher_CopiesEntries(t *testing.T) {
	t.Parallel()

	entries := []Entry{{Question: "reset password", Answer: "ok"}}
	m := New(entries, nil, BigramTokenizer{})
	entries[0].Answer = "changed"

	assert.Equal(t, "ok", m.Answer("reset password"))
}

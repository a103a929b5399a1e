package warmup

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyellow/faq-linebot-go/internal/corpussync"
	"github.com/garyellow/faq-linebot-go/internal/faq"
	"github.com/garyellow/faq-linebot-go/internal/logger"
	"github.com/garyellow/faq-linebot-go/internal/metrics"
)

const corpusJSON = `[
  {"question": "我要如何重設密碼", "answer": "請點選登入頁的忘記密碼。"},
  {"question": "營業時間是什麼時候", "answer": "週一至週五 9:00-18:00。"}
]`

func writeData(t *testing.T) faq.Paths {
	t.Helper()
	dir := t.TempDir()
	paths := faq.Paths{
		Corpus:      filepath.Join(dir, "faq_dataset.json"),
		StopwordsZH: filepath.Join(dir, "baidu_stopwords.txt"),
		StopwordsEN: filepath.Join(dir, "EN-Stopwords.txt"),
	}
	require.NoError(t, os.WriteFile(paths.Corpus, []byte(corpusJSON), 0o644))
	require.NoError(t, os.WriteFile(paths.StopwordsZH, []byte("的\n"), 0o644))
	return paths
}

func TestRun(t *testing.T) {
	t.Parallel()

	m := metrics.New(prometheus.NewRegistry())
	matcher, stats, err := Run(context.Background(), logger.NewWithWriter("error", io.Discard), Options{
		Paths:          writeData(t),
		Tokenizer:      faq.BigramTokenizer{},
		MatcherOptions: []faq.Option{faq.WithThreshold(0.6)},
		Metrics:        m,
	})
	require.NoError(t, err)
	require.NotNil(t, matcher)

	assert.Equal(t, 2, stats.Entries)
	assert.Positive(t, stats.Vocabulary)
	assert.Equal(t, 1, stats.Warnings) // English stop-words missing
	assert.Zero(t, stats.Synced)
	assert.InDelta(t, 0.6, matcher.Threshold(), 0)

	res := matcher.Match("我要如何重設密碼")
	assert.True(t, res.Matched)
	assert.Equal(t, "請點選登入頁的忘記密碼。", res.Answer)

	assert.InDelta(t, 2, testutil.ToFloat64(m.CorpusEntries), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.CorpusSourceWarnings.WithLabelValues(faq.SourceStopwords)), 0)
}

func TestRun_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	matcher, _, err := Run(ctx, logger.NewWithWriter("error", io.Discard), Options{
		Paths:     writeData(t),
		Tokenizer: faq.BigramTokenizer{},
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, matcher)
}

func TestRunAndPublish(t *testing.T) {
	t.Parallel()

	state := NewReadinessState(time.Minute)
	RunAndPublish(context.Background(), state, time.Minute, logger.NewWithWriter("error", io.Discard), Options{
		Paths:     writeData(t),
		Tokenizer: faq.BigramTokenizer{},
	})

	require.True(t, state.WarmupCompleted())
	assert.Equal(t, 2, state.Matcher().Len())
}

func TestRunAndPublish_EmptyCorpusStillPublishes(t *testing.T) {
	t.Parallel()

	state := NewReadinessState(time.Minute)
	RunAndPublish(context.Background(), state, time.Minute, logger.NewWithWriter("error", io.Discard), Options{
		Paths:     faq.Paths{Corpus: filepath.Join(t.TempDir(), "missing.json")},
		Tokenizer: faq.BigramTokenizer{},
	})

	require.True(t, state.WarmupCompleted())
	res := state.Matcher().Match("任何問題")
	assert.True(t, res.Empty)
	assert.Equal(t, faq.DefaultFallback, res.Answer)
}

// stalledStore never answers until the caller gives up.
type stalledStore struct{}

func (stalledStore) Download(ctx context.Context, _ string) (io.ReadCloser, string, error) {
	<-ctx.Done()
	return nil, "", ctx.Err()
}

func (stalledStore) HeadObject(ctx context.Context, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func stalledSyncer(paths faq.Paths, log *logger.Logger) *corpussync.Syncer {
	return corpussync.NewSyncer(stalledStore{}, corpussync.Config{
		Prefix:  "faq/",
		DataDir: filepath.Dir(paths.Corpus),
		Files:   []string{filepath.Base(paths.Corpus)},
	}, log, nil, corpussync.WithRetry(0, time.Millisecond))
}

func TestRunAndPublish_SlowSyncFallsBackToLocalFiles(t *testing.T) {
	t.Parallel()

	log := logger.NewWithWriter("error", io.Discard)
	paths := writeData(t)
	state := NewReadinessState(200 * time.Millisecond)

	RunAndPublish(context.Background(), state, 200*time.Millisecond, log, Options{
		Paths:     paths,
		Tokenizer: faq.BigramTokenizer{},
		Syncer:    stalledSyncer(paths, log),
	})

	require.True(t, state.WarmupCompleted())
	assert.Equal(t, 2, state.Matcher().Len())
	assert.True(t, state.Matcher().Match("我要如何重設密碼").Matched)
}

func TestRun_SyncTimeoutIsNotFatal(t *testing.T) {
	t.Parallel()

	log := logger.NewWithWriter("error", io.Discard)
	paths := writeData(t)

	matcher, stats, err := Run(context.Background(), log, Options{
		Paths:       paths,
		Tokenizer:   faq.BigramTokenizer{},
		Syncer:      stalledSyncer(paths, log),
		SyncTimeout: 50 * time.Millisecond,
	})
	require.NoError(t, err)
	require.NotNil(t, matcher)
	assert.Zero(t, stats.Synced)
	assert.Equal(t, 2, stats.Entries)
}

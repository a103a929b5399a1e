package faq

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/garyellow/faq-linebot-go/internal/errors"
	"github.com/garyellow/faq-linebot-go/internal/logger"
	"github.com/garyellow/faq-linebot-go/internal/storage"
)

// Paths locates the corpus and the two stop-word lists.
type Paths struct {
	Corpus      string // JSON array, or SQLite when storage.IsSQLitePath
	StopwordsZH string
	StopwordsEN string
}

// Source names used in LoadWarning.
const (
	SourceCorpus    = "corpus"
	SourceStopwords = "stopwords"
)

// LoadWarning records a source that contributed nothing.
type LoadWarning struct {
	Source string
	Path   string
	Err    error
}

// Corpus is the result of Load.
type Corpus struct {
	Entries   []Entry
	Stopwords StopwordSet
	Warnings  []LoadWarning
}

// Load reads the corpus and both stop-word lists concurrently. It never
// fails: a missing or unreadable source contributes nothing and is reported
// in Warnings and the log.
func Load(ctx context.Context, paths Paths, log *logger.Logger) *Corpus {
	var (
		entries  []Entry
		zh, en   []string
		warnings = make([]LoadWarning, 3)
	)

	// Workers never return an error, so Wait cannot fail.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		entries, err = ReadEntries(gctx, paths.Corpus)
		warnings[0] = LoadWarning{Source: SourceCorpus, Path: paths.Corpus, Err: err}
		return nil
	})
	g.Go(func() error {
		var err error
		zh, err = readLines(paths.StopwordsZH)
		warnings[1] = LoadWarning{Source: SourceStopwords, Path: paths.StopwordsZH, Err: err}
		return nil
	})
	g.Go(func() error {
		var err error
		en, err = readLines(paths.StopwordsEN)
		warnings[2] = LoadWarning{Source: SourceStopwords, Path: paths.StopwordsEN, Err: err}
		return nil
	})
	_ = g.Wait()

	c := &Corpus{Entries: entries, Stopwords: NewStopwordSet(zh, en)}
	for _, w := range warnings {
		if w.Err == nil {
			continue
		}
		c.Warnings = append(c.Warnings, w)
		log.WithError(w.Err).
			WithField("source", w.Source).
			WithField("path", w.Path).
			Warn("Data source unavailable, continuing without it")
	}

	for i, e := range c.Entries {
		if strings.TrimSpace(e.Question) == "" || strings.TrimSpace(e.Answer) == "" {
			log.WithError(apperrors.NewRecordError(paths.Corpus, i, "blank question or answer")).
				Warn("Entry can never be returned as a match")
		}
	}

	log.WithFields(map[string]any{
		"entries":   len(c.Entries),
		"stopwords": c.Stopwords.Len(),
	}).Info("FAQ corpus loaded")
	return c
}

// ReadEntries reads a JSON or SQLite corpus.
func ReadEntries(ctx context.Context, path string) ([]Entry, error) {
	wrap := apperrors.NewWrapper("faq", "load_corpus")
	if path == "" {
		return nil, wrap.Wrap(apperrors.ErrNotFound, "no corpus path configured")
	}
	if storage.IsSQLitePath(path) {
		entries, err := readSQLite(ctx, path)
		return entries, wrap.Wrapf(err, "read %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			err = fmt.Errorf("%w: %w", apperrors.ErrNotFound, err)
		}
		return nil, wrap.Wrapf(err, "read %s", path)
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, wrap.Wrapf(fmt.Errorf("%w: %w", apperrors.ErrInvalidInput, err), "parse %s", path)
	}
	return entries, nil
}

func readSQLite(ctx context.Context, path string) ([]Entry, error) {
	db, err := storage.OpenReadOnly(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()

	rows, err := db.ListFAQ(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, len(rows))
	for i, r := range rows {
		entries[i] = Entry{Question: r.Question, Answer: r.Answer}
	}
	return entries, nil
}

// readLines returns the trimmed non-empty lines of path.
func readLines(path string) ([]string, error) {
	if path == "" {
		return nil, apperrors.NewWrapper("faq", "load_stopwords").Wrap(apperrors.ErrNotFound, "no path configured")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewWrapper("faq", "load_stopwords").Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		// Some stop-word files start with a UTF-8 BOM.
		line := strings.TrimSpace(strings.TrimPrefix(sc.Text(), "\ufeff"))
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, apperrors.NewWrapper("faq", "load_stopwords").Wrapf(err, "scan %s", path)
	}
	return lines, nil
}

// Initialize loads the corpus at paths and builds a Matcher. Like Load it
// never fails; with no usable corpus every query gets the fallback.
func Initialize(ctx context.Context, paths Paths, tok Tokenizer, log *logger.Logger, opts ...Option) (*Matcher, *Corpus) {
	corpus := Load(ctx, paths, log)

	start := time.Now()
	m := New(corpus.Entries, corpus.Stopwords, tok, opts...)
	stats := m.Stats()
	log.WithFields(map[string]any{
		"entries":     stats.Entries,
		"vocabulary":  stats.Vocabulary,
		"empty_rows":  stats.EmptyRows,
		"threshold":   stats.Threshold,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("FAQ index built")
	return m, corpus
}

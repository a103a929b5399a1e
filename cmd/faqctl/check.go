package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/garyellow/faq-linebot-go/internal/faq"
	"github.com/garyellow/faq-linebot-go/internal/warmup"
)

// selfMatchFailure is a question that does not lead back to its own entry,
// usually because an earlier entry has the same or a near-identical question.
type selfMatchFailure struct {
	Index int
	Got   int
	Score float64
}

func runCheck(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	sync := fs.Bool("sync", false, "download the data files from R2 first")
	strict := fs.Bool("strict", false, "fail when a question does not match itself or a source is missing")
	if err := fs.Parse(args); err != nil {
		return err
	}

	m, stats, err := buildMatcher(ctx, e, *sync)
	if err != nil {
		return err
	}

	failures := selfMatchFailures(m)
	report(e.stdout, m, stats, failures)

	if *strict && (len(failures) > 0 || stats.Warnings > 0) {
		return fmt.Errorf("corpus check failed: %d self-match failures, %d source warnings", len(failures), stats.Warnings)
	}
	return nil
}

// selfMatchFailures asks every non-blank question and lists those answered
// by another entry or by the fallback.
func selfMatchFailures(m *faq.Matcher) []selfMatchFailure {
	var out []selfMatchFailure
	for i := range m.Len() {
		q := m.Entry(i).Question
		if strings.TrimSpace(q) == "" {
			continue
		}
		res := m.Match(q)
		if !res.Matched || res.Index != i {
			got := res.Index
			if !res.Matched {
				got = -1
			}
			out = append(out, selfMatchFailure{Index: i, Got: got, Score: res.Score})
		}
	}
	return out
}

func report(w io.Writer, m *faq.Matcher, stats *warmup.Stats, failures []selfMatchFailure) {
	_, _ = fmt.Fprintf(w, "entries:     %d\n", stats.Entries)
	_, _ = fmt.Fprintf(w, "vocabulary:  %d\n", stats.Vocabulary)
	_, _ = fmt.Fprintf(w, "stopwords:   %d\n", stats.Stopwords)
	_, _ = fmt.Fprintf(w, "empty rows:  %d\n", stats.EmptyRows)
	_, _ = fmt.Fprintf(w, "threshold:   %.2f\n", stats.Threshold)
	_, _ = fmt.Fprintf(w, "warnings:    %d\n", stats.Warnings)
	_, _ = fmt.Fprintf(w, "self-match failures: %d\n", len(failures))
	for _, f := range failures {
		q := oneLine(m.Entry(f.Index).Question)
		if f.Got < 0 {
			_, _ = fmt.Fprintf(w, "  #%d %q falls back (score %.4f)\n", f.Index, q, f.Score)
			continue
		}
		_, _ = fmt.Fprintf(w, "  #%d %q matches #%d %q (score %.4f)\n",
			f.Index, q, f.Got, oneLine(m.Entry(f.Got).Question), f.Score)
	}
}

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/garyellow/faq-linebot-go/internal/faq"
)

func runAsk(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("ask", flag.ContinueOnError)
	sync := fs.Bool("sync", false, "download the data files from R2 first")
	if err := fs.Parse(args); err != nil {
		return err
	}

	m, _, err := buildMatcher(ctx, e, *sync)
	if err != nil {
		return err
	}

	if fs.NArg() > 0 {
		for _, q := range fs.Args() {
			printAnswer(e.stdout, q, m.Match(q))
		}
		return nil
	}
	return askLines(ctx, m, e.stdin, e.stdout)
}

// askLines answers each non-blank line of r.
func askLines(ctx context.Context, m *faq.Matcher, r io.Reader, w io.Writer) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		q := strings.TrimSpace(sc.Text())
		if q == "" {
			continue
		}
		printAnswer(w, q, m.Match(q))
	}
	return sc.Err()
}

// printAnswer writes one tab-separated line: score, matched index (-1 for
// the fallback), question and answer.
func printAnswer(w io.Writer, q string, res faq.Result) {
	index := res.Index
	if !res.Matched {
		index = -1
	}
	_, _ = fmt.Fprintf(w, "%.4f\t%d\t%s\t%s\n", res.Score, index, q, oneLine(res.Answer))
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/garyellow/faq-linebot-go/internal/faq"
	"github.com/garyellow/faq-linebot-go/internal/storage"
)

func runImport(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	in := fs.String("in", e.cfg.CorpusPath(), "JSON corpus to read")
	out := fs.String("out", "", "SQLite database to write (required, e.g. data/faq.db)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *out == "" || !storage.IsSQLitePath(*out) {
		fs.Usage()
		return errUsage
	}

	n, err := importCorpus(ctx, *in, *out)
	if err != nil {
		return err
	}
	e.log.WithField("entries", n).WithField("path", *out).Info("Corpus imported")
	_, _ = fmt.Fprintf(e.stdout, "imported %d entries into %s\n", n, *out)
	return nil
}

// importCorpus replaces the faq table of the database at out with the
// entries read from in, keeping their order.
func importCorpus(ctx context.Context, in, out string) (int, error) {
	entries, err := faq.ReadEntries(ctx, in)
	if err != nil {
		return 0, err
	}

	db, err := storage.New(ctx, out)
	if err != nil {
		return 0, err
	}
	defer func() { _ = db.Close() }()

	rows := make([]storage.FAQ, len(entries))
	for i, en := range entries {
		rows[i] = storage.FAQ{Question: en.Question, Answer: en.Answer}
	}
	if err := db.ReplaceFAQ(ctx, rows); err != nil {
		return 0, fmt.Errorf("write %s: %w", out, err)
	}
	return len(rows), nil
}

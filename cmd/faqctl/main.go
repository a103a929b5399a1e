// Command faqctl works with the FAQ corpus offline: it answers questions
// from the command line, checks the corpus, converts it to SQLite and
// publishes the data files to R2.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/garyellow/faq-linebot-go/internal/app"
	"github.com/garyellow/faq-linebot-go/internal/config"
	"github.com/garyellow/faq-linebot-go/internal/corpussync"
	"github.com/garyellow/faq-linebot-go/internal/faq"
	"github.com/garyellow/faq-linebot-go/internal/logger"
	"github.com/garyellow/faq-linebot-go/internal/warmup"
)

// errUsage makes main print usage and exit 2.
var errUsage = errors.New("usage")

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, env *env, args []string) error
}

var commands = []command{
	{"ask", "answer questions given as arguments or one per stdin line", runAsk},
	{"check", "report corpus statistics and questions that do not match themselves", runCheck},
	{"import", "copy the JSON corpus into a SQLite database", runImport},
	{"publish", "compress the data files and upload them to R2", runPublish},
}

// env is what every command gets.
type env struct {
	cfg    *config.Config
	log    *logger.Logger
	stdin  io.Reader
	stdout io.Writer
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	cmd, ok := lookup(flag.Arg(0))
	if !ok {
		_, _ = fmt.Fprintf(os.Stderr, "faqctl: unknown command %q\n\n", flag.Arg(0))
		usage()
		os.Exit(2)
	}

	cfg, err := config.LoadForTool()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	// Logs go to stderr so stdout stays machine-readable.
	log := logger.NewWithWriter(cfg.LogLevel, os.Stderr).WithModule("faqctl")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e := &env{cfg: cfg, log: log, stdin: os.Stdin, stdout: os.Stdout}
	if err := cmd.run(ctx, e, flag.Args()[1:]); err != nil {
		if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.WithError(err).Error(cmd.name + " failed")
		os.Exit(1)
	}
}

func lookup(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func usage() {
	out := flag.CommandLine.Output()
	_, _ = fmt.Fprintln(out, "Usage: faqctl <command> [flags]")
	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprintln(out, "Commands:")
	for _, c := range commands {
		_, _ = fmt.Fprintf(out, "  %-8s %s\n", c.name, c.summary)
	}
	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprintln(out, "Settings come from FAQ_* environment variables or .env.")
}

// buildMatcher loads the local data files, syncing them from R2 first when
// sync is set, and builds the matcher.
func buildMatcher(ctx context.Context, e *env, sync bool) (*faq.Matcher, *warmup.Stats, error) {
	opts := warmup.Options{
		Paths:          app.FAQPaths(e.cfg),
		Tokenizer:      app.NewTokenizer(e.cfg, e.log),
		MatcherOptions: app.MatcherOptions(e.cfg, nil),
	}
	if sync {
		client, err := app.NewR2Client(ctx, e.cfg)
		if err != nil {
			return nil, nil, err
		}
		if client == nil {
			return nil, nil, fmt.Errorf("-sync needs %s=true", config.EnvR2Enabled)
		}
		opts.Syncer = corpussync.NewSyncer(client, app.SyncConfig(e.cfg), e.log, nil)
		opts.SyncTimeout = e.cfg.CorpusLoadTimeout
	}
	return warmup.Run(ctx, e.log, opts)
}

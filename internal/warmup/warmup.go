// Package warmup builds the FAQ index at startup: it optionally syncs the
// data files from R2, loads them, builds the matcher and publishes it to a
// ReadinessState.
package warmup

import (
	"context"
	"fmt"
	"time"

	"github.com/garyellow/faq-linebot-go/internal/corpussync"
	"github.com/garyellow/faq-linebot-go/internal/faq"
	"github.com/garyellow/faq-linebot-go/internal/logger"
	"github.com/garyellow/faq-linebot-go/internal/metrics"
)

// Options configures index building.
type Options struct {
	Paths          faq.Paths
	Tokenizer      faq.Tokenizer
	MatcherOptions []faq.Option
	Syncer         *corpussync.Syncer // Optional remote sync before loading
	SyncTimeout    time.Duration      // Bounds the sync only; zero means no own deadline
	Metrics        *metrics.Metrics   // Optional metrics recorder
}

// Stats summarises one warmup.
type Stats struct {
	faq.Stats
	Warnings int           `json:"warnings"`
	Synced   int           `json:"synced"`
	Duration time.Duration `json:"duration"`
}

// Run syncs and loads the corpus and builds a matcher. Missing or broken
// sources never fail the build, and neither does a sync that runs out of
// time: the local files are loaded as they are. Only a canceled ctx aborts.
func Run(ctx context.Context, log *logger.Logger, opts Options) (*faq.Matcher, *Stats, error) {
	start := time.Now()
	log = log.WithModule("warmup")
	stats := &Stats{}

	if opts.Syncer != nil {
		stats.Synced = syncCorpus(ctx, log, opts)
	}
	if err := ctx.Err(); err != nil {
		return nil, stats, fmt.Errorf("warmup canceled: %w", err)
	}

	m, corpus := faq.Initialize(ctx, opts.Paths, opts.Tokenizer, log, opts.MatcherOptions...)
	if err := ctx.Err(); err != nil {
		return nil, stats, fmt.Errorf("warmup canceled: %w", err)
	}

	stats.Stats = m.Stats()
	stats.Warnings = len(corpus.Warnings)
	stats.Duration = time.Since(start)

	if opts.Metrics != nil {
		for _, w := range corpus.Warnings {
			opts.Metrics.RecordSourceWarning(w.Source)
		}
		opts.Metrics.RecordCorpus(stats.Entries, stats.Vocabulary, stats.Duration.Seconds())
	}
	if stats.Entries == 0 {
		log.Warn("FAQ corpus is empty, every query will get the fallback answer")
	}
	return m, stats, nil
}

func syncCorpus(ctx context.Context, log *logger.Logger, opts Options) int {
	if opts.SyncTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.SyncTimeout)
		defer cancel()
	}

	results, err := opts.Syncer.Sync(ctx)
	if err != nil {
		log.WithError(err).Warn("Remote corpus sync incomplete, using local files")
	}
	synced := 0
	for _, r := range results {
		if r.Status == corpussync.StatusDownloaded {
			synced++
		}
	}
	return synced
}

// RunAndPublish runs a warmup and publishes the matcher to state. The remote
// sync is bounded by timeout unless opts sets its own; loading the local
// files afterwards is not. It is meant to run in its own goroutine.
func RunAndPublish(ctx context.Context, state *ReadinessState, timeout time.Duration, log *logger.Logger, opts Options) {
	if opts.SyncTimeout <= 0 {
		opts.SyncTimeout = timeout
	}

	m, stats, err := Run(ctx, log, opts)
	if err != nil {
		log.WithError(err).Error("FAQ index build failed")
		return
	}
	state.Publish(m)
	log.WithFields(map[string]any{
		"entries":     stats.Entries,
		"vocabulary":  stats.Vocabulary,
		"warnings":    stats.Warnings,
		"synced":      stats.Synced,
		"duration_ms": stats.Duration.Milliseconds(),
	}).Info("Service marked as ready after index build")
}

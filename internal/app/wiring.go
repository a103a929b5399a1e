package app

import (
	"context"
	"fmt"

	"github.com/garyellow/faq-linebot-go/internal/config"
	"github.com/garyellow/faq-linebot-go/internal/corpussync"
	"github.com/garyellow/faq-linebot-go/internal/faq"
	"github.com/garyellow/faq-linebot-go/internal/logger"
	"github.com/garyellow/faq-linebot-go/internal/r2client"
)

// FAQPaths returns the corpus and stop-word locations of cfg.
func FAQPaths(cfg *config.Config) faq.Paths {
	zh, en := cfg.StopwordPaths()
	return faq.Paths{
		Corpus:      cfg.CorpusPath(),
		StopwordsZH: zh,
		StopwordsEN: en,
	}
}

// NewTokenizer returns the configured tokenizer. When the gse dictionary
// cannot be loaded it logs and falls back to bigrams, so the bot still
// answers.
func NewTokenizer(cfg *config.Config, log *logger.Logger) faq.Tokenizer {
	if cfg.Tokenizer == config.TokenizerBigram {
		return faq.BigramTokenizer{}
	}
	tok, err := faq.NewGseTokenizer(cfg.SegmenterDict)
	if err != nil {
		log.WithError(err).
			WithField("dictionary", cfg.SegmenterDict).
			Warn("Segmenter dictionary unavailable, using bigram tokenizer")
		return faq.BigramTokenizer{}
	}
	return tok
}

// MatcherOptions maps matching settings onto faq options. onPanic may be nil.
func MatcherOptions(cfg *config.Config, onPanic func(recovered any)) []faq.Option {
	opts := []faq.Option{
		faq.WithThreshold(cfg.Threshold),
		faq.WithFallback(cfg.FallbackAnswer),
	}
	if onPanic != nil {
		opts = append(opts, faq.WithPanicHandler(onPanic))
	}
	return opts
}

// NewR2Client connects to the configured bucket. It returns nil, nil when R2
// is disabled.
func NewR2Client(ctx context.Context, cfg *config.Config) (*r2client.Client, error) {
	if !cfg.R2.Enabled {
		return nil, nil
	}
	client, err := r2client.New(ctx, r2client.Config{
		Endpoint:    r2client.AccountEndpoint(cfg.R2.AccountID),
		AccessKeyID: cfg.R2.AccessKeyID,
		SecretKey:   cfg.R2.SecretAccessKey,
		BucketName:  cfg.R2.BucketName,
	})
	if err != nil {
		return nil, fmt.Errorf("r2: %w", err)
	}
	return client, nil
}

// SyncConfig describes the data files mirrored to and from R2.
func SyncConfig(cfg *config.Config) corpussync.Config {
	return corpussync.Config{
		Prefix:  cfg.R2.Prefix,
		DataDir: cfg.DataDir,
		Files:   cfg.DataFiles(),
	}
}

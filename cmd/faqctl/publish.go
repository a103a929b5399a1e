package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/garyellow/faq-linebot-go/internal/app"
	"github.com/garyellow/faq-linebot-go/internal/config"
	"github.com/garyellow/faq-linebot-go/internal/corpussync"
	"github.com/garyellow/faq-linebot-go/internal/r2client"
)

func runPublish(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("publish", flag.ContinueOnError)
	lockTTL := fs.Duration("lock-ttl", 10*time.Minute, "how long the publish lock is held at most")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := app.NewR2Client(ctx, e.cfg)
	if err != nil {
		return err
	}
	if client == nil {
		return fmt.Errorf("publish needs %s=true", config.EnvR2Enabled)
	}

	lock := r2client.NewLock(client, corpussync.LockKey(e.cfg.R2.Prefix), *lockTTL)
	results, err := corpussync.Publish(ctx, client, lock, app.SyncConfig(e.cfg), e.log)
	for _, r := range results {
		line := fmt.Sprintf("%-10s %s", r.Status, r.Name)
		if r.ETag != "" {
			line += "  etag=" + r.ETag
		}
		if r.Err != nil {
			line += "  error=" + r.Err.Error()
		}
		_, _ = fmt.Fprintln(e.stdout, line)
	}
	return err
}

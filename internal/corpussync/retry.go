package corpussync

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/garyellow/faq-linebot-go/internal/r2client"
)

// Default retry policy for R2 requests during Sync.
const (
	defaultRetries    = 2
	defaultRetryDelay = 500 * time.Millisecond
)

// SyncerOption configures a Syncer.
type SyncerOption func(*Syncer)

// WithRetry sets how often a failed R2 request is retried and the delay
// before the first retry. Later delays double.
func WithRetry(retries int, initialDelay time.Duration) SyncerOption {
	return func(s *Syncer) {
		s.retries = max(retries, 0)
		s.retryDelay = initialDelay
	}
}

// retryWithBackoff calls fn until it succeeds, returns a permanent error or
// retries are used up. The delay doubles per attempt with ±25% jitter. A
// missing object is permanent.
func retryWithBackoff(ctx context.Context, retries int, initialDelay time.Duration, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		if err = fn(); err == nil || errors.Is(err, r2client.ErrNotFound) || attempt >= retries {
			return err
		}

		delay := initialDelay << attempt
		if delay > 0 {
			delay = delay - delay/4 + rand.N(delay/2+1)
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return errors.Join(err, ctx.Err())
		case <-t.C:
		}
	}
}

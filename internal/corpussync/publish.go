package corpussync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/garyellow/faq-linebot-go/internal/logger"
	"github.com/garyellow/faq-linebot-go/internal/r2client"
)

// ErrPublishInProgress is returned when another publisher holds the lock.
var ErrPublishInProgress = errors.New("corpussync: another publish is in progress")

// Uploader is the write side of R2 used by Publish.
type Uploader interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
}

// Locker guards a publish against concurrent publishers.
type Locker interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// LockKey returns the key of the publish lock under prefix.
func LockKey(prefix string) string {
	return prefix + ".publish.lock"
}

// Publish zstd-compresses each local data file and uploads it as
// <prefix><name>.zst while holding lock. Files missing locally are skipped.
func Publish(ctx context.Context, up Uploader, lock Locker, cfg Config, log *logger.Logger) ([]FileResult, error) {
	ok, err := lock.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("corpussync: acquire publish lock: %w", err)
	}
	if !ok {
		return nil, ErrPublishInProgress
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			log.WithError(err).Warn("Failed to release publish lock")
		}
	}()

	tmpDir, err := os.MkdirTemp("", "faq-publish-*")
	if err != nil {
		return nil, fmt.Errorf("corpussync: create temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	results := make([]FileResult, 0, len(cfg.Files))
	var errs []error
	for _, name := range cfg.Files {
		res := publishFile(ctx, up, cfg, tmpDir, name)
		results = append(results, res)
		if res.Err != nil {
			errs = append(errs, res.Err)
		}
		log.WithField("file", name).WithField("status", res.Status).Info("Corpus file published")
	}
	return results, errors.Join(errs...)
}

func publishFile(ctx context.Context, up Uploader, cfg Config, tmpDir, name string) FileResult {
	res := FileResult{Name: name}
	src := filepath.Join(cfg.DataDir, name)
	if !fileExists(src) {
		res.Status = StatusSkipped
		return res
	}

	compressed := filepath.Join(tmpDir, name+r2client.CompressedExt)
	if err := r2client.CompressFile(src, compressed); err != nil {
		res.Status, res.Err = StatusError, err
		return res
	}

	f, err := os.Open(compressed)
	if err != nil {
		res.Status, res.Err = StatusError, err
		return res
	}
	defer func() { _ = f.Close() }()

	etag, err := up.Upload(ctx, cfg.Key(name, true), f, "application/zstd")
	if err != nil {
		res.Status, res.Err = StatusError, err
		return res
	}
	res.Status, res.ETag = StatusUploaded, etag
	return res
}

// Package corpussync mirrors the FAQ data files between a local data
// directory and an R2 prefix. The server pulls them once at startup before
// the index is built; faqctl publish pushes them.
package corpussync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/garyellow/faq-linebot-go/internal/errors"
	"github.com/garyellow/faq-linebot-go/internal/logger"
	"github.com/garyellow/faq-linebot-go/internal/r2client"
)

// ObjectStore is the read side of R2 used by Sync.
type ObjectStore interface {
	Download(ctx context.Context, key string) (io.ReadCloser, string, error)
	HeadObject(ctx context.Context, key string) (string, error)
}

// Recorder receives one status per synced file.
type Recorder interface {
	RecordCorpusSync(status string)
}

// File statuses.
const (
	StatusDownloaded = "downloaded"
	StatusUnchanged  = "unchanged"
	StatusNotFound   = "not_found"
	StatusUploaded   = "uploaded"
	StatusSkipped    = "skipped"
	StatusError      = "error"
)

// Config names the files to mirror.
type Config struct {
	Prefix  string   // object key prefix, e.g. "faq/"
	DataDir string   // local directory
	Files   []string // file names relative to DataDir
}

// Key returns the object key of a data file, compressed or not.
func (c Config) Key(name string, compressed bool) string {
	key := c.Prefix + name
	if compressed {
		key += r2client.CompressedExt
	}
	return key
}

// FileResult is the outcome for one file.
type FileResult struct {
	Name   string
	Status string
	ETag   string
	Err    error
}

// Syncer downloads data files from R2.
type Syncer struct {
	store    ObjectStore
	cfg      Config
	log      *logger.Logger
	recorder Recorder

	retries    int
	retryDelay time.Duration
}

// NewSyncer creates a Syncer. recorder may be nil.
func NewSyncer(store ObjectStore, cfg Config, log *logger.Logger, recorder Recorder, opts ...SyncerOption) *Syncer {
	s := &Syncer{
		store:      store,
		cfg:        cfg,
		log:        log.WithModule("corpussync"),
		recorder:   recorder,
		retries:    defaultRetries,
		retryDelay: defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync fetches every configured file concurrently. For each file the
// compressed object (<key>.zst) is preferred over the plain one. Files whose
// remote ETag matches the last download are left alone, and files missing
// remotely keep their local copy. The returned error joins per-file
// failures; callers treat it as a warning because the loader degrades on
// missing files anyway.
func (s *Syncer) Sync(ctx context.Context) ([]FileResult, error) {
	if err := os.MkdirAll(s.cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("corpussync: create data dir: %w", err)
	}

	results := make([]FileResult, len(s.cfg.Files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(3)
	for i, name := range s.cfg.Files {
		g.Go(func() error {
			results[i] = s.syncFile(gctx, name)
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, r := range results {
		if s.recorder != nil {
			s.recorder.RecordCorpusSync(r.Status)
		}
		entry := s.log.WithField("file", r.Name).WithField("status", r.Status)
		if r.Err != nil {
			errs = append(errs, r.Err)
			entry.WithError(r.Err).Warn("Corpus file sync failed, keeping local copy")
			continue
		}
		entry.WithField("etag", r.ETag).Info("Corpus file synced")
	}
	return results, errors.Join(errs...)
}

func (s *Syncer) syncFile(ctx context.Context, name string) FileResult {
	wrap := apperrors.NewWrapper("corpussync", "download")
	res := FileResult{Name: name}
	dst := filepath.Join(s.cfg.DataDir, name)

	for _, compressed := range []bool{true, false} {
		key := s.cfg.Key(name, compressed)
		var etag string
		err := s.retry(ctx, func() (err error) {
			etag, err = s.store.HeadObject(ctx, key)
			return err
		})
		if errors.Is(err, r2client.ErrNotFound) {
			continue
		}
		if err != nil {
			res.Status, res.Err = StatusError, wrap.Wrapf(err, "head %s", key)
			return res
		}

		res.ETag = etag
		if etag != "" && etag == readETag(dst) && fileExists(dst) {
			res.Status = StatusUnchanged
			return res
		}

		if err := s.download(ctx, key, dst, compressed); err != nil {
			res.Status, res.Err = StatusError, wrap.Wrapf(err, "get %s", key)
			return res
		}
		writeETag(dst, etag)
		res.Status = StatusDownloaded
		return res
	}

	res.Status = StatusNotFound
	return res
}

func (s *Syncer) download(ctx context.Context, key, dst string, compressed bool) error {
	var body io.ReadCloser
	err := s.retry(ctx, func() (err error) {
		body, _, err = s.store.Download(ctx, key)
		return err
	})
	if err != nil {
		return err
	}
	defer func() { _ = body.Close() }()

	if compressed {
		return r2client.DecompressStream(body, dst)
	}
	return r2client.WriteFileAtomic(dst, body)
}

func (s *Syncer) retry(ctx context.Context, fn func() error) error {
	return retryWithBackoff(ctx, s.retries, s.retryDelay, fn)
}

// etagPath is the sidecar remembering which object version dst came from.
func etagPath(dst string) string {
	return filepath.Join(filepath.Dir(dst), "."+filepath.Base(dst)+".etag")
}

func readETag(dst string) string {
	b, err := os.ReadFile(etagPath(dst))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

func writeETag(dst, etag string) {
	if etag == "" {
		return
	}
	_ = os.WriteFile(etagPath(dst), []byte(etag+"\n"), 0o644)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

package corpussync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyellow/faq-linebot-go/internal/logger"
	"github.com/garyellow/faq-linebot-go/internal/r2client"
)

// memStore is an in-memory object store. ETags are a per-key version.
type memStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	etags     map[string]string
	downloads map[string]int
	headErr   error
	flakes    int // HeadObject fails this many more times
	heads     int
	version   int
}

func newMemStore() *memStore {
	return &memStore{
		objects:   make(map[string][]byte),
		etags:     make(map[string]string),
		downloads: make(map[string]int),
	}
}

func (m *memStore) put(key string, data []byte) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.version++
	m.objects[key] = append([]byte(nil), data...)
	m.etags[key] = fmt.Sprintf("v%d", m.version)
	return m.etags[key]
}

func (m *memStore) get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[key]
	return b, ok
}

func (m *memStore) downloadCount(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.downloads[key]
}

func (m *memStore) Download(_ context.Context, key string) (io.ReadCloser, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[key]
	if !ok {
		return nil, "", r2client.ErrNotFound
	}
	m.downloads[key]++
	return io.NopCloser(bytes.NewReader(b)), m.etags[key], nil
}

func (m *memStore) HeadObject(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.heads++
	if m.headErr != nil {
		return "", m.headErr
	}
	if m.flakes > 0 {
		m.flakes--
		return "", errors.New("connection reset")
	}
	if _, ok := m.objects[key]; !ok {
		return "", r2client.ErrNotFound
	}
	return m.etags[key], nil
}

func (m *memStore) Upload(_ context.Context, key string, body io.Reader, _ string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	return m.put(key, data), nil
}

type statusRecorder struct {
	mu       sync.Mutex
	statuses []string
}

func (r *statusRecorder) RecordCorpusSync(status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
}

func zstdBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	defer func() { _ = enc.Close() }()
	return enc.EncodeAll(data, nil)
}

func quietLogger() *logger.Logger {
	return logger.NewWithWriter("error", io.Discard)
}

func TestConfig_Key(t *testing.T) {
	t.Parallel()

	cfg := Config{Prefix: "faq/"}
	assert.Equal(t, "faq/qa.json", cfg.Key("qa.json", false))
	assert.Equal(t, "faq/qa.json.zst", cfg.Key("qa.json", true))
	assert.Equal(t, "faq/.publish.lock", LockKey("faq/"))
}

func TestSync_PrefersCompressedAndFallsBackToPlain(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.put("faq/qa.json.zst", zstdBytes(t, []byte(`[{"question":"q","answer":"a"}]`)))
	store.put("faq/qa.json", []byte("stale plain copy"))
	store.put("faq/stop_zh.txt", []byte("的\n了\n"))

	dir := t.TempDir()
	rec := &statusRecorder{}
	s := NewSyncer(store, Config{
		Prefix:  "faq/",
		DataDir: dir,
		Files:   []string{"qa.json", "stop_zh.txt", "stop_en.txt"},
	}, quietLogger(), rec)

	results, err := s.Sync(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, StatusDownloaded, results[0].Status)
	assert.Equal(t, StatusDownloaded, results[1].Status)
	assert.Equal(t, StatusNotFound, results[2].Status)
	assert.ElementsMatch(t, []string{StatusDownloaded, StatusDownloaded, StatusNotFound}, rec.statuses)

	got, err := os.ReadFile(filepath.Join(dir, "qa.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `[{"question":"q","answer":"a"}]`, string(got))

	got, err = os.ReadFile(filepath.Join(dir, "stop_zh.txt"))
	require.NoError(t, err)
	assert.Equal(t, "的\n了\n", string(got))

	assert.Zero(t, store.downloadCount("faq/qa.json"))
	assert.NoFileExists(t, filepath.Join(dir, "stop_en.txt"))
}

func TestSync_SkipsUnchangedFiles(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.put("faq/qa.json", []byte("[]"))
	dir := t.TempDir()
	s := NewSyncer(store, Config{Prefix: "faq/", DataDir: dir, Files: []string{"qa.json"}}, quietLogger(), nil)

	results, err := s.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusDownloaded, results[0].Status)

	results, err = s.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusUnchanged, results[0].Status)
	assert.Equal(t, 1, store.downloadCount("faq/qa.json"))

	// A new remote version is fetched again.
	store.put("faq/qa.json", []byte(`[{"question":"q","answer":"a"}]`))
	results, err = s.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusDownloaded, results[0].Status)

	// Deleting the local file forces a download even with a matching ETag.
	require.NoError(t, os.Remove(filepath.Join(dir, "qa.json")))
	results, err = s.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusDownloaded, results[0].Status)
}

func TestSync_KeepsLocalCopyOnError(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.put("faq/qa.json", []byte("remote"))
	store.headErr = errors.New("network down")

	dir := t.TempDir()
	local := filepath.Join(dir, "qa.json")
	require.NoError(t, os.WriteFile(local, []byte("local"), 0o644))

	s := NewSyncer(store, Config{Prefix: "faq/", DataDir: dir, Files: []string{"qa.json"}}, quietLogger(), nil,
		WithRetry(1, time.Millisecond))
	results, err := s.Sync(context.Background())
	require.Error(t, err)
	assert.Equal(t, StatusError, results[0].Status)
	assert.ErrorContains(t, err, "network down")
	assert.Equal(t, 2, store.heads)

	got, readErr := os.ReadFile(local)
	require.NoError(t, readErr)
	assert.Equal(t, "local", string(got))
}

func TestSync_CorruptCompressedObject(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.put("faq/qa.json.zst", []byte("not zstd"))
	dir := t.TempDir()

	s := NewSyncer(store, Config{Prefix: "faq/", DataDir: dir, Files: []string{"qa.json"}}, quietLogger(), nil)
	results, err := s.Sync(context.Background())
	require.Error(t, err)
	assert.Equal(t, StatusError, results[0].Status)
	assert.NoFileExists(t, filepath.Join(dir, "qa.json"))
	assert.NoFileExists(t, etagPath(filepath.Join(dir, "qa.json")))
}

func TestSync_RetriesTransientErrors(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.put("faq/qa.json", []byte("remote"))
	store.flakes = 2
	dir := t.TempDir()

	s := NewSyncer(store, Config{Prefix: "faq/", DataDir: dir, Files: []string{"qa.json"}}, quietLogger(), nil,
		WithRetry(3, time.Millisecond))
	results, err := s.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusDownloaded, results[0].Status)

	got, readErr := os.ReadFile(filepath.Join(dir, "qa.json"))
	require.NoError(t, readErr)
	assert.Equal(t, "remote", string(got))
}

func TestRetryWithBackoff(t *testing.T) {
	t.Parallel()

	t.Run("not found is permanent", func(t *testing.T) {
		t.Parallel()
		calls := 0
		err := retryWithBackoff(context.Background(), 5, time.Millisecond, func() error {
			calls++
			return r2client.ErrNotFound
		})
		assert.ErrorIs(t, err, r2client.ErrNotFound)
		assert.Equal(t, 1, calls)
	})

	t.Run("gives up after retries", func(t *testing.T) {
		t.Parallel()
		calls := 0
		err := retryWithBackoff(context.Background(), 2, time.Millisecond, func() error {
			calls++
			return errors.New("boom")
		})
		assert.EqualError(t, err, "boom")
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on cancel", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		calls := 0
		err := retryWithBackoff(ctx, 5, time.Hour, func() error {
			calls++
			return errors.New("boom")
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}

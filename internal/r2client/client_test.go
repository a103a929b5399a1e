package r2client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/garyellow/faq-linebot-go/internal/errors"
)

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	err := Config{Endpoint: "https://x"}.Validate()
	require.Error(t, err)
	assert.True(t, apperrors.IsInvalidInput(err))
	assert.Contains(t, err.Error(), "bucket name")

	assert.NoError(t, Config{Endpoint: "e", AccessKeyID: "a", SecretKey: "s", BucketName: "b"}.Validate())
	assert.Equal(t, "https://abc.r2.cloudflarestorage.com", AccountEndpoint("abc"))
}

func TestErrNotFoundMatchesSentinel(t *testing.T) {
	t.Parallel()

	assert.True(t, apperrors.IsNotFound(ErrNotFound))
}

func TestClient_RoundTrip(t *testing.T) {
	_, c := newFakeR2(t)
	ctx := context.Background()

	etag, err := c.Upload(ctx, "faq/faq_dataset.json", bytes.NewReader([]byte(`[]`)), "application/json")
	require.NoError(t, err)
	assert.NotEmpty(t, etag)

	head, err := c.HeadObject(ctx, "faq/faq_dataset.json")
	require.NoError(t, err)
	assert.Equal(t, etag, head)

	body, got, err := c.Download(ctx, "faq/faq_dataset.json")
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	require.NoError(t, body.Close())
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
	assert.Equal(t, etag, got)

	require.NoError(t, c.DeleteObject(ctx, "faq/faq_dataset.json"))
	_, err = c.HeadObject(ctx, "faq/faq_dataset.json")
	assert.ErrorIs(t, err, ErrNotFound)
	_, _, err = c.Download(ctx, "faq/faq_dataset.json")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClient_ConditionalPuts(t *testing.T) {
	_, c := newFakeR2(t)
	ctx := context.Background()

	created, etag, err := c.PutIfAbsent(ctx, "k", strings.NewReader("1"), "")
	require.NoError(t, err)
	require.True(t, created)

	created, _, err = c.PutIfAbsent(ctx, "k", strings.NewReader("2"), "")
	require.NoError(t, err)
	assert.False(t, created)

	updated, _, err := c.PutIfMatch(ctx, "k", strings.NewReader("3"), "stale", "")
	require.NoError(t, err)
	assert.False(t, updated)

	updated, newETag, err := c.PutIfMatch(ctx, "k", strings.NewReader("4"), etag, "")
	require.NoError(t, err)
	assert.True(t, updated)
	assert.NotEqual(t, etag, newETag)
}

func TestLock_AcquireRelease(t *testing.T) {
	f, c := newFakeR2(t)
	ctx := context.Background()

	first := NewLock(c, "faq/.publish.lock", time.Minute)
	second := NewLock(c, "faq/.publish.lock", time.Minute)
	assert.NotEqual(t, first.OwnerID(), second.OwnerID())

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "lease is still held")

	// Releasing a lock we never held leaves the owner's lease alone.
	require.NoError(t, second.Release(ctx))
	_, held := f.get("faq/.publish.lock")
	assert.True(t, held)

	require.NoError(t, first.Release(ctx))
	_, held = f.get("faq/.publish.lock")
	assert.False(t, held)

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLock_TakesOverExpiredLease(t *testing.T) {
	f, c := newFakeR2(t)
	ctx := context.Background()

	stale, err := json.Marshal(LockInfo{Owner: "crashed", ExpiresAt: time.Now().Add(-time.Minute)})
	require.NoError(t, err)
	f.put("lock", stale)

	l := NewLock(c, "lock", time.Minute)
	ok, err := l.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	data, _ := f.get("lock")
	var info LockInfo
	require.NoError(t, json.Unmarshal(data, &info))
	assert.Equal(t, l.OwnerID(), info.Owner)
}

func TestCompressDecompress(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	src := filepath.Join(dir, "faq_dataset.json")
	content := strings.Repeat(`{"question":"如何重設密碼","answer":"請至設定頁面"},`, 200)
	require.NoError(t, os.WriteFile(src, []byte(content), 0o600))

	compressed := src + CompressedExt
	require.NoError(t, CompressFile(src, compressed))

	info, err := os.Stat(compressed)
	require.NoError(t, err)
	assert.Less(t, info.Size(), int64(len(content)))

	f, err := os.Open(compressed)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	out := filepath.Join(dir, "restored.json")
	require.NoError(t, DecompressStream(f, out))
	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, content, string(got))

	// No temporary files are left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestCompressFile_MissingSource(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	assert.Error(t, CompressFile(filepath.Join(dir, "missing"), filepath.Join(dir, "out.zst")))
}

func TestDecompressStream_InvalidData(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	dst := filepath.Join(dir, "out.json")

	require.Error(t, DecompressStream(strings.NewReader("not zstd"), dst))
	_, err := os.Stat(dst)
	assert.True(t, os.IsNotExist(err), "failed writes leave no file")
}

package r2client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// LockInfo is the body of a lock object.
type LockInfo struct {
	Owner     string    `json:"owner"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the lock is past its expiry at now.
func (i LockInfo) Expired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// Lock is a lease stored as an R2 object and guarded by conditional writes.
// faqctl publish holds it so that two operators cannot interleave uploads.
type Lock struct {
	client  *Client
	key     string
	ttl     time.Duration
	ownerID string
	etag    string
	now     func() time.Time
}

// NewLock creates a lock on key with the given lease duration.
func NewLock(client *Client, key string, ttl time.Duration) *Lock {
	return &Lock{
		client:  client,
		key:     key,
		ttl:     ttl,
		ownerID: uuid.NewString(),
		now:     time.Now,
	}
}

// OwnerID returns the random identity written into the lock object.
func (l *Lock) OwnerID() string {
	return l.ownerID
}

func (l *Lock) body() (io.Reader, error) {
	data, err := json.Marshal(LockInfo{Owner: l.ownerID, ExpiresAt: l.now().Add(l.ttl)})
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

// Acquire takes the lock. It returns false without error while another
// owner holds an unexpired lease. An expired lease is taken over with an
// If-Match write, so only one contender wins.
func (l *Lock) Acquire(ctx context.Context) (bool, error) {
	body, err := l.body()
	if err != nil {
		return false, fmt.Errorf("acquire lock: %w", err)
	}
	created, etag, err := l.client.PutIfAbsent(ctx, l.key, body, "application/json")
	if err != nil {
		return false, fmt.Errorf("acquire lock: %w", err)
	}
	if created {
		l.etag = etag
		return true, nil
	}

	info, current, err := l.read(ctx)
	if errors.Is(err, ErrNotFound) {
		// Released between our two calls; try once more.
		if body, err = l.body(); err != nil {
			return false, fmt.Errorf("acquire lock: %w", err)
		}
		created, etag, err = l.client.PutIfAbsent(ctx, l.key, body, "application/json")
		if err != nil || !created {
			return false, err
		}
		l.etag = etag
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("acquire lock: %w", err)
	}
	if info != nil && !info.Expired(l.now()) {
		return false, nil
	}

	body, err = l.body()
	if err != nil {
		return false, fmt.Errorf("acquire lock: %w", err)
	}
	stolen, etag, err := l.client.PutIfMatch(ctx, l.key, body, current, "application/json")
	if err != nil {
		return false, fmt.Errorf("acquire lock: take over: %w", err)
	}
	if stolen {
		l.etag = etag
	}
	return stolen, nil
}

// read returns the current lock body, nil if it cannot be parsed.
func (l *Lock) read(ctx context.Context) (*LockInfo, string, error) {
	rc, etag, err := l.client.Download(ctx, l.key)
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = rc.Close() }()

	var info LockInfo
	if err := json.NewDecoder(rc).Decode(&info); err != nil {
		return nil, etag, nil
	}
	return &info, etag, nil
}

// Release deletes the lock if this instance still owns it.
func (l *Lock) Release(ctx context.Context) error {
	if l.etag == "" {
		return nil
	}
	info, _, err := l.read(ctx)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	if info != nil && info.Owner != l.ownerID {
		return nil
	}
	l.etag = ""
	return l.client.DeleteObject(ctx, l.key)
}

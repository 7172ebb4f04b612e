// Package idlock serializes writers per appointment id. Operations on
// different ids never contend; two writers on the same id queue behind a
// short-lived Redis lock so commits cannot interleave.
package idlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired means another writer currently holds the id's lock.
var ErrNotAcquired = errors.New("idlock: lock held by another writer")

// releaseScript deletes the key only if the caller still owns it, so an
// expired-and-reacquired lock is never released by the previous holder.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Locker hands out per-key exclusive locks with a TTL. A nil *Locker is
// a no-op: callers without Redis fall back to the store's version checks.
type Locker struct {
	client *redis.Client
	ttl    time.Duration
}

// New creates a locker. TTL bounds how long a crashed holder can block
// other writers.
func New(client *redis.Client, ttl time.Duration) *Locker {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Locker{client: client, ttl: ttl}
}

// Lock is a held lock. Release it when the commit finishes.
type Lock struct {
	client *redis.Client
	key    string
	token  string
}

// Acquire takes the lock for the key, retrying briefly before giving up
// with ErrNotAcquired.
func (l *Locker) Acquire(ctx context.Context, key string) (*Lock, error) {
	if l == nil {
		return nil, nil
	}
	token := uuid.NewString()
	backoff := 25 * time.Millisecond
	for attempt := 0; attempt < 5; attempt++ {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("idlock: acquire %s: %w", key, err)
		}
		if ok {
			return &Lock{client: l.client, key: key, token: token}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("idlock: acquire %s: %w", key, ErrNotAcquired)
}

// Release hands the lock back. Releasing a nil or expired lock is safe.
func (lk *Lock) Release(ctx context.Context) error {
	if lk == nil {
		return nil
	}
	if err := releaseScript.Run(ctx, lk.client, []string{lk.key}, lk.token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("idlock: release %s: %w", lk.key, err)
	}
	return nil
}

// AppointmentKey namespaces lock keys per appointment id.
func AppointmentKey(id uuid.UUID) string {
	return "agenda:lock:appointment:" + id.String()
}

// Package lock provides per-key advisory locks used to serialise
// check-then-insert of reports for the same subject.
package lock

import (
	"context"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

// ErrNotObtained is returned when a lock could not be acquired before the
// context ended or retries ran out.
var ErrNotObtained = errors.New("lock not obtained")

// Locker acquires an exclusive lock on key. The returned func releases it
// and is safe to call once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// KeyedMutex is an in-process Locker. Entries are reference counted and
// dropped when no holder or waiter remains.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	ch   chan struct{}
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*entry)}
}

func (k *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(key, e, false)
		return nil, errors.Wrapf(ErrNotObtained, "%s: %v", key, ctx.Err())
	}
	var once sync.Once
	return func() { once.Do(func() { k.release(key, e, true) }) }, nil
}

func (k *KeyedMutex) release(key string, e *entry, held bool) {
	if held {
		<-e.ch
	}
	k.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(k.locks, key)
	}
	k.mu.Unlock()
}

// RedisLocker is a cross-process Locker backed by redislock.
type RedisLocker struct {
	client  *redislock.Client
	ttl     time.Duration
	backoff time.Duration
	prefix  string
}

// NewRedisLocker locks keys under "homescore:lock:" with the given TTL. A
// holder that dies is released when the TTL lapses.
func NewRedisLocker(rdb redis.UniversalClient, ttl time.Duration) *RedisLocker {
	return &RedisLocker{
		client:  redislock.New(rdb),
		ttl:     ttl,
		backoff: 100 * time.Millisecond,
		prefix:  "homescore:lock:",
	}
}

// Lock retries until ctx ends.
func (r *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	l, err := r.client.Obtain(ctx, r.prefix+key, r.ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(r.backoff),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, errors.Wrapf(ErrNotObtained, "%s", key)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "obtain lock %s", key)
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			// the lock expires on its own if release fails
			_ = l.Release(context.Background())
		})
	}, nil
}

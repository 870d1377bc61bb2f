package polycache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// lockClient is the slice of the cache pipeline the locks need: built keys,
// raw byte access, the waiter registry, and the configured logger. Every
// Cache produced by New satisfies it.
type lockClient interface {
	buildKey(key string) string
	logger() Logger
	lockAdd(ctx context.Context, builtKey string, token []byte, ttl time.Duration) (bool, error)
	lockGet(ctx context.Context, builtKey string) ([]byte, bool, error)
	lockCompareAndDelete(ctx context.Context, builtKey string, token []byte) (bool, error)
	lockWaiterChan(builtKey string) (<-chan struct{}, func())
	lockWake(builtKey string)
}

// ErrNotLockClient is returned by the lock constructors when handed a Cache
// implementation that did not come from New.
var ErrNotLockClient = errors.New("polycache: cache does not support locking")

// lockWaiter parks in-process contenders of one built lock key so they block
// on a channel instead of polling the backend. Reference counted: the map
// entry dies with its last waiter, so a holder that crashes and lets the
// lease self-expire leaves nothing behind.
type lockWaiter struct {
	ch chan struct{}
	n  int
}

// lockWaiterChan registers a waiter for the key and returns its wake channel
// plus a deregister func the waiter must call when done.
func (c *cache[V]) lockWaiterChan(builtKey string) (<-chan struct{}, func()) {
	c.waitMu.Lock()
	defer c.waitMu.Unlock()
	w, ok := c.waiters[builtKey]
	if !ok {
		w = &lockWaiter{ch: make(chan struct{})}
		c.waiters[builtKey] = w
	}
	w.n++
	return w.ch, func() {
		c.waitMu.Lock()
		defer c.waitMu.Unlock()
		w.n--
		if w.n == 0 && c.waiters[builtKey] == w {
			delete(c.waiters, builtKey)
		}
	}
}

// lockWake releases every current waiter of the key.
func (c *cache[V]) lockWake(builtKey string) {
	c.waitMu.Lock()
	defer c.waitMu.Unlock()
	if w, ok := c.waiters[builtKey]; ok {
		delete(c.waiters, builtKey)
		close(w.ch)
	}
}

// RedLock is a single-instance distributed mutual exclusion lock. The holder
// writes a random token under the lock key with a lease TTL; release deletes
// the key only if the token still matches, so an expired-and-reacquired lock
// is never released by a stale holder.
type RedLock struct {
	client lockClient
	key    string
	lease  time.Duration

	// MaxWait bounds how long Acquire retries on contention before giving
	// up with (false, nil). Zero means one lease.
	MaxWait time.Duration
	// RetryInterval is the polling fallback for remote holders that this
	// process cannot observe releasing. Zero means 50ms.
	RetryInterval time.Duration

	mu    sync.Mutex
	token []byte
}

// DefaultLease is the lock lease used when NewRedLock gets a zero duration.
const DefaultLease = 20 * time.Second

const defaultRetryInterval = 50 * time.Millisecond

// NewRedLock builds a lock on top of c for the given key. lease bounds how
// long a crashed holder can block others; it must be long enough to cover the
// protected section.
func NewRedLock[V any](c Cache[V], key string, lease time.Duration) (*RedLock, error) {
	lc, ok := c.(lockClient)
	if !ok {
		return nil, ErrNotLockClient
	}
	return &RedLock{
		client: lc,
		key:    lc.buildKey(key + "-lock"),
		lease:  coalesce[time.Duration](lease, DefaultLease),
	}, nil
}

// Acquire takes the lock, retrying on contention until it succeeds or
// MaxWait elapses. It returns (true, nil) when this caller now holds the
// lock and (false, nil) when it stayed held the whole time; contention is an
// outcome, not an error. In-process contenders park on a shared channel the
// holder closes on release; remote holders are covered by RetryInterval
// polling and lease expiry.
func (l *RedLock) Acquire(ctx context.Context) (bool, error) {
	deadline := time.Now().Add(coalesce[time.Duration](l.MaxWait, l.lease))
	for {
		token := []byte(uuid.NewString())
		ok, err := l.client.lockAdd(ctx, l.key, token, l.lease)
		if err != nil {
			return false, err
		}
		if ok {
			l.mu.Lock()
			l.token = token
			l.mu.Unlock()
			l.client.logger().Debug("lock acquired", Fields{"key": l.key, "lease": l.lease})
			return true, nil
		}
		remain := time.Until(deadline)
		if remain <= 0 {
			return false, nil
		}
		if err := l.waitRelease(ctx, remain); err != nil {
			return false, err
		}
	}
}

func (l *RedLock) waitRelease(ctx context.Context, max time.Duration) error {
	ch, done := l.client.lockWaiterChan(l.key)
	defer done()
	wait := coalesce[time.Duration](l.RetryInterval, defaultRetryInterval)
	if wait > max {
		wait = max
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ch:
		return nil
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release drops the lock if it is still held under this holder's token.
// Returns false when the lease already expired and someone else holds the
// key (or nobody does).
func (l *RedLock) Release(ctx context.Context) (bool, error) {
	l.mu.Lock()
	token := l.token
	l.token = nil
	l.mu.Unlock()
	if token == nil {
		return false, nil
	}
	ok, err := l.client.lockCompareAndDelete(ctx, l.key, token)
	l.client.lockWake(l.key)
	if err != nil {
		return false, err
	}
	if !ok {
		l.client.logger().Warn("lock lease expired before release", Fields{"key": l.key})
	}
	return ok, nil
}

// OptimisticLock implements check-and-set over a cache entry: snapshot the
// value, do work, and write back only if the entry has not changed under you.
type OptimisticLock[V any] struct {
	cache   *cache[V]
	userKey string
	key     string

	mu       sync.Mutex
	snapshot []byte
	seen     bool
}

// NewOptimisticLock builds an optimistic lock for key on top of c.
func NewOptimisticLock[V any](c Cache[V], key string) (*OptimisticLock[V], error) {
	cc, ok := c.(*cache[V])
	if !ok {
		return nil, ErrNotLockClient
	}
	return &OptimisticLock[V]{cache: cc, userKey: key, key: cc.buildKey(key)}, nil
}

// Get reads the current value and records the raw snapshot the later Set is
// compared against. A miss is a valid snapshot: Set then requires the key to
// still be absent.
func (l *OptimisticLock[V]) Get(ctx context.Context) (V, bool, error) {
	raw, ok, err := l.cache.lockGet(ctx, l.key)
	var zero V
	if err != nil {
		return zero, false, err
	}
	l.mu.Lock()
	l.snapshot = raw
	l.seen = true
	l.mu.Unlock()
	if !ok {
		return zero, false, nil
	}
	v, err := l.cache.ser.Load(raw)
	if err != nil {
		return zero, false, errors.Join(ErrDeserialize, err)
	}
	return v, true, nil
}

// Set writes value only if the entry still matches the snapshot taken by Get.
// ErrValueChanged reports a lost race; the caller decides whether to re-read
// and retry.
func (l *OptimisticLock[V]) Set(ctx context.Context, value V, opts ...CallOption) error {
	l.mu.Lock()
	snapshot := l.snapshot
	seen := l.seen
	l.mu.Unlock()
	if !seen {
		return errors.New("polycache: optimistic set before get")
	}

	raw, ok, err := l.cache.lockGet(ctx, l.key)
	if err != nil {
		return err
	}
	if ok != (snapshot != nil) || (ok && string(raw) != string(snapshot)) {
		return ErrValueChanged
	}
	return l.cache.Set(ctx, l.userKey, value, opts...)
}

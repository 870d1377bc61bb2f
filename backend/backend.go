// Package backend defines the storage abstraction used by polycache.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly
// the same []byte that was previously passed to Set for a key (no prepended or
// appended metadata, no re-encoding, no mutation). If a store performs
// internal transforms (e.g. compression), they MUST be fully reversed so that
// the bytes returned by Get are identical to the bytes provided to Set.
//
// Atomicity contract: Add, Increment and CompareAndDelete are the primitives
// the lock layer builds on. A driver that cannot implement one of them
// atomically must either return ErrNotSupported or document the race window
// on the method.
package backend

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotNumeric is returned by Increment when the stored value cannot
	// be interpreted as a signed decimal integer.
	ErrNotNumeric = errors.New("backend: value is not numeric")

	// ErrNotSupported is returned by drivers for operations the underlying
	// store cannot express (e.g. atomic add on bigcache).
	ErrNotSupported = errors.New("backend: operation not supported")
)

// Item is a key/value pair for MultiSet.
type Item struct {
	Key   string
	Value []byte
}

// Store is a byte store with per-key TTLs. Implementations must be safe for
// concurrent use.
//
// TTL semantics everywhere: ttl > 0 expires the entry after that duration,
// ttl <= 0 means the entry never expires.
type Store interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// IO/remote failures return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// MultiGet returns one slot per requested key, in order. A missing key
	// yields a nil slot, never an error.
	MultiGet(ctx context.Context, keys []string) ([][]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// MultiSet stores every item with the same TTL. Items are written
	// individually; a failure may leave earlier items stored.
	MultiSet(ctx context.Context, items []Item, ttl time.Duration) error

	// Add stores value only if key is absent. Returns false (and no error)
	// when the key already holds a live value. Must be atomic.
	Add(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Delete removes key and reports how many entries were removed (0 or 1).
	Delete(ctx context.Context, key string) (int, error)

	// Exists reports whether key holds a live value.
	Exists(ctx context.Context, key string) (bool, error)

	// Increment atomically adds delta to the integer stored at key and
	// returns the new value. A missing key is created holding delta.
	// A present non-numeric value yields ErrNotNumeric.
	Increment(ctx context.Context, key string, delta int64) (int64, error)

	// Expire re-arms the TTL of an existing key without touching its value.
	// Returns false when the key does not exist. ttl <= 0 removes any
	// pending expiry.
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Clear removes every key starting with prefix; an empty prefix clears
	// the whole store.
	Clear(ctx context.Context, prefix string) error

	// CompareAndDelete removes key only if its current value equals
	// expected, reporting whether it was removed. Must be atomic (or the
	// driver must document otherwise); the distributed lock's safe-release
	// guarantee depends on it.
	CompareAndDelete(ctx context.Context, key string, expected []byte) (bool, error)

	// Raw executes a driver-specific command, bypassing the façade's key
	// building and serialization. Unknown commands return ErrNotSupported.
	Raw(ctx context.Context, command string, args ...any) (any, error)

	// Close releases resources.
	Close(ctx context.Context) error
}

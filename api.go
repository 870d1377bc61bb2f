package polycache

import (
	"context"
	"time"

	"github.com/polycache/polycache/backend"
	"github.com/polycache/polycache/serializer"
)

// DefaultTimeout bounds every command unless Options.Timeout or a per-call
// WithTimeout says otherwise.
const DefaultTimeout = 5 * time.Second

// Item is a key/value pair for MultiSet.
type Item[V any] struct {
	Key   string
	Value V
}

// Cache is the backend-agnostic command surface. V is the caller's value
// type; serialization is handled by a pluggable Serializer[V].
//
// Read commands report a miss as (zero, false, nil) - an absent key is never
// an error. Every command accepts per-call overrides via CallOption.
type Cache[V any] interface {
	// Add stores value only if key is absent, reporting whether it stored.
	// It never overwrites an existing key.
	Add(ctx context.Context, key string, value V, opts ...CallOption) (bool, error)

	// Get returns the value stored at key, or (zero, false, nil) on miss.
	Get(ctx context.Context, key string, opts ...CallOption) (V, bool, error)

	// Set stores value at key, replacing any previous value.
	Set(ctx context.Context, key string, value V, opts ...CallOption) error

	// MultiGet returns one value and one found flag per requested key, in
	// the same positions as the input keys.
	MultiGet(ctx context.Context, cacheKeys []string, opts ...CallOption) ([]V, []bool, error)

	// MultiSet stores every item, each serialized and keyed exactly like a
	// singular Set. Not transactional: a failure may leave earlier items
	// stored.
	MultiSet(ctx context.Context, items []Item[V], opts ...CallOption) error

	// Delete removes key, reporting how many entries were removed.
	Delete(ctx context.Context, key string, opts ...CallOption) (int, error)

	// Exists reports whether key holds a live value.
	Exists(ctx context.Context, key string, opts ...CallOption) (bool, error)

	// Increment atomically adds delta to the integer at key and returns the
	// new value; a missing key starts at delta. The value bypasses the
	// serializer: it lives in the backend's native decimal representation.
	Increment(ctx context.Context, key string, delta int64, opts ...CallOption) (int64, error)

	// Expire re-arms key's TTL without touching its value. False when the
	// key does not exist.
	Expire(ctx context.Context, key string, ttl time.Duration, opts ...CallOption) (bool, error)

	// Clear removes every key under the effective namespace; with an empty
	// namespace it clears the whole store.
	Clear(ctx context.Context, opts ...CallOption) error

	// Raw forwards a command to the backend driver, bypassing key building
	// and serialization. Using it ties the caller to one driver.
	Raw(ctx context.Context, command string, args ...any) (any, error)

	// Close releases the backend's resources.
	Close(ctx context.Context) error
}

// Options tune a cache instance. Only Store is required.
type Options[V any] struct {
	// Required: the storage driver.
	Store backend.Store

	Namespace  string                    // key prefix; "" means no prefix
	Serializer serializer.Serializer[V]  // nil => serializer.JSON[V]
	KeyFunc    KeyFunc                   // nil => DefaultKeyFunc
	Logger     Logger                    // nil => NopLogger
	Hooks      []Hook                    // invoked in slice order
	DefaultTTL time.Duration             // applied when a write has no WithTTL; <= 0 => never expire
	Timeout    time.Duration             // per-command deadline; 0 => DefaultTimeout, < 0 => no deadline
	Disabled   bool                      // a disabled cache no-ops every command
}

// New builds a Cache from opts.
func New[V any](opts Options[V]) (Cache[V], error) {
	return newCache[V](opts)
}

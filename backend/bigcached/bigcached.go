// Package bigcached adapts allegro/bigcache to backend.Store.
//
// BigCache trades per-entry control for GC-free storage of millions of
// entries: eviction is a single cache-wide lifetime, so per-key TTLs, Add,
// Increment, Expire and CompareAndDelete are not available. Use it as the
// near side of a layered store or behind caches that never need atomics.
package bigcached

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/allegro/bigcache/v3"

	"github.com/polycache/polycache/backend"
)

// Store wraps a bigcache instance.
type Store struct {
	bc *bigcache.BigCache
}

// New wraps an existing instance.
func New(bc *bigcache.BigCache) *Store {
	return &Store{bc: bc}
}

// NewWithLifetime builds a cache whose entries all live for the given
// duration.
func NewWithLifetime(ctx context.Context, lifetime time.Duration) (*Store, error) {
	bc, err := bigcache.New(ctx, bigcache.DefaultConfig(lifetime))
	if err != nil {
		return nil, err
	}
	return &Store{bc: bc}, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := s.bc.Get(key)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (s *Store) MultiGet(ctx context.Context, keys []string) ([][]byte, error) {
	out := make([][]byte, len(keys))
	for i, key := range keys {
		v, ok, err := s.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			out[i] = v
		}
	}
	return out, nil
}

// Set stores value under the cache-wide lifetime; ttl is ignored.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.bc.Set(key, value)
}

func (s *Store) MultiSet(ctx context.Context, items []backend.Item, ttl time.Duration) error {
	for _, it := range items {
		if err := s.bc.Set(it.Key, it.Value); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Add(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	return false, backend.ErrNotSupported
}

func (s *Store) Delete(ctx context.Context, key string) (int, error) {
	err := s.bc.Delete(key)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return 1, nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := s.Get(ctx, key)
	return ok, err
}

func (s *Store) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	return 0, backend.ErrNotSupported
}

func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return false, backend.ErrNotSupported
}

// Clear resets the whole cache for an empty prefix and walks the iterator
// otherwise.
func (s *Store) Clear(ctx context.Context, prefix string) error {
	if prefix == "" {
		return s.bc.Reset()
	}
	it := s.bc.Iterator()
	var victims []string
	for it.SetNext() {
		info, err := it.Value()
		if err != nil {
			return err
		}
		if strings.HasPrefix(info.Key(), prefix) {
			victims = append(victims, info.Key())
		}
	}
	for _, key := range victims {
		if err := s.bc.Delete(key); err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
			return err
		}
	}
	return nil
}

func (s *Store) CompareAndDelete(ctx context.Context, key string, expected []byte) (bool, error) {
	return false, backend.ErrNotSupported
}

// Raw understands "len" and "capacity".
func (s *Store) Raw(ctx context.Context, command string, args ...any) (any, error) {
	switch command {
	case "len":
		return s.bc.Len(), nil
	case "capacity":
		return s.bc.Capacity(), nil
	default:
		return nil, backend.ErrNotSupported
	}
}

func (s *Store) Close(ctx context.Context) error {
	return s.bc.Close()
}

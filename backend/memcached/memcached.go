// Package memcached adapts gomemcache to backend.Store.
//
// Memcached's protocol narrows a few operations: TTLs are whole seconds,
// Clear cannot be scoped to a prefix, and CompareAndDelete is a read-compare-
// delete sequence rather than a single server-side step.
package memcached

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/polycache/polycache/backend"
)

// Store wraps a memcache client.
type Store struct {
	mc *memcache.Client
}

// New wraps an existing client.
func New(mc *memcache.Client) *Store {
	return &Store{mc: mc}
}

// Dial builds a client for the given server addresses.
func Dial(servers ...string) *Store {
	return &Store{mc: memcache.New(servers...)}
}

func seconds(ttl time.Duration) int32 {
	if ttl <= 0 {
		return 0
	}
	s := int32(ttl / time.Second)
	if s == 0 {
		s = 1
	}
	return s
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	it, err := s.mc.Get(key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return it.Value, true, nil
}

func (s *Store) MultiGet(ctx context.Context, keys []string) ([][]byte, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	found, err := s.mc.GetMulti(keys)
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(keys))
	for i, key := range keys {
		if it, ok := found[key]; ok {
			out[i] = it.Value
		}
	}
	return out, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.mc.Set(&memcache.Item{Key: key, Value: value, Expiration: seconds(ttl)})
}

func (s *Store) MultiSet(ctx context.Context, items []backend.Item, ttl time.Duration) error {
	exp := seconds(ttl)
	for _, it := range items {
		if err := s.mc.Set(&memcache.Item{Key: it.Key, Value: it.Value, Expiration: exp}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Add(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	err := s.mc.Add(&memcache.Item{Key: key, Value: value, Expiration: seconds(ttl)})
	if errors.Is(err, memcache.ErrNotStored) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) Delete(ctx context.Context, key string) (int, error) {
	err := s.mc.Delete(key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return 1, nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.mc.Get(key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Increment creates the key with value delta on a miss. Memcached's own
// increment is unsigned, so negative deltas go through Decrement and a
// missing key for a negative delta is stored as the literal delta.
func (s *Store) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	var (
		n   uint64
		err error
	)
	if delta >= 0 {
		n, err = s.mc.Increment(key, uint64(delta))
	} else {
		n, err = s.mc.Decrement(key, uint64(-delta))
	}
	if errors.Is(err, memcache.ErrCacheMiss) {
		addErr := s.mc.Add(&memcache.Item{Key: key, Value: []byte(strconv.FormatInt(delta, 10))})
		if errors.Is(addErr, memcache.ErrNotStored) {
			// lost the race to a concurrent create; retry once
			return s.Increment(ctx, key, delta)
		}
		if addErr != nil {
			return 0, addErr
		}
		return delta, nil
	}
	if err != nil {
		if errors.Is(err, memcache.ErrMalformedKey) {
			return 0, err
		}
		// the server reports non-numeric values as a client error
		return 0, backend.ErrNotNumeric
	}
	return int64(n), nil
}

func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	err := s.mc.Touch(key, seconds(ttl))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Clear flushes the whole server when prefix is empty; memcached has no way
// to enumerate keys, so a scoped clear is not supported.
func (s *Store) Clear(ctx context.Context, prefix string) error {
	if prefix != "" {
		return backend.ErrNotSupported
	}
	return s.mc.FlushAll()
}

// CompareAndDelete reads, compares and deletes in three steps. A writer can
// slip between the compare and the delete; lock holders tolerate that window
// because a stale delete only shortens someone else's lease.
func (s *Store) CompareAndDelete(ctx context.Context, key string, expected []byte) (bool, error) {
	it, err := s.mc.Get(key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if string(it.Value) != string(expected) {
		return false, nil
	}
	if err := s.mc.Delete(key); err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
		return false, err
	}
	return true, nil
}

func (s *Store) Raw(ctx context.Context, command string, args ...any) (any, error) {
	return nil, backend.ErrNotSupported
}

// Close is a no-op; gomemcache clients hold no persistent resources that
// need teardown.
func (s *Store) Close(ctx context.Context) error { return nil }

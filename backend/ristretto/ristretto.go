// Package ristretto adapts dgraph-io/ristretto to backend.Store.
//
// Ristretto is an admission-based cache: writes may be dropped under
// pressure, and there is no conditional write or key enumeration. Add,
// Increment, Expire, CompareAndDelete and prefix-scoped Clear return
// backend.ErrNotSupported; use it where best-effort storage is acceptable,
// typically as the near side of a layered store.
package ristretto

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/polycache/polycache/backend"
)

// Store wraps a ristretto cache holding []byte values.
type Store struct {
	rc *ristretto.Cache
}

// New wraps an existing cache. Values stored through other paths must be
// []byte or reads will miss.
func New(rc *ristretto.Cache) *Store {
	return &Store{rc: rc}
}

// NewWithCapacity builds a cache sized for roughly maxEntries entries of
// homogeneous cost.
func NewWithCapacity(maxEntries int64) (*Store, error) {
	rc, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Store{rc: rc}, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, ok := s.rc.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, false, nil
	}
	return b, true, nil
}

func (s *Store) MultiGet(ctx context.Context, keys []string) ([][]byte, error) {
	out := make([][]byte, len(keys))
	for i, key := range keys {
		if v, ok, _ := s.Get(ctx, key); ok {
			out[i] = v
		}
	}
	return out, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl > 0 {
		s.rc.SetWithTTL(key, value, 1, ttl)
	} else {
		s.rc.Set(key, value, 1)
	}
	return nil
}

func (s *Store) MultiSet(ctx context.Context, items []backend.Item, ttl time.Duration) error {
	for _, it := range items {
		if err := s.Set(ctx, it.Key, it.Value, ttl); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Add(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	return false, backend.ErrNotSupported
}

func (s *Store) Delete(ctx context.Context, key string) (int, error) {
	// ristretto does not report whether the key was present
	_, ok := s.rc.Get(key)
	s.rc.Del(key)
	if ok {
		return 1, nil
	}
	return 0, nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := s.rc.Get(key)
	return ok, nil
}

func (s *Store) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	return 0, backend.ErrNotSupported
}

func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return false, backend.ErrNotSupported
}

func (s *Store) Clear(ctx context.Context, prefix string) error {
	if prefix != "" {
		return backend.ErrNotSupported
	}
	s.rc.Clear()
	return nil
}

func (s *Store) CompareAndDelete(ctx context.Context, key string, expected []byte) (bool, error) {
	return false, backend.ErrNotSupported
}

// Raw understands "wait", which blocks until buffered writes are applied.
// Tests rely on it.
func (s *Store) Raw(ctx context.Context, command string, args ...any) (any, error) {
	switch command {
	case "wait":
		s.rc.Wait()
		return nil, nil
	default:
		return nil, backend.ErrNotSupported
	}
}

func (s *Store) Close(ctx context.Context) error {
	s.rc.Close()
	return nil
}

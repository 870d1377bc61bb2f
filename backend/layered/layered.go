// Package layered composes a fast near store in front of an authoritative far
// store. Reads try near first and fill it on a far hit; writes go to both;
// every conditional or atomic operation delegates to far and invalidates near
// so the layers cannot disagree for long.
package layered

import (
	"context"
	"errors"
	"time"

	"github.com/polycache/polycache/backend"
)

// Config for a Store.
type Config struct {
	// Near is the fast local layer, typically memory, ristretto or bigcache.
	Near backend.Store
	// Far is the authoritative layer, typically redis or sqlite.
	Far backend.Store
	// NearTTL bounds how long a far hit lives in the near layer. Zero reuses
	// the write's own TTL for fills and writes.
	NearTTL time.Duration
}

// Store implements backend.Store over a near/far pair.
type Store struct {
	near    backend.Store
	far     backend.Store
	nearTTL time.Duration
}

// New validates cfg and returns a Store.
func New(cfg Config) (*Store, error) {
	if cfg.Near == nil || cfg.Far == nil {
		return nil, errors.New("layered: near and far stores are required")
	}
	return &Store{near: cfg.Near, far: cfg.Far, nearTTL: cfg.NearTTL}, nil
}

func (s *Store) fillTTL(ttl time.Duration) time.Duration {
	if s.nearTTL > 0 {
		return s.nearTTL
	}
	return ttl
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if v, ok, err := s.near.Get(ctx, key); err == nil && ok {
		return v, true, nil
	}
	v, ok, err := s.far.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	// fill failures are invisible to the caller; the far layer already served
	s.near.Set(ctx, key, v, s.fillTTL(0))
	return v, true, nil
}

func (s *Store) MultiGet(ctx context.Context, keys []string) ([][]byte, error) {
	out, err := s.near.MultiGet(ctx, keys)
	if err != nil {
		out = make([][]byte, len(keys))
	}

	var missing []string
	var missingIdx []int
	for i, v := range out {
		if v == nil {
			missing = append(missing, keys[i])
			missingIdx = append(missingIdx, i)
		}
	}
	if len(missing) == 0 {
		return out, nil
	}

	farVals, err := s.far.MultiGet(ctx, missing)
	if err != nil {
		return nil, err
	}
	for j, v := range farVals {
		if v == nil {
			continue
		}
		out[missingIdx[j]] = v
		s.near.Set(ctx, missing[j], v, s.fillTTL(0))
	}
	return out, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.far.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	s.near.Set(ctx, key, value, s.fillTTL(ttl))
	return nil
}

func (s *Store) MultiSet(ctx context.Context, items []backend.Item, ttl time.Duration) error {
	if err := s.far.MultiSet(ctx, items, ttl); err != nil {
		return err
	}
	s.near.MultiSet(ctx, items, s.fillTTL(ttl))
	return nil
}

func (s *Store) Add(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	ok, err := s.far.Add(ctx, key, value, ttl)
	if err != nil || !ok {
		return false, err
	}
	s.near.Set(ctx, key, value, s.fillTTL(ttl))
	return true, nil
}

func (s *Store) Delete(ctx context.Context, key string) (int, error) {
	s.near.Delete(ctx, key)
	return s.far.Delete(ctx, key)
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	if ok, err := s.near.Exists(ctx, key); err == nil && ok {
		return true, nil
	}
	return s.far.Exists(ctx, key)
}

func (s *Store) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	// the near copy is stale the moment far moves
	s.near.Delete(ctx, key)
	return s.far.Increment(ctx, key, delta)
}

func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	s.near.Delete(ctx, key)
	return s.far.Expire(ctx, key, ttl)
}

func (s *Store) Clear(ctx context.Context, prefix string) error {
	if err := s.near.Clear(ctx, prefix); err != nil && !errors.Is(err, backend.ErrNotSupported) {
		return err
	}
	return s.far.Clear(ctx, prefix)
}

func (s *Store) CompareAndDelete(ctx context.Context, key string, expected []byte) (bool, error) {
	s.near.Delete(ctx, key)
	return s.far.CompareAndDelete(ctx, key, expected)
}

func (s *Store) Raw(ctx context.Context, command string, args ...any) (any, error) {
	return s.far.Raw(ctx, command, args...)
}

func (s *Store) Close(ctx context.Context) error {
	nerr := s.near.Close(ctx)
	ferr := s.far.Close(ctx)
	if ferr != nil {
		return ferr
	}
	return nerr
}

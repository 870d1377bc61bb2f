// Package memory provides an in-process backend.Store with per-key expiry
// timers and an optional LRU entry cap.
package memory

import (
	"container/list"
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/polycache/polycache/backend"
)

type entry struct {
	key     string
	value   []byte
	version uint64
	timer   *time.Timer
	lruElem *list.Element
}

// Config tunes a Store. The zero value is a valid unbounded store.
type Config struct {
	// MaxEntries caps the number of live entries; the least recently used
	// entry is evicted to make room. Zero means unbounded.
	MaxEntries int
}

// Store is a mutex-serialized in-memory byte store. Expiry is driven by one
// time.AfterFunc per live TTL; each write stamps the entry with a fresh
// store-wide version and a firing timer discards itself when its captured
// version no longer matches, so neither a rescheduled key nor a deleted and
// recreated one is ever removed by a stale timer.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	lru     *list.List
	max     int
	ver     uint64
	closed  bool
}

// New returns an empty store.
func New(cfg Config) *Store {
	return &Store{
		entries: make(map[string]*entry),
		lru:     list.New(),
		max:     cfg.MaxEntries,
	}
}

// schedule stamps e with a fresh version and arms its expiry timer. Caller
// holds mu.
func (s *Store) schedule(e *entry, ttl time.Duration) {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	s.ver++
	e.version = s.ver
	if ttl <= 0 {
		return
	}
	version := e.version
	key := e.key
	e.timer = time.AfterFunc(ttl, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		cur, ok := s.entries[key]
		if !ok || cur.version != version {
			return
		}
		s.remove(cur)
	})
}

// remove drops e from the map and LRU list and stops its timer. Caller holds mu.
func (s *Store) remove(e *entry) {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	s.lru.Remove(e.lruElem)
	delete(s.entries, e.key)
}

func (s *Store) touch(e *entry) {
	s.lru.MoveToFront(e.lruElem)
}

// put inserts or replaces key, evicting the LRU tail when over cap. Caller
// holds mu.
func (s *Store) put(key string, value []byte, ttl time.Duration) {
	if e, ok := s.entries[key]; ok {
		e.value = value
		s.touch(e)
		s.schedule(e, ttl)
		return
	}
	if s.max > 0 && len(s.entries) >= s.max {
		if tail := s.lru.Back(); tail != nil {
			s.remove(tail.Value.(*entry))
		}
	}
	e := &entry{key: key, value: value}
	e.lruElem = s.lru.PushFront(e)
	s.entries[key] = e
	s.schedule(e, ttl)
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	s.touch(e)
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true, nil
}

func (s *Store) MultiGet(ctx context.Context, keys []string) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(keys))
	for i, key := range keys {
		e, ok := s.entries[key]
		if !ok {
			continue
		}
		s.touch(e)
		v := make([]byte, len(e.value))
		copy(v, e.value)
		out[i] = v
	}
	return out, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(key, cloneBytes(value), ttl)
	return nil
}

func (s *Store) MultiSet(ctx context.Context, items []backend.Item, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range items {
		s.put(it.Key, cloneBytes(it.Value), ttl)
	}
	return nil
}

func (s *Store) Add(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; ok {
		return false, nil
	}
	s.put(key, cloneBytes(value), ttl)
	return true, nil
}

func (s *Store) Delete(ctx context.Context, key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return 0, nil
	}
	s.remove(e)
	return 1, nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[key]
	return ok, nil
}

// Increment adds delta to the decimal integer stored at key, creating the key
// with value delta when absent. The new key never expires until re-set or
// explicitly expired.
func (s *Store) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		s.put(key, []byte(strconv.FormatInt(delta, 10)), 0)
		return delta, nil
	}
	n, err := strconv.ParseInt(string(e.value), 10, 64)
	if err != nil {
		return 0, backend.ErrNotNumeric
	}
	n += delta
	e.value = []byte(strconv.FormatInt(n, 10))
	s.touch(e)
	return n, nil
}

// Expire rearms the key's timer with a fresh ttl; ttl <= 0 pins the key.
func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return false, nil
	}
	s.schedule(e, ttl)
	return true, nil
}

func (s *Store) Clear(ctx context.Context, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if prefix == "" || strings.HasPrefix(e.key, prefix) {
			s.remove(e)
		}
	}
	return nil
}

func (s *Store) CompareAndDelete(ctx context.Context, key string, expected []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || string(e.value) != string(expected) {
		return false, nil
	}
	s.remove(e)
	return true, nil
}

// Raw understands "get" (key) -> []byte, "keys" () -> []string and
// "len" () -> int.
func (s *Store) Raw(ctx context.Context, command string, args ...any) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch command {
	case "get":
		if len(args) != 1 {
			return nil, backend.ErrNotSupported
		}
		key, ok := args[0].(string)
		if !ok {
			return nil, backend.ErrNotSupported
		}
		e, found := s.entries[key]
		if !found {
			return nil, nil
		}
		return cloneBytes(e.value), nil
	case "keys":
		out := make([]string, 0, len(s.entries))
		for k := range s.entries {
			out = append(out, k)
		}
		return out, nil
	case "len":
		return len(s.entries), nil
	default:
		return nil, backend.ErrNotSupported
	}
}

// Close stops every pending expiry timer and drops all entries.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for _, e := range s.entries {
		if e.timer != nil {
			e.timer.Stop()
		}
	}
	s.entries = make(map[string]*entry)
	s.lru.Init()
	return nil
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

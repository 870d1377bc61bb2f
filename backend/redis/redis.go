// Package redis adapts a go-redis client to backend.Store.
package redis

import (
	"context"
	"errors"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/polycache/polycache/backend"
)

// compare-and-delete must read and delete atomically server-side
var cadScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
else
    return 0
end`)

// Config for a Store.
type Config struct {
	// Client is the connection to use; single-node, cluster, and sentinel
	// clients all satisfy UniversalClient. Required.
	Client goredis.UniversalClient
	// CloseClient makes Store.Close close the client too. Leave false when
	// the client is shared.
	CloseClient bool
}

// Store is a Redis-backed byte store. TTL <= 0 stores without expiry.
type Store struct {
	rdb       goredis.UniversalClient
	ownClient bool
}

// New validates cfg and returns a Store.
func New(cfg Config) (*Store, error) {
	if cfg.Client == nil {
		return nil, errors.New("redis: client is required")
	}
	return &Store{rdb: cfg.Client, ownClient: cfg.CloseClient}, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (s *Store) MultiGet(ctx context.Context, keys []string) ([][]byte, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	raw, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(keys))
	for i, v := range raw {
		if v == nil {
			continue
		}
		// MGET yields strings for present members
		if str, ok := v.(string); ok {
			out[i] = []byte(str)
		}
	}
	return out, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return s.rdb.Set(ctx, key, value, ttl).Err()
}

func (s *Store) MultiSet(ctx context.Context, items []backend.Item, ttl time.Duration) error {
	if len(items) == 0 {
		return nil
	}
	if ttl < 0 {
		ttl = 0
	}
	pipe := s.rdb.Pipeline()
	for _, it := range items {
		pipe.Set(ctx, it.Key, it.Value, ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Store) Add(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if ttl < 0 {
		ttl = 0
	}
	return s.rdb.SetNX(ctx, key, value, ttl).Result()
}

func (s *Store) Delete(ctx context.Context, key string) (int, error) {
	n, err := s.rdb.Del(ctx, key).Result()
	return int(n), err
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Exists(ctx, key).Result()
	return n > 0, err
}

// INCR on a non-numeric value has no dedicated error type in go-redis; the
// server reply "ERR value is not an integer or out of range" is stable across
// versions (redis replies are not localized).
func (s *Store) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	n, err := s.rdb.IncrBy(ctx, key, delta).Result()
	if err != nil && strings.HasPrefix(err.Error(), "ERR value is not an integer") {
		return 0, backend.ErrNotNumeric
	}
	return n, err
}

func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return s.rdb.Persist(ctx, key).Result()
	}
	return s.rdb.Expire(ctx, key, ttl).Result()
}

// Clear deletes every key matching prefix via SCAN; an empty prefix flushes
// the whole database.
func (s *Store) Clear(ctx context.Context, prefix string) error {
	if prefix == "" {
		return s.rdb.FlushDB(ctx).Err()
	}
	var cursor uint64
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, prefix+"*", 500).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (s *Store) CompareAndDelete(ctx context.Context, key string, expected []byte) (bool, error) {
	n, err := cadScript.Run(ctx, s.rdb, []string{key}, expected).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Raw forwards command and args straight to the server.
func (s *Store) Raw(ctx context.Context, command string, args ...any) (any, error) {
	full := make([]any, 0, len(args)+1)
	full = append(full, command)
	full = append(full, args...)
	return s.rdb.Do(ctx, full...).Result()
}

func (s *Store) Close(ctx context.Context) error {
	if !s.ownClient {
		return nil
	}
	return s.rdb.Close()
}

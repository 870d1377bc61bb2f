package polycache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/polycache/polycache/backend"
	"github.com/polycache/polycache/internal/keys"
	"github.com/polycache/polycache/serializer"
)

type cache[V any] struct {
	ns         string
	store      backend.Store
	ser        serializer.Serializer[V]
	keyFn      KeyFunc
	log        Logger
	hooks      []Hook
	defaultTTL time.Duration
	timeout    time.Duration
	enabled    bool

	// dedupes concurrent in-process computes for the same key
	sf singleflight.Group

	// in-process lock contenders parked per built lock key
	waitMu  sync.Mutex
	waiters map[string]*lockWaiter
}

func newCache[V any](opts Options[V]) (*cache[V], error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("polycache: store is required")
	}

	c := &cache[V]{
		ns:    opts.Namespace,
		store: opts.Store,
		// snapshot: registrations after New are not observed
		hooks:      append([]Hook(nil), opts.Hooks...),
		defaultTTL: opts.DefaultTTL,
		enabled:    !opts.Disabled,
		waiters:    make(map[string]*lockWaiter),
	}

	c.ser = opts.Serializer
	if c.ser == nil {
		c.ser = serializer.JSON[V]{}
	}
	c.keyFn = opts.KeyFunc
	if c.keyFn == nil {
		c.keyFn = DefaultKeyFunc
	}
	c.log = opts.Logger
	if c.log == nil {
		c.log = NopLogger{}
	}

	switch {
	case opts.Timeout < 0:
		c.timeout = 0
	case opts.Timeout == 0:
		c.timeout = DefaultTimeout
	default:
		c.timeout = opts.Timeout
	}
	return c, nil
}

func (c *cache[V]) resolve(opts []CallOption) callConfig {
	cfg := callConfig{
		namespace: c.ns,
		ttl:       c.defaultTTL,
		timeout:   c.timeout,
		keyFn:     c.keyFn,
	}
	for _, o := range opts {
		o(&cfg)
	}
	return cfg
}

func (cfg *callConfig) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if cfg.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, cfg.timeout)
}

// translate maps a deadline expiry to ErrTimeout so callers can tell it apart
// from other backend failures.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(ErrTimeout, err)
	}
	return err
}

func (c *cache[V]) Add(ctx context.Context, key string, value V, opts ...CallOption) (bool, error) {
	if !c.enabled {
		return true, nil
	}
	cfg := c.resolve(opts)
	k := cfg.buildKey(key)
	ev := &Event{Command: CmdAdd, Keys: []string{k}, TTL: cfg.ttl}
	start := time.Now()
	c.firePre(ctx, ev)

	var stored bool
	raw, err := c.ser.Dump(value)
	if err != nil {
		err = errors.Join(ErrSerialize, err)
	} else {
		octx, cancel := cfg.opCtx(ctx)
		stored, err = c.store.Add(octx, k, raw, cfg.ttl)
		cancel()
		err = translate(err)
	}

	ev.Took = time.Since(start)
	ev.Err = err
	c.firePost(ctx, ev)
	c.log.Debug("ADD", Fields{"key": k, "stored": stored, "took": ev.Took, "err": err})
	if err != nil {
		return false, err
	}
	return stored, nil
}

func (c *cache[V]) Get(ctx context.Context, key string, opts ...CallOption) (V, bool, error) {
	var zero V
	if !c.enabled {
		return zero, false, nil
	}
	cfg := c.resolve(opts)
	k := cfg.buildKey(key)
	ev := &Event{Command: CmdGet, Keys: []string{k}}
	start := time.Now()
	c.firePre(ctx, ev)

	octx, cancel := cfg.opCtx(ctx)
	raw, ok, err := c.store.Get(octx, k)
	cancel()
	err = translate(err)

	var v V
	if err == nil && ok {
		if v, err = c.ser.Load(raw); err != nil {
			err = errors.Join(ErrDeserialize, err)
		}
	}

	if err == nil && ok {
		ev.Hits = 1
	}
	ev.Took = time.Since(start)
	ev.Err = err
	c.firePost(ctx, ev)
	c.log.Debug("GET", Fields{"key": k, "hit": ev.Hits == 1, "took": ev.Took})
	if err != nil {
		return zero, false, err
	}
	return v, ok, nil
}

func (c *cache[V]) Set(ctx context.Context, key string, value V, opts ...CallOption) error {
	if !c.enabled {
		return nil
	}
	cfg := c.resolve(opts)
	k := cfg.buildKey(key)
	ev := &Event{Command: CmdSet, Keys: []string{k}, TTL: cfg.ttl}
	start := time.Now()
	c.firePre(ctx, ev)

	raw, err := c.ser.Dump(value)
	if err != nil {
		err = errors.Join(ErrSerialize, err)
	} else {
		octx, cancel := cfg.opCtx(ctx)
		err = translate(c.store.Set(octx, k, raw, cfg.ttl))
		cancel()
	}

	ev.Took = time.Since(start)
	ev.Err = err
	c.firePost(ctx, ev)
	c.log.Debug("SET", Fields{"key": k, "ok": err == nil, "took": ev.Took})
	return err
}

func (c *cache[V]) MultiGet(ctx context.Context, cacheKeys []string, opts ...CallOption) ([]V, []bool, error) {
	found := make([]bool, len(cacheKeys))
	values := make([]V, len(cacheKeys))
	if !c.enabled || len(cacheKeys) == 0 {
		return values, found, nil
	}
	cfg := c.resolve(opts)
	ks := make([]string, len(cacheKeys))
	for i, key := range cacheKeys {
		ks[i] = cfg.buildKey(key)
	}
	ev := &Event{Command: CmdMultiGet, Keys: ks}
	start := time.Now()
	c.firePre(ctx, ev)

	octx, cancel := cfg.opCtx(ctx)
	raws, err := c.store.MultiGet(octx, ks)
	cancel()
	err = translate(err)

	if err == nil {
		for i, raw := range raws {
			if raw == nil {
				continue
			}
			v, lerr := c.ser.Load(raw)
			if lerr != nil {
				err = errors.Join(ErrDeserialize, lerr)
				break
			}
			values[i] = v
			found[i] = true
			ev.Hits++
		}
	}

	ev.Took = time.Since(start)
	ev.Err = err
	c.firePost(ctx, ev)
	c.log.Debug("MULTI_GET", Fields{"keys": len(ks), "hits": ev.Hits, "took": ev.Took})
	if err != nil {
		return make([]V, len(cacheKeys)), make([]bool, len(cacheKeys)), err
	}
	return values, found, nil
}

func (c *cache[V]) MultiSet(ctx context.Context, items []Item[V], opts ...CallOption) error {
	if !c.enabled || len(items) == 0 {
		return nil
	}
	cfg := c.resolve(opts)
	ks := make([]string, len(items))
	raws := make([]backend.Item, len(items))
	var err error
	for i, it := range items {
		ks[i] = cfg.buildKey(it.Key)
		var raw []byte
		if raw, err = c.ser.Dump(it.Value); err != nil {
			// nothing reaches the backend on a serialization failure
			err = errors.Join(ErrSerialize, err)
			break
		}
		raws[i] = backend.Item{Key: ks[i], Value: raw}
	}

	ev := &Event{Command: CmdMultiSet, Keys: ks, TTL: cfg.ttl}
	start := time.Now()
	c.firePre(ctx, ev)

	if err == nil {
		octx, cancel := cfg.opCtx(ctx)
		err = translate(c.store.MultiSet(octx, raws, cfg.ttl))
		cancel()
	}

	ev.Took = time.Since(start)
	ev.Err = err
	c.firePost(ctx, ev)
	c.log.Debug("MULTI_SET", Fields{"keys": len(ks), "ok": err == nil, "took": ev.Took})
	return err
}

func (c *cache[V]) Delete(ctx context.Context, key string, opts ...CallOption) (int, error) {
	if !c.enabled {
		return 0, nil
	}
	cfg := c.resolve(opts)
	k := cfg.buildKey(key)
	ev := &Event{Command: CmdDelete, Keys: []string{k}}
	start := time.Now()
	c.firePre(ctx, ev)

	octx, cancel := cfg.opCtx(ctx)
	n, err := c.store.Delete(octx, k)
	cancel()
	err = translate(err)

	ev.Took = time.Since(start)
	ev.Err = err
	c.firePost(ctx, ev)
	c.log.Debug("DELETE", Fields{"key": k, "removed": n, "took": ev.Took})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (c *cache[V]) Exists(ctx context.Context, key string, opts ...CallOption) (bool, error) {
	if !c.enabled {
		return false, nil
	}
	cfg := c.resolve(opts)
	k := cfg.buildKey(key)
	ev := &Event{Command: CmdExists, Keys: []string{k}}
	start := time.Now()
	c.firePre(ctx, ev)

	octx, cancel := cfg.opCtx(ctx)
	ok, err := c.store.Exists(octx, k)
	cancel()
	err = translate(err)

	if err == nil && ok {
		ev.Hits = 1
	}
	ev.Took = time.Since(start)
	ev.Err = err
	c.firePost(ctx, ev)
	c.log.Debug("EXISTS", Fields{"key": k, "exists": ok, "took": ev.Took})
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (c *cache[V]) Increment(ctx context.Context, key string, delta int64, opts ...CallOption) (int64, error) {
	if !c.enabled {
		return delta, nil
	}
	cfg := c.resolve(opts)
	k := cfg.buildKey(key)
	ev := &Event{Command: CmdIncrement, Keys: []string{k}, Delta: delta}
	start := time.Now()
	c.firePre(ctx, ev)

	octx, cancel := cfg.opCtx(ctx)
	n, err := c.store.Increment(octx, k, delta)
	cancel()
	err = translate(err)

	ev.Took = time.Since(start)
	ev.Err = err
	c.firePost(ctx, ev)
	c.log.Debug("INCREMENT", Fields{"key": k, "value": n, "took": ev.Took, "err": err})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (c *cache[V]) Expire(ctx context.Context, key string, ttl time.Duration, opts ...CallOption) (bool, error) {
	if !c.enabled {
		return false, nil
	}
	cfg := c.resolve(opts)
	k := cfg.buildKey(key)
	ev := &Event{Command: CmdExpire, Keys: []string{k}, TTL: ttl}
	start := time.Now()
	c.firePre(ctx, ev)

	octx, cancel := cfg.opCtx(ctx)
	ok, err := c.store.Expire(octx, k, ttl)
	cancel()
	err = translate(err)

	ev.Took = time.Since(start)
	ev.Err = err
	c.firePost(ctx, ev)
	c.log.Debug("EXPIRE", Fields{"key": k, "ok": ok, "ttl": ttl, "took": ev.Took})
	if err != nil {
		return false, err
	}
	return ok, nil
}

// Clear assumes the namespace-prefix key layout of DefaultKeyFunc. A custom
// KeyFunc that abandons that layout makes namespace-scoped Clear undefined.
func (c *cache[V]) Clear(ctx context.Context, opts ...CallOption) error {
	if !c.enabled {
		return nil
	}
	cfg := c.resolve(opts)
	prefix := keys.Prefix(cfg.namespace)
	ev := &Event{Command: CmdClear}
	start := time.Now()
	c.firePre(ctx, ev)

	octx, cancel := cfg.opCtx(ctx)
	err := translate(c.store.Clear(octx, prefix))
	cancel()

	ev.Took = time.Since(start)
	ev.Err = err
	c.firePost(ctx, ev)
	c.log.Debug("CLEAR", Fields{"namespace": cfg.namespace, "ok": err == nil, "took": ev.Took})
	return err
}

func (c *cache[V]) Raw(ctx context.Context, command string, args ...any) (any, error) {
	if !c.enabled {
		return nil, nil
	}
	cfg := c.resolve(nil)
	ev := &Event{Command: CmdRaw}
	start := time.Now()
	c.firePre(ctx, ev)

	octx, cancel := cfg.opCtx(ctx)
	res, err := c.store.Raw(octx, command, args...)
	cancel()
	err = translate(err)

	ev.Took = time.Since(start)
	ev.Err = err
	c.firePost(ctx, ev)
	c.log.Debug("RAW", Fields{"command": command, "took": ev.Took, "err": err})
	return res, err
}

func (c *cache[V]) Close(ctx context.Context) error {
	return c.store.Close(ctx)
}

// The lock primitives store raw token bytes through the same key building and
// timeout enforcement as every other command, bypassing the serializer: a
// token is backend state, not a caller value.

func (c *cache[V]) buildKey(key string) string {
	return c.keyFn(c.ns, key)
}

func (c *cache[V]) logger() Logger { return c.log }

func (c *cache[V]) lockAdd(ctx context.Context, builtKey string, token []byte, ttl time.Duration) (bool, error) {
	cfg := c.resolve(nil)
	octx, cancel := cfg.opCtx(ctx)
	defer cancel()
	ok, err := c.store.Add(octx, builtKey, token, ttl)
	return ok, translate(err)
}

func (c *cache[V]) lockGet(ctx context.Context, builtKey string) ([]byte, bool, error) {
	cfg := c.resolve(nil)
	octx, cancel := cfg.opCtx(ctx)
	defer cancel()
	raw, ok, err := c.store.Get(octx, builtKey)
	return raw, ok, translate(err)
}

func (c *cache[V]) lockCompareAndDelete(ctx context.Context, builtKey string, token []byte) (bool, error) {
	cfg := c.resolve(nil)
	octx, cancel := cfg.opCtx(ctx)
	defer cancel()
	ok, err := c.store.CompareAndDelete(octx, builtKey, token)
	return ok, translate(err)
}

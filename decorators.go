package polycache

import (
	"context"
	"fmt"
	"time"
)

// GetOrCompute returns the cached value for key, computing and storing it on
// a miss. Concurrent in-process callers for the same key share a single
// compute. A compute error is returned as-is and nothing is stored; a cache
// write failure after a successful compute is logged and swallowed, the
// computed value still flows to the caller.
func GetOrCompute[V any](ctx context.Context, c Cache[V], key string, compute func(context.Context) (V, error), opts ...CallOption) (V, error) {
	if v, ok, err := c.Get(ctx, key, opts...); err == nil && ok {
		return v, nil
	}

	cc, _ := c.(*cache[V])
	if cc == nil {
		return computeAndSet(ctx, c, key, compute, opts)
	}
	res, err, _ := cc.sf.Do(cc.buildKey(key), func() (any, error) {
		// re-check: a concurrent caller may have filled the entry while
		// we waited on the flight group
		if v, ok, gerr := c.Get(ctx, key, opts...); gerr == nil && ok {
			return v, nil
		}
		return computeAndSet(ctx, c, key, compute, opts)
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return res.(V), nil
}

// GetOrComputeStampede is GetOrCompute guarded by a distributed lock so that
// across processes only one caller recomputes an expired entry while the rest
// wait and re-read. lease bounds the wait when the computing process dies.
// A backend failure while releasing the lock is returned to the caller even
// when the compute itself succeeded; the computed value is already cached at
// that point.
func GetOrComputeStampede[V any](ctx context.Context, c Cache[V], key string, lease time.Duration, compute func(context.Context) (V, error), opts ...CallOption) (V, error) {
	if v, ok, err := c.Get(ctx, key, opts...); err == nil && ok {
		return v, nil
	}

	lock, err := NewRedLock(c, key, lease)
	if err != nil {
		var zero V
		return zero, err
	}
	for {
		got, err := lock.Acquire(ctx)
		if err != nil {
			var zero V
			return zero, err
		}
		if got {
			break
		}
		// the holder usually filled the entry before releasing
		if v, ok, err := c.Get(ctx, key, opts...); err == nil && ok {
			return v, nil
		}
	}

	v, err := func() (V, error) {
		if v, ok, gerr := c.Get(ctx, key, opts...); gerr == nil && ok {
			return v, nil
		}
		return computeAndSet(ctx, c, key, compute, opts)
	}()

	// a failed release is a backend error, not a lost race: (false, nil)
	// from an expired lease stays silent
	if _, rerr := lock.Release(ctx); rerr != nil {
		if cc, ok := c.(*cache[V]); ok {
			cc.log.Warn("lock release failed", Fields{"key": key, "err": rerr})
		}
		if err == nil {
			var zero V
			return zero, rerr
		}
	}
	return v, err
}

// MultiGetOrCompute fills the misses of a MultiGet in one compute call. The
// compute function receives only the missing keys and returns values aligned
// with them; those are written back with MultiSet before the merged result is
// returned.
func MultiGetOrCompute[V any](ctx context.Context, c Cache[V], cacheKeys []string, compute func(ctx context.Context, missing []string) ([]V, error), opts ...CallOption) ([]V, error) {
	values, found, err := c.MultiGet(ctx, cacheKeys, opts...)
	if err != nil {
		return nil, err
	}

	var missing []string
	for i, ok := range found {
		if !ok {
			missing = append(missing, cacheKeys[i])
		}
	}
	if len(missing) == 0 {
		return values, nil
	}

	computed, err := compute(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(computed) != len(missing) {
		return nil, fmt.Errorf("polycache: compute returned %d values for %d keys", len(computed), len(missing))
	}

	items := make([]Item[V], len(missing))
	byKey := make(map[string]V, len(missing))
	for i, k := range missing {
		items[i] = Item[V]{Key: k, Value: computed[i]}
		byKey[k] = computed[i]
	}
	if serr := c.MultiSet(ctx, items, opts...); serr != nil {
		logWriteBackFailure(c, serr)
	}

	for i, ok := range found {
		if !ok {
			values[i] = byKey[cacheKeys[i]]
		}
	}
	return values, nil
}

func computeAndSet[V any](ctx context.Context, c Cache[V], key string, compute func(context.Context) (V, error), opts []CallOption) (V, error) {
	v, err := compute(ctx)
	if err != nil {
		var zero V
		return zero, err
	}
	if serr := c.Set(ctx, key, v, opts...); serr != nil {
		logWriteBackFailure(c, serr)
	}
	return v, nil
}

func logWriteBackFailure[V any](c Cache[V], err error) {
	if cc, ok := c.(*cache[V]); ok {
		cc.log.Warn("compute write-back failed", Fields{"err": err})
	}
}

package polycache

import (
	"context"
	"fmt"
	"sync"
)

// Registry maps aliases to lazily-built caches so that call sites can share
// configured instances by name instead of threading Cache values around.
type Registry[V any] struct {
	mu      sync.Mutex
	configs map[string]func() (Cache[V], error)
	caches  map[string]Cache[V]
}

// NewRegistry returns an empty registry.
func NewRegistry[V any]() *Registry[V] {
	return &Registry[V]{
		configs: map[string]func() (Cache[V], error){},
		caches:  map[string]Cache[V]{},
	}
}

// Register associates alias with a cache constructor. The constructor runs at
// most once, on the first Get for that alias. Re-registering an alias whose
// cache was already built is an error; before first use it just replaces the
// constructor.
func (r *Registry[V]) Register(alias string, build func() (Cache[V], error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, built := r.caches[alias]; built {
		return fmt.Errorf("polycache: alias %q already in use", alias)
	}
	r.configs[alias] = build
	return nil
}

// Get returns the cache for alias, building it on first use.
func (r *Registry[V]) Get(alias string) (Cache[V], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.caches[alias]; ok {
		return c, nil
	}
	build, ok := r.configs[alias]
	if !ok {
		return nil, fmt.Errorf("polycache: unknown alias %q", alias)
	}
	c, err := build()
	if err != nil {
		return nil, err
	}
	r.caches[alias] = c
	return c, nil
}

// Close closes every cache the registry has built and forgets all aliases.
// The first close error wins; the remaining caches are still closed.
func (r *Registry[V]) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var first error
	for alias, c := range r.caches {
		if err := c.Close(ctx); err != nil && first == nil {
			first = fmt.Errorf("polycache: closing %q: %w", alias, err)
		}
	}
	r.caches = map[string]Cache[V]{}
	r.configs = map[string]func() (Cache[V], error){}
	return first
}

package polycache

import (
	"time"

	"github.com/polycache/polycache/internal/keys"
)

// KeyFunc builds the backend-visible key from a namespace and a user key.
// Implementations must guarantee that distinct (namespace, key) pairs never
// collide.
type KeyFunc func(namespace, key string) string

// DefaultKeyFunc joins namespace and key with ":" and escapes the separator
// inside the user key.
func DefaultKeyFunc(namespace, key string) string {
	return keys.Build(namespace, key)
}

// callConfig is the resolved per-command configuration: instance defaults
// overridden by explicit call options.
type callConfig struct {
	namespace  string
	ttl        time.Duration
	timeout    time.Duration
	keyFn      KeyFunc
}

func (cfg *callConfig) buildKey(key string) string {
	return cfg.keyFn(cfg.namespace, key)
}

// CallOption overrides one instance default for a single command.
type CallOption func(*callConfig)

// WithTTL sets the expiration for this write. ttl <= 0 means never expire.
func WithTTL(ttl time.Duration) CallOption {
	return func(cfg *callConfig) { cfg.ttl = ttl }
}

// WithNamespace swaps the namespace for this command only.
func WithNamespace(ns string) CallOption {
	return func(cfg *callConfig) { cfg.namespace = ns }
}

// WithTimeout bounds this command with the given deadline. d <= 0 disables
// the deadline for the call.
func WithTimeout(d time.Duration) CallOption {
	return func(cfg *callConfig) { cfg.timeout = d }
}

// WithKeyFunc swaps the key builder for this command only.
func WithKeyFunc(fn KeyFunc) CallOption {
	return func(cfg *callConfig) { cfg.keyFn = fn }
}

// Package timing collects per-command latency from post hooks.
package timing

import (
	"context"
	"sync"
	"time"

	"github.com/polycache/polycache"
)

// Stats is one command's latency summary.
type Stats struct {
	Count int64
	Total time.Duration
	Min   time.Duration
	Max   time.Duration
}

// Avg returns the mean latency, zero when no samples were taken.
func (s Stats) Avg() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

// Hook records how long each command took. Pre hooks are no-ops; the cache
// stamps Event.Took before post dispatch.
type Hook struct {
	polycache.NopHook

	mu    sync.Mutex
	stats map[polycache.Command]*Stats
}

var _ polycache.Hook = (*Hook)(nil)

func New() *Hook {
	return &Hook{stats: make(map[polycache.Command]*Stats)}
}

func (h *Hook) record(ev *polycache.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.stats[ev.Command]
	if !ok {
		s = &Stats{Min: ev.Took}
		h.stats[ev.Command] = s
	}
	s.Count++
	s.Total += ev.Took
	if ev.Took < s.Min {
		s.Min = ev.Took
	}
	if ev.Took > s.Max {
		s.Max = ev.Took
	}
	return nil
}

// Snapshot copies the accumulated stats for all commands seen so far.
func (h *Hook) Snapshot() map[polycache.Command]Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[polycache.Command]Stats, len(h.stats))
	for cmd, s := range h.stats {
		out[cmd] = *s
	}
	return out
}

func (h *Hook) PostAdd(_ context.Context, ev *polycache.Event) error       { return h.record(ev) }
func (h *Hook) PostGet(_ context.Context, ev *polycache.Event) error       { return h.record(ev) }
func (h *Hook) PostSet(_ context.Context, ev *polycache.Event) error       { return h.record(ev) }
func (h *Hook) PostMultiGet(_ context.Context, ev *polycache.Event) error  { return h.record(ev) }
func (h *Hook) PostMultiSet(_ context.Context, ev *polycache.Event) error  { return h.record(ev) }
func (h *Hook) PostDelete(_ context.Context, ev *polycache.Event) error    { return h.record(ev) }
func (h *Hook) PostExists(_ context.Context, ev *polycache.Event) error    { return h.record(ev) }
func (h *Hook) PostIncrement(_ context.Context, ev *polycache.Event) error { return h.record(ev) }
func (h *Hook) PostExpire(_ context.Context, ev *polycache.Event) error    { return h.record(ev) }
func (h *Hook) PostClear(_ context.Context, ev *polycache.Event) error     { return h.record(ev) }
func (h *Hook) PostRaw(_ context.Context, ev *polycache.Event) error       { return h.record(ev) }

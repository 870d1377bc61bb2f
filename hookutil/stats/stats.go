// Package stats tracks the hit/miss ratio of read commands.
package stats

import (
	"context"
	"sync/atomic"

	"github.com/polycache/polycache"
)

// Hook counts requested keys versus hits across Get and MultiGet.
type Hook struct {
	polycache.NopHook

	requested atomic.Int64
	hits      atomic.Int64
}

var _ polycache.Hook = (*Hook)(nil)

func New() *Hook { return &Hook{} }

func (h *Hook) PostGet(_ context.Context, ev *polycache.Event) error {
	h.requested.Add(1)
	h.hits.Add(int64(ev.Hits))
	return nil
}

func (h *Hook) PostMultiGet(_ context.Context, ev *polycache.Event) error {
	h.requested.Add(int64(len(ev.Keys)))
	h.hits.Add(int64(ev.Hits))
	return nil
}

// Requested returns the number of keys asked for so far.
func (h *Hook) Requested() int64 { return h.requested.Load() }

// Hits returns the number of keys that were found.
func (h *Hook) Hits() int64 { return h.hits.Load() }

// Ratio returns hits/requested, zero before any reads.
func (h *Hook) Ratio() float64 {
	req := h.requested.Load()
	if req == 0 {
		return 0
	}
	return float64(h.hits.Load()) / float64(req)
}

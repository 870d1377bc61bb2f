// Package sloghook logs cache outcomes through log/slog with sampling and key
// redaction, for environments where keys carry user identifiers.
package sloghook

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/polycache/polycache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	MissEvery  uint64
	ErrorEvery uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hook struct {
	polycache.NopHook

	l    *slog.Logger
	opts Options

	missCtr atomic.Uint64
	errCtr  atomic.Uint64
}

var _ polycache.Hook = (*Hook)(nil)

func New(l *slog.Logger, opts Options) *Hook {
	return &Hook{l: l, opts: opts}
}

func (h *Hook) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hook) firstKey(ev *polycache.Event) string {
	if len(ev.Keys) == 0 {
		return ""
	}
	return h.redact(ev.Keys[0])
}

func (h *Hook) observe(ev *polycache.Event) error {
	if h.l == nil {
		return nil
	}
	if ev.Err != nil {
		if sample(h.opts.ErrorEvery, &h.errCtr) {
			h.l.Warn("polycache.error",
				"cmd", string(ev.Command),
				"key", h.firstKey(ev),
				"took", ev.Took,
				"err", ev.Err)
		}
		return nil
	}
	if (ev.Command == polycache.CmdGet || ev.Command == polycache.CmdMultiGet) &&
		ev.Hits < len(ev.Keys) {
		if sample(h.opts.MissEvery, &h.missCtr) {
			h.l.Debug("polycache.miss",
				"cmd", string(ev.Command),
				"key", h.firstKey(ev),
				"requested", len(ev.Keys),
				"hits", ev.Hits)
		}
	}
	return nil
}

func (h *Hook) PostAdd(_ context.Context, ev *polycache.Event) error       { return h.observe(ev) }
func (h *Hook) PostGet(_ context.Context, ev *polycache.Event) error       { return h.observe(ev) }
func (h *Hook) PostSet(_ context.Context, ev *polycache.Event) error       { return h.observe(ev) }
func (h *Hook) PostMultiGet(_ context.Context, ev *polycache.Event) error  { return h.observe(ev) }
func (h *Hook) PostMultiSet(_ context.Context, ev *polycache.Event) error  { return h.observe(ev) }
func (h *Hook) PostDelete(_ context.Context, ev *polycache.Event) error    { return h.observe(ev) }
func (h *Hook) PostExists(_ context.Context, ev *polycache.Event) error    { return h.observe(ev) }
func (h *Hook) PostIncrement(_ context.Context, ev *polycache.Event) error { return h.observe(ev) }
func (h *Hook) PostExpire(_ context.Context, ev *polycache.Event) error    { return h.observe(ev) }
func (h *Hook) PostClear(_ context.Context, ev *polycache.Event) error     { return h.observe(ev) }
func (h *Hook) PostRaw(_ context.Context, ev *polycache.Event) error       { return h.observe(ev) }

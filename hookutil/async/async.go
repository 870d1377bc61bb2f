// Package async fans hook dispatch out to a worker pool so slow observers
// never sit on the cache's hot path. Events are dropped when the queue is
// full; hooks here are observability, not control flow.
//
// usage:
//
//	raw := timing.New()
//	hooks := async.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	cache, _ := polycache.New[User](polycache.Options[User]{
//	    Store: store,
//	    Hooks: []polycache.Hook{hooks},
//	})
package async

import (
	"context"
	"sync"

	"github.com/polycache/polycache"
)

type Hook struct {
	inner polycache.Hook
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

var _ polycache.Hook = (*Hook)(nil)

func New(inner polycache.Hook, workers, qlen int) *Hook {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hook{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains the queue and stops the workers.
func (h *Hook) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

func (h *Hook) try(f func()) {
	select {
	case h.q <- f:
	default: // drop
	}
}

// the producer reuses the event after dispatch returns, so copy it
func (h *Hook) pre(ev *polycache.Event) error {
	cp := *ev
	h.try(func() { polycache.DispatchPre(h.inner, context.Background(), &cp) })
	return nil
}

func (h *Hook) post(ev *polycache.Event) error {
	cp := *ev
	h.try(func() { polycache.DispatchPost(h.inner, context.Background(), &cp) })
	return nil
}

func (h *Hook) PreAdd(_ context.Context, ev *polycache.Event) error        { return h.pre(ev) }
func (h *Hook) PostAdd(_ context.Context, ev *polycache.Event) error       { return h.post(ev) }
func (h *Hook) PreGet(_ context.Context, ev *polycache.Event) error        { return h.pre(ev) }
func (h *Hook) PostGet(_ context.Context, ev *polycache.Event) error       { return h.post(ev) }
func (h *Hook) PreSet(_ context.Context, ev *polycache.Event) error        { return h.pre(ev) }
func (h *Hook) PostSet(_ context.Context, ev *polycache.Event) error       { return h.post(ev) }
func (h *Hook) PreMultiGet(_ context.Context, ev *polycache.Event) error   { return h.pre(ev) }
func (h *Hook) PostMultiGet(_ context.Context, ev *polycache.Event) error  { return h.post(ev) }
func (h *Hook) PreMultiSet(_ context.Context, ev *polycache.Event) error   { return h.pre(ev) }
func (h *Hook) PostMultiSet(_ context.Context, ev *polycache.Event) error  { return h.post(ev) }
func (h *Hook) PreDelete(_ context.Context, ev *polycache.Event) error     { return h.pre(ev) }
func (h *Hook) PostDelete(_ context.Context, ev *polycache.Event) error    { return h.post(ev) }
func (h *Hook) PreExists(_ context.Context, ev *polycache.Event) error     { return h.pre(ev) }
func (h *Hook) PostExists(_ context.Context, ev *polycache.Event) error    { return h.post(ev) }
func (h *Hook) PreIncrement(_ context.Context, ev *polycache.Event) error  { return h.pre(ev) }
func (h *Hook) PostIncrement(_ context.Context, ev *polycache.Event) error { return h.post(ev) }
func (h *Hook) PreExpire(_ context.Context, ev *polycache.Event) error     { return h.pre(ev) }
func (h *Hook) PostExpire(_ context.Context, ev *polycache.Event) error    { return h.post(ev) }
func (h *Hook) PreClear(_ context.Context, ev *polycache.Event) error      { return h.pre(ev) }
func (h *Hook) PostClear(_ context.Context, ev *polycache.Event) error     { return h.post(ev) }
func (h *Hook) PreRaw(_ context.Context, ev *polycache.Event) error        { return h.pre(ev) }
func (h *Hook) PostRaw(_ context.Context, ev *polycache.Event) error       { return h.post(ev) }

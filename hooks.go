package polycache

import (
	"context"
	"time"
)

// Command names a façade operation as observed by hooks.
type Command string

const (
	CmdAdd       Command = "add"
	CmdGet       Command = "get"
	CmdSet       Command = "set"
	CmdMultiGet  Command = "multi_get"
	CmdMultiSet  Command = "multi_set"
	CmdDelete    Command = "delete"
	CmdExists    Command = "exists"
	CmdIncrement Command = "increment"
	CmdExpire    Command = "expire"
	CmdClear     Command = "clear"
	CmdRaw       Command = "raw"
)

// Event carries the resolved arguments of a command and, for post hooks, its
// outcome. The same Event value is passed to the pre and post hook of one
// command invocation; hooks must not retain it past the call.
type Event struct {
	Command Command
	Keys    []string // effective backend-visible keys
	TTL     time.Duration
	Delta   int64 // increment only

	// Outcome, populated for post hooks.
	Took time.Duration
	Hits int // keys found, for the read commands
	Err  error
}

// Hook observes commands flowing through a cache. Pre hooks run in
// registration order before the backend call; post hooks run after it with
// the outcome filled in, including on failure and timeout.
//
// A hook error is reported through the cache Logger but never aborts the
// command or masks its result. Implementations must be cheap and
// non-blocking; wrap slow hooks with hookutil/async.
type Hook interface {
	PreAdd(ctx context.Context, ev *Event) error
	PostAdd(ctx context.Context, ev *Event) error
	PreGet(ctx context.Context, ev *Event) error
	PostGet(ctx context.Context, ev *Event) error
	PreSet(ctx context.Context, ev *Event) error
	PostSet(ctx context.Context, ev *Event) error
	PreMultiGet(ctx context.Context, ev *Event) error
	PostMultiGet(ctx context.Context, ev *Event) error
	PreMultiSet(ctx context.Context, ev *Event) error
	PostMultiSet(ctx context.Context, ev *Event) error
	PreDelete(ctx context.Context, ev *Event) error
	PostDelete(ctx context.Context, ev *Event) error
	PreExists(ctx context.Context, ev *Event) error
	PostExists(ctx context.Context, ev *Event) error
	PreIncrement(ctx context.Context, ev *Event) error
	PostIncrement(ctx context.Context, ev *Event) error
	PreExpire(ctx context.Context, ev *Event) error
	PostExpire(ctx context.Context, ev *Event) error
	PreClear(ctx context.Context, ev *Event) error
	PostClear(ctx context.Context, ev *Event) error
	PreRaw(ctx context.Context, ev *Event) error
	PostRaw(ctx context.Context, ev *Event) error
}

// NopHook implements Hook doing nothing. Embed it to observe only the
// commands you care about.
type NopHook struct{}

func (NopHook) PreAdd(context.Context, *Event) error        { return nil }
func (NopHook) PostAdd(context.Context, *Event) error       { return nil }
func (NopHook) PreGet(context.Context, *Event) error        { return nil }
func (NopHook) PostGet(context.Context, *Event) error       { return nil }
func (NopHook) PreSet(context.Context, *Event) error        { return nil }
func (NopHook) PostSet(context.Context, *Event) error       { return nil }
func (NopHook) PreMultiGet(context.Context, *Event) error   { return nil }
func (NopHook) PostMultiGet(context.Context, *Event) error  { return nil }
func (NopHook) PreMultiSet(context.Context, *Event) error   { return nil }
func (NopHook) PostMultiSet(context.Context, *Event) error  { return nil }
func (NopHook) PreDelete(context.Context, *Event) error     { return nil }
func (NopHook) PostDelete(context.Context, *Event) error    { return nil }
func (NopHook) PreExists(context.Context, *Event) error     { return nil }
func (NopHook) PostExists(context.Context, *Event) error    { return nil }
func (NopHook) PreIncrement(context.Context, *Event) error  { return nil }
func (NopHook) PostIncrement(context.Context, *Event) error { return nil }
func (NopHook) PreExpire(context.Context, *Event) error     { return nil }
func (NopHook) PostExpire(context.Context, *Event) error    { return nil }
func (NopHook) PreClear(context.Context, *Event) error      { return nil }
func (NopHook) PostClear(context.Context, *Event) error     { return nil }
func (NopHook) PreRaw(context.Context, *Event) error        { return nil }
func (NopHook) PostRaw(context.Context, *Event) error       { return nil }

// DispatchPre routes ev to the matching pre method of h. Exported for hook
// wrappers (hookutil/async) that forward events generically.
func DispatchPre(h Hook, ctx context.Context, ev *Event) error {
	switch ev.Command {
	case CmdAdd:
		return h.PreAdd(ctx, ev)
	case CmdGet:
		return h.PreGet(ctx, ev)
	case CmdSet:
		return h.PreSet(ctx, ev)
	case CmdMultiGet:
		return h.PreMultiGet(ctx, ev)
	case CmdMultiSet:
		return h.PreMultiSet(ctx, ev)
	case CmdDelete:
		return h.PreDelete(ctx, ev)
	case CmdExists:
		return h.PreExists(ctx, ev)
	case CmdIncrement:
		return h.PreIncrement(ctx, ev)
	case CmdExpire:
		return h.PreExpire(ctx, ev)
	case CmdClear:
		return h.PreClear(ctx, ev)
	case CmdRaw:
		return h.PreRaw(ctx, ev)
	}
	return nil
}

// DispatchPost routes ev to the matching post method of h.
func DispatchPost(h Hook, ctx context.Context, ev *Event) error {
	switch ev.Command {
	case CmdAdd:
		return h.PostAdd(ctx, ev)
	case CmdGet:
		return h.PostGet(ctx, ev)
	case CmdSet:
		return h.PostSet(ctx, ev)
	case CmdMultiGet:
		return h.PostMultiGet(ctx, ev)
	case CmdMultiSet:
		return h.PostMultiSet(ctx, ev)
	case CmdDelete:
		return h.PostDelete(ctx, ev)
	case CmdExists:
		return h.PostExists(ctx, ev)
	case CmdIncrement:
		return h.PostIncrement(ctx, ev)
	case CmdExpire:
		return h.PostExpire(ctx, ev)
	case CmdClear:
		return h.PostClear(ctx, ev)
	case CmdRaw:
		return h.PostRaw(ctx, ev)
	}
	return nil
}

func (c *cache[V]) firePre(ctx context.Context, ev *Event) {
	for _, h := range c.hooks {
		if err := DispatchPre(h, ctx, ev); err != nil {
			c.log.Warn("pre hook failed", Fields{"cmd": ev.Command, "err": err})
		}
	}
}

func (c *cache[V]) firePost(ctx context.Context, ev *Event) {
	for _, h := range c.hooks {
		if err := DispatchPost(h, ctx, ev); err != nil {
			c.log.Warn("post hook failed", Fields{"cmd": ev.Command, "err": err})
		}
	}
}

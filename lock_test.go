package polycache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/polycache/polycache/backend/memory"
)

func newLockCache(t *testing.T) Cache[user] {
	t.Helper()
	c, err := New[user](Options[user]{
		Store:     memory.New(memory.Config{}),
		Namespace: "locks",
	})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestRedLockMutualExclusion(t *testing.T) {
	ctx := context.Background()
	c := newLockCache(t)

	var inside atomic.Int32
	var maxInside atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lock, err := NewRedLock(c, "resource", time.Second)
			if err != nil {
				t.Error(err)
				return
			}
			for {
				got, err := lock.Acquire(ctx)
				if err != nil {
					t.Error(err)
					return
				}
				if got {
					break
				}
			}
			n := inside.Add(1)
			for {
				cur := maxInside.Load()
				if n <= cur || maxInside.CompareAndSwap(cur, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			inside.Add(-1)
			if _, err := lock.Release(ctx); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if maxInside.Load() != 1 {
		t.Fatalf("critical section held by %d goroutines at once", maxInside.Load())
	}
}

func TestRedLockContentionReturnsFalse(t *testing.T) {
	ctx := context.Background()
	c := newLockCache(t)

	first, _ := NewRedLock(c, "resource", time.Minute)
	second, _ := NewRedLock(c, "resource", time.Minute)
	second.MaxWait = 20 * time.Millisecond
	second.RetryInterval = 5 * time.Millisecond

	if got, err := first.Acquire(ctx); err != nil || !got {
		t.Fatalf("first Acquire: got=%v err=%v", got, err)
	}
	got, err := second.Acquire(ctx)
	if err != nil {
		t.Fatalf("contended Acquire must not error: %v", err)
	}
	if got {
		t.Fatal("two holders at once")
	}
}

func TestRedLockWaiterProceedsAfterRelease(t *testing.T) {
	ctx := context.Background()
	c := newLockCache(t)

	holder, _ := NewRedLock(c, "resource", time.Minute)
	if got, _ := holder.Acquire(ctx); !got {
		t.Fatal("holder failed to acquire")
	}

	acquired := make(chan struct{})
	go func() {
		waiter, _ := NewRedLock(c, "resource", time.Minute)
		got, err := waiter.Acquire(ctx)
		if err != nil {
			t.Error(err)
			return
		}
		if got {
			close(acquired)
		}
	}()

	select {
	case <-acquired:
		t.Fatal("waiter acquired while the lock was held")
	case <-time.After(30 * time.Millisecond):
	}

	if ok, err := holder.Release(ctx); err != nil || !ok {
		t.Fatalf("Release: ok=%v err=%v", ok, err)
	}
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiter never proceeded after release")
	}
}

func TestRedLockLeaseExpiry(t *testing.T) {
	ctx := context.Background()
	c := newLockCache(t)

	holder, _ := NewRedLock(c, "resource", 20*time.Millisecond)
	if got, _ := holder.Acquire(ctx); !got {
		t.Fatal("acquire failed")
	}
	time.Sleep(60 * time.Millisecond)

	// lease elapsed; a second contender may take over
	next, _ := NewRedLock(c, "resource", time.Second)
	if got, err := next.Acquire(ctx); err != nil || !got {
		t.Fatalf("post-expiry Acquire: got=%v err=%v", got, err)
	}

	// the stale holder must not release the new holder's lock
	if ok, err := holder.Release(ctx); err != nil || ok {
		t.Fatalf("stale Release: ok=%v err=%v", ok, err)
	}
	if ok, err := next.Release(ctx); err != nil || !ok {
		t.Fatalf("owner Release: ok=%v err=%v", ok, err)
	}
}

func TestRedLockDoubleReleaseHarmless(t *testing.T) {
	ctx := context.Background()
	c := newLockCache(t)

	lock, _ := NewRedLock(c, "resource", time.Second)
	lock.Acquire(ctx)
	if ok, err := lock.Release(ctx); err != nil || !ok {
		t.Fatalf("first Release: ok=%v err=%v", ok, err)
	}
	if ok, err := lock.Release(ctx); err != nil || ok {
		t.Fatalf("second Release: ok=%v err=%v", ok, err)
	}
}

func TestRedLockWaiterRegistryCleanedUp(t *testing.T) {
	ctx := context.Background()
	c := newLockCache(t)

	holder, _ := NewRedLock(c, "resource", time.Minute)
	if got, _ := holder.Acquire(ctx); !got {
		t.Fatal("holder failed to acquire")
	}

	contender, _ := NewRedLock(c, "resource", time.Minute)
	contender.MaxWait = 20 * time.Millisecond
	contender.RetryInterval = 5 * time.Millisecond
	if got, err := contender.Acquire(ctx); err != nil || got {
		t.Fatalf("contended Acquire: got=%v err=%v", got, err)
	}

	// the contender gave up, so its registration must be gone even though
	// the holder never released
	cc := c.(*cache[user])
	cc.waitMu.Lock()
	remaining := len(cc.waiters)
	cc.waitMu.Unlock()
	if remaining != 0 {
		t.Fatalf("%d waiter entries linger after the last waiter left", remaining)
	}

	if ok, err := holder.Release(ctx); err != nil || !ok {
		t.Fatalf("Release: ok=%v err=%v", ok, err)
	}
}

func TestOptimisticLockConflict(t *testing.T) {
	ctx := context.Background()
	c := newLockCache(t)

	c.Set(ctx, "doc", user{ID: "v1"})

	lock, err := NewOptimisticLock(c, "doc")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok, err := lock.Get(ctx); err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}

	// concurrent writer moves the entry
	c.Set(ctx, "doc", user{ID: "v2"})

	if err := lock.Set(ctx, user{ID: "mine"}); !errors.Is(err, ErrValueChanged) {
		t.Fatalf("err = %v, want ErrValueChanged", err)
	}
	got, _, _ := c.Get(ctx, "doc")
	if got.ID != "v2" {
		t.Fatalf("losing writer clobbered the entry: %+v", got)
	}
}

func TestOptimisticLockCleanWrite(t *testing.T) {
	ctx := context.Background()
	c := newLockCache(t)

	c.Set(ctx, "doc", user{ID: "v1"})
	lock, _ := NewOptimisticLock(c, "doc")
	if _, _, err := lock.Get(ctx); err != nil {
		t.Fatal(err)
	}
	if err := lock.Set(ctx, user{ID: "v2"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, _, _ := c.Get(ctx, "doc")
	if got.ID != "v2" {
		t.Fatalf("got %+v", got)
	}
}

func TestOptimisticLockMissSnapshot(t *testing.T) {
	ctx := context.Background()
	c := newLockCache(t)

	lock, _ := NewOptimisticLock(c, "doc")
	if _, ok, err := lock.Get(ctx); err != nil || ok {
		t.Fatalf("Get on empty: ok=%v err=%v", ok, err)
	}

	// the key appearing in between is a conflict too
	c.Set(ctx, "doc", user{ID: "sneaky"})
	if err := lock.Set(ctx, user{ID: "mine"}); !errors.Is(err, ErrValueChanged) {
		t.Fatalf("err = %v, want ErrValueChanged", err)
	}
}

func TestOptimisticLockSetBeforeGet(t *testing.T) {
	ctx := context.Background()
	c := newLockCache(t)

	lock, _ := NewOptimisticLock(c, "doc")
	if err := lock.Set(ctx, user{ID: "1"}); err == nil {
		t.Fatal("Set before Get must fail")
	}
}

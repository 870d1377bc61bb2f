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

func TestGetOrComputeFillsOnMiss(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, "compute", nil)

	var computes atomic.Int32
	compute := func(context.Context) (user, error) {
		computes.Add(1)
		return user{ID: "built"}, nil
	}

	got, err := GetOrCompute(ctx, c, "k", compute)
	if err != nil || got.ID != "built" {
		t.Fatalf("first call: %+v err=%v", got, err)
	}
	got, err = GetOrCompute(ctx, c, "k", compute)
	if err != nil || got.ID != "built" {
		t.Fatalf("second call: %+v err=%v", got, err)
	}
	if computes.Load() != 1 {
		t.Fatalf("computed %d times, want 1", computes.Load())
	}
}

func TestGetOrComputeDedupesConcurrent(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, "compute", nil)

	var computes atomic.Int32
	release := make(chan struct{})
	compute := func(context.Context) (user, error) {
		computes.Add(1)
		<-release
		return user{ID: "built"}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := GetOrCompute(ctx, c, "k", compute)
			if err != nil || got.ID != "built" {
				t.Errorf("got %+v err=%v", got, err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if computes.Load() != 1 {
		t.Fatalf("computed %d times, want 1", computes.Load())
	}
}

func TestGetOrComputeError(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, "compute", nil)

	boom := errors.New("compute boom")
	if _, err := GetOrCompute(ctx, c, "k", func(context.Context) (user, error) {
		return user{}, boom
	}); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	// a failed compute must not poison the key
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Fatal("failed compute was cached")
	}
}

func TestGetOrComputeStampedeSingleCompute(t *testing.T) {
	ctx := context.Background()
	store := memory.New(memory.Config{})

	var computes atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// one cache per goroutine, as separate processes would have
			c, err := New[user](Options[user]{Store: store, Namespace: "st"})
			if err != nil {
				t.Error(err)
				return
			}
			got, err := GetOrComputeStampede(ctx, c, "k", time.Second, func(context.Context) (user, error) {
				computes.Add(1)
				time.Sleep(10 * time.Millisecond)
				return user{ID: "built"}, nil
			})
			if err != nil || got.ID != "built" {
				t.Errorf("got %+v err=%v", got, err)
			}
		}()
	}
	wg.Wait()

	if computes.Load() != 1 {
		t.Fatalf("computed %d times, want 1", computes.Load())
	}
}

// cadFailStore fails every CompareAndDelete, as a backend losing its
// connection between acquire and release would.
type cadFailStore struct {
	*memory.Store
	err error
}

func (s cadFailStore) CompareAndDelete(ctx context.Context, key string, expected []byte) (bool, error) {
	return false, s.err
}

func TestGetOrComputeStampedeReleaseErrorPropagates(t *testing.T) {
	ctx := context.Background()
	cadErr := errors.New("cad boom")
	c, err := New[user](Options[user]{
		Store:     cadFailStore{Store: memory.New(memory.Config{}), err: cadErr},
		Namespace: "st",
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = GetOrComputeStampede(ctx, c, "k", time.Second, func(context.Context) (user, error) {
		return user{ID: "built"}, nil
	})
	if !errors.Is(err, cadErr) {
		t.Fatalf("err = %v, want the release failure", err)
	}

	// the value was computed and cached before the release failed
	got, ok, err := c.Get(ctx, "k")
	if err != nil || !ok || got.ID != "built" {
		t.Fatalf("computed entry missing: ok=%v got=%+v err=%v", ok, got, err)
	}
}

func TestMultiGetOrComputePartialFill(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, "multi", nil)

	c.Set(ctx, "a", user{ID: "cached-a"})

	var gotMissing []string
	values, err := MultiGetOrCompute(ctx, c, []string{"a", "b", "c"},
		func(_ context.Context, missing []string) ([]user, error) {
			gotMissing = append([]string(nil), missing...)
			out := make([]user, len(missing))
			for i, k := range missing {
				out[i] = user{ID: "built-" + k}
			}
			return out, nil
		})
	if err != nil {
		t.Fatalf("MultiGetOrCompute: %v", err)
	}

	if len(gotMissing) != 2 || gotMissing[0] != "b" || gotMissing[1] != "c" {
		t.Fatalf("missing = %v", gotMissing)
	}
	if values[0].ID != "cached-a" || values[1].ID != "built-b" || values[2].ID != "built-c" {
		t.Fatalf("values = %+v", values)
	}

	// the computed entries must now be cached
	if got, ok, _ := c.Get(ctx, "b"); !ok || got.ID != "built-b" {
		t.Fatalf("b not written back: ok=%v got=%+v", ok, got)
	}
}

func TestMultiGetOrComputeLengthMismatch(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, "multi", nil)

	if _, err := MultiGetOrCompute(ctx, c, []string{"a"},
		func(context.Context, []string) ([]user, error) {
			return nil, nil
		}); err == nil {
		t.Fatal("mismatched compute result must fail")
	}
}

package layered

import (
	"context"
	"testing"
	"time"

	"github.com/polycache/polycache/backend/memory"
)

func newPair(t *testing.T) (*Store, *memory.Store, *memory.Store) {
	t.Helper()
	near := memory.New(memory.Config{})
	far := memory.New(memory.Config{})
	s, err := New(Config{Near: near, Far: far})
	if err != nil {
		t.Fatal(err)
	}
	return s, near, far
}

func TestReadFillsNear(t *testing.T) {
	ctx := context.Background()
	s, near, far := newPair(t)

	far.Set(ctx, "k", []byte("v"), 0)
	if _, ok, _ := near.Get(ctx, "k"); ok {
		t.Fatal("near warm before first read")
	}

	v, ok, err := s.Get(ctx, "k")
	if err != nil || !ok || string(v) != "v" {
		t.Fatalf("Get: ok=%v v=%q err=%v", ok, v, err)
	}
	if _, ok, _ := near.Get(ctx, "k"); !ok {
		t.Fatal("far hit did not fill near")
	}
}

func TestWriteGoesToBoth(t *testing.T) {
	ctx := context.Background()
	s, near, far := newPair(t)

	if err := s.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := near.Get(ctx, "k"); !ok {
		t.Fatal("near missing after write")
	}
	if _, ok, _ := far.Get(ctx, "k"); !ok {
		t.Fatal("far missing after write")
	}
}

func TestIncrementInvalidatesNear(t *testing.T) {
	ctx := context.Background()
	s, near, _ := newPair(t)

	s.Set(ctx, "c", []byte("1"), 0)
	n, err := s.Increment(ctx, "c", 1)
	if err != nil || n != 2 {
		t.Fatalf("Increment: n=%d err=%v", n, err)
	}
	if _, ok, _ := near.Get(ctx, "c"); ok {
		t.Fatal("stale near copy survived Increment")
	}

	// the next read must see far's value
	v, _, _ := s.Get(ctx, "c")
	if string(v) != "2" {
		t.Fatalf("read %q after Increment", v)
	}
}

func TestMultiGetMixedLayers(t *testing.T) {
	ctx := context.Background()
	s, near, far := newPair(t)

	near.Set(ctx, "a", []byte("near-a"), 0)
	far.Set(ctx, "b", []byte("far-b"), 0)

	out, err := s.MultiGet(ctx, []string{"a", "b", "c"})
	if err != nil {
		t.Fatal(err)
	}
	if string(out[0]) != "near-a" || string(out[1]) != "far-b" || out[2] != nil {
		t.Fatalf("out = %q", out)
	}
	if _, ok, _ := near.Get(ctx, "b"); !ok {
		t.Fatal("far member not filled into near")
	}
}

func TestNearTTLBoundsFills(t *testing.T) {
	ctx := context.Background()
	near := memory.New(memory.Config{})
	far := memory.New(memory.Config{})
	s, err := New(Config{Near: near, Far: far, NearTTL: 20 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}

	far.Set(ctx, "k", []byte("v"), 0)
	s.Get(ctx, "k")
	time.Sleep(60 * time.Millisecond)

	if _, ok, _ := near.Get(ctx, "k"); ok {
		t.Fatal("near fill outlived NearTTL")
	}
	// far still authoritative
	if _, ok, _ := s.Get(ctx, "k"); !ok {
		t.Fatal("far entry lost")
	}
}

func TestAddDelegatesToFar(t *testing.T) {
	ctx := context.Background()
	s, near, _ := newPair(t)

	// a near-only phantom must not make Add fail
	near.Set(ctx, "k", []byte("phantom"), 0)
	ok, err := s.Add(ctx, "k", []byte("v"), 0)
	if err != nil || !ok {
		t.Fatalf("Add: ok=%v err=%v", ok, err)
	}
	v, _, _ := near.Get(ctx, "k")
	if string(v) != "v" {
		t.Fatalf("near = %q after Add", v)
	}
}

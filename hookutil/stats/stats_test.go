package stats

import (
	"context"
	"testing"

	"github.com/polycache/polycache"
	"github.com/polycache/polycache/backend/memory"
)

func TestHitMissRatio(t *testing.T) {
	ctx := context.Background()
	h := New()
	c, err := polycache.New[string](polycache.Options[string]{
		Store: memory.New(memory.Config{}),
		Hooks: []polycache.Hook{h},
	})
	if err != nil {
		t.Fatal(err)
	}

	c.Set(ctx, "a", "1")
	c.Get(ctx, "a")    // hit
	c.Get(ctx, "gone") // miss
	c.MultiGet(ctx, []string{"a", "gone"})

	if got := h.Requested(); got != 4 {
		t.Fatalf("requested = %d", got)
	}
	if got := h.Hits(); got != 2 {
		t.Fatalf("hits = %d", got)
	}
	if got := h.Ratio(); got != 0.5 {
		t.Fatalf("ratio = %v", got)
	}
}

func TestRatioBeforeReads(t *testing.T) {
	h := New()
	if h.Ratio() != 0 {
		t.Fatal("ratio before any reads must be zero")
	}
}

package polycache

import (
	"context"
	"errors"
	"testing"

	"github.com/polycache/polycache/backend/memory"
)

func TestRegistryLazyBuild(t *testing.T) {
	r := NewRegistry[user]()

	built := 0
	err := r.Register("default", func() (Cache[user], error) {
		built++
		return New[user](Options[user]{Store: memory.New(memory.Config{})})
	})
	if err != nil {
		t.Fatal(err)
	}
	if built != 0 {
		t.Fatal("constructor ran before first Get")
	}

	a, err := r.Get("default")
	if err != nil {
		t.Fatal(err)
	}
	b, err := r.Get("default")
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatal("Get must return the same instance")
	}
	if built != 1 {
		t.Fatalf("constructor ran %d times", built)
	}
}

func TestRegistryUnknownAlias(t *testing.T) {
	r := NewRegistry[user]()
	if _, err := r.Get("nope"); err == nil {
		t.Fatal("unknown alias must fail")
	}
}

func TestRegistryConstructorError(t *testing.T) {
	r := NewRegistry[user]()
	boom := errors.New("build boom")
	r.Register("bad", func() (Cache[user], error) { return nil, boom })

	if _, err := r.Get("bad"); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}

func TestRegistryRebindRules(t *testing.T) {
	r := NewRegistry[user]()
	r.Register("c", func() (Cache[user], error) {
		return New[user](Options[user]{Store: memory.New(memory.Config{})})
	})

	// replacing before first use is fine
	if err := r.Register("c", func() (Cache[user], error) {
		return New[user](Options[user]{Store: memory.New(memory.Config{}), Namespace: "v2"})
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := r.Get("c"); err != nil {
		t.Fatal(err)
	}
	if err := r.Register("c", nil); err == nil {
		t.Fatal("re-registering a built alias must fail")
	}
}

func TestRegistryClose(t *testing.T) {
	r := NewRegistry[user]()
	r.Register("c", func() (Cache[user], error) {
		return New[user](Options[user]{Store: memory.New(memory.Config{})})
	})
	if _, err := r.Get("c"); err != nil {
		t.Fatal(err)
	}
	if err := r.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Get("c"); err == nil {
		t.Fatal("Close must forget aliases")
	}
}

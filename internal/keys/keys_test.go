package keys

import "testing"

func TestBuildNoNamespace(t *testing.T) {
	if got := Build("", "plain"); got != "plain" {
		t.Fatalf("separator-free key should pass through, got %q", got)
	}
	if got := Build("", "a:b"); got != "a%3Ab" {
		t.Fatalf("Build without namespace must still escape, got %q", got)
	}
}

func TestBuildEscapesSeparator(t *testing.T) {
	// The classic collision: ("a", "b:c") vs ("a:b", "c").
	left := Build("a", "b:c")
	right := Build("a:b", "c")
	if left == right {
		t.Fatalf("distinct (namespace, key) pairs collided on %q", left)
	}
}

func TestBuildEmptyNamespaceNoAlias(t *testing.T) {
	// An un-namespaced key must never land on a namespaced cache's entry.
	if Build("", "a:b") == Build("a", "b") {
		t.Fatalf("(%q, %q) and (%q, %q) built the same key", "", "a:b", "a", "b")
	}
}

func TestEscapeRoundTripStability(t *testing.T) {
	cases := map[string]string{
		"plain": "plain",
		"a:b":   "a%3Ab",
		"100%":  "100%25",
		"%3A":   "%253A", // pre-escaped input must not alias an escaped one
	}
	for in, want := range cases {
		if got := Escape(in); got != want {
			t.Errorf("Escape(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPrefix(t *testing.T) {
	if got := Prefix("user"); got != "user:" {
		t.Fatalf("Prefix = %q", got)
	}
	if got := Prefix(""); got != "" {
		t.Fatalf("empty namespace prefix = %q", got)
	}
}

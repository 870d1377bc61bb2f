package serializer

import "fmt"

// Limit wraps another serializer to enforce a maximum payload size at Load
// time. Dump is forwarded to Inner unchanged. MaxLoad <= 0 disables the check.
//
// Typical use: protect against oversized entries coming from a shared cache
// another process may have written.
type Limit[V any] struct {
	Inner   Serializer[V]
	MaxLoad int
}

func (s Limit[V]) Dump(v V) ([]byte, error) { return s.Inner.Dump(v) }
func (s Limit[V]) Load(b []byte) (V, error) {
	if s.MaxLoad > 0 && len(b) > s.MaxLoad {
		var zero V
		return zero, fmt.Errorf("payload too large: %d > %d", len(b), s.MaxLoad)
	}
	return s.Inner.Load(b)
}

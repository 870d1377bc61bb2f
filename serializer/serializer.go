// Package serializer converts cache values V to and from the backend's byte
// representation. Implementations are stateless per call.
package serializer

// Serializer encodes values V to []byte for storage and back.
type Serializer[V any] interface {
	Dump(V) ([]byte, error)
	Load([]byte) (V, error)
}

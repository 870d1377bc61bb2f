package serializer

import "google.golang.org/protobuf/proto"

// Protobuf serializes a concrete proto.Message type. The constructor function
// produces a fresh message for Load (e.g. func() *mypb.User { return &mypb.User{} }).
type Protobuf[T proto.Message] struct {
	new func() T
}

func NewProtobuf[T proto.Message](ctor func() T) Protobuf[T] {
	return Protobuf[T]{new: ctor}
}

func (s Protobuf[T]) Dump(v T) ([]byte, error) { return proto.Marshal(v) }
func (s Protobuf[T]) Load(b []byte) (T, error) {
	m := s.new()
	err := proto.Unmarshal(b, m)
	return m, err
}

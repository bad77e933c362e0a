package codec

import "google.golang.org/protobuf/proto"

// Protobuf serializes proto-generated snapshot types. Note that proto
// marshaling is not guaranteed deterministic across library versions; prefer
// JSON or Msgpack for views that rely on no-op detection in UpdateMatching.
type Protobuf[T proto.Message] struct {
	new func() T // constructor for a concrete message (e.g., func() *pb.Product { return &pb.Product{} })
}

func NewProtobuf[T proto.Message](ctor func() T) Protobuf[T] {
	return Protobuf[T]{new: ctor}
}

func (c Protobuf[T]) Encode(v T) ([]byte, error) {
	return proto.Marshal(v)
}
func (c Protobuf[T]) Decode(b []byte) (T, error) {
	m := c.new()
	err := proto.Unmarshal(b, m)
	return m, err
}

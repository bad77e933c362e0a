// Package codec provides pluggable (de)serialization for cache snapshots.
//
// The store detects no-op bulk updates by comparing encoded bytes, so codecs
// used with UpdateMatching must encode a given value deterministically.
// Struct encoding with JSON, Msgpack, or deterministic CBOR qualifies;
// map-heavy value types generally do not.
package codec

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

package serializer

import "github.com/fxamacker/cbor/v2"

// CBOR serializes values using fxamacker/cbor. The zero value is NOT ready to
// use; construct with NewCBOR or MustCBOR.
//
// Pass deterministic=true for canonical encoding (RFC 8949 Core Deterministic)
// when byte-for-byte stable outputs matter (hashing, content addressing).
// Otherwise PreferredUnsortedEncOptions are used. Time values are encoded as
// RFC3339Nano for stable, human-readable timestamps.
type CBOR[V any] struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

var _ Serializer[struct{}] = CBOR[struct{}]{}

// NewCBOR constructs a CBOR serializer.
func NewCBOR[V any](deterministic bool) (CBOR[V], error) {
	var eo cbor.EncOptions
	if deterministic {
		eo = cbor.CoreDetEncOptions()
	} else {
		eo = cbor.PreferredUnsortedEncOptions()
	}
	eo.Time = cbor.TimeRFC3339Nano

	em, err := eo.EncMode()
	if err != nil {
		return CBOR[V]{}, err
	}
	dm, err := (cbor.DecOptions{}).DecMode()
	if err != nil {
		return CBOR[V]{}, err
	}
	return CBOR[V]{enc: em, dec: dm}, nil
}

// MustCBOR is like NewCBOR but panics on error. Handy for package-level
// variables in tests and examples.
func MustCBOR[V any](deterministic bool) CBOR[V] {
	s, err := NewCBOR[V](deterministic)
	if err != nil {
		panic(err)
	}
	return s
}

func (s CBOR[V]) Dump(v V) ([]byte, error) { return s.enc.Marshal(v) }
func (s CBOR[V]) Load(b []byte) (V, error) {
	var v V
	err := s.dec.Unmarshal(b, &v)
	return v, err
}

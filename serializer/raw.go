package serializer

// Bytes is the identity serializer for []byte values. Dump/Load return the
// input unchanged. Use it when the caller already works in raw bytes and only
// wants the façade's key building, hooks and timeouts.
type Bytes struct{}

func (Bytes) Dump(b []byte) ([]byte, error) { return b, nil }
func (Bytes) Load(b []byte) ([]byte, error) { return b, nil }

// String converts Go strings to bytes and back. Assumes UTF-8 by convention
// and performs no validation.
type String struct{}

func (String) Dump(s string) ([]byte, error) { return []byte(s), nil }
func (String) Load(b []byte) (string, error) { return string(b), nil }

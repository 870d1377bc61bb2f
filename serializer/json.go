package serializer

import "encoding/json"

// JSON serializes values with encoding/json. The zero value is ready to use;
// it is the façade's default serializer.
type JSON[V any] struct{}

func (JSON[V]) Dump(v V) ([]byte, error) { return json.Marshal(v) }
func (JSON[V]) Load(b []byte) (V, error) {
	var v V
	err := json.Unmarshal(b, &v)
	return v, err
}

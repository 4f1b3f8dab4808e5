package codec

import "encoding/json"

// JSONCodec marshals values through encoding/json. It is the engine's default
// for cached rows: map[string]any round-trips without tags or registration.
// JSON widens decoded numbers to float64; the engine re-applies declared-type
// coercion on the way out, so callers never see the widening.
// The zero value is ready to use.
type JSONCodec[V any] struct{}

func (JSONCodec[V]) Encode(v V) ([]byte, error) { return json.Marshal(v) }
func (JSONCodec[V]) Decode(b []byte) (V, error) {
	var v V
	err := json.Unmarshal(b, &v)
	return v, err
}

// Package codec serializes cached values to bytes for the provider. The
// engine caches rows (map[string]any), for which the JSON codec is the
// default; the typed codecs exist for hosts that cache their own value
// shapes through the same provider.
package codec

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// Package codec provides the blob serializers used for Object-tagged
// attribute values and for cached entry rows.
package codec

// Codec encodes and decodes values to an opaque byte form.
type Codec interface {
	// Marshal serializes v into bytes.
	Marshal(v any) ([]byte, error)
	// Unmarshal deserializes data into v (must be a pointer).
	Unmarshal(data []byte, v any) error
	// Name returns the codec identifier used for diagnostics.
	Name() string
}

// ByName returns the built-in codec registered under name, or nil.
func ByName(name string) Codec {
	switch name {
	case "yaml", "":
		return YAML{}
	case "json":
		return JSON{}
	case "msgpack":
		return MsgPack{}
	}
	return nil
}

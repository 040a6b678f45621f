// Package codec centralizes record encoding for the persistent stores.
//
// Structured documents (positions, scope manifests) go through a Codec; raw
// vectors use a compact little-endian binary layout with optional block
// compression. Changing either format is a breaking change for persisted data.
package codec

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case "json":
		return JSON{}, true
	case "go-json", "":
		return GoJSON{}, true
	default:
		return nil, false
	}
}

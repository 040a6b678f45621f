package codec

import (
	"encoding/json"

	gojson "github.com/goccy/go-json"
)

// Default is the codec used by the stores when none is configured.
var Default Codec = GoJSON{}

// GoJSON encodes manifests and position documents with goccy/go-json. The
// bytes it writes are plain JSON, so a scope written with GoJSON reads back
// with JSON and the other way round.
type GoJSON struct{}

func (GoJSON) Marshal(v any) ([]byte, error)      { return gojson.Marshal(v) }
func (GoJSON) Unmarshal(data []byte, v any) error { return gojson.Unmarshal(data, v) }
func (GoJSON) Name() string                       { return "go-json" }

// JSON is the encoding/json codec, kept for stores that must stay readable
// by tools outside this module.
type JSON struct{}

func (JSON) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (JSON) Name() string                       { return "json" }

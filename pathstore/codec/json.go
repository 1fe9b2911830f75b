package codec

import (
	"encoding/json"
)

// JSON encodes values with encoding/json. It handles arbitrary structs,
// which makes it the default for protocol payloads; for plain scalar
// samples the Binary codec is considerably more compact.
type JSON struct{}

var _ Codec = JSON{}

// Encode serializes a value to JSON
func (JSON) Encode(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// Decode deserializes JSON into out, which must be a non-nil pointer
func (JSON) Decode(data []byte, out interface{}) error {
	return json.Unmarshal(data, out)
}

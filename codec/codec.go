// Package codec defines the serialization contract for records stored in
// the backend, plus the default JSON implementation.
package codec

import "encoding/json"

// Codec converts records to and from their stored representation. An
// implementation must round-trip losslessly; the store treats encoded
// values as opaque strings.
type Codec interface {
	Marshal(v any) (string, error)
	Unmarshal(data string, v any) error
}

// JSON encodes records as JSON.
type JSON struct{}

// Marshal implements Codec.
func (JSON) Marshal(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Unmarshal implements Codec.
func (JSON) Unmarshal(data string, v any) error {
	return json.Unmarshal([]byte(data), v)
}

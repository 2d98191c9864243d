package api

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// Payload is a response body. It is empty when the server sent nothing.
type Payload struct {
	raw []byte
}

// NewPayload wraps raw bytes.
func NewPayload(raw []byte) Payload {
	return Payload{raw: raw}
}

// Raw returns the body bytes.
func (p Payload) Raw() []byte {
	return p.raw
}

// IsEmpty reports whether the body was empty.
func (p Payload) IsEmpty() bool {
	return len(p.raw) == 0
}

// IsJSON reports whether the body is valid JSON. Non-JSON bodies are kept as
// text.
func (p Payload) IsJSON() bool {
	return len(p.raw) > 0 && gjson.ValidBytes(p.raw)
}

// Get looks up a gjson path, e.g. "0.email" or "#.id".
func (p Payload) Get(path string) gjson.Result {
	if !p.IsJSON() {
		return gjson.Result{}
	}
	return gjson.GetBytes(p.raw, path)
}

// Value returns the whole body as a gjson result. Text bodies come back as a
// string result.
func (p Payload) Value() gjson.Result {
	if p.IsEmpty() {
		return gjson.Result{}
	}
	if !p.IsJSON() {
		return gjson.Result{Type: gjson.String, Str: string(p.raw), Raw: string(p.raw)}
	}
	return gjson.ParseBytes(p.raw)
}

// Decode unmarshals the JSON body into v. An empty body leaves v untouched.
func (p Payload) Decode(v any) error {
	if p.IsEmpty() {
		return nil
	}
	return json.Unmarshal(p.raw, v)
}

// String returns the body as text.
func (p Payload) String() string {
	return string(p.raw)
}

// MarshalJSON embeds the body verbatim when it is JSON, and as a string
// otherwise.
func (p Payload) MarshalJSON() ([]byte, error) {
	switch {
	case p.IsEmpty():
		return []byte("null"), nil
	case p.IsJSON():
		return p.raw, nil
	default:
		return json.Marshal(string(p.raw))
	}
}

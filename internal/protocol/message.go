package protocol

import "encoding/json"

// Message is one JSON document carried as a single frame payload. The wire
// protocol is schemaless: commands are plain objects discriminated by their
// "cmd" field.
type Message map[string]any

// Cmd returns the dispatch tag, or "" when the message carries none.
func (m Message) Cmd() string {
	v, ok := m["cmd"].(string)
	if !ok {
		return ""
	}
	return v
}

// StringField returns the named field when it is a string.
func (m Message) StringField(key string) (string, bool) {
	v, ok := m[key].(string)
	return v, ok
}

// IntField returns the named field as an int64. JSON numbers decode as
// float64, so both forms are accepted.
func (m Message) IntField(key string) (int64, bool) {
	switch v := m[key].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// BoolField returns the named field when it is a boolean.
func (m Message) BoolField(key string) (bool, bool) {
	v, ok := m[key].(bool)
	return v, ok
}

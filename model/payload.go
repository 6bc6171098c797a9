// Package model contains the data structures exchanged by the pglisten session:
// notifications, their optional payloads and the journal records derived from them.
package model

import "encoding/json"

// Payload is an optional notification payload.
//
// The zero value is an absent payload. An absent payload is distinct from a
// present payload whose value is nil: NOTIFY with no payload argument versus
// NOTIFY carrying the serialization of nil ("null" with the JSON codec).
type Payload struct {
	value   any
	present bool
}

// PayloadOf returns a present payload holding v.
func PayloadOf(v any) Payload {
	return Payload{value: v, present: true}
}

// NoPayload returns an absent payload.
func NoPayload() Payload {
	return Payload{}
}

// Value returns the payload value and whether it is present.
func (p Payload) Value() (any, bool) {
	return p.value, p.present
}

// IsPresent reports whether the payload carries a value.
func (p Payload) IsPresent() bool {
	return p.present
}

// Get returns the payload value, or nil when absent.
func (p Payload) Get() any {
	return p.value
}

// MarshalJSON encodes the payload value, or null when absent.
func (p Payload) MarshalJSON() ([]byte, error) {
	if !p.present {
		return []byte("null"), nil
	}
	return json.Marshal(p.value)
}

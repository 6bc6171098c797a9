package pglisten

import "encoding/json"

// ParseFunc decodes a non-empty notification payload.
type ParseFunc func(raw string) (any, error)

// SerializeFunc encodes a NOTIFY payload.
type SerializeFunc func(v any) (string, error)

// JSONParse is the default ParseFunc. Objects decode to map[string]any,
// arrays to []any and numbers to float64.
func JSONParse(raw string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, err
	}
	return v, nil
}

// JSONSerialize is the default SerializeFunc.
func JSONSerialize(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// RawParse returns the payload text unchanged.
func RawParse(raw string) (any, error) {
	return raw, nil
}

package models

import (
	"encoding/json"
	"fmt"
)

// Field values are serialized to a {kind, value} envelope before
// encryption so that the scalar type survives the ciphertext round trip.
type envelope struct {
	Kind  string          `json:"kind"`
	Value json.RawMessage `json:"value"`
}

const (
	kindString = "string"
	kindInt    = "int"
	kindFloat  = "float"
	kindBool   = "bool"
)

// EncodeField serializes a scalar field value into its envelope form.
func EncodeField(v any) (string, error) {
	var kind string
	switch n := v.(type) {
	case string:
		kind = kindString
	case bool:
		kind = kindBool
	case int:
		kind = kindInt
		v = int64(n)
	case int64:
		kind = kindInt
	case float64:
		kind = kindFloat
	default:
		return "", fmt.Errorf("unsupported field type %T", v)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshaling field value: %w", err)
	}
	data, err := json.Marshal(envelope{Kind: kind, Value: raw})
	if err != nil {
		return "", fmt.Errorf("marshaling envelope: %w", err)
	}
	return string(data), nil
}

// DecodeField restores a scalar from its envelope form. Callers are
// expected to fall back to the raw string when this fails.
func DecodeField(s string) (any, error) {
	var env envelope
	if err := json.Unmarshal([]byte(s), &env); err != nil {
		return nil, fmt.Errorf("unmarshaling envelope: %w", err)
	}
	switch env.Kind {
	case kindString:
		var v string
		if err := json.Unmarshal(env.Value, &v); err != nil {
			return nil, fmt.Errorf("unmarshaling string value: %w", err)
		}
		return v, nil
	case kindInt:
		var v int64
		if err := json.Unmarshal(env.Value, &v); err != nil {
			return nil, fmt.Errorf("unmarshaling int value: %w", err)
		}
		return v, nil
	case kindFloat:
		var v float64
		if err := json.Unmarshal(env.Value, &v); err != nil {
			return nil, fmt.Errorf("unmarshaling float value: %w", err)
		}
		return v, nil
	case kindBool:
		var v bool
		if err := json.Unmarshal(env.Value, &v); err != nil {
			return nil, fmt.Errorf("unmarshaling bool value: %w", err)
		}
		return v, nil
	}
	return nil, fmt.Errorf("unknown field kind %q", env.Kind)
}

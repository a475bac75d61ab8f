// Package flexjson provides permissive JSON scalar types for the timer wire
// protocol. Device firmwares and older dashboard builds disagree on how they
// encode booleans and numbers (true vs 1 vs "1"), so every field that crosses
// the wire uses these types instead of ad-hoc per-field coercion.
package flexjson

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Bool accepts true/false, 0/1, 0.0/1.0, "true"/"false", "1"/"0" and
// marshals back as a plain JSON boolean.
type Bool bool

// UnmarshalJSON implements json.Unmarshaler.
func (b *Bool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	switch data[0] {
	case 't', 'f':
		var v bool
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*b = Bool(v)
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*b = Bool(strings.EqualFold(s, "true") || s == "1")
		return nil
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("coercing %q to bool: %w", data, err)
		}
		*b = n == 1
		return nil
	}
}

// MarshalJSON implements json.Marshaler.
func (b Bool) MarshalJSON() ([]byte, error) {
	return json.Marshal(bool(b))
}

// Int accepts integers, floats with no fractional interest, and numeric
// strings. Marshals back as a plain JSON number.
type Int int

// UnmarshalJSON implements json.Unmarshaler.
func (i *Int) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return fmt.Errorf("coercing %q to int: %w", s, err)
		}
		*i = Int(v)
		return nil
	}

	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("coercing %q to int: %w", data, err)
	}
	*i = Int(n)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (i Int) MarshalJSON() ([]byte, error) {
	return json.Marshal(int(i))
}

// Float accepts floats, integers, and numeric strings. Marshals back as a
// plain JSON number.
type Float float64

// UnmarshalJSON implements json.Unmarshaler.
func (f *Float) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return fmt.Errorf("coercing %q to float: %w", s, err)
		}
		*f = Float(v)
		return nil
	}

	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("coercing %q to float: %w", data, err)
	}
	*f = Float(n)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (f Float) MarshalJSON() ([]byte, error) {
	return json.Marshal(float64(f))
}

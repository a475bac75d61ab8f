// Package models provides request and response models for the table timer
// API. Field names match the device wire protocol and are load-bearing:
// hardware units parse them byte for byte.
package models

import (
	"fmt"
	"strconv"
	"time"
)

// Timestamp is a helper type for time.Time rendered as RFC3339.
type Timestamp time.Time

// MarshalJSON implements json.Marshaler for Timestamp.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Time(t).Format(time.RFC3339) + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler for Timestamp.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("timestamp must be an RFC3339 string, got %s", data)
	}
	s := string(data[1 : len(data)-1])
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return err
	}
	*t = Timestamp(parsed)
	return nil
}

// Time returns the underlying time.Time.
func (t Timestamp) Time() time.Time {
	return time.Time(t)
}

// Millis is a time.Time rendered as milliseconds since the Unix epoch, the
// format the original dashboard clients expect for call timestamps.
type Millis time.Time

// MarshalJSON implements json.Marshaler for Millis.
func (m Millis) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(time.Time(m).UnixMilli(), 10)), nil
}

// UnmarshalJSON implements json.Unmarshaler for Millis.
func (m *Millis) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	ms, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return err
	}
	*m = Millis(time.UnixMilli(ms))
	return nil
}

// Time returns the underlying time.Time.
func (m Millis) Time() time.Time {
	return time.Time(m)
}

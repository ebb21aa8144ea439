package models

import (
	"fmt"
	"strings"
	"time"
)

// localTimeLayout is the wall-clock layout used for capture timestamps.
// Capture times carry no UTC offset; the IANA timezone is stored alongside.
const localTimeLayout = "2006-01-02T15:04:05"

// LocalTime is a wall-clock timestamp without offset, serialized as
// "2006-01-02T15:04:05".
type LocalTime struct {
	time.Time
}

// NewLocalTime truncates t to second precision and drops its location.
func NewLocalTime(t time.Time) LocalTime {
	return LocalTime{time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)}
}

// ParseLocalTime parses a wall-clock timestamp string.
func ParseLocalTime(s string) (LocalTime, error) {
	t, err := time.Parse(localTimeLayout, s)
	if err != nil {
		return LocalTime{}, fmt.Errorf("invalid local timestamp '%s': %w", s, err)
	}
	return LocalTime{t}, nil
}

// Date returns the calendar date portion as YYYY-MM-DD.
func (lt LocalTime) Date() string {
	return lt.Format("2006-01-02")
}

// MarshalJSON implements json.Marshaler.
func (lt LocalTime) MarshalJSON() ([]byte, error) {
	return []byte(`"` + lt.Format(localTimeLayout) + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (lt *LocalTime) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*lt = LocalTime{}
		return nil
	}
	parsed, err := ParseLocalTime(s)
	if err != nil {
		return err
	}
	*lt = parsed
	return nil
}

// Package timex contains small time helpers shared by configuration loaders.
package timex

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"
)

// Duration wraps time.Duration so configuration files can specify intervals
// either as strings like "30m" or as integer nanoseconds.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		var err error
		d.Duration, err = ParseDuration(value)
		return err
	default:
		return errors.New("invalid duration")
	}
}

// ParseDuration accepts the same forms as Duration: a Go duration string
// or a plain integer number of nanoseconds.
func ParseDuration(s string) (time.Duration, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(n), nil
	}
	return time.ParseDuration(s)
}

// UnixMilli converts a millisecond timestamp to time.Time in UTC.
func UnixMilli(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

package protocol

import (
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// TimeFormat is the second-precision UTC layout used on the wire.
const TimeFormat = "2006-01-02T15:04:05"

// MaxTime is the largest representable point in time on the wire.
var MaxTime = time.Unix(1<<32-1, 0).UTC()

// Time is a second-precision timestamp serialized without a zone suffix.
type Time struct {
	time.Time
}

func NewTime(t time.Time) Time {
	return Time{Time: t.UTC().Truncate(time.Second)}
}

// ParseTime accepts the wire layout, with or without a trailing "Z".
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSuffix(s, "Z")
	t, err := time.ParseInLocation(TimeFormat, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: %w", s, err)
	}
	return t, nil
}

func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`"1970-01-01T00:00:00"`), nil
	}
	return []byte(`"` + t.UTC().Format(TimeFormat) + `"`), nil
}

func (t *Time) UnmarshalJSON(data []byte) error {
	var s string
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("time must be a string: %w", err)
	}
	parsed, err := ParseTime(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

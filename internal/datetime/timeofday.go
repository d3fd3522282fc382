package datetime

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

const (
	MinutesPerDay   = 24 * 60
	timeOfDayLayout = "15:04"
)

// TimeOfDay is a wall-clock time measured in minutes since midnight.
// 24:00 is allowed so a venue can close at midnight.
type TimeOfDay int

// NewTimeOfDay builds a TimeOfDay from hour and minute components.
func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// ParseTimeOfDay accepts "HH:MM", "H:MM", "HH:MM:SS" and "3:04 PM".
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("time of day is required")
	}
	if raw == "24:00" || raw == "24:00:00" {
		return TimeOfDay(MinutesPerDay), nil
	}
	for _, layout := range []string{timeOfDayLayout, "15:04:05", "3:04 PM", "3:04PM"} {
		parsed, err := time.Parse(layout, strings.ToUpper(raw))
		if err == nil {
			return NewTimeOfDay(parsed.Hour(), parsed.Minute()), nil
		}
	}
	return 0, fmt.Errorf("invalid time of day %q: must be HH:MM", raw)
}

// TimeOfDayOf returns the wall-clock time of t in loc.
func TimeOfDayOf(t time.Time, loc *time.Location) TimeOfDay {
	if loc != nil {
		t = t.In(loc)
	}
	return NewTimeOfDay(t.Hour(), t.Minute())
}

func (t TimeOfDay) Minutes() int { return int(t) }
func (t TimeOfDay) Hour() int    { return int(t) / 60 }
func (t TimeOfDay) Minute() int  { return int(t) % 60 }

func (t TimeOfDay) Add(minutes int) TimeOfDay {
	return t + TimeOfDay(minutes)
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// On returns the instant t occurs on d in loc.
func (t TimeOfDay) On(d Date, loc *time.Location) time.Time {
	return d.In(loc).Add(time.Duration(t) * time.Minute)
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(text []byte) error {
	parsed, err := ParseTimeOfDay(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Scan stores "HH:MM" text columns; integer columns are read as minutes.
func (t *TimeOfDay) Scan(src any) error {
	switch typed := src.(type) {
	case nil:
		*t = 0
		return nil
	case int64:
		*t = TimeOfDay(typed)
		return nil
	case []byte:
		return t.UnmarshalText(typed)
	case string:
		return t.UnmarshalText([]byte(typed))
	case time.Time:
		*t = NewTimeOfDay(typed.Hour(), typed.Minute())
		return nil
	default:
		return fmt.Errorf("cannot scan %T into TimeOfDay", src)
	}
}

func (t TimeOfDay) Value() (driver.Value, error) {
	return t.String(), nil
}

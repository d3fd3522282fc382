// Package datetime holds the civil date and time-of-day types shared by the
// scheduling packages. Dates carry no location: bucketing compares year, month
// and day, so a bare "2024-06-15" never shifts when the process runs in a
// different time zone.
package datetime

import (
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar day without a time or location.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate returns a normalized date, so NewDate(2024, 2, 30) is 2024-03-01.
func NewDate(year int, month time.Month, day int) Date {
	return fromUTC(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf returns the calendar day t falls on in loc. A nil loc uses t's own location.
func DateOf(t time.Time, loc *time.Location) Date {
	if loc != nil {
		t = t.In(loc)
	}
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate reads the date portion of an ISO 8601 string. Both "2024-06-15" and
// "2024-06-15T10:00:00Z" yield 2024-06-15; the time part is ignored on purpose.
func ParseDate(raw string) (Date, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) < len(dateLayout) {
		return Date{}, fmt.Errorf("invalid date %q", raw)
	}
	head := raw[:len(dateLayout)]
	if len(raw) > len(dateLayout) {
		switch raw[len(dateLayout)] {
		case 'T', 't', ' ':
		default:
			return Date{}, fmt.Errorf("invalid date %q", raw)
		}
	}
	parsed, err := time.Parse(dateLayout, head)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", raw, err)
	}
	return fromUTC(parsed), nil
}

func fromUTC(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) utc() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.utc().Format(dateLayout)
}

// In returns midnight of d in loc.
func (d Date) In(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d Date) AddDays(n int) Date {
	return NewDate(d.Year, d.Month, d.Day+n)
}

func (d Date) AddMonths(n int) Date {
	// Clamp to the last day of the target month instead of overflowing into the next.
	first := NewDate(d.Year, d.Month+time.Month(n), 1)
	last := EndOfMonth(first)
	if d.Day > last.Day {
		return last
	}
	return Date{Year: first.Year, Month: first.Month, Day: d.Day}
}

func (d Date) Weekday() time.Weekday {
	return d.utc().Weekday()
}

// Compare returns -1, 0 or +1.
func (d Date) Compare(other Date) int {
	switch {
	case d.Year != other.Year:
		return cmpInt(d.Year, other.Year)
	case d.Month != other.Month:
		return cmpInt(int(d.Month), int(other.Month))
	default:
		return cmpInt(d.Day, other.Day)
	}
}

func (d Date) Before(other Date) bool { return d.Compare(other) < 0 }
func (d Date) After(other Date) bool  { return d.Compare(other) > 0 }
func (d Date) Equal(other Date) bool  { return d == other }

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// DaysBetween returns the number of days from a to b; negative when b is before a.
func DaysBetween(a, b Date) int {
	return int(b.utc().Sub(a.utc()).Hours() / 24)
}

// StartOfWeek returns the Sunday on or before d.
func StartOfWeek(d Date) Date {
	return d.AddDays(-int(d.Weekday()))
}

// EndOfWeek returns the Saturday on or after d.
func EndOfWeek(d Date) Date {
	return StartOfWeek(d).AddDays(6)
}

func StartOfMonth(d Date) Date {
	return Date{Year: d.Year, Month: d.Month, Day: 1}
}

func EndOfMonth(d Date) Date {
	return NewDate(d.Year, d.Month+1, 0)
}

func SameMonth(a, b Date) bool {
	return a.Year == b.Year && a.Month == b.Month
}

// SameWeek reports whether a and b share a Sunday-start week.
func SameWeek(a, b Date) bool {
	return StartOfWeek(a) == StartOfWeek(b)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

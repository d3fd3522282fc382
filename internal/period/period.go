// Package period resolves the visible date range of each calendar view and
// groups bookings into calendar days.
package period

import (
	"fmt"
	"strings"

	"github.com/codr1/venuecal/internal/datetime"
)

type ViewType string

const (
	Month ViewType = "month"
	Week  ViewType = "week"
	Day   ViewType = "day"
	List  ViewType = "list"
)

func ParseViewType(raw string) (ViewType, error) {
	switch v := ViewType(strings.ToLower(strings.TrimSpace(raw))); v {
	case Month, Week, Day, List:
		return v, nil
	}
	return "", fmt.Errorf("unknown view type %q", raw)
}

func (v ViewType) Valid() bool {
	_, err := ParseViewType(string(v))
	return err == nil
}

// Range is an inclusive span of calendar days.
type Range struct {
	Start datetime.Date `json:"start"`
	End   datetime.Date `json:"end"`
}

func (r Range) Len() int {
	if r.End.Before(r.Start) {
		return 0
	}
	return datetime.DaysBetween(r.Start, r.End) + 1
}

func (r Range) Days() []datetime.Date {
	n := r.Len()
	days := make([]datetime.Date, 0, n)
	for i := 0; i < n; i++ {
		days = append(days, r.Start.AddDays(i))
	}
	return days
}

func (r Range) Contains(d datetime.Date) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

// Midpoint is the middle day of the range. For every range ResolveRange
// produces it lies in the anchor's month, week or day.
func (r Range) Midpoint() datetime.Date {
	return r.Start.AddDays(datetime.DaysBetween(r.Start, r.End) / 2)
}

func (r Range) String() string {
	return r.Start.String() + ".." + r.End.String()
}

// ResolveRange returns the days a view shows around anchor. Month and list
// views cover whole Sunday-start weeks so the grid has complete rows.
func ResolveRange(view ViewType, anchor datetime.Date) Range {
	switch view {
	case Week:
		return Range{Start: datetime.StartOfWeek(anchor), End: datetime.EndOfWeek(anchor)}
	case Day:
		return Range{Start: anchor, End: anchor}
	default:
		return Range{
			Start: datetime.StartOfWeek(datetime.StartOfMonth(anchor)),
			End:   datetime.EndOfWeek(datetime.EndOfMonth(anchor)),
		}
	}
}

type Direction int

const (
	Prev Direction = -1
	Next Direction = 1
)

func ParseDirection(raw string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "prev", "previous", "back", "-1":
		return Prev, nil
	case "next", "forward", "1", "+1":
		return Next, nil
	}
	return 0, fmt.Errorf("unknown direction %q", raw)
}

// Navigate moves anchor by one view-sized step.
func Navigate(view ViewType, anchor datetime.Date, dir Direction) datetime.Date {
	step := int(dir)
	switch view {
	case Week:
		return anchor.AddDays(7 * step)
	case Day:
		return anchor.AddDays(step)
	default:
		return anchor.AddMonths(step)
	}
}

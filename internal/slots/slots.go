// Package slots turns a venue's operating window into a time axis of fixed
// slots and maps booking ranges onto that axis.
package slots

import (
	"github.com/codr1/venuecal/internal/datetime"
	"github.com/codr1/venuecal/internal/venue"
)

// Slot is one row of the time axis.
type Slot struct {
	Time         datetime.TimeOfDay `json:"time"`
	StartMinutes int                `json:"startMinutes"`
	Hour         int                `json:"hour"`
	Minute       int                `json:"minute"`
}

// Options apply when no single concrete venue drives the axis.
type Options struct {
	StartHour             int
	EndHour               int
	CustomIntervalMinutes int
}

func DefaultOptions() Options {
	return Options{StartHour: venue.DefaultOpenHour, EndHour: venue.DefaultCloseHour}
}

// Axis is a half-open minute window [StartMinutes, EndMinutes) cut into
// Interval-minute slots.
type Axis struct {
	StartMinutes int `json:"startMinutes"`
	EndMinutes   int `json:"endMinutes"`
	Interval     int `json:"interval"`
}

// AxisFor resolves the axis for a concrete venue, or for "all"/"custom" when v is nil.
func AxisFor(v *venue.Venue, opts Options) Axis {
	if v == nil {
		interval := opts.CustomIntervalMinutes
		if interval <= 0 {
			interval = venue.DefaultSlotIntervalMinutes
		}
		start, end := opts.StartHour, opts.EndHour
		if start < 0 || end > 24 || start >= end {
			start, end = venue.DefaultOpenHour, venue.DefaultCloseHour
		}
		return Axis{StartMinutes: start * 60, EndMinutes: end * 60, Interval: interval}
	}

	normalized := venue.Normalize(*v, nil)
	return Axis{
		StartMinutes: normalized.OpenTime.Hour() * 60,
		EndMinutes:   normalized.CloseTime.Hour() * 60,
		Interval:     normalized.Interval(),
	}
}

// Count is the number of whole slots on the axis; a partial trailing slot is dropped.
func (a Axis) Count() int {
	if a.Interval <= 0 || a.EndMinutes <= a.StartMinutes {
		return 0
	}
	return (a.EndMinutes - a.StartMinutes) / a.Interval
}

func (a Axis) Slots() []Slot {
	count := a.Count()
	out := make([]Slot, 0, count)
	for i := 0; i < count; i++ {
		minutes := a.StartMinutes + i*a.Interval
		tod := datetime.TimeOfDay(minutes)
		out = append(out, Slot{
			Time:         tod,
			StartMinutes: minutes,
			Hour:         tod.Hour(),
			Minute:       tod.Minute(),
		})
	}
	return out
}

// Generate returns the ordered slots for v. See AxisFor for how v and opts combine.
func Generate(v *venue.Venue, opts Options) []Slot {
	return AxisFor(v, opts).Slots()
}

// CommonInterval is the smallest valid slot interval among venues, so bookings
// on every venue align to one shared grid.
func CommonInterval(venues []venue.Venue) int {
	common := 0
	for _, v := range venues {
		if v.SlotIntervalMinutes <= 0 {
			continue
		}
		if common == 0 || v.SlotIntervalMinutes < common {
			common = v.SlotIntervalMinutes
		}
	}
	if common == 0 {
		return venue.DefaultSlotIntervalMinutes
	}
	return common
}

// ForVenues resolves the shared axis for the venues currently on screen. One
// venue yields that venue's own axis; several use the common interval over the
// union of their operating hours.
func ForVenues(venues []venue.Venue) Axis {
	switch len(venues) {
	case 0:
		return AxisFor(nil, DefaultOptions())
	case 1:
		return AxisFor(&venues[0], Options{})
	}

	opts := Options{StartHour: 24, EndHour: 0, CustomIntervalMinutes: CommonInterval(venues)}
	for _, v := range venues {
		n := venue.Normalize(v, nil)
		if h := n.OpenTime.Hour(); h < opts.StartHour {
			opts.StartHour = h
		}
		if h := n.CloseTime.Hour(); h > opts.EndHour {
			opts.EndHour = h
		}
	}
	return AxisFor(nil, opts)
}

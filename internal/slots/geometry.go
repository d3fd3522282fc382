package slots

import (
	"time"

	"github.com/codr1/venuecal/internal/booking"
	"github.com/codr1/venuecal/internal/datetime"
	"github.com/codr1/venuecal/internal/venue"
)

const (
	DefaultSlotHeight = 48
	DefaultMinHeight  = 36
)

// Geometry converts minutes into pixel offsets for a timeline column.
type Geometry struct {
	SlotHeight float64
	// MinHeight keeps short bookings tall enough to click.
	MinHeight float64
}

func DefaultGeometry() Geometry {
	return Geometry{SlotHeight: DefaultSlotHeight, MinHeight: DefaultMinHeight}
}

type Placement struct {
	Top    float64 `json:"top"`
	Height float64 `json:"height"`
}

// Place positions the minute range [startMinutes, endMinutes) on axis.
func (g Geometry) Place(startMinutes, endMinutes int, axis Axis) Placement {
	interval := axis.Interval
	if interval <= 0 {
		interval = venue.DefaultSlotIntervalMinutes
	}
	top := float64(startMinutes-axis.StartMinutes) / float64(interval) * g.SlotHeight
	height := float64(endMinutes-startMinutes) / float64(interval) * g.SlotHeight
	if height < g.MinHeight {
		height = g.MinHeight
	}
	return Placement{Top: top, Height: height}
}

// PlaceBooking positions b within day; parts of the booking outside the day are clipped.
func (g Geometry) PlaceBooking(b booking.Booking, day datetime.Date, loc *time.Location, axis Axis) Placement {
	start, end := MinutesWithin(b.StartAt, b.EndAt, day, loc)
	return g.Place(start, end, axis)
}

// Height is the full column height for axis.
func (g Geometry) Height(axis Axis) float64 {
	return float64(axis.Count()) * g.SlotHeight
}

// MinutesWithin projects [start, end) onto day as minutes since midnight,
// clipped to [0, 1440].
func MinutesWithin(start, end time.Time, day datetime.Date, loc *time.Location) (int, int) {
	midnight := day.In(loc)
	s := int(start.Sub(midnight) / time.Minute)
	e := int(end.Sub(midnight) / time.Minute)
	return clampMinutes(s), clampMinutes(e)
}

func clampMinutes(m int) int {
	switch {
	case m < 0:
		return 0
	case m > datetime.MinutesPerDay:
		return datetime.MinutesPerDay
	}
	return m
}

// Package conflict decides whether a slot or a free-form time range on one
// venue-day collides with existing bookings. Ranges are half-open, so a booking
// ending at 11:00 does not block a slot starting at 11:00.
package conflict

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/codr1/venuecal/internal/booking"
	"github.com/codr1/venuecal/internal/datetime"
	"github.com/codr1/venuecal/internal/slots"
)

// Interval is [Start, End) in minutes since midnight.
type Interval struct {
	Start     int    `json:"start"`
	End       int    `json:"end"`
	BookingID string `json:"bookingId,omitempty"`
}

func (i Interval) Valid() bool {
	return i.Start < i.End
}

// Overlaps reports whether a and b share at least one minute.
func Overlaps(a, b Interval) bool {
	return !(b.End <= a.Start || b.Start >= a.End)
}

// IsSlotAvailable reports whether [slotStart, slotStart+interval) is free.
// A non-positive interval is treated as the default.
func IsSlotAvailable(slotStart datetime.TimeOfDay, interval int, busy []Interval) bool {
	if interval <= 0 {
		interval = defaultInterval
	}
	candidate := Interval{Start: slotStart.Minutes(), End: slotStart.Minutes() + interval}
	return CanPlace(candidate, busy, "")
}

// IsSlotAvailableAt parses raw as a time of day first. An unparsable value
// cannot be compared against anything and is reported as available.
func IsSlotAvailableAt(raw string, interval int, busy []Interval, logger *zerolog.Logger) bool {
	start, err := datetime.ParseTimeOfDay(raw)
	if err != nil {
		if logger != nil {
			logger.Warn().Err(err).Str("slot_start", raw).Msg("Unparsable slot start, treating slot as available")
		}
		return true
	}
	return IsSlotAvailable(start, interval, busy)
}

// CanPlace reports whether candidate fits without touching any busy interval.
// The interval belonging to excludeID is ignored so a booking being edited does
// not collide with itself.
func CanPlace(candidate Interval, busy []Interval, excludeID string) bool {
	return len(Conflicts(candidate, busy, excludeID)) == 0
}

// Conflicts returns the busy intervals candidate overlaps.
func Conflicts(candidate Interval, busy []Interval, excludeID string) []Interval {
	var hits []Interval
	for _, b := range busy {
		if excludeID != "" && b.BookingID == excludeID {
			continue
		}
		if Overlaps(candidate, b) {
			hits = append(hits, b)
		}
	}
	return hits
}

// DeriveEnd returns the end of a range that starts at start and lasts interval minutes.
func DeriveEnd(start datetime.TimeOfDay, interval int) datetime.TimeOfDay {
	if interval <= 0 {
		interval = defaultInterval
	}
	return start.Add(interval)
}

// BusyIntervals projects the bookings of venueID onto day. Bookings that no
// longer hold their range (cancelled, expired) are skipped, and malformed ones
// are logged and left out instead of failing the whole check.
func BusyIntervals(bookings []booking.Booking, venueID string, day datetime.Date, loc *time.Location, logger *zerolog.Logger) []Interval {
	var busy []Interval
	for _, b := range bookings {
		if venueID != "" && b.VenueID != venueID {
			continue
		}
		if !b.Status.Occupies() {
			continue
		}
		if !b.Valid() {
			if logger != nil {
				logger.Warn().
					Str("booking_id", b.ID).
					Str("venue_id", b.VenueID).
					Time("start_at", b.StartAt).
					Time("end_at", b.EndAt).
					Msg("Malformed booking excluded from conflict check")
			}
			continue
		}
		start, end := slots.MinutesWithin(b.StartAt, b.EndAt, day, loc)
		interval := Interval{Start: start, End: end, BookingID: b.ID}
		if !interval.Valid() {
			continue
		}
		busy = append(busy, interval)
	}
	return busy
}

// SlotState is a slot annotated with its availability.
type SlotState struct {
	slots.Slot
	Available bool   `json:"available"`
	BookedBy  string `json:"bookedBy,omitempty"`
}

// Annotate marks each slot on axis as available or taken.
func Annotate(axis slots.Axis, busy []Interval) []SlotState {
	all := axis.Slots()
	out := make([]SlotState, 0, len(all))
	for _, s := range all {
		state := SlotState{Slot: s, Available: true}
		hits := Conflicts(Interval{Start: s.StartMinutes, End: s.StartMinutes + axis.Interval}, busy, "")
		if len(hits) > 0 {
			state.Available = false
			state.BookedBy = hits[0].BookingID
		}
		out = append(out, state)
	}
	return out
}

const defaultInterval = 30

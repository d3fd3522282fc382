package calendar

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/codr1/venuecal/internal/booking"
	"github.com/codr1/venuecal/internal/conflict"
	"github.com/codr1/venuecal/internal/datetime"
	"github.com/codr1/venuecal/internal/period"
	"github.com/codr1/venuecal/internal/slots"
	"github.com/codr1/venuecal/internal/venue"
	"github.com/codr1/venuecal/internal/viewstate"
)

// PlacedBooking is a booking positioned on a time axis.
type PlacedBooking struct {
	booking.Booking
	slots.Placement
	Editing bool `json:"editing"`
}

// SlotCell is one clickable row of a timeline column.
type SlotCell struct {
	conflict.SlotState
	Clickable bool `json:"clickable"`
}

// Column is one venue on the day timeline.
type Column struct {
	Venue venue.Venue `json:"venue"`
	// Missing is set when the venue is not in the loaded list and the column
	// was drawn with default hours.
	Missing  bool            `json:"missing,omitempty"`
	Axis     slots.Axis      `json:"axis"`
	Height   float64         `json:"height"`
	Slots    []SlotCell      `json:"slots"`
	Bookings []PlacedBooking `json:"bookings"`
}

type Timeline struct {
	Date    datetime.Date `json:"date"`
	Columns []Column      `json:"columns"`
}

// TimelineInput carries what BuildTimeline needs for one day.
type TimelineInput struct {
	Day       datetime.Date
	Venues    []venue.Venue
	Selection viewstate.Selection
	Bookings  []booking.Booking
	Geometry  slots.Geometry
	EditingID string
	Location  *time.Location
	Logger    *zerolog.Logger
}

// BuildTimeline lays out one column per displayed venue. A booking on a venue
// that is not loaded still gets a column so it never disappears.
func BuildTimeline(in TimelineInput) Timeline {
	loc := in.Location
	if loc == nil {
		loc = time.UTC
	}
	geometry := in.Geometry
	if geometry.SlotHeight <= 0 {
		geometry = slots.DefaultGeometry()
	}

	var ids []string
	seen := make(map[string]bool)
	add := func(id string) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if in.Selection.All {
		for _, v := range in.Venues {
			add(v.ID)
		}
		for _, b := range in.Bookings {
			add(b.VenueID)
		}
	} else {
		for _, id := range in.Selection.IDs {
			add(id)
		}
	}

	resolved := make([]venue.Venue, len(ids))
	missing := make([]bool, len(ids))
	for i, id := range ids {
		_, found := venue.Find(in.Venues, id)
		resolved[i] = venue.Resolve(in.Venues, id, in.Logger)
		missing[i] = !found
	}
	// Several columns share one grid so their bookings line up row for row.
	axis := slots.ForVenues(resolved)

	tl := Timeline{Date: in.Day, Columns: make([]Column, 0, len(ids))}
	for i, id := range ids {
		v := resolved[i]
		busy := conflict.BusyIntervals(in.Bookings, id, in.Day, loc, in.Logger)

		col := Column{
			Venue:   v,
			Missing: missing[i],
			Axis:    axis,
			Height:  geometry.Height(axis),
		}
		for _, st := range conflict.Annotate(axis, busy) {
			col.Slots = append(col.Slots, SlotCell{
				SlotState: st,
				Clickable: st.Available && withinHours(v, st.StartMinutes, axis.Interval),
			})
		}
		for _, b := range in.Bookings {
			if b.VenueID != id || !b.Valid() {
				continue
			}
			col.Bookings = append(col.Bookings, PlacedBooking{
				Booking:   b,
				Placement: geometry.PlaceBooking(b, in.Day, loc, axis),
				Editing:   in.EditingID != "" && b.ID == in.EditingID,
			})
		}
		tl.Columns = append(tl.Columns, col)
	}
	return tl
}

// withinHours reports whether a slot starting at start fits inside v's
// whole-hour operating window. Rows of a shared grid outside it are not bookable.
func withinHours(v venue.Venue, start, interval int) bool {
	n := venue.Normalize(v, nil)
	return start >= n.OpenTime.Hour()*60 && start+interval <= n.CloseTime.Hour()*60
}

type WeekDay struct {
	Date     datetime.Date   `json:"date"`
	IsToday  bool            `json:"isToday"`
	Bookings []PlacedBooking `json:"bookings"`
}

// Week shares one axis across its seven day columns.
type Week struct {
	Axis  slots.Axis   `json:"axis"`
	Slots []slots.Slot `json:"slots"`
	Days  []WeekDay    `json:"days"`
}

// BuildWeek places each day's bookings on the axis shared by venues.
func BuildWeek(days []datetime.Date, today datetime.Date, buckets period.Buckets, venues []venue.Venue, geometry slots.Geometry, editingID string, loc *time.Location) Week {
	if loc == nil {
		loc = time.UTC
	}
	if geometry.SlotHeight <= 0 {
		geometry = slots.DefaultGeometry()
	}
	axis := slots.ForVenues(venues)
	week := Week{Axis: axis, Slots: axis.Slots(), Days: make([]WeekDay, 0, len(days))}
	for _, d := range days {
		wd := WeekDay{Date: d, IsToday: d == today}
		for _, b := range buckets[d] {
			wd.Bookings = append(wd.Bookings, PlacedBooking{
				Booking:   b,
				Placement: geometry.PlaceBooking(b, d, loc, axis),
				Editing:   editingID != "" && b.ID == editingID,
			})
		}
		week.Days = append(week.Days, wd)
	}
	return week
}

type MonthCell struct {
	period.Cell
	Bookings []booking.Booking `json:"bookings"`
}

// BuildMonth fills the month grid with each day's bookings.
func BuildMonth(anchor, today datetime.Date, buckets period.Buckets) [][]MonthCell {
	grid := period.MonthGrid(anchor, today)
	out := make([][]MonthCell, 0, len(grid))
	for _, row := range grid {
		cells := make([]MonthCell, 0, len(row))
		for _, c := range row {
			cells = append(cells, MonthCell{Cell: c, Bookings: buckets[c.Date]})
		}
		out = append(out, cells)
	}
	return out
}

func BuildList(buckets period.Buckets, days []datetime.Date) []period.ListGroup {
	return period.GroupForList(buckets, days)
}

// Timeline lays out the anchor day of the snapshot.
func (s *Session) Timeline(snap Snapshot) Timeline {
	day := snap.State.AnchorDate
	return BuildTimeline(TimelineInput{
		Day:       day,
		Venues:    snap.Venues,
		Selection: snap.State.SelectedVenues,
		Bookings:  snap.BookingsByDay[day],
		Geometry:  s.geometry,
		EditingID: snap.EditingID,
		Location:  s.loc,
		Logger:    &s.logger,
	})
}

// Week lays out the snapshot's days against the axis of the displayed venues.
func (s *Session) Week(snap Snapshot) Week {
	return BuildWeek(snap.Days, snap.Today, snap.BookingsByDay, displayedVenues(snap), s.geometry, snap.EditingID, s.loc)
}

func (s *Session) Month(snap Snapshot) [][]MonthCell {
	return BuildMonth(snap.State.AnchorDate, snap.Today, snap.BookingsByDay)
}

func (s *Session) List(snap Snapshot) []period.ListGroup {
	return BuildList(snap.BookingsByDay, snap.Days)
}

func displayedVenues(snap Snapshot) []venue.Venue {
	sel := snap.State.SelectedVenues
	if sel.All {
		return snap.Venues
	}
	out := make([]venue.Venue, 0, sel.Len())
	for _, v := range snap.Venues {
		if sel.Contains(v.ID) {
			out = append(out, v)
		}
	}
	return out
}

package calendar

import (
	"github.com/codr1/venuecal/internal/booking"
	"github.com/codr1/venuecal/internal/datetime"
	"github.com/codr1/venuecal/internal/fetchpolicy"
	"github.com/codr1/venuecal/internal/period"
	"github.com/codr1/venuecal/internal/venue"
	"github.com/codr1/venuecal/internal/viewstate"
)

// Snapshot is a consistent read of a session for one render.
type Snapshot struct {
	State    viewstate.State
	Phase    Phase
	Range    period.Range
	Today    datetime.Date
	Days     []datetime.Date
	Bookings []booking.Booking
	// BookingsByDay has an entry for every day of Range, sorted by start.
	BookingsByDay     period.Buckets
	EventCountByVenue map[string]int
	Venues            []venue.Venue
	Notice            *Notice
	EditingID         string
	// Stale is set when the held bookings were fetched for a different view
	// than the one requested, after a failed fetch.
	Stale bool
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	state := s.state
	held := s.bookings
	venues := append([]venue.Venue(nil), s.venueList...)
	descriptor := s.descriptor
	editing := s.editingID
	var notice *Notice
	if s.notice != nil {
		n := *s.notice
		notice = &n
	}
	phase := PhaseCached
	switch {
	case s.fetching:
		phase = PhaseFetching
	case descriptor == nil:
		phase = PhaseUninitialized
	}
	s.mu.Unlock()

	req := fetchpolicy.NewRequest(state)
	rng := req.Range()
	days := rng.Days()

	// The held set may predate the selection when the last fetch failed, so
	// a concrete selection always narrows locally too.
	visible := held
	if sel := state.SelectedVenues; !sel.All && sel.Len() > 0 {
		visible = period.FilterByVenues(held, sel.IDs)
	}
	buckets := period.BucketByDay(visible, days, s.loc)

	inRange := make([]booking.Booking, 0, buckets.Total())
	for _, d := range days {
		inRange = append(inRange, buckets[d]...)
	}

	return Snapshot{
		State:             state,
		Phase:             phase,
		Range:             rng,
		Today:             s.today(),
		Days:              days,
		Bookings:          inRange,
		BookingsByDay:     buckets,
		EventCountByVenue: period.CountByVenue(inRange),
		Venues:            venues,
		Notice:            notice,
		EditingID:         editing,
		Stale:             notice != nil && fetchpolicy.ShouldFetch(descriptor, req),
	}
}

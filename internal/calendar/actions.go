package calendar

import (
	"context"
	"errors"
	"fmt"

	"github.com/codr1/venuecal/internal/booking"
	"github.com/codr1/venuecal/internal/conflict"
	"github.com/codr1/venuecal/internal/datetime"
	"github.com/codr1/venuecal/internal/period"
	"github.com/codr1/venuecal/internal/venue"
	"github.com/codr1/venuecal/internal/viewstate"
)

var ErrSlotUnavailable = errors.New("slot is already booked")

// update applies mutate to the view, persists it and re-evaluates the fetch policy.
func (s *Session) update(ctx context.Context, mutate func(*viewstate.State)) error {
	s.mu.Lock()
	mutate(&s.state)
	state := s.state
	restoring := s.restoring
	s.mu.Unlock()

	if !restoring {
		s.persist(ctx, state)
	}
	return s.refresh(ctx)
}

// Navigate moves the anchor one month, week or day depending on the view.
func (s *Session) Navigate(ctx context.Context, dir period.Direction) error {
	return s.update(ctx, func(st *viewstate.State) {
		st.AnchorDate = period.Navigate(st.ViewType, st.AnchorDate, dir)
	})
}

func (s *Session) GoToToday(ctx context.Context) error {
	today := s.today()
	return s.update(ctx, func(st *viewstate.State) {
		st.AnchorDate = today
	})
}

func (s *Session) GoToDate(ctx context.Context, d datetime.Date) error {
	if d.IsZero() {
		return fmt.Errorf("date is required")
	}
	return s.update(ctx, func(st *viewstate.State) {
		st.AnchorDate = d
	})
}

func (s *Session) SetViewType(ctx context.Context, view period.ViewType) error {
	if !view.Valid() {
		return fmt.Errorf("unknown view type %q", view)
	}
	return s.update(ctx, func(st *viewstate.State) {
		st.ViewType = view
	})
}

func (s *Session) ToggleVenue(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("venue id is required")
	}
	return s.update(ctx, func(st *viewstate.State) {
		st.SelectedVenues = st.SelectedVenues.Toggle(id)
	})
}

func (s *Session) SetSelectedVenues(ctx context.Context, sel viewstate.Selection) error {
	if !sel.All {
		sel = viewstate.Venues(sel.IDs...)
	}
	return s.update(ctx, func(st *viewstate.State) {
		st.SelectedVenues = sel
	})
}

func (s *Session) SelectAllVenues(ctx context.Context) error {
	return s.SetSelectedVenues(ctx, viewstate.AllVenues())
}

func (s *Session) ToggleSidebar(ctx context.Context) error {
	return s.update(ctx, func(st *viewstate.State) {
		st.SidebarExpanded = !st.SidebarExpanded
	})
}

// CreateBooking checks the draft against the held bookings, sends it to the
// backend and re-fetches the period whatever the outcome.
func (s *Session) CreateBooking(ctx context.Context, draft booking.Draft) (booking.Booking, error) {
	created, err := s.mutate(ctx, "create", func() (booking.Booking, error) {
		if err := draft.Validate(); err != nil {
			return booking.Booking{}, err
		}
		if err := s.CheckDraft(draft, ""); err != nil {
			return booking.Booking{}, err
		}
		return s.api.CreateBooking(ctx, draft)
	})
	if err != nil {
		return booking.Booking{}, fmt.Errorf("create booking: %w", err)
	}
	return created, nil
}

func (s *Session) UpdateBooking(ctx context.Context, id string, draft booking.Draft) (booking.Booking, error) {
	updated, err := s.mutate(ctx, "update", func() (booking.Booking, error) {
		if err := draft.Validate(); err != nil {
			return booking.Booking{}, err
		}
		if err := s.CheckDraft(draft, id); err != nil {
			return booking.Booking{}, err
		}
		return s.api.UpdateBooking(ctx, id, draft)
	})
	if err != nil {
		return booking.Booking{}, fmt.Errorf("update booking %s: %w", id, err)
	}
	s.clearEditing(id)
	return updated, nil
}

func (s *Session) DeleteBooking(ctx context.Context, id string) error {
	_, err := s.mutate(ctx, "delete", func() (booking.Booking, error) {
		return booking.Booking{}, s.api.DeleteBooking(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete booking %s: %w", id, err)
	}
	s.clearEditing(id)
	return nil
}

func (s *Session) mutate(ctx context.Context, op string, call func() (booking.Booking, error)) (booking.Booking, error) {
	result, err := call()
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	s.metrics.Mutations.WithLabelValues(op, outcome).Inc()

	// Server-side fields may differ from what was sent, so reload instead of patching.
	if syncErr := s.ForceSync(ctx); syncErr != nil {
		s.logger.Warn().Err(syncErr).Str("op", op).Msg("Failed to refresh bookings after mutation")
	}
	return result, err
}

// CheckDraft reports a ConflictError when draft overlaps a held booking on
// the same venue. excludeID skips the booking being edited.
func (s *Session) CheckDraft(draft booking.Draft, excludeID string) error {
	s.mu.Lock()
	held := s.bookings
	s.mu.Unlock()

	day := datetime.DateOf(draft.StartAt, s.loc)
	busy := conflict.BusyIntervals(held, draft.VenueID, day, s.loc, &s.logger)
	startMin := datetime.TimeOfDayOf(draft.StartAt, s.loc).Minutes()
	endMin := startMin + int(draft.EndAt.Sub(draft.StartAt).Minutes())
	hits := conflict.Conflicts(conflict.Interval{Start: startMin, End: endMin}, busy, excludeID)
	if len(hits) == 0 {
		return nil
	}
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.BookingID)
	}
	return booking.ConflictError{VenueID: draft.VenueID, Start: draft.StartAt, End: draft.EndAt, With: ids}
}

// OnSlotClick returns a draft for the clicked slot, lasting one slot interval
// of the venue. Unknown venues use the default configuration.
func (s *Session) OnSlotClick(venueID string, day datetime.Date, at datetime.TimeOfDay) (booking.Draft, error) {
	s.mu.Lock()
	held := s.bookings
	venues := s.venueList
	s.mu.Unlock()

	v := venue.Resolve(venues, venueID, &s.logger)
	interval := v.Interval()
	busy := conflict.BusyIntervals(held, venueID, day, s.loc, &s.logger)
	if !conflict.IsSlotAvailable(at, interval, busy) {
		return booking.Draft{}, fmt.Errorf("%s %s on venue %s: %w", day, at, venueID, ErrSlotUnavailable)
	}
	return booking.Draft{
		VenueID: venueID,
		StartAt: at.On(day, s.loc),
		EndAt:   conflict.DeriveEnd(at, interval).On(day, s.loc),
		Status:  booking.StatusPending,
	}, nil
}

// OnBookingSelect marks a held booking as the one being edited.
func (s *Session) OnBookingSelect(id string) (booking.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bookings {
		if b.ID == id {
			s.editingID = id
			return b, nil
		}
	}
	return booking.Booking{}, fmt.Errorf("select %s: %w", id, booking.ErrNotFound)
}

// OnBookingDelete deletes the booking and leaves edit mode.
func (s *Session) OnBookingDelete(ctx context.Context, id string) error {
	return s.DeleteBooking(ctx, id)
}

func (s *Session) OnCancelEdit() {
	s.mu.Lock()
	s.editingID = ""
	s.mu.Unlock()
}

func (s *Session) EditingID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editingID
}

func (s *Session) clearEditing(id string) {
	s.mu.Lock()
	if s.editingID == id {
		s.editingID = ""
	}
	s.mu.Unlock()
}

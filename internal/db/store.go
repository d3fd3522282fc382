package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codr1/venuecal/internal/booking"
	"github.com/codr1/venuecal/internal/datetime"
	"github.com/codr1/venuecal/internal/venue"
)

// Store is the SQLite booking backend. It implements booking.API and
// venue.Provider and is the authority on conflicts.
type Store struct {
	db     *DB
	loc    *time.Location
	clock  datetime.Clock
	logger zerolog.Logger
}

type StoreOptions struct {
	// Location maps calendar days onto instants for range queries.
	Location *time.Location
	Clock    datetime.Clock
	Logger   *zerolog.Logger
}

func NewStore(db *DB, opts StoreOptions) *Store {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Clock == nil {
		opts.Clock = datetime.SystemClock()
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Store{
		db:     db,
		loc:    opts.Location,
		clock:  opts.Clock,
		logger: logger.With().Str("component", "booking_store").Logger(),
	}
}

func (s *Store) Location() *time.Location {
	return s.loc
}

func (s *Store) ListVenues(ctx context.Context) ([]venue.Venue, error) {
	return s.db.Queries.ListVenues(ctx)
}

func (s *Store) GetVenue(ctx context.Context, id string) (venue.Venue, error) {
	return s.db.Queries.GetVenue(ctx, id)
}

// PutVenue creates or replaces a venue. Inconsistent hours or intervals are
// stored as given; readers apply the defaults.
func (s *Store) PutVenue(ctx context.Context, v venue.Venue) (venue.Venue, error) {
	v.ID = strings.TrimSpace(v.ID)
	if v.ID == "" {
		return venue.Venue{}, fmt.Errorf("venue id is required")
	}
	if strings.TrimSpace(v.Name) == "" {
		v.Name = v.ID
	}
	if err := s.db.Queries.UpsertVenue(ctx, v); err != nil {
		return venue.Venue{}, err
	}
	return s.db.Queries.GetVenue(ctx, v.ID)
}

func (s *Store) DeleteVenue(ctx context.Context, id string) error {
	deleted, err := s.db.Queries.DeleteVenue(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return venue.ErrNotFound
	}
	return nil
}

// ListBookingsInRange returns bookings starting on any day in [start, end],
// capped at booking.MaxPageSize.
func (s *Store) ListBookingsInRange(ctx context.Context, start, end datetime.Date, venueID string) ([]booking.Booking, error) {
	if end.Before(start) {
		return nil, booking.ValidationError{Field: "end", Reason: "must not be before start"}
	}
	from := start.In(s.loc)
	to := end.AddDays(1).In(s.loc)
	list, err := s.db.Queries.ListBookingsStartingBetween(ctx, from, to, venueID, booking.MaxPageSize)
	if err != nil {
		return nil, err
	}
	if len(list) == booking.MaxPageSize {
		s.logger.Warn().
			Str("start", start.String()).
			Str("end", end.String()).
			Str("venue_id", venueID).
			Int("limit", booking.MaxPageSize).
			Msg("Booking range hit the page limit, results are truncated")
	}
	return list, nil
}

func (s *Store) GetBooking(ctx context.Context, id string) (booking.Booking, error) {
	return s.db.Queries.GetBooking(ctx, id)
}

func (s *Store) CreateBooking(ctx context.Context, draft booking.Draft) (booking.Booking, error) {
	if err := draft.Validate(); err != nil {
		return booking.Booking{}, err
	}

	now := s.clock.Now()
	created := draft.Apply(booking.Booking{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
	})

	err := s.db.RunInTx(ctx, func(tx *DB) error {
		if err := checkConflicts(ctx, tx, created, ""); err != nil {
			return err
		}
		return tx.Queries.InsertBooking(ctx, created)
	})
	if err != nil {
		return booking.Booking{}, err
	}

	s.logger.Info().
		Str("booking_id", created.ID).
		Str("venue_id", created.VenueID).
		Time("start_at", created.StartAt).
		Msg("Booking created")
	return s.db.Queries.GetBooking(ctx, created.ID)
}

func (s *Store) UpdateBooking(ctx context.Context, id string, draft booking.Draft) (booking.Booking, error) {
	if err := draft.Validate(); err != nil {
		return booking.Booking{}, err
	}

	err := s.db.RunInTx(ctx, func(tx *DB) error {
		existing, err := tx.Queries.GetBooking(ctx, id)
		if err != nil {
			return err
		}
		updated := draft.Apply(existing)
		updated.UpdatedAt = s.clock.Now()
		if err := checkConflicts(ctx, tx, updated, id); err != nil {
			return err
		}
		return tx.Queries.UpdateBooking(ctx, updated)
	})
	if err != nil {
		return booking.Booking{}, err
	}

	s.logger.Info().Str("booking_id", id).Msg("Booking updated")
	return s.db.Queries.GetBooking(ctx, id)
}

func (s *Store) DeleteBooking(ctx context.Context, id string) error {
	if err := s.db.Queries.DeleteBooking(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("booking_id", id).Msg("Booking deleted")
	return nil
}

// checkConflicts rejects b when it occupies its range and overlaps another
// occupying booking on the same venue.
func checkConflicts(ctx context.Context, tx *DB, b booking.Booking, excludeID string) error {
	if !b.Status.Occupies() {
		return nil
	}
	hits, err := tx.Queries.OverlappingBookings(ctx, b.VenueID, b.StartAt, b.EndAt, excludeID)
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		return nil
	}
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.ID)
	}
	return booking.ConflictError{VenueID: b.VenueID, Start: b.StartAt, End: b.EndAt, With: ids}
}

// SweepResult counts the bookings each sweep transition touched.
type SweepResult struct {
	Expired  int64
	Finished int64
}

// SweepStatuses expires pending bookings whose start has passed and finishes
// confirmed bookings whose end has passed.
func (s *Store) SweepStatuses(ctx context.Context) (SweepResult, error) {
	now := s.clock.Now()
	var result SweepResult
	err := s.db.RunInTx(ctx, func(tx *DB) error {
		var err error
		result.Expired, err = tx.Queries.TransitionStatus(ctx, booking.StatusPending, booking.StatusExpired, "start_at", now)
		if err != nil {
			return err
		}
		result.Finished, err = tx.Queries.TransitionStatus(ctx, booking.StatusConfirmed, booking.StatusFinished, "end_at", now)
		return err
	})
	if err != nil {
		return SweepResult{}, fmt.Errorf("sweep booking statuses: %w", err)
	}
	return result, nil
}

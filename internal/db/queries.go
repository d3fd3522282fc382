package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/codr1/venuecal/internal/booking"
	"github.com/codr1/venuecal/internal/venue"
)

// Queries holds the hand-written SQL for venues and bookings. It runs against
// either the pool or a transaction.
type Queries struct {
	q sqlx.ExtContext
}

const venueColumns = `id, name, open_time, close_time, slot_interval_minutes, color`

const bookingColumns = `id, venue_id, start_at, end_at, status, client_id, label, notes, color, created_at, updated_at`

func (q *Queries) ListVenues(ctx context.Context) ([]venue.Venue, error) {
	var venues []venue.Venue
	err := sqlx.SelectContext(ctx, q.q, &venues,
		`SELECT `+venueColumns+` FROM venues ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list venues: %w", err)
	}
	return venues, nil
}

func (q *Queries) GetVenue(ctx context.Context, id string) (venue.Venue, error) {
	var v venue.Venue
	err := sqlx.GetContext(ctx, q.q, &v,
		`SELECT `+venueColumns+` FROM venues WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return venue.Venue{}, venue.ErrNotFound
	}
	if err != nil {
		return venue.Venue{}, fmt.Errorf("get venue %s: %w", id, err)
	}
	return v, nil
}

func (q *Queries) UpsertVenue(ctx context.Context, v venue.Venue) error {
	_, err := sqlx.NamedExecContext(ctx, q.q, `
		INSERT INTO venues (id, name, open_time, close_time, slot_interval_minutes, color)
		VALUES (:id, :name, :open_time, :close_time, :slot_interval_minutes, :color)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			open_time = excluded.open_time,
			close_time = excluded.close_time,
			slot_interval_minutes = excluded.slot_interval_minutes,
			color = excluded.color,
			updated_at = CURRENT_TIMESTAMP`, v)
	if err != nil {
		return fmt.Errorf("upsert venue %s: %w", v.ID, err)
	}
	return nil
}

func (q *Queries) DeleteVenue(ctx context.Context, id string) (bool, error) {
	res, err := q.q.ExecContext(ctx, `DELETE FROM venues WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete venue %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete venue %s: %w", id, err)
	}
	return n > 0, nil
}

// ListBookingsStartingBetween returns bookings with from <= start_at < to,
// ordered by start. An empty venueID matches every venue.
func (q *Queries) ListBookingsStartingBetween(ctx context.Context, from, to time.Time, venueID string, limit int) ([]booking.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE start_at >= ? AND start_at < ?`
	args := []any{from.UTC(), to.UTC()}
	if venueID != "" {
		query += ` AND venue_id = ?`
		args = append(args, venueID)
	}
	query += ` ORDER BY start_at, id LIMIT ?`
	args = append(args, limit)

	var bookings []booking.Booking
	if err := sqlx.SelectContext(ctx, q.q, &bookings, query, args...); err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return bookings, nil
}

func (q *Queries) GetBooking(ctx context.Context, id string) (booking.Booking, error) {
	var b booking.Booking
	err := sqlx.GetContext(ctx, q.q, &b,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return booking.Booking{}, booking.ErrNotFound
	}
	if err != nil {
		return booking.Booking{}, fmt.Errorf("get booking %s: %w", id, err)
	}
	return b, nil
}

// OverlappingBookings returns the occupying bookings on venueID that share at
// least one instant with [start, end). excludeID skips one booking.
func (q *Queries) OverlappingBookings(ctx context.Context, venueID string, start, end time.Time, excludeID string) ([]booking.Booking, error) {
	var bookings []booking.Booking
	err := sqlx.SelectContext(ctx, q.q, &bookings, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE venue_id = ?
			AND status NOT IN (?, ?)
			AND start_at < ?
			AND end_at > ?
			AND id != ?
		ORDER BY start_at, id`,
		venueID, booking.StatusCancelled, booking.StatusExpired, end.UTC(), start.UTC(), excludeID)
	if err != nil {
		return nil, fmt.Errorf("find overlapping bookings: %w", err)
	}
	return bookings, nil
}

func (q *Queries) InsertBooking(ctx context.Context, b booking.Booking) error {
	_, err := sqlx.NamedExecContext(ctx, q.q, `
		INSERT INTO bookings (`+bookingColumns+`)
		VALUES (:id, :venue_id, :start_at, :end_at, :status, :client_id, :label, :notes, :color, :created_at, :updated_at)`,
		utcBooking(b))
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

func (q *Queries) UpdateBooking(ctx context.Context, b booking.Booking) error {
	res, err := sqlx.NamedExecContext(ctx, q.q, `
		UPDATE bookings SET
			venue_id = :venue_id,
			start_at = :start_at,
			end_at = :end_at,
			status = :status,
			client_id = :client_id,
			label = :label,
			notes = :notes,
			color = :color,
			updated_at = :updated_at
		WHERE id = :id`, utcBooking(b))
	if err != nil {
		return fmt.Errorf("update booking %s: %w", b.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return booking.ErrNotFound
	}
	return nil
}

func (q *Queries) DeleteBooking(ctx context.Context, id string) error {
	res, err := q.q.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete booking %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete booking %s: %w", id, err)
	}
	if n == 0 {
		return booking.ErrNotFound
	}
	return nil
}

// TransitionStatus moves bookings in status from to status to when the
// column named by boundary ("start_at" or "end_at") is at or before cutoff.
func (q *Queries) TransitionStatus(ctx context.Context, from, to booking.Status, boundary string, cutoff time.Time) (int64, error) {
	if boundary != "start_at" && boundary != "end_at" {
		return 0, fmt.Errorf("unsupported boundary column %q", boundary)
	}
	res, err := q.q.ExecContext(ctx,
		`UPDATE bookings SET status = ?, updated_at = ? WHERE status = ? AND `+boundary+` <= ?`,
		to, cutoff.UTC(), from, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("transition %s bookings to %s: %w", from, to, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("transition %s bookings to %s: %w", from, to, err)
	}
	return n, nil
}

// utcBooking normalises timestamps so lexical order in SQLite matches time order.
func utcBooking(b booking.Booking) booking.Booking {
	b.StartAt = b.StartAt.UTC().Truncate(time.Second)
	b.EndAt = b.EndAt.UTC().Truncate(time.Second)
	b.CreatedAt = b.CreatedAt.UTC().Truncate(time.Second)
	b.UpdatedAt = b.UpdatedAt.UTC().Truncate(time.Second)
	return b
}

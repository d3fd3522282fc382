package booking

import (
	"context"

	"github.com/codr1/venuecal/internal/datetime"
)

// MaxPageSize is the largest page the calendar asks for. The calendar assumes a
// single page holds every booking in the requested range.
const MaxPageSize = 1000

// Lister returns every booking that starts within [start, end] (inclusive
// calendar days). An empty venueID means all venues.
type Lister interface {
	ListBookingsInRange(ctx context.Context, start, end datetime.Date, venueID string) ([]Booking, error)
}

// API is the booking backend contract.
type API interface {
	Lister
	CreateBooking(ctx context.Context, draft Draft) (Booking, error)
	UpdateBooking(ctx context.Context, id string, draft Draft) (Booking, error)
	DeleteBooking(ctx context.Context, id string) error
}

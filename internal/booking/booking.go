// Package booking defines reservations of a venue and the narrow read/write
// contract the calendar consumes from the booking backend.
package booking

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/codr1/venuecal/internal/datetime"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusFinished  Status = "finished"
	StatusExpired   Status = "expired"
)

var statuses = []Status{StatusPending, StatusConfirmed, StatusCancelled, StatusFinished, StatusExpired}

// ParseStatus is case-insensitive; an empty value means pending.
func ParseStatus(raw string) (Status, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return StatusPending, nil
	}
	for _, s := range statuses {
		if string(s) == raw {
			return s, nil
		}
	}
	return "", ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", raw)}
}

// Occupies reports whether a booking in this status holds its time range.
// Cancelled and expired bookings free the slot.
func (s Status) Occupies() bool {
	switch s {
	case StatusCancelled, StatusExpired:
		return false
	default:
		return true
	}
}

// Booking is a reservation of one venue for [StartAt, EndAt).
type Booking struct {
	ID        string    `json:"id" db:"id"`
	VenueID   string    `json:"venueId" db:"venue_id"`
	StartAt   time.Time `json:"startAt" db:"start_at"`
	EndAt     time.Time `json:"endAt" db:"end_at"`
	Status    Status    `json:"status" db:"status"`
	ClientID  string    `json:"clientId,omitempty" db:"client_id"`
	Label     string    `json:"label,omitempty" db:"label"`
	Notes     string    `json:"notes,omitempty" db:"notes"`
	Color     string    `json:"color,omitempty" db:"color"`
	CreatedAt time.Time `json:"createdAt,omitempty" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt,omitempty" db:"updated_at"`
}

// Valid reports whether the booking has a usable, non-empty time range.
func (b Booking) Valid() bool {
	return !b.StartAt.IsZero() && !b.EndAt.IsZero() && b.StartAt.Before(b.EndAt)
}

func (b Booking) Duration() time.Duration {
	return b.EndAt.Sub(b.StartAt)
}

// Day returns the calendar day the booking starts on in loc.
func (b Booking) Day(loc *time.Location) datetime.Date {
	return datetime.DateOf(b.StartAt, loc)
}

// SortByStart orders bookings chronologically; ties break on id so the
// order is stable across fetches.
func SortByStart(bookings []Booking) {
	sort.SliceStable(bookings, func(i, j int) bool {
		if !bookings[i].StartAt.Equal(bookings[j].StartAt) {
			return bookings[i].StartAt.Before(bookings[j].StartAt)
		}
		return bookings[i].ID < bookings[j].ID
	})
}

// Draft is the payload for creating or replacing a booking.
type Draft struct {
	VenueID  string    `json:"venueId"`
	StartAt  time.Time `json:"startAt"`
	EndAt    time.Time `json:"endAt"`
	Status   Status    `json:"status,omitempty"`
	ClientID string    `json:"clientId,omitempty"`
	Label    string    `json:"label,omitempty"`
	Notes    string    `json:"notes,omitempty"`
	Color    string    `json:"color,omitempty"`
}

func (d Draft) Validate() error {
	if strings.TrimSpace(d.VenueID) == "" {
		return ValidationError{Field: "venueId", Reason: "is required"}
	}
	if d.StartAt.IsZero() {
		return ValidationError{Field: "startAt", Reason: "is required"}
	}
	if d.EndAt.IsZero() {
		return ValidationError{Field: "endAt", Reason: "is required"}
	}
	if !d.StartAt.Before(d.EndAt) {
		return ValidationError{Field: "endAt", Reason: "must be after startAt"}
	}
	if d.Status != "" {
		if _, err := ParseStatus(string(d.Status)); err != nil {
			return err
		}
	}
	return nil
}

// Apply copies the draft onto b, keeping identity and timestamps.
func (d Draft) Apply(b Booking) Booking {
	b.VenueID = d.VenueID
	b.StartAt = d.StartAt
	b.EndAt = d.EndAt
	if d.Status != "" {
		b.Status = d.Status
	}
	if b.Status == "" {
		b.Status = StatusPending
	}
	b.ClientID = d.ClientID
	b.Label = d.Label
	b.Notes = d.Notes
	b.Color = d.Color
	return b
}

// DraftFrom returns a draft carrying b's editable fields.
func DraftFrom(b Booking) Draft {
	return Draft{
		VenueID:  b.VenueID,
		StartAt:  b.StartAt,
		EndAt:    b.EndAt,
		Status:   b.Status,
		ClientID: b.ClientID,
		Label:    b.Label,
		Notes:    b.Notes,
		Color:    b.Color,
	}
}

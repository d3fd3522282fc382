package booking

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound = errors.New("booking not found")
	ErrConflict = errors.New("booking conflicts with an existing booking")
	ErrInvalid  = errors.New("invalid booking")
)

// ConflictError names the bookings that already occupy the requested range.
type ConflictError struct {
	VenueID string
	Start   time.Time
	End     time.Time
	With    []string
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("venue %s is booked between %s and %s (conflicts with %s)",
		e.VenueID, e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339), strings.Join(e.With, ", "))
}

func (e ConflictError) Is(target error) bool {
	return target == ErrConflict
}

type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func (e ValidationError) Is(target error) bool {
	return target == ErrInvalid
}

// Package venue describes bookable resources and the defaults applied when a
// venue's configuration is missing or inconsistent.
package venue

import (
	"context"
	"errors"
	"sort"

	"github.com/rs/zerolog"

	"github.com/codr1/venuecal/internal/datetime"
)

const (
	DefaultSlotIntervalMinutes = 30
	DefaultOpenHour            = 7
	DefaultCloseHour           = 21
)

var (
	DefaultOpenTime  = datetime.NewTimeOfDay(DefaultOpenHour, 0)
	DefaultCloseTime = datetime.NewTimeOfDay(DefaultCloseHour, 0)
)

var ErrNotFound = errors.New("venue not found")

// Venue is read-only to the scheduling core.
type Venue struct {
	ID                  string             `json:"id" db:"id"`
	Name                string             `json:"name" db:"name"`
	OpenTime            datetime.TimeOfDay `json:"openTime" db:"open_time"`
	CloseTime           datetime.TimeOfDay `json:"closeTime" db:"close_time"`
	SlotIntervalMinutes int                `json:"slotIntervalMinutes" db:"slot_interval_minutes"`
	Color               string             `json:"color,omitempty" db:"color"`
}

// Provider is the venue data source consumed by the calendar.
type Provider interface {
	ListVenues(ctx context.Context) ([]Venue, error)
	GetVenue(ctx context.Context, id string) (Venue, error)
}

// Default returns the fallback configuration used for unknown venues.
func Default(id string) Venue {
	return Venue{
		ID:                  id,
		OpenTime:            DefaultOpenTime,
		CloseTime:           DefaultCloseTime,
		SlotIntervalMinutes: DefaultSlotIntervalMinutes,
	}
}

// Normalize replaces an inverted operating window and a non-positive interval
// with the defaults, logging each substitution.
func Normalize(v Venue, logger *zerolog.Logger) Venue {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if v.OpenTime < 0 || v.CloseTime > datetime.MinutesPerDay || v.OpenTime >= v.CloseTime {
		logger.Warn().
			Str("venue_id", v.ID).
			Str("open_time", v.OpenTime.String()).
			Str("close_time", v.CloseTime.String()).
			Msg("Venue operating window invalid, using default hours")
		v.OpenTime = DefaultOpenTime
		v.CloseTime = DefaultCloseTime
	}
	if v.SlotIntervalMinutes <= 0 {
		logger.Warn().
			Str("venue_id", v.ID).
			Int("slot_interval_minutes", v.SlotIntervalMinutes).
			Msg("Venue slot interval invalid, using default interval")
		v.SlotIntervalMinutes = DefaultSlotIntervalMinutes
	}
	return v
}

// Interval returns the venue's slot interval, clamped to the default.
func (v Venue) Interval() int {
	if v.SlotIntervalMinutes <= 0 {
		return DefaultSlotIntervalMinutes
	}
	return v.SlotIntervalMinutes
}

// Find returns the venue with the given id from an already loaded list.
func Find(venues []Venue, id string) (Venue, bool) {
	for _, v := range venues {
		if v.ID == id {
			return v, true
		}
	}
	return Venue{}, false
}

// Resolve looks up id and falls back to the default configuration when the
// venue is missing, so bookings on unknown venues still render.
func Resolve(venues []Venue, id string, logger *zerolog.Logger) Venue {
	if v, ok := Find(venues, id); ok {
		return Normalize(v, logger)
	}
	if logger != nil {
		logger.Warn().Str("venue_id", id).Msg("Venue not found, using default configuration")
	}
	return Default(id)
}

// SortByName orders venues by name, then id.
func SortByName(venues []Venue) {
	sort.SliceStable(venues, func(i, j int) bool {
		if venues[i].Name != venues[j].Name {
			return venues[i].Name < venues[j].Name
		}
		return venues[i].ID < venues[j].ID
	})
}

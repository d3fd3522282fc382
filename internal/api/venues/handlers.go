// internal/api/venues/handlers.go
package venues

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/venuecal/internal/api/apiutil"
	"github.com/codr1/venuecal/internal/datetime"
	"github.com/codr1/venuecal/internal/venue"
)

const venueQueryTimeout = 5 * time.Second

// Store is the venue persistence the handlers need.
type Store interface {
	venue.Provider
	PutVenue(ctx context.Context, v venue.Venue) (venue.Venue, error)
	DeleteVenue(ctx context.Context, id string) error
}

var (
	store     Store
	storeOnce sync.Once
)

type venueRequest struct {
	Name                string `json:"name"`
	OpenTime            string `json:"openTime"`
	CloseTime           string `json:"closeTime"`
	SlotIntervalMinutes int    `json:"slotIntervalMinutes"`
	Color               string `json:"color"`
}

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(s Store) {
	if s == nil {
		return
	}
	storeOnce.Do(func() {
		store = s
	})
}

func loadStore(w http.ResponseWriter, r *http.Request) Store {
	if store == nil {
		log.Ctx(r.Context()).Error().Msg("Venue store not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
	return store
}

// GET /api/v1/venues
func HandleVenueList(w http.ResponseWriter, r *http.Request) {
	s := loadStore(w, r)
	if s == nil {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), venueQueryTimeout)
	defer cancel()

	list, err := s.ListVenues(ctx)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	if list == nil {
		list = []venue.Venue{}
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, list); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to write venue list")
	}
}

// GET /api/v1/venues/{id}
func HandleVenueGet(w http.ResponseWriter, r *http.Request) {
	s := loadStore(w, r)
	if s == nil {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), venueQueryTimeout)
	defer cancel()

	v, err := s.GetVenue(ctx, r.PathValue("id"))
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, v); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to write venue")
	}
}

// PUT /api/v1/venues/{id}
func HandleVenuePut(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	s := loadStore(w, r)
	if s == nil {
		return
	}

	var req venueRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "Invalid JSON body", Err: err})
		return
	}

	v, err := req.toVenue(r.PathValue("id"))
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), venueQueryTimeout)
	defer cancel()

	saved, err := s.PutVenue(ctx, v)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	logger.Info().Str("venue_id", saved.ID).Msg("Venue saved")
	if err := apiutil.WriteJSON(w, http.StatusOK, saved); err != nil {
		logger.Error().Err(err).Msg("Failed to write venue")
	}
}

// DELETE /api/v1/venues/{id}
func HandleVenueDelete(w http.ResponseWriter, r *http.Request) {
	s := loadStore(w, r)
	if s == nil {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), venueQueryTimeout)
	defer cancel()

	id := r.PathValue("id")
	if err := s.DeleteVenue(ctx, id); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	log.Ctx(r.Context()).Info().Str("venue_id", id).Msg("Venue deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (req venueRequest) toVenue(id string) (venue.Venue, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return venue.Venue{}, apiutil.FieldError{Field: "id", Reason: "is required"}
	}
	v := venue.Default(id)
	v.Name = strings.TrimSpace(req.Name)
	v.Color = req.Color
	if req.SlotIntervalMinutes < 0 {
		return venue.Venue{}, apiutil.FieldError{Field: "slotIntervalMinutes", Reason: "must not be negative"}
	}
	if req.SlotIntervalMinutes > 0 {
		v.SlotIntervalMinutes = req.SlotIntervalMinutes
	}
	if req.OpenTime != "" {
		t, err := datetime.ParseTimeOfDay(req.OpenTime)
		if err != nil {
			return venue.Venue{}, apiutil.FieldError{Field: "openTime", Reason: "must be a time of day"}
		}
		v.OpenTime = t
	}
	if req.CloseTime != "" {
		t, err := datetime.ParseTimeOfDay(req.CloseTime)
		if err != nil {
			return venue.Venue{}, apiutil.FieldError{Field: "closeTime", Reason: "must be a time of day"}
		}
		v.CloseTime = t
	}
	return v, nil
}

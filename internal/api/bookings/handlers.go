// internal/api/bookings/handlers.go
package bookings

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/venuecal/internal/api/apiutil"
	"github.com/codr1/venuecal/internal/booking"
)

const bookingQueryTimeout = 5 * time.Second

// Store is the booking persistence the handlers need.
type Store interface {
	booking.API
	GetBooking(ctx context.Context, id string) (booking.Booking, error)
}

var (
	store     Store
	storeOnce sync.Once
)

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
		log.Ctx(r.Context()).Error().Msg("Booking store not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
	return store
}

// GET /api/v1/bookings?start=YYYY-MM-DD&end=YYYY-MM-DD&venue_id=
func HandleBookingList(w http.ResponseWriter, r *http.Request) {
	s := loadStore(w, r)
	if s == nil {
		return
	}

	start, err := apiutil.RequiredDateFromQuery(r, "start")
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	end, err := apiutil.DateFromQuery(r, "end", start)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	venueID := strings.TrimSpace(r.URL.Query().Get("venue_id"))

	ctx, cancel := context.WithTimeout(r.Context(), bookingQueryTimeout)
	defer cancel()

	list, err := s.ListBookingsInRange(ctx, start, end, venueID)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	if list == nil {
		list = []booking.Booking{}
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, list); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to write booking list")
	}
}

// GET /api/v1/bookings/{id}
func HandleBookingGet(w http.ResponseWriter, r *http.Request) {
	s := loadStore(w, r)
	if s == nil {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), bookingQueryTimeout)
	defer cancel()

	b, err := s.GetBooking(ctx, r.PathValue("id"))
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, b); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to write booking")
	}
}

// POST /api/v1/bookings
func HandleBookingCreate(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	s := loadStore(w, r)
	if s == nil {
		return
	}

	draft, ok := decodeDraft(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), bookingQueryTimeout)
	defer cancel()

	created, err := s.CreateBooking(ctx, draft)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/bookings/"+created.ID)
	if err := apiutil.WriteJSON(w, http.StatusCreated, created); err != nil {
		logger.Error().Err(err).Msg("Failed to write booking")
	}
}

// PUT /api/v1/bookings/{id}
func HandleBookingUpdate(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	s := loadStore(w, r)
	if s == nil {
		return
	}

	draft, ok := decodeDraft(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), bookingQueryTimeout)
	defer cancel()

	updated, err := s.UpdateBooking(ctx, r.PathValue("id"), draft)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, updated); err != nil {
		logger.Error().Err(err).Msg("Failed to write booking")
	}
}

// DELETE /api/v1/bookings/{id}
func HandleBookingDelete(w http.ResponseWriter, r *http.Request) {
	s := loadStore(w, r)
	if s == nil {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), bookingQueryTimeout)
	defer cancel()

	if err := s.DeleteBooking(ctx, r.PathValue("id")); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeDraft(w http.ResponseWriter, r *http.Request) (booking.Draft, bool) {
	var draft booking.Draft
	if err := apiutil.DecodeJSON(r, &draft); err != nil {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "Invalid JSON body", Err: err})
		return booking.Draft{}, false
	}
	if draft.Status != "" {
		status, err := booking.ParseStatus(string(draft.Status))
		if err != nil {
			apiutil.WriteError(w, r, err)
			return booking.Draft{}, false
		}
		draft.Status = status
	}
	if err := draft.Validate(); err != nil {
		apiutil.WriteError(w, r, err)
		return booking.Draft{}, false
	}
	return draft, true
}

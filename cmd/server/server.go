// cmd/server/server.go
package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codr1/venuecal/internal/api"
	"github.com/codr1/venuecal/internal/api/bookings"
	"github.com/codr1/venuecal/internal/api/calendarview"
	"github.com/codr1/venuecal/internal/api/venues"
	"github.com/codr1/venuecal/internal/config"
	"github.com/codr1/venuecal/internal/datetime"
	"github.com/codr1/venuecal/internal/db"
	"github.com/codr1/venuecal/internal/metrics"
	"github.com/codr1/venuecal/internal/ratelimit"
	"github.com/codr1/venuecal/internal/slots"
)

type serverDeps struct {
	Store    *db.Store
	Limiter  *ratelimit.Limiter
	Registry *prometheus.Registry // nil disables /metrics
	Metrics  *metrics.HTTP
	Location *time.Location
	Clock    datetime.Clock
	Geometry slots.Geometry
}

func newServer(cfg *config.Config, deps serverDeps) *http.Server {
	return &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.App.Port),
		Handler:      newHandler(deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func newHandler(deps serverDeps) http.Handler {
	router := http.NewServeMux()
	registerRoutes(router, deps)

	// WithMetrics must sit inside WithRequestID to see the routed pattern.
	middleware := []api.Middleware{}
	if deps.Metrics != nil {
		middleware = append(middleware, api.WithMetrics(deps.Metrics))
	}
	middleware = append(middleware, api.WithLogging, api.WithRecovery, api.WithRequestID)
	return api.ChainMiddleware(router, middleware...)
}

func registerRoutes(mux *http.ServeMux, deps serverDeps) {
	bookings.InitHandlers(deps.Store)
	venues.InitHandlers(deps.Store)
	calendarview.InitHandlers(calendarview.Deps{
		Venues:   deps.Store,
		Bookings: deps.Store,
		Location: deps.Location,
		Clock:    deps.Clock,
		Geometry: deps.Geometry,
	})

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	if deps.Registry != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	limit := func(h http.HandlerFunc) http.Handler {
		if deps.Limiter == nil {
			return h
		}
		return deps.Limiter.Middleware(h)
	}

	// Venue routes
	mux.HandleFunc("GET /api/v1/venues", venues.HandleVenueList)
	mux.HandleFunc("GET /api/v1/venues/{id}", venues.HandleVenueGet)
	mux.Handle("PUT /api/v1/venues/{id}", limit(venues.HandleVenuePut))
	mux.Handle("DELETE /api/v1/venues/{id}", limit(venues.HandleVenueDelete))
	mux.HandleFunc("GET /api/v1/venues/{id}/slots", calendarview.HandleVenueSlots)

	// Booking routes
	mux.HandleFunc("GET /api/v1/bookings", bookings.HandleBookingList)
	mux.HandleFunc("GET /api/v1/bookings/{id}", bookings.HandleBookingGet)
	mux.Handle("POST /api/v1/bookings", limit(bookings.HandleBookingCreate))
	mux.Handle("PUT /api/v1/bookings/{id}", limit(bookings.HandleBookingUpdate))
	mux.Handle("DELETE /api/v1/bookings/{id}", limit(bookings.HandleBookingDelete))

	// Calendar views
	mux.HandleFunc("GET /api/v1/calendar", calendarview.HandleCalendar)
}

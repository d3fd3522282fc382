// Package metrics defines the prometheus collectors for calendar sessions and
// the booking backend.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "venuecal"

// Calendar instruments the fetch policy of calendar sessions.
type Calendar struct {
	Fetches       *prometheus.CounterVec
	CacheHits     prometheus.Counter
	FetchDuration prometheus.Histogram
	Mutations     *prometheus.CounterVec
}

// NewCalendar registers the collectors with reg. A nil reg yields working but
// unregistered collectors.
func NewCalendar(reg prometheus.Registerer) *Calendar {
	factory := promauto.With(reg)
	return &Calendar{
		Fetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "calendar",
			Name:      "fetches_total",
			Help:      "Booking fetches issued by calendar sessions, by reason and result.",
		}, []string{"reason", "result"}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "calendar",
			Name:      "cache_hits_total",
			Help:      "Navigation events served from the bookings already held.",
		}),
		FetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "calendar",
			Name:      "fetch_duration_seconds",
			Help:      "Latency of booking fetches.",
			Buckets:   prometheus.DefBuckets,
		}),
		Mutations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "calendar",
			Name:      "mutations_total",
			Help:      "Booking mutations issued through calendar sessions.",
		}, []string{"op", "result"}),
	}
}

// HTTP instruments the backend's request handling.
type HTTP struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

func NewHTTP(reg prometheus.Registerer) *HTTP {
	factory := promauto.With(reg)
	return &HTTP{
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route pattern and status.",
		}, []string{"method", "route", "status"}),
		Duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Store instruments the booking store.
type Store struct {
	StatusSweeps *prometheus.CounterVec
}

func NewStore(reg prometheus.Registerer) *Store {
	factory := promauto.With(reg)
	return &Store{
		StatusSweeps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "status_transitions_total",
			Help:      "Bookings moved to a terminal status by the sweep job.",
		}, []string{"status"}),
	}
}

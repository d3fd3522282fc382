// Package calendar drives a calendar view: it owns the view state, decides
// when bookings must be fetched, and exposes the bucketed bookings and
// navigation actions a renderer needs.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/codr1/venuecal/internal/booking"
	"github.com/codr1/venuecal/internal/datetime"
	"github.com/codr1/venuecal/internal/fetchpolicy"
	"github.com/codr1/venuecal/internal/metrics"
	"github.com/codr1/venuecal/internal/slots"
	"github.com/codr1/venuecal/internal/venue"
	"github.com/codr1/venuecal/internal/viewstate"
)

var ErrNotConfigured = errors.New("calendar session requires a booking API")

type Phase string

const (
	PhaseUninitialized Phase = "uninitialized"
	PhaseCached        Phase = "cached"
	PhaseFetching      Phase = "fetching"
)

// Notice is a dismissible, retryable error shown over the last known data.
type Notice struct {
	Err       error
	Retryable bool
	At        time.Time
}

func (n Notice) Message() string {
	if n.Err == nil {
		return ""
	}
	return n.Err.Error()
}

type Options struct {
	// Location decides which calendar day a booking belongs to. Defaults to UTC.
	Location *time.Location
	Clock    datetime.Clock
	Logger   *zerolog.Logger
	Metrics  *metrics.Calendar
	Geometry slots.Geometry
}

// Session is one logical calendar. All methods are safe for concurrent use;
// the lock is never held across a call to the booking API.
type Session struct {
	api      booking.API
	venues   venue.Provider
	store    viewstate.Store
	loc      *time.Location
	clock    datetime.Clock
	logger   zerolog.Logger
	metrics  *metrics.Calendar
	geometry slots.Geometry

	mu         sync.Mutex
	state      viewstate.State
	restoring  bool
	descriptor *fetchpolicy.Descriptor
	bookings   []booking.Booking
	venueList  []venue.Venue
	notice     *Notice
	editingID  string

	fetching bool
	// dirty is set when the view changes while a fetch is in flight; the
	// fetch re-evaluates against the latest state once it settles.
	dirty bool
	// issued numbers fetches for logging. Responses cannot arrive out of
	// order since at most one fetch is in flight.
	issued uint64
	// generation moves on every explicit invalidation so a fetch issued
	// before a sync does not mark the cache fresh.
	generation uint64
}

// New returns a session that stays uninitialized until Restore runs.
// venues and store may be nil.
func New(api booking.API, venues venue.Provider, store viewstate.Store, opts Options) (*Session, error) {
	if api == nil {
		return nil, ErrNotConfigured
	}
	if store == nil {
		store = viewstate.NewMemoryStore()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Clock == nil {
		opts.Clock = datetime.SystemClock()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewCalendar(nil)
	}
	if opts.Geometry.SlotHeight <= 0 {
		opts.Geometry = slots.DefaultGeometry()
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	s := &Session{
		api:       api,
		venues:    venues,
		store:     store,
		loc:       opts.Location,
		clock:     opts.Clock,
		logger:    logger.With().Str("component", "calendar_session").Logger(),
		metrics:   opts.Metrics,
		geometry:  opts.Geometry,
		restoring: true,
	}
	s.state = viewstate.Default(s.today())
	return s, nil
}

func (s *Session) today() datetime.Date {
	return datetime.Today(s.clock, s.loc)
}

func (s *Session) Location() *time.Location {
	return s.loc
}

// Restore loads the persisted view and the venue list, then runs the first
// fetch evaluation. No fetch happens while restoring.
func (s *Session) Restore(ctx context.Context) error {
	s.mu.Lock()
	s.restoring = true
	s.mu.Unlock()

	today := s.today()
	state, found, err := s.store.Load(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to load persisted view state, using defaults")
		found = false
	}
	if found {
		state = state.Normalize(today)
	} else {
		state = viewstate.Default(today)
	}

	if err := s.LoadVenues(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to load venues")
	}

	s.mu.Lock()
	s.state = state
	s.restoring = false
	s.mu.Unlock()

	s.logger.Debug().
		Bool("found", found).
		Str("view_type", string(state.ViewType)).
		Str("anchor_date", state.AnchorDate.String()).
		Msg("View state restored")

	if !found {
		s.persist(ctx, state)
	}
	return s.refresh(ctx)
}

// LoadVenues replaces the venue list from the provider. On failure the
// previous list is kept.
func (s *Session) LoadVenues(ctx context.Context) error {
	if s.venues == nil {
		return nil
	}
	list, err := s.venues.ListVenues(ctx)
	if err != nil {
		return fmt.Errorf("list venues: %w", err)
	}
	venue.SortByName(list)
	s.mu.Lock()
	s.venueList = list
	s.mu.Unlock()
	return nil
}

// SetVenues installs a venue list directly, for callers without a provider.
func (s *Session) SetVenues(list []venue.Venue) {
	list = append([]venue.Venue(nil), list...)
	venue.SortByName(list)
	s.mu.Lock()
	s.venueList = list
	s.mu.Unlock()
}

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.fetching:
		return PhaseFetching
	case s.descriptor == nil:
		return PhaseUninitialized
	default:
		return PhaseCached
	}
}

func (s *Session) State() viewstate.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) persist(ctx context.Context, state viewstate.State) {
	if err := s.store.Save(ctx, state); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to persist view state")
	}
}

// refresh evaluates the fetch policy against the current state and fetches
// when the held bookings do not cover it. Only one fetch runs at a time;
// callers arriving during a fetch mark the session dirty and return at once.
func (s *Session) refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.restoring {
		s.mu.Unlock()
		return nil
	}
	if s.fetching {
		s.dirty = true
		s.mu.Unlock()
		return nil
	}

	var lastErr error
	fetched := false
	for {
		req := fetchpolicy.NewRequest(s.state)
		decision := fetchpolicy.Decide(s.descriptor, req)
		if !decision.Fetch {
			if !fetched && lastErr == nil {
				s.metrics.CacheHits.Inc()
			}
			s.mu.Unlock()
			return lastErr
		}

		s.fetching = true
		s.dirty = false
		s.issued++
		seq, gen := s.issued, s.generation
		filter := fetchpolicy.FilterFor(req.Selection)
		rng := req.Range()
		s.mu.Unlock()

		logger := s.logger.With().
			Uint64("fetch_seq", seq).
			Str("reason", decision.Reason).
			Str("view_type", string(req.ViewType)).
			Str("range", rng.String()).
			Str("venue_filter", filter.VenueID).
			Logger()
		logger.Debug().Msg("Fetching bookings")

		started := time.Now()
		list, err := s.api.ListBookingsInRange(ctx, rng.Start, rng.End, filter.VenueID)
		s.metrics.FetchDuration.Observe(time.Since(started).Seconds())

		s.mu.Lock()
		s.fetching = false
		if err != nil {
			s.metrics.Fetches.WithLabelValues(decision.Reason, "error").Inc()
			logger.Warn().Err(err).Msg("Booking fetch failed, keeping last known bookings")
			lastErr = fmt.Errorf("fetch bookings %s: %w", rng, err)
			s.notice = &Notice{Err: lastErr, Retryable: true, At: s.clock.Now()}
			if !s.dirty {
				s.mu.Unlock()
				return lastErr
			}
			continue
		}

		s.metrics.Fetches.WithLabelValues(decision.Reason, "success").Inc()
		fetched = true
		lastErr = nil
		s.bookings = list
		s.notice = nil
		if gen == s.generation {
			d := req.Descriptor()
			s.descriptor = &d
		}
		logger.Debug().Int("booking_count", len(list)).Msg("Bookings fetched")
	}
}

// Invalidate drops the cache descriptor so the next evaluation fetches.
func (s *Session) Invalidate() {
	s.mu.Lock()
	s.descriptor = nil
	s.generation++
	s.mu.Unlock()
}

// ForceSync re-fetches the current view regardless of what is cached.
func (s *Session) ForceSync(ctx context.Context) error {
	s.Invalidate()
	return s.refresh(ctx)
}

// Retry re-issues the request that last failed.
func (s *Session) Retry(ctx context.Context) error {
	return s.refresh(ctx)
}

func (s *Session) Notice() *Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notice == nil {
		return nil
	}
	n := *s.notice
	return &n
}

func (s *Session) DismissNotice() {
	s.mu.Lock()
	s.notice = nil
	s.mu.Unlock()
}

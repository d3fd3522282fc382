// internal/api/calendarview/handlers.go
package calendarview

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/venuecal/internal/api/apiutil"
	"github.com/codr1/venuecal/internal/booking"
	"github.com/codr1/venuecal/internal/calendar"
	"github.com/codr1/venuecal/internal/conflict"
	"github.com/codr1/venuecal/internal/datetime"
	"github.com/codr1/venuecal/internal/fetchpolicy"
	"github.com/codr1/venuecal/internal/period"
	"github.com/codr1/venuecal/internal/slots"
	"github.com/codr1/venuecal/internal/venue"
	"github.com/codr1/venuecal/internal/viewstate"
)

const calendarQueryTimeout = 5 * time.Second

type Deps struct {
	Venues   venue.Provider
	Bookings booking.Lister
	Location *time.Location
	Clock    datetime.Clock
	Geometry slots.Geometry
}

var (
	deps     *Deps
	depsOnce sync.Once
)

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(d Deps) {
	if d.Venues == nil || d.Bookings == nil {
		return
	}
	if d.Location == nil {
		d.Location = time.UTC
	}
	if d.Clock == nil {
		d.Clock = datetime.SystemClock()
	}
	if d.Geometry.SlotHeight <= 0 {
		d.Geometry = slots.DefaultGeometry()
	}
	depsOnce.Do(func() {
		deps = &d
	})
}

func loadDeps(w http.ResponseWriter, r *http.Request) *Deps {
	if deps == nil {
		log.Ctx(r.Context()).Error().Msg("Calendar handlers not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
	return deps
}

type calendarResponse struct {
	ViewType          period.ViewType        `json:"viewType"`
	AnchorDate        datetime.Date          `json:"anchorDate"`
	Today             datetime.Date          `json:"today"`
	Range             period.Range           `json:"range"`
	SelectedVenues    viewstate.Selection    `json:"selectedVenueIds"`
	Venues            []venue.Venue          `json:"venues"`
	BookingsByDay     period.Buckets         `json:"bookingsByDay"`
	EventCountByVenue map[string]int         `json:"eventCountByVenue"`
	Month             [][]calendar.MonthCell `json:"month,omitempty"`
	Week              *calendar.Week         `json:"week,omitempty"`
	Timeline          *calendar.Timeline     `json:"timeline,omitempty"`
	List              []period.ListGroup     `json:"list,omitempty"`
}

// GET /api/v1/calendar?view=month&date=YYYY-MM-DD&venues=a,b
func HandleCalendar(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	d := loadDeps(w, r)
	if d == nil {
		return
	}

	today := datetime.Today(d.Clock, d.Location)
	view, err := apiutil.ViewTypeFromQuery(r, "view")
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	anchor, err := apiutil.DateFromQuery(r, "date", today)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	selection := apiutil.SelectionFromQuery(r, "venues")

	ctx, cancel := context.WithTimeout(r.Context(), calendarQueryTimeout)
	defer cancel()

	venues, err := d.Venues.ListVenues(ctx)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	req := fetchpolicy.Request{ViewType: view, Anchor: anchor, Selection: selection}
	rng := req.Range()
	filter := fetchpolicy.FilterFor(selection)
	list, err := d.Bookings.ListBookingsInRange(ctx, rng.Start, rng.End, filter.VenueID)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	if filter.ClientSide != nil {
		list = period.FilterByVenues(list, filter.ClientSide)
	}

	days := rng.Days()
	buckets := period.BucketByDay(list, days, d.Location)
	visible := make([]booking.Booking, 0, buckets.Total())
	for _, day := range days {
		visible = append(visible, buckets[day]...)
	}

	resp := calendarResponse{
		ViewType:          view,
		AnchorDate:        anchor,
		Today:             today,
		Range:             rng,
		SelectedVenues:    selection,
		Venues:            venues,
		BookingsByDay:     buckets,
		EventCountByVenue: period.CountByVenue(visible),
	}
	if resp.Venues == nil {
		resp.Venues = []venue.Venue{}
	}

	switch view {
	case period.Month:
		resp.Month = calendar.BuildMonth(anchor, today, buckets)
	case period.Week:
		week := calendar.BuildWeek(days, today, buckets, displayed(venues, selection), d.Geometry, "", d.Location)
		resp.Week = &week
	case period.Day:
		tl := calendar.BuildTimeline(calendar.TimelineInput{
			Day:       anchor,
			Venues:    venues,
			Selection: selection,
			Bookings:  buckets[anchor],
			Geometry:  d.Geometry,
			Location:  d.Location,
			Logger:    logger,
		})
		resp.Timeline = &tl
	case period.List:
		resp.List = calendar.BuildList(buckets, days)
	}

	if err := apiutil.WriteJSON(w, http.StatusOK, resp); err != nil {
		logger.Error().Err(err).Msg("Failed to write calendar")
	}
}

type slotsResponse struct {
	Venue   venue.Venue          `json:"venue"`
	Missing bool                 `json:"missing,omitempty"`
	Date    datetime.Date        `json:"date"`
	Axis    slots.Axis           `json:"axis"`
	Slots   []conflict.SlotState `json:"slots"`
}

// GET /api/v1/venues/{id}/slots?date=YYYY-MM-DD
func HandleVenueSlots(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	d := loadDeps(w, r)
	if d == nil {
		return
	}

	id := r.PathValue("id")
	date, err := apiutil.DateFromQuery(r, "date", datetime.Today(d.Clock, d.Location))
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), calendarQueryTimeout)
	defer cancel()

	missing := false
	v, err := d.Venues.GetVenue(ctx, id)
	switch {
	case err == nil:
		v = venue.Normalize(v, logger)
	case errors.Is(err, venue.ErrNotFound):
		logger.Warn().Str("venue_id", id).Msg("Venue not found, using default configuration")
		v = venue.Default(id)
		missing = true
	default:
		apiutil.WriteError(w, r, err)
		return
	}

	// Bookings from the previous day may run past midnight.
	list, err := d.Bookings.ListBookingsInRange(ctx, date.AddDays(-1), date, id)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	axis := slots.AxisFor(&v, slots.Options{})
	busy := conflict.BusyIntervals(list, id, date, d.Location, logger)
	resp := slotsResponse{
		Venue:   v,
		Missing: missing,
		Date:    date,
		Axis:    axis,
		Slots:   conflict.Annotate(axis, busy),
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, resp); err != nil {
		logger.Error().Err(err).Msg("Failed to write slots")
	}
}

func displayed(venues []venue.Venue, sel viewstate.Selection) []venue.Venue {
	if sel.All {
		return venues
	}
	out := make([]venue.Venue, 0, sel.Len())
	for _, v := range venues {
		if sel.Contains(v.ID) {
			out = append(out, v)
		}
	}
	return out
}

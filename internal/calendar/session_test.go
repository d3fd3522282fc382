package calendar

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codr1/venuecal/internal/booking"
	"github.com/codr1/venuecal/internal/datetime"
	"github.com/codr1/venuecal/internal/period"
	"github.com/codr1/venuecal/internal/venue"
	"github.com/codr1/venuecal/internal/viewstate"
)

type listCall struct {
	start, end datetime.Date
	venueID    string
}

type fakeAPI struct {
	mu       sync.Mutex
	bookings []booking.Booking
	calls    []listCall
	creates  int
	listErr  error
	nextID   int

	// gate, when set, blocks the next list call until closed.
	gate    chan struct{}
	entered chan struct{}
}

func (f *fakeAPI) ListBookingsInRange(_ context.Context, start, end datetime.Date, venueID string) ([]booking.Booking, error) {
	f.mu.Lock()
	f.calls = append(f.calls, listCall{start: start, end: end, venueID: venueID})
	gate, entered := f.gate, f.entered
	f.gate = nil
	f.mu.Unlock()

	if gate != nil {
		entered <- struct{}{}
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []booking.Booking
	for _, b := range f.bookings {
		day := datetime.DateOf(b.StartAt, time.UTC)
		if day.Before(start) || day.After(end) {
			continue
		}
		if venueID != "" && b.VenueID != venueID {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (f *fakeAPI) CreateBooking(_ context.Context, d booking.Draft) (booking.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	f.nextID++
	b := d.Apply(booking.Booking{ID: fmt.Sprintf("new-%d", f.nextID)})
	f.bookings = append(f.bookings, b)
	return b, nil
}

func (f *fakeAPI) UpdateBooking(_ context.Context, id string, d booking.Draft) (booking.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, b := range f.bookings {
		if b.ID == id {
			f.bookings[i] = d.Apply(b)
			return f.bookings[i], nil
		}
	}
	return booking.Booking{}, booking.ErrNotFound
}

func (f *fakeAPI) DeleteBooking(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, b := range f.bookings {
		if b.ID == id {
			f.bookings = append(f.bookings[:i], f.bookings[i+1:]...)
			return nil
		}
	}
	return booking.ErrNotFound
}

func (f *fakeAPI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeAPI) lastCall() listCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

type fakeVenues []venue.Venue

func (f fakeVenues) ListVenues(context.Context) ([]venue.Venue, error) {
	return append([]venue.Venue(nil), f...), nil
}

func (f fakeVenues) GetVenue(_ context.Context, id string) (venue.Venue, error) {
	if v, ok := venue.Find(f, id); ok {
		return v, nil
	}
	return venue.Venue{}, venue.ErrNotFound
}

var testVenues = fakeVenues{
	{ID: "v1", Name: "Court 1", OpenTime: datetime.NewTimeOfDay(8, 0), CloseTime: datetime.NewTimeOfDay(12, 0), SlotIntervalMinutes: 60},
	{ID: "v2", Name: "Court 2", OpenTime: datetime.NewTimeOfDay(7, 0), CloseTime: datetime.NewTimeOfDay(21, 0), SlotIntervalMinutes: 30},
}

func at(day, hour, minute int) time.Time {
	return time.Date(2024, time.June, day, hour, minute, 0, 0, time.UTC)
}

func newTestSession(t *testing.T, api *fakeAPI, store viewstate.Store) *Session {
	t.Helper()
	s, err := New(api, testVenues, store, Options{
		Location: time.UTC,
		Clock:    datetime.FixedClock(at(15, 12, 0)),
	})
	require.NoError(t, err)
	return s
}

func restored(t *testing.T, api *fakeAPI) *Session {
	t.Helper()
	s := newTestSession(t, api, nil)
	require.NoError(t, s.Restore(context.Background()))
	return s
}

func TestNew_RequiresAPI(t *testing.T) {
	_, err := New(nil, nil, nil, Options{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestRestore_DefaultsAndFirstFetch(t *testing.T) {
	api := &fakeAPI{}
	store := viewstate.NewMemoryStore()
	s := newTestSession(t, api, store)

	assert.Equal(t, PhaseUninitialized, s.Phase())
	assert.Equal(t, 0, api.callCount())

	require.NoError(t, s.Restore(context.Background()))

	assert.Equal(t, PhaseCached, s.Phase())
	require.Equal(t, 1, api.callCount())
	assert.Equal(t, listCall{
		start: datetime.NewDate(2024, time.May, 26),
		end:   datetime.NewDate(2024, time.July, 6),
	}, api.lastCall())
	assert.Equal(t, 1, store.Saves(), "defaults are persisted on first run")

	state := s.State()
	assert.Equal(t, period.Month, state.ViewType)
	assert.Equal(t, datetime.NewDate(2024, time.June, 15), state.AnchorDate)
	assert.True(t, state.SelectedVenues.All)
}

func TestRestore_UsesPersistedState(t *testing.T) {
	ctx := context.Background()
	store := viewstate.NewMemoryStore()
	saved := viewstate.State{
		ViewType:        period.Week,
		AnchorDate:      datetime.NewDate(2024, time.March, 6),
		SelectedVenues:  viewstate.Venues("v2"),
		SidebarExpanded: false,
	}
	require.NoError(t, store.Save(ctx, saved))

	api := &fakeAPI{}
	s := newTestSession(t, api, store)
	require.NoError(t, s.Restore(ctx))

	assert.True(t, saved.Equal(s.State()))
	assert.Equal(t, listCall{
		start:   datetime.NewDate(2024, time.March, 3),
		end:     datetime.NewDate(2024, time.March, 9),
		venueID: "v2",
	}, api.lastCall())
}

func TestActionsBeforeRestore_DoNotFetchOrPersist(t *testing.T) {
	api := &fakeAPI{}
	store := viewstate.NewMemoryStore()
	s := newTestSession(t, api, store)

	require.NoError(t, s.SetViewType(context.Background(), period.Day))
	require.NoError(t, s.ToggleVenue(context.Background(), "v1"))

	assert.Equal(t, 0, api.callCount())
	assert.Equal(t, 0, store.Saves())
}

func TestNavigate_ReusesBookingsWithinPeriod(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{}
	s := restored(t, api)

	require.NoError(t, s.GoToDate(ctx, datetime.NewDate(2024, time.June, 28)))
	assert.Equal(t, 1, api.callCount())

	require.NoError(t, s.Navigate(ctx, period.Next))
	assert.Equal(t, 2, api.callCount())
	assert.Equal(t, datetime.NewDate(2024, time.July, 28), s.State().AnchorDate)
	assert.Equal(t, listCall{
		start: datetime.NewDate(2024, time.June, 30),
		end:   datetime.NewDate(2024, time.August, 3),
	}, api.lastCall())

	require.NoError(t, s.GoToToday(ctx))
	assert.Equal(t, 3, api.callCount())
	assert.Equal(t, datetime.NewDate(2024, time.June, 15), s.State().AnchorDate)
}

func TestSetViewType_Refetches(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{}
	s := restored(t, api)

	require.NoError(t, s.SetViewType(ctx, period.List))
	assert.Equal(t, 2, api.callCount())

	assert.Error(t, s.SetViewType(ctx, period.ViewType("agenda")))
	assert.Equal(t, 2, api.callCount())
}

func TestForceSync_TwiceFetchesTwice(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{}
	s := restored(t, api)

	require.NoError(t, s.ForceSync(ctx))
	require.NoError(t, s.ForceSync(ctx))
	assert.Equal(t, 3, api.callCount())
}

func TestToggleVenue_FilterStrategy(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{bookings: []booking.Booking{
		{ID: "b1", VenueID: "v1", StartAt: at(10, 9, 0), EndAt: at(10, 10, 0), Status: booking.StatusConfirmed},
		{ID: "b2", VenueID: "v2", StartAt: at(10, 9, 0), EndAt: at(10, 10, 0), Status: booking.StatusConfirmed},
		{ID: "b3", VenueID: "v3", StartAt: at(11, 9, 0), EndAt: at(11, 10, 0), Status: booking.StatusConfirmed},
	}}
	s := restored(t, api)
	assert.Len(t, s.Snapshot().Bookings, 3)

	require.NoError(t, s.ToggleVenue(ctx, "v1"))
	assert.Equal(t, "v1", api.lastCall().venueID)
	assert.Len(t, s.Snapshot().Bookings, 1)

	require.NoError(t, s.ToggleVenue(ctx, "v2"))
	assert.Equal(t, 3, api.callCount())
	assert.Equal(t, "", api.lastCall().venueID, "two venues are fetched unfiltered")

	snap := s.Snapshot()
	assert.Len(t, snap.Bookings, 2)
	assert.Equal(t, map[string]int{"v1": 1, "v2": 1}, snap.EventCountByVenue)

	require.NoError(t, s.SelectAllVenues(ctx))
	assert.Equal(t, 4, api.callCount())
	assert.Len(t, s.Snapshot().Bookings, 3)
}

func TestFetchFailure_KeepsLastBookings(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{bookings: []booking.Booking{
		{ID: "b1", VenueID: "v1", StartAt: at(10, 9, 0), EndAt: at(10, 10, 0), Status: booking.StatusConfirmed},
	}}
	s := restored(t, api)

	boom := errors.New("backend unavailable")
	api.mu.Lock()
	api.listErr = boom
	api.mu.Unlock()

	err := s.Navigate(ctx, period.Next)
	require.ErrorIs(t, err, boom)

	snap := s.Snapshot()
	require.NotNil(t, snap.Notice)
	assert.True(t, snap.Notice.Retryable)
	assert.True(t, snap.Stale)
	assert.Equal(t, datetime.NewDate(2024, time.July, 15), snap.State.AnchorDate)

	require.NoError(t, s.Navigate(ctx, period.Prev), "returning to the cached month needs no fetch")
	snap = s.Snapshot()
	assert.Len(t, snap.Bookings, 1)
	assert.False(t, snap.Stale)

	assert.Error(t, s.Navigate(ctx, period.Next))
	assert.Error(t, s.Retry(ctx))

	api.mu.Lock()
	api.listErr = nil
	api.mu.Unlock()

	require.NoError(t, s.Retry(ctx))
	assert.Nil(t, s.Notice())
	assert.Equal(t, PhaseCached, s.Phase())
}

func TestFetchFailure_SelectionStillFiltersHeldBookings(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{bookings: []booking.Booking{
		{ID: "b1", VenueID: "v1", StartAt: at(10, 9, 0), EndAt: at(10, 10, 0), Status: booking.StatusConfirmed},
		{ID: "b2", VenueID: "v2", StartAt: at(11, 9, 0), EndAt: at(11, 10, 0), Status: booking.StatusConfirmed},
	}}
	s := restored(t, api)
	require.Len(t, s.Snapshot().Bookings, 2)

	api.mu.Lock()
	api.listErr = errors.New("backend unavailable")
	api.mu.Unlock()

	assert.Error(t, s.SetSelectedVenues(ctx, viewstate.Venues("v1")))

	snap := s.Snapshot()
	require.NotNil(t, snap.Notice)
	require.Len(t, snap.Bookings, 1)
	assert.Equal(t, "b1", snap.Bookings[0].ID)
	assert.Equal(t, map[string]int{"v1": 1}, snap.EventCountByVenue)
	for _, b := range snap.BookingsByDay[datetime.NewDate(2024, time.June, 11)] {
		assert.NotEqual(t, "v2", b.VenueID)
	}
}

func TestDismissNotice(t *testing.T) {
	api := &fakeAPI{listErr: errors.New("down")}
	s := newTestSession(t, api, nil)
	assert.Error(t, s.Restore(context.Background()))
	require.NotNil(t, s.Notice())

	s.DismissNotice()
	assert.Nil(t, s.Notice())
	assert.Equal(t, PhaseUninitialized, s.Phase())
}

func TestNavigateDuringFetch_ReevaluatesWithLatestState(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{}
	s := restored(t, api)

	api.mu.Lock()
	api.gate = make(chan struct{})
	api.entered = make(chan struct{})
	gate, entered := api.gate, api.entered
	api.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- s.ForceSync(ctx) }()
	<-entered

	assert.Equal(t, PhaseFetching, s.Phase())
	require.NoError(t, s.Navigate(ctx, period.Next), "a second caller does not wait for the fetch")
	assert.Equal(t, 2, api.callCount())

	close(gate)
	require.NoError(t, <-done)

	assert.Equal(t, 3, api.callCount())
	assert.Equal(t, datetime.NewDate(2024, time.June, 30), api.lastCall().start)
	assert.Equal(t, PhaseCached, s.Phase())

	require.NoError(t, s.GoToDate(ctx, datetime.NewDate(2024, time.July, 2)))
	assert.Equal(t, 3, api.callCount())
}

func TestForceSyncDuringFetch_NeverOverlaps(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{}
	s := restored(t, api)

	api.mu.Lock()
	api.gate = make(chan struct{})
	api.entered = make(chan struct{})
	gate, entered := api.gate, api.entered
	api.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- s.ForceSync(ctx) }()
	<-entered

	api.mu.Lock()
	api.bookings = []booking.Booking{
		{ID: "late", VenueID: "v1", StartAt: at(20, 9, 0), EndAt: at(20, 10, 0), Status: booking.StatusConfirmed},
	}
	api.mu.Unlock()

	require.NoError(t, s.ForceSync(ctx))
	assert.Equal(t, 2, api.callCount(), "a second sync waits for the fetch in flight")

	close(gate)
	require.NoError(t, <-done)

	assert.Equal(t, 3, api.callCount(), "the invalidated cache is fetched again once the first fetch settles")
	assert.Equal(t, PhaseCached, s.Phase())
	snap := s.Snapshot()
	require.Len(t, snap.Bookings, 1)
	assert.Equal(t, "late", snap.Bookings[0].ID)
}

func TestCreateBooking_RefetchesAfterMutation(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{}
	s := restored(t, api)

	created, err := s.CreateBooking(ctx, booking.Draft{VenueID: "v1", StartAt: at(12, 9, 0), EndAt: at(12, 10, 0)})
	require.NoError(t, err)
	assert.Equal(t, booking.StatusPending, created.Status)
	assert.Equal(t, 2, api.callCount())

	snap := s.Snapshot()
	require.Len(t, snap.BookingsByDay[datetime.NewDate(2024, time.June, 12)], 1)
}

func TestCreateBooking_ConflictStillRefetches(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{bookings: []booking.Booking{
		{ID: "b1", VenueID: "v1", StartAt: at(12, 9, 0), EndAt: at(12, 10, 0), Status: booking.StatusConfirmed},
	}}
	s := restored(t, api)

	_, err := s.CreateBooking(ctx, booking.Draft{VenueID: "v1", StartAt: at(12, 9, 30), EndAt: at(12, 10, 30)})
	require.ErrorIs(t, err, booking.ErrConflict)

	var conflictErr booking.ConflictError
	require.ErrorAs(t, err, &conflictErr)
	assert.Equal(t, []string{"b1"}, conflictErr.With)
	assert.Equal(t, 0, api.creates)
	assert.Equal(t, 2, api.callCount())

	_, err = s.CreateBooking(ctx, booking.Draft{VenueID: "v1", StartAt: at(12, 10, 0), EndAt: at(12, 11, 0)})
	assert.NoError(t, err, "touching ranges do not conflict")
}

func TestUpdateBooking_IgnoresItself(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{bookings: []booking.Booking{
		{ID: "b1", VenueID: "v1", StartAt: at(12, 9, 0), EndAt: at(12, 10, 0), Status: booking.StatusConfirmed},
	}}
	s := restored(t, api)

	_, err := s.OnBookingSelect("b1")
	require.NoError(t, err)
	assert.Equal(t, "b1", s.EditingID())

	updated, err := s.UpdateBooking(ctx, "b1", booking.Draft{VenueID: "v1", StartAt: at(12, 9, 30), EndAt: at(12, 10, 30)})
	require.NoError(t, err)
	assert.Equal(t, at(12, 9, 30), updated.StartAt)
	assert.Equal(t, "", s.EditingID())
}

func TestOnBookingDelete(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{bookings: []booking.Booking{
		{ID: "b1", VenueID: "v1", StartAt: at(12, 9, 0), EndAt: at(12, 10, 0), Status: booking.StatusConfirmed},
	}}
	s := restored(t, api)

	_, err := s.OnBookingSelect("b1")
	require.NoError(t, err)
	require.NoError(t, s.OnBookingDelete(ctx, "b1"))
	assert.Empty(t, s.Snapshot().Bookings)
	assert.Equal(t, "", s.EditingID())

	err = s.OnBookingDelete(ctx, "b1")
	assert.ErrorIs(t, err, booking.ErrNotFound)

	_, err = s.OnBookingSelect("missing")
	assert.ErrorIs(t, err, booking.ErrNotFound)
}

func TestOnCancelEdit(t *testing.T) {
	api := &fakeAPI{bookings: []booking.Booking{
		{ID: "b1", VenueID: "v1", StartAt: at(12, 9, 0), EndAt: at(12, 10, 0), Status: booking.StatusConfirmed},
	}}
	s := restored(t, api)

	_, err := s.OnBookingSelect("b1")
	require.NoError(t, err)
	s.OnCancelEdit()
	assert.Equal(t, "", s.EditingID())
}

func TestOnSlotClick(t *testing.T) {
	api := &fakeAPI{bookings: []booking.Booking{
		{ID: "b1", VenueID: "v1", StartAt: at(12, 9, 0), EndAt: at(12, 10, 0), Status: booking.StatusConfirmed},
		{ID: "b2", VenueID: "v1", StartAt: at(12, 11, 0), EndAt: at(12, 12, 0), Status: booking.StatusCancelled},
	}}
	s := restored(t, api)
	day := datetime.NewDate(2024, time.June, 12)

	_, err := s.OnSlotClick("v1", day, datetime.NewTimeOfDay(9, 0))
	assert.ErrorIs(t, err, ErrSlotUnavailable)

	draft, err := s.OnSlotClick("v1", day, datetime.NewTimeOfDay(10, 0))
	require.NoError(t, err)
	assert.Equal(t, at(12, 10, 0), draft.StartAt)
	assert.Equal(t, at(12, 11, 0), draft.EndAt)
	assert.Equal(t, booking.StatusPending, draft.Status)

	_, err = s.OnSlotClick("v1", day, datetime.NewTimeOfDay(11, 0))
	assert.NoError(t, err, "cancelled bookings do not hold the slot")

	draft, err = s.OnSlotClick("ghost", day, datetime.NewTimeOfDay(9, 0))
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, draft.EndAt.Sub(draft.StartAt), "unknown venues use the default interval")
}

func TestPersistOnEveryChange(t *testing.T) {
	ctx := context.Background()
	store := viewstate.NewMemoryStore()
	s := newTestSession(t, &fakeAPI{}, store)
	require.NoError(t, s.Restore(ctx))

	require.NoError(t, s.ToggleSidebar(ctx))
	require.NoError(t, s.SetViewType(ctx, period.Day))
	assert.Equal(t, 3, store.Saves())

	loaded, found, err := store.Load(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, loaded.Equal(s.State()))
	assert.False(t, loaded.SidebarExpanded)
}

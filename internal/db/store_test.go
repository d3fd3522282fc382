package db_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/codr1/venuecal/internal/booking"
	"github.com/codr1/venuecal/internal/datetime"
	"github.com/codr1/venuecal/internal/db"
	"github.com/codr1/venuecal/internal/testutil"
	"github.com/codr1/venuecal/internal/venue"
)

var now = time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)

func at(day, hour, minute int) time.Time {
	return time.Date(2024, time.June, day, hour, minute, 0, 0, time.UTC)
}

func mustCreate(t *testing.T, store *db.Store, d booking.Draft) booking.Booking {
	t.Helper()
	b, err := store.CreateBooking(context.Background(), d)
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	return b
}

func TestVenues_PutGetList(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewTestStore(t, now)

	_, err := store.PutVenue(ctx, venue.Venue{
		ID:                  "v2",
		Name:                "Court 2",
		OpenTime:            datetime.NewTimeOfDay(8, 0),
		CloseTime:           datetime.NewTimeOfDay(12, 0),
		SlotIntervalMinutes: 60,
	})
	if err != nil {
		t.Fatalf("put venue: %v", err)
	}
	if _, err := store.PutVenue(ctx, venue.Venue{ID: "v1", Name: "Court 1"}); err != nil {
		t.Fatalf("put venue: %v", err)
	}

	got, err := store.GetVenue(ctx, "v2")
	if err != nil {
		t.Fatalf("get venue: %v", err)
	}
	if got.OpenTime != datetime.NewTimeOfDay(8, 0) || got.CloseTime != datetime.NewTimeOfDay(12, 0) || got.SlotIntervalMinutes != 60 {
		t.Fatalf("unexpected venue %+v", got)
	}

	list, err := store.ListVenues(ctx)
	if err != nil {
		t.Fatalf("list venues: %v", err)
	}
	if len(list) != 2 || list[0].ID != "v1" {
		t.Fatalf("unexpected venue list %+v", list)
	}

	if _, err := store.GetVenue(ctx, "missing"); !errors.Is(err, venue.ErrNotFound) {
		t.Fatalf("expected venue.ErrNotFound, got %v", err)
	}
	if err := store.DeleteVenue(ctx, "v1"); err != nil {
		t.Fatalf("delete venue: %v", err)
	}
	if err := store.DeleteVenue(ctx, "v1"); !errors.Is(err, venue.ErrNotFound) {
		t.Fatalf("expected venue.ErrNotFound on second delete, got %v", err)
	}
}

func TestCreateBooking_ConflictDetection(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewTestStore(t, now)

	first := mustCreate(t, store, booking.Draft{VenueID: "v1", StartAt: at(20, 9, 0), EndAt: at(20, 10, 0), Status: booking.StatusConfirmed})
	if first.ID == "" || first.Status != booking.StatusConfirmed {
		t.Fatalf("unexpected booking %+v", first)
	}

	_, err := store.CreateBooking(ctx, booking.Draft{VenueID: "v1", StartAt: at(20, 9, 30), EndAt: at(20, 10, 30)})
	if !errors.Is(err, booking.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	var conflictErr booking.ConflictError
	if !errors.As(err, &conflictErr) || len(conflictErr.With) != 1 || conflictErr.With[0] != first.ID {
		t.Fatalf("conflict does not name the existing booking: %v", err)
	}

	// Touching ranges and other venues are fine.
	mustCreate(t, store, booking.Draft{VenueID: "v1", StartAt: at(20, 10, 0), EndAt: at(20, 11, 0)})
	mustCreate(t, store, booking.Draft{VenueID: "v2", StartAt: at(20, 9, 0), EndAt: at(20, 10, 0)})

	// A cancelled booking does not hold its range.
	cancelled := mustCreate(t, store, booking.Draft{VenueID: "v3", StartAt: at(20, 9, 0), EndAt: at(20, 10, 0), Status: booking.StatusCancelled})
	mustCreate(t, store, booking.Draft{VenueID: "v3", StartAt: at(20, 9, 0), EndAt: at(20, 10, 0)})
	if cancelled.Status != booking.StatusCancelled {
		t.Fatalf("status = %s", cancelled.Status)
	}
}

func TestCreateBooking_Invalid(t *testing.T) {
	store := testutil.NewTestStore(t, now)
	_, err := store.CreateBooking(context.Background(), booking.Draft{VenueID: "v1", StartAt: at(20, 10, 0), EndAt: at(20, 9, 0)})
	if !errors.Is(err, booking.ErrInvalid) {
		t.Fatalf("expected invalid booking error, got %v", err)
	}
}

func TestUpdateBooking(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewTestStore(t, now)

	a := mustCreate(t, store, booking.Draft{VenueID: "v1", StartAt: at(20, 9, 0), EndAt: at(20, 10, 0)})
	mustCreate(t, store, booking.Draft{VenueID: "v1", StartAt: at(20, 11, 0), EndAt: at(20, 12, 0)})

	moved, err := store.UpdateBooking(ctx, a.ID, booking.Draft{VenueID: "v1", StartAt: at(20, 9, 30), EndAt: at(20, 10, 30), Label: "moved"})
	if err != nil {
		t.Fatalf("update overlapping only itself: %v", err)
	}
	if !moved.StartAt.Equal(at(20, 9, 30)) || moved.Label != "moved" || moved.ID != a.ID {
		t.Fatalf("unexpected updated booking %+v", moved)
	}

	_, err = store.UpdateBooking(ctx, a.ID, booking.Draft{VenueID: "v1", StartAt: at(20, 10, 30), EndAt: at(20, 11, 30)})
	if !errors.Is(err, booking.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	_, err = store.UpdateBooking(ctx, "missing", booking.Draft{VenueID: "v1", StartAt: at(20, 9, 0), EndAt: at(20, 10, 0)})
	if !errors.Is(err, booking.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListBookingsInRange(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewTestStore(t, now)

	mustCreate(t, store, booking.Draft{VenueID: "v1", StartAt: at(1, 9, 0), EndAt: at(1, 10, 0)})
	mustCreate(t, store, booking.Draft{VenueID: "v2", StartAt: at(30, 23, 0), EndAt: at(30, 23, 30)})
	mustCreate(t, store, booking.Draft{VenueID: "v1", StartAt: time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC), EndAt: time.Date(2024, time.July, 1, 1, 0, 0, 0, time.UTC)})

	start := datetime.NewDate(2024, time.June, 1)
	end := datetime.NewDate(2024, time.June, 30)

	all, err := store.ListBookingsInRange(ctx, start, end, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d bookings, want 2 (end day inclusive, next day excluded)", len(all))
	}
	if !all[0].StartAt.Before(all[1].StartAt) {
		t.Fatalf("bookings not ordered by start")
	}

	v1, err := store.ListBookingsInRange(ctx, start, end, "v1")
	if err != nil {
		t.Fatalf("list v1: %v", err)
	}
	if len(v1) != 1 || v1[0].VenueID != "v1" {
		t.Fatalf("unexpected filtered list %+v", v1)
	}

	if _, err := store.ListBookingsInRange(ctx, end, start, ""); !errors.Is(err, booking.ErrInvalid) {
		t.Fatalf("expected invalid range error, got %v", err)
	}
}

func TestDeleteBooking(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewTestStore(t, now)
	b := mustCreate(t, store, booking.Draft{VenueID: "v1", StartAt: at(20, 9, 0), EndAt: at(20, 10, 0)})

	if err := store.DeleteBooking(ctx, b.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.DeleteBooking(ctx, b.ID); !errors.Is(err, booking.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSweepStatuses(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewTestStore(t, now)

	pendingPast := mustCreate(t, store, booking.Draft{VenueID: "v1", StartAt: at(15, 9, 0), EndAt: at(15, 10, 0)})
	pendingFuture := mustCreate(t, store, booking.Draft{VenueID: "v1", StartAt: at(16, 9, 0), EndAt: at(16, 10, 0)})
	confirmedDone := mustCreate(t, store, booking.Draft{VenueID: "v2", StartAt: at(15, 9, 0), EndAt: at(15, 10, 0), Status: booking.StatusConfirmed})
	confirmedRunning := mustCreate(t, store, booking.Draft{VenueID: "v3", StartAt: at(15, 11, 0), EndAt: at(15, 13, 0), Status: booking.StatusConfirmed})

	result, err := store.SweepStatuses(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if result.Expired != 1 || result.Finished != 1 {
		t.Fatalf("unexpected sweep result %+v", result)
	}

	want := map[string]booking.Status{
		pendingPast.ID:      booking.StatusExpired,
		pendingFuture.ID:    booking.StatusPending,
		confirmedDone.ID:    booking.StatusFinished,
		confirmedRunning.ID: booking.StatusConfirmed,
	}
	for id, status := range want {
		b, err := store.GetBooking(ctx, id)
		if err != nil {
			t.Fatalf("get %s: %v", id, err)
		}
		if b.Status != status {
			t.Fatalf("booking %s status = %s, want %s", id, b.Status, status)
		}
	}
}

func TestParseVenueSeed(t *testing.T) {
	venues, err := db.ParseVenueSeed(strings.NewReader(`
venues:
  - id: court-1
    name: Court 1
    open: "8:00 AM"
    close: "12:00"
    slot_interval_minutes: 60
  - id: court-2
    name: Court 2
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(venues) != 2 {
		t.Fatalf("got %d venues", len(venues))
	}
	if venues[0].OpenTime != datetime.NewTimeOfDay(8, 0) || venues[0].SlotIntervalMinutes != 60 {
		t.Fatalf("unexpected first venue %+v", venues[0])
	}
	if venues[1].OpenTime != venue.DefaultOpenTime || venues[1].SlotIntervalMinutes != venue.DefaultSlotIntervalMinutes {
		t.Fatalf("defaults not applied: %+v", venues[1])
	}

	if _, err := db.ParseVenueSeed(strings.NewReader("venues:\n  - id: a\n  - id: a\n")); err == nil {
		t.Fatalf("expected duplicate id error")
	}
	if _, err := db.ParseVenueSeed(strings.NewReader("venues:\n  - id: a\n    open: noon\n")); err == nil {
		t.Fatalf("expected time parse error")
	}
}

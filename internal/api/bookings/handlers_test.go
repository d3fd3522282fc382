package bookings

// NOTE: Tests cannot use t.Parallel() due to shared package state.

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/codr1/venuecal/internal/api/apiutil"
	"github.com/codr1/venuecal/internal/booking"
	"github.com/codr1/venuecal/internal/db"
	"github.com/codr1/venuecal/internal/testutil"
)

var testNow = time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)

func setupBookingsTest(t *testing.T) *db.Store {
	t.Helper()

	s := testutil.NewTestStore(t, testNow)
	store = nil
	storeOnce = sync.Once{}
	InitHandlers(s)

	t.Cleanup(func() {
		store = nil
		storeOnce = sync.Once{}
	})
	return s
}

func seedBooking(t *testing.T, s *db.Store, venueID string, start time.Time, minutes int) booking.Booking {
	t.Helper()
	b, err := s.CreateBooking(context.Background(), booking.Draft{
		VenueID: venueID,
		StartAt: start,
		EndAt:   start.Add(time.Duration(minutes) * time.Minute),
		Status:  booking.StatusConfirmed,
	})
	if err != nil {
		t.Fatalf("seed booking: %v", err)
	}
	return b
}

func TestHandleBookingList(t *testing.T) {
	s := setupBookingsTest(t)
	seedBooking(t, s, "v1", time.Date(2024, time.June, 10, 9, 0, 0, 0, time.UTC), 60)
	seedBooking(t, s, "v2", time.Date(2024, time.June, 11, 9, 0, 0, 0, time.UTC), 60)
	seedBooking(t, s, "v1", time.Date(2024, time.July, 2, 9, 0, 0, 0, time.UTC), 60)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings?start=2024-06-01&end=2024-06-30", nil)
	recorder := httptest.NewRecorder()
	HandleBookingList(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("status: %d body: %s", recorder.Code, recorder.Body.String())
	}
	var list []booking.Booking
	if err := json.Unmarshal(recorder.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 bookings in June, got %d", len(list))
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/bookings?start=2024-06-01&end=2024-06-30&venue_id=v2", nil)
	recorder = httptest.NewRecorder()
	HandleBookingList(recorder, req)
	list = nil
	if err := json.Unmarshal(recorder.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 1 || list[0].VenueID != "v2" {
		t.Fatalf("expected only the v2 booking, got %+v", list)
	}
}

func TestHandleBookingList_EmptyIsArray(t *testing.T) {
	setupBookingsTest(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings?start=2024-06-01", nil)
	recorder := httptest.NewRecorder()
	HandleBookingList(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("status: %d", recorder.Code)
	}
	if strings.TrimSpace(recorder.Body.String()) != "[]" {
		t.Fatalf("expected empty array, got %s", recorder.Body.String())
	}
}

func TestHandleBookingList_BadDates(t *testing.T) {
	setupBookingsTest(t)

	for _, target := range []string{
		"/api/v1/bookings",
		"/api/v1/bookings?start=yesterday",
		"/api/v1/bookings?start=2024-06-10&end=2024-06-01",
	} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		recorder := httptest.NewRecorder()
		HandleBookingList(recorder, req)
		if recorder.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, recorder.Code)
		}
	}
}

func TestHandleBookingCreate(t *testing.T) {
	setupBookingsTest(t)

	body := `{"venueId":"v1","startAt":"2024-06-20T10:00:00Z","endAt":"2024-06-20T11:00:00Z","label":"Padel"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(body))
	recorder := httptest.NewRecorder()
	HandleBookingCreate(recorder, req)

	if recorder.Code != http.StatusCreated {
		t.Fatalf("status: %d body: %s", recorder.Code, recorder.Body.String())
	}
	var created booking.Booking
	if err := json.Unmarshal(recorder.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID == "" || created.Status != booking.StatusPending || created.Label != "Padel" {
		t.Fatalf("unexpected booking %+v", created)
	}
	if got := recorder.Header().Get("Location"); got != "/api/v1/bookings/"+created.ID {
		t.Fatalf("location header: %q", got)
	}
}

func TestHandleBookingCreate_Conflict(t *testing.T) {
	s := setupBookingsTest(t)
	existing := seedBooking(t, s, "v1", time.Date(2024, time.June, 20, 10, 0, 0, 0, time.UTC), 60)

	body := `{"venueId":"v1","startAt":"2024-06-20T10:30:00Z","endAt":"2024-06-20T11:30:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(body))
	recorder := httptest.NewRecorder()
	HandleBookingCreate(recorder, req)

	if recorder.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", recorder.Code)
	}
	var errBody apiutil.ErrorBody
	if err := json.Unmarshal(recorder.Body.Bytes(), &errBody); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(errBody.Conflicts) != 1 || errBody.Conflicts[0] != existing.ID {
		t.Fatalf("expected conflict with %s, got %+v", existing.ID, errBody.Conflicts)
	}
}

func TestHandleBookingCreate_Invalid(t *testing.T) {
	setupBookingsTest(t)

	cases := map[string]string{
		"malformed":      `{"venueId":`,
		"unknown field":  `{"venueId":"v1","room":"x"}`,
		"inverted range": `{"venueId":"v1","startAt":"2024-06-20T11:00:00Z","endAt":"2024-06-20T10:00:00Z"}`,
		"bad status":     `{"venueId":"v1","startAt":"2024-06-20T10:00:00Z","endAt":"2024-06-20T11:00:00Z","status":"paid"}`,
	}
	for name, body := range cases {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(body))
		recorder := httptest.NewRecorder()
		HandleBookingCreate(recorder, req)
		if recorder.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", name, recorder.Code)
		}
	}
}

func TestHandleBookingUpdate(t *testing.T) {
	s := setupBookingsTest(t)
	b := seedBooking(t, s, "v1", time.Date(2024, time.June, 20, 10, 0, 0, 0, time.UTC), 60)

	body := `{"venueId":"v1","startAt":"2024-06-20T10:30:00Z","endAt":"2024-06-20T11:30:00Z","status":"CONFIRMED"}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/bookings/"+b.ID, strings.NewReader(body))
	req.SetPathValue("id", b.ID)
	recorder := httptest.NewRecorder()
	HandleBookingUpdate(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("status: %d body: %s", recorder.Code, recorder.Body.String())
	}
	var updated booking.Booking
	if err := json.Unmarshal(recorder.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !updated.StartAt.Equal(time.Date(2024, time.June, 20, 10, 30, 0, 0, time.UTC)) {
		t.Fatalf("start not moved: %v", updated.StartAt)
	}
	if updated.Status != booking.StatusConfirmed {
		t.Fatalf("status: %s", updated.Status)
	}
}

func TestHandleBookingGetAndDelete(t *testing.T) {
	s := setupBookingsTest(t)
	b := seedBooking(t, s, "v1", time.Date(2024, time.June, 20, 10, 0, 0, 0, time.UTC), 60)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings/"+b.ID, nil)
	req.SetPathValue("id", b.ID)
	recorder := httptest.NewRecorder()
	HandleBookingGet(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Fatalf("get status: %d", recorder.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/bookings/"+b.ID, nil)
	req.SetPathValue("id", b.ID)
	recorder = httptest.NewRecorder()
	HandleBookingDelete(recorder, req)
	if recorder.Code != http.StatusNoContent {
		t.Fatalf("delete status: %d", recorder.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/bookings/"+b.ID, nil)
	req.SetPathValue("id", b.ID)
	recorder = httptest.NewRecorder()
	HandleBookingGet(recorder, req)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", recorder.Code)
	}
}

func TestHandlers_StoreNotInitialized(t *testing.T) {
	store = nil
	storeOnce = sync.Once{}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings?start=2024-06-01", nil)
	recorder := httptest.NewRecorder()
	HandleBookingList(recorder, req)
	if recorder.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", recorder.Code)
	}
}

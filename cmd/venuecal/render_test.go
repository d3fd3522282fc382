package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codr1/venuecal/internal/booking"
	"github.com/codr1/venuecal/internal/calendar"
	"github.com/codr1/venuecal/internal/datetime"
	"github.com/codr1/venuecal/internal/period"
	"github.com/codr1/venuecal/internal/viewstate"
)

func TestMonthCellLabel(t *testing.T) {
	d := datetime.NewDate(2024, time.June, 15)
	assert.Equal(t, "15", monthCellLabel(calendar.MonthCell{Cell: period.Cell{Date: d}}))
	assert.Equal(t, "15*[2]", monthCellLabel(calendar.MonthCell{
		Cell:     period.Cell{Date: d, IsToday: true},
		Bookings: make([]booking.Booking, 2),
	}))
	assert.Equal(t, "(31)", monthCellLabel(calendar.MonthCell{Cell: period.Cell{Date: datetime.NewDate(2024, time.May, 31), Disabled: true}}))
}

func TestSelectionLabel(t *testing.T) {
	assert.Equal(t, "all", selectionLabel(viewstate.AllVenues()))
	assert.Equal(t, "none", selectionLabel(viewstate.Venues()))
	assert.Equal(t, "a,b", selectionLabel(viewstate.Venues("a", "b")))
}

func TestRenderList_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderList(&buf, nil, time.UTC))
	assert.Equal(t, "no bookings\n", buf.String())
}

func TestRenderList_Rows(t *testing.T) {
	start := time.Date(2024, time.June, 15, 9, 0, 0, 0, time.UTC)
	groups := []period.ListGroup{{
		Date: datetime.NewDate(2024, time.June, 15),
		Bookings: []booking.Booking{{
			ID: "b1", VenueID: "v1", StartAt: start, EndAt: start.Add(90 * time.Minute),
			Status: booking.StatusConfirmed, Label: "Padel",
		}},
	}}
	var buf bytes.Buffer
	require.NoError(t, renderList(&buf, groups, time.UTC))
	assert.Contains(t, buf.String(), "Sat 2024-06-15")
	assert.Regexp(t, `09:00-10:30\s+v1\s+confirmed\s+Padel\s+b1`, buf.String())
}

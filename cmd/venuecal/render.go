package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/codr1/venuecal/internal/booking"
	"github.com/codr1/venuecal/internal/bookingclient"
	"github.com/codr1/venuecal/internal/calendar"
	"github.com/codr1/venuecal/internal/datetime"
	"github.com/codr1/venuecal/internal/period"
	"github.com/codr1/venuecal/internal/venue"
	"github.com/codr1/venuecal/internal/viewstate"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// render prints the session's current view.
func render(w io.Writer, s *calendar.Session) error {
	snap := s.Snapshot()
	renderHeader(w, snap)

	switch snap.State.ViewType {
	case period.Month:
		return renderMonth(w, s.Month(snap))
	case period.Week:
		return renderWeek(w, s.Week(snap), s.Location())
	case period.Day:
		return renderTimeline(w, s.Timeline(snap))
	default:
		return renderList(w, s.List(snap), s.Location())
	}
}

func renderHeader(w io.Writer, snap calendar.Snapshot) {
	fmt.Fprintf(w, "%s view of %s (%s)  venues: %s\n",
		snap.State.ViewType, snap.State.AnchorDate, snap.Range, selectionLabel(snap.State.SelectedVenues))
	if snap.Notice != nil {
		fmt.Fprintf(w, "! %s\n", snap.Notice.Message())
		if snap.Stale {
			fmt.Fprintln(w, "! showing the last bookings fetched; run `venuecal sync` to retry")
		}
	}
}

func selectionLabel(sel viewstate.Selection) string {
	if sel.All {
		return "all"
	}
	if sel.Len() == 0 {
		return "none"
	}
	return strings.Join(sel.IDs, ",")
}

func renderMonth(w io.Writer, grid [][]calendar.MonthCell) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "Sun\tMon\tTue\tWed\tThu\tFri\tSat\t")
	for _, row := range grid {
		for _, cell := range row {
			fmt.Fprintf(tw, "%s\t", monthCellLabel(cell))
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}

// monthCellLabel is the day number, with "*" for today, the booking count in
// brackets and parentheses around days of neighbouring months.
func monthCellLabel(cell calendar.MonthCell) string {
	label := fmt.Sprintf("%d", cell.Date.Day)
	if cell.IsToday {
		label += "*"
	}
	if n := len(cell.Bookings); n > 0 {
		label += fmt.Sprintf("[%d]", n)
	}
	if cell.Disabled {
		label = "(" + label + ")"
	}
	return label
}

func renderWeek(w io.Writer, week calendar.Week, loc *time.Location) error {
	tw := newTable(w)
	for _, day := range week.Days {
		marker := ""
		if day.IsToday {
			marker = " (today)"
		}
		fmt.Fprintf(tw, "%s %s%s\t\t\t\t\n", day.Date.Weekday().String()[:3], day.Date, marker)
		if len(day.Bookings) == 0 {
			fmt.Fprintln(tw, "  -\t\t\t\t")
		}
		for _, pb := range day.Bookings {
			writeBookingRow(tw, pb.Booking, loc, pb.Editing)
		}
	}
	return tw.Flush()
}

func renderTimeline(w io.Writer, tl calendar.Timeline) error {
	if len(tl.Columns) == 0 {
		fmt.Fprintln(w, "no venues selected")
		return nil
	}
	tw := newTable(w)
	for _, col := range tl.Columns {
		name := venueLabel(col.Venue)
		if col.Missing {
			name += " [unknown venue, default hours]"
		}
		fmt.Fprintf(tw, "%s\t%s-%s every %dm\t\n", name,
			datetime.TimeOfDay(col.Axis.StartMinutes), datetime.TimeOfDay(col.Axis.EndMinutes), col.Axis.Interval)
		for _, slot := range col.Slots {
			state := "free"
			switch {
			case !slot.Available:
				state = "booked"
				if slot.BookedBy != "" {
					state += " (" + slot.BookedBy + ")"
				}
			case !slot.Clickable:
				state = "closed"
			}
			fmt.Fprintf(tw, "  %s\t%s\t\n", slot.Time, state)
		}
	}
	return tw.Flush()
}

func renderList(w io.Writer, groups []period.ListGroup, loc *time.Location) error {
	if len(groups) == 0 {
		fmt.Fprintln(w, "no bookings")
		return nil
	}
	tw := newTable(w)
	for _, g := range groups {
		fmt.Fprintf(tw, "%s %s\t\t\t\t\n", g.Date.Weekday().String()[:3], g.Date)
		for _, b := range g.Bookings {
			writeBookingRow(tw, b, loc, false)
		}
	}
	return tw.Flush()
}

func writeBookingRow(w io.Writer, b booking.Booking, loc *time.Location, editing bool) {
	label := b.Label
	if label == "" {
		label = "-"
	}
	if editing {
		label += " (editing)"
	}
	fmt.Fprintf(w, "  %s-%s\t%s\t%s\t%s\t%s\n",
		datetime.TimeOfDayOf(b.StartAt, loc), datetime.TimeOfDayOf(b.EndAt, loc),
		b.VenueID, b.Status, label, b.ID)
}

func renderVenues(w io.Writer, venues []venue.Venue, sel viewstate.Selection, counts map[string]int) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "\tID\tNAME\tHOURS\tINTERVAL\tIN VIEW")
	for _, v := range venues {
		mark := " "
		if sel.All || sel.Contains(v.ID) {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s-%s\t%dm\t%d\n",
			mark, v.ID, v.Name, v.OpenTime, v.CloseTime, v.Interval(), counts[v.ID])
	}
	return tw.Flush()
}

func venueLabel(v venue.Venue) string {
	if v.Name == "" || v.Name == v.ID {
		return v.ID
	}
	return fmt.Sprintf("%s (%s)", v.Name, v.ID)
}

func renderSlots(w io.Writer, results []bookingclient.SlotsResponse) error {
	tw := newTable(w)
	for _, r := range results {
		name := venueLabel(r.Venue)
		if r.Missing {
			name += " [unknown venue, default hours]"
		}
		fmt.Fprintf(tw, "%s\t%s\t\n", name, r.Date)
		for _, slot := range r.Slots {
			state := "free"
			if !slot.Available {
				state = "booked"
				if slot.BookedBy != "" {
					state += " (" + slot.BookedBy + ")"
				}
			}
			fmt.Fprintf(tw, "  %s\t%s\t\n", slot.Time, state)
		}
	}
	return tw.Flush()
}

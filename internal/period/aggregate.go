package period

import (
	"time"

	"github.com/codr1/venuecal/internal/booking"
	"github.com/codr1/venuecal/internal/datetime"
)

// Buckets maps each visible day to the bookings that start on it.
type Buckets map[datetime.Date][]booking.Booking

// BucketByDay groups bookings by the calendar day their start falls on in loc.
// Every day in days gets an entry, possibly empty; bookings starting outside
// days are dropped. Each bucket is sorted chronologically.
func BucketByDay(bookings []booking.Booking, days []datetime.Date, loc *time.Location) Buckets {
	buckets := make(Buckets, len(days))
	for _, d := range days {
		buckets[d] = []booking.Booking{}
	}
	for _, b := range bookings {
		key := b.Day(loc)
		if _, ok := buckets[key]; !ok {
			continue
		}
		buckets[key] = append(buckets[key], b)
	}
	for _, list := range buckets {
		booking.SortByStart(list)
	}
	return buckets
}

// Total counts bookings across every bucket.
func (b Buckets) Total() int {
	n := 0
	for _, list := range b {
		n += len(list)
	}
	return n
}

// FilterByVenues keeps bookings whose venue is in ids. The backend only filters
// by a single venue, so multi-venue selections are narrowed here.
func FilterByVenues(bookings []booking.Booking, ids []string) []booking.Booking {
	allowed := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		allowed[id] = struct{}{}
	}
	out := make([]booking.Booking, 0, len(bookings))
	for _, b := range bookings {
		if _, ok := allowed[b.VenueID]; ok {
			out = append(out, b)
		}
	}
	return out
}

// CountByVenue tallies bookings per venue for sidebar badges.
func CountByVenue(bookings []booking.Booking) map[string]int {
	counts := make(map[string]int)
	for _, b := range bookings {
		counts[b.VenueID]++
	}
	return counts
}

type ListGroup struct {
	Date     datetime.Date     `json:"date"`
	Bookings []booking.Booking `json:"bookings"`
}

// GroupForList flattens buckets into date-ordered groups, skipping empty days.
func GroupForList(buckets Buckets, days []datetime.Date) []ListGroup {
	var groups []ListGroup
	for _, d := range days {
		list := buckets[d]
		if len(list) == 0 {
			continue
		}
		groups = append(groups, ListGroup{Date: d, Bookings: list})
	}
	return groups
}

type Cell struct {
	Date    datetime.Date `json:"date"`
	InMonth bool          `json:"inMonth"`
	IsToday bool          `json:"isToday"`
	// Disabled cells belong to a neighbouring month and are not today.
	Disabled bool `json:"disabled"`
}

// MonthGrid lays out the month view as rows of seven days.
func MonthGrid(anchor, today datetime.Date) [][]Cell {
	days := ResolveRange(Month, anchor).Days()
	rows := make([][]Cell, 0, len(days)/7)
	for i := 0; i < len(days); i += 7 {
		row := make([]Cell, 0, 7)
		for _, d := range days[i : i+7] {
			inMonth := datetime.SameMonth(d, anchor)
			isToday := d == today
			row = append(row, Cell{
				Date:     d,
				InMonth:  inMonth,
				IsToday:  isToday,
				Disabled: !inMonth && !isToday,
			})
		}
		rows = append(rows, row)
	}
	return rows
}

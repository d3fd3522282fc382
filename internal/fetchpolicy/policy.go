// Package fetchpolicy decides whether the bookings already held by a calendar
// cover a newly requested view, or whether the backend must be asked again.
package fetchpolicy

import (
	"strings"

	"github.com/codr1/venuecal/internal/datetime"
	"github.com/codr1/venuecal/internal/period"
	"github.com/codr1/venuecal/internal/viewstate"
)

// Descriptor records what the last successful fetch covered.
type Descriptor struct {
	ViewType       period.ViewType `json:"viewType"`
	Range          period.Range    `json:"range"`
	VenueSignature string          `json:"venueSignature"`
}

// Request is the view the calendar wants to show next.
type Request struct {
	ViewType  period.ViewType
	Anchor    datetime.Date
	Selection viewstate.Selection
}

func NewRequest(state viewstate.State) Request {
	return Request{ViewType: state.ViewType, Anchor: state.AnchorDate, Selection: state.SelectedVenues}
}

func (r Request) Range() period.Range {
	return period.ResolveRange(r.ViewType, r.Anchor)
}

func (r Request) Signature() string {
	return Signature(r.Selection)
}

// Descriptor is what a fetch for r will cover once it succeeds.
func (r Request) Descriptor() Descriptor {
	return Descriptor{ViewType: r.ViewType, Range: r.Range(), VenueSignature: r.Signature()}
}

// Signature is "all", the sorted comma-joined ids, or "" for an empty selection.
func Signature(sel viewstate.Selection) string {
	if sel.All {
		return "all"
	}
	return strings.Join(viewstate.Venues(sel.IDs...).IDs, ",")
}

const (
	ReasonUninitialized = "uninitialized"
	ReasonViewType      = "view_type_changed"
	ReasonVenues        = "venues_changed"
	ReasonPeriod        = "period_changed"
)

type Decision struct {
	Fetch  bool
	Reason string
}

// Decide applies the rules in order: no previous fetch, a different view type,
// a different venue signature, and finally whether the anchor still falls in
// the period the previous fetch covered.
func Decide(prev *Descriptor, req Request) Decision {
	switch {
	case prev == nil:
		return Decision{Fetch: true, Reason: ReasonUninitialized}
	case req.ViewType != prev.ViewType:
		return Decision{Fetch: true, Reason: ReasonViewType}
	case req.Signature() != prev.VenueSignature:
		return Decision{Fetch: true, Reason: ReasonVenues}
	case !samePeriod(req.ViewType, prev.Range.Midpoint(), req.Anchor):
		return Decision{Fetch: true, Reason: ReasonPeriod}
	}
	return Decision{}
}

func ShouldFetch(prev *Descriptor, req Request) bool {
	return Decide(prev, req).Fetch
}

// samePeriod compares Sunday-start weeks, the same weeks ResolveRange lays out, not ISO weeks.
func samePeriod(view period.ViewType, covered, anchor datetime.Date) bool {
	switch view {
	case period.Month, period.List:
		return datetime.SameMonth(covered, anchor)
	case period.Week:
		return datetime.SameWeek(covered, anchor)
	case period.Day:
		return covered == anchor
	}
	return false
}

// Filter says how a fetch narrows by venue.
type Filter struct {
	// VenueID is sent to the backend; empty means every venue.
	VenueID string
	// ClientSide lists the venues to keep after the fetch; nil keeps everything.
	ClientSide []string
}

// FilterFor maps a selection onto the backend's single-venue filter. Two or
// more venues are fetched unfiltered and narrowed locally.
func FilterFor(sel viewstate.Selection) Filter {
	switch {
	case sel.All || sel.Len() == 0:
		return Filter{}
	case sel.Len() == 1:
		return Filter{VenueID: sel.IDs[0]}
	default:
		return Filter{ClientSide: append([]string(nil), sel.IDs...)}
	}
}

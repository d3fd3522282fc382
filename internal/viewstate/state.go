// Package viewstate holds the user's calendar view (view type, anchor date,
// venue selection, sidebar flag) and persists it between sessions.
package viewstate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/codr1/venuecal/internal/datetime"
	"github.com/codr1/venuecal/internal/period"
)

// StorageKey is the fixed key the view is persisted under.
const StorageKey = "venuecal.calendar.view"

const allSentinel = "all"

// Selection is either every venue or an explicit set of venue ids.
type Selection struct {
	All bool
	IDs []string
}

func AllVenues() Selection {
	return Selection{All: true}
}

// Venues returns an explicit selection; ids are de-duplicated and sorted.
func Venues(ids ...string) Selection {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || id == allSentinel {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return Selection{IDs: out}
}

// Len is the number of explicitly selected venues; zero for All.
func (s Selection) Len() int {
	if s.All {
		return 0
	}
	return len(s.IDs)
}

func (s Selection) Contains(id string) bool {
	if s.All {
		return true
	}
	for _, v := range s.IDs {
		if v == id {
			return true
		}
	}
	return false
}

// Toggle flips id. Toggling from All narrows the selection to id alone.
func (s Selection) Toggle(id string) Selection {
	if s.All {
		return Venues(id)
	}
	ids := make([]string, 0, len(s.IDs)+1)
	found := false
	for _, v := range s.IDs {
		if v == id {
			found = true
			continue
		}
		ids = append(ids, v)
	}
	if !found {
		ids = append(ids, id)
	}
	return Venues(ids...)
}

func (s Selection) Equal(other Selection) bool {
	if s.All || other.All {
		return s.All == other.All
	}
	if len(s.IDs) != len(other.IDs) {
		return false
	}
	a, b := Venues(s.IDs...), Venues(other.IDs...)
	for i := range a.IDs {
		if a.IDs[i] != b.IDs[i] {
			return false
		}
	}
	return true
}

func (s Selection) MarshalJSON() ([]byte, error) {
	if s.All {
		return json.Marshal(allSentinel)
	}
	ids := s.IDs
	if ids == nil {
		ids = []string{}
	}
	return json.Marshal(ids)
}

func (s *Selection) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = AllVenues()
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		if raw != allSentinel {
			return fmt.Errorf("invalid venue selection %q", raw)
		}
		*s = AllVenues()
		return nil
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return fmt.Errorf("invalid venue selection: %w", err)
	}
	*s = Venues(ids...)
	return nil
}

// State is the persisted calendar view.
type State struct {
	ViewType        period.ViewType `json:"viewType"`
	AnchorDate      datetime.Date   `json:"anchorDate"`
	SelectedVenues  Selection       `json:"selectedVenueIds"`
	SidebarExpanded bool            `json:"sidebarExpanded"`
}

// Default is the view shown on first load.
func Default(today datetime.Date) State {
	return State{
		ViewType:        period.Month,
		AnchorDate:      today,
		SelectedVenues:  AllVenues(),
		SidebarExpanded: true,
	}
}

// Normalize repairs fields a stale or hand-edited payload may carry.
func (s State) Normalize(today datetime.Date) State {
	if !s.ViewType.Valid() {
		s.ViewType = period.Month
	}
	if s.AnchorDate.IsZero() {
		s.AnchorDate = today
	}
	return s
}

func (s State) Equal(other State) bool {
	return s.ViewType == other.ViewType &&
		s.AnchorDate == other.AnchorDate &&
		s.SidebarExpanded == other.SidebarExpanded &&
		s.SelectedVenues.Equal(other.SelectedVenues)
}

func Encode(s State) ([]byte, error) {
	return json.Marshal(s)
}

func Decode(data []byte) (State, error) {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}, fmt.Errorf("decode view state: %w", err)
	}
	return s, nil
}

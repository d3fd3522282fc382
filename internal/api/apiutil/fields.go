package apiutil

import (
	"net/http"
	"strings"

	"github.com/codr1/venuecal/internal/datetime"
	"github.com/codr1/venuecal/internal/period"
	"github.com/codr1/venuecal/internal/viewstate"
)

// DateFromQuery parses key as YYYY-MM-DD. An absent value yields fallback.
func DateFromQuery(r *http.Request, key string, fallback datetime.Date) (datetime.Date, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	d, err := datetime.ParseDate(raw)
	if err != nil {
		return datetime.Date{}, FieldError{Field: key, Reason: "must be a date (YYYY-MM-DD)"}
	}
	return d, nil
}

// RequiredDateFromQuery is DateFromQuery without a fallback.
func RequiredDateFromQuery(r *http.Request, key string) (datetime.Date, error) {
	if strings.TrimSpace(r.URL.Query().Get(key)) == "" {
		return datetime.Date{}, FieldError{Field: key, Reason: "is required"}
	}
	return DateFromQuery(r, key, datetime.Date{})
}

func ViewTypeFromQuery(r *http.Request, key string) (period.ViewType, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return period.Month, nil
	}
	view, err := period.ParseViewType(raw)
	if err != nil {
		return "", FieldError{Field: key, Reason: "must be one of month, week, day, list"}
	}
	return view, nil
}

// SelectionFromQuery reads a comma-separated venue list. Absent or "all"
// selects every venue.
func SelectionFromQuery(r *http.Request, key string) viewstate.Selection {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" || strings.EqualFold(raw, "all") {
		return viewstate.AllVenues()
	}
	var ids []string
	for _, part := range strings.Split(raw, ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return viewstate.Venues(ids...)
}

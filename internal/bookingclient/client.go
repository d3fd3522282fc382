// Package bookingclient talks to the venuecal backend over HTTP. It satisfies
// booking.API and venue.Provider so a calendar session can run against a
// remote server.
package bookingclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/codr1/venuecal/internal/booking"
	"github.com/codr1/venuecal/internal/conflict"
	"github.com/codr1/venuecal/internal/datetime"
	"github.com/codr1/venuecal/internal/slots"
	"github.com/codr1/venuecal/internal/venue"
)

// maxResponseSize caps how much of a response body is read.
const maxResponseSize = 8 << 20

const (
	DefaultTimeout        = 10 * time.Second
	DefaultRequestsPerSec = 10
	DefaultMaxRetries     = 3
)

type Options struct {
	BaseURL        string
	HTTPClient     *http.Client
	Timeout        time.Duration
	RequestsPerSec float64
	MaxRetries     int
	// InitialBackoff overrides the first retry delay. Zero keeps the
	// backoff package default.
	InitialBackoff time.Duration
	Logger         *zerolog.Logger
}

// Client is safe for concurrent use.
type Client struct {
	baseURL        *url.URL
	http           *http.Client
	limiter        *rate.Limiter
	maxRetries     int
	initialBackoff time.Duration
	logger         zerolog.Logger
}

var (
	_ booking.API    = (*Client)(nil)
	_ venue.Provider = (*Client)(nil)
)

// StatusError is a non-2xx response the client could not map to a domain
// error.
type StatusError struct {
	Status  int
	Message string
}

func (e StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

type errorBody struct {
	Error     string   `json:"error"`
	Field     string   `json:"field,omitempty"`
	Conflicts []string `json:"conflicts,omitempty"`
}

func New(opts Options) (*Client, error) {
	base := strings.TrimSpace(opts.BaseURL)
	if base == "" {
		return nil, errors.New("base URL is required")
	}
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported base URL scheme %q", u.Scheme)
	}

	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.RequestsPerSec <= 0 {
		opts.RequestsPerSec = DefaultRequestsPerSec
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	burst := int(opts.RequestsPerSec)
	if burst < 1 {
		burst = 1
	}
	return &Client{
		baseURL:        u,
		http:           httpClient,
		limiter:        rate.NewLimiter(rate.Limit(opts.RequestsPerSec), burst),
		maxRetries:     opts.MaxRetries,
		initialBackoff: opts.InitialBackoff,
		logger:         logger.With().Str("component", "booking_client").Str("base_url", u.String()).Logger(),
	}, nil
}

func (c *Client) ListBookingsInRange(ctx context.Context, start, end datetime.Date, venueID string) ([]booking.Booking, error) {
	q := url.Values{}
	q.Set("start", start.String())
	q.Set("end", end.String())
	if venueID != "" {
		q.Set("venue_id", venueID)
	}
	var list []booking.Booking
	if err := c.get(ctx, "/api/v1/bookings", q, &list); err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return list, nil
}

func (c *Client) GetBooking(ctx context.Context, id string) (booking.Booking, error) {
	var b booking.Booking
	if err := c.get(ctx, "/api/v1/bookings/"+url.PathEscape(id), nil, &b); err != nil {
		return booking.Booking{}, err
	}
	return b, nil
}

func (c *Client) CreateBooking(ctx context.Context, draft booking.Draft) (booking.Booking, error) {
	var b booking.Booking
	err := c.send(ctx, http.MethodPost, "/api/v1/bookings", draft, &b)
	if err != nil {
		return booking.Booking{}, withDraft(err, draft)
	}
	return b, nil
}

func (c *Client) UpdateBooking(ctx context.Context, id string, draft booking.Draft) (booking.Booking, error) {
	var b booking.Booking
	err := c.send(ctx, http.MethodPut, "/api/v1/bookings/"+url.PathEscape(id), draft, &b)
	if err != nil {
		return booking.Booking{}, withDraft(err, draft)
	}
	return b, nil
}

func (c *Client) DeleteBooking(ctx context.Context, id string) error {
	return c.send(ctx, http.MethodDelete, "/api/v1/bookings/"+url.PathEscape(id), nil, nil)
}

func (c *Client) ListVenues(ctx context.Context) ([]venue.Venue, error) {
	var list []venue.Venue
	if err := c.get(ctx, "/api/v1/venues", nil, &list); err != nil {
		return nil, fmt.Errorf("list venues: %w", err)
	}
	return list, nil
}

func (c *Client) GetVenue(ctx context.Context, id string) (venue.Venue, error) {
	var v venue.Venue
	if err := c.get(ctx, "/api/v1/venues/"+url.PathEscape(id), nil, &v); err != nil {
		return venue.Venue{}, err
	}
	return v, nil
}

// SlotsResponse mirrors the slot endpoint payload.
type SlotsResponse struct {
	Venue   venue.Venue          `json:"venue"`
	Missing bool                 `json:"missing,omitempty"`
	Date    datetime.Date        `json:"date"`
	Axis    slots.Axis           `json:"axis"`
	Slots   []conflict.SlotState `json:"slots"`
}

func (c *Client) VenueSlots(ctx context.Context, venueID string, day datetime.Date) (SlotsResponse, error) {
	q := url.Values{}
	q.Set("date", day.String())
	var out SlotsResponse
	if err := c.get(ctx, "/api/v1/venues/"+url.PathEscape(venueID)+"/slots", q, &out); err != nil {
		return SlotsResponse{}, fmt.Errorf("venue slots: %w", err)
	}
	return out, nil
}

// get retries transport failures and 5xx responses with exponential backoff.
// Writes are never retried since the server may have applied them.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	var b backoff.BackOff = c.newBackoff()
	b = backoff.WithMaxRetries(b, uint64(c.maxRetries))
	b = backoff.WithContext(b, ctx)

	attempt := 0
	op := func() error {
		attempt++
		err := c.do(ctx, http.MethodGet, path, query, nil, out)
		if err == nil || !retryable(err) {
			if err != nil {
				return backoff.Permanent(err)
			}
			return nil
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Warn().
			Err(err).
			Str("path", path).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("Booking backend request failed, retrying")
	}
	return backoff.RetryNotify(op, b, notify)
}

func (c *Client) newBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if c.initialBackoff > 0 {
		b.InitialInterval = c.initialBackoff
	}
	return b
}

func (c *Client) send(ctx context.Context, method, path string, body, out any) error {
	return c.do(ctx, method, path, nil, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(started)).
		Msg("Booking backend request")

	if resp.StatusCode >= 300 {
		return decodeError(resp.StatusCode, data)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(status int, data []byte) error {
	var body errorBody
	_ = json.Unmarshal(data, &body)
	switch {
	case status == http.StatusConflict:
		return booking.ConflictError{With: body.Conflicts}
	case status == http.StatusBadRequest && body.Field != "":
		return booking.ValidationError{Field: body.Field, Reason: strings.TrimPrefix(body.Error, body.Field+" ")}
	case status == http.StatusNotFound && strings.HasPrefix(body.Error, "Venue"):
		return venue.ErrNotFound
	case status == http.StatusNotFound:
		return booking.ErrNotFound
	default:
		return StatusError{Status: status, Message: body.Error}
	}
}

// withDraft fills in the range on a conflict decoded from the wire.
func withDraft(err error, draft booking.Draft) error {
	var conflict booking.ConflictError
	if errors.As(err, &conflict) {
		conflict.VenueID = draft.VenueID
		conflict.Start = draft.StartAt
		conflict.End = draft.EndAt
		return conflict
	}
	return err
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Status >= http.StatusInternalServerError || statusErr.Status == http.StatusTooManyRequests
	}
	if errors.Is(err, booking.ErrNotFound) || errors.Is(err, venue.ErrNotFound) ||
		errors.Is(err, booking.ErrConflict) || errors.Is(err, booking.ErrInvalid) {
		return false
	}
	return true
}

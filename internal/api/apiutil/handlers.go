package apiutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/codr1/venuecal/internal/booking"
	"github.com/codr1/venuecal/internal/venue"
)

type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

type HandlerError struct {
	Status  int
	Message string
	Err     error
}

func (e HandlerError) Error() string {
	return e.Message
}

func (e HandlerError) Unwrap() error {
	return e.Err
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error     string   `json:"error"`
	Field     string   `json:"field,omitempty"`
	Conflicts []string `json:"conflicts,omitempty"`
}

func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return fmt.Errorf("missing request body")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	if err := encoder.Encode(payload); err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err := w.Write(buf.Bytes())
	return err
}

// Classify maps domain errors onto a HandlerError.
func Classify(err error) HandlerError {
	var handlerErr HandlerError
	if errors.As(err, &handlerErr) {
		return handlerErr
	}
	var fieldErr FieldError
	var validationErr booking.ValidationError
	switch {
	case errors.As(err, &fieldErr), errors.As(err, &validationErr):
		return HandlerError{Status: http.StatusBadRequest, Message: err.Error(), Err: err}
	case errors.Is(err, booking.ErrConflict):
		return HandlerError{Status: http.StatusConflict, Message: err.Error(), Err: err}
	case errors.Is(err, booking.ErrNotFound):
		return HandlerError{Status: http.StatusNotFound, Message: "Booking not found", Err: err}
	case errors.Is(err, venue.ErrNotFound):
		return HandlerError{Status: http.StatusNotFound, Message: "Venue not found", Err: err}
	default:
		return HandlerError{Status: http.StatusInternalServerError, Message: "Internal Server Error", Err: err}
	}
}

// WriteError logs server-side failures and writes err as a JSON error body.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	handlerErr := Classify(err)
	body := ErrorBody{Error: handlerErr.Message}

	var fieldErr FieldError
	var validationErr booking.ValidationError
	var conflictErr booking.ConflictError
	switch {
	case errors.As(err, &fieldErr):
		body.Field = fieldErr.Field
	case errors.As(err, &validationErr):
		body.Field = validationErr.Field
	case errors.As(err, &conflictErr):
		body.Conflicts = conflictErr.With
	}

	logger := log.Ctx(r.Context())
	if handlerErr.Status >= http.StatusInternalServerError {
		logger.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
	} else {
		logger.Debug().Err(err).Int("status", handlerErr.Status).Msg("Request rejected")
	}

	if writeErr := WriteJSON(w, handlerErr.Status, body); writeErr != nil {
		logger.Error().Err(writeErr).Msg("Failed to write error response")
	}
}

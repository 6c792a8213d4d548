package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/autonfe/desk/internal/action"
	"github.com/autonfe/desk/internal/dispatch"
	"github.com/autonfe/desk/internal/retrieval"
)

// ErrNothingToCancel is returned by the cancel endpoint when no run is in flight.
var ErrNothingToCancel = errors.New("no download in progress")

// MapErrorToStatusCode maps internal errors to HTTP status codes.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, retrieval.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, action.ErrBusy),
		errors.Is(err, ErrNothingToCancel):
		return http.StatusConflict
	case errors.Is(err, dispatch.ErrStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns the message a client may see. Validation
// messages are written for users and pass through; anything else is generic.
func GetSafeErrorMessage(err error) string {
	var validation *retrieval.ValidationError
	switch {
	case err == nil:
		return "An unexpected error occurred"
	case errors.As(err, &validation):
		return validation.Message
	case errors.Is(err, action.ErrBusy):
		return "A download is already in progress"
	case errors.Is(err, ErrNothingToCancel):
		return "No download in progress"
	case errors.Is(err, dispatch.ErrStopped):
		return "The application is shutting down"
	case errors.Is(err, context.DeadlineExceeded):
		return "The application did not respond in time"
	default:
		return "An unexpected error occurred"
	}
}

package api

import (
	"errors"
	"net/http"

	"github.com/ignite/sendgrid-insights/internal/ingest"
	"github.com/ignite/sendgrid-insights/internal/pkg/distlock"
	"github.com/ignite/sendgrid-insights/internal/pkg/httputil"
	"github.com/ignite/sendgrid-insights/internal/service/events"
	"github.com/ignite/sendgrid-insights/internal/service/suppression"
	"github.com/ignite/sendgrid-insights/internal/storage"
)

// statusFor maps a service error to an HTTP status. Anything not listed is
// an internal error.
func statusFor(err error) int {
	switch {
	case errors.Is(err, events.ErrInvalidQuery),
		errors.Is(err, events.ErrUnboundedRange),
		errors.Is(err, events.ErrEmptyBatch),
		errors.Is(err, suppression.ErrInvalidEmail),
		errors.Is(err, ingest.ErrNoHeader),
		errors.Is(err, ingest.ErrMissingColumn),
		errors.Is(err, ingest.ErrBadPayload):
		return http.StatusBadRequest
	case errors.Is(err, ingest.ErrBadSignature):
		return http.StatusUnauthorized
	case errors.Is(err, events.ErrNotFound),
		errors.Is(err, suppression.ErrNotFound),
		errors.Is(err, storage.ErrSnapshotNotFound):
		return http.StatusNotFound
	case errors.Is(err, distlock.ErrNotAcquired):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondServiceError writes err with the mapped status. 5xx responses carry
// a generic message and the real error is only logged.
func respondServiceError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		httputil.InternalError(w, err)
		return
	}
	httputil.Error(w, status, err.Error())
}

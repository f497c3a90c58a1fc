package api

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/sendgrid-insights/internal/pkg/httputil"
	"github.com/ignite/sendgrid-insights/internal/service/suppression"
)

func (h *Handlers) suppressionsReady(w http.ResponseWriter) bool {
	if h.suppressions == nil {
		unavailable(w, "suppression list")
		return false
	}
	return true
}

// ListSuppressions pages the suppression list.
//
//	GET /api/suppressions?reason&source&search&page&limit
func (h *Handlers) ListSuppressions(w http.ResponseWriter, r *http.Request) {
	if !h.suppressionsReady(w) {
		return
	}
	p := ParsePagination(r, 50, 500)
	q := r.URL.Query()
	list, total, err := h.suppressions.List(r.Context(), suppression.ListFilter{
		Reason: q.Get("reason"),
		Source: q.Get("source"),
		Search: q.Get("search"),
		Limit:  p.Limit,
		Offset: p.Offset,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, NewPaginatedResponse(list, p, total))
}

// AddSuppression records one address.
//
//	POST /api/suppressions {email, reason, note}
func (h *Handlers) AddSuppression(w http.ResponseWriter, r *http.Request) {
	if !h.suppressionsReady(w) {
		return
	}
	var req suppression.Request
	if !httputil.Decode(w, r, &req) {
		return
	}
	created, err := h.suppressions.Suppress(r.Context(), req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httputil.JSON(w, status, map[string]interface{}{"email": req.Email, "created": created})
}

// RemoveSuppression lifts the suppression of one address.
//
//	DELETE /api/suppressions/{email}
func (h *Handlers) RemoveSuppression(w http.ResponseWriter, r *http.Request) {
	if !h.suppressionsReady(w) {
		return
	}
	email, err := url.PathUnescape(chi.URLParam(r, "email"))
	if err != nil {
		httputil.BadRequest(w, "invalid email")
		return
	}
	if err := h.suppressions.Remove(r.Context(), email); err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.NoContent(w)
}

// CheckSuppression reports whether ?email= is suppressed.
func (h *Handlers) CheckSuppression(w http.ResponseWriter, r *http.Request) {
	if !h.suppressionsReady(w) {
		return
	}
	email := r.URL.Query().Get("email")
	ok, err := h.suppressions.IsSuppressed(r.Context(), email)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"email": email, "suppressed": ok})
}

// SuppressionStats returns list statistics.
func (h *Handlers) SuppressionStats(w http.ResponseWriter, r *http.Request) {
	if !h.suppressionsReady(w) {
		return
	}
	v, err := h.suppressions.GetStats(r.Context())
	respond(w, v, err)
}

// SuppressBounces suppresses every critical bounce warning in the range.
//
//	POST /api/suppressions/from-bounces?start&end
func (h *Handlers) SuppressBounces(w http.ResponseWriter, r *http.Request) {
	if !h.suppressionsReady(w) {
		return
	}
	warnings, err := h.events.Bounces(r.Context(), reportQuery(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	n, err := h.suppressions.SuppressCritical(r.Context(), warnings)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]int{"warnings": len(warnings), "suppressed": n})
}

// ScreenRequest is a recipient list to check before a send.
type ScreenRequest struct {
	Emails []string `json:"emails"`
}

// maxScreenEntries caps one screening request.
const maxScreenEntries = 100000

// ScreenRecipients splits a recipient list into allowed and suppressed.
// Entries may be addresses or MD5 hex digests.
//
//	POST /api/suppressions/screen {emails}
func (h *Handlers) ScreenRecipients(w http.ResponseWriter, r *http.Request) {
	if !h.suppressionsReady(w) {
		return
	}
	var req ScreenRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if len(req.Emails) == 0 {
		httputil.BadRequest(w, "emails is required")
		return
	}
	if len(req.Emails) > maxScreenEntries {
		httputil.BadRequest(w, "too many emails in one request")
		return
	}
	v, err := h.suppressions.Screen(r.Context(), req.Emails)
	respond(w, v, err)
}

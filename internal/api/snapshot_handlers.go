package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/sendgrid-insights/internal/pkg/httputil"
)

// CreateSnapshot archives the overview for the query range.
//
//	POST /api/reports/snapshot?start&end {note}
func (h *Handlers) CreateSnapshot(w http.ResponseWriter, r *http.Request) {
	if h.snapshots == nil {
		unavailable(w, "report archive")
		return
	}
	var body struct {
		Note string `json:"note"`
	}
	if r.ContentLength > 0 && !httputil.Decode(w, r, &body) {
		return
	}
	meta, err := h.snapshots.Capture(r.Context(), reportQuery(r), body.Note)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.Created(w, meta)
}

// ListSnapshots returns the newest archived snapshots.
func (h *Handlers) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	if h.snapshots == nil {
		unavailable(w, "report archive")
		return
	}
	v, err := h.snapshots.List(r.Context(), httputil.QueryInt(r, "limit", 20))
	respond(w, v, err)
}

// GetSnapshot returns one archived snapshot.
func (h *Handlers) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	if h.snapshots == nil {
		unavailable(w, "report archive")
		return
	}
	v, err := h.snapshots.Get(r.Context(), chi.URLParam(r, "id"))
	respond(w, v, err)
}

package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/ignite/sendgrid-insights/internal/ingest"
	"github.com/ignite/sendgrid-insights/internal/pkg/httputil"
	"github.com/ignite/sendgrid-insights/internal/service/events"
)

// ListEvents pages through stored events by unique id.
//
//	GET /api/events?after=<unique_id>&limit=
func (h *Handlers) ListEvents(w http.ResponseWriter, r *http.Request) {
	c := ParseCursor(r)
	page, err := h.events.Events(r.Context(), c.After, c.Limit)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, page)
}

// CountEvents returns the size of the event store.
func (h *Handlers) CountEvents(w http.ResponseWriter, r *http.Request) {
	n, err := h.events.Count(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]int{"count": n})
}

// UploadResponse reports a CSV export upload.
type UploadResponse struct {
	BatchID  string              `json:"batch_id"`
	Filename string              `json:"filename"`
	Parse    ingest.ParseStats   `json:"parse"`
	Ingest   events.IngestResult `json:"ingest"`
}

// UploadEvents ingests a SendGrid CSV export sent as multipart field "file".
//
//	POST /api/events/upload
func (h *Handlers) UploadEvents(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			httputil.Error(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		httputil.BadRequest(w, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	raws, stats, err := ingest.ParseCSV(file)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	batchID := uuid.New().String()
	res, err := h.events.IngestRaw(r.Context(), events.SourceUpload, raws)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	h.log.Info("csv upload ingested",
		"batch_id", batchID, "filename", header.Filename,
		"rows", stats.Rows, "stored", res.Stored)

	httputil.Created(w, UploadResponse{
		BatchID:  batchID,
		Filename: header.Filename,
		Parse:    stats,
		Ingest:   res,
	})
}

// SendGridWebhook accepts a SendGrid Event Webhook batch. When a public key
// is configured the request signature must verify.
//
//	POST /webhooks/sendgrid
func (h *Handlers) SendGridWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxUploadBytes))
	if err != nil {
		httputil.Error(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	if h.verifier != nil {
		sig := r.Header.Get(ingest.SignatureHeader)
		ts := r.Header.Get(ingest.TimestampHeader)
		if err := h.verifier.Verify(body, sig, ts); err != nil {
			h.log.Warn("webhook signature rejected", "error", err)
			respondServiceError(w, err)
			return
		}
	}

	raws, err := ingest.DecodeWebhook(bytes.NewReader(body), h.maxWebhookEvents)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	res, err := h.events.IngestRaw(r.Context(), events.SourceWebhook, raws)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	suppressed := 0
	if h.suppressFromHooks && h.suppressions != nil {
		evs, _ := h.events.Engine().NormalizeAll(raws)
		n, err := h.suppressions.SuppressFromEvents(r.Context(), evs)
		if err != nil {
			h.log.Error("webhook suppression failed", "error", err)
		}
		suppressed = n
	}

	httputil.OK(w, map[string]interface{}{
		"ingest":     res,
		"suppressed": suppressed,
	})
}

// RunImport triggers one S3 import pass.
//
//	POST /api/imports/s3
func (h *Handlers) RunImport(w http.ResponseWriter, r *http.Request) {
	if h.importer == nil {
		unavailable(w, "S3 import")
		return
	}
	summary, err := h.importer.RunOnce(r.Context())
	if err != nil {
		respondServiceError(w, fmt.Errorf("s3 import: %w", err))
		return
	}
	httputil.OK(w, summary)
}

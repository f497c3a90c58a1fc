package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/ignite/sendgrid-insights/internal/ingest"
	"github.com/ignite/sendgrid-insights/internal/pkg/httputil"
	"github.com/ignite/sendgrid-insights/internal/pkg/logger"
	"github.com/ignite/sendgrid-insights/internal/service/events"
	"github.com/ignite/sendgrid-insights/internal/service/suppression"
	"github.com/ignite/sendgrid-insights/internal/storage"
)

// Importer runs one S3 import pass. *ingest.S3Importer satisfies it.
type Importer interface {
	RunOnce(ctx context.Context) (ingest.ImportSummary, error)
}

// Deps are the collaborators behind the HTTP handlers. Only Events is
// required; nil optional collaborators disable their routes with 503.
type Deps struct {
	Events       *events.Service
	Suppressions *suppression.Service
	Snapshots    *storage.Snapshotter
	Importer     Importer
	Verifier     *ingest.Verifier

	MaxWebhookEvents     int
	MaxUploadBytes       int64
	SuppressFromWebhooks bool
}

// Handlers contains all HTTP handlers
type Handlers struct {
	events            *events.Service
	suppressions      *suppression.Service
	snapshots         *storage.Snapshotter
	importer          Importer
	verifier          *ingest.Verifier
	maxWebhookEvents  int
	maxUploadBytes    int64
	suppressFromHooks bool
	log               *logger.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(d Deps) *Handlers {
	if d.MaxWebhookEvents <= 0 {
		d.MaxWebhookEvents = 10000
	}
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = 50 << 20
	}
	return &Handlers{
		events:            d.Events,
		suppressions:      d.Suppressions,
		snapshots:         d.Snapshots,
		importer:          d.Importer,
		verifier:          d.Verifier,
		maxWebhookEvents:  d.MaxWebhookEvents,
		maxUploadBytes:    d.MaxUploadBytes,
		suppressFromHooks: d.SuppressFromWebhooks,
		log:               logger.With("component", "api"),
	}
}

// reportQuery reads the common report filters.
func reportQuery(r *http.Request) events.Query {
	q := r.URL.Query()
	return events.Query{
		Start:    strings.TrimSpace(q.Get("start")),
		End:      strings.TrimSpace(q.Get("end")),
		Kind:     strings.TrimSpace(q.Get("event")),
		Email:    strings.TrimSpace(q.Get("email")),
		Category: strings.TrimSpace(q.Get("category")),
	}
}

func unavailable(w http.ResponseWriter, what string) {
	httputil.Error(w, http.StatusServiceUnavailable, what+" is not configured")
}

package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/sendgrid-insights/internal/analytics"
	"github.com/ignite/sendgrid-insights/internal/export"
	"github.com/ignite/sendgrid-insights/internal/pkg/httputil"
	"github.com/ignite/sendgrid-insights/internal/service/suppression"
)

// Export streams one report as a CSV attachment.
//
//	GET /api/export/{report}.csv
func (h *Handlers) Export(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := reportQuery(r)

	var table export.Table
	switch strings.ToLower(chi.URLParam(r, "report")) {
	case "activity":
		evs, err := h.events.Activity(ctx, q)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		table = export.Activity(evs)
	case "figures":
		buckets, err := h.events.Timeseries(ctx, q, granularity(r))
		if err != nil {
			respondServiceError(w, err)
			return
		}
		table = export.Figures(buckets)
	case "categories":
		metric := analytics.CategoryMetric(strings.ToLower(r.URL.Query().Get("sort")))
		cats, err := h.events.Categories(ctx, q, metric)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		table = export.Categories(cats)
	case "contacts":
		f := analytics.DefaultContactFilter()
		f.Limit = httputil.QueryInt(r, "limit", 0)
		report, err := h.events.Engagement(ctx, f)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		table = export.Contacts(report.Contacts)
	case "domains":
		f := analytics.DefaultDomainFilter()
		f.Limit = httputil.QueryInt(r, "limit", 0)
		report, err := h.events.Domains(ctx, f)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		table = export.Domains(report.Domains)
	case "bounces":
		warnings, err := h.events.Bounces(ctx, q)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		table = export.Bounces(warnings)
	case "suppressions":
		if h.suppressions == nil {
			unavailable(w, "suppression list")
			return
		}
		list, _, err := h.suppressions.List(ctx, suppression.ListFilter{})
		if err != nil {
			respondServiceError(w, err)
			return
		}
		table = export.Suppressions(list)
	default:
		httputil.NotFound(w, "unknown export")
		return
	}

	httputil.CSV(w, table.Filename(), table.Header, table.Rows)
}

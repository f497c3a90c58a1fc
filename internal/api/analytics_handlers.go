package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/sendgrid-insights/internal/analytics"
	"github.com/ignite/sendgrid-insights/internal/domain"
	"github.com/ignite/sendgrid-insights/internal/pkg/httputil"
)

// respond writes v or maps err.
func respond(w http.ResponseWriter, v interface{}, err error) {
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, v)
}

func granularity(r *http.Request) domain.Granularity {
	return domain.ParseGranularity(strings.ToLower(r.URL.Query().Get("granularity")))
}

// GetKPIs returns headline rates.
//
//	GET /api/analytics/kpi
func (h *Handlers) GetKPIs(w http.ResponseWriter, r *http.Request) {
	v, err := h.events.KPIs(r.Context(), reportQuery(r))
	respond(w, v, err)
}

// GetTimeseries returns daily, weekly or monthly buckets.
//
//	GET /api/analytics/daily?granularity=
func (h *Handlers) GetTimeseries(w http.ResponseWriter, r *http.Request) {
	v, err := h.events.Timeseries(r.Context(), reportQuery(r), granularity(r))
	respond(w, v, err)
}

// GetFunnel returns the send funnel.
func (h *Handlers) GetFunnel(w http.ResponseWriter, r *http.Request) {
	v, err := h.events.Funnel(r.Context(), reportQuery(r))
	respond(w, v, err)
}

// GetCategories returns per-category aggregates sorted by ?sort=.
func (h *Handlers) GetCategories(w http.ResponseWriter, r *http.Request) {
	metric := analytics.CategoryMetric(strings.ToLower(r.URL.Query().Get("sort")))
	v, err := h.events.Categories(r.Context(), reportQuery(r), metric)
	respond(w, v, err)
}

// GetBounces returns repeated-bounce warnings.
func (h *Handlers) GetBounces(w http.ResponseWriter, r *http.Request) {
	v, err := h.events.Bounces(r.Context(), reportQuery(r))
	respond(w, v, err)
}

// GetActivity returns a page of the filtered event feed in time order.
func (h *Handlers) GetActivity(w http.ResponseWriter, r *http.Request) {
	evs, err := h.events.Activity(r.Context(), reportQuery(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	p := ParsePagination(r, 100, 1000)
	end := p.Offset + p.Limit
	if p.Offset > len(evs) {
		p.Offset = len(evs)
	}
	if end > len(evs) {
		end = len(evs)
	}
	httputil.OK(w, NewPaginatedResponse(evs[p.Offset:end], p, len(evs)))
}

// GetFilters returns the categories and domains present in the range.
func (h *Handlers) GetFilters(w http.ResponseWriter, r *http.Request) {
	v, err := h.events.Filters(r.Context(), reportQuery(r))
	respond(w, v, err)
}

// GetEngagement returns scored contacts.
//
//	GET /api/analytics/engagement?minScore&minSent&limit&tier
func (h *Handlers) GetEngagement(w http.ResponseWriter, r *http.Request) {
	f := analytics.DefaultContactFilter()
	f.MinSent = httputil.QueryInt(r, "minSent", f.MinSent)
	f.MinScore = httputil.QueryFloat(r, "minScore", f.MinScore)
	f.Limit = httputil.QueryInt(r, "limit", f.Limit)
	f.Tier = domain.Tier(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("tier"))))

	v, err := h.events.Engagement(r.Context(), f)
	respond(w, v, err)
}

// GetDomains returns scored recipient domains.
//
//	GET /api/analytics/domains?minContacts&trend=a,b&limit
func (h *Handlers) GetDomains(w http.ResponseWriter, r *http.Request) {
	f := analytics.DefaultDomainFilter()
	f.MinContacts = httputil.QueryInt(r, "minContacts", f.MinContacts)
	f.Limit = httputil.QueryInt(r, "limit", f.Limit)
	f.Trends = analytics.ParseTrends(r.URL.Query().Get("trend"))

	v, err := h.events.Domains(r.Context(), f)
	respond(w, v, err)
}

// GetDomainContacts lists scored contacts of one domain.
func (h *Handlers) GetDomainContacts(w http.ResponseWriter, r *http.Request) {
	v, err := h.events.DomainContacts(r.Context(), chi.URLParam(r, "domain"))
	respond(w, v, err)
}

// GetInsights returns actionable findings over the scoring window.
func (h *Handlers) GetInsights(w http.ResponseWriter, r *http.Request) {
	v, err := h.events.Insights(r.Context())
	respond(w, v, err)
}

// GetSequences returns send-sequence analytics, or the comparison with the
// previous equal-length period when ?compare=true.
func (h *Handlers) GetSequences(w http.ResponseWriter, r *http.Request) {
	q := reportQuery(r)
	if httputil.QueryBool(r, "compare") {
		v, err := h.events.CompareSequences(r.Context(), q, granularity(r))
		respond(w, v, err)
		return
	}
	v, err := h.events.Sequences(r.Context(), q, granularity(r))
	respond(w, v, err)
}

// GetCompare compares two ranges metric by metric.
//
//	GET /api/analytics/compare?before_start&before_end&after_start&after_end
func (h *Handlers) GetCompare(w http.ResponseWriter, r *http.Request) {
	base := reportQuery(r)
	q := r.URL.Query()
	before, after := base, base
	before.Start, before.End = q.Get("before_start"), q.Get("before_end")
	after.Start, after.End = q.Get("after_start"), q.Get("after_end")

	v, err := h.events.Compare(r.Context(), before, after)
	respond(w, v, err)
}

// GetOverview returns every summary view in one call.
func (h *Handlers) GetOverview(w http.ResponseWriter, r *http.Request) {
	v, err := h.events.Overview(r.Context(), reportQuery(r))
	respond(w, v, err)
}

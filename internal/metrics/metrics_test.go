package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHelpersAreNoOpsWithoutGlobal(t *testing.T) {
	SetGlobal(nil)
	assert.NotPanics(t, func() {
		AddEventsIngested("webhook", "open", 3)
		IncCache(true)
		IncLogin("success")
	})
}

func TestHelpersRecord(t *testing.T) {
	m := New()
	SetGlobal(m)
	defer SetGlobal(nil)

	AddEventsIngested("upload", "delivered", 4)
	AddEventsIngested("upload", "delivered", 0)
	IncCache(true)
	IncCache(false)
	IncCache(false)
	AddSuppressed(2)

	assert.Equal(t, 4.0, testutil.ToFloat64(m.EventsIngestedTotal.WithLabelValues("upload", "delivered")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheRequestsTotal.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheRequestsTotal.WithLabelValues("miss")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SuppressedTotal))
}

func TestHTTPMiddleware(t *testing.T) {
	m := New()
	SetGlobal(m)
	defer SetGlobal(nil)

	r := chi.NewRouter()
	r.Use(HTTPMiddleware)
	r.Get("/api/analytics/domains/{domain}/contacts", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/analytics/domains/acme.io/contacts", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	pattern := "/api/analytics/domains/{domain}/contacts"
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", pattern, "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPErrorsTotal.WithLabelValues("not_found")))
}

func TestHandlerServesRegistry(t *testing.T) {
	m := New()
	m.SnapshotsTotal.WithLabelValues("ok").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `sgi_snapshots_total{outcome="ok"} 1`)
}

func TestCategorizeStatus(t *testing.T) {
	assert.Equal(t, "server_error", categorizeStatus(503))
	assert.Equal(t, "rate_limited", categorizeStatus(429))
	assert.Equal(t, "auth_error", categorizeStatus(401))
	assert.Equal(t, "client_error", categorizeStatus(422))
}

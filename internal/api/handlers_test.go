package api

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/sendgrid-insights/internal/analytics"
	"github.com/ignite/sendgrid-insights/internal/auth"
	"github.com/ignite/sendgrid-insights/internal/config"
	"github.com/ignite/sendgrid-insights/internal/domain"
	"github.com/ignite/sendgrid-insights/internal/ingest"
	"github.com/ignite/sendgrid-insights/internal/pkg/distlock"
	"github.com/ignite/sendgrid-insights/internal/repository/memory"
	"github.com/ignite/sendgrid-insights/internal/service/events"
	"github.com/ignite/sendgrid-insights/internal/service/suppression"
	"github.com/ignite/sendgrid-insights/internal/storage"
)

type stubImporter struct {
	summary ingest.ImportSummary
	err     error
}

func (s stubImporter) RunOnce(context.Context) (ingest.ImportSummary, error) { return s.summary, s.err }

type testEnv struct {
	router       http.Handler
	events       *memory.EventRepo
	suppressions *memory.SuppressionRepo
}

func newTestEnv(t *testing.T, mutate func(*Deps, *RouteOptions)) *testEnv {
	t.Helper()
	repo := memory.NewEventRepo()
	supp := memory.NewSuppressionRepo()
	engine := analytics.New(analytics.WithLocation(time.UTC))
	svc := events.NewService(repo, engine, events.WithClock(func() time.Time {
		return time.Date(2025, 3, 20, 12, 0, 0, 0, time.UTC)
	}))

	deps := Deps{
		Events:               svc,
		Suppressions:         suppression.NewService(supp),
		SuppressFromWebhooks: true,
	}
	opts := RouteOptions{}
	if mutate != nil {
		mutate(&deps, &opts)
	}
	return &testEnv{
		router:       SetupRoutes(NewHandlers(deps), opts),
		events:       repo,
		suppressions: supp,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body []byte, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

const exportCSV = "email,event,timestamp,smtp-id,category,sg_event_id\n" +
	"a@acme.io,processed,2025-03-01 09:00:00,<m1>,promo,p1\n" +
	"a@acme.io,delivered,2025-03-01 09:01:00,<m1>,promo,d1\n" +
	"a@acme.io,open,2025-03-01 10:00:00,<m1>,promo,o1\n" +
	"b@beta.io,processed,2025-03-02 09:00:00,<m2>,news,p2\n" +
	"b@beta.io,delivered,2025-03-02 09:01:00,<m2>,news,d2\n"

func upload(t *testing.T, e *testEnv, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "export.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	return e.do(t, http.MethodPost, "/api/events/upload", buf.Bytes(),
		http.Header{"Content-Type": {mw.FormDataContentType()}})
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestUploadAndReports(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := upload(t, env, exportCSV)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var up UploadResponse
	decode(t, rec, &up)
	assert.Equal(t, "export.csv", up.Filename)
	assert.Equal(t, 5, up.Parse.Rows)
	assert.Equal(t, 5, up.Ingest.Stored)
	assert.NotEmpty(t, up.BatchID)

	rec = env.do(t, http.MethodGet, "/api/analytics/kpi?start=2025-03-01&end=2025-03-02", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var kpi domain.KPIMetrics
	decode(t, rec, &kpi)
	assert.Equal(t, 2, kpi.Processed)
	assert.InDelta(t, 100.0, kpi.DeliveredPct, 0.001)
	assert.InDelta(t, 50.0, kpi.UniqueOpensPct, 0.001)

	rec = env.do(t, http.MethodGet, "/api/analytics/daily?start=2025-03-01&end=2025-03-02", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var daily []domain.DailyBucket
	decode(t, rec, &daily)
	require.Len(t, daily, 2)
	assert.Equal(t, "2025-03-01", daily[0].Date)

	rec = env.do(t, http.MethodGet, "/api/analytics/categories?sort=delivered", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"category":"promo"`)

	rec = env.do(t, http.MethodGet, "/api/events?limit=2", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page events.Page
	decode(t, rec, &page)
	assert.Len(t, page.Events, 2)
	assert.True(t, page.HasMore)

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/events?after=%d&limit=10", page.NextAfter), nil, nil)
	decode(t, rec, &page)
	assert.Len(t, page.Events, 3)
	assert.False(t, page.HasMore)

	rec = env.do(t, http.MethodGet, "/api/analytics/activity?limit=2&page=2", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var paged struct {
		Data       []domain.Event `json:"data"`
		Pagination PaginationMeta `json:"pagination"`
	}
	decode(t, rec, &paged)
	assert.Len(t, paged.Data, 2)
	assert.Equal(t, 5, paged.Pagination.Total)
	assert.Equal(t, 3, paged.Pagination.TotalPages)
}

func TestUpload_Errors(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/events/upload", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = upload(t, env, "email,event\na@acme.io,open\n")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing")

	rec = upload(t, env, "email,event,timestamp,sg_event_id\na@acme.io,exploded,2025-03-01,x1\n")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReports_InvalidQuery(t *testing.T) {
	env := newTestEnv(t, nil)
	for _, path := range []string{
		"/api/analytics/kpi?start=yesterday",
		"/api/analytics/funnel?start=2025-03-05&end=2025-03-01",
		"/api/analytics/bounces?event=exploded",
	} {
		rec := env.do(t, http.MethodGet, path, nil, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

const hookBody = `[
 {"email":"a@acme.io","timestamp":1740819600,"event":"delivered","sg_event_id":"w1","category":"promo"},
 {"email":"a@acme.io","timestamp":1740819700,"event":"spamreport","sg_event_id":"w2"},
 {"email":"c@gamma.io","timestamp":1740819800,"event":"unsubscribe","sg_event_id":"w3"}
]`

func TestSendGridWebhook(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/webhooks/sendgrid", []byte(hookBody), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Ingest     events.IngestResult `json:"ingest"`
		Suppressed int                 `json:"suppressed"`
	}
	decode(t, rec, &resp)
	assert.Equal(t, 3, resp.Ingest.Stored)
	assert.Equal(t, 2, resp.Suppressed)

	ok, _ := env.suppressions.IsSuppressed(context.Background(), "a@acme.io")
	assert.True(t, ok)

	rec = env.do(t, http.MethodPost, "/webhooks/sendgrid", []byte(`{"not":"an array"}`), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendGridWebhook_SignatureRequired(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	require.NoError(t, err)
	verifier, err := ingest.NewVerifier(base64.StdEncoding.EncodeToString(der))
	require.NoError(t, err)
	env := newTestEnv(t, func(d *Deps, _ *RouteOptions) { d.Verifier = verifier })

	rec := env.do(t, http.MethodPost, "/webhooks/sendgrid", []byte(hookBody), http.Header{
		ingest.SignatureHeader: {"MEUCIQ=="},
		ingest.TimestampHeader: {"1740819600"},
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	n, _ := env.events.Count(context.Background())
	assert.Zero(t, n)
}

func TestExport(t *testing.T) {
	env := newTestEnv(t, nil)
	require.Equal(t, http.StatusCreated, upload(t, env, exportCSV).Code)

	rec := env.do(t, http.MethodGet, "/api/export/figures.csv?start=2025-03-01&end=2025-03-02", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "figures.csv")
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "date,requests,delivered"))

	rec = env.do(t, http.MethodGet, "/api/export/activity.csv", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "2025-03-01T09:00:00.000Z,a@acme.io,processed,<m1>,promo,,p1")

	rec = env.do(t, http.MethodGet, "/api/export/everything.csv", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSuppressionRoutes(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/suppressions", []byte(`{"email":"X@Acme.io","note":"asked"}`), nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/suppressions", []byte(`{"email":"x@acme.io"}`), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/suppressions", []byte(`{"email":"not-an-email"}`), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/suppressions/check?email=x@acme.io", nil, nil)
	assert.Contains(t, rec.Body.String(), `"suppressed":true`)

	rec = env.do(t, http.MethodGet, "/api/suppressions?limit=10", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":1`)

	rec = env.do(t, http.MethodGet, "/api/export/suppressions.csv", nil, nil)
	assert.Contains(t, rec.Body.String(), "x@acme.io,acme.io,manual,manual")

	rec = env.do(t, http.MethodPost, "/api/suppressions/screen", []byte(`{"emails":["x@acme.io","y@acme.io"]}`), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"suppressed":["x@acme.io"]`)
	assert.Contains(t, rec.Body.String(), `"allowed":["y@acme.io"]`)

	rec = env.do(t, http.MethodPost, "/api/suppressions/screen", []byte(`{"emails":[]}`), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/suppressions/x@acme.io", nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/suppressions/x@acme.io", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOptionalCollaborators(t *testing.T) {
	env := newTestEnv(t, func(d *Deps, _ *RouteOptions) { d.Suppressions = nil })

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/api/reports/snapshot"},
		{http.MethodGet, "/api/reports/snapshots"},
		{http.MethodPost, "/api/imports/s3"},
		{http.MethodGet, "/api/suppressions"},
	} {
		rec := env.do(t, tc.method, tc.path, nil, nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, tc.path)
	}
}

func TestSnapshotRoutes(t *testing.T) {
	archive, err := storage.NewLocalArchive(t.TempDir())
	require.NoError(t, err)
	env := newTestEnv(t, func(d *Deps, _ *RouteOptions) {
		d.Snapshots = storage.NewSnapshotter(archive, d.Events, "")
	})
	require.Equal(t, http.StatusCreated, upload(t, env, exportCSV).Code)

	rec := env.do(t, http.MethodPost, "/api/reports/snapshot?start=2025-03-01&end=2025-03-02", []byte(`{"note":"march"}`), nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var meta storage.SnapshotMeta
	decode(t, rec, &meta)
	assert.Equal(t, 5, meta.EventCount)
	assert.Equal(t, "march", meta.Note)

	rec = env.do(t, http.MethodGet, "/api/reports/snapshots/"+meta.ID, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"overview"`)

	rec = env.do(t, http.MethodGet, "/api/reports/snapshots/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunImport(t *testing.T) {
	env := newTestEnv(t, func(d *Deps, _ *RouteOptions) {
		d.Importer = stubImporter{summary: ingest.ImportSummary{Objects: []ingest.ObjectResult{{Key: "a.csv"}}}}
	})
	rec := env.do(t, http.MethodPost, "/api/imports/s3", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"key":"a.csv"`)

	busy := newTestEnv(t, func(d *Deps, _ *RouteOptions) {
		d.Importer = stubImporter{err: distlock.ErrNotAcquired}
	})
	rec = busy.do(t, http.MethodPost, "/api/imports/s3", nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAuthProtectsAPI(t *testing.T) {
	am, err := auth.NewManager(config.AuthConfig{
		Enabled: true, Username: "ops", Password: "pw", Secret: "k",
		CookieName: "auth_token", ShortSessionSeconds: 3600, RememberDays: 7,
	}, false)
	require.NoError(t, err)
	env := newTestEnv(t, func(_ *Deps, o *RouteOptions) { o.Auth = am })

	rec := env.do(t, http.MethodGet, "/api/analytics/kpi", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/auth/login", []byte(`{"username":"ops","password":"bad"}`), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/auth/login", []byte(`{"username":"ops","password":"pw"}`), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)

	rec = env.do(t, http.MethodGet, "/api/analytics/kpi", nil, http.Header{
		"Cookie": {cookies[0].Name + "=" + cookies[0].Value},
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	// The webhook stays reachable without a session.
	rec = env.do(t, http.MethodPost, "/webhooks/sendgrid", []byte(hookBody), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrap: %w", events.ErrInvalidQuery), http.StatusBadRequest},
		{events.ErrEmptyBatch, http.StatusBadRequest},
		{ingest.ErrBadSignature, http.StatusUnauthorized},
		{storage.ErrSnapshotNotFound, http.StatusNotFound},
		{distlock.ErrNotAcquired, http.StatusConflict},
		{errors.New("pq: connection refused"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestParseCursor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/events?after=42&limit=7", nil)
	assert.Equal(t, Cursor{After: 42, Limit: 7}, ParseCursor(req))

	req = httptest.NewRequest(http.MethodGet, "/api/events?after=-3", nil)
	assert.Equal(t, Cursor{}, ParseCursor(req))
}

package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONHelpers(t *testing.T) {
	rec := httptest.NewRecorder()
	OK(rec, map[string]int{"count": 3})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	assert.JSONEq(t, `{"count":3}`, rec.Body.String())

	rec = httptest.NewRecorder()
	InternalError(rec, errors.New("pq: connection refused"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "internal server error", body.Error)

	rec = httptest.NewRecorder()
	TooManyRequests(rec, 30)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
}

func TestDecode(t *testing.T) {
	var dst struct {
		Name string `json:"name"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"promo"}`))
	rec := httptest.NewRecorder()
	require.True(t, Decode(rec, req, &dst))
	assert.Equal(t, "promo", dst.Name)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
	rec = httptest.NewRecorder()
	assert.False(t, Decode(rec, req, &dst))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCSV(t *testing.T) {
	rec := httptest.NewRecorder()
	CSV(rec, "figures.csv", []string{"date", "delivered"}, [][]string{{"2025-01-06", "4"}})

	assert.Equal(t, `attachment; filename="figures.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "date,delivered\n2025-01-06,4\n", rec.Body.String())
}

func TestQueryReaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=25&min=1.5&bad=x&compare=true", nil)
	assert.Equal(t, 25, QueryInt(req, "limit", 50))
	assert.Equal(t, 50, QueryInt(req, "bad", 50))
	assert.Equal(t, 50, QueryInt(req, "missing", 50))
	assert.Equal(t, 1.5, QueryFloat(req, "min", 0))
	assert.True(t, QueryBool(req, "compare"))
	assert.False(t, QueryBool(req, "missing"))
}

package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fixedClock(l *Limiter, t time.Time) *time.Time {
	now := t
	l.now = func() time.Time { return now }
	return &now
}

func TestAllow_BurstThenRefill(t *testing.T) {
	l := NewLimiter("test", 1, 2)
	now := fixedClock(l, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))

	assert.True(t, l.Allow("1.1.1.1"))
	assert.True(t, l.Allow("1.1.1.1"))
	assert.False(t, l.Allow("1.1.1.1"))
	assert.True(t, l.Allow("2.2.2.2"), "buckets are per IP")

	*now = now.Add(time.Second)
	assert.True(t, l.Allow("1.1.1.1"))
	assert.False(t, l.Allow("1.1.1.1"))
}

func TestSweep(t *testing.T) {
	l := NewLimiter("test", 1, 1)
	now := fixedClock(l, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))

	l.Allow("1.1.1.1")
	*now = now.Add(2 * time.Minute)
	l.Allow("2.2.2.2")
	assert.Equal(t, 2, l.Len())

	*now = now.Add(4 * time.Minute)
	l.sweep()
	assert.Equal(t, 1, l.Len())
}

func TestMiddleware(t *testing.T) {
	l := PerMinute("login", 1, 1)
	fixedClock(l, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, do("10.0.0.1:5000").Code)

	rec := do("10.0.0.1:5001")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "too many requests")

	assert.Equal(t, http.StatusNoContent, do("10.0.0.2").Code)
}

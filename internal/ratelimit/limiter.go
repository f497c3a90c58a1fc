package ratelimit

import (
	"context"
	"math"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ignite/sendgrid-insights/internal/metrics"
	"github.com/ignite/sendgrid-insights/internal/pkg/httputil"
)

const (
	cleanupEvery = 3 * time.Minute
	staleAfter   = 5 * time.Minute
)

// Limiter is a per-IP token bucket rate limiter.
type Limiter struct {
	name     string
	visitors map[string]*visitor
	mu       sync.Mutex
	rps      rate.Limit
	burst    int
	now      func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLimiter allows rps requests per second per IP with the given burst.
// name labels the rejection metric.
func NewLimiter(name string, rps float64, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		name:     name,
		visitors: make(map[string]*visitor),
		rps:      rate.Limit(rps),
		burst:    burst,
		now:      time.Now,
	}
}

// PerMinute is a convenience for limits expressed per minute.
func PerMinute(name string, n, burst int) *Limiter {
	return NewLimiter(name, float64(n)/60, burst)
}

// Allow reports whether a request from ip should be permitted.
func (l *Limiter) Allow(ip string) bool {
	ok, _ := l.reserve(ip)
	return ok
}

// reserve consumes a token for ip. When none is available it returns the
// wait until the next token.
func (l *Limiter) reserve(ip string) (bool, time.Duration) {
	now := l.now()
	l.mu.Lock()
	v, exists := l.visitors[ip]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	l.mu.Unlock()

	r := v.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Minute
	}
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return false, d
	}
	return true, 0
}

// Cleanup drops visitors idle for five minutes, every three minutes, until
// ctx is done.
func (l *Limiter) Cleanup(ctx context.Context) {
	ticker := time.NewTicker(cleanupEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

func (l *Limiter) sweep() {
	cutoff := l.now().Add(-staleAfter)
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, v := range l.visitors {
		if !v.lastSeen.After(cutoff) {
			delete(l.visitors, ip)
		}
	}
}

// Len returns the number of tracked visitors.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

// Middleware rejects requests over the limit with 429 and a Retry-After hint.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}

		if ok, wait := l.reserve(ip); !ok {
			metrics.IncRateLimited(l.name)
			httputil.TooManyRequests(w, int(math.Ceil(wait.Seconds())))
			return
		}
		next.ServeHTTP(w, r)
	})
}

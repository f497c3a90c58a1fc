package api

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/sendgrid-insights/internal/pkg/httputil"
)

// Component states reported by health checks.
const (
	statusUp       = "up"
	statusDegraded = "degraded"
	statusDown     = "down"
)

// BucketHeader is the S3 call used to probe the import bucket.
type BucketHeader interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status     string                    `json:"status"` // "healthy", "degraded", "unhealthy"
	Version    string                    `json:"version"`
	Uptime     string                    `json:"uptime"`
	EventStore *EventStoreStats          `json:"event_store,omitempty"`
	Checks     map[string]ComponentCheck `json:"checks"`
}

// ComponentCheck is the result of one probe.
type ComponentCheck struct {
	Status   string `json:"status"`
	Critical bool   `json:"critical,omitempty"`
	Latency  string `json:"latency,omitempty"`
	Message  string `json:"message,omitempty"`
}

// EventStoreStats describes how much data the reports are built from.
type EventStoreStats struct {
	Events     int        `json:"events"`
	LastIngest *time.Time `json:"last_ingest,omitempty"`
}

type probe struct {
	name     string
	critical bool
	timeout  time.Duration
	run      func(ctx context.Context) ComponentCheck
}

// HealthChecker reports whether the service can answer reports. The event
// store is the only critical component; the report cache and the import
// bucket are probed only when configured.
type HealthChecker struct {
	db         *sql.DB
	staleAfter time.Duration
	startTime  time.Time
	now        func() time.Time
	probes     []probe

	mu   sync.Mutex
	last *EventStoreStats
}

// HealthOption configures a HealthChecker.
type HealthOption func(*HealthChecker)

// WithReportCache probes the Redis instance behind the report cache.
func WithReportCache(client *redis.Client) HealthOption {
	return func(hc *HealthChecker) {
		if client == nil {
			return
		}
		hc.probes = append(hc.probes, probe{
			name:    "report_cache",
			timeout: 2 * time.Second,
			run: func(ctx context.Context) ComponentCheck {
				if err := client.Ping(ctx).Err(); err != nil {
					return ComponentCheck{Status: statusDegraded, Message: "reports served uncached: " + err.Error()}
				}
				return ComponentCheck{Status: statusUp}
			},
		})
	}
}

// WithImportBucket probes the bucket the S3 importer polls.
func WithImportBucket(client BucketHeader, bucket string) HealthOption {
	return func(hc *HealthChecker) {
		if client == nil || bucket == "" {
			return
		}
		hc.probes = append(hc.probes, probe{
			name:    "import_bucket",
			timeout: 3 * time.Second,
			run: func(ctx context.Context) ComponentCheck {
				if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &bucket}); err != nil {
					return ComponentCheck{Status: statusDegraded, Message: fmt.Sprintf("exports in %q not reachable: %v", bucket, err)}
				}
				return ComponentCheck{Status: statusUp, Message: bucket}
			},
		})
	}
}

// WithStaleAfter sets the ingest gap after which the event store is
// reported degraded. Zero disables the freshness check.
func WithStaleAfter(d time.Duration) HealthOption {
	return func(hc *HealthChecker) { hc.staleAfter = d }
}

// NewHealthChecker builds a checker over the event store in db. A nil db
// means the process runs without Postgres and the store is not probed.
func NewHealthChecker(db *sql.DB, opts ...HealthOption) *HealthChecker {
	hc := &HealthChecker{
		db:        db,
		startTime: time.Now(),
		now:       time.Now,
	}
	if db != nil {
		hc.probes = append(hc.probes, probe{
			name:     "event_store",
			critical: true,
			timeout:  3 * time.Second,
			run:      hc.checkEventStore,
		})
	}
	for _, opt := range opts {
		opt(hc)
	}
	return hc
}

// Version is reported by the health endpoint; cmd binaries override it.
var Version = "dev"

// HandleHealth always answers 200; the body carries the verdict.
//
//	GET /health
func (hc *HealthChecker) HandleHealth(w http.ResponseWriter, r *http.Request) {
	checks := hc.run(r.Context())
	hc.mu.Lock()
	stats := hc.last
	hc.mu.Unlock()

	httputil.JSON(w, http.StatusOK, HealthStatus{
		Status:     overallStatus(checks),
		Version:    Version,
		Uptime:     time.Since(hc.startTime).Round(time.Second).String(),
		EventStore: stats,
		Checks:     checks,
	})
}

// HandleLiveness answers 200 while the process runs.
//
//	GET /health/live
func (hc *HealthChecker) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"status": "alive",
		"uptime": time.Since(hc.startTime).Round(time.Second).String(),
	})
}

// HandleReadiness answers 503 when reports cannot be built because the
// event store is unreachable. A stale store or an unreachable cache or
// bucket leaves the service ready but degraded.
//
//	GET /health/ready
func (hc *HealthChecker) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	checks := hc.run(r.Context())
	overall := overallStatus(checks)

	code := http.StatusOK
	if overall == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	httputil.JSON(w, code, map[string]interface{}{
		"ready":  code == http.StatusOK,
		"status": overall,
		"checks": checks,
	})
}

// HandleDBStats returns connection pool statistics.
//
//	GET /health/db
func (hc *HealthChecker) HandleDBStats(w http.ResponseWriter, r *http.Request) {
	if hc.db == nil {
		httputil.Error(w, http.StatusServiceUnavailable, "no database configured")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	ping := "ok"
	if err := hc.db.PingContext(ctx); err != nil {
		ping = err.Error()
	}

	stats := hc.db.Stats()
	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"pool": map[string]interface{}{
			"max_open":      stats.MaxOpenConnections,
			"open":          stats.OpenConnections,
			"in_use":        stats.InUse,
			"idle":          stats.Idle,
			"wait_count":    stats.WaitCount,
			"wait_duration": stats.WaitDuration.String(),
		},
		"ping": ping,
	})
}

// run executes every probe concurrently, each under its own timeout.
func (hc *HealthChecker) run(ctx context.Context) map[string]ComponentCheck {
	results := make([]ComponentCheck, len(hc.probes))
	var wg sync.WaitGroup
	for i, p := range hc.probes {
		wg.Add(1)
		go func(i int, p probe) {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, p.timeout)
			defer cancel()
			start := time.Now()
			c := p.run(pctx)
			c.Latency = time.Since(start).Round(time.Microsecond).String()
			c.Critical = p.critical
			results[i] = c
		}(i, p)
	}
	wg.Wait()

	checks := make(map[string]ComponentCheck, len(hc.probes))
	for i, p := range hc.probes {
		checks[p.name] = results[i]
	}
	return checks
}

// checkEventStore counts stored events and finds the latest ingest. A query
// failure means no report can be served; an empty or stale store still
// serves reports but they no longer reflect current sending.
func (hc *HealthChecker) checkEventStore(ctx context.Context) ComponentCheck {
	var count int
	var last sql.NullTime
	err := hc.db.QueryRowContext(ctx,
		`SELECT COUNT(*), MAX(ingested_at) FROM sendgrid_events`,
	).Scan(&count, &last)
	if err != nil {
		return ComponentCheck{Status: statusDown, Message: fmt.Sprintf("event store unreachable: %v", err)}
	}

	stats := &EventStoreStats{Events: count}
	if last.Valid {
		t := last.Time
		stats.LastIngest = &t
	}
	hc.mu.Lock()
	hc.last = stats
	hc.mu.Unlock()

	if count == 0 {
		return ComponentCheck{Status: statusDegraded, Message: "no events ingested"}
	}
	msg := fmt.Sprintf("%d events", count)
	if !last.Valid {
		return ComponentCheck{Status: statusUp, Message: msg}
	}
	age := hc.now().Sub(last.Time)
	if hc.staleAfter > 0 && age > hc.staleAfter {
		return ComponentCheck{
			Status:  statusDegraded,
			Message: fmt.Sprintf("%s, nothing ingested for %s", msg, age.Round(time.Minute)),
		}
	}
	return ComponentCheck{Status: statusUp, Message: fmt.Sprintf("%s, last ingest %s ago", msg, age.Round(time.Second))}
}

// overallStatus is "unhealthy" when a critical component is down,
// "degraded" when anything else is not up and "healthy" otherwise.
func overallStatus(checks map[string]ComponentCheck) string {
	status := "healthy"
	for _, c := range checks {
		switch {
		case c.Critical && c.Status == statusDown:
			return "unhealthy"
		case c.Status != statusUp:
			status = "degraded"
		}
	}
	return status
}

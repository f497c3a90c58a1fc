package events

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/ignite/sendgrid-insights/internal/analytics"
	"github.com/ignite/sendgrid-insights/internal/cache"
	"github.com/ignite/sendgrid-insights/internal/domain"
	"github.com/ignite/sendgrid-insights/internal/metrics"
	"github.com/ignite/sendgrid-insights/internal/pkg/logger"
)

// Ingestion sources, used as metric labels and log fields.
const (
	SourceUpload  = "upload"
	SourceWebhook = "webhook"
	SourceS3      = "s3"
	SourceCLI     = "cli"
)

// DefaultPageSize and MaxPageSize bound ListAfter pages.
const (
	DefaultPageSize = 1000
	MaxPageSize     = 5000
)

// Service implements ingestion and reporting. It is safe for concurrent use.
type Service struct {
	repo   Repository
	engine *analytics.Engine
	cache  cache.ReportCache
	now    func() time.Time
	log    *logger.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithCache sets the report cache. Without it reports are always rebuilt.
func WithCache(c cache.ReportCache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithClock overrides the clock used for trailing windows.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates an events service backed by repo.
func NewService(repo Repository, engine *analytics.Engine, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		engine: engine,
		cache:  cache.Nop{},
		now:    time.Now,
		log:    logger.With("component", "events"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Engine returns the analytics engine the service reports with.
func (s *Service) Engine() *analytics.Engine { return s.engine }

// IngestResult summarises one ingestion batch.
type IngestResult struct {
	Received int `json:"received"`
	Rejected int `json:"rejected"`
	Unique   int `json:"unique"`
	Stored   int `json:"stored"`
}

// IngestRaw normalizes raw records and ingests the valid ones.
func (s *Service) IngestRaw(ctx context.Context, source string, raws []analytics.RawEvent) (IngestResult, error) {
	events, rejected := s.engine.NormalizeAll(raws)
	metrics.AddEventsRejected(source, rejected)
	if rejected > 0 {
		s.log.Warn("rejected raw events", "source", source, "rejected", rejected, "received", len(raws))
	}

	res, err := s.Ingest(ctx, source, events)
	res.Received = len(raws)
	res.Rejected = rejected
	return res, err
}

// Ingest deduplicates events by id, stores them and invalidates cached
// reports. Within the batch the latest event per id wins.
func (s *Service) Ingest(ctx context.Context, source string, events []domain.Event) (IngestResult, error) {
	res := IngestResult{Received: len(events)}
	if len(events) == 0 {
		return res, ErrEmptyBatch
	}

	unique := analytics.Dedupe(events)
	res.Unique = len(unique)

	stored, err := s.repo.Upsert(ctx, unique)
	if err != nil {
		return res, fmt.Errorf("store %d events: %w", len(unique), err)
	}
	res.Stored = stored

	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.Warn("report cache invalidation failed", "error", err)
	}

	byKind := make(map[domain.EventKind]int)
	for _, ev := range unique {
		byKind[ev.Kind]++
	}
	for kind, n := range byKind {
		metrics.AddEventsIngested(source, string(kind), n)
	}
	s.log.Info("ingested events", "source", source, "received", res.Received, "unique", res.Unique, "stored", res.Stored)
	return res, nil
}

// Page is one keyset page of stored events.
type Page struct {
	Events    []domain.Event `json:"events"`
	NextAfter int64          `json:"next_after"`
	HasMore   bool           `json:"has_more"`
}

// Events returns the stored events after the given UniqueID, for clients
// that refresh incrementally.
func (s *Service) Events(ctx context.Context, after int64, limit int) (Page, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	// One extra row tells us whether another page exists.
	rows, err := s.repo.ListAfter(ctx, after, limit+1)
	if err != nil {
		return Page{}, fmt.Errorf("list events after %d: %w", after, err)
	}

	page := Page{Events: rows, NextAfter: after}
	if len(rows) > limit {
		page.Events = rows[:limit]
		page.HasMore = true
	}
	if n := len(page.Events); n > 0 {
		page.NextAfter = page.Events[n-1].UniqueID
	}
	if page.Events == nil {
		page.Events = []domain.Event{}
	}
	return page, nil
}

// Count returns the number of stored events.
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

// Query selects the events a report covers. Start and End are
// YYYY-MM-DD days in the reporting zone; Kind may be "all".
type Query struct {
	Start    string
	End      string
	Kind     string
	Email    string
	Category string
}

func (q Query) values() url.Values {
	return url.Values{
		"start":    {q.Start},
		"end":      {q.End},
		"event":    {q.Kind},
		"email":    {q.Email},
		"category": {q.Category},
	}
}

func (s *Service) resolve(q Query) (analytics.EventFilter, error) {
	r, err := s.engine.DayRange(q.Start, q.End)
	if err != nil {
		return analytics.EventFilter{}, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	if q.Kind != "" && q.Kind != analytics.KindAll {
		if _, ok := analytics.ParseKind(q.Kind); !ok {
			return analytics.EventFilter{}, fmt.Errorf("%w: unknown event %q", ErrInvalidQuery, q.Kind)
		}
	}
	return analytics.EventFilter{Range: r, Kind: q.Kind, Email: q.Email, Category: q.Category}, nil
}

// load fetches the events in r from the store and applies the remaining
// filter conditions in memory.
func (s *Service) load(ctx context.Context, f analytics.EventFilter) ([]domain.Event, error) {
	events, err := s.repo.List(ctx, ListFilter{Start: f.Range.Start, End: f.Range.End})
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	return analytics.FilterEvents(events, f), nil
}

func (s *Service) loadQuery(ctx context.Context, q Query) ([]domain.Event, error) {
	f, err := s.resolve(q)
	if err != nil {
		return nil, err
	}
	return s.load(ctx, f)
}

// cached returns the cached report under key or builds and stores it.
// Cache failures degrade to rebuilding.
func cached[T any](ctx context.Context, s *Service, report, key string, build func() (T, error)) (T, error) {
	start := time.Now()
	defer func() { metrics.ObserveReport(report, time.Since(start).Seconds()) }()

	var out T
	hit, err := s.cache.Get(ctx, key, &out)
	if err != nil {
		s.log.Warn("report cache read failed", "key", key, "error", err)
	}
	metrics.IncCache(hit)
	if hit {
		return out, nil
	}

	out, err = build()
	if err != nil {
		return out, err
	}
	if err := s.cache.Set(ctx, key, out); err != nil {
		s.log.Warn("report cache write failed", "key", key, "error", err)
	}
	return out, nil
}

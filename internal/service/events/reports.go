package events

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ignite/sendgrid-insights/internal/analytics"
	"github.com/ignite/sendgrid-insights/internal/cache"
	"github.com/ignite/sendgrid-insights/internal/domain"
)

// KPIs returns the headline percentages for q.
func (s *Service) KPIs(ctx context.Context, q Query) (domain.KPIMetrics, error) {
	return cached(ctx, s, "kpi", cache.Key("kpi", q.values()), func() (domain.KPIMetrics, error) {
		events, err := s.loadQuery(ctx, q)
		if err != nil {
			return domain.KPIMetrics{}, err
		}
		return analytics.KPIs(events), nil
	})
}

// Timeseries returns buckets for q at granularity g.
func (s *Service) Timeseries(ctx context.Context, q Query, g domain.Granularity) ([]domain.DailyBucket, error) {
	params := q.values()
	params.Set("granularity", string(g))
	return cached(ctx, s, "timeseries", cache.Key("timeseries", params), func() ([]domain.DailyBucket, error) {
		events, err := s.loadQuery(ctx, q)
		if err != nil {
			return nil, err
		}
		return s.engine.Timeseries(events, g), nil
	})
}

// Funnel returns the four funnel stages for q.
func (s *Service) Funnel(ctx context.Context, q Query) ([]domain.FunnelStage, error) {
	return cached(ctx, s, "funnel", cache.Key("funnel", q.values()), func() ([]domain.FunnelStage, error) {
		events, err := s.loadQuery(ctx, q)
		if err != nil {
			return nil, err
		}
		return analytics.Funnel(events), nil
	})
}

// Categories returns category performance for q sorted by metric.
func (s *Service) Categories(ctx context.Context, q Query, metric analytics.CategoryMetric) ([]domain.CategoryAggregate, error) {
	params := q.values()
	params.Set("sort", string(metric))
	return cached(ctx, s, "categories", cache.Key("categories", params), func() ([]domain.CategoryAggregate, error) {
		events, err := s.loadQuery(ctx, q)
		if err != nil {
			return nil, err
		}
		return analytics.SortCategories(analytics.Categories(events), metric), nil
	})
}

// Bounces returns the bounce warnings for q.
func (s *Service) Bounces(ctx context.Context, q Query) ([]domain.BounceWarning, error) {
	return cached(ctx, s, "bounces", cache.Key("bounces", q.values()), func() ([]domain.BounceWarning, error) {
		events, err := s.loadQuery(ctx, q)
		if err != nil {
			return nil, err
		}
		return analytics.DetectBounces(events), nil
	})
}

// Activity returns the raw events matching q, newest last.
func (s *Service) Activity(ctx context.Context, q Query) ([]domain.Event, error) {
	return s.loadQuery(ctx, q)
}

// FilterOptions lists the values the dashboard filters can offer.
type FilterOptions struct {
	Categories []string `json:"categories"`
	Domains    []string `json:"domains"`
}

// Filters returns the categories and domains present in q's window.
func (s *Service) Filters(ctx context.Context, q Query) (FilterOptions, error) {
	return cached(ctx, s, "filters", cache.Key("filters", q.values()), func() (FilterOptions, error) {
		events, err := s.loadQuery(ctx, q)
		if err != nil {
			return FilterOptions{}, err
		}
		return FilterOptions{
			Categories: analytics.AvailableCategories(events),
			Domains:    analytics.EmailDomains(events),
		}, nil
	})
}

// loadTrailing loads the scoring window ending now.
func (s *Service) loadTrailing(ctx context.Context, now time.Time) ([]domain.Event, error) {
	w := analytics.Trailing(now, analytics.ScoringWindow)
	return s.load(ctx, analytics.EventFilter{Range: w})
}

// Engagement scores contacts over the trailing scoring window. The cache
// key carries the day so recency bonuses refresh daily.
func (s *Service) Engagement(ctx context.Context, f analytics.ContactFilter) (domain.ContactReport, error) {
	now := s.now()
	params := url.Values{
		"day":      {now.In(s.engine.Location()).Format("2006-01-02")},
		"minSent":  {strconv.Itoa(f.MinSent)},
		"minScore": {strconv.FormatFloat(f.MinScore, 'f', -1, 64)},
		"tier":     {string(f.Tier)},
		"limit":    {strconv.Itoa(f.Limit)},
	}
	return cached(ctx, s, "engagement", cache.Key("engagement", params), func() (domain.ContactReport, error) {
		events, err := s.loadTrailing(ctx, now)
		if err != nil {
			return domain.ContactReport{}, err
		}
		return analytics.BuildContactReport(events, f, now), nil
	})
}

// Domains scores recipient domains over the trailing scoring window.
func (s *Service) Domains(ctx context.Context, f analytics.DomainFilter) (domain.DomainReport, error) {
	now := s.now()
	trends := make([]string, 0, len(f.Trends))
	for _, t := range f.Trends {
		trends = append(trends, string(t))
	}
	params := url.Values{
		"day":         {now.In(s.engine.Location()).Format("2006-01-02")},
		"minContacts": {strconv.Itoa(f.MinContacts)},
		"trend":       {strings.Join(trends, ",")},
		"limit":       {strconv.Itoa(f.Limit)},
	}
	return cached(ctx, s, "domains", cache.Key("domains", params), func() (domain.DomainReport, error) {
		events, err := s.loadTrailing(ctx, now)
		if err != nil {
			return domain.DomainReport{}, err
		}
		return analytics.BuildDomainReport(events, f, now), nil
	})
}

// DomainContacts scores the recipients of one domain over the trailing
// scoring window. It returns ErrNotFound when the domain has no events.
func (s *Service) DomainContacts(ctx context.Context, name string) ([]domain.ContactEngagement, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil, fmt.Errorf("%w: domain is required", ErrInvalidQuery)
	}
	now := s.now()
	w := analytics.Trailing(now, analytics.ScoringWindow)
	events, err := s.repo.List(ctx, ListFilter{Start: w.Start, End: w.End, Domain: name})
	if err != nil {
		return nil, fmt.Errorf("load domain %s: %w", name, err)
	}
	contacts := analytics.DomainContacts(events, name, now)
	if len(contacts) == 0 {
		return nil, ErrNotFound
	}
	return contacts, nil
}

// Insights evaluates the insight rules over the trailing scoring window.
func (s *Service) Insights(ctx context.Context) ([]domain.Insight, error) {
	now := s.now()
	events, err := s.loadTrailing(ctx, now)
	if err != nil {
		return nil, err
	}
	return analytics.Insights(events, now), nil
}

// Sequences analyses send positions within q's range. Engagement is looked
// up in every event from the range start onward.
func (s *Service) Sequences(ctx context.Context, q Query, g domain.Granularity) (domain.SequenceAnalytics, error) {
	params := q.values()
	params.Set("granularity", string(g))
	return cached(ctx, s, "sequences", cache.Key("sequences", params), func() (domain.SequenceAnalytics, error) {
		f, err := s.resolve(q)
		if err != nil {
			return domain.SequenceAnalytics{}, err
		}
		events, err := s.sequenceEvents(ctx, f, f.Range.Start)
		if err != nil {
			return domain.SequenceAnalytics{}, err
		}
		return s.engine.AnalyzeSequences(events, f.Range, g), nil
	})
}

// CompareSequences analyses q's range and the equal-length range before it.
func (s *Service) CompareSequences(ctx context.Context, q Query, g domain.Granularity) (domain.SequenceComparison, error) {
	params := q.values()
	params.Set("granularity", string(g))
	return cached(ctx, s, "sequences_compare", cache.Key("sequences_compare", params), func() (domain.SequenceComparison, error) {
		f, err := s.resolve(q)
		if err != nil {
			return domain.SequenceComparison{}, err
		}
		if !f.Range.Bounded() {
			return domain.SequenceComparison{}, ErrUnboundedRange
		}
		events, err := s.sequenceEvents(ctx, f, analytics.PreviousRange(f.Range).Start)
		if err != nil {
			return domain.SequenceComparison{}, err
		}
		cmp, _ := s.engine.CompareSequences(events, f.Range, g)
		return cmp, nil
	})
}

// sequenceEvents loads everything from `from` onward and applies the
// recipient and category filters, leaving the range open so engagement
// after the range end is still visible.
func (s *Service) sequenceEvents(ctx context.Context, f analytics.EventFilter, from time.Time) ([]domain.Event, error) {
	open := f
	open.Range = analytics.Range{Start: from}
	open.Kind = ""
	return s.load(ctx, open)
}

// Compare totals two windows and reports per-metric deltas.
func (s *Service) Compare(ctx context.Context, before, after Query) ([]domain.MetricDelta, error) {
	b, err := s.loadQuery(ctx, before)
	if err != nil {
		return nil, fmt.Errorf("before window: %w", err)
	}
	a, err := s.loadQuery(ctx, after)
	if err != nil {
		return nil, fmt.Errorf("after window: %w", err)
	}
	return s.engine.CompareDaily(b, a), nil
}

// Overview bundles the dashboard's summary views for one query. It backs
// report snapshots.
type Overview struct {
	Start       string                     `json:"start,omitempty"`
	End         string                     `json:"end,omitempty"`
	KPIs        domain.KPIMetrics          `json:"kpis"`
	Totals      domain.DailyBucket         `json:"totals"`
	Daily       []domain.DailyBucket       `json:"daily"`
	Funnel      []domain.FunnelStage       `json:"funnel"`
	Categories  []domain.CategoryAggregate `json:"categories"`
	Bounces     []domain.BounceWarning     `json:"bounces"`
	EventCount  int                        `json:"event_count"`
	GeneratedAt time.Time                  `json:"generated_at"`
}

// Overview builds every summary view from a single event load.
func (s *Service) Overview(ctx context.Context, q Query) (Overview, error) {
	events, err := s.loadQuery(ctx, q)
	if err != nil {
		return Overview{}, err
	}
	totals := s.engine.Totals(events)
	return Overview{
		Start:       q.Start,
		End:         q.End,
		KPIs:        analytics.KPIs(events),
		Totals:      totals,
		Daily:       s.engine.DailyBuckets(events),
		Funnel:      analytics.Funnel(events),
		Categories:  analytics.SortCategories(analytics.Categories(events), analytics.ByUniqueOpens),
		Bounces:     analytics.DetectBounces(events),
		EventCount:  len(events),
		GeneratedAt: s.now(),
	}, nil
}

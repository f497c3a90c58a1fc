package analytics

import (
	"sort"
	"time"

	"github.com/ignite/sendgrid-insights/internal/domain"
)

// engagementIndex holds each recipient's open and click times, sorted.
type engagementIndex struct {
	opens  map[string][]time.Time
	clicks map[string][]time.Time
}

func buildEngagementIndex(events []domain.Event) engagementIndex {
	idx := engagementIndex{
		opens:  make(map[string][]time.Time),
		clicks: make(map[string][]time.Time),
	}
	for _, ev := range events {
		switch ev.Kind {
		case domain.KindOpen:
			key := ev.RecipientKey()
			idx.opens[key] = append(idx.opens[key], ev.OccurredAt)
		case domain.KindClick:
			key := ev.RecipientKey()
			idx.clicks[key] = append(idx.clicks[key], ev.OccurredAt)
		}
	}
	for _, m := range []map[string][]time.Time{idx.opens, idx.clicks} {
		for _, ts := range m {
			sort.Slice(ts, func(i, j int) bool { return ts[i].Before(ts[j]) })
		}
	}
	return idx
}

// anyAtOrAfter reports whether sorted contains a time not before t.
func anyAtOrAfter(sorted []time.Time, t time.Time) bool {
	i := sort.Search(len(sorted), func(i int) bool { return !sorted[i].Before(t) })
	return i < len(sorted)
}

// AnalyzeSequences numbers each recipient's processed events within r in
// chronological order and measures, per position, the share of recipients
// who opened or clicked at or after that send. Engagement is looked up in
// the whole of events, not only within r. Trends are produced only when r
// is bounded.
func (e *Engine) AnalyzeSequences(events []domain.Event, r Range, g domain.Granularity) domain.SequenceAnalytics {
	sends := make(map[string][]time.Time)
	var order []string
	total := 0
	for _, ev := range events {
		if ev.Kind != domain.KindProcessed || !r.Contains(ev.OccurredAt) {
			continue
		}
		key := ev.RecipientKey()
		if _, ok := sends[key]; !ok {
			order = append(order, key)
		}
		sends[key] = append(sends[key], ev.OccurredAt)
		total++
	}

	idx := buildEngagementIndex(events)
	type position struct {
		recipients *stringSet
		opened     int
		clicked    int
	}
	var positions []*position
	depth := 0

	for _, key := range order {
		times := sends[key]
		sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
		depth += len(times)

		for i, sentAt := range times {
			for len(positions) <= i {
				positions = append(positions, &position{recipients: newStringSet()})
			}
			p := positions[i]
			p.recipients.add(key)
			if anyAtOrAfter(idx.opens[key], sentAt) {
				p.opened++
			}
			if anyAtOrAfter(idx.clicks[key], sentAt) {
				p.clicked++
			}
		}
	}

	metrics := make([]domain.SequenceMetrics, 0, len(positions))
	for i, p := range positions {
		n := p.recipients.size()
		metrics = append(metrics, domain.SequenceMetrics{
			SequenceNumber:   i + 1,
			TotalSent:        n,
			UniqueRecipients: n,
			OpenRate:         rate(p.opened, n),
			ClickRate:        rate(p.clicked, n),
			Recipients:       p.recipients.values(),
		})
	}

	out := domain.SequenceAnalytics{
		Metrics:          metrics,
		Trends:           []domain.SequenceTrend{},
		TotalEmails:      total,
		UniqueRecipients: len(order),
	}
	if len(order) > 0 {
		out.AverageSequenceDepth = float64(depth) / float64(len(order))
	}
	if r.Bounded() {
		out.Trends = e.sequenceTrends(order, sends, g)
	}
	return out
}

func (e *Engine) sequenceTrends(order []string, sends map[string][]time.Time, g domain.Granularity) []domain.SequenceTrend {
	starts := make(map[int64]time.Time)
	buckets := make(map[int64]map[int]int)
	for _, key := range order {
		for i, t := range sends[key] {
			start := e.bucketStart(t, g)
			k := start.UnixNano()
			counts, ok := buckets[k]
			if !ok {
				counts = make(map[int]int)
				buckets[k] = counts
				starts[k] = start
			}
			counts[i+1]++
		}
	}

	out := make([]domain.SequenceTrend, 0, len(buckets))
	for k, counts := range buckets {
		out = append(out, domain.SequenceTrend{Date: starts[k], Sequences: counts})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func (e *Engine) bucketStart(t time.Time, g domain.Granularity) time.Time {
	switch g {
	case domain.Weekly:
		return e.startOfWeek(t)
	case domain.Monthly:
		return e.startOfMonth(t)
	default:
		return e.startOfDay(t)
	}
}

// CompareSequences analyses r and the equal-length range immediately
// before it. It reports false when r is not bounded.
func (e *Engine) CompareSequences(events []domain.Event, r Range, g domain.Granularity) (domain.SequenceComparison, bool) {
	if !r.Bounded() {
		return domain.SequenceComparison{}, false
	}
	return domain.SequenceComparison{
		Current:  e.AnalyzeSequences(events, r, g),
		Previous: e.AnalyzeSequences(events, PreviousRange(r), g),
	}, true
}

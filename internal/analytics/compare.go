package analytics

import "github.com/ignite/sendgrid-insights/internal/domain"

// CompareDaily totals two event slices and reports the change of each
// counter and KPI from before to after. ChangePercent is 0 when the before
// value is 0.
func (e *Engine) CompareDaily(before, after []domain.Event) []domain.MetricDelta {
	b := e.Totals(before)
	a := e.Totals(after)
	bk := KPIs(before)
	ak := KPIs(after)

	pairs := []struct {
		name          string
		before, after float64
	}{
		{"requests", float64(b.Requests), float64(a.Requests)},
		{"delivered", float64(b.Delivered), float64(a.Delivered)},
		{"opens", float64(b.Opens), float64(a.Opens)},
		{"unique_opens", float64(b.UniqueOpens), float64(a.UniqueOpens)},
		{"clicks", float64(b.Clicks), float64(a.Clicks)},
		{"unique_clicks", float64(b.UniqueClicks), float64(a.UniqueClicks)},
		{"unsubscribes", float64(b.Unsubscribes), float64(a.Unsubscribes)},
		{"bounces", float64(b.Bounces), float64(a.Bounces)},
		{"spam_reports", float64(b.SpamReports), float64(a.SpamReports)},
		{"blocks", float64(b.Blocks), float64(a.Blocks)},
		{"bounce_drops", float64(b.BounceDrops), float64(a.BounceDrops)},
		{"delivered_pct", bk.DeliveredPct, ak.DeliveredPct},
		{"bounced_blocked_pct", bk.BouncedBlockedPct, ak.BouncedBlockedPct},
		{"unique_opens_pct", bk.UniqueOpensPct, ak.UniqueOpensPct},
	}

	out := make([]domain.MetricDelta, 0, len(pairs))
	for _, p := range pairs {
		d := domain.MetricDelta{
			Metric: p.name,
			Before: p.before,
			After:  p.after,
			Change: p.after - p.before,
		}
		if p.before != 0 {
			d.ChangePercent = d.Change / p.before * 100
		}
		out = append(out, d)
	}
	return out
}

package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/ignite/sendgrid-insights/internal/domain"
)

// Insight types.
const (
	InsightBounce      = "bounce"
	InsightHotLeads    = "hot-leads"
	InsightRiskDomains = "risk-domains"
)

// Insights evaluates the insight rules over events, which should cover
// the trailing ScoringWindow ending at now. The result is ordered critical
// first.
func Insights(events []domain.Event, now time.Time) []domain.Insight {
	period := Trailing(now, ScoringWindow)
	var out []domain.Insight

	if in, ok := bounceInsight(events, now, period); ok {
		out = append(out, in)
	}
	if in, ok := riskDomainInsight(events, now, period); ok {
		out = append(out, in)
	}
	if in, ok := hotLeadInsight(events, now, period); ok {
		out = append(out, in)
	}

	if out == nil {
		out = []domain.Insight{}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Severity.Rank() < out[j].Severity.Rank()
	})
	return out
}

func bounceInsight(events []domain.Event, now time.Time, period Range) (domain.Insight, bool) {
	counts := make(map[string]int)
	for _, ev := range events {
		if ev.Kind.IsBounceClass() {
			counts[ev.RecipientKey()]++
		}
	}
	critical, warning := 0, 0
	for _, c := range counts {
		switch {
		case c >= BounceCriticalThreshold:
			critical++
		case c >= BounceWarningThreshold:
			warning++
		}
	}
	if critical == 0 && warning == 0 {
		return domain.Insight{}, false
	}

	total := critical + warning
	in := domain.Insight{
		ID:          fmt.Sprintf("bounce-warning-%d", now.UnixMilli()),
		Type:        InsightBounce,
		Metric:      total,
		GeneratedAt: now,
		PeriodStart: period.Start,
		PeriodEnd:   period.End,
		Action: domain.InsightAction{
			Label:      "View Bounce List",
			Type:       "navigate",
			Href:       "/dashboard?t=bounce",
			ExportType: "bounce-list",
		},
	}
	if critical > 0 {
		in.Severity = domain.SeverityCritical
		in.Title = fmt.Sprintf("%d emails have bounced 5+ times", total)
		in.Description = "These contacts are damaging your sender reputation and should be suppressed immediately."
		in.MetricLabel = "critical bounces"
	} else {
		in.Severity = domain.SeverityWarning
		in.Title = fmt.Sprintf("%d emails have bounced 3+ times", total)
		in.Description = "Monitor these contacts closely. Consider suppression if bounces continue."
		in.MetricLabel = "warning bounces"
	}
	return in, true
}

func riskDomainInsight(events []domain.Event, now time.Time, period Range) (domain.Insight, bool) {
	risky := FilterDomains(ScoreDomains(events), DomainFilter{
		MinContacts: DefaultMinContacts,
		Trends:      []domain.Tier{domain.TierProblematic},
	})
	if len(risky) == 0 {
		return domain.Insight{}, false
	}
	return domain.Insight{
		ID:          fmt.Sprintf("risk-domains-%d", now.UnixMilli()),
		Type:        InsightRiskDomains,
		Severity:    domain.SeverityWarning,
		Title:       fmt.Sprintf("%d domains bounce more than %.0f%% of sends", len(risky), ProblematicBounceRate),
		Description: "Review list hygiene for these domains before the next send.",
		Metric:      len(risky),
		MetricLabel: "problematic domains",
		Action: domain.InsightAction{
			Label:      "View Domains",
			Type:       "navigate",
			Href:       "/dashboard?t=domains&trend=problematic",
			ExportType: "domains",
		},
		GeneratedAt: now,
		PeriodStart: period.Start,
		PeriodEnd:   period.End,
	}, true
}

func hotLeadInsight(events []domain.Event, now time.Time, period Range) (domain.Insight, bool) {
	hot := FilterContacts(ScoreContacts(events, now), ContactFilter{
		MinSent: DefaultMinSent,
		Tier:    domain.TierHot,
	})
	if len(hot) == 0 {
		return domain.Insight{}, false
	}
	return domain.Insight{
		ID:          fmt.Sprintf("hot-leads-%d", now.UnixMilli()),
		Type:        InsightHotLeads,
		Severity:    domain.SeverityInfo,
		Title:       fmt.Sprintf("%d contacts are highly engaged", len(hot)),
		Description: "These contacts open and click often and are ready for follow-up.",
		Metric:      len(hot),
		MetricLabel: "hot leads",
		Action: domain.InsightAction{
			Label:      "View Hot Leads",
			Type:       "navigate",
			Href:       "/dashboard?t=engagement&tier=hot",
			ExportType: "contacts",
		},
		GeneratedAt: now,
		PeriodStart: period.Start,
		PeriodEnd:   period.End,
	}, true
}

package analytics

import (
	"sort"
	"strings"
	"time"

	"github.com/ignite/sendgrid-insights/internal/domain"
)

const (
	// DefaultMinContacts is the smallest domain the domain view reports.
	DefaultMinContacts = 3
	// ProblematicBounceRate is the bounce percentage above which a domain
	// is problematic whatever its score.
	ProblematicBounceRate = 5.0
	topContactsShown      = 3
)

type domainAcc struct {
	name     string
	contacts *stringSet
	sent     int
	opens    int
	clicks   int
	bounces  int
	first    time.Time
	last     time.Time
}

// ScoreDomains groups events by recipient domain. Open and click rates are
// averaged per contact, the bounce rate is per send and the score is the
// contact-averaged weighted engagement with no recency bonus. Events whose
// recipient has no domain are skipped. Domains are returned in order of
// first appearance.
func ScoreDomains(events []domain.Event) []domain.DomainEngagement {
	byName := make(map[string]*domainAcc)
	var order []string

	for _, ev := range events {
		name := ev.Domain()
		if name == "" {
			continue
		}
		acc, ok := byName[name]
		if !ok {
			acc = &domainAcc{name: name, contacts: newStringSet(), first: ev.OccurredAt, last: ev.OccurredAt}
			byName[name] = acc
			order = append(order, name)
		}
		acc.contacts.add(ev.RecipientKey())
		acc.sent++
		switch {
		case ev.Kind == domain.KindOpen:
			acc.opens++
		case ev.Kind == domain.KindClick:
			acc.clicks++
		case ev.Kind.IsBounceClass():
			acc.bounces++
		}
		if ev.OccurredAt.Before(acc.first) {
			acc.first = ev.OccurredAt
		}
		if ev.OccurredAt.After(acc.last) {
			acc.last = ev.OccurredAt
		}
	}

	out := make([]domain.DomainEngagement, 0, len(order))
	for _, name := range order {
		acc := byName[name]
		n := acc.contacts.size()
		var score float64
		if n > 0 {
			score = float64(acc.opens*OpenWeight+acc.clicks*ClickWeight) / float64(n)
		}
		top := acc.contacts.values()
		if len(top) > topContactsShown {
			top = top[:topContactsShown]
		}

		d := domain.DomainEngagement{
			Domain:          name,
			UniqueContacts:  n,
			TopContacts:     top,
			TotalSent:       acc.sent,
			TotalOpens:      acc.opens,
			TotalClicks:     acc.clicks,
			TotalBounces:    acc.bounces,
			AvgOpenRate:     rate(acc.opens, n),
			AvgClickRate:    rate(acc.clicks, n),
			BounceRate:      rate(acc.bounces, acc.sent),
			EngagementScore: score,
			FirstContact:    acc.first,
			LastActivity:    acc.last,
		}
		d.Trend = ClassifyDomain(d.EngagementScore, d.BounceRate)
		out = append(out, d)
	}
	return out
}

// ClassifyDomain returns problematic when bounceRate exceeds
// ProblematicBounceRate, otherwise the score tier.
func ClassifyDomain(score, bounceRate float64) domain.Tier {
	if bounceRate > ProblematicBounceRate {
		return domain.TierProblematic
	}
	return TierFor(score)
}

// DomainFilter selects domains for the domain view. An empty Trends keeps
// every trend and a Limit of 0 returns everything.
type DomainFilter struct {
	MinContacts int
	Trends      []domain.Tier
	Limit       int
}

// DefaultDomainFilter returns the filter used by the domain view.
func DefaultDomainFilter() DomainFilter {
	return DomainFilter{MinContacts: DefaultMinContacts, Limit: 100}
}

// ParseTrends reads a comma separated trend list such as "hot,warm".
func ParseTrends(s string) []domain.Tier {
	var out []domain.Tier
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, domain.Tier(part))
		}
	}
	return out
}

// FilterDomains applies f and sorts by score descending. Ties keep their
// input order.
func FilterDomains(domains []domain.DomainEngagement, f DomainFilter) []domain.DomainEngagement {
	out := make([]domain.DomainEngagement, 0, len(domains))
	for _, d := range domains {
		if d.UniqueContacts < f.MinContacts {
			continue
		}
		if len(f.Trends) > 0 && !containsTier(f.Trends, d.Trend) {
			continue
		}
		out = append(out, d)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EngagementScore > out[j].EngagementScore
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

func containsTier(tiers []domain.Tier, t domain.Tier) bool {
	for _, v := range tiers {
		if v == t {
			return true
		}
	}
	return false
}

// SummarizeDomains describes a filtered list. total is the number of
// domains seen before filtering.
func SummarizeDomains(filtered []domain.DomainEngagement, total int) domain.DomainSummary {
	s := domain.DomainSummary{TotalDomains: total}
	for _, d := range filtered {
		s.TotalContactsCovered += d.UniqueContacts
		switch d.Trend {
		case domain.TierHot:
			s.HotLeads++
		case domain.TierWarm:
			s.WarmLeads++
		case domain.TierProblematic:
			s.AtRisk++
		}
	}
	return s
}

// BuildDomainReport scores, filters and summarises domains in one call.
func BuildDomainReport(events []domain.Event, f DomainFilter, now time.Time) domain.DomainReport {
	scored := ScoreDomains(events)
	filtered := FilterDomains(scored, f)
	return domain.DomainReport{
		Domains:     filtered,
		Summary:     SummarizeDomains(filtered, len(scored)),
		GeneratedAt: now,
	}
}

// DomainContacts scores the recipients of one domain, highest score first.
func DomainContacts(events []domain.Event, name string, now time.Time) []domain.ContactEngagement {
	name = strings.ToLower(strings.TrimSpace(name))
	var matched []domain.Event
	for _, ev := range events {
		if ev.Domain() == name {
			matched = append(matched, ev)
		}
	}
	return FilterContacts(ScoreContacts(matched, now), ContactFilter{})
}

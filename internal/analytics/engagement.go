package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/ignite/sendgrid-insights/internal/domain"
)

// Engagement scoring constants.
const (
	HotThreshold    = 50
	WarmThreshold   = 20
	RecencyBonusMax = 10
	OpenWeight      = 2
	ClickWeight     = 5
	DefaultMinSent  = 5
	ScoringWindow   = 365 * 24 * time.Hour
)

// TierFor maps a score to its tier.
func TierFor(score float64) domain.Tier {
	switch {
	case score >= HotThreshold:
		return domain.TierHot
	case score >= WarmThreshold:
		return domain.TierWarm
	default:
		return domain.TierCold
	}
}

type contactAcc struct {
	email  string
	sent   int
	opens  int
	clicks int
	bounce int
	last   time.Time
}

// ScoreContacts rolls events up per recipient and scores each one. Every
// event counts toward TotalSent. Recency is measured in whole days from
// now to the last event, never negative. Contacts are returned in order
// of first appearance.
func ScoreContacts(events []domain.Event, now time.Time) []domain.ContactEngagement {
	byKey := make(map[string]*contactAcc)
	var order []string

	for _, ev := range events {
		key := ev.RecipientKey()
		if key == "" {
			continue
		}
		acc, ok := byKey[key]
		if !ok {
			acc = &contactAcc{email: key}
			byKey[key] = acc
			order = append(order, key)
		}
		acc.sent++
		switch {
		case ev.Kind == domain.KindOpen:
			acc.opens++
		case ev.Kind == domain.KindClick:
			acc.clicks++
		case ev.Kind.IsBounceClass():
			acc.bounce++
		}
		if ev.OccurredAt.After(acc.last) {
			acc.last = ev.OccurredAt
		}
	}

	out := make([]domain.ContactEngagement, 0, len(order))
	for _, key := range order {
		acc := byKey[key]
		days := daysBetween(acc.last, now)
		bonus := math.Max(0, float64(RecencyBonusMax-days))
		score := float64(acc.opens*OpenWeight+acc.clicks*ClickWeight) + bonus

		out = append(out, domain.ContactEngagement{
			Email:                 acc.email,
			Domain:                domain.EmailDomain(acc.email),
			TotalSent:             acc.sent,
			Opens:                 acc.opens,
			Clicks:                acc.clicks,
			Bounces:               acc.bounce,
			OpenRate:              rate(acc.opens, acc.sent),
			ClickRate:             rate(acc.clicks, acc.sent),
			BounceRate:            rate(acc.bounce, acc.sent),
			LastActivity:          acc.last,
			DaysSinceLastActivity: days,
			EngagementScore:       score,
			Tier:                  TierFor(score),
		})
	}
	return out
}

// daysBetween returns the whole days elapsed from t to now, floored at 0.
func daysBetween(t, now time.Time) int {
	d := int(now.Sub(t) / (24 * time.Hour))
	if d < 0 {
		return 0
	}
	return d
}

// ContactFilter selects contacts for the engagement view. MinScore 0
// disables score filtering; any positive value keeps scores >= MinScore.
// An empty Tier keeps every tier and a Limit of 0 returns everything.
type ContactFilter struct {
	MinSent  int
	MinScore float64
	Tier     domain.Tier
	Limit    int
}

// DefaultContactFilter returns the filter used by the engagement view.
func DefaultContactFilter() ContactFilter {
	return ContactFilter{MinSent: DefaultMinSent, Limit: 50}
}

// FilterContacts applies f and sorts by score descending. Ties keep their
// input order.
func FilterContacts(contacts []domain.ContactEngagement, f ContactFilter) []domain.ContactEngagement {
	out := make([]domain.ContactEngagement, 0, len(contacts))
	for _, c := range contacts {
		if c.TotalSent < f.MinSent {
			continue
		}
		if f.MinScore > 0 && c.EngagementScore < f.MinScore {
			continue
		}
		if f.Tier != "" && c.Tier != f.Tier {
			continue
		}
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EngagementScore > out[j].EngagementScore
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

// SummarizeContacts describes a filtered list. total is the number of
// contacts scored before filtering.
func SummarizeContacts(filtered []domain.ContactEngagement, total int) domain.ContactSummary {
	s := domain.ContactSummary{TotalContacts: total}
	var sum float64
	for _, c := range filtered {
		sum += c.EngagementScore
		switch c.Tier {
		case domain.TierHot:
			s.HighValueCount++
		case domain.TierWarm:
			s.WarmCount++
		default:
			s.ColdCount++
		}
	}
	if len(filtered) > 0 {
		s.AvgEngagementScore = sum / float64(len(filtered))
	}
	return s
}

// BuildContactReport scores, filters and summarises contacts in one call.
func BuildContactReport(events []domain.Event, f ContactFilter, now time.Time) domain.ContactReport {
	scored := ScoreContacts(events, now)
	filtered := FilterContacts(scored, f)
	return domain.ContactReport{
		Contacts:    filtered,
		Summary:     SummarizeContacts(filtered, len(scored)),
		GeneratedAt: now,
	}
}

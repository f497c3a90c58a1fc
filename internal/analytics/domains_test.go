package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/sendgrid-insights/internal/domain"
)

func TestScoreDomains(t *testing.T) {
	day := at(2025, time.August, 4, 9, 0)
	b := &eventBuilder{}
	b.repeat(4, "a@acme.io", domain.KindProcessed, day).
		repeat(4, "b@acme.io", domain.KindProcessed, day).
		repeat(2, "c@ACME.io", domain.KindProcessed, day).
		repeat(6, "a@acme.io", domain.KindOpen, day.AddDate(0, 0, 1)).
		repeat(3, "b@acme.io", domain.KindClick, day.AddDate(0, 0, 2)).
		add("d@acme.io", domain.KindProcessed, day.AddDate(0, 0, -1)).
		add("nodomain", domain.KindOpen, day)

	domains := ScoreDomains(b.events)
	require.Len(t, domains, 1)

	d := domains[0]
	assert.Equal(t, "acme.io", d.Domain)
	assert.Equal(t, 4, d.UniqueContacts)
	assert.Equal(t, []string{"a@acme.io", "b@acme.io", "c@acme.io"}, d.TopContacts)
	assert.Equal(t, 20, d.TotalSent)
	assert.Equal(t, 6, d.TotalOpens)
	assert.Equal(t, 3, d.TotalClicks)
	assert.Equal(t, 150.0, d.AvgOpenRate)
	assert.Equal(t, 75.0, d.AvgClickRate)
	assert.Equal(t, 0.0, d.BounceRate)
	// (6*2 + 3*5) / 4
	assert.Equal(t, 6.75, d.EngagementScore)
	assert.Equal(t, domain.TierCold, d.Trend)
	assert.Equal(t, day.AddDate(0, 0, -1), d.FirstContact)
}

func TestScoreDomains_ProblematicOverridesScore(t *testing.T) {
	day := at(2025, time.August, 4, 9, 0)
	b := &eventBuilder{}
	for _, email := range []string{"a@bad.io", "b@bad.io", "c@bad.io"} {
		b.repeat(20, email, domain.KindClick, day).
			add(email, domain.KindBounce, day).
			add(email, domain.KindBlock, day)
	}

	d := ScoreDomains(b.events)[0]
	assert.Greater(t, d.EngagementScore, float64(HotThreshold))
	assert.Greater(t, d.BounceRate, ProblematicBounceRate)
	assert.Equal(t, domain.TierProblematic, d.Trend)
}

func TestClassifyDomain(t *testing.T) {
	tests := []struct {
		name       string
		score      float64
		bounceRate float64
		want       domain.Tier
	}{
		{"hot", 55, 0, domain.TierHot},
		{"warm", 20, 5, domain.TierWarm},
		{"cold", 1, 4.9, domain.TierCold},
		{"problematic beats hot", 500, 5.01, domain.TierProblematic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyDomain(tt.score, tt.bounceRate))
		})
	}
}

func TestFilterDomains_DefaultMinimumExcludesSmallDomains(t *testing.T) {
	day := at(2025, time.August, 4, 9, 0)
	b := &eventBuilder{}
	b.repeat(40, "a@small.io", domain.KindClick, day).
		repeat(40, "b@small.io", domain.KindClick, day).
		repeat(1, "a@big.io", domain.KindOpen, day).
		repeat(1, "b@big.io", domain.KindOpen, day).
		repeat(1, "c@big.io", domain.KindOpen, day)

	scored := ScoreDomains(b.events)
	require.Len(t, scored, 2)
	assert.Equal(t, domain.TierHot, scored[0].Trend)

	report := BuildDomainReport(b.events, DefaultDomainFilter(), day)
	require.Len(t, report.Domains, 1)
	assert.Equal(t, "big.io", report.Domains[0].Domain)
	assert.Equal(t, 2, report.Summary.TotalDomains)
	assert.Equal(t, 0, report.Summary.HotLeads)
	assert.Equal(t, 3, report.Summary.TotalContactsCovered)
}

func TestFilterDomains_Trends(t *testing.T) {
	domains := []domain.DomainEngagement{
		{Domain: "a", UniqueContacts: 3, EngagementScore: 10, Trend: domain.TierCold},
		{Domain: "b", UniqueContacts: 3, EngagementScore: 70, Trend: domain.TierHot},
		{Domain: "c", UniqueContacts: 3, EngagementScore: 90, Trend: domain.TierProblematic},
	}

	got := FilterDomains(domains, DomainFilter{MinContacts: 3, Trends: ParseTrends("hot, Problematic")})
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].Domain)
	assert.Equal(t, "b", got[1].Domain)

	summary := SummarizeDomains(got, len(domains))
	assert.Equal(t, 1, summary.HotLeads)
	assert.Equal(t, 1, summary.AtRisk)
}

func TestDomainContacts(t *testing.T) {
	day := at(2025, time.August, 4, 9, 0)
	b := &eventBuilder{}
	b.add("a@acme.io", domain.KindOpen, day).
		repeat(3, "b@acme.io", domain.KindClick, day).
		add("z@other.io", domain.KindClick, day)

	got := DomainContacts(b.events, "ACME.io", day)
	require.Len(t, got, 2)
	assert.Equal(t, "b@acme.io", got[0].Email)
}

func TestScoreDomains_ZeroDelivered(t *testing.T) {
	got := ScoreDomains([]domain.Event{})
	require.NotNil(t, got)
	assert.Empty(t, got)
}

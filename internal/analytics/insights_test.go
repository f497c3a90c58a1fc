package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/sendgrid-insights/internal/domain"
)

func TestInsights_BounceCritical(t *testing.T) {
	now := at(2025, time.November, 1, 12, 0)
	b := &eventBuilder{}
	b.repeat(5, "dead@x.com", domain.KindBounce, now.AddDate(0, 0, -10)).
		repeat(3, "flaky@y.com", domain.KindDropped, now.AddDate(0, 0, -10))

	insights := Insights(b.events, now)
	require.NotEmpty(t, insights)

	in := insights[0]
	assert.Equal(t, InsightBounce, in.Type)
	assert.Equal(t, domain.SeverityCritical, in.Severity)
	assert.Equal(t, "2 emails have bounced 5+ times", in.Title)
	assert.Equal(t, 2, in.Metric)
	assert.Equal(t, "critical bounces", in.MetricLabel)
	assert.Equal(t, "bounce-list", in.Action.ExportType)
	assert.Equal(t, now.Add(-ScoringWindow), in.PeriodStart)
	assert.Equal(t, now, in.PeriodEnd)
}

func TestInsights_BounceWarningOnly(t *testing.T) {
	now := at(2025, time.November, 1, 12, 0)
	b := &eventBuilder{}
	b.repeat(3, "flaky@y.com", domain.KindBlock, now.AddDate(0, 0, -1))

	insights := Insights(b.events, now)
	require.Len(t, insights, 1)
	assert.Equal(t, domain.SeverityWarning, insights[0].Severity)
	assert.Equal(t, "1 emails have bounced 3+ times", insights[0].Title)
}

func TestInsights_OrderedBySeverity(t *testing.T) {
	now := at(2025, time.November, 1, 12, 0)
	b := &eventBuilder{}
	b.repeat(30, "fan@z.com", domain.KindOpen, now.AddDate(0, 0, -1)).
		repeat(6, "dead@x.com", domain.KindBounce, now.AddDate(0, 0, -10))
	for _, email := range []string{"a@risky.io", "b@risky.io", "c@risky.io"} {
		b.add(email, domain.KindBounce, now.AddDate(0, 0, -3)).
			add(email, domain.KindProcessed, now.AddDate(0, 0, -3))
	}

	insights := Insights(b.events, now)
	require.Len(t, insights, 3)
	assert.Equal(t, domain.SeverityCritical, insights[0].Severity)
	assert.Equal(t, InsightRiskDomains, insights[1].Type)
	assert.Equal(t, InsightHotLeads, insights[2].Type)
	assert.Equal(t, domain.SeverityInfo, insights[2].Severity)
}

func TestInsights_NoEvents(t *testing.T) {
	got := Insights(nil, time.Now())
	require.NotNil(t, got)
	assert.Empty(t, got)
}

package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/sendgrid-insights/internal/domain"
)

func TestActivity(t *testing.T) {
	ts := time.Date(2025, 3, 1, 10, 30, 0, 0, time.FixedZone("AEST", 10*3600))
	table := Activity([]domain.Event{
		{ID: "e1", Recipient: "a@acme.io", Kind: domain.KindOpen, OccurredAt: ts, SMTPID: "<m1>", Tags: []string{"promo", "march"}, AccountID: "acct"},
		{ID: "e2", Recipient: "b@acme.io", Kind: domain.KindDelivered, OccurredAt: ts},
	})

	assert.Equal(t, "activity.csv", table.Filename())
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []string{"2025-03-01T00:30:00.000Z", "a@acme.io", "open", "<m1>", "promo|march", "acct", "e1"}, table.Rows[0])
	assert.Equal(t, "Uncategorized", table.Rows[1][4])
}

func TestFigures(t *testing.T) {
	table := Figures([]domain.DailyBucket{{Date: "2025-03-01", Requests: 10, Delivered: 9, SpamDrops: 1}})
	assert.Len(t, table.Header, 13)
	assert.Equal(t, "spam_drops", table.Header[12])
	assert.Equal(t, []string{"2025-03-01", "10", "9", "0", "0", "0", "0", "0", "0", "0", "0", "0", "1"}, table.Rows[0])
}

func TestCategories_RatesHaveTwoDecimals(t *testing.T) {
	table := Categories([]domain.CategoryAggregate{{Category: "promo", Delivered: 3, UniqueOpens: 1, OpenRate: 33.3333, ClickRate: 0}})
	assert.Equal(t, "33.33", table.Rows[0][6])
	assert.Equal(t, "0.00", table.Rows[0][7])
}

func TestBouncesAndContacts(t *testing.T) {
	first := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	table := Bounces([]domain.BounceWarning{{
		Email: "x@acme.io", Domain: "acme.io", BounceCount: 3,
		BounceTypes: []domain.EventKind{domain.KindBounce, domain.KindBlock},
		FirstBounce: first, LastBounce: first.Add(48 * time.Hour), DaysBouncing: 2,
		Severity: domain.SeverityCritical, ActionRequired: domain.ActionSuppress,
	}})
	assert.Equal(t, "bounce|block", table.Rows[0][3])
	assert.Equal(t, "suppress", table.Rows[0][8])

	contacts := Contacts([]domain.ContactEngagement{{Email: "x@acme.io", Tier: domain.TierHot, EngagementScore: 71.5}})
	assert.Equal(t, "71.50", contacts.Rows[0][9])
	assert.Equal(t, "hot", contacts.Rows[0][10])
	assert.Equal(t, "", contacts.Rows[0][11], "zero time renders empty")
}

func TestWrite_QuotesSpecialCells(t *testing.T) {
	table := Categories([]domain.CategoryAggregate{{Category: `big, "bold"`}})
	var buf bytes.Buffer
	require.NoError(t, table.Write(&buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "category,delivered,unique_opens,unique_clicks,unsubscribes,spam_reports,open_rate,click_rate", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], `"big, ""bold""",0,`))
}

func TestDomainsAndSuppressions(t *testing.T) {
	d := Domains([]domain.DomainEngagement{{Domain: "acme.io", TopContacts: []string{"a@acme.io", "b@acme.io"}, Trend: domain.TierWarm}})
	assert.Equal(t, "warm", d.Rows[0][10])
	assert.Equal(t, "a@acme.io|b@acme.io", d.Rows[0][13])

	s := Suppressions([]domain.Suppression{{Email: "x@acme.io", Reason: domain.ReasonSpamReport, Source: domain.SourceWebhook}})
	assert.Equal(t, "spam_report", s.Rows[0][2])
	assert.Equal(t, "webhook", s.Rows[0][3])
}

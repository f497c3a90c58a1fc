package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/sendgrid-insights/internal/domain"
)

func TestAnalyzeSequences(t *testing.T) {
	d := func(day int) time.Time { return at(2025, time.October, day, 9, 0) }
	b := &eventBuilder{}
	// a: three sends, opens after the first only, clicks after the third.
	b.add("a@x.com", domain.KindProcessed, d(1)).
		add("a@x.com", domain.KindOpen, d(1).Add(time.Hour)).
		add("a@x.com", domain.KindProcessed, d(8)).
		add("a@x.com", domain.KindProcessed, d(15)).
		add("a@x.com", domain.KindClick, d(20))
	// b: one send, never engaged.
	b.add("B@x.com", domain.KindProcessed, d(2))
	// c: two sends, the second outside the range; engagement outside the range still counts.
	b.add("c@x.com", domain.KindProcessed, d(3)).
		add("c@x.com", domain.KindProcessed, d(28)).
		add("c@x.com", domain.KindOpen, d(29))

	e := New()
	r := Range{Start: d(1), End: d(21)}
	got := e.AnalyzeSequences(b.events, r, domain.Weekly)

	assert.Equal(t, 5, got.TotalEmails)
	assert.Equal(t, 3, got.UniqueRecipients)
	assert.InDelta(t, 5.0/3.0, got.AverageSequenceDepth, 1e-9)

	require.Len(t, got.Metrics, 3)
	first := got.Metrics[0]
	assert.Equal(t, 1, first.SequenceNumber)
	assert.Equal(t, 3, first.TotalSent)
	assert.Equal(t, []string{"a@x.com", "b@x.com", "c@x.com"}, first.Recipients)
	assert.InDelta(t, 200.0/3.0, first.OpenRate, 1e-9)
	assert.InDelta(t, 100.0/3.0, first.ClickRate, 1e-9)

	second := got.Metrics[1]
	assert.Equal(t, 1, second.TotalSent)
	assert.Equal(t, 0.0, second.OpenRate)
	assert.Equal(t, 100.0, second.ClickRate)

	third := got.Metrics[2]
	assert.Equal(t, 3, third.SequenceNumber)
	assert.Equal(t, 100.0, third.ClickRate)

	require.NotEmpty(t, got.Trends)
	for i := 1; i < len(got.Trends); i++ {
		assert.True(t, got.Trends[i-1].Date.Before(got.Trends[i].Date))
	}
	// Sept 29 (Monday) week holds a#1, b#1 and c#1.
	assert.True(t, at(2025, time.September, 29, 0, 0).Equal(got.Trends[0].Date))
	assert.Equal(t, map[int]int{1: 3}, got.Trends[0].Sequences)
}

func TestAnalyzeSequences_OpenRangeHasNoTrends(t *testing.T) {
	b := &eventBuilder{}
	b.add("a@x.com", domain.KindProcessed, at(2025, time.October, 1, 9, 0))

	got := New().AnalyzeSequences(b.events, Range{}, domain.Daily)
	assert.Equal(t, 1, got.TotalEmails)
	assert.NotNil(t, got.Trends)
	assert.Empty(t, got.Trends)
}

func TestAnalyzeSequences_Empty(t *testing.T) {
	got := New().AnalyzeSequences(nil, Range{}, domain.Weekly)
	assert.NotNil(t, got.Metrics)
	assert.Empty(t, got.Metrics)
	assert.Equal(t, 0.0, got.AverageSequenceDepth)
}

func TestCompareSequences(t *testing.T) {
	b := &eventBuilder{}
	b.add("a@x.com", domain.KindProcessed, at(2025, time.October, 3, 9, 0)).
		add("a@x.com", domain.KindProcessed, at(2025, time.October, 10, 9, 0)).
		add("b@x.com", domain.KindProcessed, at(2025, time.October, 11, 9, 0))

	e := New()
	r, err := e.DayRange("2025-10-08", "2025-10-14")
	require.NoError(t, err)

	cmp, ok := e.CompareSequences(b.events, r, domain.Daily)
	require.True(t, ok)
	assert.Equal(t, 2, cmp.Current.TotalEmails)
	assert.Equal(t, 1, cmp.Previous.TotalEmails)

	_, ok = e.CompareSequences(b.events, Range{Start: r.Start}, domain.Daily)
	assert.False(t, ok)
}

package analytics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/sendgrid-insights/internal/domain"
)

func TestParseTimestamp(t *testing.T) {
	e := New()
	want := at(2025, time.January, 6, 15, 4)

	tests := []struct {
		name  string
		input string
	}{
		{"rfc3339 with zone", "2025-01-06T05:04:00Z"},
		{"iso without zone", "2025-01-06T15:04:00"},
		{"iso millis", "2025-01-06T15:04:00.000"},
		{"sql", "2025-01-06 15:04:00"},
		{"day-first 12h", "6/01/2025, 3:04:00 pm"},
		{"day-first 24h", "06/01/2025, 15:04:00"},
		{"month-first 24h", "01/06/2025 15:04:00"},
		{"unix seconds", "1736139840"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.ParseTimestamp(tt.input)
			require.NoError(t, err)
			assert.True(t, want.Equal(got), "got %s", got)
		})
	}

	// Day-first wins when both readings are valid; month-first applies once the day exceeds 12.
	got, err := e.ParseTimestamp("1/16/2025, 3:04:00 PM")
	require.NoError(t, err)
	assert.True(t, at(2025, time.January, 16, 15, 4).Equal(got))

	_, err = e.ParseTimestamp("yesterday")
	assert.ErrorIs(t, err, ErrInvalidEvent)
	_, err = e.ParseTimestamp("  ")
	assert.ErrorIs(t, err, ErrInvalidEvent)
}

func TestParseKind(t *testing.T) {
	k, ok := ParseKind(" Spam_Report ")
	assert.True(t, ok)
	assert.Equal(t, domain.KindSpamReport, k)

	k, ok = ParseKind("DELIVERED")
	assert.True(t, ok)
	assert.Equal(t, domain.KindDelivered, k)

	_, ok = ParseKind("group_unsubscribe")
	assert.False(t, ok)
}

func TestParseCategories(t *testing.T) {
	assert.Equal(t, []string{"promo", "weekly"}, ParseCategories(`["promo", "weekly"]`))
	assert.Equal(t, []string{"promo", "weekly"}, ParseCategories("promo, weekly,"))
	assert.Equal(t, []string{"a", "b"}, ParseCategories(`["a", "b"`))
	assert.Nil(t, ParseCategories("  "))
}

func TestNormalize(t *testing.T) {
	e := New()

	ev, err := e.Normalize(RawEvent{
		ID:        " abc ",
		SMTPID:    "<m1@smtp>",
		Email:     " User@Example.com ",
		Event:     "Open",
		Timestamp: "2025-01-06 15:04:00",
		Category:  `["promo"]`,
	})
	require.NoError(t, err)
	assert.Equal(t, "abc", ev.ID)
	assert.Equal(t, "User@Example.com", ev.Recipient)
	assert.Equal(t, "user@example.com", ev.RecipientKey())
	assert.Equal(t, domain.KindOpen, ev.Kind)
	assert.Equal(t, []string{"promo"}, ev.Tags)

	ev, err = e.Normalize(RawEvent{ID: "x", Email: "a@b.c", Event: "click", Timestamp: "1736139840", Categories: []string{" one ", ""}, Category: "ignored"})
	require.NoError(t, err)
	assert.Equal(t, []string{"one"}, ev.Tags)

	invalid := []RawEvent{
		{Email: "a@b.c", Event: "open", Timestamp: "1736139840"},
		{ID: "1", Event: "open", Timestamp: "1736139840"},
		{ID: "1", Email: "a@b.c", Event: "teleport", Timestamp: "1736139840"},
		{ID: "1", Email: "a@b.c", Event: "open"},
	}
	for _, raw := range invalid {
		_, err := e.Normalize(raw)
		assert.True(t, errors.Is(err, ErrInvalidEvent), "%+v", raw)
	}
}

func TestNormalizeAll(t *testing.T) {
	events, rejected := New().NormalizeAll([]RawEvent{
		{ID: "2", Email: "a@b.c", Event: "open", Timestamp: "2025-01-06 10:00:00"},
		{ID: "1", Email: "a@b.c", Event: "processed", Timestamp: "2025-01-06 09:00:00"},
		{ID: "3", Email: "", Event: "open", Timestamp: "2025-01-06 10:00:00"},
	})
	assert.Equal(t, 1, rejected)
	require.Len(t, events, 2)
	assert.Equal(t, "1", events[0].ID)
}

func TestDedupe(t *testing.T) {
	t0 := at(2025, time.January, 6, 9, 0)
	events := []domain.Event{
		{ID: "a", Recipient: "first@x.com", Kind: domain.KindOpen, OccurredAt: t0.Add(time.Hour)},
		{ID: "b", Recipient: "b@x.com", Kind: domain.KindOpen, OccurredAt: t0},
		{ID: "a", Recipient: "older@x.com", Kind: domain.KindOpen, OccurredAt: t0},
		{ID: "b", Recipient: "tie@x.com", Kind: domain.KindClick, OccurredAt: t0},
	}

	got := Dedupe(events)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "tie@x.com", got[0].Recipient)
	assert.Equal(t, "a", got[1].ID)
	assert.Equal(t, "first@x.com", got[1].Recipient)

	assert.Equal(t, got, Dedupe(got))
}

func TestMerge(t *testing.T) {
	t0 := at(2025, time.January, 6, 9, 0)
	existing := []domain.Event{{ID: "a", Recipient: "old@x.com", Kind: domain.KindOpen, OccurredAt: t0}}
	incoming := []domain.Event{
		{ID: "a", Recipient: "new@x.com", Kind: domain.KindOpen, OccurredAt: t0},
		{ID: "b", Recipient: "b@x.com", Kind: domain.KindOpen, OccurredAt: t0.Add(-time.Hour)},
	}

	got := Merge(existing, incoming)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "new@x.com", got[1].Recipient)
}

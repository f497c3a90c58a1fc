package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/sendgrid-insights/internal/domain"
)

func TestDetectBounces_FiveBouncesIsCritical(t *testing.T) {
	start := at(2025, time.September, 1, 9, 0)
	b := &eventBuilder{}
	for i := 0; i < 5; i++ {
		b.add("dead@x.com", domain.KindBounce, start.AddDate(0, 0, i))
	}

	warnings := DetectBounces(b.events)
	require.Len(t, warnings, 1)

	w := warnings[0]
	assert.Equal(t, "dead@x.com", w.Email)
	assert.Equal(t, "x.com", w.Domain)
	assert.Equal(t, 5, w.BounceCount)
	assert.Equal(t, domain.SeverityCritical, w.Severity)
	assert.Equal(t, domain.ActionSuppress, w.ActionRequired)
	assert.Equal(t, start, w.FirstBounce)
	assert.Equal(t, start.AddDate(0, 0, 4), w.LastBounce)
	assert.Equal(t, 4, w.DaysBouncing)
	assert.Equal(t, []domain.EventKind{domain.KindBounce}, w.BounceTypes)
}

func TestDetectBounces_ThreeDroppedIsWarning(t *testing.T) {
	start := at(2025, time.September, 1, 9, 0)
	b := &eventBuilder{}
	b.repeat(3, "maybe@x.com", domain.KindDropped, start)

	warnings := DetectBounces(b.events)
	require.Len(t, warnings, 1)
	assert.Equal(t, domain.SeverityWarning, warnings[0].Severity)
	assert.Equal(t, domain.ActionMonitor, warnings[0].ActionRequired)
	assert.Equal(t, 3, warnings[0].BounceCount)
}

func TestDetectBounces_MixedKindsAndCase(t *testing.T) {
	start := at(2025, time.September, 1, 9, 0)
	b := &eventBuilder{}
	b.add("Mixed@X.com", domain.KindBlock, start.Add(3*time.Hour)).
		add("mixed@x.com", domain.KindBounce, start).
		add("mixed@x.com", domain.KindDropped, start.Add(time.Hour)).
		add("mixed@x.com", domain.KindBounce, start.Add(2*time.Hour)).
		add("mixed@x.com", domain.KindDelivered, start).
		repeat(2, "two@x.com", domain.KindBounce, start).
		repeat(6, "worst@x.com", domain.KindBlock, start)

	warnings := DetectBounces(b.events)
	require.Len(t, warnings, 2)
	assert.Equal(t, "worst@x.com", warnings[0].Email)
	assert.Equal(t, "mixed@x.com", warnings[1].Email)
	assert.Equal(t, 4, warnings[1].BounceCount)
	assert.Equal(t, []domain.EventKind{domain.KindBounce, domain.KindDropped, domain.KindBlock}, warnings[1].BounceTypes)
	assert.Equal(t, start, warnings[1].FirstBounce)
}

func TestDetectBounces_Empty(t *testing.T) {
	got := DetectBounces(nil)
	require.NotNil(t, got)
	assert.Empty(t, got)
}

package analytics

import (
	"sort"
	"time"

	"github.com/ignite/sendgrid-insights/internal/domain"
)

// Bounce thresholds, counted over bounce, dropped and block events.
const (
	BounceWarningThreshold  = 3
	BounceCriticalThreshold = 5
)

// DetectBounces flags recipients with at least BounceWarningThreshold
// bounce-class events. The result is ordered by bounce count descending;
// ties keep first-seen order.
func DetectBounces(events []domain.Event) []domain.BounceWarning {
	grouped := make(map[string][]domain.Event)
	var order []string
	for _, ev := range events {
		if !ev.Kind.IsBounceClass() {
			continue
		}
		key := ev.RecipientKey()
		if _, ok := grouped[key]; !ok {
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], ev)
	}

	out := make([]domain.BounceWarning, 0)
	for _, key := range order {
		bounces := grouped[key]
		if len(bounces) < BounceWarningThreshold {
			continue
		}
		sort.SliceStable(bounces, func(i, j int) bool {
			return bounces[i].OccurredAt.Before(bounces[j].OccurredAt)
		})

		var kinds []domain.EventKind
		seen := make(map[domain.EventKind]bool)
		for _, b := range bounces {
			if !seen[b.Kind] {
				seen[b.Kind] = true
				kinds = append(kinds, b.Kind)
			}
		}

		first := bounces[0].OccurredAt
		last := bounces[len(bounces)-1].OccurredAt
		w := domain.BounceWarning{
			Email:          key,
			Domain:         domain.EmailDomain(key),
			BounceCount:    len(bounces),
			BounceTypes:    kinds,
			FirstBounce:    first,
			LastBounce:     last,
			DaysBouncing:   int(last.Sub(first) / (24 * time.Hour)),
			Severity:       domain.SeverityWarning,
			ActionRequired: domain.ActionMonitor,
		}
		if w.BounceCount >= BounceCriticalThreshold {
			w.Severity = domain.SeverityCritical
			w.ActionRequired = domain.ActionSuppress
		}
		out = append(out, w)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].BounceCount > out[j].BounceCount
	})
	return out
}

package analytics

import "github.com/ignite/sendgrid-insights/internal/domain"

// KPIs derives the headline percentages from events. Delivery and bounce
// shares are taken over delivered+bounces+blocks. The unique open share is
// distinct openers across the whole input over delivered, so a recipient
// opening on several days counts once.
func KPIs(events []domain.Event) domain.KPIMetrics {
	var processed, delivered, bounces, blocks int
	openers := newStringSet()
	for _, ev := range events {
		switch ev.Kind {
		case domain.KindProcessed:
			processed++
		case domain.KindDelivered:
			delivered++
		case domain.KindBounce:
			bounces++
		case domain.KindBlock:
			blocks++
		case domain.KindOpen:
			openers.add(ev.RecipientKey())
		}
	}
	attempted := delivered + bounces + blocks
	return domain.KPIMetrics{
		Processed:         processed,
		DeliveredPct:      rate(delivered, attempted),
		BouncedBlockedPct: rate(bounces+blocks, attempted),
		UniqueOpensPct:    rate(openers.size(), delivered),
	}
}

package analytics

import "github.com/ignite/sendgrid-insights/internal/domain"

// Funnel computes the sent → delivered → unique opened → unique clicked
// progression. Sends are identified by SMTP id, falling back to the
// recipient; when the input has no processed events the sent stage falls
// back to the delivered count and then to the raw event count. The result
// always has exactly four stages.
func Funnel(events []domain.Event) []domain.FunnelStage {
	sent := newStringSet()
	delivered := newStringSet()
	opened := newStringSet()
	clicked := newStringSet()

	for _, ev := range events {
		switch ev.Kind {
		case domain.KindProcessed:
			sent.add(sendKey(ev))
		case domain.KindDelivered:
			delivered.add(sendKey(ev))
		case domain.KindOpen:
			opened.add(ev.RecipientKey())
		case domain.KindClick:
			clicked.add(ev.RecipientKey())
		}
	}

	sentCount := sent.size()
	if sentCount == 0 {
		sentCount = delivered.size()
	}
	if sentCount == 0 {
		sentCount = len(events)
	}
	deliveredCount := delivered.size()
	openedCount := opened.size()
	clickedCount := clicked.size()

	return []domain.FunnelStage{
		{Stage: domain.StageSent, Count: sentCount, ConversionRate: 100},
		{Stage: domain.StageDelivered, Count: deliveredCount, ConversionRate: rate(deliveredCount, sentCount)},
		{Stage: domain.StageUniqueOpened, Count: openedCount, ConversionRate: rate(openedCount, deliveredCount)},
		{Stage: domain.StageUniqueClicked, Count: clickedCount, ConversionRate: rate(clickedCount, openedCount)},
	}
}

func sendKey(ev domain.Event) string {
	if ev.SMTPID != "" {
		return ev.SMTPID
	}
	return ev.RecipientKey()
}

package analytics

import (
	"fmt"
	"time"

	"github.com/ignite/sendgrid-insights/internal/domain"
)

var brisbane = mustZone("Australia/Brisbane")

func mustZone(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// at returns a Brisbane wall-clock time.
func at(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, brisbane)
}

type eventBuilder struct {
	seq    int
	events []domain.Event
}

func (b *eventBuilder) add(email string, kind domain.EventKind, ts time.Time, tags ...string) *eventBuilder {
	b.seq++
	b.events = append(b.events, domain.Event{
		ID:         fmt.Sprintf("evt-%03d", b.seq),
		SMTPID:     fmt.Sprintf("<%s-%d@smtp>", email, b.seq),
		Recipient:  email,
		Kind:       kind,
		OccurredAt: ts,
		Tags:       tags,
	})
	return b
}

func (b *eventBuilder) repeat(n int, email string, kind domain.EventKind, ts time.Time, tags ...string) *eventBuilder {
	for i := 0; i < n; i++ {
		b.add(email, kind, ts.Add(time.Duration(i)*time.Hour), tags...)
	}
	return b
}

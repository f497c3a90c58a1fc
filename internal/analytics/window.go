package analytics

import (
	"fmt"
	"strings"
	"time"

	"github.com/ignite/sendgrid-insights/internal/domain"
)

// ContextDays is how far before a selected range the context window reaches.
const ContextDays = 30

// Range is an inclusive time interval. A zero bound is unbounded.
type Range struct {
	Start time.Time
	End   time.Time
}

// Bounded reports whether both ends are set.
func (r Range) Bounded() bool {
	return !r.Start.IsZero() && !r.End.IsZero()
}

// Contains reports whether t falls within r.
func (r Range) Contains(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && t.After(r.End) {
		return false
	}
	return true
}

// ParseDay parses a YYYY-MM-DD day in the reporting zone.
func (e *Engine) ParseDay(s string) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, strings.TrimSpace(s), e.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse day %q: %w", s, err)
	}
	return t, nil
}

// DayRange builds a range covering whole reporting-zone days, from the
// first instant of start to the last instant of end. Empty strings leave
// that bound open.
func (e *Engine) DayRange(start, end string) (Range, error) {
	var r Range
	if strings.TrimSpace(start) != "" {
		t, err := e.ParseDay(start)
		if err != nil {
			return Range{}, err
		}
		r.Start = t
	}
	if strings.TrimSpace(end) != "" {
		t, err := e.ParseDay(end)
		if err != nil {
			return Range{}, err
		}
		r.End = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	if r.Bounded() && r.End.Before(r.Start) {
		return Range{}, fmt.Errorf("range end %s is before start %s", end, start)
	}
	return r, nil
}

// KindAll disables kind filtering in EventFilter.
const KindAll = "all"

// EventFilter selects events for the activity views. Email matches as a
// case-insensitive substring, Category as a case-insensitive tag.
type EventFilter struct {
	Range    Range
	Kind     string
	Email    string
	Category string
}

// FilterEvents returns the events matching f in input order.
func FilterEvents(events []domain.Event, f EventFilter) []domain.Event {
	kind := strings.ToLower(strings.TrimSpace(f.Kind))
	if kind == KindAll {
		kind = ""
	}
	email := strings.ToLower(strings.TrimSpace(f.Email))
	category := strings.TrimSpace(f.Category)

	out := make([]domain.Event, 0, len(events))
	for _, ev := range events {
		if !f.Range.Contains(ev.OccurredAt) {
			continue
		}
		if kind != "" {
			if k, _ := ParseKind(kind); ev.Kind != k {
				continue
			}
		}
		if email != "" && !strings.Contains(ev.RecipientKey(), email) {
			continue
		}
		if category != "" && !hasTag(ev, category) {
			continue
		}
		out = append(out, ev)
	}
	return out
}

func hasTag(ev domain.Event, tag string) bool {
	for _, t := range eventTags(ev) {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// ContextWindow widens r to include the ContextDays before its start so
// that recency and trend views see history leading into the selection.
// Open bounds are anchored at now.
func ContextWindow(r Range, now time.Time) Range {
	start := r.Start
	if start.IsZero() {
		start = now
	}
	end := r.End
	if end.IsZero() {
		end = now
	}
	return Range{Start: start.AddDate(0, 0, -ContextDays), End: end}
}

// Trailing returns the window of length d ending at now.
func Trailing(now time.Time, d time.Duration) Range {
	return Range{Start: now.Add(-d), End: now}
}

// PreviousRange returns the range of the same number of calendar days
// ending one millisecond before r starts. A partial day counts as a whole
// one. r must be bounded.
func PreviousRange(r Range) Range {
	span := r.End.Sub(r.Start)
	days := int((span + 24*time.Hour - 1) / (24 * time.Hour))
	if days < 1 {
		days = 1
	}
	return Range{
		Start: r.Start.AddDate(0, 0, -days),
		End:   r.Start.Add(-time.Millisecond),
	}
}

// AvailableCategories lists the distinct tags present in events, sorted.
func AvailableCategories(events []domain.Event) []string {
	set := newStringSet()
	for _, ev := range events {
		for _, tag := range eventTags(ev) {
			set.add(tag)
		}
	}
	return sortedStrings(set.values())
}

// EmailDomains lists the distinct recipient domains in events, sorted.
func EmailDomains(events []domain.Event) []string {
	set := newStringSet()
	for _, ev := range events {
		if d := ev.Domain(); d != "" {
			set.add(d)
		}
	}
	return sortedStrings(set.values())
}

package analytics

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ignite/sendgrid-insights/internal/domain"
)

// RawEvent is an event as read from an export row or webhook payload,
// before validation. Timestamp may be any of the layouts ParseTimestamp
// accepts. Category holds a JSON array string or a comma separated list and
// is only consulted when Categories is empty.
type RawEvent struct {
	ID         string
	UniqueID   int64
	SMTPID     string
	Email      string
	Event      string
	Timestamp  string
	Category   string
	Categories []string
	AccountID  string
}

// timestampLayouts are tried in order against the upper-cased input.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2/1/2006, 3:04:05 PM",
	"2/1/2006, 15:04:05",
	"1/2/2006 15:04:05",
	"1/2/2006, 3:04:05 PM",
}

// ParseKind maps a raw event name to its kind. Matching ignores case and
// surrounding space and accepts spam_report as an alias of spamreport.
func ParseKind(s string) (domain.EventKind, bool) {
	k := domain.EventKind(strings.ToLower(strings.TrimSpace(s)))
	if k == "spam_report" {
		k = domain.KindSpamReport
	}
	return k, k.Valid()
}

// ParseTimestamp parses an export or webhook timestamp. Values without a
// zone are read in the reporting zone; bare integers are Unix seconds.
func (e *Engine) ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty timestamp", ErrInvalidEvent)
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).In(e.loc), nil
	}

	upper := strings.ToUpper(s)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, upper, e.loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unrecognised timestamp %q", ErrInvalidEvent, s)
}

// ParseCategories splits a raw category cell. JSON arrays are decoded,
// anything else is split on commas. Entries are trimmed and blanks dropped.
func ParseCategories(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	var parts []string
	if strings.HasPrefix(s, "[") {
		if err := json.Unmarshal([]byte(s), &parts); err != nil {
			parts = strings.Split(strings.Trim(s, "[]"), ",")
		}
	} else {
		parts = strings.Split(s, ",")
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(strings.TrimSpace(p), `"`)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Normalize validates a raw record and converts it into an Event.
// Errors wrap ErrInvalidEvent.
func (e *Engine) Normalize(raw RawEvent) (domain.Event, error) {
	id := strings.TrimSpace(raw.ID)
	if id == "" {
		return domain.Event{}, fmt.Errorf("%w: missing event id", ErrInvalidEvent)
	}
	email := strings.TrimSpace(raw.Email)
	if email == "" {
		return domain.Event{}, fmt.Errorf("%w: event %s has no recipient", ErrInvalidEvent, id)
	}
	kind, ok := ParseKind(raw.Event)
	if !ok {
		return domain.Event{}, fmt.Errorf("%w: event %s has unknown kind %q", ErrInvalidEvent, id, raw.Event)
	}
	ts, err := e.ParseTimestamp(raw.Timestamp)
	if err != nil {
		return domain.Event{}, fmt.Errorf("event %s: %w", id, err)
	}

	tags := make([]string, 0, len(raw.Categories))
	for _, c := range raw.Categories {
		if c = strings.TrimSpace(c); c != "" {
			tags = append(tags, c)
		}
	}
	if len(tags) == 0 {
		tags = ParseCategories(raw.Category)
	}

	return domain.Event{
		ID:         id,
		UniqueID:   raw.UniqueID,
		SMTPID:     strings.TrimSpace(raw.SMTPID),
		Recipient:  email,
		Kind:       kind,
		OccurredAt: ts,
		Tags:       tags,
		AccountID:  strings.TrimSpace(raw.AccountID),
	}, nil
}

// NormalizeAll converts every valid record and returns the count of
// rejected ones. The result is deduplicated and ordered by time.
func (e *Engine) NormalizeAll(raws []RawEvent) ([]domain.Event, int) {
	events := make([]domain.Event, 0, len(raws))
	rejected := 0
	for _, raw := range raws {
		ev, err := e.Normalize(raw)
		if err != nil {
			rejected++
			continue
		}
		events = append(events, ev)
	}
	return Dedupe(events), rejected
}

// Dedupe keeps one event per id. The event with the latest OccurredAt
// wins; on an exact tie the one appearing later in the input wins. The
// result is ordered by OccurredAt, ties keeping input order.
func Dedupe(events []domain.Event) []domain.Event {
	index := make(map[string]int, len(events))
	out := make([]domain.Event, 0, len(events))
	for _, ev := range events {
		i, seen := index[ev.ID]
		if !seen {
			index[ev.ID] = len(out)
			out = append(out, ev)
			continue
		}
		if !ev.OccurredAt.Before(out[i].OccurredAt) {
			out[i] = ev
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OccurredAt.Before(out[j].OccurredAt)
	})
	return out
}

// Merge folds a newly ingested batch into an existing event set using the
// Dedupe rule, with incoming events treated as later arrivals.
func Merge(existing, incoming []domain.Event) []domain.Event {
	all := make([]domain.Event, 0, len(existing)+len(incoming))
	all = append(all, existing...)
	all = append(all, incoming...)
	return Dedupe(all)
}

// Package memory holds process-local repositories used by the offline CLI
// and by tests. They follow the PostgreSQL repositories' semantics.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/ignite/sendgrid-insights/internal/domain"
	"github.com/ignite/sendgrid-insights/internal/service/events"
)

// EventRepo implements events.Repository in memory.
type EventRepo struct {
	mu     sync.RWMutex
	rows   []domain.Event
	byID   map[string]int
	nextID int64
}

// NewEventRepo creates an empty in-memory event repository.
func NewEventRepo() *EventRepo {
	return &EventRepo{byID: make(map[string]int)}
}

// Upsert inserts new events and replaces stored ones unless the incoming
// copy is older. A replaced event keeps its UniqueID.
func (r *EventRepo) Upsert(_ context.Context, evs []domain.Event) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := 0
	for _, ev := range evs {
		ev.Recipient = ev.RecipientKey()
		if i, ok := r.byID[ev.ID]; ok {
			if ev.OccurredAt.Before(r.rows[i].OccurredAt) {
				continue
			}
			ev.UniqueID = r.rows[i].UniqueID
			r.rows[i] = ev
			stored++
			continue
		}
		r.nextID++
		ev.UniqueID = r.nextID
		r.byID[ev.ID] = len(r.rows)
		r.rows = append(r.rows, ev)
		stored++
	}
	return stored, nil
}

// List returns events matching f ordered by time, then insertion order.
func (r *EventRepo) List(_ context.Context, f events.ListFilter) ([]domain.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make(map[domain.EventKind]bool, len(f.Kinds))
	for _, k := range f.Kinds {
		kinds[k] = true
	}
	dom := strings.ToLower(f.Domain)

	out := make([]domain.Event, 0)
	for _, ev := range r.rows {
		switch {
		case !f.Start.IsZero() && ev.OccurredAt.Before(f.Start):
		case !f.End.IsZero() && ev.OccurredAt.After(f.End):
		case len(kinds) > 0 && !kinds[ev.Kind]:
		case dom != "" && ev.Domain() != dom:
		default:
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].OccurredAt.Equal(out[j].OccurredAt) {
			return out[i].OccurredAt.Before(out[j].OccurredAt)
		}
		return out[i].UniqueID < out[j].UniqueID
	})
	return out, nil
}

// ListAfter returns up to limit events with UniqueID greater than afterID.
func (r *EventRepo) ListAfter(_ context.Context, afterID int64, limit int) ([]domain.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Event, 0, limit)
	// rows are appended in UniqueID order.
	for _, ev := range r.rows {
		if len(out) == limit {
			break
		}
		if ev.UniqueID > afterID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (r *EventRepo) Count(context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rows), nil
}

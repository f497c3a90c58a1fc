package events

import (
	"context"
	"time"

	"github.com/ignite/sendgrid-insights/internal/domain"
)

// Repository defines the data access contract for the event store.
type Repository interface {
	// Upsert stores events keyed by event id. An existing row is replaced
	// only when the incoming event is not older than the stored one.
	// It returns the number of rows inserted or replaced.
	Upsert(ctx context.Context, events []domain.Event) (int, error)

	// List returns events matching the filter ordered by time.
	List(ctx context.Context, filter ListFilter) ([]domain.Event, error)

	// ListAfter returns up to limit events whose UniqueID is greater than
	// afterID, ordered by UniqueID.
	ListAfter(ctx context.Context, afterID int64, limit int) ([]domain.Event, error)

	// Count returns the number of stored events.
	Count(ctx context.Context) (int, error)
}

// ListFilter narrows a List call. Zero values disable a condition.
type ListFilter struct {
	Start  time.Time
	End    time.Time
	Kinds  []domain.EventKind
	Domain string
}

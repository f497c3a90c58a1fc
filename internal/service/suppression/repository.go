package suppression

import (
	"context"

	"github.com/ignite/sendgrid-insights/internal/domain"
)

// Repository defines the data access contract for the suppression list.
type Repository interface {
	// IsSuppressed reports whether the email is on the active list.
	IsSuppressed(ctx context.Context, email string) (bool, error)

	// Suppress adds or reactivates an entry. It reports whether the
	// address was newly suppressed.
	Suppress(ctx context.Context, s *domain.Suppression) (bool, error)

	// Remove deactivates an entry. Returns ErrNotFound if it doesn't exist.
	Remove(ctx context.Context, email string) error

	// List returns entries matching the filter and the unpaged total.
	List(ctx context.Context, filter ListFilter) ([]domain.Suppression, int, error)

	// AllEmails returns every suppressed address, sorted.
	AllEmails(ctx context.Context) ([]string, error)
}

// ListFilter controls pagination and filtering for suppression lists.
type ListFilter struct {
	Reason string
	Source string
	Search string
	Limit  int
	Offset int
}

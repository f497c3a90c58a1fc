package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/sendgrid-insights/internal/domain"
	"github.com/ignite/sendgrid-insights/internal/service/suppression"
)

type suppressionRow struct {
	domain.Suppression
	active bool
}

// SuppressionRepo implements suppression.Repository in memory.
type SuppressionRepo struct {
	mu   sync.Mutex
	rows map[string]*suppressionRow
	now  func() time.Time
}

// NewSuppressionRepo creates an empty in-memory suppression list.
func NewSuppressionRepo() *SuppressionRepo {
	return &SuppressionRepo{rows: make(map[string]*suppressionRow), now: time.Now}
}

func (r *SuppressionRepo) IsSuppressed(_ context.Context, email string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[email]
	return ok && row.active, nil
}

// Suppress inserts or reactivates an entry. It reports true only for a new
// address.
func (r *SuppressionRepo) Suppress(_ context.Context, s *domain.Suppression) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if row, ok := r.rows[s.Email]; ok {
		row.Reason = s.Reason
		row.Source = s.Source
		if s.BounceCount > row.BounceCount {
			row.BounceCount = s.BounceCount
		}
		if !s.LastEventAt.IsZero() {
			row.LastEventAt = s.LastEventAt
		}
		row.active = true
		return false, nil
	}

	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	entry := *s
	entry.CreatedAt = r.now()
	r.rows[s.Email] = &suppressionRow{Suppression: entry, active: true}
	return true, nil
}

func (r *SuppressionRepo) Remove(_ context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[email]
	if !ok || !row.active {
		return suppression.ErrNotFound
	}
	row.active = false
	return nil
}

// List returns active entries newest first, with the total before paging.
func (r *SuppressionRepo) List(_ context.Context, f suppression.ListFilter) ([]domain.Suppression, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	search := strings.ToLower(f.Search)
	matched := make([]domain.Suppression, 0)
	for _, row := range r.rows {
		switch {
		case !row.active:
		case f.Reason != "" && string(row.Reason) != f.Reason:
		case f.Source != "" && string(row.Source) != f.Source:
		case search != "" && !strings.Contains(row.Email, search):
		default:
			matched = append(matched, row.Suppression)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].Email < matched[j].Email
	})

	total := len(matched)
	if f.Offset >= total {
		return []domain.Suppression{}, total, nil
	}
	matched = matched[f.Offset:]
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	return matched, total, nil
}

func (r *SuppressionRepo) AllEmails(context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.rows))
	for email, row := range r.rows {
		if row.active {
			out = append(out, email)
		}
	}
	sort.Strings(out)
	return out, nil
}

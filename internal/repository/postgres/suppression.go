package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ignite/sendgrid-insights/internal/domain"
	"github.com/ignite/sendgrid-insights/internal/service/suppression"
)

// SuppressionRepo implements suppression.Repository against PostgreSQL.
type SuppressionRepo struct{ db *sql.DB }

// NewSuppressionRepo creates a Postgres-backed suppression repository.
func NewSuppressionRepo(db *sql.DB) *SuppressionRepo { return &SuppressionRepo{db: db} }

func (r *SuppressionRepo) IsSuppressed(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM suppressions WHERE email = $1 AND active = true)`,
		email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check suppression: %w", err)
	}
	return exists, nil
}

// Suppress inserts or reactivates an entry. xmax is 0 only for a row this
// statement inserted, which tells a new entry from an update.
func (r *SuppressionRepo) Suppress(ctx context.Context, s *domain.Suppression) (bool, error) {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	var lastEvent sql.NullTime
	if !s.LastEventAt.IsZero() {
		lastEvent = sql.NullTime{Time: s.LastEventAt, Valid: true}
	}

	var inserted bool
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO suppressions (id, email, email_domain, reason, source, bounce_count, last_event_at, note, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, true, NOW())
		ON CONFLICT (email) DO UPDATE SET
			reason = EXCLUDED.reason,
			source = EXCLUDED.source,
			bounce_count = GREATEST(suppressions.bounce_count, EXCLUDED.bounce_count),
			last_event_at = COALESCE(EXCLUDED.last_event_at, suppressions.last_event_at),
			active = true,
			updated_at = NOW()
		RETURNING (xmax = 0) AS inserted
	`, s.ID, s.Email, s.Domain, s.Reason, s.Source, s.BounceCount, lastEvent, s.Note).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("suppress: %w", err)
	}
	return inserted, nil
}

func (r *SuppressionRepo) Remove(ctx context.Context, email string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE suppressions SET active = false, updated_at = NOW() WHERE email = $1 AND active = true`,
		email,
	)
	if err != nil {
		return fmt.Errorf("remove suppression: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return suppression.ErrNotFound
	}
	return nil
}

func (r *SuppressionRepo) List(ctx context.Context, f suppression.ListFilter) ([]domain.Suppression, int, error) {
	where := []string{"active = true"}
	var args []interface{}
	if f.Reason != "" {
		args = append(args, f.Reason)
		where = append(where, fmt.Sprintf("reason = $%d", len(args)))
	}
	if f.Source != "" {
		args = append(args, f.Source)
		where = append(where, fmt.Sprintf("source = $%d", len(args)))
	}
	if f.Search != "" {
		args = append(args, "%"+strings.ToLower(f.Search)+"%")
		where = append(where, fmt.Sprintf("email LIKE $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM suppressions WHERE `+cond, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count suppressions: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = total
	}
	qArgs := append(append([]interface{}{}, args...), limit, f.Offset)
	q := fmt.Sprintf(`
		SELECT id, email, email_domain, reason, source, bounce_count, last_event_at, COALESCE(note, ''), created_at
		FROM suppressions
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, cond, len(args)+1, len(args)+2)

	rows, err := r.db.QueryContext(ctx, q, qArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list suppressions: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Suppression, 0)
	for rows.Next() {
		var (
			s         domain.Suppression
			lastEvent sql.NullTime
		)
		if err := rows.Scan(&s.ID, &s.Email, &s.Domain, &s.Reason, &s.Source,
			&s.BounceCount, &lastEvent, &s.Note, &s.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan suppression: %w", err)
		}
		if lastEvent.Valid {
			s.LastEventAt = lastEvent.Time
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

func (r *SuppressionRepo) AllEmails(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT email FROM suppressions WHERE active = true ORDER BY email`,
	)
	if err != nil {
		return nil, fmt.Errorf("all suppressed emails: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		out = append(out, email)
	}
	return out, rows.Err()
}

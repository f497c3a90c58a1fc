package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/ignite/sendgrid-insights/internal/domain"
	"github.com/ignite/sendgrid-insights/internal/service/events"
)

// upsertEventSQL replaces a stored event only when the incoming copy is
// not older, so replayed webhook batches cannot roll an event back.
const upsertEventSQL = `
	INSERT INTO sendgrid_events
		(sg_event_id, smtp_id, email, email_domain, event, occurred_at, categories, account_id)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (sg_event_id) DO UPDATE SET
		smtp_id      = EXCLUDED.smtp_id,
		email        = EXCLUDED.email,
		email_domain = EXCLUDED.email_domain,
		event        = EXCLUDED.event,
		occurred_at  = EXCLUDED.occurred_at,
		categories   = EXCLUDED.categories,
		account_id   = EXCLUDED.account_id
	WHERE EXCLUDED.occurred_at >= sendgrid_events.occurred_at`

const eventColumns = `unique_id, sg_event_id, smtp_id, email, event, occurred_at, categories, account_id`

// EventRepo implements events.Repository against PostgreSQL.
type EventRepo struct{ db *sql.DB }

// NewEventRepo creates a Postgres-backed event repository.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// Upsert writes the batch in a single transaction.
func (r *EventRepo) Upsert(ctx context.Context, evs []domain.Event) (int, error) {
	if len(evs) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, upsertEventSQL)
	if err != nil {
		return 0, fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	stored := 0
	for _, ev := range evs {
		tags := ev.Tags
		if tags == nil {
			tags = []string{}
		}
		res, err := stmt.ExecContext(ctx,
			ev.ID, ev.SMTPID, ev.RecipientKey(), ev.Domain(), string(ev.Kind),
			ev.OccurredAt, pq.Array(tags), ev.AccountID,
		)
		if err != nil {
			return 0, fmt.Errorf("upsert event %s: %w", ev.ID, err)
		}
		n, _ := res.RowsAffected()
		stored += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit upsert: %w", err)
	}
	return stored, nil
}

// List returns events matching f ordered by time, then insertion order.
func (r *EventRepo) List(ctx context.Context, f events.ListFilter) ([]domain.Event, error) {
	var (
		where []string
		args  []interface{}
	)
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if !f.Start.IsZero() {
		add("occurred_at >= $%d", f.Start)
	}
	if !f.End.IsZero() {
		add("occurred_at <= $%d", f.End)
	}
	if len(f.Kinds) > 0 {
		kinds := make([]string, len(f.Kinds))
		for i, k := range f.Kinds {
			kinds[i] = string(k)
		}
		add("event = ANY($%d)", pq.Array(kinds))
	}
	if f.Domain != "" {
		add("email_domain = $%d", strings.ToLower(f.Domain))
	}

	q := `SELECT ` + eventColumns + ` FROM sendgrid_events`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY occurred_at, unique_id`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ListAfter returns the next keyset page after afterID.
func (r *EventRepo) ListAfter(ctx context.Context, afterID int64, limit int) ([]domain.Event, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM sendgrid_events WHERE unique_id > $1 ORDER BY unique_id LIMIT $2`,
		afterID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list events after %d: %w", afterID, err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (r *EventRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sendgrid_events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

func scanEvents(rows *sql.Rows) ([]domain.Event, error) {
	out := make([]domain.Event, 0)
	for rows.Next() {
		var (
			ev   domain.Event
			kind string
		)
		if err := rows.Scan(
			&ev.UniqueID, &ev.ID, &ev.SMTPID, &ev.Recipient, &kind,
			&ev.OccurredAt, pq.Array(&ev.Tags), &ev.AccountID,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Kind = domain.EventKind(kind)
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

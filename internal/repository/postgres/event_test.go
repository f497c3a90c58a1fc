package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/sendgrid-insights/internal/domain"
	"github.com/ignite/sendgrid-insights/internal/service/events"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

var eventCols = []string{"unique_id", "sg_event_id", "smtp_id", "email", "event", "occurred_at", "categories", "account_id"}

func TestEventRepo_Upsert(t *testing.T) {
	db, mock := newMock(t)
	repo := NewEventRepo(db)
	ts := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO sendgrid_events"))
	prep.ExpectExec().
		WithArgs("evt-1", "smtp-1", "a@acme.io", "acme.io", "delivered", ts, sqlmock.AnyArg(), "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().
		WithArgs("evt-2", "", "b@acme.io", "acme.io", "open", ts, sqlmock.AnyArg(), "acct").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	n, err := repo.Upsert(context.Background(), []domain.Event{
		{ID: "evt-1", SMTPID: "smtp-1", Recipient: "A@Acme.io", Kind: domain.KindDelivered, OccurredAt: ts, Tags: []string{"promo"}},
		{ID: "evt-2", Recipient: "b@acme.io", Kind: domain.KindOpen, OccurredAt: ts, AccountID: "acct"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepo_Upsert_RollsBackOnError(t *testing.T) {
	db, mock := newMock(t)
	repo := NewEventRepo(db)

	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO sendgrid_events").
		ExpectExec().
		WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	_, err := repo.Upsert(context.Background(), []domain.Event{{ID: "evt-1", Recipient: "a@b.io", Kind: domain.KindOpen}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "evt-1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepo_Upsert_Empty(t *testing.T) {
	db, mock := newMock(t)
	n, err := NewEventRepo(db).Upsert(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepo_List(t *testing.T) {
	db, mock := newMock(t)
	repo := NewEventRepo(db)
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	rows := sqlmock.NewRows(eventCols).
		AddRow(int64(7), "evt-1", "smtp-1", "a@acme.io", "open", start.Add(time.Hour), "{promo,weekly}", "").
		AddRow(int64(9), "evt-2", "", "b@acme.io", "bounce", start.Add(2*time.Hour), "{}", "acct")
	mock.ExpectQuery(regexp.QuoteMeta(
		"WHERE occurred_at >= $1 AND occurred_at <= $2 AND event = ANY($3) AND email_domain = $4 ORDER BY occurred_at, unique_id")).
		WithArgs(start, end, sqlmock.AnyArg(), "acme.io").
		WillReturnRows(rows)

	got, err := repo.List(context.Background(), events.ListFilter{
		Start:  start,
		End:    end,
		Kinds:  []domain.EventKind{domain.KindOpen, domain.KindBounce},
		Domain: "ACME.io",
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(7), got[0].UniqueID)
	assert.Equal(t, domain.KindOpen, got[0].Kind)
	assert.Equal(t, []string{"promo", "weekly"}, got[0].Tags)
	assert.Equal(t, "acct", got[1].AccountID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepo_List_NoFilter(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM sendgrid_events ORDER BY occurred_at, unique_id")).
		WillReturnRows(sqlmock.NewRows(eventCols))

	got, err := NewEventRepo(db).List(context.Background(), events.ListFilter{})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepo_ListAfterAndCount(t *testing.T) {
	db, mock := newMock(t)
	repo := NewEventRepo(db)
	ts := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE unique_id > $1 ORDER BY unique_id LIMIT $2")).
		WithArgs(int64(100), 2).
		WillReturnRows(sqlmock.NewRows(eventCols).
			AddRow(int64(101), "evt-101", "", "a@b.io", "processed", ts, "{}", ""))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM sendgrid_events")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	page, err := repo.ListAfter(context.Background(), 100, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "evt-101", page[0].ID)

	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

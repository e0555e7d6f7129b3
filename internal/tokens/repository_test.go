package tokens

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"security-guard/internal/apperr"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var recordColumns = []string{
	"id", "user_id", "kind", "access_token", "refresh_token", "issued_at", "expires_at", "refresh_expires_at", "revoked", "updated_at",
}

func newMock(t *testing.T) (*PostgresRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepo(db), mock
}

func TestPostgresRepo_ReplaceLocksSupersedesInserts(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now().UTC()
	rec := Record{ID: "r2", UserID: "u1", Kind: "access", AccessToken: "a2", RefreshToken: "f2",
		IssuedAt: now, ExpiresAt: now.Add(time.Minute), RefreshExpiresAt: now.Add(time.Hour), UpdatedAt: now}

	mock.ExpectQuery(`(?s)^SELECT\s+id\s+FROM\s+users\s+WHERE\s+id\s*=\s*\$1\s+FOR\s+UPDATE$`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("u1"))
	mock.ExpectExec(`(?s)^\s*UPDATE\s+tokens\s+SET\s+revoked\s*=\s*TRUE.*WHERE\s+user_id\s*=\s*\$1\s+AND\s+NOT\s+revoked`).
		WithArgs("u1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`(?s)^\s*INSERT\s+INTO\s+tokens\s*\(`).
		WithArgs("r2", "u1", "access", "a2", "f2", now, rec.ExpiresAt, rec.RefreshExpiresAt, false, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Replace(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_ReplaceUnknownUser(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(`FOR\s+UPDATE`).WithArgs("ghost").WillReturnError(sql.ErrNoRows)

	err := repo.Replace(context.Background(), Record{UserID: "ghost"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_ActiveByUser(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`(?s)FROM\s+tokens\s+WHERE\s+user_id\s*=\s*\$1\s+AND\s+NOT\s+revoked`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(recordColumns).
			AddRow("r1", "u1", "access", "a1", "f1", now, now.Add(time.Minute), now.Add(time.Hour), false, now))

	rec, err := repo.ActiveByUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "r1", rec.ID)
	assert.Equal(t, "a1", rec.AccessToken)
	assert.False(t, rec.Revoked)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_Deactivate(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now().UTC()

	mock.ExpectExec(`UPDATE\s+tokens\s+SET\s+revoked\s*=\s*TRUE,\s*updated_at\s*=\s*\$2\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs("r1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE\s+tokens`).
		WithArgs("r9", now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Deactivate(context.Background(), "r1", now))
	assert.ErrorIs(t, repo.Deactivate(context.Background(), "r9", now), apperr.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_List(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT\s+count\(\*\)\s+FROM\s+tokens\s+WHERE\s+revoked\s*=\s*\$1`).
		WithArgs(true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(`(?s)FROM\s+tokens\s+WHERE\s+revoked\s*=\s*\$1\s+ORDER\s+BY.*LIMIT\s+\$2\s+OFFSET\s+\$3`).
		WithArgs(true, 2, 2).
		WillReturnRows(sqlmock.NewRows(recordColumns).
			AddRow("r3", "u1", "access", "a3", "f3", now, now, now, true, now))

	page, err := repo.List(context.Background(), ListFilter{Revoked: true, Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.TotalElements)
	assert.Equal(t, 2, page.TotalPages)
	assert.Len(t, page.Content, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

package revocation

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

func newMock(t *testing.T) (*PostgresRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepo(db), mock
}

func TestPostgresRepo_InsertOnConflictDoNothing(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now().UTC()
	e := Entry{ID: "e1", TokenHash: "h1", UserID: "u1", Reason: ReasonLogout, RecordedAt: now}

	const q = `(?s)^\s*INSERT\s+INTO\s+revoked_tokens.*ON\s+CONFLICT\s+\(token_hash\)\s+DO\s+NOTHING`
	mock.ExpectExec(q).
		WithArgs("e1", "h1", "u1", ReasonLogout, now, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).
		WithArgs("e1", "h1", "u1", ReasonLogout, now, nil).
		WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err := repo.Insert(context.Background(), e)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = repo.Insert(context.Background(), e)
	require.NoError(t, err)
	assert.False(t, inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_InsertWithoutReasonBindsNull(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now().UTC()
	e := Entry{ID: "e2", TokenHash: "h2", RecordedAt: now}

	mock.ExpectExec(`INSERT\s+INTO\s+revoked_tokens`).
		WithArgs("e2", "h2", sql.NullString{}, sql.NullString{}, now, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	inserted, err := repo.Insert(context.Background(), e)
	require.NoError(t, err)
	assert.True(t, inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_Lookup(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now().UTC()
	cols := []string{"id", "token_hash", "user_id", "reason", "recorded_at", "expires_at"}

	mock.ExpectQuery(`(?s)FROM\s+revoked_tokens\s+WHERE\s+token_hash\s*=\s*\$1`).
		WithArgs("h1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("e1", "h1", nil, "refresh", now, now.Add(time.Hour)))
	mock.ExpectQuery(`(?s)FROM\s+revoked_tokens`).
		WithArgs("h2").
		WillReturnError(sql.ErrNoRows)

	e, err := repo.Lookup(context.Background(), "h1")
	require.NoError(t, err)
	assert.Equal(t, "", e.UserID)
	assert.Equal(t, "refresh", e.Reason)
	require.NotNil(t, e.ExpiresAt)

	_, err = repo.Lookup(context.Background(), "h2")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

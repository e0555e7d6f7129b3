package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"security-guard/internal/apperr"
	"security-guard/internal/identity"
	"security-guard/internal/revocation"
	"security-guard/internal/tokens"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_InTxRollsBack(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	boom := errors.New("boom")

	err := m.InTx(ctx, func(r Repos) error {
		if _, err := r.Revocations.Insert(ctx, revocation.Entry{TokenHash: "h"}); err != nil {
			return err
		}
		if err := r.Users.Create(ctx, identity.Identity{ID: "u1", Username: "alice", Email: "a@x.io"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, m.Revoked.Len())
	_, err = m.UsersRepo.FindByID(ctx, "u1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestMemory_InTxCommits(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Users().InTx(ctx, func(r identity.Repository) error {
		return r.Create(ctx, identity.Identity{ID: "u1", Username: "alice", Email: "a@x.io"})
	}))
	_, err := m.Repos().Users.FindByID(ctx, "u1")
	require.NoError(t, err)
}

func TestPostgres_InTxSharesTransaction(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE\s+tokens\s+SET\s+revoked`).WithArgs("r1", now).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT\s+INTO\s+revoked_tokens`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	p := NewPostgres(db)
	err = p.InTx(context.Background(), func(r Repos) error {
		if err := r.Tokens.Deactivate(context.Background(), "r1", now); err != nil {
			return err
		}
		_, err := r.Revocations.Insert(context.Background(), revocation.Entry{ID: "e1", TokenHash: "h", RecordedAt: now})
		return err
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_InTxRollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM\s+tokens`).WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err = NewPostgres(db).InTx(context.Background(), func(r Repos) error {
		_, err := r.Tokens.ActiveByUser(context.Background(), "u1")
		return err
	})
	assert.ErrorIs(t, err, sql.ErrConnDone)
	require.NoError(t, mock.ExpectationsWereMet())
}

var _ tokens.Repository = (*tokens.PostgresRepo)(nil)

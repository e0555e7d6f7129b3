package tokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"security-guard/internal/apperr"
	"security-guard/pkg/utils"
)

// Repository persists token records.
type Repository interface {
	// Replace supersedes every active record of rec.UserID and stores rec.
	// Concurrent calls for one user serialize; the last one wins.
	Replace(ctx context.Context, rec Record) error
	ActiveByUser(ctx context.Context, userID string) (Record, error)
	FindByAccessToken(ctx context.Context, accessToken string) (Record, error)
	Deactivate(ctx context.Context, id string, at time.Time) error
	List(ctx context.Context, f ListFilter) (Page, error)
}

// PostgresRepo stores records in the tokens table. Replace locks the owning
// users row, so it must run inside a transaction.
type PostgresRepo struct {
	db utils.DBTX
}

func NewPostgresRepo(db utils.DBTX) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const selectRecord = `
SELECT id, user_id, kind, access_token, refresh_token, issued_at, expires_at, refresh_expires_at, revoked, updated_at
FROM tokens
`

func (r *PostgresRepo) Replace(ctx context.Context, rec Record) error {
	// Lock the owner to serialize concurrent logins and refreshes per user.
	const lockUser = `SELECT id FROM users WHERE id = $1 FOR UPDATE`
	var id string
	if err := r.db.QueryRowContext(ctx, lockUser, rec.UserID).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.ErrNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}

	const supersede = `
UPDATE tokens SET revoked = TRUE, updated_at = $2
WHERE user_id = $1 AND NOT revoked
`
	if _, err := r.db.ExecContext(ctx, supersede, rec.UserID, rec.UpdatedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	const insert = `
INSERT INTO tokens (
  id, user_id, kind, access_token, refresh_token, issued_at, expires_at, refresh_expires_at, revoked, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10
)
`
	_, err := r.db.ExecContext(ctx, insert,
		rec.ID,
		rec.UserID,
		string(rec.Kind),
		rec.AccessToken,
		rec.RefreshToken,
		rec.IssuedAt,
		rec.ExpiresAt,
		rec.RefreshExpiresAt,
		rec.Revoked,
		rec.UpdatedAt,
	)
	if err != nil {
		if utils.IsUniqueViolation(err) {
			return apperr.ErrAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepo) ActiveByUser(ctx context.Context, userID string) (Record, error) {
	return r.scanOne(ctx, selectRecord+`WHERE user_id = $1 AND NOT revoked ORDER BY issued_at DESC LIMIT 1`, userID)
}

func (r *PostgresRepo) FindByAccessToken(ctx context.Context, accessToken string) (Record, error) {
	return r.scanOne(ctx, selectRecord+`WHERE access_token = $1`, accessToken)
}

func (r *PostgresRepo) Deactivate(ctx context.Context, id string, at time.Time) error {
	const q = `UPDATE tokens SET revoked = TRUE, updated_at = $2 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) List(ctx context.Context, f ListFilter) (Page, error) {
	const count = `SELECT count(*) FROM tokens WHERE revoked = $1`
	var total int64
	if err := r.db.QueryRowContext(ctx, count, f.Revoked).Scan(&total); err != nil {
		return Page{}, fmt.Errorf("db error: %w", err)
	}

	q := selectRecord + `WHERE revoked = $1 ORDER BY issued_at DESC, id LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, q, f.Revoked, f.PageSize, f.Page*f.PageSize)
	if err != nil {
		return Page{}, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return Page{}, fmt.Errorf("db error: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return Page{}, fmt.Errorf("db error: %w", err)
	}
	return newPage(out, f, total), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (Record, error) {
	var rec Record
	err := s.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.Kind,
		&rec.AccessToken,
		&rec.RefreshToken,
		&rec.IssuedAt,
		&rec.ExpiresAt,
		&rec.RefreshExpiresAt,
		&rec.Revoked,
		&rec.UpdatedAt,
	)
	return rec, err
}

func (r *PostgresRepo) scanOne(ctx context.Context, q string, args ...any) (Record, error) {
	rec, err := scanRecord(r.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, apperr.ErrNotFound
		}
		return Record{}, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}

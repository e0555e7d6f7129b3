package revocation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"security-guard/internal/apperr"
	"security-guard/pkg/utils"
)

// Repository is the durable blacklist. It MUST be append-only.
type Repository interface {
	// Insert records e. A hash already present is left untouched and reported
	// with inserted == false.
	Insert(ctx context.Context, e Entry) (inserted bool, err error)
	Lookup(ctx context.Context, tokenHash string) (Entry, error)
}

type PostgresRepo struct {
	db utils.DBTX
}

func NewPostgresRepo(db utils.DBTX) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Insert(ctx context.Context, e Entry) (bool, error) {
	const q = `
INSERT INTO revoked_tokens (id, token_hash, user_id, reason, recorded_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (token_hash) DO NOTHING
`
	res, err := r.db.ExecContext(ctx, q,
		e.ID,
		e.TokenHash,
		nullString(e.UserID),
		nullString(e.Reason),
		e.RecordedAt,
		e.ExpiresAt,
	)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n == 1, nil
}

func (r *PostgresRepo) Lookup(ctx context.Context, tokenHash string) (Entry, error) {
	const q = `
SELECT id, token_hash, user_id, reason, recorded_at, expires_at
FROM revoked_tokens
WHERE token_hash = $1
`
	var (
		e         Entry
		userID    sql.NullString
		reason    sql.NullString
		expiresAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, q, tokenHash).Scan(
		&e.ID,
		&e.TokenHash,
		&userID,
		&reason,
		&e.RecordedAt,
		&expiresAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, apperr.ErrNotFound
		}
		return Entry{}, fmt.Errorf("db error: %w", err)
	}
	e.UserID = userID.String
	e.Reason = reason.String
	if expiresAt.Valid {
		t := expiresAt.Time
		e.ExpiresAt = &t
	}
	return e, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"security-guard/internal/apperr"
	"security-guard/internal/rbac"
	"security-guard/pkg/utils"
)

// Repository is the persistence contract of the user directory.
type Repository interface {
	Create(ctx context.Context, u Identity) error
	FindByID(ctx context.Context, id string) (Identity, error)
	// FindByIdentifier matches the username exactly or the email case-insensitively.
	FindByIdentifier(ctx context.Context, identifier string) (Identity, error)
	Taken(ctx context.Context, username, email string) (usernameTaken, emailTaken bool, err error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	AddRole(ctx context.Context, id string, role rbac.Role, at time.Time) error
}

// Runner executes fn inside one transaction with a repository bound to it.
type Runner interface {
	InTx(ctx context.Context, fn func(Repository) error) error
}

// PostgresRepo reads and writes the users and user_roles tables.
// It runs against either a pool or a transaction.
type PostgresRepo struct {
	db utils.DBTX
}

func NewPostgresRepo(db utils.DBTX) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const selectUser = `
SELECT id, username, email, password_hash, enabled, locked, credentials_expired, account_expired,
       last_login_at, created_at, updated_at
FROM users
`

func (r *PostgresRepo) Create(ctx context.Context, u Identity) error {
	const insertUser = `
INSERT INTO users (
  id, username, email, password_hash, enabled, locked, credentials_expired, account_expired, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10
)
`
	_, err := r.db.ExecContext(ctx, insertUser,
		u.ID,
		u.Username,
		u.Email,
		u.PasswordHash,
		u.Enabled,
		u.Locked,
		u.CredentialsExpired,
		u.AccountExpired,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		if utils.IsUniqueViolation(err) {
			return apperr.ErrAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}

	for _, role := range u.Roles {
		if err := r.insertRole(ctx, u.ID, role, u.CreatedAt); err != nil {
			return err
		}
	}
	return nil
}

func (r *PostgresRepo) FindByID(ctx context.Context, id string) (Identity, error) {
	u, err := r.scanOne(ctx, selectUser+`WHERE id = $1`, id)
	if err != nil {
		return Identity{}, err
	}
	return r.withRoles(ctx, u)
}

func (r *PostgresRepo) FindByIdentifier(ctx context.Context, identifier string) (Identity, error) {
	u, err := r.scanOne(ctx, selectUser+`WHERE username = $1 OR lower(email) = lower($1) LIMIT 1`, identifier)
	if err != nil {
		return Identity{}, err
	}
	return r.withRoles(ctx, u)
}

func (r *PostgresRepo) Taken(ctx context.Context, username, email string) (bool, bool, error) {
	const q = `
SELECT
  EXISTS (SELECT 1 FROM users WHERE username = $1),
  EXISTS (SELECT 1 FROM users WHERE lower(email) = lower($2))
`
	var usernameTaken, emailTaken bool
	if err := r.db.QueryRowContext(ctx, q, username, email).Scan(&usernameTaken, &emailTaken); err != nil {
		return false, false, fmt.Errorf("db error: %w", err)
	}
	return usernameTaken, emailTaken, nil
}

func (r *PostgresRepo) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	const q = `UPDATE users SET last_login_at = $2, updated_at = $2 WHERE id = $1`
	return r.execOne(ctx, q, id, at)
}

func (r *PostgresRepo) AddRole(ctx context.Context, id string, role rbac.Role, at time.Time) error {
	const q = `UPDATE users SET updated_at = $2 WHERE id = $1`
	if err := r.execOne(ctx, q, id, at); err != nil {
		return err
	}
	return r.insertRole(ctx, id, role, at)
}

func (r *PostgresRepo) insertRole(ctx context.Context, id string, role rbac.Role, at time.Time) error {
	const q = `
INSERT INTO user_roles (user_id, role, granted_at)
VALUES ($1, $2, $3)
ON CONFLICT (user_id, role) DO NOTHING
`
	if _, err := r.db.ExecContext(ctx, q, id, string(role), at); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepo) execOne(ctx context.Context, q string, args ...any) error {
	res, err := r.db.ExecContext(ctx, q, args...)
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

func (r *PostgresRepo) scanOne(ctx context.Context, q string, args ...any) (Identity, error) {
	var (
		u         Identity
		lastLogin sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, q, args...).Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.Enabled,
		&u.Locked,
		&u.CredentialsExpired,
		&u.AccountExpired,
		&lastLogin,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Identity{}, apperr.ErrNotFound
		}
		return Identity{}, fmt.Errorf("db error: %w", err)
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLoginAt = &t
	}
	return u, nil
}

func (r *PostgresRepo) withRoles(ctx context.Context, u Identity) (Identity, error) {
	const q = `SELECT role FROM user_roles WHERE user_id = $1 ORDER BY role`
	rows, err := r.db.QueryContext(ctx, q, u.ID)
	if err != nil {
		return Identity{}, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return Identity{}, fmt.Errorf("db error: %w", err)
		}
		role, err := rbac.ParseRole(name)
		if err != nil {
			// Unknown persisted roles grant nothing.
			continue
		}
		u.Roles = append(u.Roles, role)
	}
	if err := rows.Err(); err != nil {
		return Identity{}, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

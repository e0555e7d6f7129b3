package audit

import (
	"context"
	"database/sql"
	"fmt"

	"security-guard/pkg/utils"
)

// PostgresRepo appends events to auth_events. There is no update or delete.
type PostgresRepo struct {
	db utils.DBTX
}

func NewPostgresRepo(db utils.DBTX) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO auth_events (id, type, user_id, actor_user_id, ip_address, message, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		string(e.Type),
		nullable(e.UserID),
		nullable(e.ActorUserID),
		nullable(e.IPAddress),
		nullable(e.Message),
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

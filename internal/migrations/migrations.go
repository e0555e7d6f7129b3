// Package migrations holds the embedded goose schema for the Postgres store.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"security-guard/pkg/utils"

	"github.com/pressly/goose/v3"
)

//go:embed *.sql
var Migrations embed.FS

// up is swapped in tests.
var up = goose.UpContext

// Run applies every pending migration.
func Run(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(Migrations)
	if err := goose.SetDialect(utils.PgxDriver); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := up(ctx, db, "."); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

package db

import (
	"context"
	"database/sql"
	"embed"

	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

const migrationsDir = "migrations"

func init() {
	goose.SetBaseFS(migrations)
}

// Migrate applies every pending migration.
func Migrate(sqlDB *sql.DB) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.Up(sqlDB, migrationsDir); err != nil {
		return errors.Wrap(err, "apply migrations")
	}
	return nil
}

// RunMigrations runs a goose command (up, down, status, version, redo...)
// against the embedded migrations.
func RunMigrations(ctx context.Context, command string, sqlDB *sql.DB, args ...string) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.RunContext(ctx, command, sqlDB, migrationsDir, args...)
}

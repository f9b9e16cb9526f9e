// Package migrate runs the embedded schema migrations against a postgres
// database.
package migrate

import (
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver.
	"github.com/pressly/goose/v3"

	"github.com/mercatolabs/mercato/assets"
	"github.com/mercatolabs/mercato/pkg/storage/sqlcommon"
)

// RunMigrations applies all pending migrations to the database at uri.
func RunMigrations(uri string) error {
	db, err := sqlcommon.Open("pgx", uri, sqlcommon.NewConfig())
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	goose.SetBaseFS(assets.EmbedMigrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	if err := goose.Up(db, assets.MigrationsDir); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Down rolls back the most recent migration.
func Down(uri string) error {
	db, err := sqlcommon.Open("pgx", uri, sqlcommon.NewConfig())
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	goose.SetBaseFS(assets.EmbedMigrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	if err := goose.Down(db, assets.MigrationsDir); err != nil {
		return fmt.Errorf("roll back migration: %w", err)
	}
	return nil
}

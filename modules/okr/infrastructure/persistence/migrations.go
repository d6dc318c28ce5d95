package persistence

import (
	"context"
	"embed"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed schema/*.sql
var migrationFiles embed.FS

// RunMigrations applies the OKR schema through goose, reusing the pgx pool
// via its database/sql bridge.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer func() { _ = db.Close() }()

	goose.SetBaseFS(migrationFiles)
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Wrap(err, "set migration dialect")
	}
	if err := goose.UpContext(ctx, db, "schema"); err != nil {
		return errors.Wrap(err, "apply migrations")
	}
	return nil
}

// RollbackMigrations reverts the newest applied migration.
func RollbackMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer func() { _ = db.Close() }()

	goose.SetBaseFS(migrationFiles)
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Wrap(err, "set migration dialect")
	}
	if err := goose.DownContext(ctx, db, "schema"); err != nil {
		return errors.Wrap(err, "rollback migrations")
	}
	return nil
}

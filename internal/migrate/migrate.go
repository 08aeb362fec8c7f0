// Package migrate applies the embedded SQL migrations with goose.
package migrate

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"pantry.app/migrations"
)

func prepare() error {
	goose.SetBaseFS(migrations.FS)
	return goose.SetDialect("postgres")
}

// Up runs all pending migrations against the database at dsn.
func Up(ctx context.Context, dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	return UpDB(ctx, db)
}

// UpDB runs all pending migrations on an existing handle.
func UpDB(ctx context.Context, db *sql.DB) error {
	if err := prepare(); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

// Down rolls back the most recent migration.
func Down(ctx context.Context, dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := prepare(); err != nil {
		return err
	}
	return goose.DownContext(ctx, db, ".")
}

// Status prints the migration ledger through goose's logger.
func Status(ctx context.Context, dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := prepare(); err != nil {
		return err
	}
	return goose.StatusContext(ctx, db, ".")
}

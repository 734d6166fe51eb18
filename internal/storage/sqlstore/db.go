package sqlstore

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"reddit_river/internal/storage/sqlstore/migrations"
)

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Open connects to the store and applies pending migrations. driver is
// "sqlite" (dsn is a file path or URI) or "postgres".
func Open(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if driver == "sqlite" {
		// One connection: sqlite has a single writer and :memory: databases
		// are private to their connection.
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Migrate applies the embedded migrations for the connection's dialect.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	dialect, dir := "postgres", "postgres"
	if db.DriverName() == "sqlite" {
		dialect, dir = "sqlite3", "sqlite"
	}

	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db.DB, dir); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

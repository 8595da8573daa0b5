// Package persistence opens the bun database behind the climb repositories
// and applies the embedded schema migrations.
package persistence

import (
	"context"
	"database/sql"
	"io/fs"
	"strings"
	"sync"

	goerrors "github.com/goliatone/go-errors"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	climb "github.com/goliatone/go-climb"
)

// Driver identifies the database family behind a DSN
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// DriverFor picks the driver from the DSN scheme. Anything that is not a
// postgres URL is handed to sqlite.
func DriverFor(dsn string) Driver {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return DriverPostgres
	}
	return DriverSQLite
}

// Open connects to dsn and returns a bun database with the matching dialect.
// SQLite connections are limited to one so in memory databases are shared by
// every query of the process.
func Open(ctx context.Context, dsn string) (*bun.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, climb.NewConfigurationError("database dsn is required")
	}

	var db *bun.DB

	switch DriverFor(dsn) {
	case DriverPostgres:
		sqldb, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, climb.StoreUnavailable(err, "failed to open postgres")
		}
		db = bun.NewDB(sqldb, pgdialect.New())
	default:
		sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
		if err != nil {
			return nil, climb.StoreUnavailable(err, "failed to open sqlite")
		}
		sqldb.SetMaxOpenConns(1)
		db = bun.NewDB(sqldb, sqlitedialect.New())

		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
			_ = db.Close()
			return nil, climb.StoreUnavailable(err, "failed to enable sqlite foreign keys")
		}
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, climb.StoreUnavailable(err, "database is not reachable")
	}

	return db, nil
}

var gooseMu sync.Mutex

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Migrate applies every pending migration. goose keeps its settings in
// package state, so runs are serialized.
func Migrate(ctx context.Context, db *bun.DB) error {
	migrations, err := fs.Sub(climb.GetMigrationsFS(), climb.MigrationsDir)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load migrations")
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)

	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect(gooseDialect(db)); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to set migration dialect")
	}

	if err := gooseUpContext(ctx, db.DB, "."); err != nil {
		return climb.StoreUnavailable(err, "failed to apply migrations")
	}

	return nil
}

func gooseDialect(db *bun.DB) string {
	if db.Dialect().Name().String() == "pg" {
		return "postgres"
	}
	return "sqlite3"
}

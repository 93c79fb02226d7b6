package bunstore

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"           // registers the "postgres" driver
	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" driver
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

// Open connects to a SQL database and wraps it in Bun with the dialect
// matching driver: "sqlite" (or "sqlite3") or "postgres".
func Open(driver, dsn string) (*bun.DB, error) {
	switch driver {
	case "sqlite", "sqlite3":
		sqldb, err := sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, fmt.Errorf("bunstore: open sqlite: %w", err)
		}
		// SQLite serializes writers; a single connection also keeps
		// shared in-memory databases alive.
		sqldb.SetMaxOpenConns(1)
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	case "postgres", "postgresql":
		sqldb, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("bunstore: open postgres: %w", err)
		}
		return bun.NewDB(sqldb, pgdialect.New()), nil
	}
	return nil, fmt.Errorf("bunstore: unsupported driver %q", driver)
}

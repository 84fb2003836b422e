// Package sqlstore keeps conversation messages in Postgres or SQLite.
package sqlstore

import (
	"adoption-chat/errors"
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

//go:embed schema.sql
var schema string

// InitDB opens the database, checks the connection and applies the schema.
func InitDB(ctx context.Context, driver, dataSourceName string) (*sql.DB, error) {
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownStoreDriver, driver)
	}
	db, err := sql.Open(driver, dataSourceName)
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		// :memory: databases exist per connection
		db.SetMaxOpenConns(1)
	}
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err = db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("schema: %w", err)
	}
	return db, nil
}

// Package sqlite implements broker.ObjectIndex using SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/toitware/broker"

	_ "modernc.org/sqlite" // SQLite driver
)

type database struct {
	db    *sql.DB
	table string
}

// Connect opens a SQLite database. The table name must already be validated.
func Connect(ctx context.Context, dsn, table string) (*database, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}

	// Every connection to :memory: is its own database.
	if dsn == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	return &database{db: db, table: table}, nil
}

// Ping verifies the database connection is alive.
func (d *database) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Migrate creates the index table if it doesn't exist.
func (d *database) Migrate(ctx context.Context) error {
	return Migrate(ctx, d.db, d.table)
}

// Validate checks that the database schema matches expected structure.
func (d *database) Validate(ctx context.Context) error {
	return ValidateSchema(ctx, d.db, d.table)
}

// GetIndex returns the object index.
func (d *database) GetIndex() broker.ObjectIndex {
	return &repo{db: d.db, tableName: d.table}
}

// Close closes the database connection.
func (d *database) Close() error {
	return d.db.Close()
}

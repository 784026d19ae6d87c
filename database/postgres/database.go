// Package postgres implements broker.ObjectIndex using PostgreSQL.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/toitware/broker"
)

type database struct {
	pool  *pgxpool.Pool
	table string
}

// Connect establishes a connection pool to PostgreSQL.
// The table name must already be validated.
func Connect(ctx context.Context, dsn, table string) (*database, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	return &database{pool: pool, table: table}, nil
}

// Ping verifies the database connection is alive.
func (d *database) Ping(ctx context.Context) error {
	return d.pool.Ping(ctx)
}

// Migrate creates the index table if it doesn't exist.
func (d *database) Migrate(ctx context.Context) error {
	return Migrate(ctx, d.pool, d.table)
}

// Validate checks that the database schema matches expected structure.
func (d *database) Validate(ctx context.Context) error {
	return ValidateSchema(ctx, d.pool, d.table)
}

// GetIndex returns the object index.
func (d *database) GetIndex() broker.ObjectIndex {
	return &Repo{pool: d.pool, tableName: d.table}
}

// Close closes the database connection pool.
func (d *database) Close() error {
	d.pool.Close()
	return nil
}

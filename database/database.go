package database

import (
	"context"
	"fmt"

	"github.com/toitware/broker"
	"github.com/toitware/broker/database/postgres"
	"github.com/toitware/broker/database/sqlite"
)

// DefaultTable is the default name of the object index table.
const DefaultTable = "broker_objects"

// Config holds the configuration for connecting to an object index.
type Config struct {
	// Type specifies the database type: "sqlite" or "postgres"
	Type string `mapstructure:"type" validate:"required,oneof=sqlite postgres"`
	// DSN is the data source name (connection string)
	DSN string `mapstructure:"dsn" validate:"required"`
	// Table is the name of the object index table
	Table string `mapstructure:"table"`
}

// Database is a connection to an object index store.
type Database interface {
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Validate(ctx context.Context) error
	GetIndex() broker.ObjectIndex
	Close() error
}

// Connect opens the configured database. It does not migrate; call Migrate
// or Validate as the deployment requires.
func Connect(ctx context.Context, cfg Config) (Database, error) {
	table := cfg.Table
	if table == "" {
		table = DefaultTable
	}
	if err := broker.ValidateTableName(table); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	switch cfg.Type {
	case "sqlite":
		db, err := sqlite.Connect(ctx, cfg.DSN, table)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "postgres":
		db, err := postgres.Connect(ctx, cfg.DSN, table)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported database type: %q", cfg.Type)
	}
}

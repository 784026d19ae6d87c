package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/toitware/broker"
	"github.com/toitware/broker/config"
	"github.com/toitware/broker/database"
	"github.com/toitware/broker/filesystem"
	"github.com/toitware/broker/local"
	"github.com/toitware/broker/procedures"
	"github.com/toitware/broker/supabase"
)

// backend is the connector selected by the configuration, along with what
// the HTTP layer and the shutdown path need from it.
type backend struct {
	connector broker.Connector
	// public serves public objects under local.PublicPrefix, nil for Supabase.
	public http.Handler
	health func(*http.Request) error
	closers []func()
}

func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	switch cfg.Backend.Type {
	case config.BackendSupabase:
		connector, err := supabase.NewConnector(supabase.Config{
			URL:     cfg.Supabase.URL,
			AnonKey: cfg.Supabase.AnonKey,
		})
		if err != nil {
			return nil, fmt.Errorf("create supabase connector: %w", err)
		}
		slog.Info("using supabase backend", "url", cfg.Supabase.URL)
		return &backend{connector: connector}, nil

	case config.BackendLocal:
		return openLocal(ctx, cfg)

	default:
		return nil, fmt.Errorf("unsupported backend type: %q", cfg.Backend.Type)
	}
}

func openLocal(ctx context.Context, cfg *config.Config) (_ *backend, err error) {
	b := &backend{}
	defer func() {
		if err != nil {
			b.Close()
		}
	}()

	db, err := openIndex(ctx, cfg)
	if err != nil {
		return nil, err
	}
	b.closers = append(b.closers, func() { _ = db.Close() })

	root, err := openStorage(cfg.Local.StoragePath, true)
	if err != nil {
		return nil, err
	}
	b.closers = append(b.closers, func() { _ = root.Close() })

	var caller local.ProcedureCaller
	var procs *procedures.Caller
	if cfg.Local.ProceduresDSN != "" {
		procs, err = procedures.Connect(ctx, cfg.Local.ProceduresDSN)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, procs.Close)
		caller = procs
	} else {
		slog.Warn("no procedures database configured, procedure commands will fail")
	}

	connector := local.NewConnector(filesystem.NewFileStorage(root), db.GetIndex(), caller, local.Config{
		PublicURL:     publicURL(cfg),
		PublicBuckets: cfg.Local.PublicBuckets,
	})

	b.connector = connector
	b.public = connector.PublicHandler()
	b.health = func(r *http.Request) error {
		if err := db.Ping(r.Context()); err != nil {
			return fmt.Errorf("object index: %w", err)
		}
		if procs != nil {
			if err := procs.Ping(r.Context()); err != nil {
				return fmt.Errorf("procedures: %w", err)
			}
		}
		return nil
	}

	slog.Info("using local backend",
		"storage", cfg.Local.StoragePath,
		"index", cfg.Local.Database.Type,
		"public_buckets", cfg.Local.PublicBuckets,
	)
	return b, nil
}

// openIndex connects to the object index and makes sure its schema is usable.
func openIndex(ctx context.Context, cfg *config.Config) (database.Database, error) {
	db, err := database.Connect(ctx, cfg.Local.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := db.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if cfg.Local.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		slog.Info("database migration complete")
	}

	if err := db.Validate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("validate database schema: %w", err)
	}

	return db, nil
}

func openStorage(path string, create bool) (*os.Root, error) {
	if create {
		if err := os.MkdirAll(path, 0o750); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	} else if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("storage directory does not exist: %s", path)
	}

	root, err := os.OpenRoot(path)
	if err != nil {
		return nil, fmt.Errorf("open storage root: %w", err)
	}
	return root, nil
}

// publicURL is where clients reach public objects of the local backend.
func publicURL(cfg *config.Config) string {
	if cfg.Local.PublicURL != "" {
		return cfg.Local.PublicURL
	}
	return fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/toitware/broker"
)

// Repo is the PostgreSQL object index.
type Repo struct {
	pool      *pgxpool.Pool
	tableName string
}

// NewRepo returns a Repo on table, which must exist.
func NewRepo(pool *pgxpool.Pool, table string) (*Repo, error) {
	if err := broker.ValidateTableName(table); err != nil {
		return nil, fmt.Errorf("new repo: %w", err)
	}
	return &Repo{pool: pool, tableName: table}, nil
}

// Ping verifies database connectivity
func (r *Repo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *Repo) Get(ctx context.Context, bucket, object string) (broker.ObjectInfo, error) {
	query := fmt.Sprintf(`
		SELECT bucket, object, content_type, etag, size_bytes, created_at, updated_at
		FROM %s
		WHERE bucket = $1 AND object = $2
	`, pgx.Identifier{r.tableName}.Sanitize())

	var info broker.ObjectInfo
	err := r.pool.QueryRow(ctx, query, bucket, object).Scan(
		&info.Bucket, &info.Object, &info.ContentType, &info.ETag, &info.SizeBytes, &info.CreatedAt, &info.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return broker.ObjectInfo{}, broker.ErrNotFound
		}
		return broker.ObjectInfo{}, fmt.Errorf("get: %w", err)
	}

	return info, nil
}

func (r *Repo) Upsert(ctx context.Context, info broker.ObjectInfo) (broker.ObjectInfo, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (bucket, object, content_type, etag, size_bytes)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (bucket, object) DO UPDATE SET
			content_type = EXCLUDED.content_type,
			etag = EXCLUDED.etag,
			size_bytes = EXCLUDED.size_bytes,
			updated_at = clock_timestamp()
		RETURNING bucket, object, content_type, etag, size_bytes, created_at, updated_at
	`, pgx.Identifier{r.tableName}.Sanitize())

	var out broker.ObjectInfo
	err := r.pool.QueryRow(ctx, query,
		info.Bucket, info.Object, info.ContentType, info.ETag, info.SizeBytes,
	).Scan(
		&out.Bucket, &out.Object, &out.ContentType, &out.ETag, &out.SizeBytes, &out.CreatedAt, &out.UpdatedAt,
	)
	if err != nil {
		return broker.ObjectInfo{}, fmt.Errorf("upsert: %w", err)
	}

	return out, nil
}

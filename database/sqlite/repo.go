package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/toitware/broker"
)

type repo struct {
	db        *sql.DB
	tableName string
}

func (r *repo) Get(ctx context.Context, bucket, object string) (broker.ObjectInfo, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT bucket, object, content_type, etag, size_bytes, created_at, updated_at
		FROM %s
		WHERE bucket = ? AND object = ?`, quoteIdentifier(r.tableName))

	var info broker.ObjectInfo
	var createdAt, updatedAt string

	err := r.db.QueryRowContext(ctx, query, bucket, object).Scan(
		&info.Bucket, &info.Object, &info.ContentType, &info.ETag, &info.SizeBytes, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return broker.ObjectInfo{}, broker.ErrNotFound
		}
		return broker.ObjectInfo{}, fmt.Errorf("get: %w", err)
	}

	info.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return broker.ObjectInfo{}, fmt.Errorf("get: parse created_at: %w", err)
	}

	info.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return broker.ObjectInfo{}, fmt.Errorf("get: parse updated_at: %w", err)
	}

	return info, nil
}

func (r *repo) Upsert(ctx context.Context, info broker.ObjectInfo) (broker.ObjectInfo, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %s (bucket, object, content_type, etag, size_bytes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (bucket, object) DO UPDATE SET
			content_type = excluded.content_type,
			etag = excluded.etag,
			size_bytes = excluded.size_bytes,
			updated_at = excluded.updated_at`, quoteIdentifier(r.tableName))

	_, err := r.db.ExecContext(ctx, query,
		info.Bucket, info.Object, info.ContentType, info.ETag, info.SizeBytes, now, now,
	)
	if err != nil {
		return broker.ObjectInfo{}, fmt.Errorf("upsert: %w", err)
	}

	return r.Get(ctx, info.Bucket, info.Object)
}

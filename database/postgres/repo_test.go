package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toitware/broker"
	"github.com/toitware/broker/database/postgres"
)

func TestRepo_UpsertAndGet(t *testing.T) {
	index := setupTestIndex(t)
	ctx := context.Background()

	info, err := index.Upsert(ctx, broker.ObjectInfo{
		Bucket:      "assets",
		Object:      "fleet/fw.bin",
		ContentType: "application/octet-stream",
		ETag:        "abc",
		SizeBytes:   42,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), info.SizeBytes)
	assert.False(t, info.CreatedAt.IsZero())

	got, err := index.Get(ctx, "assets", "fleet/fw.bin")
	require.NoError(t, err)
	assert.Equal(t, info.ETag, got.ETag)
	assert.True(t, info.CreatedAt.Equal(got.CreatedAt))
}

func TestRepo_UpsertReplaces(t *testing.T) {
	index := setupTestIndex(t)
	ctx := context.Background()

	first, err := index.Upsert(ctx, broker.ObjectInfo{Bucket: "assets", Object: "a", ContentType: "text/plain", ETag: "1", SizeBytes: 1})
	require.NoError(t, err)

	second, err := index.Upsert(ctx, broker.ObjectInfo{Bucket: "assets", Object: "a", ContentType: "application/json", ETag: "2", SizeBytes: 2})
	require.NoError(t, err)

	assert.Equal(t, "2", second.ETag)
	assert.Equal(t, "application/json", second.ContentType)
	assert.True(t, first.CreatedAt.Equal(second.CreatedAt), "created_at is kept")
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
}

func TestRepo_GetNotFound(t *testing.T) {
	index := setupTestIndex(t)

	_, err := index.Get(context.Background(), "assets", "missing")

	assert.ErrorIs(t, err, broker.ErrNotFound)
}

func TestNewRepo_InvalidTable(t *testing.T) {
	_, err := postgres.NewRepo(nil, "Bad-Name")
	assert.Error(t, err)
}

func TestValidateSchema(t *testing.T) {
	pool := getSharedTestDatabase(t)
	ctx := context.Background()

	t.Run("success after migrate", func(t *testing.T) {
		table := "objects_" + getRandomString(t)
		require.NoError(t, postgres.Migrate(ctx, pool, table))
		defer func() { _ = postgres.DropTable(ctx, pool, table) }()

		assert.NoError(t, postgres.ValidateSchema(ctx, pool, table))
		assert.NoError(t, postgres.Migrate(ctx, pool, table), "migrate is idempotent")
	})

	t.Run("missing table", func(t *testing.T) {
		assert.Error(t, postgres.ValidateSchema(ctx, pool, "objects_"+getRandomString(t)))
	})

	t.Run("wrong column types", func(t *testing.T) {
		table := "objects_" + getRandomString(t)
		_, err := pool.Exec(ctx, `CREATE TABLE `+table+` (
			bucket TEXT NOT NULL,
			object TEXT NOT NULL,
			content_type TEXT NOT NULL,
			etag TEXT NOT NULL,
			size_bytes INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`)
		require.NoError(t, err)
		defer func() { _ = postgres.DropTable(ctx, pool, table) }()

		err = postgres.ValidateSchema(ctx, pool, table)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "size_bytes")
		assert.Contains(t, err.Error(), "created_at")
	})
}

package local

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/toitware/broker"
	"github.com/toitware/broker/filesystem"
)

// Reindex records every object in store in index and returns how many were
// indexed. Entries for deleted files are left alone.
func Reindex(ctx context.Context, store *filesystem.Store, index broker.ObjectIndex) (int, error) {
	entries, err := store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("reindex: %w", err)
	}

	for i, e := range entries {
		_, err := index.Upsert(ctx, broker.ObjectInfo{
			Bucket:      e.Bucket,
			Object:      e.Object,
			ContentType: e.ContentType,
			ETag:        e.ETag,
			SizeBytes:   e.Size,
		})
		if err != nil {
			return i, fmt.Errorf("reindex %s/%s: %w", e.Bucket, e.Object, err)
		}
		slog.DebugContext(ctx, "indexed object", "bucket", e.Bucket, "object", e.Object, "size", e.Size)
	}

	return len(entries), nil
}

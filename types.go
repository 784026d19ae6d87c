package broker

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"
)

// ObjectInfo describes a stored object in the local object index.
type ObjectInfo struct {
	Bucket      string    `json:"bucket"`
	Object      string    `json:"object"`
	ContentType string    `json:"content_type"`
	ETag        string    `json:"etag"`
	SizeBytes   int64     `json:"size_bytes"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ObjectIndex persists object metadata for the local storage backend.
// Implementations must be safe for concurrent use.
type ObjectIndex interface {
	// Get returns the entry for bucket/object, or ErrNotFound.
	Get(ctx context.Context, bucket, object string) (ObjectInfo, error)

	// Upsert creates or replaces the entry for info.Bucket/info.Object and
	// returns it with timestamps filled in.
	Upsert(ctx context.Context, info ObjectInfo) (ObjectInfo, error)
}

var validTableNameRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// IsValidTableName checks if a table name is valid (lowercase, alphanumeric with underscores, max 63 chars).
func IsValidTableName(name string) bool {
	return validTableNameRegex.MatchString(name) && len(name) <= 63
}

// ValidateTableName returns an error unless name is usable as an index table name.
func ValidateTableName(name string) error {
	if name == "" {
		return errors.New("validate table: table name cannot be empty")
	}

	if !IsValidTableName(name) {
		return fmt.Errorf("validate table: invalid table name: %s (must match ^[a-z_][a-z0-9_]*$ and be <= 63 chars)", name)
	}

	return nil
}

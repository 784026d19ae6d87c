// Package filesystem provides the file system object store used by the local
// backend. Buckets are top-level directories; objects are files below them.
// Writes are atomic (temp file and rename) and produce SHA256-based etags.
package filesystem

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/toitware/broker"
)

// SaveResult describes a completed write.
type SaveResult struct {
	BytesWritten int64
	ETag         string
}

// Entry is an object found by List.
type Entry struct {
	Bucket      string
	Object      string
	Size        int64
	ETag        string
	ContentType string
}

// Store provides file system storage operations.
type Store struct {
	root *os.Root
}

// NewFileStorage creates a new Store with the given root directory.
// The root provides sandboxed file operations preventing path traversal.
func NewFileStorage(root *os.Root) *Store {
	return &Store{root: root}
}

func objectPath(bucket, object string) (string, error) {
	if !broker.IsValidObjectPath(bucket, object) {
		return "", &broker.Error{Kind: broker.ErrInvalidPath, Message: "invalid path"}
	}
	return filepath.Join(bucket, filepath.FromSlash(object)), nil
}

// Get opens an object for reading. Returns broker.ErrNotFound if it does not exist.
func (s *Store) Get(ctx context.Context, bucket, object string) (*os.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p, err := objectPath(bucket, object)
	if err != nil {
		return nil, err
	}

	f, err := s.root.Open(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &broker.Error{Kind: broker.ErrNotFound, Message: "Object not found"}
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, &broker.Error{Kind: broker.ErrNotFound, Message: "Object not found"}
	}

	return f, nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (n int, err error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

// Write atomically replaces bucket/object with content. Intermediate
// directories are created as needed.
func (s *Store) Write(ctx context.Context, bucket, object string, content io.Reader) (SaveResult, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return SaveResult{}, ctxErr
	}

	dest, err := objectPath(bucket, object)
	if err != nil {
		return SaveResult{}, err
	}

	tmpFile := tmpFileName()
	t, createErr := s.root.Create(tmpFile)
	if createErr != nil {
		return SaveResult{}, fmt.Errorf("could not open temp file: %w", createErr)
	}

	success := false
	defer func() {
		if closeErr := t.Close(); closeErr != nil {
			slog.Warn("failed to close tmp file", "err", closeErr)
		}
		if !success {
			if rmErr := s.root.Remove(tmpFile); rmErr != nil {
				slog.Warn("failed to remove tmp file", "err", rmErr)
			}
		}
	}()

	h := sha256.New()
	w := io.MultiWriter(h, t)

	size, err := io.Copy(w, &ctxReader{ctx: ctx, r: content})
	if err != nil {
		return SaveResult{}, fmt.Errorf("could not copy file contents: %w", err)
	}

	if err := t.Sync(); err != nil {
		return SaveResult{}, fmt.Errorf("could not sync written file: %w", err)
	}

	if err := s.root.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return SaveResult{}, fmt.Errorf("could not create intermediate directories: %w", err)
	}

	if renameErr := s.root.Rename(tmpFile, dest); renameErr != nil {
		return SaveResult{}, fmt.Errorf("failed to rename file: %w", renameErr)
	}

	success = true
	return SaveResult{BytesWritten: size, ETag: hex.EncodeToString(h.Sum(nil))}, nil
}

// List walks every bucket and returns all objects with size, etag and
// detected content type. It reads every file and is meant for reindexing.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	buckets, err := fs.ReadDir(s.root.FS(), ".")
	if err != nil {
		return nil, fmt.Errorf("failed to list buckets: %w", err)
	}

	var entries []Entry
	for _, b := range buckets {
		// Files at the top level are temp files, not objects.
		if !b.IsDir() {
			continue
		}
		if err := s.walkDir(ctx, b.Name(), "", &entries); err != nil {
			return nil, fmt.Errorf("failed to list files: %w", err)
		}
	}

	return entries, nil
}

func (s *Store) walkDir(ctx context.Context, bucket, dir string, entries *[]Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dirEntries, err := fs.ReadDir(s.root.FS(), path.Join(bucket, dir))
	if err != nil {
		return err
	}

	for _, entry := range dirEntries {
		if err := ctx.Err(); err != nil {
			return err
		}

		object := path.Join(dir, entry.Name())

		if entry.IsDir() {
			if err := s.walkDir(ctx, bucket, object, entries); err != nil {
				return err
			}
			continue
		}

		info, err := entry.Info()
		if err != nil {
			return fmt.Errorf("walk dir: %w", err)
		}

		etag, err := s.hashFile(path.Join(bucket, object))
		if err != nil {
			return fmt.Errorf("walk dir: %w", err)
		}

		*entries = append(*entries, Entry{
			Bucket:      bucket,
			Object:      object,
			Size:        info.Size(),
			ETag:        etag,
			ContentType: DetectContentType(object),
		})
	}

	return nil
}

func (s *Store) hashFile(name string) (string, error) {
	f, err := s.root.Open(name)
	if err != nil {
		return "", err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			slog.Warn("failed to close file", "path", name, "err", closeErr)
		}
	}()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// DetectContentType guesses a content type from the object's extension.
func DetectContentType(object string) string {
	contentType := mime.TypeByExtension(path.Ext(object))
	if contentType == "" {
		return "application/octet-stream"
	}
	return contentType
}

func tmpFileName() string {
	return fmt.Sprintf(".t%s", uuid.New().String())
}

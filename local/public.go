package local

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/toitware/broker"
)

type storageError struct {
	StatusCode string `json:"statusCode"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}

func writeStorageError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(storageError{
		StatusCode: strconv.Itoa(status),
		Error:      code,
		Message:    message,
	})
}

// PublicHandler serves objects of public buckets at "/bucket/object" with
// Range and conditional request support. Mount it under PublicPrefix.
func (c *Connector) PublicHandler() http.Handler {
	return http.HandlerFunc(c.servePublic)
}

func (c *Connector) servePublic(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		writeStorageError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return
	}

	p, err := broker.SplitPath(r.URL.Path)
	if err != nil || p.Object == "" {
		writeStorageError(w, http.StatusBadRequest, "invalid_path", "Invalid path")
		return
	}

	if !c.IsPublic(p.Bucket) {
		writeStorageError(w, http.StatusBadRequest, "not_found", "Bucket not found")
		return
	}

	f, err := c.store.Get(r.Context(), p.Bucket, p.Object)
	if err != nil {
		if errors.Is(err, broker.ErrNotFound) || errors.Is(err, broker.ErrInvalidPath) {
			writeStorageError(w, http.StatusNotFound, "not_found", "Object not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to open public object", "bucket", p.Bucket, "object", p.Object, "error", err)
		writeStorageError(w, http.StatusInternalServerError, "internal", "Internal server error")
		return
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			slog.Warn("failed to close file", "bucket", p.Bucket, "object", p.Object, "err", closeErr)
		}
	}()

	stat, err := f.Stat()
	if err != nil {
		writeStorageError(w, http.StatusInternalServerError, "internal", "Internal server error")
		return
	}
	modTime := stat.ModTime()

	if info, err := c.index.Get(r.Context(), p.Bucket, p.Object); err == nil {
		w.Header().Set("Content-Type", info.ContentType)
		w.Header().Set("ETag", strconv.Quote(info.ETag))
		modTime = info.UpdatedAt
	} else if !errors.Is(err, broker.ErrNotFound) {
		slog.WarnContext(r.Context(), "object index lookup failed", "bucket", p.Bucket, "object", p.Object, "error", err)
	}

	http.ServeContent(w, r, p.Object, modTime, f)
}

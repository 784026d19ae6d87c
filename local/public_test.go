package local_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toitware/broker"
	"github.com/toitware/broker/local"
)

func newPublicHandler(t *testing.T) (http.Handler, broker.ObjectIndex) {
	t.Helper()

	f := newFixture(t)
	c := f.connector(nil, local.Config{PublicBuckets: []string{"firmware"}})

	backend := c.Connect("")
	ctx := context.Background()
	require.NoError(t, backend.Upload(ctx, "firmware", "v1/image.bin", []byte("0123456789"), broker.UploadOptions{Upsert: true}))
	require.NoError(t, backend.Upload(ctx, "private", "secret.bin", []byte("secret"), broker.UploadOptions{Upsert: true}))

	return c.PublicHandler(), f.index
}

func TestPublicHandler_Get(t *testing.T) {
	h, index := newPublicHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/firmware/v1/image.bin", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0123456789", w.Body.String())
	assert.Equal(t, "application/octet-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "bytes", w.Header().Get("Accept-Ranges"))

	info, err := index.Get(context.Background(), "firmware", "v1/image.bin")
	require.NoError(t, err)
	assert.Equal(t, strconv.Quote(info.ETag), w.Header().Get("ETag"))
}

func TestPublicHandler_Range(t *testing.T) {
	h, _ := newPublicHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/firmware/v1/image.bin", nil)
	req.Header.Set("Range", "bytes=4-")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusPartialContent, w.Code)
	assert.Equal(t, "456789", w.Body.String())
	assert.Equal(t, "bytes 4-9/10", w.Header().Get("Content-Range"))
}

func TestPublicHandler_NotModified(t *testing.T) {
	h, _ := newPublicHandler(t)

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/firmware/v1/image.bin", nil))
	require.Equal(t, http.StatusOK, first.Code)

	req := httptest.NewRequest(http.MethodGet, "/firmware/v1/image.bin", nil)
	req.Header.Set("If-None-Match", first.Header().Get("ETag"))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotModified, w.Code)
}

func TestPublicHandler_Errors(t *testing.T) {
	h, _ := newPublicHandler(t)

	tests := []struct {
		name    string
		method  string
		target  string
		status  int
		message string
	}{
		{"private bucket", http.MethodGet, "/private/secret.bin", http.StatusBadRequest, "Bucket not found"},
		{"missing object", http.MethodGet, "/firmware/v2/image.bin", http.StatusNotFound, "Object not found"},
		{"no object", http.MethodGet, "/firmware", http.StatusBadRequest, "Invalid path"},
		{"traversal", http.MethodGet, "/firmware/a/../../private/secret.bin", http.StatusNotFound, "Object not found"},
		{"post", http.MethodPost, "/firmware/v1/image.bin", http.StatusMethodNotAllowed, "Method not allowed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(tt.method, tt.target, nil))

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.Contains(t, w.Body.String(), `"message":"`+tt.message+`"`)
		})
	}
}

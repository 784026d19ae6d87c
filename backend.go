package broker

import (
	"context"
	"encoding/json"
	"net/http"
)

// UploadOptions controls how an object is written.
type UploadOptions struct {
	// Upsert replaces an existing object instead of failing.
	Upsert bool
	// ContentType is stored with the object. Empty means detect or default.
	ContentType string
}

// Storage is the blob storage capability of a backend.
type Storage interface {
	// Upload writes data to bucket/object.
	Upload(ctx context.Context, bucket, object string, data []byte, opts UploadOptions) error

	// Download returns the full content of bucket/object.
	Download(ctx context.Context, bucket, object string) ([]byte, error)

	// PublicURL returns the URL under which bucket/object is publicly readable.
	// It does not check that the object exists.
	PublicURL(bucket, object string) string
}

// Procedures is the remote procedure capability of a backend.
type Procedures interface {
	// Call invokes the procedure name ("schema.function") with params, a JSON
	// object of named arguments. A nil result means the procedure returned nothing.
	Call(ctx context.Context, name string, params json.RawMessage) (json.RawMessage, error)
}

// Fetcher issues plain GET requests, used for public object downloads.
type Fetcher interface {
	Fetch(ctx context.Context, url string, header http.Header) (*http.Response, error)
}

// Backend is the capability handle for a single request. It carries the
// caller's credential and must not be shared across requests.
type Backend interface {
	Storage
	Procedures
	Fetcher
}

// Connector creates a Backend acting with the given Authorization header value.
type Connector interface {
	Connect(authorization string) Backend
}

// HTTPFetcher implements Fetcher with an http.Client.
type HTTPFetcher struct {
	Client *http.Client
}

// Fetch sends a GET request to url with header.
func (f HTTPFetcher) Fetch(ctx context.Context, url string, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, err
	}
	for k, v := range header {
		req.Header[k] = v
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	return client.Do(req)
}

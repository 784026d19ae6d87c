// Package local implements broker backends without Supabase: objects live in
// a directory managed by the filesystem package, their metadata in an object
// index, and procedures are PostgreSQL functions called through the
// procedures package.
package local

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/toitware/broker"
	"github.com/toitware/broker/filesystem"
)

// PublicPrefix is where public objects are served, matching the Supabase
// storage layout.
const PublicPrefix = "/storage/v1/object/public"

// ErrProceduresDisabled is returned by Call when no procedure backend is set.
var ErrProceduresDisabled = errors.New("procedures are not configured")

// ProcedureCaller invokes a database function on behalf of a credential.
// *procedures.Caller implements it.
type ProcedureCaller interface {
	Call(ctx context.Context, authorization, name string, params json.RawMessage) (json.RawMessage, error)
}

// Config configures a Connector.
type Config struct {
	// PublicURL is the externally reachable base URL of the gateway. Public
	// object URLs are PublicURL + PublicPrefix + "/bucket/object".
	PublicURL string
	// PublicBuckets may be read without credentials.
	PublicBuckets []string
	// HTTPClient fetches public objects. Defaults to http.DefaultClient.
	HTTPClient *http.Client
}

// Connector creates local backends. It is safe for concurrent use.
type Connector struct {
	store      *filesystem.Store
	index      broker.ObjectIndex
	procedures ProcedureCaller
	fetcher    broker.HTTPFetcher
	config     Config
}

// NewConnector returns a Connector. procedures may be nil, in which case
// every procedure call fails with ErrProceduresDisabled.
func NewConnector(store *filesystem.Store, index broker.ObjectIndex, procedures ProcedureCaller, cfg Config) *Connector {
	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")
	return &Connector{
		store:      store,
		index:      index,
		procedures: procedures,
		fetcher:    broker.HTTPFetcher{Client: cfg.HTTPClient},
		config:     cfg,
	}
}

// Connect returns a backend acting with authorization.
func (c *Connector) Connect(authorization string) broker.Backend {
	return &backend{Connector: c, authorization: authorization}
}

// IsPublic reports whether bucket is readable without credentials.
func (c *Connector) IsPublic(bucket string) bool {
	return slices.Contains(c.config.PublicBuckets, bucket)
}

type backend struct {
	*Connector
	authorization string
}

func (b *backend) Upload(ctx context.Context, bucket, object string, data []byte, opts broker.UploadOptions) error {
	if !opts.Upsert {
		if _, err := b.index.Get(ctx, bucket, object); err == nil {
			return &broker.Error{Kind: broker.ErrBackend, Message: "The resource already exists"}
		} else if !errors.Is(err, broker.ErrNotFound) {
			return fmt.Errorf("upload: %w", err)
		}
	}

	result, err := b.store.Write(ctx, bucket, object, bytes.NewReader(data))
	if err != nil {
		return err
	}

	contentType := opts.ContentType
	if contentType == "" {
		contentType = filesystem.DetectContentType(object)
	}

	_, err = b.index.Upsert(ctx, broker.ObjectInfo{
		Bucket:      bucket,
		Object:      object,
		ContentType: contentType,
		ETag:        result.ETag,
		SizeBytes:   result.BytesWritten,
	})
	if err != nil {
		return fmt.Errorf("upload: index: %w", err)
	}

	slog.DebugContext(ctx, "stored object", "bucket", bucket, "object", object, "size", result.BytesWritten)
	return nil
}

func (b *backend) Download(ctx context.Context, bucket, object string) ([]byte, error) {
	f, err := b.store.Get(ctx, bucket, object)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			slog.Warn("failed to close file", "bucket", bucket, "object", object, "err", closeErr)
		}
	}()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	return data, nil
}

func (b *backend) PublicURL(bucket, object string) string {
	return b.config.PublicURL + PublicPrefix + "/" + escapePath(bucket) + "/" + escapePath(object)
}

func (b *backend) Call(ctx context.Context, name string, params json.RawMessage) (json.RawMessage, error) {
	if b.procedures == nil {
		return nil, ErrProceduresDisabled
	}
	return b.procedures.Call(ctx, b.authorization, name, params)
}

func (b *backend) Fetch(ctx context.Context, url string, header http.Header) (*http.Response, error) {
	return b.fetcher.Fetch(ctx, url, header)
}

// escapePath escapes each segment of p, keeping the separators.
func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/toitware/broker"
)

// DefaultTimeout is the default HTTP client timeout.
const DefaultTimeout = 60 * time.Second

// Config holds the project settings shared by all requests.
type Config struct {
	// URL is the project API URL, e.g. "https://xyz.supabase.co".
	URL string
	// AnonKey is sent as the apikey header on every request.
	AnonKey string
}

// Connector creates per-request Clients for one project.
type Connector struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
	// fetchClient relays public downloads. It has no Timeout since the
	// body is streamed after the response status is sent; the request
	// context bounds it.
	fetchClient *http.Client
}

// Option configures a Connector.
type Option func(*Connector)

// WithHTTPClient sets a custom HTTP client for the storage and REST APIs.
// Public downloads use a copy of it without a timeout.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Connector) {
		c.httpClient = client
	}
}

// WithTimeout sets the timeout for storage and REST API calls. It does not
// apply to public downloads.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Connector) {
		c.httpClient.Timeout = timeout
	}
}

// NewConnector validates cfg and returns a Connector.
func NewConnector(cfg Config, opts ...Option) (*Connector, error) {
	if cfg.URL == "" {
		return nil, ErrURLRequired
	}
	u, err := url.Parse(cfg.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, cfg.URL)
	}

	c := &Connector{
		baseURL:    strings.TrimSuffix(cfg.URL, "/"),
		anonKey:    cfg.AnonKey,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	fetch := *c.httpClient
	fetch.Timeout = 0
	c.fetchClient = &fetch
	return c, nil
}

// Connect returns a Client acting with authorization.
func (c *Connector) Connect(authorization string) broker.Backend {
	return c.Client(authorization)
}

// Client is like Connect but returns the concrete type.
func (c *Connector) Client(authorization string) *Client {
	return &Client{
		baseURL:       c.baseURL,
		anonKey:       c.anonKey,
		authorization: authorization,
		httpClient:    c.httpClient,
		HTTPFetcher:   broker.HTTPFetcher{Client: c.fetchClient},
	}
}

// Client talks to the storage and REST APIs of a project with one caller's
// credential. It implements broker.Backend.
type Client struct {
	baseURL       string
	anonKey       string
	authorization string
	httpClient    *http.Client

	broker.HTTPFetcher
}

// Upload stores data at bucket/object.
func (c *Client) Upload(ctx context.Context, bucket, object string, data []byte, opts broker.UploadOptions) error {
	contentType := opts.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.objectURL("object", bucket, object), bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Cache-Control", "max-age=3600")
	if opts.Upsert {
		req.Header.Set("x-upsert", "true")
	}
	req.ContentLength = int64(len(data))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload %s/%s: %w", bucket, object, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode/100 != 2 {
		return parseStorageError(resp.StatusCode, body)
	}
	return nil
}

// Download returns the full content of bucket/object.
func (c *Client) Download(ctx context.Context, bucket, object string) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.objectURL("object", bucket, object), http.NoBody)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s/%s: %w", bucket, object, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseStorageError(resp.StatusCode, body)
	}
	return body, nil
}

// PublicURL returns the public object URL. It works whether or not the bucket
// is public; fetching it fails for private buckets.
func (c *Client) PublicURL(bucket, object string) string {
	return c.objectURL("object/public", bucket, object)
}

// Call invokes the database function name through the REST API. The name is
// sent as given, so "toit_artemis.set_goal" posts to rpc/toit_artemis.set_goal
// under the default profile.
func (c *Client) Call(ctx context.Context, name string, params json.RawMessage) (json.RawMessage, error) {
	if len(params) == 0 {
		params = json.RawMessage("{}")
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.baseURL+"/rest/v1/rpc/"+url.PathEscape(name), bytes.NewReader(params))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode/100 != 2 {
		return nil, parseRESTError(resp.StatusCode, body)
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("call %s: invalid json response", name)
	}
	return body, nil
}

func (c *Client) newRequest(ctx context.Context, method, u string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("apikey", c.anonKey)
	if c.authorization != "" {
		req.Header.Set("Authorization", c.authorization)
	}
	return req, nil
}

func (c *Client) objectURL(kind, bucket, object string) string {
	return c.baseURL + "/storage/v1/" + kind + "/" + escapePath(bucket) + "/" + escapePath(object)
}

// escapePath escapes each segment of p, keeping the separators.
func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

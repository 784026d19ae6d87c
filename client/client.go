package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/toitware/broker"
)

// DefaultTimeout is the default HTTP client timeout.
const DefaultTimeout = 30 * time.Second

// Client sends command envelopes to a broker gateway.
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// New creates a new Client with the given config and options.
func New(cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, ErrConfigRequired
	}
	cfg = cfg.WithDefaults()

	c := &Client{
		endpoint:   cfg.Endpoint,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Upload uploads file(s) to the gateway.
// For recursive uploads, walks directory and preserves relative paths below
// the remote prefix.
func (c *Client) Upload(ctx context.Context, opts UploadOptions) ([]UploadResult, error) {
	if opts.LocalPath == "" || opts.RemotePath == "" {
		return nil, fmt.Errorf("upload: %w", ErrEmptyPath)
	}

	info, err := os.Stat(opts.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("stat local path: %w", err)
	}

	if !opts.Recursive || !info.IsDir() {
		result, err := c.uploadSingle(ctx, opts.LocalPath, opts.RemotePath)
		if err != nil {
			return nil, err
		}
		return []UploadResult{result}, nil
	}

	var results []UploadResult
	remotePrefix := strings.TrimSuffix(opts.RemotePath, "/")

	walkErr := filepath.WalkDir(opts.LocalPath, func(path string, d fs.DirEntry, fileErr error) error {
		if fileErr != nil {
			return fileErr
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}

		relPath, relErr := filepath.Rel(opts.LocalPath, path)
		if relErr != nil {
			results = append(results, UploadResult{
				LocalPath: path,
				Err:       fmt.Errorf("calculate relative path: %w", relErr),
			})
			return nil
		}
		remotePath := remotePrefix + "/" + filepath.ToSlash(relPath)

		result, uploadErr := c.uploadSingle(ctx, path, remotePath)
		if uploadErr != nil {
			result = UploadResult{LocalPath: path, RemotePath: remotePath, Err: uploadErr}
		}
		results = append(results, result)
		return nil
	})
	if walkErr != nil {
		return results, fmt.Errorf("walk directory: %w", walkErr)
	}

	return results, nil
}

// HasUploadErrors returns true if any upload failed.
func HasUploadErrors(results []UploadResult) bool {
	for _, r := range results {
		if r.Err != nil {
			return true
		}
	}
	return false
}

func (c *Client) uploadSingle(ctx context.Context, localPath, remotePath string) (UploadResult, error) {
	remotePath = strings.TrimPrefix(remotePath, "/")
	if _, err := broker.SplitPath(remotePath); err != nil || strings.ContainsRune(remotePath, 0) {
		return UploadResult{}, fmt.Errorf("%w: %q", ErrInvalidPath, remotePath)
	}

	// The envelope carries the whole file, so it is read into memory.
	data, err := os.ReadFile(localPath) //#nosec G304 -- localPath is user-provided input
	if err != nil {
		return UploadResult{}, fmt.Errorf("read file: %w", err)
	}

	payload := broker.UploadPayload{Path: remotePath, Data: data}.Encode()
	resp, err := c.send(ctx, broker.CommandUpload, payload)
	if err != nil {
		return UploadResult{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkResponse(resp); err != nil {
		return UploadResult{}, err
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	return UploadResult{
		LocalPath:  localPath,
		RemotePath: remotePath,
		Size:       int64(len(data)),
	}, nil
}

type downloadParams struct {
	Path   string `json:"path"`
	Offset int64  `json:"offset,omitempty"`
	Public bool   `json:"public,omitempty"`
}

// Download downloads an object from the gateway.
// If opts.LocalPath is "-", the content is returned via the io.ReadCloser and must be closed by the caller.
// Otherwise, the content is written to the file and the io.ReadCloser is nil.
// A download with an offset is appended to an existing local file.
func (c *Client) Download(ctx context.Context, opts DownloadOptions) (*DownloadResult, io.ReadCloser, error) {
	if opts.RemotePath == "" {
		return nil, nil, fmt.Errorf("download: %w", ErrEmptyPath)
	}
	remotePath := strings.TrimPrefix(opts.RemotePath, "/")
	if _, err := broker.SplitPath(remotePath); err != nil {
		return nil, nil, fmt.Errorf("%w: %q", ErrInvalidPath, remotePath)
	}

	params, err := json.Marshal(downloadParams{Path: remotePath, Offset: opts.Offset, Public: opts.Public})
	if err != nil {
		return nil, nil, fmt.Errorf("encode parameters: %w", err)
	}

	resp, err := c.send(ctx, broker.CommandDownload, params)
	if err != nil {
		return nil, nil, err
	}
	if err := checkResponse(resp); err != nil {
		_ = resp.Body.Close()
		return nil, nil, err
	}

	result := &DownloadResult{
		RemotePath:  remotePath,
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
		Size:        resp.ContentLength,
		TotalSize:   totalSize(resp),
	}

	if opts.LocalPath == "-" {
		result.LocalPath = "-"
		return result, resp.Body, nil
	}
	defer func() { _ = resp.Body.Close() }()

	localPath := opts.LocalPath
	if localPath == "" {
		localPath = filepath.Base(remotePath)
	}
	result.LocalPath = localPath

	dir := filepath.Dir(localPath)
	if dir != "" && dir != "." {
		if mkdirErr := os.MkdirAll(dir, 0o750); mkdirErr != nil {
			return nil, nil, fmt.Errorf("create directory: %w", mkdirErr)
		}
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if result.Partial() {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	file, err := os.OpenFile(localPath, flags, 0o644) //#nosec G304 -- localPath is user-provided input
	if err != nil {
		return nil, nil, fmt.Errorf("create file: %w", err)
	}

	written, copyErr := io.Copy(file, resp.Body)
	if copyErr != nil {
		_ = file.Close()
		return nil, nil, fmt.Errorf("write file: %w", copyErr)
	}
	if closeErr := file.Close(); closeErr != nil {
		return nil, nil, fmt.Errorf("close file: %w", closeErr)
	}

	result.Size = written
	return result, nil, nil
}

// Call runs a procedure command. params must be a JSON value; empty params
// are sent as an empty object.
func (c *Client) Call(ctx context.Context, cmd broker.Command, params json.RawMessage) (*CallResult, error) {
	if _, _, ok := cmd.Procedure(); !ok {
		return nil, fmt.Errorf("%s is not a procedure command", cmd)
	}
	if len(bytes.TrimSpace(params)) == 0 {
		params = json.RawMessage("{}")
	}
	if !json.Valid(params) {
		return nil, fmt.Errorf("parameters for %s are not valid JSON", cmd)
	}

	resp, err := c.send(ctx, cmd, params)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkResponse(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return &CallResult{Command: cmd, Name: cmd.String(), Data: body}, nil
}

// send posts one envelope. The caller owns the response body.
func (c *Client) send(ctx context.Context, cmd broker.Command, payload []byte) (*http.Response, error) {
	body := broker.Envelope{Command: cmd, Payload: payload}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	return resp, nil
}

// checkResponse turns a non-2xx response into a ServerError. Gateway errors
// carry a JSON string; anything else is reported as text.
func checkResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(resp.Body)
	msg := strings.TrimSpace(string(body))

	var s string
	if json.Unmarshal(body, &s) == nil {
		msg = s
	}

	return &ServerError{StatusCode: resp.StatusCode, Message: msg}
}

// totalSize reads the object size from a "bytes a-b/total" Content-Range.
func totalSize(resp *http.Response) int64 {
	cr := resp.Header.Get("Content-Range")
	_, total, ok := strings.Cut(cr, "/")
	if !ok {
		if resp.StatusCode == http.StatusOK {
			return resp.ContentLength
		}
		return 0
	}
	n, err := strconv.ParseInt(total, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

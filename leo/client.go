package leo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// DefaultBaseURL is the production API endpoint.
const DefaultBaseURL = "https://api.getleo.ai"

const (
	// maxAttempts bounds retries for transient transport failures.
	maxAttempts = 3
	// retryBaseDelay is the first backoff step; it doubles per attempt.
	retryBaseDelay = 500 * time.Millisecond
)

// ErrNotFound is returned by lookups when the path has no record in the
// directory. It is a definitive "absent", distinct from transport failure.
var ErrNotFound = errors.New("file not found in directory")

// tokenSource yields a bearer token for one request. Implementations
// refresh expired tokens internally.
type tokenSource interface {
	Token(ctx context.Context) string
}

var validate = validator.New()

// Client talks to the synced-directories API. Transient failures (network
// errors, 5xx, 408, 429) are retried with exponential backoff up to
// maxAttempts; terminal statuses return immediately. All failures come
// back as errors with operation, status, and body context so callers can
// log and continue without special-casing.
type Client struct {
	httpClient *http.Client
	baseURL    string
	tokens     tokenSource
	logger     *slog.Logger
	retryDelay time.Duration
}

// NewClient creates an API client. If httpClient is nil,
// http.DefaultClient is used. If baseURL is empty, DefaultBaseURL is used.
func NewClient(httpClient *http.Client, baseURL string, tokens tokenSource, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		tokens:     tokens,
		logger:     logger,
		retryDelay: retryBaseDelay,
	}
}

// retryableStatus reports whether a response status is worth retrying.
func retryableStatus(status int) bool {
	return status >= 500 || status == http.StatusRequestTimeout || status == http.StatusTooManyRequests
}

// do runs one API operation. build is invoked per attempt because request
// bodies are consumed on send. A fresh bearer token is injected on every
// attempt so a retry never reuses a token that expired mid-backoff.
func (c *Client) do(ctx context.Context, op string, build func() (*http.Request, error), result interface{}) error {
	var lastErr error
	delay := c.retryDelay

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := build()
		if err != nil {
			return fmt.Errorf("%s: creating request: %w", op, err)
		}
		req.Header.Set("Authorization", "Bearer "+c.tokens.Token(ctx))

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%s: sending request: %w", op, err)
		} else {
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()

			switch {
			case readErr != nil:
				lastErr = fmt.Errorf("%s: reading response: %w", op, readErr)
			case resp.StatusCode >= 200 && resp.StatusCode < 300:
				if result != nil {
					if err := json.Unmarshal(body, result); err != nil {
						return fmt.Errorf("%s: decoding response: %w", op, err)
					}
				}
				return nil
			default:
				lastErr = fmt.Errorf("%s: status %d: %s", op, resp.StatusCode, body)
				if !retryableStatus(resp.StatusCode) {
					return lastErr
				}
			}
		}

		if attempt < maxAttempts {
			c.logger.Warn("retrying after transient failure",
				slog.String("op", op),
				slog.Int("attempt", attempt),
				slog.String("error", lastErr.Error()),
			)
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s: %w", op, ctx.Err())
			case <-time.After(delay):
			}
			delay *= 2
		}
	}

	return lastErr
}

// ListDirectories returns all synced directories registered for the
// authenticated tenant.
func (c *Client) ListDirectories(ctx context.Context) ([]Directory, error) {
	build := func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/synced-directories", nil)
	}

	var dirs []Directory
	if err := c.do(ctx, "list directories", build, &dirs); err != nil {
		return nil, err
	}
	return dirs, nil
}

// Directory fetches a single synced-directory record by ID.
func (c *Client) Directory(ctx context.Context, directoryID string) (*Directory, error) {
	build := func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/synced-directories/"+directoryID, nil)
	}

	var dir Directory
	if err := c.do(ctx, "get directory "+directoryID, build, &dir); err != nil {
		return nil, err
	}
	return &dir, nil
}

// CreateDirectory registers a new synced directory for this machine.
// Callers must look up existing directories first: the server does not
// deduplicate (machineId, uri) pairs.
func (c *Client) CreateDirectory(ctx context.Context, machineID, rootPath string) (*Directory, error) {
	if err := validate.Var(machineID, "required,mac"); err != nil {
		return nil, fmt.Errorf("invalid machine identifier %q: expected colon-separated MAC format", machineID)
	}

	payload, err := json.Marshal(CreateDirectoryRequest{MachineID: machineID, URI: rootPath})
	if err != nil {
		return nil, fmt.Errorf("marshalling create-directory request: %w", err)
	}

	build := func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/synced-directories", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}

	var dir Directory
	if err := c.do(ctx, "create directory "+rootPath, build, &dir); err != nil {
		return nil, err
	}
	c.logger.Info("synced directory created",
		slog.String("id", dir.ID),
		slog.String("uri", dir.URI),
	)
	return &dir, nil
}

// SyncMetadata fetches the full snapshot of a directory's remote files.
func (c *Client) SyncMetadata(ctx context.Context, directoryID string) (*SyncMetadata, error) {
	build := func() (*http.Request, error) {
		url := c.baseURL + "/api/v1/synced-directories/" + directoryID + "/files/sync-metadata"
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	}

	var meta SyncMetadata
	if err := c.do(ctx, "sync metadata for "+directoryID, build, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// FileInfoByPath resolves one relative path to its current server record
// by scanning a fresh snapshot. Returns ErrNotFound when the directory
// has no record at that path.
func (c *Client) FileInfoByPath(ctx context.Context, directoryID, relativePath string) (*FileRecord, error) {
	meta, err := c.SyncMetadata(ctx, directoryID)
	if err != nil {
		return nil, err
	}

	want := strings.ToLower(NormalizePath(relativePath))
	for _, f := range meta.Files {
		if strings.ToLower(NormalizePath(f.FilePathInDirectory)) == want {
			return f.Record(), nil
		}
	}
	return nil, ErrNotFound
}

// CreateFile uploads the file at absPath into the directory, creating or
// replacing its record. The checksum, MIME type, and relative path are
// computed here from the file and rootPath. Supplied dependencies are
// attached as (checksum, relative path) pairs.
func (c *Client) CreateFile(ctx context.Context, directoryID, rootPath, absPath string, deps []Dependency) (*FileRecord, error) {
	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", absPath, err)
	}

	rel, err := RelPath(rootPath, absPath)
	if err != nil {
		return nil, err
	}
	checkSum := Checksum(data)
	mimeType := MimeType(absPath)

	build := func() (*http.Request, error) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)

		fields := map[string]string{
			"mimeType":            mimeType,
			"checkSum":            checkSum,
			"filePathInDirectory": rel,
		}
		for name, value := range fields {
			if err := mw.WriteField(name, value); err != nil {
				return nil, err
			}
		}

		fw, err := mw.CreateFormFile("file", filepath.Base(absPath))
		if err != nil {
			return nil, err
		}
		if _, err := fw.Write(data); err != nil {
			return nil, err
		}

		if len(deps) > 0 {
			depJSON, err := json.Marshal(deps)
			if err != nil {
				return nil, err
			}
			if err := mw.WriteField("dependencies", string(depJSON)); err != nil {
				return nil, err
			}
		}

		if err := mw.Close(); err != nil {
			return nil, err
		}

		url := c.baseURL + "/api/v1/synced-directories/" + directoryID + "/files"
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf.Bytes()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", mw.FormDataContentType())
		return req, nil
	}

	var rec FileRecord
	if err := c.do(ctx, "create file "+rel, build, &rec); err != nil {
		return nil, err
	}
	c.logger.Info("file created",
		slog.String("path", rec.FilePathInDirectory),
		slog.String("component_id", rec.ComponentID),
	)
	return &rec, nil
}

// DeleteFile removes one file record from the directory.
func (c *Client) DeleteFile(ctx context.Context, directoryID, componentID, relativePath string) error {
	normalized := NormalizePath(relativePath)
	build := func() (*http.Request, error) {
		u := c.baseURL + "/api/v1/synced-directories/" + directoryID + "/files/" + componentID +
			"?filePathInDirectory=" + url.QueryEscape(normalized)
		return http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	}

	if err := c.do(ctx, "delete file "+normalized, build, nil); err != nil {
		return err
	}
	c.logger.Info("file deleted",
		slog.String("path", normalized),
		slog.String("component_id", componentID),
	)
	return nil
}

// DeleteDirectory removes a synced directory and its entire remote index.
func (c *Client) DeleteDirectory(ctx context.Context, directoryID string) error {
	build := func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/api/v1/synced-directories/"+directoryID, nil)
	}

	if err := c.do(ctx, "delete directory "+directoryID, build, nil); err != nil {
		return err
	}
	c.logger.Info("synced directory deleted", slog.String("id", directoryID))
	return nil
}

// StaticToken is a tokenSource that always returns the same token. Used
// by tools that already hold a valid session and by tests.
type StaticToken string

// Token implements tokenSource.
func (s StaticToken) Token(context.Context) string { return string(s) }

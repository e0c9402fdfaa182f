// Package client provides a REST client for the PTFLOW server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/raphaelgruber/ptflow-importer/internal/metrics"
	"github.com/raphaelgruber/ptflow-importer/internal/models"
)

// Defaults for Options.
const (
	DefaultSessionCookie   = "SESSION"
	DefaultMetadataTimeout = 10 * time.Second
	DefaultUploadTimeout   = 60 * time.Second
)

// maxBodySize caps how much of a response is read.
const maxBodySize = 1 << 20

// Options configures a Client.
type Options struct {
	// Server is the base URL, e.g. https://ptflow.example.com.
	Server string

	// Session is the session token, sent as a cookie.
	Session       string
	SessionCookie string

	// Per-call deadlines. Uploads carry image bytes and get their own.
	MetadataTimeout time.Duration
	UploadTimeout   time.Duration

	// Optional
	HTTPClient *http.Client
	Metrics    *metrics.Collector
}

// Client talks to the exercise and image endpoints of the PTFLOW server.
type Client struct {
	base            *url.URL
	session         string
	cookie          string
	metadataTimeout time.Duration
	uploadTimeout   time.Duration
	httpClient      *http.Client
	metrics         *metrics.Collector
}

// New creates a client. Server and session are required.
func New(opts Options) (*Client, error) {
	if opts.Server == "" || opts.Session == "" {
		return nil, errors.New("server and session are required")
	}

	base, err := url.Parse(strings.TrimRight(opts.Server, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("parse server url: unsupported scheme %q", base.Scheme)
	}

	c := &Client{
		base:            base,
		session:         opts.Session,
		cookie:          opts.SessionCookie,
		metadataTimeout: opts.MetadataTimeout,
		uploadTimeout:   opts.UploadTimeout,
		httpClient:      opts.HTTPClient,
		metrics:         opts.Metrics,
	}
	if c.cookie == "" {
		c.cookie = DefaultSessionCookie
	}
	if c.metadataTimeout <= 0 {
		c.metadataTimeout = DefaultMetadataTimeout
	}
	if c.uploadTimeout <= 0 {
		c.uploadTimeout = DefaultUploadTimeout
	}
	if c.httpClient == nil {
		// Deadlines come from the per-call contexts.
		c.httpClient = &http.Client{}
	}
	return c, nil
}

// RemoteError is a non-success HTTP answer. It unwraps to models.ErrRemoteRejected.
type RemoteError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("server error: %s: %d %s - %s", e.Op, e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

// Reason returns the response body, or the status line when the body is empty.
func (e *RemoteError) Reason() string {
	if body := strings.TrimSpace(e.Body); body != "" {
		return body
	}
	return fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *RemoteError) Unwrap() error {
	return models.ErrRemoteRejected
}

// idResponse is the body of every successful call.
type idResponse struct {
	ID string `json:"id"`
}

// =============================================================================
// EXERCISE OPERATIONS
// =============================================================================

// CreateEntity creates an exercise and returns its server id.
func (c *Client) CreateEntity(ctx context.Context, payload models.ExercisePayload) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	return c.execute(ctx, metrics.OpCreateEntity, c.metadataTimeout, 0, func(ctx context.Context) (*http.Request, error) {
		return c.jsonRequest(ctx, http.MethodPost, "/api/exercises", body)
	})
}

// UpdateEntity replaces the exercise with the given server id and returns its id.
func (c *Client) UpdateEntity(ctx context.Context, remoteID string, payload models.ExercisePayload) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	return c.execute(ctx, metrics.OpUpdateEntity, c.metadataTimeout, 0, func(ctx context.Context) (*http.Request, error) {
		return c.jsonRequest(ctx, http.MethodPut, "/api/exercises/"+url.PathEscape(remoteID), body)
	})
}

// =============================================================================
// IMAGE OPERATIONS
// =============================================================================

// UploadAsset uploads an image as multipart form field "file" and returns its server id.
func (c *Client) UploadAsset(ctx context.Context, name string, data []byte) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(name)))
	h.Set("Content-Type", mimetype.Detect(data).String())
	part, err := w.CreatePart(h)
	if err != nil {
		return "", fmt.Errorf("create multipart: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("write multipart: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close multipart: %w", err)
	}

	body := buf.Bytes()
	contentType := w.FormDataContentType()
	return c.execute(ctx, metrics.OpUploadAsset, c.uploadTimeout, int64(len(data)), func(ctx context.Context) (*http.Request, error) {
		req, err := c.newRequest(ctx, http.MethodPost, "/api/images", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		return req, nil
	})
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// =============================================================================
// TRANSPORT
// =============================================================================

func (c *Client) jsonRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	req, err := c.newRequest(ctx, method, path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base.JoinPath(path).String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.AddCookie(&http.Cookie{Name: c.cookie, Value: c.session})
	return req, nil
}

// execute runs one call under its own deadline, records its timing and maps
// every failure onto models.ErrRemoteRejected or models.ErrTimeout.
func (c *Client) execute(
	ctx context.Context,
	op string,
	timeout time.Duration,
	size int64,
	build func(context.Context) (*http.Request, error),
) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	id, err := c.do(ctx, op, build)
	c.record(op, time.Since(start), size, err)
	return id, err
}

func (c *Client) do(ctx context.Context, op string, build func(context.Context) (*http.Request, error)) (string, error) {
	req, err := build(ctx)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", transportError(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", transportError(op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &RemoteError{Op: op, StatusCode: resp.StatusCode, Body: string(body)}
	}

	var result idResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("%s: %w: unmarshal response: %v", op, models.ErrRemoteRejected, err)
	}
	if result.ID == "" {
		return "", fmt.Errorf("%s: %w: response without id", op, models.ErrRemoteRejected)
	}
	return result.ID, nil
}

func transportError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w", op, models.ErrTimeout, err)
	}
	return fmt.Errorf("%s: %w: %w", op, models.ErrRemoteRejected, err)
}

func (c *Client) record(op string, d time.Duration, size int64, err error) {
	if c.metrics == nil {
		return
	}
	if op == metrics.OpUploadAsset {
		c.metrics.RecordUpload(d, size, err != nil)
		return
	}
	c.metrics.RecordTiming(op, d, err != nil)
}

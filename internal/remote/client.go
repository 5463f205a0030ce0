// Package remote talks to the shipctl control plane.
package remote

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
	"os"
	"strings"
	"time"

	"github.com/shipctl/shipctl/internal/logging"
)

// ErrSessionInvalid indicates a session without a usable endpoint.
var ErrSessionInvalid = errors.New("invalid session")

// Session identifies the caller against one control-plane endpoint.
// It is passed to every call; the client keeps no identity of its own.
type Session struct {
	Endpoint string
	Token    string
}

func (s Session) baseURL() (string, error) {
	base := strings.TrimRight(strings.TrimSpace(s.Endpoint), "/")
	if base == "" {
		return "", fmt.Errorf("%w: endpoint is empty", ErrSessionInvalid)
	}
	u, err := url.Parse(base)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: endpoint %q is not an http(s) url", ErrSessionInvalid, s.Endpoint)
	}
	return base, nil
}

// Client performs control-plane requests.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient constructs a Client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		// uploads can be large; the context bounds each call instead
		httpClient: &http.Client{Timeout: 0},
		logger:     logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-2xx control-plane response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api request failed with status %d", e.Status)
	}
	return fmt.Sprintf("api request failed (%d): %s", e.Status, e.Message)
}

// CreateUpload registers a new deployment for projectID and returns where to upload its artifact.
func (c *Client) CreateUpload(ctx context.Context, s Session, projectID string) (Upload, error) {
	if strings.TrimSpace(projectID) == "" {
		return Upload{}, errors.New("project id is required")
	}
	var out Upload
	path := "/v1/projects/" + url.PathEscape(projectID) + "/deployments"
	if err := c.do(ctx, s, http.MethodPost, path, map[string]string{}, &out); err != nil {
		return Upload{}, err
	}
	if out.UploadURL == "" {
		return Upload{}, errors.New("control plane returned no upload url")
	}
	return out, nil
}

// Deployment reads the status of one deployment.
func (c *Client) Deployment(ctx context.Context, s Session, projectID, deploymentID string) (Deployment, error) {
	var out Deployment
	path := "/v1/projects/" + url.PathEscape(projectID) + "/deployments/" + url.PathEscape(deploymentID)
	if err := c.do(ctx, s, http.MethodGet, path, nil, &out); err != nil {
		return Deployment{}, err
	}
	return out, nil
}

// UploadArtifact PUTs the file at path to uploadURL as an opaque gzip blob.
// The upload URL is pre-signed, so no session credentials are sent.
func (c *Client) UploadArtifact(ctx context.Context, uploadURL, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, f)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.ContentLength = info.Size()
	req.Header.Set("Content-Type", "application/gzip")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload artifact: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return &APIError{Status: resp.StatusCode, Message: extractError(resp.Body)}
	}
	c.logger.Info("artifact uploaded", "bytes", info.Size(), "elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

func (c *Client) do(ctx context.Context, s Session, method, path string, body, v any) error {
	base, err := s.baseURL()
	if err != nil {
		return err
	}
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, base+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := strings.TrimSpace(s.Token); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.logger.Debug("api request", "method", method, "path", path)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		return &APIError{Status: resp.StatusCode, Message: extractError(resp.Body)}
	}
	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func extractError(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 64<<10))
	if err != nil || len(data) == 0 {
		return ""
	}
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return strings.TrimSpace(string(data))
	}
	if payload.Error != "" {
		return strings.TrimSpace(payload.Error)
	}
	return strings.TrimSpace(payload.Message)
}

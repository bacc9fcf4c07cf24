package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	errpkg "github.com/veranemoloko/media-taskdesk/internal/errors"
)

const (
	// RequestIDHeader carries a per-call correlation id, matching chi's middleware.RequestID.
	RequestIDHeader = "X-Request-ID"

	maxResponseBytes = 8 << 20
)

// Client is the typed HTTP gateway to the processing backend. It holds no
// task state; every method maps to exactly one endpoint.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	maxBatchURLs int
	logger       *slog.Logger
}

// NewClient creates a Client for the backend at baseURL.
func NewClient(baseURL string, timeout time.Duration, maxBatchURLs int, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxBatchURLs: maxBatchURLs,
		logger:       logger,
	}
}

// BaseURL returns the backend address the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// HTTPClient exposes the underlying client so file transfers share its transport.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

func (c *Client) postJSON(ctx context.Context, op, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &errpkg.RequestError{Op: op, Err: fmt.Errorf("encode request: %w", err)}
	}
	return c.do(ctx, op, http.MethodPost, path, bytes.NewReader(body), "application/json", out)
}

// do sends one request and classifies the outcome as success, *ServerError or
// *RequestError.
func (c *Client) do(ctx context.Context, op, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &errpkg.RequestError{Op: op, Err: fmt.Errorf("create request: %w", err)}
	}

	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("backend request failed", "op", op, "request_id", requestID, "error", err)
		return &errpkg.RequestError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &errpkg.RequestError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}

	c.logger.Debug("backend request completed",
		"op", op,
		"request_id", requestID,
		"method", method,
		"path", path,
		"status", resp.StatusCode,
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &errpkg.ServerError{
			StatusCode: resp.StatusCode,
			Detail:     extractDetail(data, resp.StatusCode),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &errpkg.RequestError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// extractDetail pulls a human-readable message from an error body. FastAPI
// uses "detail"; "error" is accepted as well.
func extractDetail(body []byte, status int) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
		Error  string          `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		var detail string
		if len(payload.Detail) > 0 && json.Unmarshal(payload.Detail, &detail) == nil && detail != "" {
			return detail
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return fmt.Sprintf("request failed with status %d", status)
}

func asServerError(err error) (*errpkg.ServerError, bool) {
	var serr *errpkg.ServerError
	if errors.As(err, &serr) {
		return serr, true
	}
	return nil, false
}

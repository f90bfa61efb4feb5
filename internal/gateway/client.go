// Package gateway is the facade over the chama finance backend's REST API.
//
// Every call attaches the bearer credential, speaks JSON and reports failures
// as typed errors from package apperr:
//
//   - *apperr.RemoteError  for non-2xx responses, message taken from `{error}`
//   - *apperr.AuthError    for 401 responses; the unauthorized hook runs first
//   - *apperr.NetworkError when the request never completed
//
// The client never retries. Creates (contributions, loans, withdrawals,
// announcements) are unique on the backend and must only be re-issued by an
// explicit user re-submission.
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

	"github.com/mmynk/chama/internal/apperr"
	"github.com/mmynk/chama/internal/metrics"
	"github.com/mmynk/chama/internal/middleware"
)

const maxErrorBody = 64 << 10

// TokenSource returns the current bearer credential, or "" when anonymous.
type TokenSource func() string

// Client issues authenticated requests against the backend.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	token          TokenSource
	onUnauthorized func()
	metrics        *metrics.Metrics
	logger         *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its transport is used
// as-is; no logging transport is added.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout bounds every request. The timeout applies to a copy of the
// current HTTP client, so a client passed to WithHTTPClient is not changed.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		hc := *c.httpClient
		hc.Timeout = d
		c.httpClient = &hc
	}
}

// WithTokenSource sets where the bearer credential comes from.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.token = ts }
}

// WithUnauthorizedHandler registers a hook run on every 401 from an
// authenticated endpoint, before the error is returned.
func WithUnauthorizedHandler(fn func()) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

// WithMetrics records request counts and latency.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for the backend rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  slog.Default(),
	}
	c.httpClient = &http.Client{
		Transport: &middleware.LoggingTransport{Logger: c.logger},
	}
	for _, opt := range opts {
		opt(c)
	}
	if lt, ok := c.httpClient.Transport.(*middleware.LoggingTransport); ok {
		lt.Logger = c.logger
	}
	return c
}

// BaseURL returns the backend root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// call describes one backend request.
type call struct {
	method string
	path   string
	// route is the path template used as a metrics label.
	route string
	body  any
	out   any
	// public requests never carry a token and map 401/403 to login failures.
	public bool

	contentType string
	rawBody     io.Reader
}

func (c *Client) do(ctx context.Context, cl call) error {
	if cl.route == "" {
		cl.route = cl.path
	}
	op := cl.method + " " + cl.route

	var body io.Reader
	contentType := cl.contentType
	switch {
	case cl.rawBody != nil:
		body = cl.rawBody
	case cl.body != nil:
		buf, err := json.Marshal(cl.body)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", op, err)
		}
		body = bytes.NewReader(buf)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL+cl.path, body)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", op, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	if !cl.public && c.token != nil {
		if token := c.token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(cl.method, cl.route, 0, time.Since(start))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return &apperr.NetworkError{Op: op, Cause: ctxErr}
		}
		return &apperr.NetworkError{Op: op, Cause: err}
	}
	defer resp.Body.Close()
	c.metrics.ObserveRequest(cl.method, cl.route, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.responseError(cl, resp)
	}

	if cl.out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(cl.out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return nil
}

func (c *Client) responseError(cl call, resp *http.Response) error {
	msg := errorMessage(resp)

	if cl.public {
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return &apperr.AuthError{Reason: apperr.ReasonInvalidCredentials, Message: msg}
		case http.StatusForbidden:
			return &apperr.AuthError{Reason: apperr.ReasonUnverifiedAccount, Message: msg}
		}
		return &apperr.RemoteError{Status: resp.StatusCode, Message: msg}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.logger.Warn("Backend rejected credential", "route", cl.route, "error", msg)
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return &apperr.AuthError{Reason: apperr.ReasonExpired, Message: msg}
	}

	return &apperr.RemoteError{Status: resp.StatusCode, Message: msg}
}

// errorMessage extracts `{error}` (or `{message}`/`{msg}`) from an error body.
func errorMessage(resp *http.Response) string {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Msg     string `json:"msg"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		switch {
		case body.Error != "":
			return body.Error
		case body.Message != "":
			return body.Message
		case body.Msg != "":
			return body.Msg
		}
	}

	if text := strings.TrimSpace(string(data)); text != "" && len(text) < 200 && !strings.HasPrefix(text, "<") {
		return text
	}
	return http.StatusText(resp.StatusCode)
}

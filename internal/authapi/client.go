// Copyright (c) 2025 Authkit
// Licensed under the MIT License. See LICENSE file in the project root for details.

package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	autherrors "authkit/cli/internal/errors"
	"authkit/cli/internal/httperrors"
	"authkit/cli/internal/logging"
)

// maxBodyBytes caps how much of a response is read.
const maxBodyBytes = 1 << 20

// Client implements the authentication calls over REST endpoints.
type Client struct {
	// baseURL is the base URL for all HTTP requests (e.g., "https://api.example.com")
	baseURL string
	// client is the underlying HTTP client with configured timeout
	client    *http.Client
	userAgent string
	log       *slog.Logger

	timeout    time.Duration
	hasTimeout bool
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.client = c }
}

// WithTimeout sets the per-request timeout. Zero disables it.
// A client passed with WithHTTPClient is copied, never modified.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		cl.timeout = d
		cl.hasTimeout = true
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(cl *Client) { cl.userAgent = ua }
}

// WithLogger sets the logger for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) { cl.log = l }
}

// New creates a client for the service at baseURL.
// It configures a 10-second timeout unless overridden.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &http.Client{Timeout: 10 * time.Second},
		userAgent: "authkit-cli",
		log:       logging.Discard(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.hasTimeout {
		hc := *c.client
		hc.Timeout = c.timeout
		c.client = &hc
	}
	return c
}

// BaseURL returns the service base URL without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// Register calls POST /auth/register. The response body is opaque to the client.
func (c *Client) Register(ctx context.Context, email, password string) (*Response, error) {
	return c.post(ctx, PathRegister, Credentials{Email: email, Password: password})
}

// Login calls POST /auth. A successful response must carry a token field;
// the caller checks Response.Token.
func (c *Client) Login(ctx context.Context, email, password string) (*Response, error) {
	return c.post(ctx, PathLogin, Credentials{Email: email, Password: password})
}

func (c *Client) post(ctx context.Context, path string, body any) (*Response, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, autherrors.Wrap(autherrors.InvalidInput, "could not encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return nil, autherrors.Wrap(autherrors.Transport, "invalid service address", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", requestID)

	log := c.log.With("path", path, "request_id", requestID)
	start := time.Now()

	resp, err := c.client.Do(req)
	if err != nil {
		log.Debug("authapi: request failed", "err", err)
		return nil, autherrors.Wrap(autherrors.Transport, httperrors.Describe(err), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, autherrors.Wrap(autherrors.Transport, httperrors.Describe(err), err)
	}
	log.Debug("authapi: response", "status", resp.StatusCode, "elapsed", time.Since(start))

	data := decodeObject(raw)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, autherrors.Rejection(resp.StatusCode, rejectionMessage(resp.StatusCode, data, raw))
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       raw,
		Data:       data,
	}, nil
}

// decodeObject decodes raw as a JSON object, returning nil for anything else.
func decodeObject(raw []byte) map[string]any {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// rejectionMessage extracts the user-facing message from an error response.
// It tries common field names, then a short plain-text body, then the status text.
func rejectionMessage(status int, data map[string]any, raw []byte) string {
	if msg := extractMessage(data); msg != "" {
		return msg
	}
	if data == nil {
		if text := strings.TrimSpace(string(raw)); text != "" && len(text) <= 200 && !strings.HasPrefix(text, "<") {
			return text
		}
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return fmt.Sprintf("request failed with status %d", status)
}

func extractMessage(data map[string]any) string {
	for _, key := range []string{"message", "msg", "error", "error_description", "detail"} {
		switch v := data[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case map[string]any:
			if s := extractMessage(v); s != "" {
				return s
			}
		}
	}
	return ""
}

// Package backend is a thin client for the factory REST API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/floorwatch/backend/internal/models"
)

const (
	// TokenHeader carries the session token on every request.
	TokenHeader = "token"

	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 16 << 20
)

// ErrNoBaseURL is returned when the client has no API URL configured.
var ErrNoBaseURL = errors.New("backend: base URL not configured")

// StatusError is returned for non-2xx responses. Message holds the
// envelope message when the body could be decoded.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend: HTTP %d", e.Code)
	}
	return fmt.Sprintf("backend: HTTP %d: %s", e.Code, e.Message)
}

// Client talks to the REST API. The zero value is not usable; use New.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// New returns a client with a bounded HTTP timeout.
func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// Do sends one request and decodes the {data, message} envelope. body,
// when non-nil, is JSON encoded. A non-2xx response yields a *StatusError
// alongside whatever envelope could be decoded.
func (c *Client) Do(ctx context.Context, method, path string, body any) (models.Envelope, error) {
	var env models.Envelope
	if c.BaseURL == "" {
		return env, ErrNoBaseURL
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return env, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return env, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set(TokenHeader, c.Token)
	}

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return env, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return env, fmt.Errorf("reading response: %w", err)
	}
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return env, &StatusError{Code: resp.StatusCode, Message: env.Message}
	}
	if decodeErr != nil && len(bytes.TrimSpace(raw)) > 0 {
		return env, fmt.Errorf("decoding response envelope: %w", decodeErr)
	}
	return env, nil
}

func (c *Client) list(ctx context.Context, path string) (json.RawMessage, error) {
	env, err := c.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return env.Data, nil
}

func (c *Client) Users(ctx context.Context) (json.RawMessage, error) {
	return c.list(ctx, "/users")
}

func (c *Client) Components(ctx context.Context) (json.RawMessage, error) {
	return c.list(ctx, "/components")
}

func (c *Client) Moulds(ctx context.Context) (json.RawMessage, error) {
	return c.list(ctx, "/moulds")
}

func (c *Client) Machines(ctx context.Context) (json.RawMessage, error) {
	return c.list(ctx, "/machines")
}

func (c *Client) Reports(ctx context.Context) (json.RawMessage, error) {
	return c.list(ctx, "/reports")
}

func (c *Client) Factories(ctx context.Context) (json.RawMessage, error) {
	return c.list(ctx, "/factories")
}

// Package client talks to the scrum board API over HTTP. Mutating calls on a
// task or story are serialized per entity: a second call while the first is
// outstanding fails with inflight.ErrPending instead of being sent.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	apierrors "github.com/yukikurage/scrum-board/internal/errors"
	"github.com/yukikurage/scrum-board/internal/inflight"
)

const defaultTimeout = 30 * time.Second

// Error is a rejection reported by the server. It unwraps to the matching
// error sentinel so callers can use errors.Is.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return e.Message
}

// Unwrap returns the sentinel for the error code, if there is one.
func (e *Error) Unwrap() error {
	if s := apierrors.Sentinel(e.Code); s != nil {
		return s
	}
	return nil
}

// IsClientError reports whether the server rejected the request itself
// rather than failing to process it.
func (e *Error) IsClientError() bool {
	return e.Status >= 400 && e.Status < 500
}

// Client is an API client holding one login session.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	guard   inflight.Guard
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its cookie jar must be
// set for logins to stick.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New creates a client for the API at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	c := &Client{
		baseURL: u,
		http:    &http.Client{Jar: jar, Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Cookies returns the session cookies held for the server.
func (c *Client) Cookies() []*http.Cookie {
	if c.http.Jar == nil {
		return nil
	}
	return c.http.Jar.Cookies(c.baseURL)
}

// SetCookies restores session cookies saved by an earlier run.
func (c *Client) SetCookies(cookies []*http.Cookie) {
	if c.http.Jar != nil {
		c.http.Jar.SetCookies(c.baseURL, cookies)
	}
}

// mutate runs fn while holding the in-flight slot for kind/id.
func (c *Client) mutate(kind string, id uint64, fn func() error) error {
	return c.guard.Do(inflight.Key(kind, id), fn)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &Error{Status: resp.StatusCode}
		var envelope apierrors.APIError
		if json.Unmarshal(raw, &envelope) == nil {
			apiErr.Code = envelope.Code
			apiErr.Message = envelope.Message
		}
		return apiErr
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

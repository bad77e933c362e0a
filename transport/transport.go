// Package transport is the thin JSON-over-HTTP layer under the catalog
// repository. It normalizes every non-2xx response into a single *Error whose
// message comes from the server's JSON "message" field when one exists, so
// callers never branch on transport details.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Error is the uniform failure carried out of every request: the HTTP status
// and a human-readable message.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string { return e.Message }

// IsNotFound reports whether err is a transport error with status 404.
func IsNotFound(err error) bool {
	var te *Error
	return errors.As(err, &te) && te.Status == http.StatusNotFound
}

// Client issues JSON requests against a base URL.
type Client struct {
	base string
	hc   *http.Client
}

type Config struct {
	// Required, e.g. "https://dummyjson.com".
	BaseURL string
	// Optional; defaults to a client with Timeout.
	HTTPClient *http.Client
	// Optional; ignored when HTTPClient is set. 0 => 30s.
	Timeout time.Duration
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("transport: base URL is required")
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{base: strings.TrimRight(cfg.BaseURL, "/"), hc: hc}, nil
}

func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, nil, body, out)
}

func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPut, path, nil, body, out)
}

func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("transport: encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return fmt.Errorf("transport: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("transport: %s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("transport: read response: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return &Error{Status: res.StatusCode, Message: errorMessage(res, raw)}
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("transport: decode response: %w", err)
	}
	return nil
}

// errorMessage extracts the server-provided message from a failed response.
// A JSON body with a string "message" field wins; anything else falls back to
// a generic status line.
func errorMessage(res *http.Response, raw []byte) string {
	ct := res.Header.Get("Content-Type")
	if strings.Contains(ct, "application/json") {
		var body map[string]any
		if err := json.Unmarshal(raw, &body); err == nil {
			if m, ok := body["message"].(string); ok && m != "" {
				return m
			}
		}
	}
	return fmt.Sprintf("Request failed (%d)", res.StatusCode)
}

// Package remote fetches the remote flags document over HTTP.
package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultPath is appended to the API base URL when no path is configured.
const DefaultPath = "/feature-flags"

// maxBodyBytes caps the flags document size.
const maxBodyBytes = 4 << 20

// StatusError is returned for a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Client issues GET requests for the flags document.
type Client struct {
	baseURL    string
	path       string
	version    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithPath overrides DefaultPath.
func WithPath(path string) Option {
	return func(c *Client) {
		if path != "" {
			c.path = "/" + strings.TrimLeft(path, "/")
		}
	}
}

// WithTimeout sets the per-request timeout of the underlying http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient creates a client for baseURL (e.g. "https://api.example.com").
// version is sent as the X-API-Version header.
func NewClient(baseURL, version string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		path:       DefaultPath,
		version:    version,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL returns the full flags endpoint.
func (c *Client) URL() string {
	return c.baseURL + c.path
}

// FetchFlags returns the raw JSON body of the flags endpoint. Decoding is
// left to the caller so transport and payload failures stay distinguishable.
func (c *Client) FetchFlags(ctx context.Context) ([]byte, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("remote base URL is not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.version != "" {
		req.Header.Set("X-API-Version", c.version)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}

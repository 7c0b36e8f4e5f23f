package client

import (
	"bufio"
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

	"github.com/alfredjeanlab/toggles/internal/analytics"
	"github.com/alfredjeanlab/toggles/internal/flags"
	"github.com/alfredjeanlab/toggles/internal/model"
)

// HTTPClient implements FlagsClient using the toggles HTTP/JSON API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var _ FlagsClient = (*HTTPClient)(nil)

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080"). When token is non-empty, an Authorization
// header is set on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

func (c *HTTPClient) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// --- Flags ---

func (c *HTTPClient) ListFlags(ctx context.Context, source model.Source) ([]model.Flag, error) {
	path := "/v1/flags"
	if source != "" {
		path += "?" + url.Values{"source": {string(source)}}.Encode()
	}
	var resp struct {
		Flags []model.Flag `json:"flags"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Flags, nil
}

func (c *HTTPClient) GetFlag(ctx context.Context, name string) (*model.Flag, error) {
	var f model.Flag
	if err := c.doJSON(ctx, http.MethodGet, flagPath(name), nil, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (c *HTTPClient) SetFlag(ctx context.Context, name string, enabled bool) (*model.Flag, error) {
	var f model.Flag
	body := map[string]bool{"enabled": enabled}
	if err := c.doJSON(ctx, http.MethodPut, flagPath(name), body, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// --- Overrides ---

func (c *HTTPClient) Override(ctx context.Context, name string, enabled bool, d time.Duration) (*model.Flag, error) {
	body := map[string]any{"enabled": enabled}
	if d > 0 {
		body["duration"] = d.String()
	}
	var f model.Flag
	if err := c.doJSON(ctx, http.MethodPost, flagPath(name)+"/override", body, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (c *HTTPClient) RevertOverride(ctx context.Context, name string) (*model.Flag, error) {
	var f model.Flag
	if err := c.doJSON(ctx, http.MethodDelete, flagPath(name)+"/override", nil, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (c *HTTPClient) ListOverrides(ctx context.Context) ([]flags.OverrideInfo, error) {
	var resp struct {
		Overrides []flags.OverrideInfo `json:"overrides"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/overrides", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Overrides, nil
}

// --- Evaluation ---

func (c *HTTPClient) IsFeatureEnabled(ctx context.Context, key string) (*Evaluation, error) {
	var ev Evaluation
	if err := c.doJSON(ctx, http.MethodGet, "/v1/features/"+url.PathEscape(key), nil, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

func (c *HTTPClient) IsExperimentalEnabled(ctx context.Context, key string) (*Evaluation, error) {
	var ev Evaluation
	if err := c.doJSON(ctx, http.MethodGet, "/v1/experimental/"+url.PathEscape(key), nil, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

func (c *HTTPClient) GetVariant(ctx context.Context, test string, variants []string, subjectID string) (*VariantResult, error) {
	body := map[string]any{"variants": variants, "subject_id": subjectID}
	var res VariantResult
	if err := c.doJSON(ctx, http.MethodPost, "/v1/variants/"+url.PathEscape(test), body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// --- Usage ---

func (c *HTTPClient) TrackUsage(ctx context.Context, name string, attrs map[string]any) error {
	body := map[string]any{}
	if attrs != nil {
		body["context"] = attrs
	}
	return c.doJSON(ctx, http.MethodPost, flagPath(name)+"/usage", body, nil)
}

func (c *HTTPClient) Usage(ctx context.Context, stale time.Duration) ([]analytics.Entry, error) {
	path := "/v1/usage?" + url.Values{"stale": {stale.String()}}.Encode()
	var resp struct {
		Usage []analytics.Entry `json:"usage"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Usage, nil
}

// --- Persistence and sync ---

func (c *HTTPClient) Save(ctx context.Context, names ...string) (int, error) {
	var body any
	if len(names) > 0 {
		body = map[string][]string{"flags": names}
	}
	var resp struct {
		Saved int `json:"saved"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/save", body, &resp); err != nil {
		return 0, err
	}
	return resp.Saved, nil
}

func (c *HTTPClient) Sync(ctx context.Context) (*SyncResult, error) {
	var res SyncResult
	if err := c.doJSON(ctx, http.MethodPost, "/v1/sync", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPClient) Export(ctx context.Context) (map[string]model.ExportedFlag, error) {
	out := make(map[string]model.ExportedFlag)
	if err := c.doJSON(ctx, http.MethodGet, "/v1/export", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) Debug(ctx context.Context) (*Debug, error) {
	var d Debug
	if err := c.doJSON(ctx, http.MethodGet, "/v1/debug", nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// --- Event stream ---

// Stream reads the server-sent event stream. It returns nil when ctx is
// cancelled.
func (c *HTTPClient) Stream(ctx context.Context, topics []string, fn func(Event) error) error {
	path := "/v1/events/stream"
	if len(topics) > 0 {
		path += "?" + url.Values{"topics": {strings.Join(topics, ",")}}.Encode()
	}
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return decodeAPIError(resp.StatusCode, body)
	}

	scanner := bufio.NewScanner(resp.Body)
	var cur Event
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "id:"):
			cur.ID = strings.TrimPrefix(line, "id:")
		case strings.HasPrefix(line, "event:"):
			cur.Topic = strings.TrimPrefix(line, "event:")
		case strings.HasPrefix(line, "data:"):
			cur.Data = json.RawMessage(strings.TrimPrefix(line, "data:"))
		case line == "":
			if cur.Topic != "" {
				if err := fn(cur); err != nil {
					return err
				}
			}
			cur = Event{}
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("reading event stream: %w", err)
	}
	return nil
}

// --- internal helpers ---

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

func flagPath(name string) string {
	return "/v1/flags/" + url.PathEscape(name)
}

func (c *HTTPClient) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp.StatusCode, respBody)
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

func decodeAPIError(status int, body []byte) error {
	var errResp struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
		return &APIError{StatusCode: status, Message: errResp.Error}
	}
	return &APIError{StatusCode: status, Message: strings.TrimSpace(string(body))}
}

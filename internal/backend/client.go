// Package backend is the single handle to the hosted backend-as-a-service:
// authentication, relational rows and object storage.  Every stateful
// operation of the registry goes through a *Client.  Errors reported by
// the backend are returned unchanged as *APIError so callers decide how to
// surface them.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrNotConfigured is returned by every call when the project URL or
	// public key is missing from the environment.
	ErrNotConfigured = errors.New("backend: project url or api key not configured")
	// ErrNoRows is returned by Single when the query matched nothing.
	ErrNoRows = errors.New("backend: no rows in result")
	// ErrMultipleRows is returned by Single when more than one row matched.
	ErrMultipleRows = errors.New("backend: multiple rows in result")
	// ErrUnfilteredMutation guards against UPDATE or DELETE on a whole table.
	ErrUnfilteredMutation = errors.New("backend: update and delete require at least one filter")
)

// APIError is an error response from the backend, passed through as-is.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend request failed with status %d", e.Status)
	}
	return e.Message
}

// Client talks to one backend project.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	rows       RowStore
	log        zerolog.Logger

	Auth    *AuthClient
	Storage *StorageClient
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithRowStore replaces the hosted row API with another driver (for
// example a MySQL-backed SQLStore).  Auth and storage stay hosted.
func WithRowStore(s RowStore) Option {
	return func(c *Client) {
		if s != nil {
			c.rows = s
		}
	}
}

// WithLogger attaches a logger used for request tracing at debug level.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New constructs a Client for the project at baseURL.  An empty baseURL
// or apiKey does not fail here; the client is returned unconfigured and
// every call reports ErrNotConfigured.
func New(baseURL, apiKey string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed != "" {
		u, err := url.Parse(trimmed)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid backend url %q", baseURL)
		}
	}
	c := &Client{
		baseURL:    trimmed,
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        zerolog.Nop(),
	}
	c.rows = &RESTStore{c: c}
	c.Auth = &AuthClient{c: c, listeners: map[int]AuthChangeFunc{}}
	c.Storage = &StorageClient{c: c}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Configured reports whether the project URL and key are both present.
func (c *Client) Configured() bool {
	return c != nil && c.baseURL != "" && c.apiKey != ""
}

// From starts a query against the named table.
func (c *Client) From(table string) *Table {
	return &Table{c: c, name: table}
}

// RPC invokes a stored procedure by name.  dest may be nil.
func (c *Client) RPC(ctx context.Context, fn string, args any, dest any) error {
	if strings.TrimSpace(fn) == "" {
		return errors.New("backend: rpc name is required")
	}
	return c.rows.Call(ctx, fn, args, dest)
}

type tokenKey struct{}

// WithAccessToken returns a context whose backend calls are authorized as
// the holder of token instead of with the public key.
func WithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, strings.TrimSpace(token))
}

// AccessToken returns the token stored by WithAccessToken, if any.
func AccessToken(ctx context.Context) string {
	if v, ok := ctx.Value(tokenKey{}).(string); ok {
		return v
	}
	return ""
}

// request performs an HTTP call against the project and returns the
// response for status codes below 400.  Error responses are decoded into
// an *APIError and the body is closed.
func (c *Client) request(ctx context.Context, method, path string, query url.Values, body io.Reader, header http.Header) (*http.Response, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	if ctx == nil {
		ctx = context.Background()
	}
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, vals := range header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("apikey", c.apiKey)
	bearer := AccessToken(ctx)
	if bearer == "" {
		bearer = c.apiKey
	}
	req.Header.Set("Authorization", "Bearer "+bearer)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("perform request: %w", err)
	}
	c.log.Debug().Str("method", method).Str("path", path).Int("status", resp.StatusCode).Dur("took", time.Since(start)).Msg("backend request")

	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}
	return resp, nil
}

// doJSON sends payload as JSON (when non-nil) and decodes the response
// into dest (when non-nil).
func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, payload any, header http.Header, dest any) (*http.Response, error) {
	var body io.Reader
	if header == nil {
		header = http.Header{}
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = strings.NewReader(string(raw))
		header.Set("Content-Type", "application/json")
	}
	resp, err := c.request(ctx, method, path, query, body, header)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if dest == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp, nil
	}
	return resp, decodeBody(resp.Body, dest)
}

// decodeError understands the error shapes of the row, auth and storage
// APIs and falls back to the status text.
func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err == nil {
		for _, k := range []string{"message", "msg", "error_description", "error"} {
			if s, ok := payload[k].(string); ok && s != "" {
				apiErr.Message = s
				break
			}
		}
		for _, k := range []string{"code", "error_code", "statusCode"} {
			if v, ok := payload[k]; ok && v != nil {
				apiErr.Code = fmt.Sprint(v)
				break
			}
		}
	} else if s := strings.TrimSpace(string(raw)); s != "" {
		apiErr.Message = s
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

func decodeBody(r io.Reader, dest any) error {
	if err := json.NewDecoder(r).Decode(dest); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Package session implements the authenticated request layer: it attaches the
// stored access token to outbound requests, transparently refreshes it on a
// 401, retries the failed request exactly once, and tears the session down
// when refresh itself fails.
//
// Concurrent requests that hit an expired token share a single refresh call
// through singleflight instead of each issuing their own.
package session

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

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"fintrack/internal/log"
)

// DefaultTimeout bounds every request including the body read.
const DefaultTimeout = 10 * time.Second

const refreshPath = "/auth/jwt/refresh/"

// Response is the decoded outcome of a successful request.
type Response struct {
	StatusCode int
	Body       []byte
}

// Client is the authenticated HTTP session. All outbound traffic to the
// finance API goes through Do.
type Client struct {
	baseURL string
	http    *http.Client
	store   Store
	logger  *log.Logger

	refreshGroup singleflight.Group
	onExpired    func()
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout overrides the default request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithOnSessionExpired registers the callback invoked when the session
// terminates. The presentation layer subscribes here to decide navigation;
// the client itself never redirects anywhere.
func WithOnSessionExpired(fn func()) Option {
	return func(c *Client) { c.onExpired = fn }
}

// WithLogger substitutes the component logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func NewClient(baseURL string, store Store, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		store:   store,
		logger:  log.New(log.DefaultConfig()).WithComponent(log.ComponentSession),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do sends an authenticated request and decodes a 2xx JSON response into out
// (out may be nil). Non-2xx responses come back as *APIError, connectivity
// failures as *NetworkError, and a dead session as ErrSessionExpired.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.Request(ctx, method, path, body)
	if err != nil {
		return err
	}
	if out != nil && len(resp.Body) > 0 {
		if err := json.Unmarshal(resp.Body, out); err != nil {
			return fmt.Errorf("decode %s %s response: %w", method, path, err)
		}
	}
	return nil
}

// Request runs the full request protocol:
//
//  1. attach the stored access token as a bearer credential, if present
//  2. send the request; anything but a 401 is returned as-is
//  3. on a 401, refresh the access token (coalesced across concurrent
//     callers) and re-issue the original request once
//  4. a second 401, a missing refresh token, or a failed refresh terminates
//     the session: credentials are cleared, the expiry callback fires, and
//     ErrSessionExpired is returned
//
// At most one refresh and one retry happen per invocation.
func (c *Client) Request(ctx context.Context, method, path string, body any) (*Response, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s request: %w", method, path, err)
		}
	}

	access := ""
	if creds, ok := c.store.Get(); ok {
		// Refresh proactively when the token is already past its exp claim;
		// saves the round trip that would 401 anyway.
		if tokenExpired(creds.Access, time.Now()) {
			renewed, err := c.refreshAccess(ctx)
			switch {
			case err == nil:
				access = renewed
			case errors.Is(err, ErrSessionExpired):
				return nil, err
			default:
				// Transient refresh failure: fall through with the stale
				// token and let the normal 401 path decide.
			}
		}
		if access == "" {
			access = creds.Access
		}
	}

	resp, err := c.send(ctx, method, path, payload, access)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return c.finish(method, path, resp)
	}

	// Authorization failure: one refresh, one retry.
	renewed, err := c.refreshAccess(ctx)
	if err != nil {
		return nil, err
	}

	c.logger.DebugContext(ctx, "Retrying request with refreshed token",
		log.FieldMethod, method, log.FieldPath, path, log.FieldRetried, true)

	resp, err = c.send(ctx, method, path, payload, renewed)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		// Already retried once; a fresh token that still 401s is terminal.
		c.expire(ctx)
		return nil, ErrSessionExpired
	}
	return c.finish(method, path, resp)
}

// send performs a single HTTP exchange. It never retries.
func (c *Client) send(ctx context.Context, method, path string, payload []byte, access string) (*Response, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s %s request: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}

	start := time.Now()
	httpResp, err := c.http.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "Request failed",
			log.FieldMethod, method, log.FieldPath, path, log.FieldError, err)
		return nil, &NetworkError{Err: err}
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}

	c.logger.DebugContext(ctx, "Request completed",
		log.FieldMethod, method,
		log.FieldPath, path,
		log.FieldStatusCode, httpResp.StatusCode,
		log.FieldDuration, time.Since(start).Milliseconds())

	return &Response{StatusCode: httpResp.StatusCode, Body: data}, nil
}

// finish maps a settled response to the error taxonomy.
func (c *Client) finish(method, path string, resp *Response) (*Response, error) {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	apiErr := &APIError{StatusCode: resp.StatusCode}
	if resp.StatusCode == http.StatusBadRequest {
		apiErr.Fields = parseFieldErrors(resp.Body)
	}
	if apiErr.Detail == "" {
		apiErr.Detail = parseDetail(resp.Body)
	}
	c.logger.Debug("Request rejected",
		log.FieldMethod, method, log.FieldPath, path, log.FieldStatusCode, resp.StatusCode)
	return nil, apiErr
}

// refreshAccess exchanges the stored refresh token for a new access token.
// Concurrent callers share one in-flight refresh; every waiter observes the
// same outcome. The refresh token itself is not rotated.
func (c *Client) refreshAccess(ctx context.Context) (string, error) {
	v, err, _ := c.refreshGroup.Do("refresh", func() (any, error) {
		creds, ok := c.store.Get()
		if !ok || creds.Refresh == "" {
			c.expire(ctx)
			return "", ErrSessionExpired
		}

		payload, err := json.Marshal(map[string]string{"refresh": creds.Refresh})
		if err != nil {
			return "", fmt.Errorf("encode refresh request: %w", err)
		}
		// The refresh call carries no bearer header: the refresh token in the
		// body is the credential.
		resp, err := c.send(ctx, http.MethodPost, refreshPath, payload, "")
		if err != nil {
			// Connectivity problems do not invalidate the session.
			return "", err
		}
		if resp.StatusCode != http.StatusOK {
			c.logger.Warn("Token refresh rejected",
				log.FieldOperation, log.OpRefresh, log.FieldStatusCode, resp.StatusCode)
			c.expire(ctx)
			return "", ErrSessionExpired
		}

		var result struct {
			Access string `json:"access"`
		}
		if err := json.Unmarshal(resp.Body, &result); err != nil || result.Access == "" {
			c.expire(ctx)
			return "", ErrSessionExpired
		}

		if err := c.store.Set(Credentials{Access: result.Access, Refresh: creds.Refresh}); err != nil {
			return "", fmt.Errorf("store refreshed credentials: %w", err)
		}
		c.logger.InfoContext(ctx, "Access token refreshed", log.FieldOperation, log.OpRefresh)
		return result.Access, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// expire clears the credentials and notifies the expiry subscriber.
func (c *Client) expire(ctx context.Context) {
	if err := c.store.Clear(); err != nil {
		c.logger.ErrorContext(ctx, "Failed to clear credentials", log.FieldError, err)
	}
	c.logger.InfoContext(ctx, "Session terminated", log.FieldOperation, log.OpLogout)
	if c.onExpired != nil {
		c.onExpired()
	}
}

// SetCredentials stores a freshly issued credential pair (login).
func (c *Client) SetCredentials(creds Credentials) error {
	return c.store.Set(creds)
}

// ClearCredentials drops the stored credentials (logout). The expiry callback
// is not invoked; logging out is the caller's own decision.
func (c *Client) ClearCredentials() error {
	return c.store.Clear()
}

// Authenticated reports whether credentials are currently stored.
func (c *Client) Authenticated() bool {
	_, ok := c.store.Get()
	return ok
}

// parseFieldErrors extracts Django-style field-keyed validation messages:
// {"email": ["msg"], "password": ["msg1", "msg2"]}.
func parseFieldErrors(body []byte) map[string][]string {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil
	}
	fields := make(map[string][]string, len(raw))
	for field, msg := range raw {
		var list []string
		if err := json.Unmarshal(msg, &list); err == nil {
			fields[field] = list
			continue
		}
		var single string
		if err := json.Unmarshal(msg, &single); err == nil {
			fields[field] = []string{single}
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// parseDetail extracts the "detail" message DRF puts on non-validation errors.
func parseDetail(body []byte) string {
	var raw struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return ""
	}
	return raw.Detail
}

// Package apiclient is the single egress point for calls to the PsyPortal
// backend. It builds requests, attaches the stored bearer token, unwraps the
// response envelope and applies the global unauthorized policy.
package apiclient

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
	"github.com/rs/zerolog"

	"github.com/psyportal/portal-client/internal/core/domain"
	"github.com/psyportal/portal-client/internal/core/ports"
	"github.com/psyportal/portal-client/internal/metrics"
)

const (
	DefaultBaseURL = "http://localhost:8080/api/v1"
	defaultTimeout = 15 * time.Second

	// maxResponseSize bounds how much of a response body is read.
	maxResponseSize = 10 * 1024 * 1024

	headerRequestID = "X-Request-ID"
)

// Client talks to the backend REST API.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	creds       ports.CredentialStore
	interceptor ports.UnauthorizedInterceptor
	log         zerolog.Logger
	now         func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout bounds every request. Zero keeps the default. The HTTP client
// in place is copied first, so a shared one such as http.DefaultClient is
// never modified.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d <= 0 {
			return
		}
		hc := http.Client{}
		if c.httpClient != nil {
			hc = *c.httpClient
		}
		hc.Timeout = d
		c.httpClient = &hc
	}
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// WithUnauthorizedInterceptor replaces the 401 policy. The default clears
// the stored session and does nothing else.
func WithUnauthorizedInterceptor(i ports.UnauthorizedInterceptor) Option {
	return func(c *Client) {
		c.interceptor = i
	}
}

// WithClock overrides the time source used to stamp credential expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// New builds a client for baseURL (origin + /api/v1) reading and writing
// the credential through creds.
func New(baseURL string, creds ports.CredentialStore, opts ...Option) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		creds:      creds,
		log:        zerolog.Nop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.interceptor == nil {
		c.interceptor = NewClearingInterceptor(creds, nil, c.log)
	}
	return c
}

// BaseURL is the address every endpoint is appended to.
func (c *Client) BaseURL() string { return c.baseURL }

// Do sends one request. A non-nil body is JSON-encoded; a non-nil out
// receives the decoded 2xx body.
//
// Errors match domain.ErrUnauthorized for 401 (after the interceptor ran),
// *domain.APIError for any other non-2xx status, domain.ErrNoConnection
// when no response arrived, and domain.ErrDecode for an unreadable 2xx body.
func (c *Client) Do(ctx context.Context, method, endpoint string, body, out any) error {
	route := routeOf(endpoint)
	start := time.Now()
	outcome := "ok"
	defer func() {
		metrics.ClientRequestsTotal.WithLabelValues(method, route, outcome).Inc()
		metrics.ClientRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			outcome = "encode_error"
			return fmt.Errorf("%s %s: encode request: %w", method, route, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		outcome = "encode_error"
		return fmt.Errorf("%s %s: create request: %w", method, route, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(headerRequestID, requestID)

	token, err := c.creds.Token(ctx)
	if err != nil {
		c.log.Warn().Err(err).Str("request_id", requestID).Msg("read stored token")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.log.Debug().
		Str("request_id", requestID).
		Str("method", method).
		Str("endpoint", route).
		Bool("authenticated", token != "").
		Msg("backend request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		outcome = "no_connection"
		return fmt.Errorf("%s %s: %w: %w", method, route, domain.ErrNoConnection, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		outcome = "no_connection"
		return fmt.Errorf("%s %s: read response: %w: %w", method, route, domain.ErrNoConnection, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		outcome = "unauthorized"
		c.log.Warn().
			Str("request_id", requestID).
			Str("endpoint", route).
			Msg("backend answered unauthorized, dropping session")
		metrics.ForcedLogoutsTotal.Inc()
		c.interceptor.HandleUnauthorized(context.WithoutCancel(ctx))
		return domain.NewAPIError(resp.StatusCode, envelopeError(raw))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		outcome = "api_error"
		return domain.NewAPIError(resp.StatusCode, envelopeError(raw))
	}

	if out == nil {
		return nil
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		outcome = "decode_error"
		return fmt.Errorf("%s %s: empty body: %w", method, route, domain.ErrDecode)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		outcome = "decode_error"
		return fmt.Errorf("%s %s: %w: %w", method, route, domain.ErrDecode, err)
	}
	return nil
}

func (c *Client) Get(ctx context.Context, endpoint string, out any) error {
	return c.Do(ctx, http.MethodGet, endpoint, nil, out)
}

func (c *Client) Post(ctx context.Context, endpoint string, body, out any) error {
	return c.Do(ctx, http.MethodPost, endpoint, body, out)
}

func (c *Client) Put(ctx context.Context, endpoint string, body, out any) error {
	return c.Do(ctx, http.MethodPut, endpoint, body, out)
}

func (c *Client) Delete(ctx context.Context, endpoint string, out any) error {
	return c.Do(ctx, http.MethodDelete, endpoint, nil, out)
}

// call performs a request and decodes the response into an envelope of T.
func call[T any](ctx context.Context, c *Client, method, endpoint string, body any) (*domain.Envelope[T], error) {
	var env domain.Envelope[T]
	if err := c.Do(ctx, method, endpoint, body, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// envelopeError extracts the error string of a JSON envelope, or "" when the
// body is not one.
func envelopeError(raw []byte) string {
	var env struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return ""
	}
	return env.Error
}

// routeOf turns "/therapists/42?page=2" into "/therapists/:id" so metric
// labels stay bounded.
func routeOf(endpoint string) string {
	if i := strings.IndexByte(endpoint, '?'); i >= 0 {
		endpoint = endpoint[:i]
	}
	parts := strings.Split(endpoint, "/")
	for i, p := range parts {
		if p != "" && strings.Trim(p, "0123456789") == "" {
			parts[i] = ":id"
		}
	}
	return strings.Join(parts, "/")
}

// IsUnauthorized reports whether err ended the session.
func IsUnauthorized(err error) bool {
	return errors.Is(err, domain.ErrUnauthorized)
}

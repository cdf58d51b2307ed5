// Package upstream is the outbound JSON transport shared by every collaborator
// client. Each call carries a bounded timeout, is traced, and reports its
// latency; failures come back as *Error, never as raw transport errors.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultTimeout = 10 * time.Second
	maxResponse    = 4 << 20
)

// Observer receives call latency and outcome. *metrics.Metrics implements it.
type Observer interface {
	ObserveUpstream(service, op string, d time.Duration, err error)
}

// Client issues JSON requests to one collaborator.
type Client struct {
	service  string
	http     *http.Client
	timeout  time.Duration
	observer Observer
}

type Option func(*Client)

// WithHTTPClient replaces the instrumented default client (tests use httptest clients).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout bounds every call made through the client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithObserver reports each call's latency.
func WithObserver(o Observer) Option {
	return func(c *Client) {
		c.observer = o
	}
}

// NewClient constructs a client for the named collaborator.
func NewClient(service string, opts ...Option) *Client {
	c := &Client{
		service: service,
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = NewHTTPClient()
	}
	return c
}

// NewHTTPClient returns an http.Client whose transport emits OpenTelemetry spans.
func NewHTTPClient() *http.Client {
	return &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
}

// HTTPClient exposes the underlying client for libraries that drive their own
// requests (oauth2 token exchange).
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// Service returns the collaborator name used in errors and metrics.
func (c *Client) Service() string {
	return c.service
}

// Timeout returns the per-call bound.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Request describes one JSON call.
type Request struct {
	Op     string
	Method string
	URL    string
	Header http.Header
	Body   any
}

// Do sends req and decodes a 2xx JSON body into out (which may be nil).
// Non-2xx responses become *Error with a status-derived category.
func (c *Client) Do(ctx context.Context, req Request, out any) (err error) {
	start := time.Now()
	defer func() {
		if c.observer != nil {
			c.observer.ObserveUpstream(c.service, req.Op, time.Since(start), err)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if req.Body != nil {
		raw, marshalErr := json.Marshal(req.Body)
		if marshalErr != nil {
			return NewError(CategoryRejected, c.service, req.Op, "encode request body", marshalErr)
		}
		body = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return NewError(CategoryRejected, c.service, req.Op, "build request", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return FromTransport(c.service, req.Op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponse))
	if err != nil {
		return FromTransport(c.service, req.Op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return FromStatus(c.service, req.Op, resp.StatusCode, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return NewError(CategoryBadData, c.service, req.Op, fmt.Sprintf("decode %s response", req.Op), err)
	}
	return nil
}

// Bearer returns an Authorization header carrying token.
func Bearer(token string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	return h
}

// Package httpclient provides the pooled HTTP transport used by the backend API client,
// with context-based timeouts, User-Agent injection and observability hooks.
package httpclient

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"
)

const (
	// DefaultTimeout is applied when a request context carries no deadline.
	DefaultTimeout = 30 * time.Second

	defaultMaxIdleConnsPerHost   = 4
	defaultIdleConnTimeout       = 90 * time.Second
	defaultTLSHandshakeTimeout   = 10 * time.Second
	defaultResponseHeaderTimeout = 20 * time.Second
	defaultDialTimeout           = 10 * time.Second

	defaultUserAgent = "BirdTarifa-CLI"
)

// Client wraps http.Client with per-request deadlines and hooks.
// Safe for concurrent use.
type Client struct {
	client         *http.Client
	defaultTimeout time.Duration
	userAgent      string

	hookMu        sync.RWMutex
	beforeRequest func(*http.Request)
	afterResponse func(*http.Request, *http.Response, error)
}

// Config holds configuration for creating an HTTP client.
type Config struct {
	// DefaultTimeout is the timeout applied if request context has no deadline
	DefaultTimeout time.Duration

	// UserAgent is added to requests that don't set one
	UserAgent string

	// Transport replaces the pooled transport; tests inject mocks here
	Transport http.RoundTripper
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() Config {
	return Config{
		DefaultTimeout: DefaultTimeout,
		UserAgent:      defaultUserAgent,
	}
}

// New creates a client. A nil cfg uses DefaultConfig; the caller's config is not mutated.
func New(cfg *Config) *Client {
	c := DefaultConfig()
	if cfg != nil {
		if cfg.DefaultTimeout > 0 {
			c.DefaultTimeout = cfg.DefaultTimeout
		}
		if cfg.UserAgent != "" {
			c.UserAgent = cfg.UserAgent
		}
		c.Transport = cfg.Transport
	}

	transport := c.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   defaultDialTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConnsPerHost:   defaultMaxIdleConnsPerHost,
			IdleConnTimeout:       defaultIdleConnTimeout,
			TLSHandshakeTimeout:   defaultTLSHandshakeTimeout,
			ResponseHeaderTimeout: defaultResponseHeaderTimeout,
		}
	}

	return &Client{
		client:         &http.Client{Transport: transport},
		defaultTimeout: c.DefaultTimeout,
		userAgent:      c.UserAgent,
	}
}

// Do executes req once. If ctx has no deadline the default timeout applies.
// The returned cancel func must be called after the response body has been consumed.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, context.CancelFunc, error) {
	if req == nil {
		return nil, func() {}, fmt.Errorf("nil request")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	cancel := context.CancelFunc(func() {})
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && c.defaultTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.defaultTimeout)
	}
	req = req.WithContext(ctx)

	if req.Header.Get("User-Agent") == "" && c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	c.hookMu.RLock()
	before, after := c.beforeRequest, c.afterResponse
	c.hookMu.RUnlock()

	if before != nil {
		before(req)
	}

	resp, err := c.client.Do(req)

	if after != nil {
		after(req, resp, err)
	}

	if err != nil {
		cancel()
		return nil, func() {}, err
	}
	return resp, cancel, nil
}

// SetBeforeRequestHook sets a function to be called before each request.
func (c *Client) SetBeforeRequestHook(fn func(*http.Request)) {
	c.hookMu.Lock()
	defer c.hookMu.Unlock()
	c.beforeRequest = fn
}

// SetAfterResponseHook sets a function to be called after each request, success or not.
func (c *Client) SetAfterResponseHook(fn func(*http.Request, *http.Response, error)) {
	c.hookMu.Lock()
	defer c.hookMu.Unlock()
	c.afterResponse = fn
}

// Close closes idle connections in the connection pool.
func (c *Client) Close() {
	c.client.CloseIdleConnections()
}

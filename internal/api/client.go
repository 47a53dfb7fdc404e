// Package api is the client for the Bird Tarifa REST backend: a single-attempt
// JSON/multipart request adapter plus one typed function per backend operation.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/tphakala/birdtarifa/internal/errors"
	"github.com/tphakala/birdtarifa/internal/httpclient"
	"github.com/tphakala/birdtarifa/internal/logger"
)

const (
	// DefaultBaseURL is used when no backend URL is configured.
	DefaultBaseURL = "http://localhost:8000"

	// maxResponseBytes bounds how much of a response body is read.
	maxResponseBytes = 10 << 20

	requestIDHeader = "X-Request-ID"
)

// Query holds query-string parameters. nil values, empty strings and nil
// pointers are omitted; everything else is stringified.
type Query map[string]any

// Config configures a Client.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	// RateLimit is the maximum requests per second; 0 disables pacing.
	RateLimit float64
	// Transport overrides the pooled HTTP transport (tests).
	Transport http.RoundTripper
}

// Client talks to the backend. Every call is a single network attempt.
type Client struct {
	baseURL string
	http    *httpclient.Client
	limiter *rate.Limiter
	log     logger.Logger
}

// New creates a backend client. The base URL must be absolute; a trailing slash is trimmed.
func New(cfg Config, log logger.Logger) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	base = strings.TrimRight(base, "/")

	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, errors.Newf("invalid backend base URL %q", cfg.BaseURL).
			Component("api").
			Category(errors.CategoryConfiguration).
			Context("operation", "new_client").
			Build()
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := max(int(cfg.RateLimit), 1)
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &Client{
		baseURL: base,
		http: httpclient.New(&httpclient.Config{
			DefaultTimeout: cfg.Timeout,
			UserAgent:      cfg.UserAgent,
			Transport:      cfg.Transport,
		}),
		limiter: limiter,
		log:     logger.OrDiscard(log).Module("api"),
	}, nil
}

// BaseURL returns the normalized backend URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// HTTP exposes the underlying transport so observers can install hooks.
func (c *Client) HTTP() *httpclient.Client {
	return c.http
}

// Close releases idle connections.
func (c *Client) Close() {
	c.http.Close()
}

// Request performs one call against the backend. body is JSON-encoded unless
// it is a *Multipart. An empty response body yields a nil result.
// Non-2xx responses return an error wrapping *HTTPError.
func (c *Client) Request(ctx context.Context, method, path string, body any, query Query) (json.RawMessage, error) {
	requestURL := c.makeURL(path, query)
	requestID := uuid.NewString()
	log := c.log.WithContext(logger.WithTraceID(ctx, requestID)).With(
		logger.String("method", method),
		logger.String("path", path))

	reqBody, contentType, err := encodeBody(body)
	if err != nil {
		return nil, errors.New(err).
			Component("api").
			Category(errors.CategoryValidation).
			Context("operation", "encode_body").
			Context("path", path).
			Build()
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, errors.New(err).
				Component("api").
				Category(errors.CategoryCancellation).
				Context("operation", "rate_limiter_wait").
				Build()
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, reqBody)
	if err != nil {
		return nil, errors.Newf("failed to create HTTP request: %w", err).
			Component("api").
			Category(errors.CategoryNetwork).
			NetworkContext(method, requestURL).
			Build()
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, requestID)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	log.Debug("Sending backend request")

	resp, cancel, err := c.http.Do(ctx, req)
	defer cancel()
	if err != nil {
		category := errors.CategoryNetwork
		if ctx.Err() != nil {
			category = errors.CategoryCancellation
		}
		log.Warn("Backend request failed", logger.Error(err), logger.Duration("elapsed", time.Since(start)))
		return nil, errors.Newf("network error: %w", err).
			Component("api").
			Category(category).
			NetworkContext(method, requestURL).
			Context("request_id", requestID).
			Timing("backend_request", time.Since(start)).
			Build()
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Debug("Failed to close response body", logger.Error(err))
		}
	}()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errors.Newf("failed to read response body: %w", err).
			Component("api").
			Category(errors.CategoryNetwork).
			Context("request_id", requestID).
			Context("status_code", resp.StatusCode).
			Build()
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		httpErr := &HTTPError{Status: resp.StatusCode, Detail: extractDetail(payload, resp.StatusCode)}
		log.Info("Backend returned error status",
			logger.Int("status_code", resp.StatusCode),
			logger.String("detail", httpErr.Detail))
		return nil, errors.New(httpErr).
			Component("api").
			Context("request_id", requestID).
			Context("status_code", resp.StatusCode).
			Context("path", path).
			Build()
	}

	log.Debug("Backend request completed",
		logger.Int("status_code", resp.StatusCode),
		logger.Int("bytes", len(payload)),
		logger.Duration("elapsed", time.Since(start)))

	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return nil, nil
	}
	if !json.Valid(payload) {
		return nil, errors.Newf("backend returned invalid JSON").
			Component("api").
			Category(errors.CategoryDecode).
			Context("request_id", requestID).
			Context("path", path).
			Build()
	}
	return json.RawMessage(payload), nil
}

// makeURL joins path to the base URL and appends the non-empty query values.
func (c *Client) makeURL(path string, query Query) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := c.baseURL + path

	values := url.Values{}
	for key, value := range query {
		if s, ok := queryValue(value); ok {
			values.Set(key, s)
		}
	}
	if len(values) == 0 {
		return u
	}
	return u + "?" + values.Encode()
}

// queryValue stringifies v, reporting false for values that must be omitted:
// nil, nil pointers and empty strings.
func queryValue(v any) (string, bool) {
	var s string
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		s = x
	case *string:
		if x == nil {
			return "", false
		}
		s = *x
	case int:
		s = strconv.Itoa(x)
	case *int:
		if x == nil {
			return "", false
		}
		s = strconv.Itoa(*x)
	case int64:
		s = strconv.FormatInt(x, 10)
	case bool:
		s = strconv.FormatBool(x)
	case *bool:
		if x == nil {
			return "", false
		}
		s = strconv.FormatBool(*x)
	case fmt.Stringer:
		s = x.String()
	default:
		s = fmt.Sprint(x)
	}
	if s == "" {
		return "", false
	}
	return s, true
}

// encodeBody returns the request body and its content type.
func encodeBody(body any) (io.Reader, string, error) {
	switch b := body.(type) {
	case nil:
		return http.NoBody, "", nil
	case *Multipart:
		return encodeMultipart(b)
	default:
		data, err := json.Marshal(body)
		if err != nil {
			return nil, "", fmt.Errorf("failed to encode request body: %w", err)
		}
		return bytes.NewReader(data), "application/json", nil
	}
}

func encodeMultipart(m *Multipart) (io.Reader, string, error) {
	if m.File.Reader == nil {
		return nil, "", fmt.Errorf("multipart body has no file")
	}
	field := m.Field
	if field == "" {
		field = "file"
	}
	name := m.File.Name
	if name == "" {
		name = "upload"
	}
	contentType := m.File.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name=%q; filename=%q`, field, name))
	header.Set("Content-Type", contentType)

	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create multipart part: %w", err)
	}
	if _, err := io.Copy(part, m.File.Reader); err != nil {
		return nil, "", fmt.Errorf("failed to read file %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finalize multipart body: %w", err)
	}
	return buf, w.FormDataContentType(), nil
}

// decode unmarshals a raw result into T. A nil result yields the zero value.
func decode[T any](raw json.RawMessage, path string) (T, error) {
	var out T
	if raw == nil {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, errors.Newf("failed to decode %s response: %w", path, err).
			Component("api").
			Category(errors.CategoryDecode).
			Context("path", path).
			Build()
	}
	return out, nil
}

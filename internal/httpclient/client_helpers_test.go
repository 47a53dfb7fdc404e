package httpclient

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// newTestClient creates a Client with the given configuration and registers cleanup.
func newTestClient(t *testing.T, cfg *Config) *Client {
	t.Helper()
	client := New(cfg)
	t.Cleanup(client.Close)
	return client
}

// newTestServer creates a test HTTP server and registers cleanup.
func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

// closeResponse closes a response body and releases its context.
func closeResponse(t *testing.T, resp *http.Response, cancel func()) {
	t.Helper()
	defer cancel()
	if resp == nil || resp.Body == nil {
		return
	}
	if err := resp.Body.Close(); err != nil {
		t.Logf("failed to close response body: %v", err)
	}
}

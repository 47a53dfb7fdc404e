package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/birdtarifa/internal/errors"
	"github.com/tphakala/birdtarifa/internal/logger"
)

const testBaseURL = "http://backend.test"

func newMockClient(t *testing.T) (*Client, *httpmock.MockTransport) {
	t.Helper()
	mock := httpmock.NewMockTransport()
	client, err := New(Config{BaseURL: testBaseURL + "/", Transport: mock}, logger.NewDiscard())
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client, mock
}

func TestNew_BaseURL(t *testing.T) {
	t.Parallel()

	client, err := New(Config{BaseURL: "http://api.example.org/v1/"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://api.example.org/v1", client.BaseURL())

	client, err = New(Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, client.BaseURL())

	_, err = New(Config{BaseURL: "not a url"}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestMakeURL_QueryEncoding(t *testing.T) {
	t.Parallel()

	client, _ := newMockClient(t)
	var nilPtr *string
	var nilInt *int
	zone := "Punta Paloma & Valdevaqueros"
	limit := 5

	got := client.makeURL("predictions", Query{
		"zone":    &zone,
		"zone_id": "",
		"month":   4,
		"limit":   nil,
		"cursor":  nilPtr,
		"debug":   false,
		"page":    nilInt,
		"size":    &limit,
	})

	assert.Equal(t, testBaseURL+"/predictions?debug=false&month=4&size=5&zone=Punta+Paloma+%26+Valdevaqueros", got)
	assert.Equal(t, testBaseURL+"/zones", client.makeURL("/zones", nil))
}

func TestRequest_JSONBodyAndResult(t *testing.T) {
	t.Parallel()

	client, mock := newMockClient(t)
	mock.RegisterResponder(http.MethodPost, testBaseURL+"/echo",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
			assert.NotEmpty(t, req.Header.Get(requestIDHeader))
			body, err := io.ReadAll(req.Body)
			require.NoError(t, err)
			return httpmock.NewStringResponse(http.StatusCreated, string(body)), nil
		})

	raw, err := client.Request(t.Context(), http.MethodPost, "/echo", map[string]string{"zone": "Bolonia"}, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"zone":"Bolonia"}`, string(raw))
}

func TestRequest_EmptyBodyIsNil(t *testing.T) {
	t.Parallel()

	client, mock := newMockClient(t)
	mock.RegisterResponder(http.MethodPost, testBaseURL+"/empty",
		func(req *http.Request) (*http.Response, error) {
			assert.Empty(t, req.Header.Get("Content-Type"), "no body means no content type")
			return httpmock.NewStringResponse(http.StatusNoContent, ""), nil
		})

	raw, err := client.Request(t.Context(), http.MethodPost, "/empty", nil, nil)
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestRequest_ErrorDetail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		body     string
		want     string
		category errors.ErrorCategory
	}{
		{"detail string", http.StatusNotFound, `{"detail":"Zone not found"}`, "Zone not found", errors.CategoryNotFound},
		{"message field", http.StatusInternalServerError, `{"message":"storage offline"}`, "storage offline", errors.CategoryHTTP},
		{"detail wins over message", http.StatusBadRequest, `{"detail":"bad month","message":"ignored"}`, "bad month", errors.CategoryValidation},
		{"validation array", http.StatusUnprocessableEntity,
			`{"detail":[{"loc":["body","zone"],"msg":"String should have at least 2 characters"},{"msg":"Field required"}]}`,
			"String should have at least 2 characters; Field required", errors.CategoryValidation},
		{"empty body", http.StatusBadGateway, ``, "request failed with status 502", errors.CategoryHTTP},
		{"non json body", http.StatusInternalServerError, `Internal Server Error`, "request failed with status 500", errors.CategoryHTTP},
		{"empty detail", http.StatusTooManyRequests, `{"detail":""}`, "request failed with status 429", errors.CategoryLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client, mock := newMockClient(t)
			mock.RegisterResponder(http.MethodGet, testBaseURL+"/fail",
				httpmock.NewStringResponder(tt.status, tt.body))

			_, err := client.Request(t.Context(), http.MethodGet, "/fail", nil, nil)
			require.Error(t, err)

			status, ok := StatusCode(err)
			require.True(t, ok)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.want, Message(err))
			assert.True(t, errors.IsCategory(err, tt.category), "category")
			assert.False(t, IsNetwork(err))
		})
	}
}

func TestRequest_NetworkFailureHasNoStatus(t *testing.T) {
	t.Parallel()

	client, mock := newMockClient(t)
	mock.RegisterResponder(http.MethodGet, testBaseURL+"/health",
		httpmock.NewErrorResponder(fmt.Errorf("connection refused")))

	_, err := client.Request(t.Context(), http.MethodGet, "/health", nil, nil)
	require.Error(t, err)

	_, ok := StatusCode(err)
	assert.False(t, ok)
	assert.True(t, IsNetwork(err))
	assert.Contains(t, Message(err), "connection refused")
	assert.Equal(t, 1, mock.GetTotalCallCount(), "no retry")
}

func TestRequest_NoRetryOnServerError(t *testing.T) {
	t.Parallel()

	client, mock := newMockClient(t)
	mock.RegisterResponder(http.MethodGet, testBaseURL+"/zones",
		httpmock.NewStringResponder(http.StatusServiceUnavailable, `{"detail":"down"}`))

	_, err := client.Request(t.Context(), http.MethodGet, "/zones", nil, nil)
	require.Error(t, err)
	assert.Equal(t, 1, mock.GetTotalCallCount())
}

func TestRequest_InvalidJSON(t *testing.T) {
	t.Parallel()

	client, mock := newMockClient(t)
	mock.RegisterResponder(http.MethodGet, testBaseURL+"/zones",
		httpmock.NewStringResponder(http.StatusOK, `[{"id":`))

	_, err := client.Request(t.Context(), http.MethodGet, "/zones", nil, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryDecode))
}

func TestRequest_Multipart(t *testing.T) {
	t.Parallel()

	client, mock := newMockClient(t)
	mock.RegisterResponder(http.MethodPost, testBaseURL+"/uploads/photo",
		func(req *http.Request) (*http.Response, error) {
			mediaType, params, err := mime.ParseMediaType(req.Header.Get("Content-Type"))
			require.NoError(t, err)
			assert.Equal(t, "multipart/form-data", mediaType)

			reader := multipart.NewReader(req.Body, params["boundary"])
			part, err := reader.NextPart()
			require.NoError(t, err)
			assert.Equal(t, "file", part.FormName())
			assert.Equal(t, "heron.jpg", part.FileName())
			assert.Equal(t, "image/jpeg", part.Header.Get("Content-Type"))
			data, err := io.ReadAll(part)
			require.NoError(t, err)
			assert.Equal(t, "jpeg-bytes", string(data))

			_, err = reader.NextPart()
			assert.ErrorIs(t, err, io.EOF, "file is the sole field")

			return httpmock.NewStringResponse(http.StatusOK, `{"ok":true}`), nil
		})

	body := &Multipart{Field: "file", File: File{Name: "heron.jpg", ContentType: "image/jpeg", Reader: strings.NewReader("jpeg-bytes")}}
	raw, err := client.Request(t.Context(), http.MethodPost, "/uploads/photo", body, nil)
	require.NoError(t, err)

	var out map[string]bool
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.True(t, out["ok"])
}

func TestRequest_CanceledWhileWaitingForLimiter(t *testing.T) {
	t.Parallel()

	mock := httpmock.NewMockTransport()
	mock.RegisterResponder(http.MethodGet, testBaseURL+"/health",
		httpmock.NewStringResponder(http.StatusOK, `{}`))
	client, err := New(Config{BaseURL: testBaseURL, RateLimit: 1, Transport: mock}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err = client.Request(ctx, http.MethodGet, "/health", nil, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryCancellation))
	assert.Zero(t, mock.GetTotalCallCount())
}

func TestRequest_RateLimitedClientStillServes(t *testing.T) {
	t.Parallel()

	mock := httpmock.NewMockTransport()
	mock.RegisterResponder(http.MethodGet, testBaseURL+"/health",
		httpmock.NewStringResponder(http.StatusOK, `{"status":"ok"}`))
	client, err := New(Config{BaseURL: testBaseURL, RateLimit: 100, Transport: mock}, nil)
	require.NoError(t, err)
	require.NotNil(t, client.limiter)

	for range 3 {
		_, err := client.Request(t.Context(), http.MethodGet, "/health", nil, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, mock.GetTotalCallCount())
}

func TestTimestamp_Unmarshal(t *testing.T) {
	t.Parallel()

	var s Sighting
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": 7,
		"created_at": "2025-04-02T08:15:30.123456",
		"observed_at": "2025-04-02T07:00:00+02:00",
		"zone": "Los Lances",
		"species_guess": null,
		"notes": "flock",
		"photo_url": null
	}`), &s))

	assert.Equal(t, int64(7), s.ID)
	assert.Equal(t, 8, s.CreatedAt.Hour())
	assert.Equal(t, time.UTC, s.CreatedAt.Location())
	assert.Equal(t, 5, s.ObservedAt.UTC().Hour())
	assert.Nil(t, s.SpeciesGuess)
	require.NotNil(t, s.Notes)
	assert.Equal(t, "flock", *s.Notes)

	var bad Timestamp
	require.Error(t, json.Unmarshal([]byte(`"yesterday"`), &bad))
}

package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/birdtarifa/internal/errors"
	"github.com/tphakala/birdtarifa/internal/httpclient"
)

func TestInstrument_RecordsRequests(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	hc := httpclient.New(&httpclient.Config{})
	t.Cleanup(hc.Close)
	m.Instrument(hc)

	for _, path := range []string{"/zones", "/zones", "/missing"} {
		req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, server.URL+path+"?x=1", http.NoBody)
		require.NoError(t, err)
		resp, cancel, err := hc.Do(t.Context(), req)
		require.NoError(t, err)
		_ = resp.Body.Close()
		cancel()
	}

	// Port 0 is never listening.
	req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, "http://127.0.0.1:0/sightings", http.NoBody)
	require.NoError(t, err)
	_, cancel, err := hc.Do(t.Context(), req)
	require.Error(t, err)
	cancel()

	summary, err := m.Summary()
	require.NoError(t, err)
	require.Len(t, summary, 3)

	assert.Equal(t, "/missing", summary[0].Route)
	assert.Equal(t, 1, summary[0].Errors)
	assert.Equal(t, 1, summary[0].Statuses["404"])

	assert.Equal(t, "/sightings", summary[1].Route)
	assert.Equal(t, http.MethodPost, summary[1].Method)
	assert.Equal(t, 1, summary[1].Statuses[StatusLabel(0)])

	assert.Equal(t, "/zones", summary[2].Route)
	assert.Equal(t, 2, summary[2].Requests)
	assert.Zero(t, summary[2].Errors)
}

func TestTrack(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)

	require.NoError(t, Track(m.Workflow, "prediction_search", func() error { return nil }))
	err = Track(m.Workflow, "prediction_search", func() error {
		return errors.NewFieldError("month", "Month must be a number between 1 and 12.")
	})
	require.Error(t, err)

	n, err := testutil.GatherAndCount(m.Registry(), "birdtarifa_operations_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "one series per status")

	n, err = testutil.GatherAndCount(m.Registry(), "birdtarifa_operation_errors_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.NoError(t, Track(nil, "noop", func() error { return nil }))
}

func TestCategoryOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, errors.CategoryValidation, categoryOf(errors.NewFieldError("zone", "Zone is required.")))
	assert.Equal(t, errors.CategoryNetwork, categoryOf(errors.Newf("dial").Category(errors.CategoryNetwork).Build()))
	assert.Equal(t, errors.CategoryGeneric, categoryOf(errors.NewStd("boom")))
}

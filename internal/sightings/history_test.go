package sightings

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/birdtarifa/internal/api"
	"github.com/tphakala/birdtarifa/internal/testutil/fakeapi"
)

func TestHistory_Refresh(t *testing.T) {
	t.Parallel()

	server := fakeapi.New(t)
	client := server.Client(t)
	for _, zone := range []string{"Bolonia", "Los Lances", "Valdevaqueros"} {
		_, err := client.CreateSighting(t.Context(), &api.SightingCreate{Zone: zone})
		require.NoError(t, err)
	}

	history := NewHistory(client, 2, nil)
	assert.Empty(t, history.Sightings())

	require.NoError(t, history.Refresh(t.Context()))
	list := history.Sightings()
	require.Len(t, list, 2)
	assert.Equal(t, "Valdevaqueros", list[0].Zone, "newest first as returned")
	assert.Equal(t, "Los Lances", list[1].Zone)
	assert.False(t, history.Loading())
	assert.Empty(t, history.Err())

	calls := server.Calls(http.MethodGet, "/sightings")
	require.Len(t, calls, 1)
	assert.Equal(t, "2", calls[0].Query.Get("limit"))
}

func TestHistory_ErrorClearsList(t *testing.T) {
	t.Parallel()

	server := fakeapi.New(t)
	client := server.Client(t)
	_, err := client.CreateSighting(t.Context(), &api.SightingCreate{Zone: "Bolonia"})
	require.NoError(t, err)

	history := NewHistory(client, 0, nil)
	require.NoError(t, history.Refresh(t.Context()))
	require.Len(t, history.Sightings(), 1)

	server.Fail(http.MethodGet, "/sightings", fakeapi.Failure{Status: http.StatusServiceUnavailable, Detail: "maintenance", Times: 1})
	require.Error(t, history.Refresh(t.Context()))
	assert.Empty(t, history.Sightings(), "no stale rows next to an error")
	assert.Equal(t, "maintenance", history.Err())

	require.NoError(t, history.Refresh(t.Context()))
	assert.Len(t, history.Sightings(), 1)
	assert.Empty(t, history.Err(), "error reset on the next refresh")
}

func TestHistory_Prepend(t *testing.T) {
	t.Parallel()

	history := NewHistory(&stubLister{}, 10, nil)
	history.Prepend(api.Sighting{ID: 1})
	history.Prepend(api.Sighting{ID: 2})

	list := history.Sightings()
	require.Len(t, list, 2)
	assert.Equal(t, int64(2), list[0].ID)
}

package predictions

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/birdtarifa/internal/api"
	"github.com/tphakala/birdtarifa/internal/testutil"
	"github.com/tphakala/birdtarifa/internal/testutil/fakeapi"
)

func TestInfoPanel_LoadsAndCaches(t *testing.T) {
	t.Parallel()

	fetcher := newBlockingFetcher()
	close(fetcher.add("Ciconia nigra"))
	panel := NewInfoPanel(fetcher, time.Minute, nil)

	panel.Open(t.Context(), " Ciconia nigra ")
	require.NoError(t, panel.Wait(t.Context()))

	state := panel.State()
	assert.True(t, state.Open)
	assert.False(t, state.Loading)
	require.NotNil(t, state.Info)
	assert.Equal(t, "Ciconia nigra", state.Info.Title)
	assert.Empty(t, state.Err)

	panel.Close()
	panel.Open(t.Context(), "ciconia NIGRA")
	state = panel.State()
	assert.False(t, state.Loading, "cache hit resolves immediately")
	require.NotNil(t, state.Info)
	assert.Equal(t, 1, fetcher.Calls())
}

func TestInfoPanel_CloseDiscardsPendingResult(t *testing.T) {
	t.Parallel()

	fetcher := newBlockingFetcher()
	release := fetcher.add("Aquila fasciata")
	panel := NewInfoPanel(fetcher, time.Minute, nil)

	gen := panel.Open(t.Context(), "Aquila fasciata")
	assert.True(t, panel.State().Loading)
	testutil.WaitForChannel(t, fetcher.started, testutil.DefaultTestTimeout, "lookup never started")

	panel.Close()
	assert.Greater(t, panel.Generation(), gen)
	close(release)
	require.NoError(t, panel.Wait(t.Context()))

	assert.Equal(t, PanelState{}, panel.State(), "closed panel stays empty")

	panel.Open(t.Context(), "Aquila fasciata")
	require.NoError(t, panel.Wait(t.Context()))
	assert.Equal(t, 2, fetcher.Calls(), "discarded result was not cached")
	assert.NotNil(t, panel.State().Info)
}

func TestInfoPanel_RetargetShowsLatestSpecies(t *testing.T) {
	t.Parallel()

	fetcher := newBlockingFetcher()
	fetcher.add("Pandion haliaetus")
	releaseB := fetcher.add("Hieraaetus pennatus")
	panel := NewInfoPanel(fetcher, time.Minute, nil)

	panel.Open(t.Context(), "Pandion haliaetus")
	testutil.WaitForChannel(t, fetcher.started, testutil.DefaultTestTimeout, "first lookup never started")

	panel.Open(t.Context(), "Hieraaetus pennatus")
	testutil.WaitForChannel(t, fetcher.started, testutil.DefaultTestTimeout, "second lookup never started")
	close(releaseB)
	require.NoError(t, panel.Wait(t.Context()))

	state := panel.State()
	assert.Equal(t, "Hieraaetus pennatus", state.Species)
	require.NotNil(t, state.Info)
	assert.Equal(t, "Hieraaetus pennatus", state.Info.Species)
}

func TestInfoPanel_NotFound(t *testing.T) {
	t.Parallel()

	server := fakeapi.New(t)
	server.SetBirdInfo(api.BirdInfo{Species: "Milvus migrans", Title: "Milano negro", Source: "wikipedia"})
	panel := NewInfoPanel(server.Client(t), 0, nil)

	panel.Open(t.Context(), "Dodo")
	require.NoError(t, panel.Wait(t.Context()))
	state := panel.State()
	assert.True(t, state.NotFound)
	assert.Equal(t, "Species not found", state.Err)
	assert.Nil(t, state.Info)

	panel.Open(t.Context(), "Milvus migrans")
	require.NoError(t, panel.Wait(t.Context()))
	state = panel.State()
	assert.Empty(t, state.Err)
	require.NotNil(t, state.Info)
	assert.Equal(t, "Milano negro", state.Info.Title)

	calls := server.Calls(http.MethodGet, "/birds/info")
	require.Len(t, calls, 2)
	assert.Equal(t, "Milvus migrans", calls[1].Query.Get("species"))
}

func TestInfoPanel_EmptySpecies(t *testing.T) {
	t.Parallel()

	fetcher := newBlockingFetcher()
	panel := NewInfoPanel(fetcher, time.Minute, nil)

	panel.Open(t.Context(), "   ")
	require.NoError(t, panel.Wait(t.Context()))
	assert.NotEmpty(t, panel.State().Err)
	assert.Zero(t, fetcher.Calls())
}

// Not parallel: goleak inspects every goroutine in the process.
func TestInfoPanel_NoGoroutineLeaks(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run"))

	fetcher := newBlockingFetcher()
	releases := []chan struct{}{fetcher.add("A"), fetcher.add("B")}
	panel := NewInfoPanel(fetcher, time.Minute, nil)

	panel.Open(t.Context(), "A")
	testutil.WaitForChannel(t, fetcher.started, testutil.DefaultTestTimeout, "A never started")
	panel.Open(t.Context(), "B")
	testutil.WaitForChannel(t, fetcher.started, testutil.DefaultTestTimeout, "B never started")
	panel.Close()

	for _, ch := range releases {
		close(ch)
	}
	require.NoError(t, panel.Wait(t.Context()))
}

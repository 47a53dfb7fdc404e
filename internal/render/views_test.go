package render

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tphakala/birdtarifa/internal/api"
	"github.com/tphakala/birdtarifa/internal/observability"
	"github.com/tphakala/birdtarifa/internal/predictions"
)

func newTestRenderer() (*Renderer, *bytes.Buffer) {
	var buf bytes.Buffer
	return New(&buf), &buf
}

func strPtr(s string) *string { return &s }

func TestSightings(t *testing.T) {
	t.Parallel()

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		r, buf := newTestRenderer()
		r.Sightings(nil, "")
		assert.Contains(t, buf.String(), "No sightings yet.")
	})

	t.Run("error hides empty state", func(t *testing.T) {
		t.Parallel()
		r, buf := newTestRenderer()
		r.Sightings(nil, "maintenance")
		assert.Contains(t, buf.String(), "maintenance")
		assert.NotContains(t, buf.String(), "No sightings yet.")
	})

	t.Run("rows", func(t *testing.T) {
		t.Parallel()
		r, buf := newTestRenderer()
		r.Sightings([]api.Sighting{
			{ID: 2, Zone: "Bolonia", SpeciesGuess: strPtr("Ciconia nigra"), Notes: strPtr("pair"), PhotoURL: strPtr("https://photos.test/k1.jpg"),
				ObservedAt: api.Timestamp{Time: time.Date(2025, 4, 12, 7, 30, 0, 0, time.UTC)}},
			{ID: 1, Zone: "Los Lances", CreatedAt: api.Timestamp{Time: time.Date(2025, 4, 11, 8, 0, 0, 0, time.UTC)}},
		}, "")
		out := buf.String()
		assert.Contains(t, out, "Ciconia nigra")
		assert.Contains(t, out, "https://photos.test/k1.jpg")
		assert.Contains(t, out, "Species not set")
		assert.Contains(t, out, "No photo")
		assert.Less(t, bytes.Index(buf.Bytes(), []byte("Bolonia")), bytes.Index(buf.Bytes(), []byte("Los Lances")), "backend order kept")
	})
}

func TestPredictions(t *testing.T) {
	t.Parallel()

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		r, buf := newTestRenderer()
		r.Predictions(predictions.Rank(nil), "")
		assert.Contains(t, buf.String(), "No results yet.")
		assert.Contains(t, buf.String(), "load demo rules")
	})

	t.Run("leaderboard, rest and badge", func(t *testing.T) {
		t.Parallel()
		r, buf := newTestRenderer()
		r.Predictions(predictions.Rank([]api.Prediction{
			{Species: "Milvus migrans", Score: 0.92, Reason: "Peak passage", Confidence: api.ConfidenceHigh},
			{Species: "Ciconia ciconia", Score: 0.81},
			{Species: "Gyps fulvus", Score: 0.7},
			{Species: "Pernis apivorus", Score: 0.5, Reason: "Early migrant"},
		}), "")
		out := buf.String()
		assert.Contains(t, out, "High confidence")
		assert.Contains(t, out, "1st")
		assert.Contains(t, out, "Milvus migrans")
		assert.Contains(t, out, " 4. Pernis apivorus 0.5")
		assert.Contains(t, out, "Early migrant")
		assert.Contains(t, out, "1. Peak passage")
	})

	t.Run("observation metadata", func(t *testing.T) {
		t.Parallel()
		r, buf := newTestRenderer()
		r.Predictions(predictions.Rank([]api.Prediction{
			{Species: "Milvus migrans", Score: 0.92, ObservationsCount: intPtr(14), LastSeenDaysAgo: intPtr(2)},
			{Species: "Ciconia ciconia", Score: 0.81, ObservationsCount: intPtr(1)},
			{Species: "Gyps fulvus", Score: 0.7},
			{Species: "Pernis apivorus", Score: 0.5, LastSeenDaysAgo: intPtr(0)},
			{Species: "Circaetus gallicus", Score: 0.4},
		}), "")
		out := buf.String()
		assert.Contains(t, out, "14 observations, last seen 2 days ago")
		assert.Contains(t, out, "1 observation")
		assert.NotContains(t, out, "1 observations")
		assert.Contains(t, out, " 4. Pernis apivorus 0.5 · seen today")
		assert.Contains(t, out, " 5. Circaetus gallicus 0.4\n")
	})
}

func intPtr(v int) *int { return &v }

func TestBirdInfo(t *testing.T) {
	t.Parallel()

	t.Run("full sheet", func(t *testing.T) {
		t.Parallel()
		r, buf := newTestRenderer()
		r.BirdInfo(predictions.PanelState{Open: true, Species: "Milvus migrans", Info: &api.BirdInfo{
			Species:  "Milvus migrans",
			Title:    "Milano negro",
			Extract:  "<p>The <b>black kite</b> is a medium-sized bird of prey.</p>",
			PhotoURL: "https://upload.test/kite.jpg",
			PageURL:  "https://es.wikipedia.org/wiki/Milvus_migrans",
			Source:   "wikipedia",
		}})
		out := buf.String()
		assert.Contains(t, out, "Milano negro")
		assert.Contains(t, out, "black kite")
		assert.NotContains(t, out, "<b>")
		assert.Contains(t, out, "Source: wikipedia")
		assert.Contains(t, out, "https://upload.test/kite.jpg")
	})

	t.Run("placeholders", func(t *testing.T) {
		t.Parallel()
		r, buf := newTestRenderer()
		r.BirdInfo(predictions.PanelState{Open: true, Species: "Dodo", Info: &api.BirdInfo{Species: "Dodo"}})
		assert.Contains(t, buf.String(), "No photo")
		assert.Contains(t, buf.String(), "No quick description")
	})

	t.Run("loading", func(t *testing.T) {
		t.Parallel()
		r, buf := newTestRenderer()
		r.BirdInfo(predictions.PanelState{Open: true, Species: "Dodo", Loading: true})
		assert.Contains(t, buf.String(), "Loading sheet...")
	})
}

func TestZonesAndBanners(t *testing.T) {
	t.Parallel()

	r, buf := newTestRenderer()
	r.Zones(predictions.GroupZones([]api.Zone{predictions.FallbackZone}), predictions.GeoZoneID)
	r.Banner(BannerSuccess, "Sighting saved.")
	r.Banner(BannerError, "   ")
	r.Metrics([]observability.RouteSummary{{Method: "GET", Route: "/zones", Requests: 2}})

	out := buf.String()
	assert.Contains(t, out, "Tarifa (zona general)")
	assert.Contains(t, out, "* geo")
	assert.Contains(t, out, "Other zone...")
	assert.Contains(t, out, "Sighting saved.")
	assert.Contains(t, out, "/zones")
}

func TestExtractText(t *testing.T) {
	t.Parallel()

	assert.Empty(t, ExtractText("  "))
	assert.Equal(t, "plain text", ExtractText(" plain text "))
	assert.Equal(t, "Tom & Jerry", ExtractText("Tom &amp; Jerry"))
}

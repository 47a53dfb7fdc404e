package predictions

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/birdtarifa/internal/api"
)

func predictionsN(n int) []api.Prediction {
	out := make([]api.Prediction, n)
	for i := range out {
		out[i] = api.Prediction{Species: fmt.Sprintf("species-%d", i+1), Score: float64(n - i)}
	}
	return out
}

func TestRank_Split(t *testing.T) {
	t.Parallel()

	tests := []struct {
		n           int
		leaderboard int
		rest        int
	}{
		{0, 0, 0},
		{1, 1, 0},
		{3, 3, 0},
		{4, 3, 1},
		{10, 3, 7},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d results", tt.n), func(t *testing.T) {
			t.Parallel()

			r := Rank(predictionsN(tt.n))
			assert.Len(t, r.Leaderboard, tt.leaderboard)
			assert.Len(t, r.Rest, tt.rest)
			assert.Equal(t, tt.n == 0, r.Empty())
			if tt.rest > 0 {
				assert.Equal(t, 4, r.Rest[0].Position, "positions continue after the leaderboard")
				assert.Equal(t, "species-4", r.Rest[0].Prediction.Species, "backend order kept")
			}
		})
	}
}

func TestRank_BadgeFromFirstResultOnly(t *testing.T) {
	t.Parallel()

	results := predictionsN(4)
	results[0].Confidence = api.ConfidenceMedium
	results[1].Confidence = api.ConfidenceHigh
	results[2].FallbackUsed = true

	r := Rank(results)
	require.NotNil(t, r.Badge)
	assert.Equal(t, api.ConfidenceMedium, r.Badge.Confidence)
	assert.False(t, r.Badge.FallbackUsed)
	assert.Equal(t, "Medium confidence", r.Badge.Label)
}

func TestRank_BadgeVariants(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		confidence api.Confidence
		fallback   bool
		wantLabel  string
		wantNil    bool
	}{
		{"no metadata", "", false, "", true},
		{"high", api.ConfidenceHigh, false, "High confidence", false},
		{"low with fallback", api.ConfidenceLow, true, "Low confidence · eBird fallback", false},
		{"fallback only", "", true, "eBird fallback", false},
		{"unknown level", "experimental", false, "Confidence: experimental", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := Rank([]api.Prediction{{Species: "Milvus migrans", Confidence: tt.confidence, FallbackUsed: tt.fallback}})
			if tt.wantNil {
				assert.Nil(t, r.Badge)
				return
			}
			require.NotNil(t, r.Badge)
			assert.Equal(t, tt.wantLabel, r.Badge.Label)
			assert.Equal(t, tt.fallback, r.Badge.FallbackUsed)
		})
	}
}

package predictions

import (
	"github.com/tphakala/birdtarifa/internal/api"
)

// LeaderboardSize is the number of results shown as the leaderboard.
const LeaderboardSize = 3

// Ranked is a prediction with its 1-based position.
type Ranked struct {
	Position   int
	Prediction api.Prediction
}

// Badge summarizes a result set from its first entry.
type Badge struct {
	Confidence   api.Confidence
	FallbackUsed bool
	Label        string
}

// Ranking splits results for display.
type Ranking struct {
	Leaderboard []Ranked
	Rest        []Ranked
	Badge       *Badge
}

// Empty reports whether there is nothing to show.
func (r Ranking) Empty() bool {
	return len(r.Leaderboard) == 0
}

// Rank splits results into the leaderboard and the remaining list. Backend
// order is kept. The badge is derived only from the first result and is nil
// when it carries neither a confidence nor the fallback flag.
func Rank(results []api.Prediction) Ranking {
	var r Ranking
	for i, p := range results {
		item := Ranked{Position: i + 1, Prediction: p}
		if i < LeaderboardSize {
			r.Leaderboard = append(r.Leaderboard, item)
		} else {
			r.Rest = append(r.Rest, item)
		}
	}

	if len(results) > 0 {
		first := results[0]
		if first.Confidence != "" || first.FallbackUsed {
			r.Badge = &Badge{
				Confidence:   first.Confidence,
				FallbackUsed: first.FallbackUsed,
				Label:        badgeLabel(first.Confidence, first.FallbackUsed),
			}
		}
	}
	return r
}

func badgeLabel(c api.Confidence, fallback bool) string {
	var label string
	switch c {
	case api.ConfidenceHigh:
		label = "High confidence"
	case api.ConfidenceMedium:
		label = "Medium confidence"
	case api.ConfidenceLow:
		label = "Low confidence"
	case "":
		label = ""
	default:
		label = "Confidence: " + string(c)
	}

	if !fallback {
		return label
	}
	if label == "" {
		return "eBird fallback"
	}
	return label + " · eBird fallback"
}

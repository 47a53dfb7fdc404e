package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// ZoneKind tags a zone as a general geographic area or a curated hotspot.
type ZoneKind string

const (
	ZoneKindGeo     ZoneKind = "geo"
	ZoneKindHotspot ZoneKind = "hotspot"
)

// Zone is reference data used to populate zone selection.
type Zone struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	Kind ZoneKind `json:"kind"`
}

// Timestamp decodes backend datetimes, which may be naive (no offset).
// Naive values are read as UTC.
type Timestamp struct {
	time.Time
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t.Time = parsed
		return nil
	}
	for _, layout := range naiveLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", s)
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}

// Sighting is a logged bird observation as returned by the backend.
type Sighting struct {
	ID           int64     `json:"id"`
	CreatedAt    Timestamp `json:"created_at"`
	ObservedAt   Timestamp `json:"observed_at"`
	Zone         string    `json:"zone"`
	SpeciesGuess *string   `json:"species_guess"`
	Notes        *string   `json:"notes"`
	PhotoURL     *string   `json:"photo_url"`
}

// SightingCreate is the payload for POST /sightings. Absent optionals are omitted.
type SightingCreate struct {
	Zone         string     `json:"zone"`
	SpeciesGuess *string    `json:"species_guess,omitempty"`
	Notes        *string    `json:"notes,omitempty"`
	PhotoURL     *string    `json:"photo_url,omitempty"`
	ObservedAt   *time.Time `json:"observed_at,omitempty"`
}

// Confidence summarises how much the backend trusts a ranking.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// PredictionQuery asks for the species most likely in a zone during a month.
// An empty ZoneID is omitted from the request; Limit <= 0 means DefaultPredictionLimit.
type PredictionQuery struct {
	Zone   string
	ZoneID string
	Month  int
	Limit  int
}

// Prediction is one ranked species.
type Prediction struct {
	Species           string     `json:"species"`
	Score             float64    `json:"score"`
	Reason            string     `json:"reason"`
	Confidence        Confidence `json:"confidence,omitempty"`
	FallbackUsed      bool       `json:"fallback_used"`
	ObservationsCount *int       `json:"observations_count"`
	LastSeenDaysAgo   *int       `json:"last_seen_days_ago"`
}

// BirdInfo is reference material for a species. Missing values decode to "".
type BirdInfo struct {
	Species  string `json:"species"`
	Title    string `json:"title"`
	Extract  string `json:"extract"`
	PhotoURL string `json:"photo_url"`
	PageURL  string `json:"page_url"`
	Source   string `json:"source"`
}

// PhotoUpload is the result of POST /uploads/photo. Key is only used to delete the object.
type PhotoUpload struct {
	PhotoURL    string `json:"photo_url"`
	Key         string `json:"key"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

// Health is the liveness probe response.
type Health struct {
	Status string `json:"status"`
	Env    string `json:"env"`
}

// SeedResult reports how many demo rules were inserted.
type SeedResult struct {
	Inserted int `json:"inserted"`
}

type photoDeleteRequest struct {
	Key string `json:"key"`
}

type photoDeleteResult struct {
	Deleted bool `json:"deleted"`
}

// File is a local file sent as a multipart part.
type File struct {
	Name        string
	ContentType string
	Reader      io.Reader
}

// Multipart marks a request body to be sent as multipart/form-data with a single file field.
type Multipart struct {
	Field string
	File  File
}

// Package notify publishes newly created sightings to external channels.
// Publishers run after the backend has stored the record; their failures
// are reported to the caller but never undo the sighting.
package notify

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tphakala/birdtarifa/internal/api"
	"github.com/tphakala/birdtarifa/internal/errors"
)

// EventSightingCreated names the event carried in MQTT payloads.
const EventSightingCreated = "sighting.created"

// DefaultTitle is used when no notification title is configured.
const DefaultTitle = "New sighting"

// Event is the JSON document published for a created sighting.
type Event struct {
	Event       string       `json:"event"`
	Sighting    api.Sighting `json:"sighting"`
	PublishedAt time.Time    `json:"published_at"`
}

// NewEvent wraps s for publishing.
func NewEvent(s *api.Sighting, now time.Time) Event {
	return Event{Event: EventSightingCreated, Sighting: *s, PublishedAt: now.UTC()}
}

// MarshalEvent encodes the event payload.
func MarshalEvent(s *api.Sighting, now time.Time) ([]byte, error) {
	payload, err := json.Marshal(NewEvent(s, now))
	if err != nil {
		return nil, errors.New(err).
			Component("notify").
			Category(errors.CategoryNotification).
			Context("operation", "marshal_event").
			Build()
	}
	return payload, nil
}

// FormatMessage renders a short human-readable line for chat services.
func FormatMessage(s *api.Sighting) string {
	var b strings.Builder
	species := "Unidentified bird"
	if s.SpeciesGuess != nil && strings.TrimSpace(*s.SpeciesGuess) != "" {
		species = strings.TrimSpace(*s.SpeciesGuess)
	}
	fmt.Fprintf(&b, "%s at %s", species, s.Zone)
	if !s.ObservedAt.IsZero() {
		fmt.Fprintf(&b, " (%s)", s.ObservedAt.Format("2006-01-02 15:04"))
	}
	if s.Notes != nil && strings.TrimSpace(*s.Notes) != "" {
		fmt.Fprintf(&b, "\n%s", strings.TrimSpace(*s.Notes))
	}
	if s.PhotoURL != nil && *s.PhotoURL != "" {
		fmt.Fprintf(&b, "\n%s", *s.PhotoURL)
	}
	return b.String()
}

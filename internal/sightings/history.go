package sightings

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/tphakala/birdtarifa/internal/api"
	"github.com/tphakala/birdtarifa/internal/logger"
)

// Lister lists recent sightings.
type Lister interface {
	ListSightings(ctx context.Context, limit int) ([]api.Sighting, error)
}

// History holds the recent-sightings list. A failed refresh clears the list
// so stale entries are never shown next to an error.
type History struct {
	backend Lister
	limit   int
	log     logger.Logger

	loading atomic.Bool

	mu        sync.RWMutex
	sightings []api.Sighting
	err       string
}

// NewHistory creates a history that fetches limit entries per refresh.
func NewHistory(backend Lister, limit int, log logger.Logger) *History {
	if limit <= 0 {
		limit = api.DefaultSightingsLimit
	}
	return &History{
		backend:   backend,
		limit:     limit,
		log:       logger.OrDiscard(log).Module("sightings").Module("history"),
		sightings: []api.Sighting{},
	}
}

// Refresh replaces the list with the backend's newest-first order.
func (h *History) Refresh(ctx context.Context) error {
	h.loading.Store(true)
	defer h.loading.Store(false)

	h.mu.Lock()
	h.err = ""
	h.mu.Unlock()

	list, err := h.backend.ListSightings(ctx, h.limit)

	h.mu.Lock()
	defer h.mu.Unlock()
	if err != nil {
		h.sightings = []api.Sighting{}
		h.err = api.Message(err)
		h.log.Warn("Failed to load sightings", logger.Error(err))
		return err
	}
	h.sightings = slices.Clone(list)
	if h.sightings == nil {
		h.sightings = []api.Sighting{}
	}
	h.log.Debug("Sightings loaded", logger.Int("count", len(list)))
	return nil
}

// Prepend adds a just-created sighting to the top without a refetch.
func (h *History) Prepend(s api.Sighting) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sightings = slices.Insert(h.sightings, 0, s)
}

// Sightings returns a copy of the current list.
func (h *History) Sightings() []api.Sighting {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.sightings)
}

// Loading reports whether a refresh is in flight.
func (h *History) Loading() bool {
	return h.loading.Load()
}

// Err returns the last refresh failure message, or "".
func (h *History) Err() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.err
}

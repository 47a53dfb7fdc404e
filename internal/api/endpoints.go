package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/tphakala/birdtarifa/internal/errors"
)

const (
	// DefaultSightingsLimit is the page size for ListSightings.
	DefaultSightingsLimit = 50

	// DefaultPredictionLimit is the number of ranked species requested.
	DefaultPredictionLimit = 10

	photoPath = "/uploads/photo"
)

// Health calls GET /health.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	raw, err := c.Request(ctx, http.MethodGet, "/health", nil, nil)
	if err != nil {
		return nil, err
	}
	out, err := decode[Health](raw, "/health")
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListSightings returns recent sightings, newest first as ordered by the backend.
func (c *Client) ListSightings(ctx context.Context, limit int) ([]Sighting, error) {
	if limit <= 0 {
		limit = DefaultSightingsLimit
	}
	raw, err := c.Request(ctx, http.MethodGet, "/sightings", nil, Query{"limit": limit})
	if err != nil {
		return nil, err
	}
	out, err := decode[[]Sighting](raw, "/sightings")
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Sighting{}
	}
	return out, nil
}

// ListZones returns the selectable zones.
func (c *Client) ListZones(ctx context.Context) ([]Zone, error) {
	raw, err := c.Request(ctx, http.MethodGet, "/zones", nil, nil)
	if err != nil {
		return nil, err
	}
	out, err := decode[[]Zone](raw, "/zones")
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Zone{}
	}
	return out, nil
}

// CreateSighting posts a new sighting.
func (c *Client) CreateSighting(ctx context.Context, in *SightingCreate) (*Sighting, error) {
	if in == nil {
		return nil, errors.ValidationError("sighting payload is required")
	}
	raw, err := c.Request(ctx, http.MethodPost, "/sightings", in, nil)
	if err != nil {
		return nil, err
	}
	out, err := decode[Sighting](raw, "/sightings")
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetPredictions returns the ranked species for a zone and month.
func (c *Client) GetPredictions(ctx context.Context, q PredictionQuery) ([]Prediction, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultPredictionLimit
	}
	raw, err := c.Request(ctx, http.MethodGet, "/predictions", nil, Query{
		"zone":    q.Zone,
		"zone_id": q.ZoneID,
		"month":   q.Month,
		"limit":   limit,
	})
	if err != nil {
		return nil, err
	}
	out, err := decode[[]Prediction](raw, "/predictions")
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Prediction{}
	}
	return out, nil
}

// GetBirdInfo returns reference material for a species name.
func (c *Client) GetBirdInfo(ctx context.Context, species string) (*BirdInfo, error) {
	species = strings.TrimSpace(species)
	if species == "" {
		return nil, errors.ValidationError("species is required")
	}
	raw, err := c.Request(ctx, http.MethodGet, "/birds/info", nil, Query{"species": species})
	if err != nil {
		return nil, err
	}
	out, err := decode[BirdInfo](raw, "/birds/info")
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadPhoto sends f as the "file" field of a multipart request.
func (c *Client) UploadPhoto(ctx context.Context, f File) (*PhotoUpload, error) {
	raw, err := c.Request(ctx, http.MethodPost, photoPath, &Multipart{Field: "file", File: f}, nil)
	if err != nil {
		return nil, err
	}
	out, err := decode[PhotoUpload](raw, photoPath)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeletePhoto asks the backend to delete an uploaded photo by storage key.
func (c *Client) DeletePhoto(ctx context.Context, key string) (bool, error) {
	raw, err := c.Request(ctx, http.MethodDelete, photoPath, photoDeleteRequest{Key: key}, nil)
	if err != nil {
		return false, err
	}
	out, err := decode[photoDeleteResult](raw, photoPath)
	if err != nil {
		return false, err
	}
	return out.Deleted, nil
}

// SeedPredictionRules loads the backend's demo rules and returns the inserted count.
func (c *Client) SeedPredictionRules(ctx context.Context) (int, error) {
	raw, err := c.Request(ctx, http.MethodPost, "/prediction-rules/seed", nil, nil)
	if err != nil {
		return 0, err
	}
	out, err := decode[SeedResult](raw, "/prediction-rules/seed")
	if err != nil {
		return 0, err
	}
	return out.Inserted, nil
}

// Package fakeapi is an in-memory stand-in for the Bird Tarifa backend used by
// workflow tests. It records every call and supports per-route failure injection.
package fakeapi

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/birdtarifa/internal/api"
)

// DefaultSeedCount is the number of demo rules inserted by the first seed call.
const DefaultSeedCount = 12

// Call is one recorded request.
type Call struct {
	Method string
	Path   string
	Query  url.Values
	Body   []byte
}

// Failure describes an injected failure for a route.
// Status 0 drops the connection without a response.
type Failure struct {
	Status int
	Detail string
	// Times limits how many calls fail; 0 means every call.
	Times int
}

// Server is the fake backend.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	calls       []Call
	failures    map[string]*Failure
	delays      map[string]time.Duration
	sightings   []api.Sighting
	zones       []api.Zone
	predictions []api.Prediction
	birdInfo    map[string]api.BirdInfo
	uploads     map[string]api.PhotoUpload
	nextID      int64
	nextUpload  int
	seedCount   int
}

// New starts a server that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		failures:  make(map[string]*Failure),
		delays:    make(map[string]time.Duration),
		birdInfo:  make(map[string]api.BirdInfo),
		uploads:   make(map[string]api.PhotoUpload),
		seedCount: DefaultSeedCount,
		zones: []api.Zone{
			{ID: "geo", Name: "Tarifa (zona general)", Kind: api.ZoneKindGeo},
		},
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(s.record, s.inject)

	e.GET("/health", s.health)
	e.GET("/sightings", s.listSightings)
	e.POST("/sightings", s.createSighting)
	e.GET("/zones", s.listZones)
	e.GET("/predictions", s.getPredictions)
	e.GET("/birds/info", s.getBirdInfo)
	e.POST("/uploads/photo", s.uploadPhoto)
	e.DELETE("/uploads/photo", s.deletePhoto)
	e.POST("/prediction-rules/seed", s.seed)

	s.Server = httptest.NewServer(e)
	t.Cleanup(s.Close)
	return s
}

// Client returns an API client pointed at the server.
func (s *Server) Client(t testing.TB) *api.Client {
	t.Helper()
	client, err := api.New(api.Config{BaseURL: s.URL, Timeout: 5 * time.Second}, nil)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func routeKey(method, p string) string {
	return method + " " + p
}

// Fail injects f for every subsequent call to method+path.
func (s *Server) Fail(method, p string, f Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	failure := f
	s.failures[routeKey(method, p)] = &failure
}

// Delay makes method+path sleep before answering.
func (s *Server) Delay(method, p string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays[routeKey(method, p)] = d
}

// Reset clears recorded calls and injected failures.
func (s *Server) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
	s.failures = make(map[string]*Failure)
	s.delays = make(map[string]time.Duration)
}

// SetZones replaces the zone list.
func (s *Server) SetZones(zones ...api.Zone) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zones = slices.Clone(zones)
}

// SetPredictions replaces the ranking returned for every query.
func (s *Server) SetPredictions(predictions ...api.Prediction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.predictions = slices.Clone(predictions)
}

// SetBirdInfo registers reference material for a species.
func (s *Server) SetBirdInfo(info api.BirdInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.birdInfo[strings.ToLower(info.Species)] = info
}

// Sightings returns the stored sightings, newest first.
func (s *Server) Sightings() []api.Sighting {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.sightings)
}

// Uploads returns the keys of photos that are still stored.
func (s *Server) Uploads() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.uploads))
	for k := range s.uploads {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Calls returns the recorded calls to method+path in order.
func (s *Server) Calls(method, p string) []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Call
	for _, c := range s.calls {
		if c.Method == method && c.Path == p {
			out = append(out, c)
		}
	}
	return out
}

// Count returns the number of calls to method+path.
func (s *Server) Count(method, p string) int {
	return len(s.Calls(method, p))
}

// TotalCalls returns the number of recorded calls.
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// Order returns "METHOD path" for each recorded call.
func (s *Server) Order() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	for i, c := range s.calls {
		out[i] = routeKey(c.Method, c.Path)
	}
	return out
}

func (s *Server) record(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		var body []byte
		if req.Body != nil {
			body, _ = io.ReadAll(req.Body)
			req.Body = io.NopCloser(bytes.NewReader(body))
		}
		s.mu.Lock()
		s.calls = append(s.calls, Call{
			Method: req.Method,
			Path:   req.URL.Path,
			Query:  req.URL.Query(),
			Body:   body,
		})
		s.mu.Unlock()
		return next(c)
	}
}

func (s *Server) inject(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		key := routeKey(c.Request().Method, c.Request().URL.Path)

		s.mu.Lock()
		delay := s.delays[key]
		var failure *Failure
		if f, ok := s.failures[key]; ok {
			copied := *f
			failure = &copied
			if f.Times > 0 {
				f.Times--
				if f.Times == 0 {
					delete(s.failures, key)
				}
			}
		}
		s.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-c.Request().Context().Done():
				return c.Request().Context().Err()
			}
		}

		if failure == nil {
			return next(c)
		}
		if failure.Status == 0 {
			conn, _, err := c.Response().Hijack()
			if err != nil {
				return err
			}
			return conn.Close()
		}
		if failure.Detail == "" {
			return c.NoContent(failure.Status)
		}
		return c.JSON(failure.Status, map[string]string{"detail": failure.Detail})
	}
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, api.Health{Status: "ok", Env: "test"})
}

func (s *Server) listSightings(c echo.Context) error {
	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 200 {
			return c.JSON(http.StatusUnprocessableEntity, validationDetail("limit must be between 1 and 200"))
		}
		limit = n
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.sightings[:min(limit, len(s.sightings))]
	return c.JSON(http.StatusOK, out)
}

type sightingIn struct {
	Zone         string     `json:"zone"`
	SpeciesGuess *string    `json:"species_guess"`
	Notes        *string    `json:"notes"`
	PhotoURL     *string    `json:"photo_url"`
	ObservedAt   *time.Time `json:"observed_at"`
}

func (s *Server) createSighting(c echo.Context) error {
	var in sightingIn
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, validationDetail("invalid body"))
	}
	if n := len([]rune(in.Zone)); n < 2 || n > 120 {
		return c.JSON(http.StatusUnprocessableEntity, validationDetail("String should have at least 2 characters"))
	}

	now := time.Now().UTC()
	observed := now
	if in.ObservedAt != nil {
		observed = in.ObservedAt.UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	created := api.Sighting{
		ID:           s.nextID,
		CreatedAt:    api.Timestamp{Time: now},
		ObservedAt:   api.Timestamp{Time: observed},
		Zone:         in.Zone,
		SpeciesGuess: in.SpeciesGuess,
		Notes:        in.Notes,
		PhotoURL:     in.PhotoURL,
	}
	s.sightings = slices.Insert(s.sightings, 0, created)
	return c.JSON(http.StatusCreated, created)
}

func (s *Server) listZones(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return c.JSON(http.StatusOK, s.zones)
}

func (s *Server) getPredictions(c echo.Context) error {
	if strings.TrimSpace(c.QueryParam("zone")) == "" {
		return c.JSON(http.StatusUnprocessableEntity, validationDetail("Field required"))
	}
	month, err := strconv.Atoi(c.QueryParam("month"))
	if err != nil || month < 1 || month > 12 {
		return c.JSON(http.StatusUnprocessableEntity, validationDetail("month must be between 1 and 12"))
	}
	limit := api.DefaultPredictionLimit
	if raw := c.QueryParam("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit < 1 || limit > 50 {
			return c.JSON(http.StatusUnprocessableEntity, validationDetail("limit must be between 1 and 50"))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.predictions[:min(limit, len(s.predictions))]
	if out == nil {
		out = []api.Prediction{}
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) getBirdInfo(c echo.Context) error {
	species := strings.TrimSpace(c.QueryParam("species"))
	s.mu.Lock()
	info, ok := s.birdInfo[strings.ToLower(species)]
	s.mu.Unlock()
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"detail": "Species not found"})
	}
	return c.JSON(http.StatusOK, info)
}

func (s *Server) uploadPhoto(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"detail": "file field is required"})
	}
	contentType := fh.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return c.JSON(http.StatusUnsupportedMediaType, map[string]string{"detail": "Only image uploads are allowed"})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextUpload++
	key := fmt.Sprintf("k%d", s.nextUpload)
	out := api.PhotoUpload{
		PhotoURL:    fmt.Sprintf("https://photos.test/%s%s", key, path.Ext(fh.Filename)),
		Key:         key,
		ContentType: contentType,
		SizeBytes:   fh.Size,
	}
	s.uploads[key] = out
	return c.JSON(http.StatusOK, out)
}

func (s *Server) deletePhoto(c echo.Context) error {
	var in struct {
		Key string `json:"key"`
	}
	if err := c.Bind(&in); err != nil || in.Key == "" {
		return c.JSON(http.StatusUnprocessableEntity, validationDetail("key is required"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.uploads[in.Key]
	delete(s.uploads, in.Key)
	return c.JSON(http.StatusOK, map[string]bool{"deleted": existed})
}

func (s *Server) seed(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inserted := s.seedCount
	s.seedCount = 0
	return c.JSON(http.StatusOK, api.SeedResult{Inserted: inserted})
}

func validationDetail(msg string) map[string]any {
	return map[string]any{"detail": []map[string]any{{"msg": msg}}}
}

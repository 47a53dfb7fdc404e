package predictions

import (
	"context"
	"slices"
	"sync"

	"github.com/tphakala/birdtarifa/internal/api"
	"github.com/tphakala/birdtarifa/internal/logger"
)

// Querier fetches ranked predictions.
type Querier interface {
	GetPredictions(ctx context.Context, q api.PredictionQuery) ([]api.Prediction, error)
}

// Search runs prediction queries and keeps the latest outcome. Each call
// resets the error first and replaces the results when it completes; an
// error clears them. Completions of superseded calls are dropped.
type Search struct {
	backend Querier
	log     logger.Logger

	mu         sync.RWMutex
	generation uint64
	inFlight   int
	results    []api.Prediction
	err        string
}

// NewSearch creates a search workflow.
func NewSearch(backend Querier, log logger.Logger) *Search {
	return &Search{
		backend: backend,
		log:     logger.OrDiscard(log).Module("predictions").Module("search"),
		results: []api.Prediction{},
	}
}

// Search issues q and returns the ranked results.
func (s *Search) Search(ctx context.Context, q api.PredictionQuery) ([]api.Prediction, error) {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.inFlight++
	s.err = ""
	s.mu.Unlock()

	results, err := s.backend.GetPredictions(ctx, q)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight--

	if gen != s.generation {
		s.log.Debug("Dropping superseded prediction results", logger.Any("generation", gen))
		if err != nil {
			return nil, err
		}
		return slices.Clone(results), nil
	}

	if err != nil {
		s.results = []api.Prediction{}
		s.err = api.Message(err)
		s.log.Warn("Prediction query failed",
			logger.String("zone", q.Zone),
			logger.Int("month", q.Month),
			logger.Error(err))
		return nil, err
	}

	s.results = slices.Clone(results)
	if s.results == nil {
		s.results = []api.Prediction{}
	}
	fields := []logger.Field{
		logger.String("zone", q.Zone),
		logger.String("zone_id", q.ZoneID),
		logger.Int("month", q.Month),
		logger.Int("results", len(s.results)),
	}
	if len(s.results) > 0 {
		fields = append(fields, logger.Float64("top_score", s.results[0].Score))
	}
	s.log.Debug("Prediction query completed", fields...)
	return slices.Clone(s.results), nil
}

// Results returns a copy of the current results; never nil.
func (s *Search) Results() []api.Prediction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.results)
}

// Loading reports whether a query is in flight.
func (s *Search) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inFlight > 0
}

// Err returns the last query failure message, or "".
func (s *Search) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}
